// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"fmt"

	"codeberg.org/oliverandrich/newsletter/internal/config"
	"codeberg.org/oliverandrich/newsletter/internal/metrics"
	"codeberg.org/oliverandrich/newsletter/internal/middleware"
	"codeberg.org/oliverandrich/newsletter/internal/repository"
	"codeberg.org/oliverandrich/newsletter/internal/services/session"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

func setupMiddleware(e *echo.Echo, cfg *config.Config, m *metrics.Metrics, sessions *session.Manager, repo *repository.Repository) {
	e.Pre(middleware.StripTrailingSlash())

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger())
	e.Use(echomw.Secure())
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dM", max(cfg.Server.MaxBodySize, 1))))
	e.Use(m.Middleware())
	e.Use(middleware.Locale())
	e.Use(middleware.LoadUser(sessions, repo))
}
