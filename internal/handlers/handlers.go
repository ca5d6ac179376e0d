// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package handlers contains the HTTP handlers.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/newsletter/internal/templates"
	"github.com/labstack/echo/v4"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers contains the public pages.
type Handlers struct {
	db Pinger
}

// New creates a new Handlers instance.
func New(db Pinger) *Handlers {
	return &Handlers{db: db}
}

// Health returns the health status. The database is checked when one is
// configured.
func (h *Handlers) Health(c echo.Context) error {
	if h.db != nil {
		if err := h.db.Ping(c.Request().Context()); err != nil {
			slog.Error("health_check_failed", "error", err)
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Home renders the subscription form.
func (h *Handlers) Home(c echo.Context) error {
	return Render(c, http.StatusOK, templates.HomePage())
}
