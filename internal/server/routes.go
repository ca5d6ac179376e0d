// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"fmt"

	"codeberg.org/oliverandrich/newsletter/internal/handlers"
	"codeberg.org/oliverandrich/newsletter/internal/middleware"
	"codeberg.org/oliverandrich/newsletter/internal/services/auth"
	"codeberg.org/oliverandrich/newsletter/internal/services/session"
	"codeberg.org/oliverandrich/newsletter/internal/services/subscription"
	"codeberg.org/oliverandrich/newsletter/internal/sse"
	"github.com/labstack/echo/v4"
)

// New builds the echo instance with all middleware and routes.
func New(deps Deps) (*echo.Echo, error) {
	cfg := deps.Config
	secure := secureCookies(cfg)

	sessions, err := session.NewManager(&cfg.Session, secure)
	if err != nil {
		return nil, fmt.Errorf("failed to set up sessions: %w", err)
	}

	subscriptions, err := subscription.NewService(deps.Repo, deps.Sender, cfg.Email.ConfirmURL)
	if err != nil {
		return nil, err
	}
	if deps.Hub == nil {
		deps.Hub = sse.NewHub()
	}
	subscriptions.WithMetrics(deps.Metrics).WithNotifier(deps.Hub)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handlers.ErrorHandler

	setupMiddleware(e, cfg, deps.Metrics, sessions, deps.Repo)

	h := handlers.New(deps.Repo)
	subs := handlers.NewSubscriptions(subscriptions)
	authH := handlers.NewAuth(auth.NewService(deps.Repo), sessions)
	admin := handlers.NewAdmin(deps.Repo, deps.Hub)

	e.GET("/health", h.Health)
	e.GET("/metrics", echo.WrapHandler(deps.Metrics.Handler()))
	e.GET("/", h.Home)

	// The public form is unauthenticated and carries no CSRF token.
	e.POST("/subscriptions", subs.Subscribe)
	e.GET("/subscriptions/confirm", subs.Confirm)

	csrf := middleware.CSRF(secure)
	e.GET(middleware.LoginPath, authH.LoginPage, csrf)
	e.POST(middleware.LoginPath, authH.Login, csrf)

	g := e.Group("/admin", csrf, middleware.RequireAuth())
	g.GET("/dashboard", admin.Dashboard)
	g.GET("/events", admin.Events)
	g.POST("/logout", authH.Logout)

	return e, nil
}
