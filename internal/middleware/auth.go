// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package middleware holds the echo middleware shared by all routes.
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/newsletter/internal/auth"
	"codeberg.org/oliverandrich/newsletter/internal/models"
	"codeberg.org/oliverandrich/newsletter/internal/services/session"
	"github.com/labstack/echo/v4"
)

// LoginPath is where unauthenticated operators are sent.
const LoginPath = "/login"

// UserLoader loads the operator behind a session.
type UserLoader interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// LoadUser puts the operator of a valid session into the request context.
// Sessions of deleted operators are ignored.
func LoadUser(sessions *session.Manager, users UserLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			data, err := sessions.Parse(c.Request())
			if err != nil || data == nil {
				return next(c)
			}

			user, err := users.GetUserByID(c.Request().Context(), data.UserID)
			if err != nil {
				slog.Debug("session_user_not_loaded", "user_id", data.UserID, "error", err)
				return next(c)
			}

			ctx := auth.SetUser(c.Request().Context(), user)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RequireAuth redirects unauthenticated requests to the login page.
func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !auth.IsAuthenticated(c.Request().Context()) {
				return c.Redirect(http.StatusSeeOther, LoginPath)
			}
			return next(c)
		}
	}
}
