// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/newsletter/internal/ctxkeys"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// CSRF protects the operator forms and copies the token into the request
// context for templates. The public subscription form does not use it.
func CSRF(secure bool) echo.MiddlewareFunc {
	protect := echomw.CSRFWithConfig(echomw.CSRFConfig{
		TokenLookup:    "form:csrf_token,header:X-CSRF-Token",
		CookieName:     "_csrf",
		CookiePath:     "/",
		CookieSecure:   secure,
		CookieHTTPOnly: true,
		CookieSameSite: http.SameSiteLaxMode,
		ErrorHandler: func(err error, c echo.Context) error {
			slog.Warn("csrf_failure",
				"path", c.Request().URL.Path,
				"method", c.Request().Method,
				"ip", c.RealIP(),
				"error", err,
			)
			return echo.NewHTTPError(http.StatusForbidden, "invalid CSRF token, please reload the page")
		},
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return protect(csrfToContext(next))
	}
}

func csrfToContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if token, ok := c.Get(echomw.DefaultCSRFConfig.ContextKey).(string); ok {
			ctx := context.WithValue(c.Request().Context(), ctxkeys.CSRFToken{}, token)
			c.SetRequest(c.Request().WithContext(ctx))
		}
		return next(c)
	}
}
