// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// StripTrailingSlash redirects GET and HEAD requests with a trailing slash
// to the canonical URL without. Form posts are left alone so a redirect
// never drops their body.
func StripTrailingSlash() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			r := c.Request()
			path := r.URL.Path
			if path == "/" || !strings.HasSuffix(path, "/") {
				return next(c)
			}
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				return next(c)
			}

			newURL := strings.TrimRight(path, "/")
			if newURL == "" {
				newURL = "/"
			}
			if r.URL.RawQuery != "" {
				newURL += "?" + r.URL.RawQuery
			}
			return c.Redirect(http.StatusMovedPermanently, newURL)
		}
	}
}
