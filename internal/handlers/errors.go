// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/newsletter/internal/templates"
	"github.com/labstack/echo/v4"
)

// errorMessages maps status codes to the message shown on the error page.
var errorMessages = map[int]string{
	http.StatusBadRequest: "error_bad_request",
	http.StatusForbidden:  "error_forbidden",
	http.StatusNotFound:   "error_not_found",
}

// RenderError renders the error page for status. Internal details never
// reach the visitor.
func RenderError(c echo.Context, status int) error {
	message, ok := errorMessages[status]
	if !ok {
		message = "error_internal"
	}
	return Render(c, status, templates.MessagePage("error_title", message))
}

// ErrorHandler is the echo HTTPErrorHandler. It renders error pages for
// browsers and keeps JSON for API clients.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
	}
	if status >= http.StatusInternalServerError {
		slog.Error("unhandled_error", "path", c.Request().URL.Path, "error", err)
	}

	if c.Request().Header.Get(echo.HeaderAccept) == echo.MIMEApplicationJSON {
		err = c.JSON(status, map[string]string{"error": http.StatusText(status)})
	} else if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = RenderError(c, status)
	}
	if err != nil {
		slog.Error("error_page_failed", "error", err)
	}
}
