// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
)

const flashCookie = "_flash"

// flashMessages are the message IDs a flash cookie may carry. Anything
// else in the cookie is ignored.
var flashMessages = map[string]struct{}{
	"flash_login_failed": {},
	"flash_unexpected":   {},
	"flash_logged_out":   {},
}

// Render renders a templ component with the given status code.
func Render(c echo.Context, statusCode int, component templ.Component) error {
	buf := templ.GetBuffer()
	defer templ.ReleaseBuffer(buf)

	if err := component.Render(c.Request().Context(), buf); err != nil {
		return err
	}

	return c.HTML(statusCode, buf.String())
}

// setFlash stores a message ID for the next page view.
func setFlash(c echo.Context, messageID string) {
	c.SetCookie(&http.Cookie{
		Name:     flashCookie,
		Value:    messageID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash returns the pending message ID and clears the cookie.
func popFlash(c echo.Context) string {
	cookie, err := c.Cookie(flashCookie)
	if err != nil || cookie.Value == "" {
		return ""
	}
	c.SetCookie(&http.Cookie{
		Name:     flashCookie,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	if _, ok := flashMessages[cookie.Value]; !ok {
		return ""
	}
	return cookie.Value
}
