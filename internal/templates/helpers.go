// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package templates holds the server-rendered pages and the HTML email
// as templ components.
package templates

import (
	"context"
	"fmt"
	"io"

	"codeberg.org/oliverandrich/newsletter/internal/auth"
	"codeberg.org/oliverandrich/newsletter/internal/ctxkeys"
	"codeberg.org/oliverandrich/newsletter/internal/i18n"
	"codeberg.org/oliverandrich/newsletter/internal/models"
	"github.com/a-h/templ"
)

// CSRFToken returns the CSRF token from the context.
func CSRFToken(ctx context.Context) string {
	if token, ok := ctx.Value(ctxkeys.CSRFToken{}).(string); ok {
		return token
	}
	return ""
}

// T translates a message by ID.
func T(ctx context.Context, messageID string) string {
	return i18n.T(ctx, messageID)
}

// TData translates a message with template data.
func TData(ctx context.Context, messageID string, data map[string]any) string {
	return i18n.TData(ctx, messageID, data)
}

// Locale returns the current locale.
func Locale(ctx context.Context) string {
	return i18n.GetLocale(ctx)
}

// GetUser returns the authenticated user from context, or nil if not logged in.
func GetUser(ctx context.Context) *models.User {
	return auth.GetUser(ctx)
}

// IsAuthenticated returns true if a user is logged in.
func IsAuthenticated(ctx context.Context) bool {
	return GetUser(ctx) != nil
}

// writer collects the first write error so components read top to bottom.
type writer struct {
	w   io.Writer
	err error
}

// raw writes trusted markup.
func (w *writer) raw(s string) {
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.w, s)
}

// text writes escaped content.
func (w *writer) text(s string) {
	w.raw(templ.EscapeString(s))
}

func (w *writer) rawf(format string, args ...any) {
	w.raw(fmt.Sprintf(format, args...))
}

func (w *writer) component(ctx context.Context, c templ.Component) {
	if w.err != nil || c == nil {
		return
	}
	w.err = c.Render(ctx, w.w)
}

// csrfField renders the hidden CSRF input when a token is present.
func (w *writer) csrfField(ctx context.Context) {
	if token := CSRFToken(ctx); token != "" {
		w.raw(`<input type="hidden" name="csrf_token" value="`)
		w.text(token)
		w.raw(`">`)
	}
}
