// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"codeberg.org/oliverandrich/newsletter/internal/i18n"
	"codeberg.org/oliverandrich/newsletter/internal/models"
	"codeberg.org/oliverandrich/newsletter/internal/secret"
	authsvc "codeberg.org/oliverandrich/newsletter/internal/services/auth"
	"codeberg.org/oliverandrich/newsletter/internal/services/session"
	"codeberg.org/oliverandrich/newsletter/internal/templates"
	"github.com/labstack/echo/v4"
)

// DashboardPath is where operators land after logging in.
const DashboardPath = "/admin/dashboard"

// CredentialValidator checks operator credentials.
type CredentialValidator interface {
	ValidateCredentials(ctx context.Context, creds authsvc.Credentials) (*models.User, error)
}

// AuthHandlers contains handlers for operator login and logout.
type AuthHandlers struct {
	auth     CredentialValidator
	sessions *session.Manager
}

// NewAuth creates a new AuthHandlers instance.
func NewAuth(auth CredentialValidator, sess *session.Manager) *AuthHandlers {
	return &AuthHandlers{
		auth:     auth,
		sessions: sess,
	}
}

// LoginPage renders the login form with a pending flash message.
func (h *AuthHandlers) LoginPage(c echo.Context) error {
	flash := ""
	if id := popFlash(c); id != "" {
		flash = i18n.T(c.Request().Context(), id)
	}
	return Render(c, http.StatusOK, templates.LoginPage(flash))
}

// Login validates the form credentials. Both outcomes redirect: to the
// dashboard on success, back to the login page with a flash otherwise.
func (h *AuthHandlers) Login(c echo.Context) error {
	creds := authsvc.Credentials{
		Username: strings.TrimSpace(c.FormValue("username")),
		Password: secret.New(c.FormValue("password")),
	}

	user, err := h.auth.ValidateCredentials(c.Request().Context(), creds)
	if err != nil {
		if errors.Is(err, authsvc.ErrInvalidCredentials) {
			setFlash(c, "flash_login_failed")
		} else {
			slog.Error("login_error", "username", creds.Username, "error", err)
			setFlash(c, "flash_unexpected")
		}
		return c.Redirect(http.StatusSeeOther, "/login")
	}

	cookie, err := h.sessions.Create(user.ID, user.Username)
	if err != nil {
		slog.Error("session_create_failed", "user_id", user.ID, "error", err)
		setFlash(c, "flash_unexpected")
		return c.Redirect(http.StatusSeeOther, "/login")
	}
	c.SetCookie(cookie)

	return c.Redirect(http.StatusSeeOther, DashboardPath)
}

// Logout clears the session cookie.
func (h *AuthHandlers) Logout(c echo.Context) error {
	c.SetCookie(h.sessions.Clear())
	setFlash(c, "flash_logged_out")
	return c.Redirect(http.StatusSeeOther, "/login")
}
