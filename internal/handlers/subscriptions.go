// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/newsletter/internal/services/subscription"
	"codeberg.org/oliverandrich/newsletter/internal/templates"
	"github.com/labstack/echo/v4"
)

// Onboarder is the part of the subscription service the handlers use.
type Onboarder interface {
	Onboard(ctx context.Context, rawName, rawEmail string) error
	Confirm(ctx context.Context, token string) error
}

// Subscriptions handles the public subscription endpoints.
type Subscriptions struct {
	svc Onboarder
}

// NewSubscriptions creates the subscription handlers.
func NewSubscriptions(svc Onboarder) *Subscriptions {
	return &Subscriptions{svc: svc}
}

// Subscribe accepts the form fields name and email. Invalid input is a
// 400, storage and delivery faults are a 500.
func (h *Subscriptions) Subscribe(c echo.Context) error {
	err := h.svc.Onboard(c.Request().Context(), c.FormValue("name"), c.FormValue("email"))
	if err == nil {
		return Render(c, http.StatusOK, templates.MessagePage("subscribe_success_title", "subscribe_success_body"))
	}

	// Storage and delivery faults are logged by the service.
	if subscription.KindOf(err) == subscription.KindInvalidInput {
		slog.Info("subscribe_rejected", "reason", err.Error())
	}
	return RenderError(c, subscription.StatusCode(err))
}

// Confirm consumes a confirmation token. Unknown or used tokens render a
// 401 page and change nothing.
func (h *Subscriptions) Confirm(c echo.Context) error {
	token := c.QueryParam(subscription.TokenParam)
	if token == "" {
		return RenderError(c, http.StatusBadRequest)
	}

	err := h.svc.Confirm(c.Request().Context(), token)
	switch {
	case err == nil:
		return Render(c, http.StatusOK, templates.MessagePage("confirm_success_title", "confirm_success_body"))
	case errors.Is(err, subscription.ErrUnknownToken):
		return Render(c, http.StatusUnauthorized, templates.MessagePage("confirm_invalid_title", "confirm_invalid_body"))
	default:
		slog.Error("confirm_failed", "error", err)
		return RenderError(c, http.StatusInternalServerError)
	}
}
