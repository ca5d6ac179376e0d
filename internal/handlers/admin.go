// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"context"
	"net/http"
	"time"

	"codeberg.org/oliverandrich/newsletter/internal/auth"
	"codeberg.org/oliverandrich/newsletter/internal/models"
	"codeberg.org/oliverandrich/newsletter/internal/sse"
	"codeberg.org/oliverandrich/newsletter/internal/templates"
	"github.com/labstack/echo/v4"
)

// recentSubscribers is the number of subscribers listed on the dashboard.
const recentSubscribers = 20

// heartbeatInterval keeps idle event streams open through proxies.
var heartbeatInterval = 30 * time.Second

// SubscriberLister provides the dashboard figures.
type SubscriberLister interface {
	CountSubscribersByStatus(ctx context.Context) (map[models.SubscriptionStatus]int64, error)
	ListSubscribers(ctx context.Context, limit int) ([]models.Subscriber, error)
}

// Admin contains the operator-only handlers.
type Admin struct {
	subscribers SubscriberLister
	hub         *sse.Hub
}

// NewAdmin creates the admin handlers.
func NewAdmin(subscribers SubscriberLister, hub *sse.Hub) *Admin {
	return &Admin{subscribers: subscribers, hub: hub}
}

// Dashboard renders subscriber counts and the most recent sign-ups.
func (h *Admin) Dashboard(c echo.Context) error {
	ctx := c.Request().Context()

	counts, err := h.subscribers.CountSubscribersByStatus(ctx)
	if err != nil {
		return err
	}
	recent, err := h.subscribers.ListSubscribers(ctx, recentSubscribers)
	if err != nil {
		return err
	}

	return Render(c, http.StatusOK, templates.DashboardPage(templates.DashboardData{
		Counts: counts,
		Recent: recent,
		User:   auth.GetUser(ctx),
	}))
}

// Events streams subscriber events to the operator until the client
// disconnects.
func (h *Admin) Events(c echo.Context) error {
	user := auth.GetUser(c.Request().Context())
	if user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	ch := h.hub.Register(user.ID)
	defer h.hub.Unregister(user.ID, ch)

	if _, err := w.Write([]byte(sse.FormatEvent("connected", "ok"))); err != nil {
		return nil
	}
	w.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.Write([]byte(sse.Heartbeat)); err != nil {
				return nil // Client disconnected
			}
			w.Flush()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if _, err := w.Write([]byte(msg)); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}
