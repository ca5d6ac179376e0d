// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"codeberg.org/oliverandrich/newsletter/internal/auth"
	"codeberg.org/oliverandrich/newsletter/internal/handlers"
	"codeberg.org/oliverandrich/newsletter/internal/models"
	"codeberg.org/oliverandrich/newsletter/internal/sse"
	"codeberg.org/oliverandrich/newsletter/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingLister struct{}

func (failingLister) CountSubscribersByStatus(context.Context) (map[models.SubscriptionStatus]int64, error) {
	return nil, errors.New("db gone")
}

func (failingLister) ListSubscribers(context.Context, int) ([]models.Subscriber, error) {
	return nil, errors.New("db gone")
}

// streamRecorder is a ResponseWriter safe to read while a stream is
// being written.
type streamRecorder struct {
	mu     sync.Mutex
	header http.Header
	body   strings.Builder
	status int
}

func newStreamRecorder() *streamRecorder {
	return &streamRecorder{header: http.Header{}}
}

func (r *streamRecorder) Header() http.Header { return r.header }

func (r *streamRecorder) WriteHeader(status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
}

func (r *streamRecorder) Write(b []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body.Write(b)
}

func (r *streamRecorder) Flush() {}

func (r *streamRecorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body.String()
}

func withUser(c echo.Context, user *models.User) {
	ctx := auth.SetUser(c.Request().Context(), user)
	c.SetRequest(c.Request().WithContext(ctx))
}

func TestDashboard(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	user := testutil.NewTestUser(t, repo, "operator", "correct horse battery staple")
	testutil.NewTestSubscriber(t, repo, "Ursula", "ursula@example.com", "hash-1")
	testutil.NewTestSubscriber(t, repo, "Octavia", "octavia@example.com", "hash-2")

	e := echo.New()
	c, rec := testutil.NewEchoContext(e, http.MethodGet, "/admin/dashboard", nil)
	withUser(c, user)

	require.NoError(t, handlers.NewAdmin(repo, sse.NewHub()).Dashboard(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Welcome operator!")
	assert.Contains(t, body, `<dd id="count-pending">2</dd>`)
	assert.Contains(t, body, `<dd id="count-confirmed">0</dd>`)
	assert.Contains(t, body, "ursula@example.com")
	assert.Contains(t, body, "octavia@example.com")
}

func TestDashboard_StoreError(t *testing.T) {
	e := echo.New()
	c, _ := testutil.NewEchoContext(e, http.MethodGet, "/admin/dashboard", nil)

	err := handlers.NewAdmin(failingLister{}, sse.NewHub()).Dashboard(c)

	require.Error(t, err)
}

func TestEvents_RequiresUser(t *testing.T) {
	e := echo.New()
	c, _ := testutil.NewEchoContext(e, http.MethodGet, "/admin/events", nil)

	err := handlers.NewAdmin(failingLister{}, sse.NewHub()).Events(c)

	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestEvents_StreamsPublishedEvents(t *testing.T) {
	hub := sse.NewHub()
	h := handlers.NewAdmin(failingLister{}, hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/admin/events", nil).WithContext(ctx)
	rec := newStreamRecorder()
	c := e.NewContext(req, rec)
	withUser(c, &models.User{ID: 7, Username: "operator"})

	done := make(chan error, 1)
	go func() { done <- h.Events(c) }()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	hub.Publish("subscriber_onboarded", `{"id":"1"}`)

	require.Eventually(t, func() bool {
		return strings.Contains(rec.String(), "event: subscriber_onboarded\ndata: {\"id\":\"1\"}\n\n")
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("event stream did not stop after the client went away")
	}

	assert.Equal(t, 0, hub.ClientCount())
	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))
	assert.True(t, strings.HasPrefix(rec.String(), "event: connected\n"))
}
