// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"codeberg.org/oliverandrich/newsletter/internal/database"
	"codeberg.org/oliverandrich/newsletter/internal/models"
	"codeberg.org/oliverandrich/newsletter/internal/repository"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	repo := repository.New(db)
	return db, repo
}

// NewTestUser creates an operator with the given password.
func NewTestUser(t *testing.T, repo *repository.Repository, username, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user, err := repo.CreateUser(context.Background(), username, string(hash))
	require.NoError(t, err)
	return user
}

// NewTestSubscriber stores a pending subscriber with the given token hash.
func NewTestSubscriber(t *testing.T, repo *repository.Repository, name, email, tokenHash string) *models.Subscriber {
	t.Helper()
	sub, err := repo.StorePendingSubscriber(context.Background(), models.NewSubscriber{Name: name, Email: email}, tokenHash)
	require.NoError(t, err)
	return sub
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// NewFormContext creates an Echo context carrying a URL-encoded form body.
func NewFormContext(e *echo.Echo, method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// EmailServer is a fake transactional email provider that records every
// request it receives.
type EmailServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []CapturedEmail
	status   int
	handler  http.HandlerFunc
}

// CapturedEmail is one request received by EmailServer.
type CapturedEmail struct {
	Method      string
	Path        string
	ContentType string
	Username    string
	Password    string
	HasAuth     bool
	Form        url.Values
}

// NewEmailServer starts a fake provider answering with status.
func NewEmailServer(t *testing.T, status int) *EmailServer {
	t.Helper()
	s := &EmailServer{status: status}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// SetHandler replaces the default response, e.g. to delay or fail.
// The request is still recorded.
func (s *EmailServer) SetHandler(h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

func (s *EmailServer) serve(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	username, password, ok := r.BasicAuth()

	s.mu.Lock()
	s.requests = append(s.requests, CapturedEmail{
		Method:      r.Method,
		Path:        r.URL.Path,
		ContentType: r.Header.Get("Content-Type"),
		Username:    username,
		Password:    password,
		HasAuth:     ok,
		Form:        r.PostForm,
	})
	handler := s.handler
	status := s.status
	s.mu.Unlock()

	if handler != nil {
		handler(w, r)
		return
	}
	w.WriteHeader(status)
}

// Requests returns a copy of the recorded requests.
func (s *EmailServer) Requests() []CapturedEmail {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CapturedEmail, len(s.requests))
	copy(out, s.requests)
	return out
}
