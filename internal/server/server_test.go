// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	"codeberg.org/oliverandrich/newsletter/internal/config"
	"codeberg.org/oliverandrich/newsletter/internal/i18n"
	"codeberg.org/oliverandrich/newsletter/internal/metrics"
	"codeberg.org/oliverandrich/newsletter/internal/models"
	"codeberg.org/oliverandrich/newsletter/internal/repository"
	"codeberg.org/oliverandrich/newsletter/internal/secret"
	"codeberg.org/oliverandrich/newsletter/internal/services/email"
	"codeberg.org/oliverandrich/newsletter/internal/sse"
	"codeberg.org/oliverandrich/newsletter/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
)

const (
	testHashKey  = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	testAPIToken = "test-api-token"
	validForm    = "name=le+guin&email=ursula_le_guin%40gmail.com"
)

var (
	linkPattern = regexp.MustCompile(`https?://[^\s"<]+`)
	csrfPattern = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)
)

func TestMain(m *testing.M) {
	if err := i18n.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type testApp struct {
	e    *echo.Echo
	db   *sqlx.DB
	repo *repository.Repository
	mail *testutil.EmailServer
}

func newTestApp(t *testing.T, mailStatus int, opts ...func(*config.Config)) *testApp {
	t.Helper()

	db, repo := testutil.NewTestDB(t)
	mail := testutil.NewEmailServer(t, mailStatus)

	cfg := &config.Config{
		Server: config.ServerConfig{
			Host:        "localhost",
			Port:        8080,
			BaseURL:     "http://localhost:8080",
			MaxBodySize: 1,
		},
		Email: config.EmailConfig{
			Transport:  config.TransportHTTP,
			BaseURL:    mail.URL,
			Sender:     "newsletter@example.com",
			APIToken:   secret.New(testAPIToken),
			Timeout:    2 * time.Second,
			ConfirmURL: "http://localhost:8080/subscriptions/confirm",
		},
		Session: config.SessionConfig{
			CookieName: "_session",
			MaxAge:     3600,
			HashKey:    testHashKey,
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	sender, err := NewSender(cfg)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg, reg)
	require.NoError(t, err)

	e, err := New(Deps{
		Config:  cfg,
		Repo:    repo,
		Sender:  sender,
		Metrics: m,
		Hub:     sse.NewHub(),
	})
	require.NoError(t, err)

	return &testApp{e: e, db: db, repo: repo, mail: mail}
}

func (a *testApp) do(t *testing.T, method, target, form string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(form))
	if form != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) subscribe(t *testing.T, form string) *httptest.ResponseRecorder {
	t.Helper()
	return a.do(t, http.MethodPost, "/subscriptions", form)
}

func (a *testApp) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, a.db.Get(&n, "SELECT COUNT(*) FROM "+table))
	return n
}

// confirmPath extracts the path and query of the confirmation link in a
// captured email.
func confirmPath(t *testing.T, captured testutil.CapturedEmail) string {
	t.Helper()
	link := linkPattern.FindString(captured.Form.Get("TextBody"))
	require.NotEmpty(t, link)
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.RequestURI()
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestSubscribe_ValidForm(t *testing.T) {
	app := newTestApp(t, http.StatusOK)

	rec := app.subscribe(t, validForm)

	assert.Equal(t, http.StatusOK, rec.Code)

	sub, err := app.repo.GetSubscriberByEmail(context.Background(), "ursula_le_guin@gmail.com")
	require.NoError(t, err)
	assert.Equal(t, "le guin", sub.Name)
	assert.Equal(t, models.StatusPendingConfirmation, sub.Status)
	assert.Equal(t, 1, app.count(t, "subscription_tokens"))

	requests := app.mail.Requests()
	require.Len(t, requests, 1)
	got := requests[0]
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/email", got.Path)
	assert.True(t, got.HasAuth)
	assert.Equal(t, "api", got.Username)
	assert.Equal(t, testAPIToken, got.Password)
	assert.Equal(t, "newsletter@example.com", got.Form.Get("From"))
	assert.Equal(t, "ursula_le_guin@gmail.com", got.Form.Get("To"))
	assert.NotEmpty(t, got.Form.Get("Subject"))
	assert.NotEmpty(t, got.Form.Get("HtmlBody"))
	assert.NotEmpty(t, got.Form.Get("TextBody"))
}

func TestSubscribe_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		form string
	}{
		{"missing email", "name=le%20guin"},
		{"missing name", "email=ursula_le_guin%40gmail.com"},
		{"missing both", ""},
		{"empty name", "name=&email=ursula_le_guin%40gmail.com"},
		{"blank name", "name=%20%20&email=ursula_le_guin%40gmail.com"},
		{"empty email", "name=Ursula&email="},
		{"invalid email", "name=Ursula&email=definitely-not-an-email"},
		{"forbidden characters", "name=%3Cscript%3E&email=ursula_le_guin%40gmail.com"},
		{"name too long", "name=" + strings.Repeat("a", 257) + "&email=ursula_le_guin%40gmail.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t, http.StatusOK)

			rec := app.subscribe(t, tt.form)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, 0, app.count(t, "subscriptions"))
			assert.Empty(t, app.mail.Requests())
		})
	}
}

func TestSubscribe_StorageFailure(t *testing.T) {
	app := newTestApp(t, http.StatusOK)
	_, err := app.db.Exec("ALTER TABLE subscriptions DROP COLUMN name")
	require.NoError(t, err)

	rec := app.subscribe(t, validForm)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, app.mail.Requests())
	assert.NotContains(t, rec.Body.String(), "no such column")
}

func TestSubscribe_ProviderRejects(t *testing.T) {
	app := newTestApp(t, http.StatusInternalServerError)

	rec := app.subscribe(t, validForm)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Len(t, app.mail.Requests(), 1)

	sub, err := app.repo.GetSubscriberByEmail(context.Background(), "ursula_le_guin@gmail.com")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingConfirmation, sub.Status)
}

func TestSubscribe_DeliveryTimeout(t *testing.T) {
	app := newTestApp(t, http.StatusOK, func(cfg *config.Config) {
		cfg.Email.Timeout = 50 * time.Millisecond
	})
	app.mail.SetHandler(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
		w.WriteHeader(http.StatusOK)
	})

	start := time.Now()
	rec := app.subscribe(t, validForm)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Less(t, time.Since(start), time.Second)

	sub, err := app.repo.GetSubscriberByEmail(context.Background(), "ursula_le_guin@gmail.com")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingConfirmation, sub.Status)
}

func TestSubscribe_Twice(t *testing.T) {
	app := newTestApp(t, http.StatusOK)

	require.Equal(t, http.StatusOK, app.subscribe(t, validForm).Code)
	require.Equal(t, http.StatusOK, app.subscribe(t, validForm).Code)

	assert.Equal(t, 1, app.count(t, "subscriptions"))
	assert.Equal(t, 1, app.count(t, "subscription_tokens"))

	requests := app.mail.Requests()
	require.Len(t, requests, 2)
	first := confirmPath(t, requests[0])
	second := confirmPath(t, requests[1])
	assert.NotEqual(t, first, second)

	assert.Equal(t, http.StatusUnauthorized, app.do(t, http.MethodGet, first, "").Code)
	assert.Equal(t, http.StatusOK, app.do(t, http.MethodGet, second, "").Code)
}

func TestConfirm_Flow(t *testing.T) {
	app := newTestApp(t, http.StatusOK)
	require.Equal(t, http.StatusOK, app.subscribe(t, validForm).Code)

	requests := app.mail.Requests()
	require.Len(t, requests, 1)
	path := confirmPath(t, requests[0])
	assert.True(t, strings.HasPrefix(path, "/subscriptions/confirm?subscription_token="))

	rec := app.do(t, http.MethodGet, path, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	sub, err := app.repo.GetSubscriberByEmail(context.Background(), "ursula_le_guin@gmail.com")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, sub.Status)
	assert.Equal(t, 0, app.count(t, "subscription_tokens"))

	t.Run("link is single use", func(t *testing.T) {
		rec := app.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("resubscribing sends nothing", func(t *testing.T) {
		rec := app.subscribe(t, validForm)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, app.mail.Requests(), 1)
	})
}

func TestConfirm_BadTokens(t *testing.T) {
	app := newTestApp(t, http.StatusOK)

	assert.Equal(t, http.StatusBadRequest, app.do(t, http.MethodGet, "/subscriptions/confirm", "").Code)
	assert.Equal(t, http.StatusUnauthorized,
		app.do(t, http.MethodGet, "/subscriptions/confirm?subscription_token=nope", "").Code)
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, http.StatusOK)

	rec := app.do(t, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t, http.StatusOK)
	require.Equal(t, http.StatusOK, app.subscribe(t, validForm).Code)

	rec := app.do(t, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `newsletter_onboarding_total{result="success"} 1`)
	assert.Contains(t, rec.Body.String(), "newsletter_email_delivery_seconds")
}

func TestHome(t *testing.T) {
	app := newTestApp(t, http.StatusOK)

	rec := app.do(t, http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `action="/subscriptions"`)
}

func TestNotFound(t *testing.T) {
	app := newTestApp(t, http.StatusOK)

	rec := app.do(t, http.MethodGet, "/nowhere", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTrailingSlashRedirect(t *testing.T) {
	app := newTestApp(t, http.StatusOK)

	rec := app.do(t, http.MethodGet, "/login/", "")

	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestDashboard_RequiresLogin(t *testing.T) {
	app := newTestApp(t, http.StatusOK)

	rec := app.do(t, http.MethodGet, "/admin/dashboard", "")

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

// loginForm fetches the login page and returns its CSRF cookie and token.
func loginForm(t *testing.T, app *testApp) (*http.Cookie, string) {
	t.Helper()
	rec := app.do(t, http.MethodGet, "/login", "")
	require.Equal(t, http.StatusOK, rec.Code)

	cookie := cookieNamed(rec, "_csrf")
	require.NotNil(t, cookie)
	match := csrfPattern.FindStringSubmatch(rec.Body.String())
	require.Len(t, match, 2)
	return cookie, match[1]
}

func TestLogin_Flow(t *testing.T) {
	app := newTestApp(t, http.StatusOK)
	testutil.NewTestUser(t, app.repo, "operator", "correct horse battery staple")
	testutil.NewTestSubscriber(t, app.repo, "Ursula", "ursula_le_guin@gmail.com", "hash")

	csrfCookie, token := loginForm(t, app)
	form := url.Values{
		"csrf_token": {token},
		"username":   {"operator"},
		"password":   {"correct horse battery staple"},
	}
	rec := app.do(t, http.MethodPost, "/login", form.Encode(), csrfCookie)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/dashboard", rec.Header().Get("Location"))
	sessionCookie := cookieNamed(rec, "_session")
	require.NotNil(t, sessionCookie)

	rec = app.do(t, http.MethodGet, "/admin/dashboard", "", sessionCookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ursula_le_guin@gmail.com")
}

func TestLogin_WrongPassword(t *testing.T) {
	app := newTestApp(t, http.StatusOK)
	testutil.NewTestUser(t, app.repo, "operator", "correct horse battery staple")

	csrfCookie, token := loginForm(t, app)
	form := url.Values{
		"csrf_token": {token},
		"username":   {"operator"},
		"password":   {"wrong"},
	}
	rec := app.do(t, http.MethodPost, "/login", form.Encode(), csrfCookie)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Nil(t, cookieNamed(rec, "_session"))
	flash := cookieNamed(rec, "_flash")
	require.NotNil(t, flash)

	rec = app.do(t, http.MethodGet, "/login", "", flash)
	assert.Contains(t, rec.Body.String(), "Authentication failed")
}

func TestLogin_WithoutCSRFToken(t *testing.T) {
	app := newTestApp(t, http.StatusOK)
	testutil.NewTestUser(t, app.repo, "operator", "correct horse battery staple")

	form := url.Values{
		"username": {"operator"},
		"password": {"correct horse battery staple"},
	}
	rec := app.do(t, http.MethodPost, "/login", form.Encode())

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestNewSender(t *testing.T) {
	t.Run("http", func(t *testing.T) {
		sender, err := NewSender(&config.Config{Email: config.EmailConfig{
			BaseURL:  "https://api.example.com",
			Sender:   "newsletter@example.com",
			APIToken: secret.New("token"),
			Timeout:  time.Second,
		}})
		require.NoError(t, err)
		assert.IsType(t, &email.Client{}, sender)
	})

	t.Run("smtp", func(t *testing.T) {
		sender, err := NewSender(&config.Config{
			Email: config.EmailConfig{Transport: config.TransportSMTP},
			SMTP:  config.SMTPConfig{Host: "smtp.example.com", Port: 587, From: "newsletter@example.com"},
		})
		require.NoError(t, err)
		assert.IsType(t, &email.SMTPSender{}, sender)
	})

	t.Run("smtp without host", func(t *testing.T) {
		_, err := NewSender(&config.Config{Email: config.EmailConfig{Transport: config.TransportSMTP}})
		require.ErrorIs(t, err, email.ErrInvalidConfig)
	})
}

func TestSecureCookies(t *testing.T) {
	assert.False(t, secureCookies(&config.Config{Server: config.ServerConfig{BaseURL: "http://localhost:8080"}}))
	assert.True(t, secureCookies(&config.Config{Server: config.ServerConfig{BaseURL: "https://example.com"}}))
	assert.True(t, secureCookies(&config.Config{Session: config.SessionConfig{Secure: true}}))
}
