// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package metrics exposes Prometheus collectors for onboarding, email
// delivery and HTTP traffic.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Onboarding results.
const (
	ResultSuccess          = "success"
	ResultAlreadyConfirmed = "already_confirmed"
	ResultInvalidInput     = "invalid_input"
	ResultStorageError     = "storage_error"
	ResultDeliveryFailed   = "delivery_failed"
	ResultUnknownToken     = "unknown_token"
	ResultError            = "error"
)

// Metrics holds the application collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	onboardings   *prometheus.CounterVec
	delivery      *prometheus.HistogramVec
	confirmations *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	gatherer      prometheus.Gatherer
}

// New creates the collectors and registers them with reg. Collectors that
// are already registered are reused.
func New(reg prometheus.Registerer, gatherer prometheus.Gatherer) (*Metrics, error) {
	m := &Metrics{
		onboardings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsletter_onboarding_total",
			Help: "Subscription requests by result",
		}, []string{"result"}),
		delivery: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "newsletter_email_delivery_seconds",
			Help:    "Duration of confirmation email deliveries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"result"}),
		confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsletter_confirmations_total",
			Help: "Confirmation link visits by result",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsletter_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "path", "status"}),
		gatherer: gatherer,
	}

	var err error
	if m.onboardings, err = register(reg, m.onboardings); err != nil {
		return nil, err
	}
	if m.delivery, err = register(reg, m.delivery); err != nil {
		return nil, err
	}
	if m.confirmations, err = register(reg, m.confirmations); err != nil {
		return nil, err
	}
	if m.httpRequests, err = register(reg, m.httpRequests); err != nil {
		return nil, err
	}
	return m, nil
}

// NewDefault registers with the global Prometheus registry.
func NewDefault() (*Metrics, error) {
	return New(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// ObserveOnboarding counts one onboarding attempt.
func (m *Metrics) ObserveOnboarding(result string) {
	if m == nil {
		return
	}
	m.onboardings.WithLabelValues(result).Inc()
}

// ObserveDelivery records the duration of one email delivery.
func (m *Metrics) ObserveDelivery(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultDeliveryFailed
	}
	m.delivery.WithLabelValues(result).Observe(d.Seconds())
}

// ObserveConfirmation counts one confirmation attempt.
func (m *Metrics) ObserveConfirmation(result string) {
	if m == nil {
		return
	}
	m.confirmations.WithLabelValues(result).Inc()
}

// Middleware counts requests by route pattern, so path parameters and
// unknown URLs do not create new series.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if m == nil {
				return err
			}

			status := c.Response().Status
			var he *echo.HTTPError
			if errors.As(err, &he) {
				status = he.Code
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			m.httpRequests.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			return err
		}
	}
}

// Handler serves the registered metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
