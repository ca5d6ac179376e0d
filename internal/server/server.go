// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package server wires the application together and runs the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"codeberg.org/oliverandrich/newsletter/internal/config"
	"codeberg.org/oliverandrich/newsletter/internal/database"
	"codeberg.org/oliverandrich/newsletter/internal/i18n"
	"codeberg.org/oliverandrich/newsletter/internal/metrics"
	"codeberg.org/oliverandrich/newsletter/internal/repository"
	"codeberg.org/oliverandrich/newsletter/internal/services/email"
	"codeberg.org/oliverandrich/newsletter/internal/sse"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 10 * time.Second

// Deps are the long-lived components the HTTP server is built from.
type Deps struct {
	Config  *config.Config
	Repo    *repository.Repository
	Sender  email.Sender
	Metrics *metrics.Metrics
	Hub     *sse.Hub
}

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"email_transport", cfg.Email.Transport,
	)

	// Database, migrations run on open
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	if initErr := i18n.Init(); initErr != nil {
		return fmt.Errorf("failed to init i18n: %w", initErr)
	}

	m, err := metrics.NewDefault()
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	sender, err := NewSender(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up email delivery: %w", err)
	}

	e, err := New(Deps{
		Config:  cfg,
		Repo:    repository.New(db),
		Sender:  sender,
		Metrics: m,
		Hub:     sse.NewHub(),
	})
	if err != nil {
		return err
	}

	return startWithGracefulShutdown(ctx, e, cfg)
}

// NewSender returns the email sender for the configured transport.
func NewSender(cfg *config.Config) (email.Sender, error) {
	if cfg.Email.Transport == config.TransportSMTP {
		return email.NewSMTPSender(&cfg.SMTP)
	}
	return email.NewClient(&cfg.Email)
}

// secureCookies reports whether cookies need the Secure attribute.
func secureCookies(cfg *config.Config) bool {
	return cfg.Session.Secure || strings.HasPrefix(cfg.Server.BaseURL, "https://")
}

func startWithGracefulShutdown(ctx context.Context, e *echo.Echo, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	errChan := make(chan error, 1)
	go func() {
		slog.Info("server running", "url", cfg.Server.BaseURL)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
