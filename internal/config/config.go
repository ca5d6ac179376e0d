// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"codeberg.org/oliverandrich/newsletter/internal/secret"
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

// configPath is set by the --config flag and read lazily by the TOML sources.
var configPath = "config.toml"

var configFile = altsrc.NewStringPtrSourcer(&configPath)

// Email transports.
const (
	TransportHTTP = "http"
	TransportSMTP = "smtp"
)

// ConfirmPath is where confirmation links point when no confirm-url is set.
const ConfirmPath = "/subscriptions/confirm"

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	Email    EmailConfig
	SMTP     SMTPConfig
	Session  SessionConfig
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string
	MaxBodySize int // in MB
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string
}

// EmailConfig configures the HTTP email provider and the confirmation link.
type EmailConfig struct { //nolint:govet // fieldalignment not critical
	Transport  string // http, smtp
	BaseURL    string // Provider base URL, the client posts to {BaseURL}/email
	Sender     string // From address
	APIToken   secret.String
	Timeout    time.Duration
	ConfirmURL string // Absolute URL of the confirmation endpoint
}

type SMTPConfig struct { //nolint:govet // fieldalignment not critical
	Host     string
	Port     int
	Username string
	Password secret.String
	From     string
	FromName string
	TLS      bool
	Timeout  time.Duration
}

type SessionConfig struct { //nolint:govet // fieldalignment not critical
	CookieName string // Session cookie name
	MaxAge     int    // Session max age in seconds
	HashKey    string // 32-byte hex string for HMAC signing
	BlockKey   string // 32-byte hex string for AES encryption (optional)
	Secure     bool   // Set the Secure attribute on cookies
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		Email: EmailConfig{
			Transport:  strings.ToLower(cmd.String("email-transport")),
			BaseURL:    cmd.String("email-base-url"),
			Sender:     cmd.String("email-sender"),
			APIToken:   secret.New(cmd.String("email-api-token")),
			Timeout:    cmd.Duration("email-timeout"),
			ConfirmURL: cmd.String("confirm-url"),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: secret.New(cmd.String("smtp-password")),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			TLS:      cmd.Bool("smtp-tls"),
			Timeout:  cmd.Duration("email-timeout"),
		},
		Session: SessionConfig{
			CookieName: cmd.String("session-cookie-name"),
			MaxAge:     int(cmd.Int("session-max-age")),
			HashKey:    cmd.String("session-hash-key"),
			BlockKey:   cmd.String("session-block-key"),
			Secure:     cmd.Bool("session-secure"),
		},
	}

	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills values derived from other settings.
func applyDefaults(cfg *Config) {
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}
	if cfg.Email.ConfirmURL == "" {
		cfg.Email.ConfirmURL = strings.TrimSuffix(cfg.Server.BaseURL, "/") + ConfirmPath
	}
	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.Email.Sender
	}
}

// buildBaseURL derives the public URL from host and port. TLS is
// terminated by a proxy, so the derived URL is always plain HTTP.
func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	if cfg.Server.Port == 80 {
		return fmt.Sprintf("http://%s", host)
	}
	return fmt.Sprintf("http://%s:%d", host, cfg.Server.Port)
}

// Validate checks the settings the serve command depends on.
func (c *Config) Validate() error {
	var errs []error

	if err := validateAbsoluteURL(c.Server.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("base-url: %w", err))
	}
	if err := validateAbsoluteURL(c.Email.ConfirmURL); err != nil {
		errs = append(errs, fmt.Errorf("confirm-url: %w", err))
	}
	if _, err := mail.ParseAddress(c.Email.Sender); err != nil {
		errs = append(errs, errors.New("email-sender: must be a valid email address"))
	}
	if c.Email.Timeout <= 0 {
		errs = append(errs, errors.New("email-timeout: must be positive"))
	}

	switch c.Email.Transport {
	case TransportHTTP, "":
		if err := validateAbsoluteURL(c.Email.BaseURL); err != nil {
			errs = append(errs, fmt.Errorf("email-base-url: %w", err))
		}
		if c.Email.APIToken.IsEmpty() {
			errs = append(errs, errors.New("email-api-token: is required"))
		}
	case TransportSMTP:
		if c.SMTP.Host == "" {
			errs = append(errs, errors.New("smtp-host: is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("email-transport: unknown transport %q", c.Email.Transport))
	}

	return errors.Join(errs...)
}

func validateAbsoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.New("must be a valid URL")
	}
	if u.Scheme == "" || u.Host == "" {
		return errors.New("must be an absolute URL")
	}
	return nil
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Value:       "config.toml",
			Usage:       "Path to configuration file",
			Destination: &configPath,
			Sources:     cli.EnvVars("CONFIG"),
		},
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: cli.NewValueSourceChain(cli.EnvVar("HOST"), toml.TOML("server.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PORT"), toml.TOML("server.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Base URL for the application",
			Sources: cli.NewValueSourceChain(cli.EnvVar("BASE_URL"), toml.TOML("server.base_url", configFile)),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   1,
			Usage:   "Maximum request body size in MB",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAX_BODY_SIZE"), toml.TOML("server.max_body_size", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_LEVEL"), toml.TOML("log.level", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_FORMAT"), toml.TOML("log.format", configFile)),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/newsletter.db",
			Usage:   "Database DSN",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DATABASE_DSN"), toml.TOML("database.dsn", configFile)),
		},
		// Email flags
		&cli.StringFlag{
			Name:    "email-transport",
			Value:   TransportHTTP,
			Usage:   "Email transport (http, smtp)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("EMAIL_TRANSPORT"), toml.TOML("email.transport", configFile)),
		},
		&cli.StringFlag{
			Name:    "email-base-url",
			Usage:   "Base URL of the email provider API",
			Sources: cli.NewValueSourceChain(cli.EnvVar("EMAIL_BASE_URL"), toml.TOML("email.base_url", configFile)),
		},
		&cli.StringFlag{
			Name:    "email-sender",
			Usage:   "Sender address for outgoing emails",
			Sources: cli.NewValueSourceChain(cli.EnvVar("EMAIL_SENDER"), toml.TOML("email.sender", configFile)),
		},
		&cli.StringFlag{
			Name:    "email-api-token",
			Usage:   "API token for the email provider",
			Sources: cli.NewValueSourceChain(cli.EnvVar("EMAIL_API_TOKEN"), toml.TOML("email.api_token", configFile)),
		},
		&cli.DurationFlag{
			Name:    "email-timeout",
			Value:   10 * time.Second,
			Usage:   "Timeout for a single email delivery",
			Sources: cli.NewValueSourceChain(cli.EnvVar("EMAIL_TIMEOUT"), toml.TOML("email.timeout", configFile)),
		},
		&cli.StringFlag{
			Name:    "confirm-url",
			Usage:   "Absolute confirmation URL (defaults to base_url + /subscriptions/confirm)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CONFIRM_URL"), toml.TOML("email.confirm_url", configFile)),
		},
		// SMTP flags
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP server host",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_HOST"), toml.TOML("smtp.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP server port",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PORT"), toml.TOML("smtp.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_USERNAME"), toml.TOML("smtp.username", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PASSWORD"), toml.TOML("smtp.password", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Usage:   "SMTP from address (defaults to email-sender)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM"), toml.TOML("smtp.from", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Usage:   "SMTP from display name",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM_NAME"), toml.TOML("smtp.from_name", configFile)),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for SMTP",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_TLS"), toml.TOML("smtp.tls", configFile)),
		},
		// Session flags
		&cli.StringFlag{
			Name:    "session-cookie-name",
			Value:   "_session",
			Usage:   "Session cookie name",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_COOKIE_NAME"), toml.TOML("session.cookie_name", configFile)),
		},
		&cli.IntFlag{
			Name:    "session-max-age",
			Value:   604800, // 7 days in seconds
			Usage:   "Session max age in seconds",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_MAX_AGE"), toml.TOML("session.max_age", configFile)),
		},
		&cli.StringFlag{
			Name:    "session-hash-key",
			Usage:   "Session hash key (32-byte hex, auto-generated if empty in dev)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_HASH_KEY"), toml.TOML("session.hash_key", configFile)),
		},
		&cli.StringFlag{
			Name:    "session-block-key",
			Usage:   "Session block key for encryption (32-byte hex, optional)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_BLOCK_KEY"), toml.TOML("session.block_key", configFile)),
		},
		&cli.BoolFlag{
			Name:    "session-secure",
			Usage:   "Mark session cookies as Secure (enable behind HTTPS)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_SECURE"), toml.TOML("session.secure", configFile)),
		},
	}
}
