// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"codeberg.org/oliverandrich/newsletter/internal/config"
	"codeberg.org/oliverandrich/newsletter/internal/secret"
)

// basicAuthUser is the fixed username the provider expects.
const basicAuthUser = "api"

// maxDrainBytes bounds how much of a response body is read before the
// connection is returned to the pool.
const maxDrainBytes = 64 << 10

// Client posts form-encoded emails to {base_url}/email.
type Client struct {
	http     *http.Client
	endpoint string
	sender   string
	token    secret.String
}

// NewClient creates an HTTP provider client. The timeout applies to the
// whole request including reading the response.
func NewClient(cfg *config.EmailConfig) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: base url must be absolute", ErrInvalidConfig)
	}
	if _, err := mail.ParseAddress(cfg.Sender); err != nil {
		return nil, fmt.Errorf("%w: sender must be a valid email address", ErrInvalidConfig)
	}
	if cfg.APIToken.IsEmpty() {
		return nil, fmt.Errorf("%w: api token is required", ErrInvalidConfig)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}

	return &Client{
		http:     &http.Client{Timeout: cfg.Timeout},
		endpoint: base.JoinPath("email").String(),
		sender:   cfg.Sender,
		token:    cfg.APIToken,
	}, nil
}

// Sender returns the configured from address.
func (c *Client) Sender() string {
	return c.sender
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.http.Timeout
}

// Send performs one POST to the provider. Non-2xx answers yield a
// *RemoteRejectedError, everything else that fails wraps ErrTransport.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	form := url.Values{}
	form.Set("From", c.sender)
	form.Set("To", msg.To)
	form.Set("Subject", msg.Subject)
	form.Set("HtmlBody", msg.HTMLBody)
	form.Set("TextBody", msg.TextBody)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: build request: %w", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(basicAuthUser, c.token.Reveal())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RemoteRejectedError{StatusCode: resp.StatusCode}
	}
	return nil
}
