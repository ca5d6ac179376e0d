// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package subscription implements double opt-in onboarding: it stores a
// pending subscriber together with a fresh confirmation token and mails
// the confirmation link.
package subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"codeberg.org/oliverandrich/newsletter/internal/i18n"
	"codeberg.org/oliverandrich/newsletter/internal/metrics"
	"codeberg.org/oliverandrich/newsletter/internal/models"
	"codeberg.org/oliverandrich/newsletter/internal/repository"
	"codeberg.org/oliverandrich/newsletter/internal/services/email"
	"codeberg.org/oliverandrich/newsletter/internal/templates"
)

const htmlSpecialChars = `&<>"'`

// TokenParam is the query parameter carrying the token in confirmation links.
const TokenParam = "subscription_token"

// Event names published to the Notifier.
const (
	EventOnboarded = "subscriber_onboarded"
	EventConfirmed = "subscriber_confirmed"
)

// Store persists subscribers and their confirmation tokens.
type Store interface {
	StorePendingSubscriber(ctx context.Context, sub models.NewSubscriber, tokenHash string) (*models.Subscriber, error)
	ConfirmSubscriber(ctx context.Context, tokenHash string) (string, error)
}

// Notifier receives subscriber events. Publish must not block.
type Notifier interface {
	Publish(event, data string)
}

// Service runs the onboarding pipeline.
type Service struct {
	store      Store
	sender     email.Sender
	confirmURL *url.URL
	metrics    *metrics.Metrics
	notifier   Notifier
}

// NewService creates the pipeline. confirmURL is the absolute address of
// the confirmation endpoint; the token is appended as a query parameter.
func NewService(store Store, sender email.Sender, confirmURL string) (*Service, error) {
	u, err := url.Parse(strings.TrimSpace(confirmURL))
	if err != nil {
		return nil, fmt.Errorf("invalid confirm url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.New("invalid confirm url: must be absolute")
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return nil, errors.New("invalid confirm url: must not carry a query or fragment")
	}
	// The HTML body escapes these, so the two bodies would carry different links.
	if strings.ContainsAny(u.String(), htmlSpecialChars) {
		return nil, errors.New("invalid confirm url: must not contain & < > \" or '")
	}

	return &Service{
		store:      store,
		sender:     sender,
		confirmURL: u,
	}, nil
}

// WithMetrics records onboarding results and delivery durations.
func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// WithNotifier publishes subscriber events, e.g. to the admin live feed.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// Onboard validates the submission, stores the pending subscriber and its
// new token in one transaction and, after commit, sends the confirmation
// email. The returned error is an *Error.
//
// Delivery runs detached from ctx cancellation and is bounded by the
// sender's own timeout. A delivery failure leaves the committed rows in
// place; a later submission issues a new token.
func (s *Service) Onboard(ctx context.Context, rawName, rawEmail string) error {
	sub, err := models.ParseNewSubscriber(rawName, rawEmail)
	if err != nil {
		s.metrics.ObserveOnboarding(metrics.ResultInvalidInput)
		return newError(KindInvalidInput, err)
	}

	token, tokenHash, err := GenerateToken()
	if err != nil {
		s.metrics.ObserveOnboarding(metrics.ResultStorageError)
		return newError(KindStorage, err)
	}

	stored, err := s.store.StorePendingSubscriber(ctx, sub, tokenHash)
	if err != nil {
		slog.Error("subscriber_store_failed", "error", err)
		s.metrics.ObserveOnboarding(metrics.ResultStorageError)
		return newError(KindStorage, err)
	}

	// Confirmed subscribers stay confirmed and get no new link.
	if stored.IsConfirmed() {
		slog.Info("subscriber_already_confirmed", "subscriber_id", stored.ID)
		s.metrics.ObserveOnboarding(metrics.ResultAlreadyConfirmed)
		return nil
	}

	msg, err := s.ConfirmationMessage(ctx, stored, token)
	if err != nil {
		s.metrics.ObserveOnboarding(metrics.ResultDeliveryFailed)
		return newError(KindDeliveryFailed, err)
	}

	start := time.Now()
	err = s.sender.Send(context.WithoutCancel(ctx), msg)
	s.metrics.ObserveDelivery(time.Since(start), err)
	if err != nil {
		slog.Error("confirmation_email_failed", "subscriber_id", stored.ID, "error", err)
		s.metrics.ObserveOnboarding(metrics.ResultDeliveryFailed)
		return newError(KindDeliveryFailed, err)
	}

	slog.Info("subscriber_onboarded", "subscriber_id", stored.ID)
	s.metrics.ObserveOnboarding(metrics.ResultSuccess)
	s.publish(EventOnboarded, stored)
	return nil
}

// Confirm activates the subscriber owning token and consumes the token.
// Unknown, superseded and used tokens yield ErrUnknownToken.
func (s *Service) Confirm(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		s.metrics.ObserveConfirmation(metrics.ResultUnknownToken)
		return ErrUnknownToken
	}

	subscriberID, err := s.store.ConfirmSubscriber(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.ObserveConfirmation(metrics.ResultUnknownToken)
			return ErrUnknownToken
		}
		s.metrics.ObserveConfirmation(metrics.ResultError)
		return fmt.Errorf("failed to confirm subscriber: %w", err)
	}

	slog.Info("subscriber_confirmed", "subscriber_id", subscriberID)
	s.metrics.ObserveConfirmation(metrics.ResultSuccess)
	s.publish(EventConfirmed, &models.Subscriber{ID: subscriberID, Status: models.StatusConfirmed})
	return nil
}

// ConfirmationLink returns the absolute link that confirms token.
func (s *Service) ConfirmationLink(token string) string {
	u := *s.confirmURL
	u.RawQuery = url.Values{TokenParam: {token}}.Encode()
	return u.String()
}

// ConfirmationMessage builds the confirmation email in the locale of ctx.
// The HTML and text bodies carry the same link.
func (s *Service) ConfirmationMessage(ctx context.Context, sub *models.Subscriber, token string) (email.Message, error) {
	link := s.ConfirmationLink(token)

	var html bytes.Buffer
	if err := templates.ConfirmationEmail(sub.Name, link).Render(ctx, &html); err != nil {
		return email.Message{}, fmt.Errorf("failed to render confirmation email: %w", err)
	}

	return email.Message{
		To:       sub.Email,
		Subject:  i18n.T(ctx, "email_confirmation_subject"),
		HTMLBody: html.String(),
		TextBody: i18n.TData(ctx, "email_confirmation_text", map[string]any{
			"Name":       sub.Name,
			"ConfirmURL": link,
		}),
	}, nil
}

func (s *Service) publish(event string, sub *models.Subscriber) {
	if s.notifier == nil {
		return
	}
	data, err := json.Marshal(map[string]string{
		"id":     sub.ID,
		"email":  sub.Email,
		"status": string(sub.Status),
	})
	if err != nil {
		return
	}
	s.notifier.Publish(event, string(data))
}
