// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package email delivers transactional emails, either through an HTTP
// email provider (Client) or over SMTP (SMTPSender).
package email

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransport covers connection failures and timeouts.
	ErrTransport = errors.New("email transport failed")
	// ErrRemoteRejected is matched by RemoteRejectedError.
	ErrRemoteRejected = errors.New("email rejected by provider")
	// ErrInvalidMessage is returned before any network call for incomplete messages.
	ErrInvalidMessage = errors.New("invalid email message")
	// ErrInvalidConfig is returned by constructors.
	ErrInvalidConfig = errors.New("invalid email configuration")
)

// RemoteRejectedError reports a non-2xx provider response.
type RemoteRejectedError struct {
	StatusCode int
}

func (e *RemoteRejectedError) Error() string {
	return fmt.Sprintf("%s: status %d", ErrRemoteRejected, e.StatusCode)
}

// Is makes errors.Is(err, ErrRemoteRejected) match.
func (e *RemoteRejectedError) Is(target error) bool {
	return target == ErrRemoteRejected
}

// Message is a single outbound email. The sender address is fixed per
// Sender and not part of the message.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// Validate checks that all fields are populated.
func (m Message) Validate() error {
	switch {
	case strings.TrimSpace(m.To) == "":
		return fmt.Errorf("%w: recipient is required", ErrInvalidMessage)
	case strings.TrimSpace(m.Subject) == "":
		return fmt.Errorf("%w: subject is required", ErrInvalidMessage)
	case strings.TrimSpace(m.HTMLBody) == "":
		return fmt.Errorf("%w: html body is required", ErrInvalidMessage)
	case strings.TrimSpace(m.TextBody) == "":
		return fmt.Errorf("%w: text body is required", ErrInvalidMessage)
	}
	return nil
}

// Sender delivers a message. Implementations perform exactly one delivery
// attempt per call and never retry.
//
// Failures fall into three classes: ErrInvalidMessage from Message.Validate
// before any network call, ErrTransport when the provider could not be
// reached in time, and ErrRemoteRejected when it answered with an error.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
