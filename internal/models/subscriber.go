// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// SubscriptionStatus is the lifecycle state of a subscriber.
type SubscriptionStatus string

const (
	StatusPendingConfirmation SubscriptionStatus = "pending_confirmation"
	StatusConfirmed           SubscriptionStatus = "confirmed"
)

const (
	// MaxNameLength is the maximum subscriber name length in runes.
	MaxNameLength = 256
	// MaxEmailLength is the maximum address length accepted (RFC 5321 path limit).
	MaxEmailLength = 254
)

var (
	ErrEmptyName    = errors.New("name is required")
	ErrNameTooLong  = fmt.Errorf("name must be at most %d characters", MaxNameLength)
	ErrNameInvalid  = errors.New("name contains forbidden characters")
	ErrEmptyEmail   = errors.New("email is required")
	ErrInvalidEmail = errors.New("invalid email format")
)

// forbiddenNameChars are rejected in names because they are commonly used
// for markup or injection.
const forbiddenNameChars = `/()"<>\{}`

// Subscriber is a row of the subscriptions table.
type Subscriber struct { //nolint:govet // fieldalignment: readability over optimization
	ID           string             `db:"id" json:"id"`
	Email        string             `db:"email" json:"email"`
	Name         string             `db:"name" json:"name"`
	Status       SubscriptionStatus `db:"status" json:"status"`
	SubscribedAt time.Time          `db:"subscribed_at" json:"subscribed_at"`
}

// IsConfirmed reports whether the subscriber completed the double opt-in.
func (s *Subscriber) IsConfirmed() bool {
	return s.Status == StatusConfirmed
}

// SubscriptionToken binds a confirmation token hash to its subscriber.
type SubscriptionToken struct {
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	TokenHash    string    `db:"token_hash" json:"-"` // SHA256 hash
	SubscriberID string    `db:"subscriber_id" json:"subscriber_id"`
}

// NewSubscriber is a validated name/email pair, ready to be stored.
type NewSubscriber struct {
	Name  string
	Email string
}

// ParseNewSubscriber validates raw form input.
func ParseNewSubscriber(rawName, rawEmail string) (NewSubscriber, error) {
	name, err := ParseSubscriberName(rawName)
	if err != nil {
		return NewSubscriber{}, err
	}
	email, err := ParseSubscriberEmail(rawEmail)
	if err != nil {
		return NewSubscriber{}, err
	}
	return NewSubscriber{Name: name, Email: email}, nil
}

// ParseSubscriberName trims the name and checks length and characters.
func ParseSubscriberName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", ErrEmptyName
	}
	if !utf8.ValidString(name) {
		return "", ErrNameInvalid
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", ErrNameTooLong
	}
	for _, r := range name {
		if unicode.IsControl(r) || strings.ContainsRune(forbiddenNameChars, r) {
			return "", ErrNameInvalid
		}
	}
	return name, nil
}

// ParseSubscriberEmail accepts a bare address (no display name) with a
// non-empty local part and domain.
func ParseSubscriberEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", ErrEmptyEmail
	}
	if len(email) > MaxEmailLength {
		return "", ErrInvalidEmail
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Name != "" || addr.Address != email {
		return "", ErrInvalidEmail
	}

	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" {
		return "", ErrInvalidEmail
	}
	if strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") || strings.Contains(domain, "..") {
		return "", ErrInvalidEmail
	}

	return email, nil
}
