// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package subscription

import (
	"errors"
	"net/http"
)

// Kind classifies onboarding failures. The set is closed.
type Kind int

const (
	// KindInvalidInput means the visitor sent a bad name or email. Nothing was written.
	KindInvalidInput Kind = iota + 1
	// KindStorage means the subscriber and token could not be stored. Nothing was committed.
	KindStorage
	// KindDeliveryFailed means the rows are committed but the email did not go out.
	KindDeliveryFailed
)

var (
	ErrInvalidInput   = errors.New("invalid subscription input")
	ErrStorage        = errors.New("subscription storage failed")
	ErrDeliveryFailed = errors.New("confirmation email delivery failed")

	// ErrUnknownToken is returned by Confirm for unknown or used tokens.
	ErrUnknownToken = errors.New("unknown confirmation token")
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindStorage:
		return "storage"
	case KindDeliveryFailed:
		return "delivery_failed"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidInput:
		return ErrInvalidInput
	case KindStorage:
		return ErrStorage
	case KindDeliveryFailed:
		return ErrDeliveryFailed
	default:
		return nil
	}
}

// Error is returned by Onboard. Err is the underlying cause.
type Error struct {
	Err  error
	Kind Kind
}

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.sentinel().Error()
	}
	return e.Kind.sentinel().Error() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// KindOf returns the kind of err, or zero when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// StatusCode maps an Onboard result to the HTTP status of the response.
// Errors of unknown origin are server faults.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch KindOf(err) {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindStorage, KindDeliveryFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
