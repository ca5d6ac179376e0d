// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package secret wraps sensitive configuration values so they cannot leak
// through logging, formatting or serialization.
package secret

import (
	"fmt"
	"log/slog"
)

const redacted = "[REDACTED]"

// String holds a sensitive value. The zero value is an empty secret.
// The only way to read the value is Reveal.
type String struct {
	value string
}

// New wraps value as a secret.
func New(value string) String {
	return String{value: value}
}

// Reveal returns the wrapped value. Call it only where the value is
// handed to its consumer (an auth header, a password hash check).
func (s String) Reveal() string {
	return s.value
}

// IsEmpty reports whether no value is set.
func (s String) IsEmpty() bool {
	return s.value == ""
}

func (s String) String() string {
	return redacted
}

func (s String) GoString() string {
	return "secret.String{" + redacted + "}"
}

// Format covers %v, %+v, %#v, %s, %q and friends.
func (s String) Format(f fmt.State, verb rune) {
	switch verb {
	case 'v':
		if f.Flag('#') {
			_, _ = fmt.Fprint(f, s.GoString())
			return
		}
		_, _ = fmt.Fprint(f, redacted)
	case 'q':
		_, _ = fmt.Fprintf(f, "%q", redacted)
	default:
		_, _ = fmt.Fprint(f, redacted)
	}
}

// LogValue implements slog.LogValuer.
func (s String) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

func (s String) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

func (s String) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}
