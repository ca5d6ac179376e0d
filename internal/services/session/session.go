// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package session implements stateless operator sessions in a signed
// (and optionally encrypted) cookie.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"codeberg.org/oliverandrich/newsletter/internal/config"
	"github.com/gorilla/securecookie"
)

const keyLength = 32

// Data is the payload stored in the session cookie.
type Data struct {
	ExpiresAt time.Time `json:"exp"`
	Username  string    `json:"usr"`
	UserID    int64     `json:"uid"`
}

// Manager creates and parses session cookies.
type Manager struct {
	codec  *securecookie.SecureCookie
	name   string
	maxAge int
	secure bool
}

// NewManager builds a manager from cfg. An empty hash key generates a
// random one, which invalidates sessions on restart.
func NewManager(cfg *config.SessionConfig, secure bool) (*Manager, error) {
	hashKey, err := decodeKey(cfg.HashKey, "hash")
	if err != nil {
		return nil, err
	}
	if hashKey == nil {
		hashKey = make([]byte, keyLength)
		if _, err := rand.Read(hashKey); err != nil {
			return nil, fmt.Errorf("generating session hash key: %w", err)
		}
		slog.Warn("session hash key not configured, generated a random key")
	}

	blockKey, err := decodeKey(cfg.BlockKey, "block")
	if err != nil {
		return nil, err
	}

	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(cfg.MaxAge)
	codec.SetSerializer(securecookie.JSONEncoder{})

	return &Manager{
		codec:  codec,
		name:   cfg.CookieName,
		maxAge: cfg.MaxAge,
		secure: secure,
	}, nil
}

func decodeKey(raw, kind string) ([]byte, error) {
	if raw == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid session %s key: %w", kind, err)
	}
	if len(key) != keyLength {
		return nil, fmt.Errorf("invalid session %s key: must be %d bytes, got %d", kind, keyLength, len(key))
	}
	return key, nil
}

// Create returns a cookie carrying a new session for the user.
func (m *Manager) Create(userID int64, username string) (*http.Cookie, error) {
	data := Data{
		UserID:    userID,
		Username:  username,
		ExpiresAt: time.Now().Add(time.Duration(m.maxAge) * time.Second),
	}

	encoded, err := m.codec.Encode(m.name, data)
	if err != nil {
		return nil, fmt.Errorf("encoding session: %w", err)
	}

	cookie := m.cookie()
	cookie.Value = encoded
	cookie.MaxAge = m.maxAge
	return cookie, nil
}

// Parse returns the session of the request, or nil when there is no
// valid session. Invalid, tampered and expired cookies are not errors.
func (m *Manager) Parse(r *http.Request) (*Data, error) {
	cookie, err := r.Cookie(m.name)
	if err != nil {
		return nil, nil //nolint:nilerr // no cookie means no session
	}

	var data Data
	if err := m.codec.Decode(m.name, cookie.Value, &data); err != nil {
		slog.Debug("session_invalid", "error", err)
		return nil, nil
	}
	if time.Now().After(data.ExpiresAt) {
		return nil, nil
	}
	return &data, nil
}

// Clear returns a cookie that removes the session.
func (m *Manager) Clear() *http.Cookie {
	cookie := m.cookie()
	cookie.MaxAge = -1
	return cookie
}

func (m *Manager) cookie() *http.Cookie {
	return &http.Cookie{
		Name:     m.name,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
