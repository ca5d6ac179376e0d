// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"context"
	"testing"

	"codeberg.org/oliverandrich/newsletter/internal/config"
	"codeberg.org/oliverandrich/newsletter/internal/secret"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSMTPSender(t *testing.T) {
	t.Run("requires host", func(t *testing.T) {
		_, err := NewSMTPSender(&config.SMTPConfig{From: "news@example.com"})
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("requires from", func(t *testing.T) {
		_, err := NewSMTPSender(&config.SMTPConfig{Host: "smtp.example.com"})
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("valid", func(t *testing.T) {
		s, err := NewSMTPSender(&config.SMTPConfig{Host: "smtp.example.com", Port: 587, From: "news@example.com"})
		require.NoError(t, err)
		assert.NotNil(t, s)
	})
}

func TestSMTPSender_BuildMessage(t *testing.T) {
	s := &SMTPSender{cfg: &config.SMTPConfig{From: "news@example.com", FromName: "Newsletter"}}

	msg, err := s.buildMessage(Message{
		To:       "ursula@example.com",
		Subject:  "Welcome",
		HTMLBody: "<p>Hi</p>",
		TextBody: "Hi",
	})
	require.NoError(t, err)

	from := msg.GetFromString()
	require.Len(t, from, 1)
	assert.Contains(t, from[0], "news@example.com")
	assert.Equal(t, []string{"<ursula@example.com>"}, msg.GetToString())
}

func TestSMTPSender_BuildMessageRejectsBadRecipient(t *testing.T) {
	s := &SMTPSender{cfg: &config.SMTPConfig{From: "news@example.com"}}

	_, err := s.buildMessage(Message{To: "not an address", Subject: "s", HTMLBody: "h", TextBody: "t"})
	assert.Error(t, err)
}

func TestSMTPSender_ClientOptions(t *testing.T) {
	s := &SMTPSender{cfg: &config.SMTPConfig{
		Host:     "smtp.example.com",
		Port:     465,
		Username: "user",
		Password: secret.New("pw"),
		TLS:      true,
	}}
	// Port, TLS policy, SSL and three auth options.
	assert.Len(t, s.clientOptions(), 6)

	s.cfg.TLS = false
	s.cfg.Password = secret.New("")
	assert.Len(t, s.clientOptions(), 2)
}

func TestSMTPSender_SendValidatesFirst(t *testing.T) {
	s := &SMTPSender{cfg: &config.SMTPConfig{Host: "smtp.example.com", From: "news@example.com"}}

	err := s.Send(context.Background(), Message{To: "ursula@example.com"})
	assert.ErrorIs(t, err, ErrInvalidMessage)
}
