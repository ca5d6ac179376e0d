// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth_test

import (
	"context"
	"testing"

	"codeberg.org/oliverandrich/newsletter/internal/auth"
	"codeberg.org/oliverandrich/newsletter/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestGetUser(t *testing.T) {
	user := &models.User{ID: 123, Username: "testuser"}
	ctx := auth.SetUser(context.Background(), user)

	assert.Equal(t, user, auth.GetUser(ctx))
	assert.True(t, auth.IsAuthenticated(ctx))
}

func TestGetUser_Nil(t *testing.T) {
	ctx := context.Background()

	assert.Nil(t, auth.GetUser(ctx))
	assert.False(t, auth.IsAuthenticated(ctx))
}
