// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"time"
)

// User is a provisioned operator allowed into the admin area.
type User struct {
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	ID           int64     `db:"id" json:"id"`
}
