// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package subscription

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// TokenLength is the number of random bytes in a confirmation token.
const TokenLength = 32

// GenerateToken returns a new confirmation token and the SHA256 hash
// that is stored in its place.
func GenerateToken() (token, hash string, err error) {
	b := make([]byte, TokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	token = hex.EncodeToString(b)
	return token, HashToken(token), nil
}

// HashToken computes the SHA256 hash of a token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
