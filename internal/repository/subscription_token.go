// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"fmt"
	"time"

	"codeberg.org/oliverandrich/newsletter/internal/models"
	"github.com/vinovest/sqlx"
)

// replaceSubscriptionToken drops any previous token of the subscriber and
// stores the new one, so only the most recently emailed link confirms.
func replaceSubscriptionToken(ctx context.Context, tx *sqlx.Tx, subscriberID, tokenHash string, now time.Time) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM subscription_tokens WHERE subscriber_id = ?`, subscriberID); err != nil {
		return fmt.Errorf("delete previous token: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO subscription_tokens (token_hash, subscriber_id, created_at) VALUES (?, ?, ?)`,
		tokenHash, subscriberID, now); err != nil {
		return fmt.Errorf("insert token: %w", wrapError(err))
	}
	return nil
}

// GetSubscriptionToken retrieves a confirmation token by hash.
func (r *Repository) GetSubscriptionToken(ctx context.Context, tokenHash string) (*models.SubscriptionToken, error) {
	var token models.SubscriptionToken
	err := r.db.GetContext(ctx, &token, `SELECT * FROM subscription_tokens WHERE token_hash = ?`, tokenHash)
	if err != nil {
		return nil, wrapError(err)
	}
	return &token, nil
}

// GetSubscriptionTokenBySubscriber retrieves the active token of a subscriber.
func (r *Repository) GetSubscriptionTokenBySubscriber(ctx context.Context, subscriberID string) (*models.SubscriptionToken, error) {
	var token models.SubscriptionToken
	err := r.db.GetContext(ctx, &token, `SELECT * FROM subscription_tokens WHERE subscriber_id = ?`, subscriberID)
	if err != nil {
		return nil, wrapError(err)
	}
	return &token, nil
}
