// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"fmt"
	"time"

	"codeberg.org/oliverandrich/newsletter/internal/models"
	"github.com/google/uuid"
	"github.com/vinovest/sqlx"
)

const upsertPendingSubscriber = `
INSERT INTO subscriptions (id, email, name, status, subscribed_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (email) DO UPDATE SET
    name = CASE WHEN subscriptions.status = 'pending_confirmation'
        THEN excluded.name ELSE subscriptions.name END
RETURNING id`

// StorePendingSubscriber upserts the subscriber keyed by email and, while
// the subscriber is still pending, replaces its confirmation token with
// tokenHash. Both writes commit together or not at all.
//
// A subscriber that already confirmed keeps its status and gets no token;
// callers detect this through the returned subscriber's status.
func (r *Repository) StorePendingSubscriber(ctx context.Context, sub models.NewSubscriber, tokenHash string) (*models.Subscriber, error) {
	var stored models.Subscriber
	now := time.Now().UTC()

	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var id string
		if err := tx.GetContext(ctx, &id, upsertPendingSubscriber,
			uuid.NewString(), sub.Email, sub.Name, models.StatusPendingConfirmation, now); err != nil {
			return fmt.Errorf("upsert subscriber: %w", wrapError(err))
		}
		if err := tx.GetContext(ctx, &stored, `SELECT * FROM subscriptions WHERE id = ?`, id); err != nil {
			return fmt.Errorf("load subscriber: %w", wrapError(err))
		}

		if stored.IsConfirmed() {
			return nil
		}

		return replaceSubscriptionToken(ctx, tx, stored.ID, tokenHash, now)
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// GetSubscriberByEmail retrieves a subscriber by email address.
func (r *Repository) GetSubscriberByEmail(ctx context.Context, email string) (*models.Subscriber, error) {
	var sub models.Subscriber
	if err := r.db.GetContext(ctx, &sub, `SELECT * FROM subscriptions WHERE email = ?`, email); err != nil {
		return nil, wrapError(err)
	}
	return &sub, nil
}

// GetSubscriberByID retrieves a subscriber by ID.
func (r *Repository) GetSubscriberByID(ctx context.Context, id string) (*models.Subscriber, error) {
	var sub models.Subscriber
	if err := r.db.GetContext(ctx, &sub, `SELECT * FROM subscriptions WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &sub, nil
}

// ListSubscribers returns subscribers, newest first.
func (r *Repository) ListSubscribers(ctx context.Context, limit int) ([]models.Subscriber, error) {
	var subs []models.Subscriber
	err := r.db.SelectContext(ctx, &subs,
		`SELECT * FROM subscriptions ORDER BY subscribed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return subs, nil
}

// CountSubscribersByStatus returns the number of subscribers per status.
// Statuses without subscribers are reported as zero.
func (r *Repository) CountSubscribersByStatus(ctx context.Context) (map[models.SubscriptionStatus]int64, error) {
	var rows []struct {
		Status models.SubscriptionStatus `db:"status"`
		Count  int64                     `db:"count"`
	}
	err := r.db.SelectContext(ctx, &rows,
		`SELECT status, COUNT(*) AS count FROM subscriptions GROUP BY status`)
	if err != nil {
		return nil, err
	}

	counts := map[models.SubscriptionStatus]int64{
		models.StatusPendingConfirmation: 0,
		models.StatusConfirmed:           0,
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// ConfirmSubscriber marks the subscriber owning tokenHash as confirmed and
// consumes the token. Returns ErrNotFound for an unknown or used token.
func (r *Repository) ConfirmSubscriber(ctx context.Context, tokenHash string) (string, error) {
	var subscriberID string

	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &subscriberID,
			`SELECT subscriber_id FROM subscription_tokens WHERE token_hash = ?`, tokenHash); err != nil {
			return wrapError(err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE subscriptions SET status = ? WHERE id = ?`,
			models.StatusConfirmed, subscriberID); err != nil {
			return fmt.Errorf("update subscriber status: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM subscription_tokens WHERE subscriber_id = ?`, subscriberID); err != nil {
			return fmt.Errorf("delete subscription token: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return subscriberID, nil
}
