// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"

	"github.com/openledger/openledger/internal/model"
)

const subscriptionColumns = `id, user_id, endpoint, auth_key, p256dh_key, created_at`

func scanSubscription(row interface{ Scan(...any) error }) (model.PushSubscription, error) {
	var s model.PushSubscription
	err := row.Scan(&s.ID, &s.UserID, &s.Endpoint, &s.AuthKey, &s.P256dhKey, &s.CreatedAt)
	return s, err
}

// CreateSubscriptionParams holds the fields for CreateSubscription.
type CreateSubscriptionParams struct {
	UserID    int64
	Endpoint  string
	AuthKey   string
	P256dhKey string
	CreatedAt time.Time
}

// CreateSubscription registers a push endpoint, replacing keys if the
// endpoint is already known.
func (q *Queries) CreateSubscription(ctx context.Context, arg CreateSubscriptionParams) (model.PushSubscription, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO push_subscriptions (user_id, endpoint, auth_key, p256dh_key, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (endpoint) DO UPDATE SET
			user_id = excluded.user_id,
			auth_key = excluded.auth_key,
			p256dh_key = excluded.p256dh_key
		RETURNING `+subscriptionColumns,
		arg.UserID, arg.Endpoint, arg.AuthKey, arg.P256dhKey, arg.CreatedAt)
	return scanSubscription(row)
}

// GetSubscription returns the subscription with the given ID.
func (q *Queries) GetSubscription(ctx context.Context, id int64) (model.PushSubscription, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM push_subscriptions WHERE id = ?`, id)
	return scanSubscription(row)
}

// ListSubscriptions returns all registered push endpoints.
func (q *Queries) ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM push_subscriptions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []model.PushSubscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// ListSubscriptionsByUser returns the push endpoints registered by a user.
func (q *Queries) ListSubscriptionsByUser(ctx context.Context, userID int64) ([]model.PushSubscription, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM push_subscriptions WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []model.PushSubscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// DeleteSubscriptionByEndpoint removes the subscription for a push endpoint.
func (q *Queries) DeleteSubscriptionByEndpoint(ctx context.Context, endpoint string) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	return err
}

const deliveryColumns = `id, subscription_id, payload, status, attempts, last_error, created_at, updated_at`

func scanDelivery(row interface{ Scan(...any) error }) (model.NotificationDelivery, error) {
	var d model.NotificationDelivery
	err := row.Scan(&d.ID, &d.SubscriptionID, &d.Payload, &d.Status, &d.Attempts,
		&d.LastError, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

// CreateDelivery records a pending notification delivery.
func (q *Queries) CreateDelivery(ctx context.Context, subscriptionID int64, payload string, now time.Time) (model.NotificationDelivery, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO notification_deliveries (subscription_id, payload, status, created_at, updated_at)
		VALUES (?, ?, 'pending', ?, ?)
		RETURNING `+deliveryColumns,
		subscriptionID, payload, now, now)
	return scanDelivery(row)
}

// UpdateDeliveryStatus records the outcome of a delivery attempt.
func (q *Queries) UpdateDeliveryStatus(ctx context.Context, id int64, status string, attempts int64, lastError string, now time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE notification_deliveries
		SET status = ?, attempts = ?, last_error = ?, updated_at = ?
		WHERE id = ?`,
		status, attempts, lastError, now, id)
	return err
}

// ListDeliveriesParams filters and pages ListDeliveries.
type ListDeliveriesParams struct {
	Status string // empty for all
	Limit  int64
	Offset int64
}

// ListDeliveries returns delivery records newest first.
func (q *Queries) ListDeliveries(ctx context.Context, arg ListDeliveriesParams) ([]model.NotificationDelivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM notification_deliveries WHERE 1=1`
	var args []any
	if arg.Status != "" {
		query += ` AND status = ?`
		args = append(args, arg.Status)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, arg.Limit, arg.Offset)

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.NotificationDelivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// PruneDeliveries removes settled delivery records older than the cutoff.
func (q *Queries) PruneDeliveries(ctx context.Context, before time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM notification_deliveries WHERE status != 'pending' AND updated_at < ?`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
