// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"

	"github.com/openledger/openledger/internal/model"
)

// GetConfig returns a single settings entry by key.
func (q *Queries) GetConfig(ctx context.Context, key string) (model.Config, error) {
	var c model.Config
	err := q.db.QueryRowContext(ctx,
		`SELECT id, key, value, created_at, updated_at FROM config WHERE key = ?`, key).
		Scan(&c.ID, &c.Key, &c.Value, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// ListConfig returns all settings entries.
func (q *Queries) ListConfig(ctx context.Context) ([]model.Config, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, key, value, created_at, updated_at FROM config ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Config
	for rows.Next() {
		var c model.Config
		if err := rows.Scan(&c.ID, &c.Key, &c.Value, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetConfig inserts or updates a settings entry.
func (q *Queries) SetConfig(ctx context.Context, key, value string, now time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO config (key, value, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now, now)
	return err
}
