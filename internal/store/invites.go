// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"

	"github.com/openledger/openledger/internal/model"
)

const inviteColumns = `id, token, email, role, created_by, expires_at, used_at, created_at`

func scanInvite(row interface{ Scan(...any) error }) (model.Invite, error) {
	var iv model.Invite
	err := row.Scan(&iv.ID, &iv.Token, &iv.Email, &iv.Role, &iv.CreatedBy,
		&iv.ExpiresAt, &iv.UsedAt, &iv.CreatedAt)
	return iv, err
}

// CreateInviteParams holds the fields for CreateInvite.
type CreateInviteParams struct {
	Token     string
	Email     string
	Role      string
	CreatedBy int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

// CreateInvite inserts a new invite and returns the stored row.
func (q *Queries) CreateInvite(ctx context.Context, arg CreateInviteParams) (model.Invite, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO invites (token, email, role, created_by, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING `+inviteColumns,
		arg.Token, arg.Email, arg.Role, arg.CreatedBy, arg.ExpiresAt, arg.CreatedAt)
	return scanInvite(row)
}

// GetInviteByToken returns the invite with the given token.
func (q *Queries) GetInviteByToken(ctx context.Context, token string) (model.Invite, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+inviteColumns+` FROM invites WHERE token = ?`, token)
	return scanInvite(row)
}

// ListInvites returns all invites, newest first.
func (q *Queries) ListInvites(ctx context.Context) ([]model.Invite, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+inviteColumns+` FROM invites ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invites []model.Invite
	for rows.Next() {
		iv, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		invites = append(invites, iv)
	}
	return invites, rows.Err()
}

// MarkInviteUsed records the redemption time of an invite.
func (q *Queries) MarkInviteUsed(ctx context.Context, id int64, at time.Time) error {
	_, err := q.db.ExecContext(ctx, `UPDATE invites SET used_at = ? WHERE id = ?`, at, id)
	return err
}

// DeleteInvite removes an invite.
func (q *Queries) DeleteInvite(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM invites WHERE id = ?`, id)
	return err
}

// DeleteExpiredInvites removes unused invites past their expiry.
func (q *Queries) DeleteExpiredInvites(ctx context.Context, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM invites WHERE used_at IS NULL AND expires_at < ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
