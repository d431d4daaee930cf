// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/openledger/openledger/internal/model"
)

const transactionColumns = `id, user_id, category_id, occurred_on, amount_cents, payee, notes, recurring_rule, created_at, updated_at`

func scanTransaction(row interface{ Scan(...any) error }) (model.Transaction, error) {
	var t model.Transaction
	err := row.Scan(&t.ID, &t.UserID, &t.CategoryID, &t.OccurredOn, &t.AmountCents,
		&t.Payee, &t.Notes, &t.RecurringRule, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// CreateTransactionParams holds the fields for CreateTransaction.
type CreateTransactionParams struct {
	UserID        int64
	CategoryID    int64
	OccurredOn    time.Time
	AmountCents   int64
	Payee         string
	Notes         string
	RecurringRule sql.NullString
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CreateTransaction inserts a new transaction and returns the stored row.
func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (model.Transaction, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO transactions (user_id, category_id, occurred_on, amount_cents, payee, notes, recurring_rule, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+transactionColumns,
		arg.UserID, arg.CategoryID, arg.OccurredOn, arg.AmountCents,
		arg.Payee, arg.Notes, arg.RecurringRule, arg.CreatedAt, arg.UpdatedAt)
	return scanTransaction(row)
}

// GetTransaction returns the transaction with the given ID.
func (q *Queries) GetTransaction(ctx context.Context, id int64) (model.Transaction, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	return scanTransaction(row)
}

// ListTransactionsParams filters and pages ListTransactions.
type ListTransactionsParams struct {
	Month      string // YYYY-MM, empty for all
	CategoryID int64  // 0 for all
	Limit      int64
	Offset     int64
}

// ListTransactions returns transactions newest first, optionally filtered
// by month and category.
func (q *Queries) ListTransactions(ctx context.Context, arg ListTransactionsParams) ([]model.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE 1=1`
	var args []any
	if arg.Month != "" {
		query += ` AND strftime('%Y-%m', occurred_on) = ?`
		args = append(args, arg.Month)
	}
	if arg.CategoryID != 0 {
		query += ` AND category_id = ?`
		args = append(args, arg.CategoryID)
	}
	query += ` ORDER BY occurred_on DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, arg.Limit, arg.Offset)

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// CountTransactions returns the total row count matching the same filters
// as ListTransactions.
func (q *Queries) CountTransactions(ctx context.Context, month string, categoryID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM transactions WHERE 1=1`
	var args []any
	if month != "" {
		query += ` AND strftime('%Y-%m', occurred_on) = ?`
		args = append(args, month)
	}
	if categoryID != 0 {
		query += ` AND category_id = ?`
		args = append(args, categoryID)
	}
	var n int64
	err := q.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

// HasTransactionOn reports whether the user already has a transaction for
// the given category, payee, and amount on a specific day. Used by the
// scheduler to keep recurring materialization idempotent.
func (q *Queries) HasTransactionOn(ctx context.Context, userID, categoryID int64, payee string, amountCents int64, day time.Time) (bool, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transactions
		WHERE user_id = ? AND category_id = ? AND payee = ? AND amount_cents = ?
		  AND date(occurred_on) = date(?)`,
		userID, categoryID, payee, amountCents, day).Scan(&n)
	return n > 0, err
}

// UpdateTransactionParams holds the fields for UpdateTransaction.
type UpdateTransactionParams struct {
	ID            int64
	CategoryID    int64
	OccurredOn    time.Time
	AmountCents   int64
	Payee         string
	Notes         string
	RecurringRule sql.NullString
	UpdatedAt     time.Time
}

// UpdateTransaction updates a transaction and returns the stored row.
func (q *Queries) UpdateTransaction(ctx context.Context, arg UpdateTransactionParams) (model.Transaction, error) {
	row := q.db.QueryRowContext(ctx, `
		UPDATE transactions
		SET category_id = ?, occurred_on = ?, amount_cents = ?, payee = ?, notes = ?, recurring_rule = ?, updated_at = ?
		WHERE id = ?
		RETURNING `+transactionColumns,
		arg.CategoryID, arg.OccurredOn, arg.AmountCents, arg.Payee, arg.Notes,
		arg.RecurringRule, arg.UpdatedAt, arg.ID)
	return scanTransaction(row)
}

// DeleteTransaction removes a transaction.
func (q *Queries) DeleteTransaction(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	return err
}

// ListRecurringTransactions returns all transactions carrying a recurrence
// rule, for the scheduler to materialize.
func (q *Queries) ListRecurringTransactions(ctx context.Context) ([]model.Transaction, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE recurring_rule IS NOT NULL AND recurring_rule != ''
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// MonthTotals aggregates income and expense for a month.
type MonthTotals struct {
	IncomeCents  int64
	ExpenseCents int64
}

// SumMonthTotals returns total income and expense for a YYYY-MM month.
func (q *Queries) SumMonthTotals(ctx context.Context, month string) (MonthTotals, error) {
	var t MonthTotals
	err := q.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN amount_cents > 0 THEN amount_cents ELSE 0 END), 0),
			COALESCE(-SUM(CASE WHEN amount_cents < 0 THEN amount_cents ELSE 0 END), 0)
		FROM transactions
		WHERE strftime('%Y-%m', occurred_on) = ?`, month).
		Scan(&t.IncomeCents, &t.ExpenseCents)
	return t, err
}
