// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"

	"github.com/openledger/openledger/internal/model"
)

const budgetColumns = `id, category_id, month, planned_cents, notes, created_at, updated_at`

func scanBudget(row interface{ Scan(...any) error }) (model.Budget, error) {
	var b model.Budget
	err := row.Scan(&b.ID, &b.CategoryID, &b.Month, &b.PlannedCents, &b.Notes,
		&b.CreatedAt, &b.UpdatedAt)
	return b, err
}

// UpsertBudgetParams holds the fields for UpsertBudget.
type UpsertBudgetParams struct {
	CategoryID   int64
	Month        string
	PlannedCents int64
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UpsertBudget inserts or updates the budget line for a category and month.
func (q *Queries) UpsertBudget(ctx context.Context, arg UpsertBudgetParams) (model.Budget, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO budgets (category_id, month, planned_cents, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (category_id, month) DO UPDATE SET
			planned_cents = excluded.planned_cents,
			notes = excluded.notes,
			updated_at = excluded.updated_at
		RETURNING `+budgetColumns,
		arg.CategoryID, arg.Month, arg.PlannedCents, arg.Notes, arg.CreatedAt, arg.UpdatedAt)
	return scanBudget(row)
}

// GetBudget returns the budget line with the given ID.
func (q *Queries) GetBudget(ctx context.Context, id int64) (model.Budget, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, id)
	return scanBudget(row)
}

// ListBudgetsByMonth returns all budget lines for a YYYY-MM month.
func (q *Queries) ListBudgetsByMonth(ctx context.Context, month string) ([]model.Budget, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE month = ? ORDER BY category_id`, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var budgets []model.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

// DeleteBudget removes a budget line.
func (q *Queries) DeleteBudget(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)
	return err
}

// BudgetSpentRow pairs a category with the sum actually spent in a month.
type BudgetSpentRow struct {
	CategoryID int64
	SpentCents int64
}

// SumSpentByMonth returns per-category expense totals for a YYYY-MM month.
// Amounts are stored signed; expenses are negative, so the sum is negated.
func (q *Queries) SumSpentByMonth(ctx context.Context, month string) ([]BudgetSpentRow, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT category_id, -SUM(amount_cents)
		FROM transactions
		WHERE strftime('%Y-%m', occurred_on) = ? AND amount_cents < 0
		GROUP BY category_id`, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BudgetSpentRow
	for rows.Next() {
		var r BudgetSpentRow
		if err := rows.Scan(&r.CategoryID, &r.SpentCents); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
