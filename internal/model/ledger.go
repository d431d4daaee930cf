// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"fmt"
	"time"
)

// Category kinds.
const (
	CategoryExpense = "expense"
	CategoryIncome  = "income"
)

// ValidCategoryKinds contains all valid category kinds.
var ValidCategoryKinds = []string{CategoryExpense, CategoryIncome}

// Category groups transactions and budget lines.
type Category struct {
	ID        int64
	Name      string
	Slug      string
	Kind      string
	Position  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Budget is the planned amount for a category in a given month.
type Budget struct {
	ID           int64
	CategoryID   int64
	Month        string // YYYY-MM
	PlannedCents int64
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Transaction is a single ledger entry.
type Transaction struct {
	ID            int64
	UserID        int64
	CategoryID    int64
	OccurredOn    time.Time
	AmountCents   int64
	Payee         string
	Notes         string // markdown source
	RecurringRule sql.NullString
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsRecurring reports whether the transaction carries a recurrence rule.
func (t *Transaction) IsRecurring() bool {
	return t.RecurringRule.Valid && t.RecurringRule.String != ""
}

// MonthOf returns the YYYY-MM month key for the transaction date.
func (t *Transaction) MonthOf() string {
	return t.OccurredOn.Format("2006-01")
}

// ValidMonth reports whether s is a YYYY-MM month key.
func ValidMonth(s string) bool {
	_, err := time.Parse("2006-01", s)
	return err == nil
}

// FormatCents renders an amount in cents as a plain decimal string, e.g. 1250 -> "12.50".
// Currency-aware formatting lives in the template layer; this is for logs and CSV.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
