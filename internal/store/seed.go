// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openledger/openledger/internal/auth"
	"github.com/openledger/openledger/internal/model"
	"github.com/openledger/openledger/internal/util"
)

// Default admin credentials
const (
	DefaultAdminEmail    = "admin@example.com"
	DefaultAdminPassword = "changeme"
	DefaultAdminName     = "Administrator"
)

// defaultCategories are created on first run so a fresh household has
// something to budget against.
var defaultCategories = []struct {
	Name string
	Kind string
}{
	{"Groceries", model.CategoryExpense},
	{"Housing", model.CategoryExpense},
	{"Utilities", model.CategoryExpense},
	{"Transport", model.CategoryExpense},
	{"Leisure", model.CategoryExpense},
	{"Salary", model.CategoryIncome},
}

// Seed creates initial data in the database.
func Seed(ctx context.Context, db *sql.DB) error {
	queries := New(db)

	// Check if admin user already exists
	_, err := queries.GetUserByEmail(ctx, DefaultAdminEmail)
	if err == nil {
		slog.Info("admin user already exists, skipping seed")
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking for admin user: %w", err)
	}

	passwordHash, err := auth.HashPassword(DefaultAdminPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now()
	user, err := queries.CreateUser(ctx, CreateUserParams{
		Email:        DefaultAdminEmail,
		PasswordHash: passwordHash,
		Role:         model.RoleAdmin,
		Name:         DefaultAdminName,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}

	for i, c := range defaultCategories {
		if _, err := queries.CreateCategory(ctx, CreateCategoryParams{
			Name:      c.Name,
			Slug:      util.Slugify(c.Name),
			Kind:      c.Kind,
			Position:  int64(i),
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return fmt.Errorf("creating category %q: %w", c.Name, err)
		}
	}

	slog.Info("created default admin user",
		"id", user.ID,
		"email", user.Email,
		"password", DefaultAdminPassword,
	)

	return nil
}

// demoTransactions describe a month of sample ledger activity, offset in
// days from the start of the current month.
var demoTransactions = []struct {
	Category string
	Day      int
	Cents    int64
	Payee    string
}{
	{"Salary", 1, 420000, "Acme Corp"},
	{"Housing", 2, -120000, "Landlord"},
	{"Groceries", 4, -8425, "FreshMart"},
	{"Utilities", 6, -6150, "City Power"},
	{"Transport", 9, -4200, "Metro Card"},
	{"Groceries", 12, -9730, "FreshMart"},
	{"Leisure", 14, -3500, "Cinema"},
	{"Groceries", 21, -7612, "Corner Deli"},
}

// demoBudgets are the planned amounts for the current month.
var demoBudgets = map[string]int64{
	"Groceries": 40000,
	"Housing":   120000,
	"Utilities": 8000,
	"Transport": 6000,
	"Leisure":   10000,
}

// SeedDemo fills an empty ledger with a month of sample budgets and
// transactions so a fresh install has something to look at. It is a no-op
// unless enabled, and never touches a ledger that already has entries.
func SeedDemo(ctx context.Context, db *sql.DB, enabled bool) error {
	if !enabled {
		return nil
	}

	queries := New(db)

	count, err := queries.CountTransactions(ctx, "", 0)
	if err != nil {
		return fmt.Errorf("counting transactions: %w", err)
	}
	if count > 0 {
		slog.Info("ledger already has transactions, skipping demo seed")
		return nil
	}

	admin, err := queries.GetUserByEmail(ctx, DefaultAdminEmail)
	if err != nil {
		return fmt.Errorf("looking up admin user: %w", err)
	}

	categories, err := queries.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("listing categories: %w", err)
	}
	byName := make(map[string]model.Category, len(categories))
	for _, c := range categories {
		byName[c.Name] = c
	}

	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	month := monthStart.Format("2006-01")

	for name, cents := range demoBudgets {
		category, ok := byName[name]
		if !ok {
			continue
		}
		if _, err := queries.UpsertBudget(ctx, UpsertBudgetParams{
			CategoryID:   category.ID,
			Month:        month,
			PlannedCents: cents,
			CreatedAt:    now,
			UpdatedAt:    now,
		}); err != nil {
			return fmt.Errorf("seeding budget for %q: %w", name, err)
		}
	}

	for _, tx := range demoTransactions {
		category, ok := byName[tx.Category]
		if !ok {
			continue
		}
		if _, err := queries.CreateTransaction(ctx, CreateTransactionParams{
			UserID:      admin.ID,
			CategoryID:  category.ID,
			OccurredOn:  monthStart.AddDate(0, 0, tx.Day-1),
			AmountCents: tx.Cents,
			Payee:       tx.Payee,
			CreatedAt:   now,
			UpdatedAt:   now,
		}); err != nil {
			return fmt.Errorf("seeding transaction for %q: %w", tx.Payee, err)
		}
	}

	slog.Info("seeded demo ledger", "month", month,
		"budgets", len(demoBudgets), "transactions", len(demoTransactions))
	return nil
}
