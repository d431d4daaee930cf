// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"testing"
	"time"

	"github.com/openledger/openledger/internal/cache"
	"github.com/openledger/openledger/internal/model"
	"github.com/openledger/openledger/internal/store"
)

func summaryTestEnv(t *testing.T) (*SummaryService, *store.Queries) {
	t.Helper()
	db := eventTestDB(t)
	memCache := cache.NewMemoryCache(cache.MemoryCacheOptions{DefaultTTL: time.Minute})
	t.Cleanup(func() { memCache.Close() })
	return NewSummaryService(db, memCache, nil), store.New(db)
}

func seedSummaryData(t *testing.T, queries *store.Queries) int64 {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	user, err := queries.CreateUser(ctx, store.CreateUserParams{
		Email:        "summary@example.com",
		PasswordHash: "x",
		Role:         model.RoleMember,
		Name:         "Summary",
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	category, err := queries.CreateCategory(ctx, store.CreateCategoryParams{
		Name:      "Groceries",
		Slug:      "groceries",
		Kind:      model.CategoryExpense,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}

	day, _ := time.Parse("2006-01-02", "2026-08-10")
	if _, err := queries.CreateTransaction(ctx, store.CreateTransactionParams{
		UserID:      user.ID,
		CategoryID:  category.ID,
		OccurredOn:  day,
		AmountCents: -2500,
		Payee:       "Shop",
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	return category.ID
}

func TestMonthSummaryComputes(t *testing.T) {
	svc, queries := summaryTestEnv(t)
	categoryID := seedSummaryData(t, queries)
	ctx := context.Background()

	summary, err := svc.MonthSummary(ctx, "2026-08")
	if err != nil {
		t.Fatalf("MonthSummary: %v", err)
	}
	if summary.Totals.ExpenseCents != 2500 {
		t.Errorf("ExpenseCents = %d, want 2500", summary.Totals.ExpenseCents)
	}
	if len(summary.SpentByCategory) != 1 || summary.SpentByCategory[0].CategoryID != categoryID {
		t.Errorf("SpentByCategory = %+v, want one row for category %d", summary.SpentByCategory, categoryID)
	}
}

func TestMonthSummaryServesCachedUntilInvalidated(t *testing.T) {
	svc, queries := summaryTestEnv(t)
	userCat := seedSummaryData(t, queries)
	ctx := context.Background()

	first, err := svc.MonthSummary(ctx, "2026-08")
	if err != nil {
		t.Fatalf("MonthSummary: %v", err)
	}

	// A write the service does not know about is invisible until the
	// month is invalidated
	now := time.Now()
	day, _ := time.Parse("2006-01-02", "2026-08-20")
	user, err := queries.GetUserByEmail(ctx, "summary@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if _, err := queries.CreateTransaction(ctx, store.CreateTransactionParams{
		UserID:      user.ID,
		CategoryID:  userCat,
		OccurredOn:  day,
		AmountCents: -1000,
		Payee:       "Shop",
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	cached, err := svc.MonthSummary(ctx, "2026-08")
	if err != nil {
		t.Fatalf("MonthSummary: %v", err)
	}
	if cached.Totals.ExpenseCents != first.Totals.ExpenseCents {
		t.Errorf("expected cached totals %d, got %d", first.Totals.ExpenseCents, cached.Totals.ExpenseCents)
	}

	svc.Invalidate(ctx, "2026-08")

	fresh, err := svc.MonthSummary(ctx, "2026-08")
	if err != nil {
		t.Fatalf("MonthSummary: %v", err)
	}
	if fresh.Totals.ExpenseCents != 3500 {
		t.Errorf("ExpenseCents after invalidate = %d, want 3500", fresh.Totals.ExpenseCents)
	}
}

func TestMonthSummaryEmptyMonth(t *testing.T) {
	svc, _ := summaryTestEnv(t)

	summary, err := svc.MonthSummary(context.Background(), "1999-01")
	if err != nil {
		t.Fatalf("MonthSummary: %v", err)
	}
	if summary.Totals.IncomeCents != 0 || summary.Totals.ExpenseCents != 0 {
		t.Errorf("empty month totals = %+v, want zeros", summary.Totals)
	}
	if len(summary.SpentByCategory) != 0 {
		t.Errorf("empty month spent rows = %d, want 0", len(summary.SpentByCategory))
	}
}
