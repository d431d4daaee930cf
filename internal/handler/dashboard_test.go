// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openledger/openledger/internal/model"
	"github.com/openledger/openledger/internal/store"
)

func TestDashboardShow(t *testing.T) {
	app := newTestApp(t)
	user := app.createUser(t, "alice@example.com", "correct horse battery", model.RoleMember)
	groceries := app.createCategory(t, "Groceries", model.CategoryExpense)
	salary := app.createCategory(t, "Salary", model.CategoryIncome)
	h := NewDashboardHandler(app.db, app.renderer, app.settings, app.summary)

	now := time.Now()
	_, err := app.queries.UpsertBudget(context.Background(), store.UpsertBudgetParams{
		CategoryID:   groceries.ID,
		Month:        "2026-08",
		PlannedCents: 40000,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	require.NoError(t, err)
	app.createTransaction(t, user.ID, groceries.ID, "2026-08-10", -12345, "FreshMart")
	app.createTransaction(t, user.ID, salary.ID, "2026-08-01", 420000, "Acme Corp")

	req := httptest.NewRequest(http.MethodGet, "/?month=2026-08", nil)
	req = withTestUser(req, &user)
	rr := app.serve(t, func(r chi.Router) { r.Get("/", h.Show) }, req)

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Groceries")
	assert.Contains(t, body, "2026-08")
	// Income, expense, and the planned line all render as formatted money
	assert.Contains(t, body, "4,200.00")
	assert.Contains(t, body, "123.45")
	assert.Contains(t, body, "400.00")
}

func TestDashboardEmptyMonth(t *testing.T) {
	app := newTestApp(t)
	user := app.createUser(t, "alice@example.com", "correct horse battery", model.RoleMember)
	h := NewDashboardHandler(app.db, app.renderer, app.settings, app.summary)

	req := httptest.NewRequest(http.MethodGet, "/?month=2026-01", nil)
	req = withTestUser(req, &user)
	rr := app.serve(t, func(r chi.Router) { r.Get("/", h.Show) }, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}
