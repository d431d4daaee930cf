// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openledger/openledger/internal/model"
	"github.com/openledger/openledger/internal/store"
)

func newTransactionHandler(app *testApp) *TransactionHandler {
	return NewTransactionHandler(app.db, app.renderer, app.settings, app.events, app.summary)
}

func (app *testApp) createTransaction(t *testing.T, userID, categoryID int64, occurredOn string, cents int64, payee string) model.Transaction {
	t.Helper()
	day, err := time.Parse("2006-01-02", occurredOn)
	require.NoError(t, err)
	now := time.Now()
	tx, err := app.queries.CreateTransaction(context.Background(), store.CreateTransactionParams{
		UserID:      userID,
		CategoryID:  categoryID,
		OccurredOn:  day,
		AmountCents: cents,
		Payee:       payee,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	require.NoError(t, err)
	return tx
}

func TestTransactionCreate(t *testing.T) {
	app := newTestApp(t)
	user := app.createUser(t, "alice@example.com", "correct horse battery", model.RoleMember)
	groceries := app.createCategory(t, "Groceries", model.CategoryExpense)
	h := newTransactionHandler(app)

	req := formRequest("/transactions", url.Values{
		"category_id": {strconv.FormatInt(groceries.ID, 10)},
		"occurred_on": {"2026-08-14"},
		"amount":      {"-42.75"},
		"payee":       {"FreshMart"},
		"notes":       {"weekly shop"},
	}, &user)
	rr := app.serve(t, func(r chi.Router) { r.Post("/transactions", h.Create) }, req)

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/transactions", rr.Header().Get("Location"))

	txs, err := app.queries.ListTransactions(context.Background(), store.ListTransactionsParams{Limit: 10})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, int64(-4275), txs[0].AmountCents)
	assert.Equal(t, "FreshMart", txs[0].Payee)
	assert.Equal(t, user.ID, txs[0].UserID)
}

func TestTransactionCreateValidation(t *testing.T) {
	app := newTestApp(t)
	user := app.createUser(t, "alice@example.com", "correct horse battery", model.RoleMember)
	groceries := app.createCategory(t, "Groceries", model.CategoryExpense)
	h := newTransactionHandler(app)

	base := url.Values{
		"category_id": {strconv.FormatInt(groceries.ID, 10)},
		"occurred_on": {"2026-08-14"},
		"amount":      {"-10"},
		"payee":       {"Shop"},
	}

	tests := []struct {
		name  string
		mod   func(url.Values)
		flash string
	}{
		{"missing category", func(v url.Values) { v.Set("category_id", "") }, "Choose a category"},
		{"unknown category", func(v url.Values) { v.Set("category_id", "9999") }, "Category not found"},
		{"bad date", func(v url.Values) { v.Set("occurred_on", "14/08/2026") }, "Invalid date"},
		{"zero amount", func(v url.Values) { v.Set("amount", "0") }, "non-zero"},
		{"missing payee", func(v url.Values) { v.Set("payee", "") }, "Payee is required"},
		{"bad cron rule", func(v url.Values) { v.Set("recurring_rule", "not a rule") }, "Invalid recurrence rule"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := url.Values{}
			for k, v := range base {
				values[k] = v
			}
			tt.mod(values)

			req := formRequest("/transactions", values, &user)
			rr := app.serve(t, func(r chi.Router) { r.Post("/transactions", h.Create) }, req)

			assert.Equal(t, http.StatusSeeOther, rr.Code)
			assert.Contains(t, app.flashMessage(t, rr), tt.flash)
		})
	}

	count, err := app.queries.CountTransactions(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Zero(t, count, "no invalid transaction should be stored")
}

func TestTransactionCreateRecurring(t *testing.T) {
	app := newTestApp(t)
	user := app.createUser(t, "alice@example.com", "correct horse battery", model.RoleMember)
	rent := app.createCategory(t, "Housing", model.CategoryExpense)
	h := newTransactionHandler(app)

	req := formRequest("/transactions", url.Values{
		"category_id":    {strconv.FormatInt(rent.ID, 10)},
		"occurred_on":    {"2026-08-01"},
		"amount":         {"-1200"},
		"payee":          {"Landlord"},
		"recurring_rule": {"0 9 1 * *"},
	}, &user)
	rr := app.serve(t, func(r chi.Router) { r.Post("/transactions", h.Create) }, req)
	assert.Equal(t, http.StatusSeeOther, rr.Code)

	txs, err := app.queries.ListTransactions(context.Background(), store.ListTransactionsParams{Limit: 10})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, sql.NullString{String: "0 9 1 * *", Valid: true}, txs[0].RecurringRule)
}

func TestTransactionUpdate(t *testing.T) {
	app := newTestApp(t)
	user := app.createUser(t, "alice@example.com", "correct horse battery", model.RoleMember)
	groceries := app.createCategory(t, "Groceries", model.CategoryExpense)
	h := newTransactionHandler(app)

	tx := app.createTransaction(t, user.ID, groceries.ID, "2026-08-14", -4275, "FreshMart")

	req := formRequest("/transactions/"+strconv.FormatInt(tx.ID, 10), url.Values{
		"category_id": {strconv.FormatInt(groceries.ID, 10)},
		"occurred_on": {"2026-08-15"},
		"amount":      {"-50"},
		"payee":       {"Corner Deli"},
	}, &user)
	rr := app.serve(t, func(r chi.Router) { r.Post("/transactions/{id}", h.Update) }, req)
	assert.Equal(t, http.StatusSeeOther, rr.Code)

	updated, err := app.queries.GetTransaction(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(-5000), updated.AmountCents)
	assert.Equal(t, "Corner Deli", updated.Payee)
	assert.Equal(t, "2026-08-15", updated.OccurredOn.Format("2006-01-02"))
}

func TestTransactionDelete(t *testing.T) {
	app := newTestApp(t)
	user := app.createUser(t, "alice@example.com", "correct horse battery", model.RoleMember)
	groceries := app.createCategory(t, "Groceries", model.CategoryExpense)
	h := newTransactionHandler(app)

	tx := app.createTransaction(t, user.ID, groceries.ID, "2026-08-14", -4275, "FreshMart")

	req := formRequest("/transactions/"+strconv.FormatInt(tx.ID, 10)+"/delete", url.Values{}, &user)
	rr := app.serve(t, func(r chi.Router) { r.Post("/transactions/{id}/delete", h.Delete) }, req)
	assert.Equal(t, http.StatusSeeOther, rr.Code)

	_, err := app.queries.GetTransaction(context.Background(), tx.ID)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestTransactionListFilters(t *testing.T) {
	app := newTestApp(t)
	user := app.createUser(t, "alice@example.com", "correct horse battery", model.RoleMember)
	groceries := app.createCategory(t, "Groceries", model.CategoryExpense)
	leisure := app.createCategory(t, "Leisure", model.CategoryExpense)
	h := newTransactionHandler(app)

	app.createTransaction(t, user.ID, groceries.ID, "2026-08-14", -4275, "FreshMart")
	app.createTransaction(t, user.ID, leisure.ID, "2026-08-20", -3500, "Cinema")
	app.createTransaction(t, user.ID, groceries.ID, "2026-07-02", -1200, "FreshMart")

	req := httptest.NewRequest(http.MethodGet,
		"/transactions?month=2026-08&category="+strconv.FormatInt(groceries.ID, 10), nil)
	req = withTestUser(req, &user)
	rr := app.serve(t, func(r chi.Router) { r.Get("/transactions", h.List) }, req)

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "FreshMart")
	assert.NotContains(t, body, "Cinema")
}
