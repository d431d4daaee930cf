// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/openledger/openledger/internal/cache"
	"github.com/openledger/openledger/internal/middleware"
	"github.com/openledger/openledger/internal/model"
	"github.com/openledger/openledger/internal/render"
	"github.com/openledger/openledger/internal/service"
	"github.com/openledger/openledger/internal/store"
)

// TransactionsPerPage is the page size for the transactions list.
const TransactionsPerPage = 25

// TransactionHandler manages ledger entries.
type TransactionHandler struct {
	queries      *store.Queries
	renderer     *render.Renderer
	settings     *cache.SettingsCache
	eventService *service.EventService
	summary      *service.SummaryService
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(db *sql.DB, renderer *render.Renderer, settings *cache.SettingsCache, es *service.EventService, summary *service.SummaryService) *TransactionHandler {
	return &TransactionHandler{
		queries:      store.New(db),
		renderer:     renderer,
		settings:     settings,
		eventService: es,
		summary:      summary,
	}
}

// transactionRow is one list entry with its category and rendered notes.
type transactionRow struct {
	Transaction model.Transaction
	Category    model.Category
	NotesHTML   template.HTML
}

type transactionsPageData struct {
	Rows       []transactionRow
	Categories []model.Category
	Month      string
	CategoryID int64
	Pagination Pagination
}

type transactionFormData struct {
	Transaction model.Transaction
	Categories  []model.Category
	IsNew       bool
}

// List renders the transaction list with month and category filters.
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	month := r.URL.Query().Get("month")
	if month != "" && !model.ValidMonth(month) {
		month = ""
	}
	categoryID, _ := strconv.ParseInt(r.URL.Query().Get("category"), 10, 64)
	if categoryID < 0 {
		categoryID = 0
	}
	page := pageParam(r)

	total, err := h.queries.CountTransactions(ctx, month, categoryID)
	if err != nil {
		logAndInternalError(w, "failed to count transactions", "error", err)
		return
	}

	txs, err := h.queries.ListTransactions(ctx, store.ListTransactionsParams{
		Month:      month,
		CategoryID: categoryID,
		Limit:      TransactionsPerPage,
		Offset:     (page - 1) * TransactionsPerPage,
	})
	if err != nil {
		logAndInternalError(w, "failed to list transactions", "error", err)
		return
	}

	categories, err := h.queries.ListCategories(ctx)
	if err != nil {
		logAndInternalError(w, "failed to list categories", "error", err)
		return
	}
	categoryByID := make(map[int64]model.Category, len(categories))
	for _, c := range categories {
		categoryByID[c.ID] = c
	}

	queryParams := url.Values{}
	if month != "" {
		queryParams.Set("month", month)
	}
	if categoryID != 0 {
		queryParams.Set("category", strconv.FormatInt(categoryID, 10))
	}

	data := transactionsPageData{
		Categories: categories,
		Month:      month,
		CategoryID: categoryID,
		Pagination: BuildPagination(int(page), total, TransactionsPerPage, RouteTransactions, queryParams),
	}
	for _, t := range txs {
		row := transactionRow{Transaction: t, Category: categoryByID[t.CategoryID]}
		if t.Notes != "" {
			row.NotesHTML = renderMarkdown(t.Notes)
		}
		data.Rows = append(data.Rows, row)
	}

	siteName, currency := siteSettings(ctx, h.settings)
	if err := h.renderer.Render(w, r, "app/transactions", render.TemplateData{
		Title:     "Transactions",
		SiteName:  siteName,
		Currency:  currency,
		User:      middleware.GetUser(r),
		ActiveNav: "transactions",
		Data:      data,
	}); err != nil {
		logAndInternalError(w, "failed to render transactions", "error", err)
	}
}

// NewForm renders the empty transaction form.
func (h *TransactionHandler) NewForm(w http.ResponseWriter, r *http.Request) {
	categories, err := h.queries.ListCategories(r.Context())
	if err != nil {
		logAndInternalError(w, "failed to list categories", "error", err)
		return
	}

	h.renderForm(w, r, transactionFormData{
		Transaction: model.Transaction{OccurredOn: time.Now()},
		Categories:  categories,
		IsNew:       true,
	})
}

// EditForm renders the form pre-filled with an existing transaction.
func (h *TransactionHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		flashError(w, r, h.renderer, redirectTransactions, "Invalid transaction ID")
		return
	}

	tx, ok := requireEntityWithRedirect(w, r, h.renderer, redirectTransactions, "transaction", id,
		func(id int64) (model.Transaction, error) { return h.queries.GetTransaction(r.Context(), id) })
	if !ok {
		return
	}

	categories, err := h.queries.ListCategories(r.Context())
	if err != nil {
		logAndInternalError(w, "failed to list categories", "error", err)
		return
	}

	h.renderForm(w, r, transactionFormData{Transaction: tx, Categories: categories})
}

func (h *TransactionHandler) renderForm(w http.ResponseWriter, r *http.Request, data transactionFormData) {
	title := "Edit Transaction"
	if data.IsNew {
		title = "New Transaction"
	}
	siteName, currency := siteSettings(r.Context(), h.settings)
	if err := h.renderer.Render(w, r, "app/transaction_form", render.TemplateData{
		Title:     title,
		SiteName:  siteName,
		Currency:  currency,
		User:      middleware.GetUser(r),
		ActiveNav: "transactions",
		Data:      data,
	}); err != nil {
		logAndInternalError(w, "failed to render transaction form", "error", err)
	}
}

// transactionInput holds validated form values.
type transactionInput struct {
	CategoryID    int64
	OccurredOn    time.Time
	AmountCents   int64
	Payee         string
	Notes         string
	RecurringRule sql.NullString
}

// parseTransactionForm validates the submitted form. On failure it has
// already redirected and returns ok=false.
func (h *TransactionHandler) parseTransactionForm(w http.ResponseWriter, r *http.Request, redirect string) (transactionInput, bool) {
	var in transactionInput

	categoryID, ok := parseFormID(r, "category_id")
	if !ok {
		flashError(w, r, h.renderer, redirect, "Choose a category")
		return in, false
	}
	if _, err := h.queries.GetCategory(r.Context(), categoryID); err != nil {
		flashError(w, r, h.renderer, redirect, "Category not found")
		return in, false
	}
	in.CategoryID = categoryID

	occurredOn, err := time.Parse("2006-01-02", r.FormValue("occurred_on"))
	if err != nil {
		flashError(w, r, h.renderer, redirect, "Invalid date")
		return in, false
	}
	in.OccurredOn = occurredOn

	amount, ok := parseCents(r.FormValue("amount"))
	if !ok || amount == 0 {
		flashError(w, r, h.renderer, redirect, "Amount must be a non-zero number")
		return in, false
	}
	in.AmountCents = amount

	in.Payee = r.FormValue("payee")
	if in.Payee == "" {
		flashError(w, r, h.renderer, redirect, "Payee is required")
		return in, false
	}
	in.Notes = r.FormValue("notes")

	if rule := r.FormValue("recurring_rule"); rule != "" {
		if _, err := cron.ParseStandard(rule); err != nil {
			flashError(w, r, h.renderer, redirect, "Invalid recurrence rule: "+err.Error())
			return in, false
		}
		in.RecurringRule = sql.NullString{String: rule, Valid: true}
	}

	return in, true
}

// Create handles the new transaction form submission.
func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !parseFormOrRedirect(w, r, h.renderer, redirectTransactions) {
		return
	}

	in, ok := h.parseTransactionForm(w, r, RouteTransactions+RouteSuffixNew)
	if !ok {
		return
	}

	user := middleware.GetUser(r)
	if user == nil {
		http.Redirect(w, r, redirectLogin, http.StatusSeeOther)
		return
	}

	now := time.Now()
	tx, err := h.queries.CreateTransaction(r.Context(), store.CreateTransactionParams{
		UserID:        user.ID,
		CategoryID:    in.CategoryID,
		OccurredOn:    in.OccurredOn,
		AmountCents:   in.AmountCents,
		Payee:         in.Payee,
		Notes:         in.Notes,
		RecurringRule: in.RecurringRule,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		logAndInternalError(w, "failed to create transaction", "error", err)
		return
	}

	h.summary.Invalidate(r.Context(), tx.OccurredOn.Format("2006-01"))

	userID, ip := auditActor(r)
	logEventErr(h.eventService.LogLedgerEvent(r.Context(), model.EventLevelInfo, "Transaction created", userID, ip,
		map[string]any{"transaction_id": tx.ID, "amount_cents": tx.AmountCents, "payee": tx.Payee}))

	flashSuccess(w, r, h.renderer, redirectTransactions, "Transaction added")
}

// Update handles the edit form submission.
func (h *TransactionHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !parseFormOrRedirect(w, r, h.renderer, redirectTransactions) {
		return
	}

	id, err := idParam(r)
	if err != nil {
		flashError(w, r, h.renderer, redirectTransactions, "Invalid transaction ID")
		return
	}

	prev, ok := requireEntityWithRedirect(w, r, h.renderer, redirectTransactions, "transaction", id,
		func(id int64) (model.Transaction, error) { return h.queries.GetTransaction(r.Context(), id) })
	if !ok {
		return
	}

	in, ok := h.parseTransactionForm(w, r, RouteTransactions+"/"+strconv.FormatInt(id, 10))
	if !ok {
		return
	}

	tx, err := h.queries.UpdateTransaction(r.Context(), store.UpdateTransactionParams{
		ID:            id,
		CategoryID:    in.CategoryID,
		OccurredOn:    in.OccurredOn,
		AmountCents:   in.AmountCents,
		Payee:         in.Payee,
		Notes:         in.Notes,
		RecurringRule: in.RecurringRule,
		UpdatedAt:     time.Now(),
	})
	if err != nil {
		logAndInternalError(w, "failed to update transaction", "error", err, "transaction_id", id)
		return
	}

	h.summary.Invalidate(r.Context(), prev.OccurredOn.Format("2006-01"), tx.OccurredOn.Format("2006-01"))

	userID, ip := auditActor(r)
	logEventErr(h.eventService.LogLedgerEvent(r.Context(), model.EventLevelInfo, "Transaction updated", userID, ip,
		map[string]any{"transaction_id": tx.ID}))

	flashSuccess(w, r, h.renderer, redirectTransactions, "Transaction updated")
}

// Delete removes a transaction.
func (h *TransactionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		flashError(w, r, h.renderer, redirectTransactions, "Invalid transaction ID")
		return
	}

	tx, ok := requireEntityWithRedirect(w, r, h.renderer, redirectTransactions, "transaction", id,
		func(id int64) (model.Transaction, error) { return h.queries.GetTransaction(r.Context(), id) })
	if !ok {
		return
	}

	if err := h.queries.DeleteTransaction(r.Context(), id); err != nil {
		logAndInternalError(w, "failed to delete transaction", "error", err, "transaction_id", id)
		return
	}

	h.summary.Invalidate(r.Context(), tx.OccurredOn.Format("2006-01"))

	userID, ip := auditActor(r)
	logEventErr(h.eventService.LogLedgerEvent(r.Context(), model.EventLevelInfo, "Transaction deleted", userID, ip,
		map[string]any{"transaction_id": id}))

	flashSuccess(w, r, h.renderer, redirectTransactions, "Transaction deleted")
}
