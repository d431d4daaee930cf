// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"net/http"
	"net/url"
	"time"

	"github.com/openledger/openledger/internal/cache"
	"github.com/openledger/openledger/internal/middleware"
	"github.com/openledger/openledger/internal/model"
	"github.com/openledger/openledger/internal/render"
	"github.com/openledger/openledger/internal/service"
	"github.com/openledger/openledger/internal/store"
)

// BudgetHandler manages monthly budget lines.
type BudgetHandler struct {
	queries      *store.Queries
	renderer     *render.Renderer
	settings     *cache.SettingsCache
	eventService *service.EventService
}

// NewBudgetHandler creates a new BudgetHandler.
func NewBudgetHandler(db *sql.DB, renderer *render.Renderer, settings *cache.SettingsCache, es *service.EventService) *BudgetHandler {
	return &BudgetHandler{
		queries:      store.New(db),
		renderer:     renderer,
		settings:     settings,
		eventService: es,
	}
}

// budgetRow is one budget line with its category resolved.
type budgetRow struct {
	Budget   model.Budget
	Category model.Category
}

type budgetsPageData struct {
	Month        string
	PrevMonth    string
	NextMonth    string
	Rows         []budgetRow
	PlannedCents int64
	Categories   []model.Category
	HasPrevious  bool
}

func budgetsURL(month string) string {
	return RouteBudgets + "?month=" + url.QueryEscape(month)
}

// List renders the budget lines for a month with an inline upsert form.
func (h *BudgetHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	month := monthParam(r)
	prev, next := adjacentMonths(month)

	budgets, err := h.queries.ListBudgetsByMonth(ctx, month)
	if err != nil {
		logAndInternalError(w, "failed to list budgets", "error", err, "month", month)
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

	data := budgetsPageData{
		Month:      month,
		PrevMonth:  prev,
		NextMonth:  next,
		Categories: categories,
	}
	for _, b := range budgets {
		data.Rows = append(data.Rows, budgetRow{Budget: b, Category: categoryByID[b.CategoryID]})
		data.PlannedCents += b.PlannedCents
	}

	if len(budgets) == 0 {
		prevBudgets, err := h.queries.ListBudgetsByMonth(ctx, prev)
		if err == nil && len(prevBudgets) > 0 {
			data.HasPrevious = true
		}
	}

	siteName, currency := siteSettings(ctx, h.settings)
	if err := h.renderer.Render(w, r, "app/budgets", render.TemplateData{
		Title:     "Budgets",
		SiteName:  siteName,
		Currency:  currency,
		User:      middleware.GetUser(r),
		ActiveNav: "budgets",
		Data:      data,
	}); err != nil {
		logAndInternalError(w, "failed to render budgets", "error", err)
	}
}

// Upsert creates or replaces the budget line for a category and month.
func (h *BudgetHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	if !parseFormOrRedirect(w, r, h.renderer, redirectBudgets) {
		return
	}

	month := r.FormValue("month")
	if !model.ValidMonth(month) {
		flashError(w, r, h.renderer, redirectBudgets, "Invalid month")
		return
	}
	redirect := budgetsURL(month)

	categoryID, ok := parseFormID(r, "category_id")
	if !ok {
		flashError(w, r, h.renderer, redirect, "Choose a category")
		return
	}
	if _, err := h.queries.GetCategory(r.Context(), categoryID); err != nil {
		flashError(w, r, h.renderer, redirect, "Category not found")
		return
	}

	planned, ok := parseCents(r.FormValue("planned"))
	if !ok || planned < 0 {
		flashError(w, r, h.renderer, redirect, "Planned amount must be a non-negative number")
		return
	}

	now := time.Now()
	budget, err := h.queries.UpsertBudget(r.Context(), store.UpsertBudgetParams{
		CategoryID:   categoryID,
		Month:        month,
		PlannedCents: planned,
		Notes:        r.FormValue("notes"),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		logAndInternalError(w, "failed to save budget", "error", err)
		return
	}

	userID, ip := auditActor(r)
	logEventErr(h.eventService.LogBudgetEvent(r.Context(), model.EventLevelInfo, "Budget line saved", userID, ip,
		map[string]any{"budget_id": budget.ID, "month": month, "category_id": categoryID, "planned_cents": planned}))

	flashSuccess(w, r, h.renderer, redirect, "Budget saved")
}

// Delete removes a budget line.
func (h *BudgetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		flashError(w, r, h.renderer, redirectBudgets, "Invalid budget ID")
		return
	}

	budget, ok := requireEntityWithRedirect(w, r, h.renderer, redirectBudgets, "budget", id,
		func(id int64) (model.Budget, error) { return h.queries.GetBudget(r.Context(), id) })
	if !ok {
		return
	}

	if err := h.queries.DeleteBudget(r.Context(), id); err != nil {
		logAndInternalError(w, "failed to delete budget", "error", err, "budget_id", id)
		return
	}

	userID, ip := auditActor(r)
	logEventErr(h.eventService.LogBudgetEvent(r.Context(), model.EventLevelInfo, "Budget line deleted", userID, ip,
		map[string]any{"budget_id": id, "month": budget.Month}))

	flashSuccess(w, r, h.renderer, budgetsURL(budget.Month), "Budget deleted")
}

// CopyPrevious copies the previous month's budget lines into the given
// month. Categories already budgeted this month are left untouched.
func (h *BudgetHandler) CopyPrevious(w http.ResponseWriter, r *http.Request) {
	if !parseFormOrRedirect(w, r, h.renderer, redirectBudgets) {
		return
	}

	month := r.FormValue("month")
	if !model.ValidMonth(month) {
		flashError(w, r, h.renderer, redirectBudgets, "Invalid month")
		return
	}
	redirect := budgetsURL(month)
	prev, _ := adjacentMonths(month)

	prevBudgets, err := h.queries.ListBudgetsByMonth(r.Context(), prev)
	if err != nil {
		logAndInternalError(w, "failed to list previous budgets", "error", err, "month", prev)
		return
	}
	if len(prevBudgets) == 0 {
		flashError(w, r, h.renderer, redirect, "No budget lines to copy from "+prev)
		return
	}

	current, err := h.queries.ListBudgetsByMonth(r.Context(), month)
	if err != nil {
		logAndInternalError(w, "failed to list budgets", "error", err, "month", month)
		return
	}
	existing := make(map[int64]bool, len(current))
	for _, b := range current {
		existing[b.CategoryID] = true
	}

	now := time.Now()
	copied := 0
	for _, b := range prevBudgets {
		if existing[b.CategoryID] {
			continue
		}
		if _, err := h.queries.UpsertBudget(r.Context(), store.UpsertBudgetParams{
			CategoryID:   b.CategoryID,
			Month:        month,
			PlannedCents: b.PlannedCents,
			Notes:        b.Notes,
			CreatedAt:    now,
			UpdatedAt:    now,
		}); err != nil {
			logAndInternalError(w, "failed to copy budget line", "error", err, "category_id", b.CategoryID)
			return
		}
		copied++
	}

	userID, ip := auditActor(r)
	logEventErr(h.eventService.LogBudgetEvent(r.Context(), model.EventLevelInfo, "Budget copied from previous month", userID, ip,
		map[string]any{"month": month, "from": prev, "lines": copied}))

	if copied == 0 {
		flashSuccess(w, r, h.renderer, redirect, "All categories were already budgeted")
		return
	}
	flashSuccess(w, r, h.renderer, redirect, "Copied budget lines from "+prev)
}
