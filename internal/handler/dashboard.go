// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"net/http"

	"github.com/openledger/openledger/internal/cache"
	"github.com/openledger/openledger/internal/middleware"
	"github.com/openledger/openledger/internal/model"
	"github.com/openledger/openledger/internal/render"
	"github.com/openledger/openledger/internal/service"
	"github.com/openledger/openledger/internal/store"
)

// DashboardHandler renders the monthly overview.
type DashboardHandler struct {
	queries  *store.Queries
	renderer *render.Renderer
	settings *cache.SettingsCache
	summary  *service.SummaryService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(db *sql.DB, renderer *render.Renderer, settings *cache.SettingsCache, summary *service.SummaryService) *DashboardHandler {
	return &DashboardHandler{
		queries:  store.New(db),
		renderer: renderer,
		settings: settings,
		summary:  summary,
	}
}

// dashboardRow is one category line of the planned vs actual table.
type dashboardRow struct {
	Category       model.Category
	PlannedCents   int64
	SpentCents     int64
	RemainingCents int64
	OverBudget     bool
}

type dashboardPageData struct {
	Month           string
	PrevMonth       string
	NextMonth       string
	Totals          store.MonthTotals
	NetCents        int64
	Rows            []dashboardRow
	PlannedCents    int64
	SpentCents      int64
	RemainingCents  int64
	UnbudgetedCents int64
}

// Show renders the dashboard for the requested month.
func (h *DashboardHandler) Show(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	month := monthParam(r)
	prev, next := adjacentMonths(month)

	summary, err := h.summary.MonthSummary(ctx, month)
	if err != nil {
		logAndInternalError(w, "failed to summarize month", "error", err, "month", month)
		return
	}

	budgets, err := h.queries.ListBudgetsByMonth(ctx, month)
	if err != nil {
		logAndInternalError(w, "failed to list budgets", "error", err, "month", month)
		return
	}

	spentByCategory := make(map[int64]int64, len(summary.SpentByCategory))
	for _, row := range summary.SpentByCategory {
		spentByCategory[row.CategoryID] = row.SpentCents
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

	data := dashboardPageData{
		Month:     month,
		PrevMonth: prev,
		NextMonth: next,
		Totals:    summary.Totals,
		NetCents:  summary.Totals.IncomeCents - summary.Totals.ExpenseCents,
	}

	budgeted := make(map[int64]bool, len(budgets))
	for _, b := range budgets {
		budgeted[b.CategoryID] = true
		row := dashboardRow{
			Category:     categoryByID[b.CategoryID],
			PlannedCents: b.PlannedCents,
			SpentCents:   spentByCategory[b.CategoryID],
		}
		row.RemainingCents = row.PlannedCents - row.SpentCents
		row.OverBudget = row.RemainingCents < 0
		data.Rows = append(data.Rows, row)
		data.PlannedCents += row.PlannedCents
		data.SpentCents += row.SpentCents
	}

	data.RemainingCents = data.PlannedCents - data.SpentCents

	// Expenses in categories with no budget line for this month
	for categoryID, cents := range spentByCategory {
		if !budgeted[categoryID] {
			data.UnbudgetedCents += cents
		}
	}

	siteName, currency := siteSettings(ctx, h.settings)
	if err := h.renderer.Render(w, r, "app/dashboard", render.TemplateData{
		Title:     "Dashboard",
		SiteName:  siteName,
		Currency:  currency,
		User:      middleware.GetUser(r),
		ActiveNav: "dashboard",
		Data:      data,
	}); err != nil {
		logAndInternalError(w, "failed to render dashboard", "error", err)
	}
}
