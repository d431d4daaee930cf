// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"net/http"
	"net/url"

	"github.com/openledger/openledger/internal/cache"
	"github.com/openledger/openledger/internal/middleware"
	"github.com/openledger/openledger/internal/model"
	"github.com/openledger/openledger/internal/render"
	"github.com/openledger/openledger/internal/store"
)

// EventsPerPage is the page size for the audit log.
const EventsPerPage = 50

// eventCategories are the filterable audit categories.
var eventCategories = []string{
	model.EventCategoryAuth,
	model.EventCategoryBudget,
	model.EventCategoryLedger,
	model.EventCategoryUser,
	model.EventCategoryConfig,
	model.EventCategorySystem,
	model.EventCategoryNotify,
	model.EventCategoryScheduler,
}

// eventLevels are the filterable severity levels.
var eventLevels = []string{
	model.EventLevelInfo,
	model.EventLevelWarning,
	model.EventLevelError,
}

// EventHandler renders the audit log. All routes are admin-only.
type EventHandler struct {
	queries  *store.Queries
	renderer *render.Renderer
	settings *cache.SettingsCache
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(db *sql.DB, renderer *render.Renderer, settings *cache.SettingsCache) *EventHandler {
	return &EventHandler{
		queries:  store.New(db),
		renderer: renderer,
		settings: settings,
	}
}

type eventsPageData struct {
	Events     []model.Event
	Categories []string
	Levels     []string
	Category   string
	Level      string
	Pagination Pagination
}

// List renders the audit log with category and level filters.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	category := r.URL.Query().Get("category")
	if !contains(eventCategories, category) {
		category = ""
	}
	level := r.URL.Query().Get("level")
	if !contains(eventLevels, level) {
		level = ""
	}
	page := pageParam(r)

	total, err := h.queries.CountEvents(ctx, category, level)
	if err != nil {
		logAndInternalError(w, "failed to count events", "error", err)
		return
	}

	events, err := h.queries.ListEvents(ctx, store.ListEventsParams{
		Category: category,
		Level:    level,
		Limit:    EventsPerPage,
		Offset:   (page - 1) * EventsPerPage,
	})
	if err != nil {
		logAndInternalError(w, "failed to list events", "error", err)
		return
	}

	queryParams := url.Values{}
	if category != "" {
		queryParams.Set("category", category)
	}
	if level != "" {
		queryParams.Set("level", level)
	}

	siteName, currency := siteSettings(ctx, h.settings)
	if err := h.renderer.Render(w, r, "app/events", render.TemplateData{
		Title:     "Audit Log",
		SiteName:  siteName,
		Currency:  currency,
		User:      middleware.GetUser(r),
		ActiveNav: "events",
		Data: eventsPageData{
			Events:     events,
			Categories: eventCategories,
			Levels:     eventLevels,
			Category:   category,
			Level:      level,
			Pagination: BuildPagination(int(page), total, EventsPerPage, RouteEvents, queryParams),
		},
	}); err != nil {
		logAndInternalError(w, "failed to render events", "error", err)
	}
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
