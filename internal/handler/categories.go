// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/openledger/openledger/internal/cache"
	"github.com/openledger/openledger/internal/middleware"
	"github.com/openledger/openledger/internal/model"
	"github.com/openledger/openledger/internal/render"
	"github.com/openledger/openledger/internal/service"
	"github.com/openledger/openledger/internal/store"
	"github.com/openledger/openledger/internal/util"
)

// CategoryHandler manages spending and income categories.
type CategoryHandler struct {
	queries      *store.Queries
	renderer     *render.Renderer
	settings     *cache.SettingsCache
	eventService *service.EventService
}

// NewCategoryHandler creates a new CategoryHandler.
func NewCategoryHandler(db *sql.DB, renderer *render.Renderer, settings *cache.SettingsCache, es *service.EventService) *CategoryHandler {
	return &CategoryHandler{
		queries:      store.New(db),
		renderer:     renderer,
		settings:     settings,
		eventService: es,
	}
}

type categoriesPageData struct {
	Categories []model.Category
	Kinds      []string
}

// List renders all categories with inline create and edit forms.
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := h.queries.ListCategories(r.Context())
	if err != nil {
		logAndInternalError(w, "failed to list categories", "error", err)
		return
	}

	siteName, currency := siteSettings(r.Context(), h.settings)
	if err := h.renderer.Render(w, r, "app/categories", render.TemplateData{
		Title:     "Categories",
		SiteName:  siteName,
		Currency:  currency,
		User:      middleware.GetUser(r),
		ActiveNav: "categories",
		Data: categoriesPageData{
			Categories: categories,
			Kinds:      model.ValidCategoryKinds,
		},
	}); err != nil {
		logAndInternalError(w, "failed to render categories", "error", err)
	}
}

// categorySlug derives a unique slug from the name, or uses the submitted
// slug when one was given.
func (h *CategoryHandler) categorySlug(r *http.Request, name string, excludeID int64) (string, error) {
	slug := strings.TrimSpace(r.FormValue("slug"))
	if slug == "" {
		slug = util.Slugify(name)
	} else {
		slug = util.Slugify(slug)
	}
	if slug == "" {
		return "", errors.New("slug cannot be empty")
	}

	existing, err := h.queries.GetCategoryBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return slug, nil
		}
		return "", err
	}
	if existing.ID == excludeID {
		return slug, nil
	}
	return "", errors.New("a category with this slug already exists")
}

// Create handles the new category form submission.
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !parseFormOrRedirect(w, r, h.renderer, redirectCategories) {
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		flashError(w, r, h.renderer, redirectCategories, "Name is required")
		return
	}

	kind := r.FormValue("kind")
	if !validCategoryKind(kind) {
		flashError(w, r, h.renderer, redirectCategories, "Invalid category kind")
		return
	}

	slug, err := h.categorySlug(r, name, 0)
	if err != nil {
		flashError(w, r, h.renderer, redirectCategories, err.Error())
		return
	}

	position, _ := strconv.ParseInt(r.FormValue("position"), 10, 64)

	now := time.Now()
	category, err := h.queries.CreateCategory(r.Context(), store.CreateCategoryParams{
		Name:      name,
		Slug:      slug,
		Kind:      kind,
		Position:  position,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		logAndInternalError(w, "failed to create category", "error", err)
		return
	}

	userID, ip := auditActor(r)
	logEventErr(h.eventService.LogLedgerEvent(r.Context(), model.EventLevelInfo, "Category created", userID, ip,
		map[string]any{"category_id": category.ID, "name": category.Name, "kind": category.Kind}))

	flashSuccess(w, r, h.renderer, redirectCategories, "Category created")
}

// Update handles the edit category form submission.
func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !parseFormOrRedirect(w, r, h.renderer, redirectCategories) {
		return
	}

	id, err := idParam(r)
	if err != nil {
		flashError(w, r, h.renderer, redirectCategories, "Invalid category ID")
		return
	}

	if _, ok := requireEntityWithRedirect(w, r, h.renderer, redirectCategories, "category", id,
		func(id int64) (model.Category, error) { return h.queries.GetCategory(r.Context(), id) }); !ok {
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		flashError(w, r, h.renderer, redirectCategories, "Name is required")
		return
	}

	kind := r.FormValue("kind")
	if !validCategoryKind(kind) {
		flashError(w, r, h.renderer, redirectCategories, "Invalid category kind")
		return
	}

	slug, err := h.categorySlug(r, name, id)
	if err != nil {
		flashError(w, r, h.renderer, redirectCategories, err.Error())
		return
	}

	position, _ := strconv.ParseInt(r.FormValue("position"), 10, 64)

	category, err := h.queries.UpdateCategory(r.Context(), store.UpdateCategoryParams{
		ID:        id,
		Name:      name,
		Slug:      slug,
		Kind:      kind,
		Position:  position,
		UpdatedAt: time.Now(),
	})
	if err != nil {
		logAndInternalError(w, "failed to update category", "error", err, "category_id", id)
		return
	}

	userID, ip := auditActor(r)
	logEventErr(h.eventService.LogLedgerEvent(r.Context(), model.EventLevelInfo, "Category updated", userID, ip,
		map[string]any{"category_id": category.ID, "name": category.Name}))

	flashSuccess(w, r, h.renderer, redirectCategories, "Category updated")
}

// Delete removes a category. Categories with recorded transactions are
// kept to preserve ledger history.
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		flashError(w, r, h.renderer, redirectCategories, "Invalid category ID")
		return
	}

	category, ok := requireEntityWithRedirect(w, r, h.renderer, redirectCategories, "category", id,
		func(id int64) (model.Category, error) { return h.queries.GetCategory(r.Context(), id) })
	if !ok {
		return
	}

	count, err := h.queries.CountTransactions(r.Context(), "", id)
	if err != nil {
		logAndInternalError(w, "failed to count transactions", "error", err, "category_id", id)
		return
	}
	if count > 0 {
		flashError(w, r, h.renderer, redirectCategories, "Cannot delete a category with transactions")
		return
	}

	if err := h.queries.DeleteCategory(r.Context(), id); err != nil {
		logAndInternalError(w, "failed to delete category", "error", err, "category_id", id)
		return
	}

	userID, ip := auditActor(r)
	logEventErr(h.eventService.LogLedgerEvent(r.Context(), model.EventLevelInfo, "Category deleted", userID, ip,
		map[string]any{"category_id": id, "name": category.Name}))

	flashSuccess(w, r, h.renderer, redirectCategories, "Category deleted")
}

func validCategoryKind(kind string) bool {
	for _, k := range model.ValidCategoryKinds {
		if k == kind {
			return true
		}
	}
	return false
}
