// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/openledger/openledger/internal/cache"
	"github.com/openledger/openledger/internal/middleware"
	"github.com/openledger/openledger/internal/model"
	"github.com/openledger/openledger/internal/notify"
	"github.com/openledger/openledger/internal/render"
	"github.com/openledger/openledger/internal/service"
	"github.com/openledger/openledger/internal/store"
)

// editableSettings are the config keys the settings form manages.
var editableSettings = []string{
	model.ConfigKeySiteName,
	model.ConfigKeyCurrency,
	model.ConfigKeyMonthStartDay,
}

// SettingsHandler manages site-wide configuration. All routes are
// admin-only.
type SettingsHandler struct {
	queries      *store.Queries
	renderer     *render.Renderer
	settings     *cache.SettingsCache
	eventService *service.EventService
	dispatcher   *notify.Dispatcher
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(db *sql.DB, renderer *render.Renderer, settings *cache.SettingsCache, es *service.EventService, dispatcher *notify.Dispatcher) *SettingsHandler {
	return &SettingsHandler{
		queries:      store.New(db),
		renderer:     renderer,
		settings:     settings,
		eventService: es,
		dispatcher:   dispatcher,
	}
}

type settingsPageData struct {
	Values map[string]string
}

// Show renders the settings form.
func (h *SettingsHandler) Show(w http.ResponseWriter, r *http.Request) {
	values, err := h.settings.All(r.Context())
	if err != nil {
		logAndInternalError(w, "failed to load settings", "error", err)
		return
	}

	siteName, currency := siteSettings(r.Context(), h.settings)
	if err := h.renderer.Render(w, r, "app/settings", render.TemplateData{
		Title:     "Settings",
		SiteName:  siteName,
		Currency:  currency,
		User:      middleware.GetUser(r),
		ActiveNav: "settings",
		Data:      settingsPageData{Values: values},
	}); err != nil {
		logAndInternalError(w, "failed to render settings", "error", err)
	}
}

// Update saves the settings form and invalidates the cache.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !parseFormOrRedirect(w, r, h.renderer, redirectSettings) {
		return
	}

	now := time.Now()
	changed := make([]string, 0, len(editableSettings))
	for _, key := range editableSettings {
		if !r.Form.Has(key) {
			continue
		}
		value := strings.TrimSpace(r.FormValue(key))
		if key == model.ConfigKeyMonthStartDay {
			day, err := strconv.Atoi(value)
			if err != nil || day < 1 || day > 28 {
				flashError(w, r, h.renderer, redirectSettings, "Month start day must be between 1 and 28")
				return
			}
		}
		if err := h.queries.SetConfig(r.Context(), key, value, now); err != nil {
			logAndInternalError(w, "failed to save setting", "error", err, "key", key)
			return
		}
		changed = append(changed, key)
	}

	h.settings.Invalidate()

	userID, ip := auditActor(r)
	logEventErr(h.eventService.LogConfigEvent(r.Context(), model.EventLevelInfo, "Settings updated", userID, ip,
		map[string]any{"keys": changed}))

	flashSuccess(w, r, h.renderer, redirectSettings, "Settings saved")
}

// TestNotification sends a test push notification to the acting admin's
// registered devices.
func (h *SettingsHandler) TestNotification(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		http.Redirect(w, r, redirectLogin, http.StatusSeeOther)
		return
	}

	if h.dispatcher == nil {
		flashError(w, r, h.renderer, redirectSettings, "Push notifications are not configured")
		return
	}

	n := notify.DefaultNotification()
	n.Title = "Test notification"
	n.Body = "Push notifications are working."

	if err := h.dispatcher.NotifyUser(r.Context(), user.ID, n); err != nil {
		flashError(w, r, h.renderer, redirectSettings, "Failed to queue test notification")
		return
	}

	userID, ip := auditActor(r)
	logEventErr(h.eventService.LogNotifyEvent(r.Context(), model.EventLevelInfo, "Test notification sent", userID, ip, nil))

	flashSuccess(w, r, h.renderer, redirectSettings, "Test notification queued")
}
