// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openledger/openledger/internal/middleware"
	"github.com/openledger/openledger/internal/model"
	"github.com/openledger/openledger/internal/notify"
)

func newSettingsHandler(app *testApp, dispatcher *notify.Dispatcher) *SettingsHandler {
	return NewSettingsHandler(app.db, app.renderer, app.settings, app.events, dispatcher)
}

// TestSettingsAccessControl wires Gate and RequireAdmin around /settings
// the way main does: anonymous requests land on /login, members are sent
// back to the dashboard, admins see the page.
func TestSettingsAccessControl(t *testing.T) {
	app := newTestApp(t)
	admin := app.createUser(t, "admin@example.com", "admin password!", model.RoleAdmin)
	member := app.createUser(t, "member@example.com", "member password!", model.RoleMember)
	h := newSettingsHandler(app, nil)

	tests := []struct {
		name         string
		user         *model.User
		wantCode     int
		wantLocation string
	}{
		{"anonymous", nil, http.StatusSeeOther, "/login"},
		{"member", &member, http.StatusSeeOther, "/"},
		{"admin", &admin, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, RouteSettings, nil)
			rr := app.serve(t, func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(middleware.Gate(middleware.Classify, stubResolver{user: tt.user}))
					r.Group(func(r chi.Router) {
						r.Use(middleware.RequireAdmin())
						r.Get(RouteSettings, h.Show)
					})
				})
			}, req)

			require.Equal(t, tt.wantCode, rr.Code)
			if tt.wantLocation != "" {
				assert.Equal(t, tt.wantLocation, rr.Header().Get("Location"))
			}
		})
	}
}

func TestSettingsShow(t *testing.T) {
	app := newTestApp(t)
	admin := app.createUser(t, "admin@example.com", "admin password!", model.RoleAdmin)
	h := newSettingsHandler(app, nil)

	req := withTestUser(httptest.NewRequest(http.MethodGet, RouteSettings, nil), &admin)
	rr := app.serve(t, func(r chi.Router) { r.Get(RouteSettings, h.Show) }, req)

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Settings")
	// Seeded defaults appear in the form values.
	assert.Contains(t, body, "OpenLedger")
	assert.Contains(t, body, "USD")
}

func TestSettingsUpdate(t *testing.T) {
	app := newTestApp(t)
	admin := app.createUser(t, "admin@example.com", "admin password!", model.RoleAdmin)
	h := newSettingsHandler(app, nil)
	ctx := context.Background()

	// Prime the cache so the update has something to invalidate.
	currency, err := app.settings.Get(ctx, model.ConfigKeyCurrency)
	require.NoError(t, err)
	require.Equal(t, "USD", currency)

	req := formRequest(RouteSettings, url.Values{
		"site_name":       {"Family Ledger"},
		"currency":        {"EUR"},
		"month_start_day": {"15"},
	}, &admin)
	rr := app.serve(t, func(r chi.Router) { r.Post(RouteSettings, h.Update) }, req)

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, RouteSettings, rr.Header().Get("Location"))
	assert.Contains(t, app.flashMessage(t, rr), "Settings saved")

	// The cache serves the new values immediately after the update.
	got, err := app.settings.Get(ctx, model.ConfigKeySiteName)
	require.NoError(t, err)
	assert.Equal(t, "Family Ledger", got)
	got, err = app.settings.Get(ctx, model.ConfigKeyCurrency)
	require.NoError(t, err)
	assert.Equal(t, "EUR", got)
	got, err = app.settings.Get(ctx, model.ConfigKeyMonthStartDay)
	require.NoError(t, err)
	assert.Equal(t, "15", got)
}

func TestSettingsUpdateRejectsBadMonthStartDay(t *testing.T) {
	app := newTestApp(t)
	admin := app.createUser(t, "admin@example.com", "admin password!", model.RoleAdmin)
	h := newSettingsHandler(app, nil)

	for _, day := range []string{"0", "29", "abc"} {
		t.Run(day, func(t *testing.T) {
			req := formRequest(RouteSettings, url.Values{"month_start_day": {day}}, &admin)
			rr := app.serve(t, func(r chi.Router) { r.Post(RouteSettings, h.Update) }, req)

			assert.Equal(t, http.StatusSeeOther, rr.Code)
			assert.Contains(t, app.flashMessage(t, rr), "between 1 and 28")
		})
	}

	// The stored value is untouched.
	got, err := app.settings.Get(context.Background(), model.ConfigKeyMonthStartDay)
	require.NoError(t, err)
	assert.Equal(t, "1", got)
}

func TestSettingsTestNotificationUnconfigured(t *testing.T) {
	app := newTestApp(t)
	admin := app.createUser(t, "admin@example.com", "admin password!", model.RoleAdmin)
	h := newSettingsHandler(app, nil)

	req := formRequest("/settings/test-notification", nil, &admin)
	rr := app.serve(t, func(r chi.Router) { r.Post("/settings/test-notification", h.TestNotification) }, req)

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Contains(t, app.flashMessage(t, rr), "not configured")
}

func TestSettingsTestNotificationQueued(t *testing.T) {
	app := newTestApp(t)
	admin := app.createUser(t, "admin@example.com", "admin password!", model.RoleAdmin)
	dispatcher := notify.NewDispatcher(app.db, nil, notify.DefaultConfig("push-secret"))
	h := newSettingsHandler(app, dispatcher)

	req := formRequest("/settings/test-notification", nil, &admin)
	rr := app.serve(t, func(r chi.Router) { r.Post("/settings/test-notification", h.TestNotification) }, req)

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Contains(t, app.flashMessage(t, rr), "Test notification queued")
}
