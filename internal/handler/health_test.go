// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openledger/openledger/internal/model"
	"github.com/openledger/openledger/internal/session"
	"github.com/openledger/openledger/internal/version"
)

func newHealthHandler(app *testApp) *HealthHandler {
	return NewHealthHandler(app.db, app.sm, &version.Info{Version: "v1.2.3"})
}

// asSessionUser wraps a handler so the session carries the given user ID,
// the way a logged-in browser request would.
func asSessionUser(app *testApp, userID int64, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		app.sm.Put(r.Context(), session.KeyUserID, userID)
		next(w, r)
	}
}

func TestHealthUnauthenticatedIsMinimal(t *testing.T) {
	app := newTestApp(t)
	h := newHealthHandler(app)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := app.serve(t, func(r chi.Router) { r.Get("/health", h.Health) }, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.NotContains(t, resp, "version", "unauthenticated callers get no detail")
	assert.NotContains(t, resp, "uptime")
}

func TestHealthAuthenticatedDetail(t *testing.T) {
	app := newTestApp(t)
	user := app.createUser(t, "member@example.com", "member password!", model.RoleMember)
	h := newHealthHandler(app)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := app.serve(t, func(r chi.Router) {
		r.Get("/health", asSessionUser(app, user.ID, h.Health))
	}, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "v1.2.3", resp["version"])
	assert.NotContains(t, resp, "checks", "check detail is admin-only")
}

func TestHealthAdminChecks(t *testing.T) {
	app := newTestApp(t)
	admin := app.createUser(t, "admin@example.com", "admin password!", model.RoleAdmin)
	h := newHealthHandler(app)

	req := httptest.NewRequest(http.MethodGet, "/health?verbose=true", nil)
	rr := app.serve(t, func(r chi.Router) {
		r.Get("/health", asSessionUser(app, admin.ID, h.Health))
	}, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Status string           `json:"status"`
		Checks map[string]Check `json:"checks"`
		System *SystemInfo      `json:"system"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	require.Contains(t, resp.Checks, "database")
	assert.Equal(t, "healthy", resp.Checks["database"].Status)
	require.NotNil(t, resp.System)
	assert.NotEmpty(t, resp.System.GoVersion)
}

func TestLiveness(t *testing.T) {
	app := newTestApp(t)
	h := newHealthHandler(app)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rr := app.serve(t, func(r chi.Router) { r.Get("/health/live", h.Liveness) }, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "alive")
}

func TestReadiness(t *testing.T) {
	app := newTestApp(t)
	h := newHealthHandler(app)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rr := app.serve(t, func(r chi.Router) { r.Get("/health/ready", h.Readiness) }, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ready")
}
