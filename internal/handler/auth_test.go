// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openledger/openledger/internal/model"
	"github.com/openledger/openledger/internal/store"
)

func newAuthHandler(app *testApp) *AuthHandler {
	return NewAuthHandler(app.db, app.renderer, app.sm, app.events, nil)
}

func TestLoginSuccess(t *testing.T) {
	app := newTestApp(t)
	app.createUser(t, "alice@example.com", "correct horse battery", model.RoleMember)
	h := newAuthHandler(app)

	req := formRequest("/login", url.Values{
		"email":    {"alice@example.com"},
		"password": {"correct horse battery"},
	}, nil)
	rr := app.serve(t, func(r chi.Router) { r.Post("/login", h.Login) }, req)

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))
	require.NotNil(t, sessionCookie(rr), "login should set a session cookie")
}

func TestLoginWrongPassword(t *testing.T) {
	app := newTestApp(t)
	app.createUser(t, "alice@example.com", "correct horse battery", model.RoleMember)
	h := newAuthHandler(app)

	req := formRequest("/login", url.Values{
		"email":    {"alice@example.com"},
		"password": {"wrong"},
	}, nil)
	rr := app.serve(t, func(r chi.Router) { r.Post("/login", h.Login) }, req)

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))
	assert.Contains(t, app.flashMessage(t, rr), "Invalid email or password")
}

func TestLoginUnknownUserSameResponse(t *testing.T) {
	app := newTestApp(t)
	h := newAuthHandler(app)

	req := formRequest("/login", url.Values{
		"email":    {"nobody@example.com"},
		"password": {"whatever"},
	}, nil)
	rr := app.serve(t, func(r chi.Router) { r.Post("/login", h.Login) }, req)

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))
	assert.Contains(t, app.flashMessage(t, rr), "Invalid email or password")
}

func TestRegisterWithInvite(t *testing.T) {
	app := newTestApp(t)
	admin := app.createUser(t, "admin@example.com", "admin password!", model.RoleAdmin)
	h := newAuthHandler(app)

	now := time.Now()
	invite, err := app.queries.CreateInvite(context.Background(), store.CreateInviteParams{
		Token:     "tok-abc",
		Role:      model.RoleMember,
		CreatedBy: admin.ID,
		ExpiresAt: now.Add(24 * time.Hour),
		CreatedAt: now,
	})
	require.NoError(t, err)

	req := formRequest("/register", url.Values{
		"token":    {invite.Token},
		"email":    {"bob@example.com"},
		"name":     {"Bob"},
		"password": {"long enough pass"},
	}, nil)
	rr := app.serve(t, func(r chi.Router) { r.Post("/register", h.Register) }, req)

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))

	user, err := app.queries.GetUserByEmail(context.Background(), "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.RoleMember, user.Role)

	used, err := app.queries.GetInviteByToken(context.Background(), invite.Token)
	require.NoError(t, err)
	assert.True(t, used.UsedAt.Valid, "invite should be marked used")
}

func TestRegisterInviteEmailOverridesForm(t *testing.T) {
	app := newTestApp(t)
	admin := app.createUser(t, "admin@example.com", "admin password!", model.RoleAdmin)
	h := newAuthHandler(app)

	now := time.Now()
	_, err := app.queries.CreateInvite(context.Background(), store.CreateInviteParams{
		Token:     "tok-pinned",
		Email:     "carol@example.com",
		Role:      model.RoleMember,
		CreatedBy: admin.ID,
		ExpiresAt: now.Add(24 * time.Hour),
		CreatedAt: now,
	})
	require.NoError(t, err)

	req := formRequest("/register", url.Values{
		"token":    {"tok-pinned"},
		"email":    {"mallory@example.com"},
		"name":     {"Carol"},
		"password": {"long enough pass"},
	}, nil)
	rr := app.serve(t, func(r chi.Router) { r.Post("/register", h.Register) }, req)
	assert.Equal(t, http.StatusSeeOther, rr.Code)

	_, err = app.queries.GetUserByEmail(context.Background(), "mallory@example.com")
	assert.Error(t, err, "submitted email must not win over the invite address")
	_, err = app.queries.GetUserByEmail(context.Background(), "carol@example.com")
	assert.NoError(t, err)
}

func TestRegisterExpiredInvite(t *testing.T) {
	app := newTestApp(t)
	admin := app.createUser(t, "admin@example.com", "admin password!", model.RoleAdmin)
	h := newAuthHandler(app)

	now := time.Now()
	_, err := app.queries.CreateInvite(context.Background(), store.CreateInviteParams{
		Token:     "tok-old",
		Role:      model.RoleMember,
		CreatedBy: admin.ID,
		ExpiresAt: now.Add(-time.Hour),
		CreatedAt: now.Add(-48 * time.Hour),
	})
	require.NoError(t, err)

	req := formRequest("/register", url.Values{
		"token":    {"tok-old"},
		"email":    {"late@example.com"},
		"name":     {"Late"},
		"password": {"long enough pass"},
	}, nil)
	rr := app.serve(t, func(r chi.Router) { r.Post("/register", h.Register) }, req)

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))
	assert.Contains(t, app.flashMessage(t, rr), "Invalid or expired invite")
}

func TestInviteLandingRedirects(t *testing.T) {
	app := newTestApp(t)
	h := newAuthHandler(app)

	req := httptest.NewRequest(http.MethodGet, "/invite/tok-xyz", nil)
	rr := app.serve(t, func(r chi.Router) { r.Get("/invite/{token}", h.InviteLanding) }, req)

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/register?token=tok-xyz", rr.Header().Get("Location"))
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "30 seconds"},
		{time.Minute, "1 minute"},
		{15 * time.Minute, "15 minutes"},
		{time.Hour, "1 hour"},
		{3 * time.Hour, "3 hours"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.d))
	}
}
