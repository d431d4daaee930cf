// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"log/slog"
	"net/http"

	"github.com/alexedwards/scs/v2"

	"github.com/openledger/openledger/internal/middleware"
	"github.com/openledger/openledger/internal/model"
	"github.com/openledger/openledger/internal/service"
)

// AuthAPIHandler serves the JSON session endpoints used by the service
// worker and offline shell.
type AuthAPIHandler struct {
	resolver       middleware.SessionResolver
	sessionManager *scs.SessionManager
	eventService   *service.EventService
}

// NewAuthAPIHandler creates a new AuthAPIHandler.
func NewAuthAPIHandler(resolver middleware.SessionResolver, sm *scs.SessionManager, es *service.EventService) *AuthAPIHandler {
	return &AuthAPIHandler{
		resolver:       resolver,
		sessionManager: sm,
		eventService:   es,
	}
}

// Session handles GET /api/auth/session. It reports the caller's identity
// without requiring authentication, so clients can probe session state.
func (h *AuthAPIHandler) Session(w http.ResponseWriter, r *http.Request) {
	user, ok := h.resolver.Resolve(r)
	if !ok || user == nil {
		writeJSONSuccess(w, http.StatusOK, map[string]any{
			"authenticated": false,
		})
		return
	}

	writeJSONSuccess(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user": map[string]any{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
			"role":  user.Role,
		},
	})
}

// Logout handles POST /api/auth/logout, destroying the session.
func (h *AuthAPIHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user, _ := h.resolver.Resolve(r)

	if err := h.sessionManager.Destroy(r.Context()); err != nil {
		slog.Error("session destroy error", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to end session")
		return
	}

	if user != nil {
		_ = h.eventService.LogAuthEvent(r.Context(), model.EventLevelInfo, "User logged out", &user.ID, r, map[string]any{"via": "api"})
	}

	writeJSONSuccess(w, http.StatusOK, nil)
}
