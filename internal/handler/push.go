// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/openledger/openledger/internal/middleware"
	"github.com/openledger/openledger/internal/model"
	"github.com/openledger/openledger/internal/service"
	"github.com/openledger/openledger/internal/store"
	"github.com/openledger/openledger/internal/util"
)

// PushHandler manages push subscription registration.
type PushHandler struct {
	queries      *store.Queries
	eventService *service.EventService
}

// NewPushHandler creates a new PushHandler.
func NewPushHandler(db *sql.DB, es *service.EventService) *PushHandler {
	return &PushHandler{
		queries:      store.New(db),
		eventService: es,
	}
}

// subscriptionRequest mirrors the browser PushSubscription JSON shape.
type subscriptionRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		Auth   string `json:"auth"`
		P256dh string `json:"p256dh"`
	} `json:"keys"`
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

// Subscribe handles POST /api/push/subscriptions. Re-registering a known
// endpoint updates its keys.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req subscriptionRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.Endpoint == "" {
		writeJSONError(w, http.StatusBadRequest, "endpoint is required")
		return
	}
	if err := util.ValidateEndpointURL(req.Endpoint); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid endpoint: "+err.Error())
		return
	}
	if req.Keys.Auth == "" || req.Keys.P256dh == "" {
		writeJSONError(w, http.StatusBadRequest, "subscription keys are required")
		return
	}

	sub, err := h.queries.CreateSubscription(r.Context(), store.CreateSubscriptionParams{
		UserID:    user.ID,
		Endpoint:  req.Endpoint,
		AuthKey:   req.Keys.Auth,
		P256dhKey: req.Keys.P256dh,
		CreatedAt: time.Now(),
	})
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}

	userID, ip := auditActor(r)
	logEventErr(h.eventService.LogNotifyEvent(r.Context(), model.EventLevelInfo, "Push subscription registered", userID, ip,
		map[string]any{"subscription_id": sub.ID}))

	writeJSONSuccess(w, http.StatusCreated, map[string]any{
		"id": sub.ID,
	})
}

// Unsubscribe handles DELETE /api/push/subscriptions. The endpoint to
// remove is carried in the JSON body, matching the subscribe shape.
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req unsubscribeRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.Endpoint == "" {
		writeJSONError(w, http.StatusBadRequest, "endpoint is required")
		return
	}

	if err := h.queries.DeleteSubscriptionByEndpoint(r.Context(), req.Endpoint); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to remove subscription")
		return
	}

	userID, ip := auditActor(r)
	logEventErr(h.eventService.LogNotifyEvent(r.Context(), model.EventLevelInfo, "Push subscription removed", userID, ip, nil))

	writeJSONSuccess(w, http.StatusOK, nil)
}
