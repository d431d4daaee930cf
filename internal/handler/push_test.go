// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openledger/openledger/internal/model"
)

func newPushHandler(app *testApp) *PushHandler {
	return NewPushHandler(app.db, app.events)
}

func pushRequest(method, target, body string, user *model.User) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return withTestUser(req, user)
}

func TestPushSubscribe(t *testing.T) {
	app := newTestApp(t)
	user := app.createUser(t, "alice@example.com", "correct horse battery", model.RoleMember)
	h := newPushHandler(app)

	body := `{"endpoint":"https://push.example.com/send/abc","keys":{"auth":"a2V5","p256dh":"cDI1Ng"}}`
	req := pushRequest(http.MethodPost, "/api/push/subscriptions", body, &user)
	rr := app.serve(t, func(r chi.Router) { r.Post("/api/push/subscriptions", h.Subscribe) }, req)

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])

	subs, err := app.queries.ListSubscriptionsByUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "https://push.example.com/send/abc", subs[0].Endpoint)
}

func TestPushSubscribeRequiresAuth(t *testing.T) {
	app := newTestApp(t)
	h := newPushHandler(app)

	body := `{"endpoint":"https://push.example.com/send/abc","keys":{"auth":"a","p256dh":"b"}}`
	req := pushRequest(http.MethodPost, "/api/push/subscriptions", body, nil)
	rr := app.serve(t, func(r chi.Router) { r.Post("/api/push/subscriptions", h.Subscribe) }, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestPushSubscribeValidation(t *testing.T) {
	app := newTestApp(t)
	user := app.createUser(t, "alice@example.com", "correct horse battery", model.RoleMember)
	h := newPushHandler(app)

	tests := []struct {
		name string
		body string
	}{
		{"missing endpoint", `{"keys":{"auth":"a","p256dh":"b"}}`},
		{"plain http endpoint", `{"endpoint":"http://push.example.com/x","keys":{"auth":"a","p256dh":"b"}}`},
		{"missing keys", `{"endpoint":"https://push.example.com/x","keys":{}}`},
		{"not json", `nope`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := pushRequest(http.MethodPost, "/api/push/subscriptions", tt.body, &user)
			rr := app.serve(t, func(r chi.Router) { r.Post("/api/push/subscriptions", h.Subscribe) }, req)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestPushSubscribeUpsertsEndpoint(t *testing.T) {
	app := newTestApp(t)
	user := app.createUser(t, "alice@example.com", "correct horse battery", model.RoleMember)
	h := newPushHandler(app)

	register := func(keys string) {
		body := `{"endpoint":"https://push.example.com/send/abc","keys":` + keys + `}`
		req := pushRequest(http.MethodPost, "/api/push/subscriptions", body, &user)
		rr := app.serve(t, func(r chi.Router) { r.Post("/api/push/subscriptions", h.Subscribe) }, req)
		require.Equal(t, http.StatusCreated, rr.Code)
	}
	register(`{"auth":"old","p256dh":"old"}`)
	register(`{"auth":"new","p256dh":"new"}`)

	subs, err := app.queries.ListSubscriptionsByUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1, "re-registering must not duplicate the endpoint")
	assert.Equal(t, "new", subs[0].AuthKey)
}

func TestPushUnsubscribe(t *testing.T) {
	app := newTestApp(t)
	user := app.createUser(t, "alice@example.com", "correct horse battery", model.RoleMember)
	h := newPushHandler(app)

	body := `{"endpoint":"https://push.example.com/send/abc","keys":{"auth":"a","p256dh":"b"}}`
	req := pushRequest(http.MethodPost, "/api/push/subscriptions", body, &user)
	rr := app.serve(t, func(r chi.Router) { r.Post("/api/push/subscriptions", h.Subscribe) }, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	req = pushRequest(http.MethodDelete, "/api/push/subscriptions", `{"endpoint":"https://push.example.com/send/abc"}`, &user)
	rr = app.serve(t, func(r chi.Router) { r.Delete("/api/push/subscriptions", h.Unsubscribe) }, req)
	require.Equal(t, http.StatusOK, rr.Code)

	subs, err := app.queries.ListSubscriptionsByUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Empty(t, subs)
}
