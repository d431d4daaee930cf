// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/openledger/openledger/internal/model"
	"github.com/openledger/openledger/internal/store"
)

func eventTestDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "ledger-service-test-*.db")
	if err != nil {
		t.Fatalf("creating temp file: %v", err)
	}
	dbPath := f.Name()
	f.Close()

	db, err := store.NewDB(dbPath)
	if err != nil {
		os.Remove(dbPath)
		t.Fatalf("NewDB: %v", err)
	}
	if err := store.Migrate(db); err != nil {
		db.Close()
		os.Remove(dbPath)
		t.Fatalf("Migrate: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
		os.Remove(dbPath)
	})

	return db
}

func TestLogEvent(t *testing.T) {
	db := eventTestDB(t)
	svc := NewEventService(db, nil)
	ctx := context.Background()

	userID := int64(42)
	err := svc.LogInfo(ctx, model.EventCategoryBudget, "budget created", &userID, "192.0.2.1", map[string]any{"month": "2026-08"})
	if err != nil {
		t.Fatalf("LogInfo: %v", err)
	}

	queries := store.New(db)
	events, err := queries.ListEvents(ctx, store.ListEventsParams{Limit: 10})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	e := events[0]
	if e.Level != model.EventLevelInfo {
		t.Errorf("level = %q, want info", e.Level)
	}
	if e.Category != model.EventCategoryBudget {
		t.Errorf("category = %q, want budget", e.Category)
	}
	if !e.UserID.Valid || e.UserID.Int64 != 42 {
		t.Errorf("user_id = %+v, want 42", e.UserID)
	}

	var meta map[string]any
	if err := json.Unmarshal([]byte(e.Metadata), &meta); err != nil {
		t.Fatalf("metadata not valid JSON: %v", err)
	}
	if meta["month"] != "2026-08" {
		t.Errorf("metadata month = %v", meta["month"])
	}
}

func TestLogEventNilMetadata(t *testing.T) {
	db := eventTestDB(t)
	svc := NewEventService(db, nil)

	if err := svc.LogSystemEvent(context.Background(), model.EventLevelWarning, "startup", nil, "", nil); err != nil {
		t.Fatalf("LogSystemEvent: %v", err)
	}

	events, err := store.New(db).ListEvents(context.Background(), store.ListEventsParams{Limit: 1})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if events[0].Metadata != "{}" {
		t.Errorf("metadata = %q, want {}", events[0].Metadata)
	}
	if events[0].UserID.Valid {
		t.Error("user_id should be null")
	}
}

func TestLogAuthEventParsesUserAgent(t *testing.T) {
	db := eventTestDB(t)
	svc := NewEventService(db, nil)

	req := httptest.NewRequest("POST", "/login", nil)
	req.RemoteAddr = "203.0.113.9:4455"
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	if err := svc.LogAuthEvent(context.Background(), model.EventLevelInfo, "login succeeded", nil, req, nil); err != nil {
		t.Fatalf("LogAuthEvent: %v", err)
	}

	events, err := store.New(db).ListEvents(context.Background(), store.ListEventsParams{Category: model.EventCategoryAuth, Limit: 1})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 auth event, got %d", len(events))
	}

	if events[0].IPAddress != "203.0.113.9:4455" {
		t.Errorf("ip = %q", events[0].IPAddress)
	}

	var meta map[string]any
	if err := json.Unmarshal([]byte(events[0].Metadata), &meta); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta["browser"] != "Chrome" {
		t.Errorf("browser = %v, want Chrome", meta["browser"])
	}
	if meta["os"] != "Windows" {
		t.Errorf("os = %v, want Windows", meta["os"])
	}
	if meta["device"] != "desktop" {
		t.Errorf("device = %v, want desktop", meta["device"])
	}
}

func TestDeleteOldEvents(t *testing.T) {
	db := eventTestDB(t)
	svc := NewEventService(db, nil)
	ctx := context.Background()
	queries := store.New(db)

	old := store.CreateEventParams{
		Level:     model.EventLevelInfo,
		Category:  model.EventCategorySystem,
		Message:   "old",
		Metadata:  "{}",
		CreatedAt: time.Now().Add(-48 * time.Hour),
	}
	if _, err := queries.CreateEvent(ctx, old); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if err := svc.LogSystemEvent(ctx, model.EventLevelInfo, "recent", nil, "", nil); err != nil {
		t.Fatalf("LogSystemEvent: %v", err)
	}

	if err := svc.DeleteOldEvents(ctx, 24*time.Hour); err != nil {
		t.Fatalf("DeleteOldEvents: %v", err)
	}

	events, err := queries.ListEvents(ctx, store.ListEventsParams{Limit: 10})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 || events[0].Message != "recent" {
		t.Errorf("expected only the recent event, got %d", len(events))
	}
}
