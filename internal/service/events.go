// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service provides business logic shared across handlers,
// including audit event logging.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/mileusna/useragent"

	"github.com/openledger/openledger/internal/geoip"
	"github.com/openledger/openledger/internal/middleware"
	"github.com/openledger/openledger/internal/model"
	"github.com/openledger/openledger/internal/store"
)

// EventService writes audit trail entries. A GeoIP lookup is optional;
// when present, events logged from a request get a country code in their
// metadata.
type EventService struct {
	queries *store.Queries
	geo     *geoip.Lookup
}

// NewEventService creates a new EventService.
func NewEventService(db *sql.DB, geo *geoip.Lookup) *EventService {
	return &EventService{
		queries: store.New(db),
		geo:     geo,
	}
}

// LogEvent creates a new audit entry. Failures are logged and returned but
// callers usually ignore them: a broken audit trail must not break the
// operation being audited.
func (s *EventService) LogEvent(ctx context.Context, level, category, message string, userID *int64, ipAddress string, metadata map[string]any) error {
	var nullUserID sql.NullInt64
	if userID != nil {
		nullUserID = sql.NullInt64{Int64: *userID, Valid: true}
	}

	metadataJSON := "{}"
	if metadata != nil {
		jsonBytes, err := json.Marshal(metadata)
		if err == nil {
			metadataJSON = string(jsonBytes)
		}
	}

	_, err := s.queries.CreateEvent(ctx, store.CreateEventParams{
		Level:     level,
		Category:  category,
		Message:   message,
		UserID:    nullUserID,
		IPAddress: ipAddress,
		Metadata:  metadataJSON,
		CreatedAt: time.Now(),
	})
	if err != nil {
		slog.Error("failed to log audit event", "category", category, "error", err)
		return err
	}

	return nil
}

// LogInfo logs an info-level event.
func (s *EventService) LogInfo(ctx context.Context, category, message string, userID *int64, ipAddress string, metadata map[string]any) error {
	return s.LogEvent(ctx, model.EventLevelInfo, category, message, userID, ipAddress, metadata)
}

// LogWarning logs a warning-level event.
func (s *EventService) LogWarning(ctx context.Context, category, message string, userID *int64, ipAddress string, metadata map[string]any) error {
	return s.LogEvent(ctx, model.EventLevelWarning, category, message, userID, ipAddress, metadata)
}

// LogError logs an error-level event.
func (s *EventService) LogError(ctx context.Context, category, message string, userID *int64, ipAddress string, metadata map[string]any) error {
	return s.LogEvent(ctx, model.EventLevelError, category, message, userID, ipAddress, metadata)
}

// LogAuthEvent logs an authentication event enriched with client details
// parsed from the request: browser, OS, device class, and country when
// GeoIP is available.
func (s *EventService) LogAuthEvent(ctx context.Context, level, message string, userID *int64, r *http.Request, metadata map[string]any) error {
	if metadata == nil {
		metadata = make(map[string]any)
	}

	ip := middleware.ClientIP(r)

	ua := useragent.Parse(r.UserAgent())
	if ua.Name != "" {
		metadata["browser"] = ua.Name
		metadata["browser_version"] = ua.Version
	}
	if ua.OS != "" {
		metadata["os"] = ua.OS
	}
	switch {
	case ua.Mobile:
		metadata["device"] = "mobile"
	case ua.Tablet:
		metadata["device"] = "tablet"
	case ua.Desktop:
		metadata["device"] = "desktop"
	case ua.Bot:
		metadata["device"] = "bot"
	}

	if s.geo != nil {
		if country := s.geo.LookupCountry(ip); country != "" {
			metadata["country"] = country
		}
	}

	return s.LogEvent(ctx, level, model.EventCategoryAuth, message, userID, ip, metadata)
}

// LogBudgetEvent logs a budget-related event.
func (s *EventService) LogBudgetEvent(ctx context.Context, level, message string, userID *int64, ipAddress string, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategoryBudget, message, userID, ipAddress, metadata)
}

// LogLedgerEvent logs a transaction ledger event.
func (s *EventService) LogLedgerEvent(ctx context.Context, level, message string, userID *int64, ipAddress string, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategoryLedger, message, userID, ipAddress, metadata)
}

// LogUserEvent logs a user management event.
func (s *EventService) LogUserEvent(ctx context.Context, level, message string, userID *int64, ipAddress string, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategoryUser, message, userID, ipAddress, metadata)
}

// LogConfigEvent logs a settings change event.
func (s *EventService) LogConfigEvent(ctx context.Context, level, message string, userID *int64, ipAddress string, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategoryConfig, message, userID, ipAddress, metadata)
}

// LogSystemEvent logs a system event.
func (s *EventService) LogSystemEvent(ctx context.Context, level, message string, userID *int64, ipAddress string, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategorySystem, message, userID, ipAddress, metadata)
}

// LogNotifyEvent logs a push notification event.
func (s *EventService) LogNotifyEvent(ctx context.Context, level, message string, userID *int64, ipAddress string, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategoryNotify, message, userID, ipAddress, metadata)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *EventService) DeleteOldEvents(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)
	_, err := s.queries.PruneEvents(ctx, cutoff)
	return err
}
