// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package notify handles push notification payloads and delivery.
package notify

import (
	"encoding/json"
	"log/slog"
)

// Default values applied to missing payload fields.
const (
	DefaultTitle = "OpenLedger"
	DefaultBody  = "You have a new notification."
	DefaultIcon  = "/static/icons/icon-192.png"
	DefaultBadge = "/static/icons/badge-72.png"
)

// rawPayload is the wire form of a notification. Pointer fields
// distinguish an absent key from an explicit empty string: only absent
// keys are defaulted.
type rawPayload struct {
	Title *string        `json:"title"`
	Body  *string        `json:"body"`
	Icon  *string        `json:"icon"`
	Badge *string        `json:"badge"`
	Data  map[string]any `json:"data"`
}

// Notification is a fully resolved push notification, every field populated.
type Notification struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Icon  string         `json:"icon"`
	Badge string         `json:"badge"`
	Data  map[string]any `json:"data"`
}

// DefaultNotification returns a notification with every field at its default.
func DefaultNotification() Notification {
	return Notification{
		Title: DefaultTitle,
		Body:  DefaultBody,
		Icon:  DefaultIcon,
		Badge: DefaultBadge,
		Data:  map[string]any{},
	}
}

// ParsePayload resolves a raw payload into a complete Notification.
// Missing fields get defaults, explicit empty strings are preserved.
// Unparsable input yields the full default notification with a warning.
// It never returns an error.
func ParsePayload(raw []byte) Notification {
	n := DefaultNotification()

	if len(raw) == 0 {
		return n
	}

	var p rawPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		slog.Warn("unparsable push payload, using defaults", "error", err)
		return n
	}

	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Body != nil {
		n.Body = *p.Body
	}
	if p.Icon != nil {
		n.Icon = *p.Icon
	}
	if p.Badge != nil {
		n.Badge = *p.Badge
	}
	if p.Data != nil {
		n.Data = p.Data
	}

	return n
}

// Encode serializes the resolved notification for delivery.
func (n Notification) Encode() []byte {
	b, err := json.Marshal(n)
	if err != nil {
		// Data can hold unmarshalable values from callers; fall back to
		// the defaults rather than dropping the notification.
		slog.Warn("failed to encode notification, sending defaults", "error", err)
		b, _ = json.Marshal(DefaultNotification())
	}
	return b
}
