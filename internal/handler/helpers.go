// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openledger/openledger/internal/cache"
	"github.com/openledger/openledger/internal/middleware"
	"github.com/openledger/openledger/internal/model"
)

// parseFormID parses a positive integer form field.
func parseFormID(r *http.Request, field string) (int64, bool) {
	id, err := strconv.ParseInt(r.FormValue(field), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

// siteSettings returns the configured site name and currency, falling back
// to defaults when the settings are missing.
func siteSettings(ctx context.Context, settings *cache.SettingsCache) (siteName, currency string) {
	siteName = "OpenLedger"
	currency = "USD"
	if settings == nil {
		return
	}
	if v, err := settings.Get(ctx, model.ConfigKeySiteName); err == nil && v != "" {
		siteName = v
	}
	if v, err := settings.Get(ctx, model.ConfigKeyCurrency); err == nil && v != "" {
		currency = v
	}
	return
}

// monthParam returns the validated YYYY-MM month from the query string,
// defaulting to the current month.
func monthParam(r *http.Request) string {
	month := r.URL.Query().Get("month")
	if model.ValidMonth(month) {
		return month
	}
	return time.Now().Format("2006-01")
}

// adjacentMonths returns the months before and after a YYYY-MM month.
func adjacentMonths(month string) (prev, next string) {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return month, month
	}
	return t.AddDate(0, -1, 0).Format("2006-01"), t.AddDate(0, 1, 0).Format("2006-01")
}

// idParam extracts and parses the {id} URL parameter.
func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// pageParam returns the current page number from the query string, at least 1.
func pageParam(r *http.Request) int64 {
	page, err := strconv.ParseInt(r.URL.Query().Get("page"), 10, 64)
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// parseCents converts a decimal amount string like "12.34" or "-5" into
// cents. Only up to two fractional digits are accepted.
func parseCents(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	whole := s
	frac := ""
	for i := 0; i < len(s); i++ {
		if s[i] == '.' || s[i] == ',' {
			whole, frac = s[:i], s[i+1:]
			break
		}
	}
	if whole == "" && frac == "" {
		return 0, false
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 2 {
		return 0, false
	}
	for len(frac) < 2 {
		frac += "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, false
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, false
	}
	cents := w*100 + f
	if neg {
		cents = -cents
	}
	return cents, true
}

// auditActor returns the acting user's ID (nil when unauthenticated) and
// client IP for audit log entries.
func auditActor(r *http.Request) (*int64, string) {
	var userID *int64
	if u := middleware.GetUser(r); u != nil {
		userID = &u.ID
	}
	return userID, middleware.ClientIP(r)
}

// logEventErr logs a failed audit write without failing the request.
func logEventErr(err error) {
	if err != nil {
		slog.Error("failed to write audit event", "error", err)
	}
}
