// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openledger/openledger/internal/cache"
	"github.com/openledger/openledger/internal/store"
)

// MonthSummary aggregates the figures the dashboard needs for one month.
type MonthSummary struct {
	Totals          store.MonthTotals     `json:"totals"`
	SpentByCategory []store.BudgetSpentRow `json:"spent_by_category"`
}

// SummaryService computes monthly aggregates and caches them. Entries are
// invalidated when a transaction or budget line for the month changes, so
// the TTL only bounds staleness after an external write to the database.
type SummaryService struct {
	queries *store.Queries
	cache   cache.Cacher
	logger  *slog.Logger
}

// NewSummaryService creates a SummaryService backed by the given cache.
func NewSummaryService(db *sql.DB, c cache.Cacher, logger *slog.Logger) *SummaryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SummaryService{
		queries: store.New(db),
		cache:   c,
		logger:  logger,
	}
}

func summaryKey(month string) string {
	return fmt.Sprintf("summary:%s", month)
}

// MonthSummary returns the cached summary for a YYYY-MM month, computing and
// storing it on a miss.
func (s *SummaryService) MonthSummary(ctx context.Context, month string) (MonthSummary, error) {
	key := summaryKey(month)

	if data, err := s.cache.Get(ctx, key); err == nil {
		var summary MonthSummary
		if err := json.Unmarshal(data, &summary); err == nil {
			return summary, nil
		}
		// Corrupt entry, drop it and recompute
		_ = s.cache.Delete(ctx, key)
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("summary cache read failed", "month", month, "error", err)
	}

	summary, err := s.compute(ctx, month)
	if err != nil {
		return MonthSummary{}, err
	}

	if data, err := json.Marshal(summary); err == nil {
		if err := s.cache.Set(ctx, key, data, 0); err != nil {
			s.logger.Warn("summary cache write failed", "month", month, "error", err)
		}
	}
	return summary, nil
}

// Invalidate drops the cached summary for a month. Callers pass every month a
// write touched; an empty month is ignored.
func (s *SummaryService) Invalidate(ctx context.Context, months ...string) {
	for _, month := range months {
		if month == "" {
			continue
		}
		if err := s.cache.Delete(ctx, summaryKey(month)); err != nil {
			s.logger.Warn("summary cache invalidate failed", "month", month, "error", err)
		}
	}
}

func (s *SummaryService) compute(ctx context.Context, month string) (MonthSummary, error) {
	totals, err := s.queries.SumMonthTotals(ctx, month)
	if err != nil {
		return MonthSummary{}, fmt.Errorf("sum month totals: %w", err)
	}
	spent, err := s.queries.SumSpentByMonth(ctx, month)
	if err != nil {
		return MonthSummary{}, fmt.Errorf("sum spent by month: %w", err)
	}
	return MonthSummary{Totals: totals, SpentByCategory: spent}, nil
}
