// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs background maintenance: materializing recurring
// transactions and pruning expired sessions, old audit events, settled
// notification deliveries, and stale invites.
package scheduler

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/openledger/openledger/internal/geoip"
	"github.com/openledger/openledger/internal/model"
	"github.com/openledger/openledger/internal/store"
)

// Retention windows for the nightly prune job.
const (
	EventRetention    = 90 * 24 * time.Hour
	DeliveryRetention = 30 * 24 * time.Hour
)

// Scheduler handles periodic background jobs.
type Scheduler struct {
	db     *sql.DB
	geo    *geoip.Lookup
	cron   *cron.Cron
	logger *slog.Logger
}

// New creates a new scheduler instance. geo may be nil; a nil logger
// falls back to slog.Default().
func New(db *sql.DB, geo *geoip.Lookup, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		db:     db,
		geo:    geo,
		cron:   cron.New(),
		logger: logger,
	}
}

// Start registers the jobs and begins the cron loop. Recurring
// transactions are materialized hourly so rules with intra-day schedules
// still land on the right day; pruning runs nightly.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 * * * *", func() {
		if err := s.materializeRecurring(); err != nil {
			s.logger.Error("failed to materialize recurring transactions", "error", err)
		}
	}); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc("30 3 * * *", func() {
		if err := s.prune(); err != nil {
			s.logger.Error("failed to prune old records", "error", err)
		}
	}); err != nil {
		return err
	}

	if s.geo != nil {
		if _, err := s.cron.AddFunc("15 4 * * *", func() {
			if err := s.geo.Reload(); err != nil {
				s.logger.Warn("failed to reload GeoIP database", "error", err)
			}
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
	return nil
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// materializeRecurring posts a copy of each recurring transaction whose
// cron rule fired within the last hour. The day-level duplicate check
// keeps the job idempotent across restarts.
func (s *Scheduler) materializeRecurring() error {
	ctx := context.Background()
	queries := store.New(s.db)

	recurring, err := queries.ListRecurringTransactions(ctx)
	if err != nil {
		return err
	}
	if len(recurring) == 0 {
		return nil
	}

	now := time.Now()
	posted := 0

	for i := range recurring {
		tx := &recurring[i]
		rule := tx.RecurringRule.String

		schedule, err := cron.ParseStandard(rule)
		if err != nil {
			s.logger.Warn("invalid recurrence rule, skipping",
				"transaction_id", tx.ID,
				"rule", rule,
				"error", err)
			continue
		}

		// Due if the rule fired in the window since the last run
		next := schedule.Next(now.Add(-time.Hour))
		if next.After(now) {
			continue
		}

		exists, err := queries.HasTransactionOn(ctx, tx.UserID, tx.CategoryID, tx.Payee, tx.AmountCents, now)
		if err != nil {
			s.logger.Error("recurring duplicate check failed", "transaction_id", tx.ID, "error", err)
			continue
		}
		if exists {
			continue
		}

		if err := s.postRecurring(ctx, queries, tx, now); err != nil {
			s.logger.Error("failed to post recurring transaction",
				"transaction_id", tx.ID,
				"error", err)
			continue
		}
		posted++
	}

	if posted > 0 {
		s.logger.Info("materialized recurring transactions", "count", posted)
	}
	return nil
}

// postRecurring inserts the materialized copy and logs an audit event.
// The copy carries no recurrence rule of its own.
func (s *Scheduler) postRecurring(ctx context.Context, queries *store.Queries, tx *model.Transaction, now time.Time) error {
	created, err := queries.CreateTransaction(ctx, store.CreateTransactionParams{
		UserID:      tx.UserID,
		CategoryID:  tx.CategoryID,
		OccurredOn:  now,
		AmountCents: tx.AmountCents,
		Payee:       tx.Payee,
		Notes:       tx.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return err
	}

	metadata := map[string]any{
		"source_id":    tx.ID,
		"posted_id":    created.ID,
		"amount_cents": tx.AmountCents,
		"rule":         tx.RecurringRule.String,
	}
	metadataJSON, _ := json.Marshal(metadata)

	_, err = queries.CreateEvent(ctx, store.CreateEventParams{
		Level:     model.EventLevelInfo,
		Category:  model.EventCategoryScheduler,
		Message:   "Recurring transaction posted: " + tx.Payee,
		UserID:    sql.NullInt64{Int64: tx.UserID, Valid: true},
		Metadata:  string(metadataJSON),
		CreatedAt: now,
	})
	if err != nil {
		s.logger.Warn("failed to log recurring post event", "error", err)
	}

	return nil
}

// prune removes expired sessions, stale invites, old audit events, and
// settled notification deliveries.
func (s *Scheduler) prune() error {
	ctx := context.Background()
	queries := store.New(s.db)
	now := time.Now()

	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expiry < ?`, now.UTC())
	if err != nil {
		s.logger.Error("failed to prune sessions", "error", err)
	} else if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Info("pruned expired sessions", "count", n)
	}

	if n, err := queries.DeleteExpiredInvites(ctx, now); err != nil {
		s.logger.Error("failed to prune invites", "error", err)
	} else if n > 0 {
		s.logger.Info("pruned expired invites", "count", n)
	}

	if n, err := queries.PruneEvents(ctx, now.Add(-EventRetention)); err != nil {
		s.logger.Error("failed to prune events", "error", err)
	} else if n > 0 {
		s.logger.Info("pruned old events", "count", n)
	}

	if n, err := queries.PruneDeliveries(ctx, now.Add(-DeliveryRetention)); err != nil {
		s.logger.Error("failed to prune deliveries", "error", err)
	} else if n > 0 {
		s.logger.Info("pruned settled deliveries", "count", n)
	}

	return nil
}
