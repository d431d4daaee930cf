// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/openledger/openledger/internal/model"
	"github.com/openledger/openledger/internal/store"
	"github.com/openledger/openledger/internal/util"
)

// Delivery configuration constants.
const (
	MaxAttempts    = 5
	InitialBackoff = 30 * time.Second
	MaxBackoff     = 1 * time.Hour
	RequestTimeout = 30 * time.Second
	MaxResponseLen = 10 * 1024
	UserAgent      = "OpenLedger/1.0"
)

// Dispatcher queues resolved notifications and delivers them to push
// endpoints with a bounded worker pool.
type Dispatcher struct {
	db      *sql.DB
	queries *store.Queries
	logger  *slog.Logger
	client  *http.Client
	secret  string
	queue   chan *queuedPush
	workers int
	wg      sync.WaitGroup
	done    chan struct{}
	mu      sync.RWMutex
	running bool
}

// queuedPush is one delivery attempt in flight.
type queuedPush struct {
	deliveryID     int64
	subscriptionID int64
	endpoint       string
	payload        []byte
	attempt        int64
	notBefore      time.Time
}

// Config holds dispatcher configuration.
type Config struct {
	Workers int    // Number of concurrent delivery workers
	Secret  string // HMAC key for payload signatures
}

// DefaultConfig returns default dispatcher configuration.
func DefaultConfig(secret string) Config {
	return Config{
		Workers: 3,
		Secret:  secret,
	}
}

// NewDispatcher creates a new push dispatcher. Outbound requests use an
// SSRF-safe dialer so a compromised subscription endpoint cannot reach
// internal addresses.
func NewDispatcher(db *sql.DB, logger *slog.Logger, cfg Config) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := &http.Client{
		Timeout: RequestTimeout,
		Transport: &http.Transport{
			DialContext:         util.SSRFSafeDialContext(&net.Dialer{Timeout: 10 * time.Second}),
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Dispatcher{
		db:      db,
		queries: store.New(db),
		logger:  logger,
		client:  client,
		secret:  cfg.Secret,
		queue:   make(chan *queuedPush, 100),
		workers: cfg.Workers,
		done:    make(chan struct{}),
	}
}

// Start starts the dispatcher workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	d.logger.Info("starting push dispatcher", "workers", d.workers)

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
}

// Stop stops the dispatcher and waits for workers to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	d.logger.Info("stopping push dispatcher")
	close(d.done)
	d.wg.Wait()
	d.logger.Info("push dispatcher stopped")
}

// worker processes queued deliveries.
func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	d.logger.Debug("push worker started", "worker_id", id)

	for {
		select {
		case <-d.done:
			d.logger.Debug("push worker stopping", "worker_id", id)
			return
		case <-ctx.Done():
			return
		case push := <-d.queue:
			if wait := time.Until(push.notBefore); wait > 0 {
				select {
				case <-d.done:
					return
				case <-ctx.Done():
					return
				case <-time.After(wait):
				}
			}
			d.processDelivery(ctx, push)
		}
	}
}

// NotifyUser resolves the notification and queues one delivery per push
// subscription the user has registered.
func (d *Dispatcher) NotifyUser(ctx context.Context, userID int64, n Notification) error {
	subs, err := d.queries.ListSubscriptionsByUser(ctx, userID)
	if err != nil {
		d.logger.Error("failed to list subscriptions", "error", err, "user_id", userID)
		return err
	}
	return d.enqueue(ctx, subs, n)
}

// NotifyAll queues a delivery to every registered subscription.
func (d *Dispatcher) NotifyAll(ctx context.Context, n Notification) error {
	subs, err := d.queries.ListSubscriptions(ctx)
	if err != nil {
		d.logger.Error("failed to list subscriptions", "error", err)
		return err
	}
	return d.enqueue(ctx, subs, n)
}

func (d *Dispatcher) enqueue(ctx context.Context, subs []model.PushSubscription, n Notification) error {
	d.mu.RLock()
	running := d.running
	d.mu.RUnlock()

	if !running {
		d.logger.Warn("dispatcher not running, notification dropped")
		return nil
	}

	payload := n.Encode()
	now := time.Now()

	for _, sub := range subs {
		delivery, err := d.queries.CreateDelivery(ctx, sub.ID, string(payload), now)
		if err != nil {
			d.logger.Error("failed to create delivery record",
				"error", err,
				"subscription_id", sub.ID)
			continue
		}

		push := &queuedPush{
			deliveryID:     delivery.ID,
			subscriptionID: sub.ID,
			endpoint:       sub.Endpoint,
			payload:        payload,
			attempt:        0,
		}

		select {
		case d.queue <- push:
			d.logger.Debug("delivery queued", "delivery_id", delivery.ID)
		default:
			d.logger.Warn("push queue full, delivery dropped", "delivery_id", delivery.ID)
			_ = d.queries.UpdateDeliveryStatus(ctx, delivery.ID, model.DeliveryFailed, 0, "queue full", time.Now())
		}
	}

	return nil
}

// deliveryResult represents the outcome of one delivery attempt.
type deliveryResult struct {
	success     bool
	statusCode  int
	err         error
	shouldRetry bool
	gone        bool
}

// processDelivery attempts delivery, then records the outcome and
// requeues with backoff when the attempt is retryable.
func (d *Dispatcher) processDelivery(ctx context.Context, push *queuedPush) {
	result := d.attemptDelivery(ctx, push)
	now := time.Now()
	attempts := push.attempt + 1

	if result.success {
		if err := d.queries.UpdateDeliveryStatus(ctx, push.deliveryID, model.DeliveryDelivered, attempts, "", now); err != nil {
			d.logger.Error("failed to update delivery", "error", err, "delivery_id", push.deliveryID)
		} else {
			d.logger.Info("notification delivered",
				"delivery_id", push.deliveryID,
				"subscription_id", push.subscriptionID,
				"status_code", result.statusCode)
		}
		return
	}

	errMsg := ""
	if result.err != nil {
		errMsg = result.err.Error()
	}

	// A 404 or 410 means the browser dropped the subscription; remove it
	// so we stop pushing into the void.
	if result.gone {
		if err := d.queries.DeleteSubscriptionByEndpoint(ctx, push.endpoint); err != nil {
			d.logger.Error("failed to remove stale subscription", "error", err, "subscription_id", push.subscriptionID)
		} else {
			d.logger.Info("removed stale push subscription", "subscription_id", push.subscriptionID)
		}
	}

	if !result.shouldRetry || attempts >= MaxAttempts {
		if err := d.queries.UpdateDeliveryStatus(ctx, push.deliveryID, model.DeliveryFailed, attempts, errMsg, now); err != nil {
			d.logger.Error("failed to update delivery", "error", err, "delivery_id", push.deliveryID)
		} else {
			d.logger.Warn("notification delivery failed",
				"delivery_id", push.deliveryID,
				"subscription_id", push.subscriptionID,
				"attempts", attempts,
				"reason", errMsg)
		}
		return
	}

	backoff := calculateBackoff(attempts)
	if err := d.queries.UpdateDeliveryStatus(ctx, push.deliveryID, model.DeliveryPending, attempts, errMsg, now); err != nil {
		d.logger.Error("failed to update delivery", "error", err, "delivery_id", push.deliveryID)
	}

	retry := &queuedPush{
		deliveryID:     push.deliveryID,
		subscriptionID: push.subscriptionID,
		endpoint:       push.endpoint,
		payload:        push.payload,
		attempt:        attempts,
		notBefore:      now.Add(backoff),
	}

	select {
	case d.queue <- retry:
		d.logger.Info("delivery scheduled for retry",
			"delivery_id", push.deliveryID,
			"attempt", attempts,
			"backoff", backoff.String())
	default:
		_ = d.queries.UpdateDeliveryStatus(ctx, push.deliveryID, model.DeliveryFailed, attempts, "queue full on retry", time.Now())
	}
}

// attemptDelivery performs the HTTP POST to the push endpoint.
func (d *Dispatcher) attemptDelivery(ctx context.Context, push *queuedPush) deliveryResult {
	if err := util.ValidateEndpointURL(push.endpoint); err != nil {
		return deliveryResult{err: fmt.Errorf("invalid endpoint: %w", err), shouldRetry: false}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, push.endpoint, bytes.NewReader(push.payload))
	if err != nil {
		return deliveryResult{err: fmt.Errorf("failed to create request: %w", err), shouldRetry: false}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("X-Ledger-Signature", GenerateSignature(push.payload, d.secret))
	req.Header.Set("TTL", "86400")

	resp, err := d.client.Do(req)
	if err != nil {
		return deliveryResult{err: fmt.Errorf("request failed: %w", err), shouldRetry: true}
	}
	defer func() { _ = resp.Body.Close() }()

	// Drain so the connection can be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, MaxResponseLen))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return deliveryResult{success: true, statusCode: resp.StatusCode}
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return deliveryResult{
			statusCode: resp.StatusCode,
			err:        fmt.Errorf("HTTP %d: subscription gone", resp.StatusCode),
			gone:       true,
		}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// Client error: retry only timeouts and throttling
		shouldRetry := resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests
		return deliveryResult{
			statusCode:  resp.StatusCode,
			err:         fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
			shouldRetry: shouldRetry,
		}
	default:
		return deliveryResult{
			statusCode:  resp.StatusCode,
			err:         fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
			shouldRetry: true,
		}
	}
}

// calculateBackoff returns the exponential backoff for a given attempt,
// capped at MaxBackoff.
func calculateBackoff(attempt int64) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	backoff := time.Duration(float64(InitialBackoff) * math.Pow(2, float64(attempt-1)))
	if backoff > MaxBackoff {
		backoff = MaxBackoff
	}

	return backoff
}

// GenerateSignature generates an HMAC-SHA256 signature for the payload.
func GenerateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature verifies an HMAC-SHA256 signature in constant time.
func VerifySignature(payload []byte, signature, secret string) bool {
	expected := GenerateSignature(payload, secret)
	return hmac.Equal([]byte(signature), []byte(expected))
}
