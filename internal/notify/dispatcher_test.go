// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package notify

import (
	"context"
	"testing"
	"time"
)

func TestGenerateSignature(t *testing.T) {
	payload := []byte(`{"title":"test"}`)
	secret := "test-secret"

	sig := GenerateSignature(payload, secret)
	if sig == "" {
		t.Fatal("signature should not be empty")
	}
	if len(sig) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(sig))
	}

	// Deterministic
	if sig != GenerateSignature(payload, secret) {
		t.Error("signature should be deterministic")
	}

	// Different secret, different signature
	if sig == GenerateSignature(payload, "other-secret") {
		t.Error("different secrets should produce different signatures")
	}
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"title":"test"}`)
	secret := "test-secret"
	sig := GenerateSignature(payload, secret)

	if !VerifySignature(payload, sig, secret) {
		t.Error("valid signature should verify")
	}
	if VerifySignature(payload, sig, "wrong-secret") {
		t.Error("wrong secret should fail verification")
	}
	if VerifySignature([]byte("tampered"), sig, secret) {
		t.Error("tampered payload should fail verification")
	}
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		attempt  int64
		expected time.Duration
	}{
		{1, 30 * time.Second},
		{2, time.Minute},
		{3, 2 * time.Minute},
		{4, 4 * time.Minute},
		{0, 30 * time.Second},
		{20, MaxBackoff},
	}

	for _, tt := range tests {
		if got := calculateBackoff(tt.attempt); got != tt.expected {
			t.Errorf("calculateBackoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
		}
	}
}

func TestAttemptDeliveryRejectsInvalidEndpoint(t *testing.T) {
	d := NewDispatcher(nil, nil, DefaultConfig("secret"))

	push := &queuedPush{
		deliveryID: 1,
		endpoint:   "http://example.com/push", // https required
		payload:    []byte(`{}`),
	}

	result := d.attemptDelivery(context.Background(), push)
	if result.success {
		t.Fatal("plain HTTP endpoint should be rejected")
	}
	if result.shouldRetry {
		t.Error("invalid endpoint should not be retried")
	}
}
