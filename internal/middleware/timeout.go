// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Timeout cancels the request context after d and answers with
// 503 Service Unavailable when the handler has not produced a
// response by then.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			gw := &guardedWriter{ResponseWriter: w}

			done := make(chan struct{})
			go func() {
				defer close(done)
				next.ServeHTTP(gw, r.WithContext(ctx))
			}()

			select {
			case <-done:
			case <-ctx.Done():
				if gw.claim() {
					w.Header().Set("Content-Type", "text/plain; charset=utf-8")
					w.WriteHeader(http.StatusServiceUnavailable)
					w.Write([]byte("Request timeout"))
				}
			}
		})
	}
}

// guardedWriter ensures only one party, handler or timeout branch,
// writes response headers.
type guardedWriter struct {
	http.ResponseWriter
	mu      sync.Mutex
	started bool
}

// claim reports whether the caller won the right to write the
// response. It returns true at most once.
func (gw *guardedWriter) claim() bool {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if gw.started {
		return false
	}
	gw.started = true
	return true
}

func (gw *guardedWriter) WriteHeader(code int) {
	if gw.claim() {
		gw.ResponseWriter.WriteHeader(code)
	}
}

func (gw *guardedWriter) Write(b []byte) (int, error) {
	gw.WriteHeader(http.StatusOK)
	return gw.ResponseWriter.Write(b)
}
