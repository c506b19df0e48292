// Package middleware provides HTTP middleware for the control plane.
package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/solarfleet/control-plane/internal/httputil"
)

const defaultRequestTimeout = 30 * time.Second

// RequestTimeout bounds how long a handler may run before the caller
// gets a 504, so a stuck telemetry query or OTA schedule fan-out can't
// pin a connection open indefinitely.
type RequestTimeout struct {
	budget time.Duration
}

// NewTimeoutMiddleware builds a RequestTimeout. budget <= 0 falls back
// to defaultRequestTimeout.
func NewTimeoutMiddleware(budget time.Duration) *RequestTimeout {
	if budget <= 0 {
		budget = defaultRequestTimeout
	}
	return &RequestTimeout{budget: budget}
}

// Handler runs next in its own goroutine against a derived context
// and answers 504 if it hasn't finished when the budget expires.
func (m *RequestTimeout) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), m.budget)
		defer cancel()

		tw := &guardedWriter{ResponseWriter: w}
		finished := make(chan struct{})

		go func() {
			next.ServeHTTP(tw, r.WithContext(ctx))
			close(finished)
		}()

		select {
		case <-finished:
			return
		case <-ctx.Done():
			if ctx.Err() != context.DeadlineExceeded {
				return
			}
		}

		tw.mu.Lock()
		already := tw.wroteHeader
		tw.mu.Unlock()
		if already {
			return
		}
		httputil.WriteErrorResponse(w, r, http.StatusGatewayTimeout,
			"REQUEST_TIMEOUT", "request timed out", map[string]any{"timeout_seconds": m.budget.Seconds()})
	})
}

// guardedWriter tracks whether headers were already written, so the
// timeout path and the in-flight handler never both try to respond.
type guardedWriter struct {
	http.ResponseWriter
	mu          sync.Mutex
	wroteHeader bool
}

func (w *guardedWriter) WriteHeader(code int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.wroteHeader {
		w.wroteHeader = true
		w.ResponseWriter.WriteHeader(code)
	}
}

func (w *guardedWriter) Write(b []byte) (int, error) {
	w.mu.Lock()
	if !w.wroteHeader {
		w.wroteHeader = true
	}
	w.mu.Unlock()
	return w.ResponseWriter.Write(b)
}
