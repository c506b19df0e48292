// Package middleware provides HTTP middleware for the control plane.
package middleware

import (
	"net/http"

	"github.com/solarfleet/control-plane/internal/httputil"
)

const defaultMaxRequestBodyBytes int64 = 8 << 20

// BodyLimit caps request bodies so a single tenant's bulk-import or
// telemetry-ingest call can't exhaust server memory. Content-Length is
// rejected up front when it already exceeds the cap; otherwise the
// body is wrapped in http.MaxBytesReader so a streaming decoder still
// stops at the limit.
type BodyLimit struct {
	maxBytes int64
}

// NewBodyLimitMiddleware builds a BodyLimit. maxBytes <= 0 falls back
// to defaultMaxRequestBodyBytes.
func NewBodyLimitMiddleware(maxBytes int64) *BodyLimit {
	if maxBytes <= 0 {
		maxBytes = defaultMaxRequestBodyBytes
	}
	return &BodyLimit{maxBytes: maxBytes}
}

// Handler enforces the limit before calling next.
func (m *BodyLimit) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.maxBytes <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > m.maxBytes {
			httputil.WriteErrorResponse(w, r, http.StatusRequestEntityTooLarge,
				"PAYLOAD_TOO_LARGE", "request body too large", map[string]any{"limit_bytes": m.maxBytes})
			return
		}
		if r.Body != nil && r.Body != http.NoBody {
			r.Body = http.MaxBytesReader(w, r.Body, m.maxBytes)
		}
		next.ServeHTTP(w, r)
	})
}
