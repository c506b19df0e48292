package httputil

import (
	"net/http"
	"strings"

	"github.com/solarfleet/control-plane/internal/apierror"
)

// WriteAPIError maps err onto the bit-exact `{"error":{...}}` envelope
// and HTTP status derived from its apierror.Code, falling back to
// INTERNAL_ERROR for any error that isn't one of ours.
func WriteAPIError(w http.ResponseWriter, err error) {
	envelope, status := apierror.ToEnvelope(err)
	WriteJSON(w, status, envelope)
}

// WriteErrorResponse writes the same envelope shape from an
// already-split code/message/details triple, for callers in the
// ambient middleware stack that never touch the domain layer.
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	WriteJSON(w, status, apierror.Envelope{
		Error: apierror.EnvelopeBody{
			Code:    apierror.Code(code),
			Message: message,
			Details: details,
		},
	})
}

// ClientIP extracts the caller's address, preferring a proxy-set
// X-Forwarded-For header's first hop over RemoteAddr.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		return host[:i]
	}
	return host
}
