// Package middleware provides HTTP middleware for the control plane.
//
// apiFault is the internal error shape the panic-recovery and
// rate-limit middleware use to build a JSON error body; it is not the
// same type as internal/apierror, which the route handlers use — this
// package only needs a handful of fixed, middleware-raised faults.
package middleware

import (
	"errors"
	"fmt"
	"net/http"
)

// faultCode identifies one of the fixed faults this package can raise.
type faultCode string

const (
	faultUnauthorized faultCode = "AUTH_1001"
	faultInvalidToken faultCode = "AUTH_1002"
	faultForbidden    faultCode = "AUTHZ_2001"
	faultBadFormat    faultCode = "VAL_3003"
	faultInternal     faultCode = "SVC_5001"
	faultRateLimited  faultCode = "SVC_5006"
)

// apiFault is a structured error carrying the HTTP status and JSON
// detail payload httputil.WriteErrorResponse needs.
type apiFault struct {
	Code       faultCode
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	Cause      error
}

func (f *apiFault) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", f.Code, f.Message, f.Cause)
	}
	return fmt.Sprintf("[%s] %s", f.Code, f.Message)
}

func (f *apiFault) Unwrap() error { return f.Cause }

// WithDetails attaches a key/value pair to the fault's JSON details,
// allocating the map on first use.
func (f *apiFault) WithDetails(key string, value interface{}) *apiFault {
	if f.Details == nil {
		f.Details = make(map[string]interface{})
	}
	f.Details[key] = value
	return f
}

func newFault(code faultCode, message string, status int) *apiFault {
	return &apiFault{Code: code, Message: message, HTTPStatus: status}
}

func wrapFault(code faultCode, message string, status int, cause error) *apiFault {
	return &apiFault{Code: code, Message: message, HTTPStatus: status, Cause: cause}
}

func errUnauthorized(message string) *apiFault {
	return newFault(faultUnauthorized, message, http.StatusUnauthorized)
}

func errInvalidToken(cause error) *apiFault {
	return wrapFault(faultInvalidToken, "invalid authentication token", http.StatusUnauthorized, cause)
}

func errForbidden(message string) *apiFault {
	return newFault(faultForbidden, message, http.StatusForbidden)
}

func errInvalidFormat(field, expected string) *apiFault {
	return newFault(faultBadFormat, "invalid format", http.StatusBadRequest).
		WithDetails("field", field).
		WithDetails("expected", expected)
}

func errInternal(message string, cause error) *apiFault {
	return wrapFault(faultInternal, message, http.StatusInternalServerError, cause)
}

func errRateLimitExceeded(limit int, window string) *apiFault {
	return newFault(faultRateLimited, "rate limit exceeded", http.StatusTooManyRequests).
		WithDetails("limit", limit).
		WithDetails("window", window)
}

// asFault extracts an *apiFault from err's chain, if present.
func asFault(err error) *apiFault {
	var f *apiFault
	if errors.As(err, &f) {
		return f
	}
	return nil
}
