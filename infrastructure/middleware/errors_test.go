package middleware

import (
	"errors"
	"net/http"
	"testing"
)

func TestApiFaultError(t *testing.T) {
	tests := []struct {
		name string
		err  *apiFault
		want string
	}{
		{
			name: "without cause",
			err:  newFault(faultUnauthorized, "test message", http.StatusUnauthorized),
			want: "[AUTH_1001] test message",
		},
		{
			name: "with cause",
			err:  wrapFault(faultInternal, "test message", http.StatusInternalServerError, errors.New("underlying")),
			want: "[SVC_5001] test message: underlying",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApiFaultUnwrap(t *testing.T) {
	cause := errors.New("underlying error")
	f := wrapFault(faultInternal, "test", http.StatusInternalServerError, cause)

	if got := f.Unwrap(); got != cause {
		t.Errorf("Unwrap() = %v, want %v", got, cause)
	}
}

func TestApiFaultWithDetails(t *testing.T) {
	f := newFault(faultBadFormat, "test", http.StatusBadRequest)
	f.WithDetails("field", "username").WithDetails("reason", "too short")

	if len(f.Details) != 2 {
		t.Errorf("Details length = %d, want 2", len(f.Details))
	}
	if f.Details["field"] != "username" {
		t.Errorf("Details[field] = %v, want username", f.Details["field"])
	}
	if f.Details["reason"] != "too short" {
		t.Errorf("Details[reason] = %v, want too short", f.Details["reason"])
	}
}

func TestErrUnauthorized(t *testing.T) {
	f := errUnauthorized("test message")

	if f.Code != faultUnauthorized {
		t.Errorf("Code = %v, want %v", f.Code, faultUnauthorized)
	}
	if f.HTTPStatus != http.StatusUnauthorized {
		t.Errorf("HTTPStatus = %d, want %d", f.HTTPStatus, http.StatusUnauthorized)
	}
	if f.Message != "test message" {
		t.Errorf("Message = %v, want test message", f.Message)
	}
}

func TestErrInvalidToken(t *testing.T) {
	cause := errors.New("token parse error")
	f := errInvalidToken(cause)

	if f.Code != faultInvalidToken {
		t.Errorf("Code = %v, want %v", f.Code, faultInvalidToken)
	}
	if f.HTTPStatus != http.StatusUnauthorized {
		t.Errorf("HTTPStatus = %d, want %d", f.HTTPStatus, http.StatusUnauthorized)
	}
	if f.Cause != cause {
		t.Errorf("Cause = %v, want %v", f.Cause, cause)
	}
}

func TestErrForbidden(t *testing.T) {
	f := errForbidden("access denied")

	if f.Code != faultForbidden {
		t.Errorf("Code = %v, want %v", f.Code, faultForbidden)
	}
	if f.HTTPStatus != http.StatusForbidden {
		t.Errorf("HTTPStatus = %d, want %d", f.HTTPStatus, http.StatusForbidden)
	}
}

func TestErrInvalidFormat(t *testing.T) {
	f := errInvalidFormat("email", "RFC 5322")

	if f.Code != faultBadFormat {
		t.Errorf("Code = %v, want %v", f.Code, faultBadFormat)
	}
	if f.HTTPStatus != http.StatusBadRequest {
		t.Errorf("HTTPStatus = %d, want %d", f.HTTPStatus, http.StatusBadRequest)
	}
	if f.Details["field"] != "email" {
		t.Errorf("Details[field] = %v, want email", f.Details["field"])
	}
	if f.Details["expected"] != "RFC 5322" {
		t.Errorf("Details[expected] = %v, want RFC 5322", f.Details["expected"])
	}
}

func TestErrInternal(t *testing.T) {
	cause := errors.New("database connection failed")
	f := errInternal("internal error", cause)

	if f.Code != faultInternal {
		t.Errorf("Code = %v, want %v", f.Code, faultInternal)
	}
	if f.HTTPStatus != http.StatusInternalServerError {
		t.Errorf("HTTPStatus = %d, want %d", f.HTTPStatus, http.StatusInternalServerError)
	}
	if f.Cause != cause {
		t.Errorf("Cause = %v, want %v", f.Cause, cause)
	}
}

func TestErrRateLimitExceeded(t *testing.T) {
	f := errRateLimitExceeded(100, "1m")

	if f.Code != faultRateLimited {
		t.Errorf("Code = %v, want %v", f.Code, faultRateLimited)
	}
	if f.HTTPStatus != http.StatusTooManyRequests {
		t.Errorf("HTTPStatus = %d, want %d", f.HTTPStatus, http.StatusTooManyRequests)
	}
	if f.Details["limit"] != 100 {
		t.Errorf("Details[limit] = %v, want 100", f.Details["limit"])
	}
}

func TestAsFault(t *testing.T) {
	fault := newFault(faultInternal, "test", http.StatusInternalServerError)
	plain := errors.New("standard error")

	tests := []struct {
		name string
		err  error
		want *apiFault
	}{
		{name: "fault", err: fault, want: fault},
		{name: "plain error", err: plain, want: nil},
		{name: "nil error", err: nil, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := asFault(tt.err); got != tt.want {
				t.Errorf("asFault() = %v, want %v", got, tt.want)
			}
		})
	}
}
