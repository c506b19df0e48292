// Package apierror provides the structured error envelope shared by
// every domain package and mapped to HTTP status at the transport
// boundary.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the closed taxonomy of error codes in the API envelope.
type Code string

const (
	ValidationError Code = "VALIDATION_ERROR"
	Unauthorized    Code = "UNAUTHORIZED"
	Forbidden       Code = "FORBIDDEN"
	FeatureDisabled Code = "FEATURE_DISABLED"
	NotFound        Code = "NOT_FOUND"
	Conflict        Code = "CONFLICT"
	InternalError   Code = "INTERNAL_ERROR"
)

var httpStatusByCode = map[Code]int{
	ValidationError: http.StatusBadRequest,
	Unauthorized:    http.StatusUnauthorized,
	Forbidden:       http.StatusForbidden,
	FeatureDisabled: http.StatusForbidden,
	NotFound:        http.StatusNotFound,
	Conflict:        http.StatusConflict,
	InternalError:   http.StatusInternalServerError,
}

// Error is a structured, code-tagged error carried through the domain
// layer and mapped to the `{"error":{...}}` envelope at the HTTP
// boundary.
type Error struct {
	Code       Code           `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetails attaches a key/value pair to the error's details map.
func (e *Error) WithDetails(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New builds an Error with the HTTP status derived from code.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message, HTTPStatus: httpStatusByCode[code]}
}

// Wrap builds an Error that carries an underlying cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, HTTPStatus: httpStatusByCode[code], Err: err}
}

// Invalid builds a VALIDATION_ERROR.
func Invalid(message string) *Error {
	return New(ValidationError, message)
}

// InvalidField builds a VALIDATION_ERROR with a field/reason detail pair.
func InvalidField(field, reason string) *Error {
	return New(ValidationError, "invalid input").
		WithDetails("field", field).
		WithDetails("reason", reason)
}

// Unauth builds an UNAUTHORIZED error.
func Unauth(message string) *Error {
	return New(Unauthorized, message)
}

// Forbid builds a FORBIDDEN error.
func Forbid(message string) *Error {
	return New(Forbidden, message)
}

// FeatureOff builds a FEATURE_DISABLED error for a gated entitlement key.
func FeatureOff(key string) *Error {
	return New(FeatureDisabled, "feature is disabled for this tenant").WithDetails("key", key)
}

// Missing builds a NOT_FOUND error for the given entity type/id.
func Missing(entityType, id string) *Error {
	return New(NotFound, entityType+" not found").WithDetails("id", id)
}

// Dup builds a CONFLICT error, typically surfacing a unique-constraint
// violation from the store.
func Dup(message string) *Error {
	return New(Conflict, message)
}

// Internal wraps an unexpected error as INTERNAL_ERROR. Callers should
// log the underlying cause before returning this to a handler, since
// Err is not serialized in the envelope.
func Internal(message string, err error) *Error {
	return Wrap(InternalError, message, err)
}

// As extracts an *Error from err's chain, if present.
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Envelope is the bit-exact wire shape of an error response.
type Envelope struct {
	Error EnvelopeBody `json:"error"`
}

// EnvelopeBody is the body of the error envelope.
type EnvelopeBody struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ToEnvelope converts err into the wire envelope and the HTTP status
// it should be served with. Errors that are not *Error are treated as
// INTERNAL_ERROR without leaking their message.
func ToEnvelope(err error) (Envelope, int) {
	apiErr, ok := As(err)
	if !ok {
		apiErr = Internal("internal error", err)
	}
	return Envelope{Error: EnvelopeBody{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Details: apiErr.Details,
	}}, apiErr.HTTPStatus
}
