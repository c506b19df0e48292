// Package middleware provides HTTP middleware for the control plane.
package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/solarfleet/control-plane/internal/httputil"
	"github.com/solarfleet/control-plane/pkg/logger"
)

// PanicRecovery turns an unrecovered panic in a handler into a 500
// JSON response instead of tearing down the listener goroutine.
type PanicRecovery struct {
	log *logger.Logger
}

// NewRecoveryMiddleware builds a PanicRecovery that logs through log.
func NewRecoveryMiddleware(log *logger.Logger) *PanicRecovery {
	return &PanicRecovery{log: log}
}

// Handler wraps next with panic recovery.
func (m *PanicRecovery) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer m.recoverAndRespond(w, r)
		next.ServeHTTP(w, r)
	})
}

func (m *PanicRecovery) recoverAndRespond(w http.ResponseWriter, r *http.Request) {
	rec := recover()
	if rec == nil {
		return
	}

	m.log.WithContext(r.Context()).WithFields(map[string]interface{}{
		"panic":       fmt.Sprintf("%v", rec),
		"stack":       string(debug.Stack()),
		"path":        r.URL.Path,
		"method":      r.Method,
		"remote_addr": r.RemoteAddr,
	}).Error("panic recovered")

	fault := errInternal("internal server error", fmt.Errorf("%v", rec))
	httputil.WriteErrorResponse(w, r, fault.HTTPStatus, string(fault.Code), fault.Message, fault.Details)
}
