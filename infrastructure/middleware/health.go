// Package middleware provides HTTP middleware for the control plane.
package middleware

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"
)

// HealthReport is the body returned by HealthChecker.Handler.
type HealthReport struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Service   string            `json:"service,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
	Uptime    string            `json:"uptime,omitempty"`
}

// HealthChecker aggregates named subsystem probes (store connectivity,
// background scheduler liveness) into a single /healthz response.
type HealthChecker struct {
	mu        sync.RWMutex
	service   string
	startedAt time.Time
	probes    map[string]func() error
}

// NewHealthChecker creates a checker that reports as service.
func NewHealthChecker(service string) *HealthChecker {
	return &HealthChecker{
		service:   service,
		startedAt: time.Now(),
		probes:    make(map[string]func() error),
	}
}

// RegisterCheck adds a named probe. A nil probe is ignored, so callers
// can register conditionally (e.g. only when a store is configured)
// without branching at the call site.
func (h *HealthChecker) RegisterCheck(name string, probe func() error) {
	if probe == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes[name] = probe
}

// Handler runs every registered probe and reports "healthy" only if
// all of them pass.
func (h *HealthChecker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.mu.RLock()
		defer h.mu.RUnlock()

		report := HealthReport{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Service:   h.service,
			Uptime:    time.Since(h.startedAt).String(),
			Checks:    make(map[string]string, len(h.probes)),
		}
		for name, probe := range h.probes {
			if err := probe(); err != nil {
				report.Status = "unhealthy"
				report.Checks[name] = err.Error()
			} else {
				report.Checks[name] = "ok"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if report.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(report); err != nil {
			log.Printf("health handler encode failed: %v", err)
		}
	}
}

// LivenessHandler reports whether the process itself is up, with no
// dependency checks — suitable for a kubelet liveness probe that
// should only ever trigger a restart, never a traffic cutover.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeStatusJSON(w, http.StatusOK, "alive")
	}
}

// ReadinessHandler reports whether the process should receive traffic.
// ready is a pointer so the caller can flip it at runtime (e.g. to
// false during shutdown drain) without re-registering the handler.
func ReadinessHandler(ready *bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil && *ready {
			writeStatusJSON(w, http.StatusOK, "ready")
			return
		}
		writeStatusJSON(w, http.StatusServiceUnavailable, "not_ready")
	}
}

func writeStatusJSON(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]string{"status": status}); err != nil {
		log.Printf("probe handler encode failed: %v", err)
	}
}
