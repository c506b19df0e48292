package main

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/solarfleet/control-plane/internal/apierror"
	"github.com/solarfleet/control-plane/internal/domain/alert"
	"github.com/solarfleet/control-plane/internal/domain/membership"
	"github.com/solarfleet/control-plane/internal/httputil"
	"github.com/solarfleet/control-plane/internal/reqctx"
	"github.com/solarfleet/control-plane/internal/storage"
)

type createAlertRuleRequest struct {
	Name     string         `json:"name"`
	Type     string         `json:"type"`
	Severity string         `json:"severity"`
	Enabled  *bool          `json:"enabled,omitempty"`
	Params   map[string]any `json:"params,omitempty"`
}

// handleCreateAlertRule creates a tenant-scoped alert rule directly
// against the store; alerts.Service has no rule-CRUD wrapper of its
// own, only the sweep/acknowledge/close/list operations over events.
func (rt *routes) handleCreateAlertRule(w http.ResponseWriter, r *http.Request) {
	resolved, ok := rt.requireResolvedTenant(w, r)
	if !ok {
		return
	}
	r = resolved
	tenantID, role := reqctx.TenantID(r.Context()), reqctx.Role(r.Context())
	if err := requireRole(role, membership.AdminRoles); err != nil {
		httputil.WriteAPIError(w, err)
		return
	}

	var in createAlertRuleRequest
	if !decodeBody(w, r, &in) {
		return
	}
	if in.Name == "" || in.Type == "" {
		httputil.WriteAPIError(w, apierror.Invalid("name and type are required"))
		return
	}
	enabled := true
	if in.Enabled != nil {
		enabled = *in.Enabled
	}

	now := time.Now().UTC()
	rule := &alert.Rule{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Name:      in.Name,
		Enabled:   enabled,
		Type:      alert.RuleType(in.Type),
		Params:    in.Params,
		Severity:  alert.Severity(in.Severity),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := rt.app.Stores.AlertRules.CreateAlertRule(r.Context(), rule); err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to create alert rule", err))
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, rule)
}

func (rt *routes) handleListAlertRules(w http.ResponseWriter, r *http.Request) {
	resolved, ok := rt.requireResolvedTenant(w, r)
	if !ok {
		return
	}
	r = resolved
	tenantID := reqctx.TenantID(r.Context())

	rules, err := rt.app.Stores.AlertRules.ListEnabledAlertRulesByTenant(r.Context(), tenantID)
	if err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to list alert rules", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rules)
}

func (rt *routes) handleListAlertEvents(w http.ResponseWriter, r *http.Request) {
	resolved, ok := rt.requireResolvedTenant(w, r)
	if !ok {
		return
	}
	r = resolved
	tenantID := reqctx.TenantID(r.Context())

	offset, limit := queryPagination(r, 50, 200)
	filter := storage.AlertEventFilter{Offset: offset, Limit: limit}
	if status := r.URL.Query().Get("status"); status != "" {
		s := alert.EventStatus(status)
		filter.Status = &s
	}
	if severity := r.URL.Query().Get("severity"); severity != "" {
		s := alert.Severity(severity)
		filter.Severity = &s
	}
	if deviceID := r.URL.Query().Get("deviceId"); deviceID != "" {
		filter.DeviceID = &deviceID
	}

	events, total, err := rt.app.Alerts.List(r.Context(), tenantID, filter)
	if err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to list alert events", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": events, "total": total, "offset": offset, "limit": limit})
}

func (rt *routes) handleAckAlertEvent(w http.ResponseWriter, r *http.Request) {
	resolved, ok := rt.requireResolvedTenant(w, r)
	if !ok {
		return
	}
	r = resolved
	tenantID := reqctx.TenantID(r.Context())

	ev, err := rt.app.Alerts.Acknowledge(r.Context(), tenantID, pathVar(r, "eventId"))
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ev)
}

func (rt *routes) handleCloseAlertEvent(w http.ResponseWriter, r *http.Request) {
	resolved, ok := rt.requireResolvedTenant(w, r)
	if !ok {
		return
	}
	r = resolved
	tenantID := reqctx.TenantID(r.Context())

	ev, err := rt.app.Alerts.Close(r.Context(), tenantID, pathVar(r, "eventId"))
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ev)
}
