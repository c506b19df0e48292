package main

import (
	"net/http"

	"github.com/solarfleet/control-plane/internal/apierror"
	"github.com/solarfleet/control-plane/internal/domain/entitlement"
	"github.com/solarfleet/control-plane/internal/domain/membership"
	"github.com/solarfleet/control-plane/internal/httputil"
	"github.com/solarfleet/control-plane/internal/reqctx"
)

type setEntitlementRequest struct {
	Scope    string  `json:"scope"`
	Key      string  `json:"key"`
	DeviceID *string `json:"deviceId,omitempty"`
	Enabled  bool    `json:"enabled"`
}

func (rt *routes) handleSetEntitlement(w http.ResponseWriter, r *http.Request) {
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

	var in setEntitlementRequest
	if !decodeBody(w, r, &in) {
		return
	}
	if in.Scope == "" || in.Key == "" {
		httputil.WriteAPIError(w, apierror.Invalid("scope and key are required"))
		return
	}

	ent, err := rt.app.Entitlements.Set(r.Context(), tenantID, entitlement.Scope(in.Scope), entitlement.Key(in.Key), in.DeviceID, in.Enabled)
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ent)
}
