package main

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/solarfleet/control-plane/internal/apierror"
	domainaudit "github.com/solarfleet/control-plane/internal/domain/audit"
	"github.com/solarfleet/control-plane/internal/domain/membership"
	"github.com/solarfleet/control-plane/internal/domain/sim"
	"github.com/solarfleet/control-plane/internal/httputil"
	"github.com/solarfleet/control-plane/internal/reqctx"
)

type requestSimActionRequest struct {
	Action string `json:"action"`
}

// handleRequestSimAction looks up the device owning the path's ICCID
// within the caller's tenant, invokes the SIM carrier integration, and
// persists the outcome. There is no dedicated SIM service package;
// this mirrors the pattern internal/weather.Service follows for its
// own outbound integration call plus store-and-audit.
func (rt *routes) handleRequestSimAction(w http.ResponseWriter, r *http.Request) {
	resolved, ok := rt.requireResolvedTenant(w, r)
	if !ok {
		return
	}
	r = resolved
	ctx := r.Context()
	tenantID, role := reqctx.TenantID(ctx), reqctx.Role(ctx)
	if err := requireRole(role, membership.AdminRoles); err != nil {
		httputil.WriteAPIError(w, err)
		return
	}

	var in requestSimActionRequest
	if !decodeBody(w, r, &in) {
		return
	}
	if in.Action == "" {
		httputil.WriteAPIError(w, apierror.Invalid("action is required"))
		return
	}

	iccid := pathVar(r, "iccid")
	devices, err := rt.app.Stores.Devices.ListDevicesBySimICCID(ctx, tenantID, iccid)
	if err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to look up SIM device", err))
		return
	}
	if len(devices) == 0 {
		httputil.WriteAPIError(w, apierror.Missing("device", iccid))
		return
	}
	d := devices[0]

	actionType := sim.ActionType(in.Action)
	result, providerErr := rt.app.SimProvider.Perform(ctx, iccid, actionType)

	status := sim.Succeeded
	errMsg := ""
	if providerErr != nil {
		status = sim.Failed
		errMsg = providerErr.Error()
	} else if !result.Succeeded {
		status = sim.Failed
		errMsg = result.ErrorMsg
	}

	action := &sim.Action{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		DeviceID:    d.ID,
		ICCID:       iccid,
		Action:      actionType,
		Status:      status,
		ErrorMsg:    errMsg,
		RequestedAt: time.Now().UTC(),
	}
	if err := rt.app.Stores.SimActions.CreateSimAction(ctx, action); err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to record SIM action", err))
		return
	}

	if principal, ok := reqctx.Principal(ctx); ok {
		rt.app.Audit.Record(ctx, &tenantID, &principal.User.ID, domainaudit.ActorUser, domainaudit.ActionSimActionRequested, "device", d.ID, map[string]any{"iccid": iccid, "action": actionType})
	}

	httputil.WriteJSON(w, http.StatusOK, action)
}

func (rt *routes) handleListSimActions(w http.ResponseWriter, r *http.Request) {
	resolved, ok := rt.requireResolvedTenant(w, r)
	if !ok {
		return
	}
	r = resolved
	tenantID := reqctx.TenantID(r.Context())

	actions, err := rt.app.Stores.SimActions.ListSimActionsByDevice(r.Context(), tenantID, pathVar(r, "deviceId"))
	if err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to list SIM actions", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, actions)
}
