package main

import (
	"net/http"

	"github.com/solarfleet/control-plane/internal/apierror"
	"github.com/solarfleet/control-plane/internal/commands"
	"github.com/solarfleet/control-plane/internal/domain/command"
	"github.com/solarfleet/control-plane/internal/httputil"
	"github.com/solarfleet/control-plane/internal/reqctx"
)

type createCommandRequest struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

func (rt *routes) handleCreateCommand(w http.ResponseWriter, r *http.Request) {
	resolved, ok := rt.requireResolvedTenant(w, r)
	if !ok {
		return
	}
	r = resolved
	ctx := r.Context()
	tenantID, role := reqctx.TenantID(ctx), reqctx.Role(ctx)
	if err := requireRole(role, commands.CreatorRoles); err != nil {
		httputil.WriteAPIError(w, err)
		return
	}

	principal, ok := reqctx.Principal(ctx)
	if !ok || principal.User == nil {
		httputil.WriteAPIError(w, apierror.Unauth("missing authenticated principal"))
		return
	}

	var in createCommandRequest
	if !decodeBody(w, r, &in) {
		return
	}
	if in.Type == "" {
		httputil.WriteAPIError(w, apierror.Invalid("type is required"))
		return
	}

	c, err := rt.app.Commands.Create(ctx, tenantID, pathVar(r, "deviceId"), principal.User.ID, command.Type(in.Type), in.Payload)
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, c)
}

func (rt *routes) handlePollCommands(w http.ResponseWriter, r *http.Request) {
	dp, ok := reqctx.DevicePrincipal(r.Context())
	if !ok {
		httputil.WriteAPIError(w, apierror.Unauth("missing device principal"))
		return
	}

	commands, err := rt.app.Commands.PollPending(r.Context(), dp.DeviceID, pathVar(r, "deviceId"))
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, commands)
}

type ackCommandRequest struct {
	Status   string `json:"status"`
	ErrorMsg string `json:"errorMsg,omitempty"`
}

func (rt *routes) handleAckCommand(w http.ResponseWriter, r *http.Request) {
	dp, ok := reqctx.DevicePrincipal(r.Context())
	if !ok {
		httputil.WriteAPIError(w, apierror.Unauth("missing device principal"))
		return
	}

	var in ackCommandRequest
	if !decodeBody(w, r, &in) {
		return
	}

	c, err := rt.app.Commands.Acknowledge(r.Context(), dp.DeviceID, pathVar(r, "deviceId"), pathVar(r, "commandId"), command.Status(in.Status), in.ErrorMsg)
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}
