package main

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/solarfleet/control-plane/internal/apierror"
	"github.com/solarfleet/control-plane/internal/domain/membership"
	"github.com/solarfleet/control-plane/internal/domain/notification"
	"github.com/solarfleet/control-plane/internal/httputil"
	"github.com/solarfleet/control-plane/internal/reqctx"
)

type createNotificationChannelRequest struct {
	Type    string         `json:"type"`
	Config  map[string]any `json:"config,omitempty"`
	Enabled *bool          `json:"enabled,omitempty"`
}

// handleCreateNotificationChannel creates a tenant-scoped delivery
// channel directly against the store; there is no dedicated channel
// service, only notifications.Service's consume loop over events.
func (rt *routes) handleCreateNotificationChannel(w http.ResponseWriter, r *http.Request) {
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

	var in createNotificationChannelRequest
	if !decodeBody(w, r, &in) {
		return
	}
	if in.Type == "" {
		httputil.WriteAPIError(w, apierror.Invalid("type is required"))
		return
	}
	enabled := true
	if in.Enabled != nil {
		enabled = *in.Enabled
	}

	now := time.Now().UTC()
	channel := &notification.Channel{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Type:      notification.ChannelType(in.Type),
		Config:    in.Config,
		Enabled:   enabled,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := rt.app.Stores.NotificationChannels.CreateNotificationChannel(r.Context(), channel); err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to create notification channel", err))
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, channel)
}

func (rt *routes) handleListNotificationChannels(w http.ResponseWriter, r *http.Request) {
	resolved, ok := rt.requireResolvedTenant(w, r)
	if !ok {
		return
	}
	r = resolved
	tenantID := reqctx.TenantID(r.Context())

	channels, err := rt.app.Stores.NotificationChannels.ListEnabledNotificationChannelsByTenant(r.Context(), tenantID)
	if err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to list notification channels", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, channels)
}
