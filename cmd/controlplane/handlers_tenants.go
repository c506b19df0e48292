package main

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/solarfleet/control-plane/internal/apierror"
	domainaudit "github.com/solarfleet/control-plane/internal/domain/audit"
	"github.com/solarfleet/control-plane/internal/domain/membership"
	"github.com/solarfleet/control-plane/internal/domain/tenant"
	"github.com/solarfleet/control-plane/internal/domain/user"
	"github.com/solarfleet/control-plane/internal/httputil"
	"github.com/solarfleet/control-plane/internal/reqctx"
)

type createTenantRequest struct {
	DisplayName string `json:"displayName"`
	Type        string `json:"type"`
}

// handleCreateTenant creates a new tenant. Only a platform admin may
// provision a tenant outside the self-service register flow.
func (rt *routes) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	principal, ok := reqctx.Principal(r.Context())
	if !ok || !principal.IsPlatformAdmin() {
		httputil.WriteAPIError(w, apierror.Forbid("only a platform admin may provision tenants directly"))
		return
	}

	var in createTenantRequest
	if !decodeBody(w, r, &in) {
		return
	}
	if in.DisplayName == "" {
		httputil.WriteAPIError(w, apierror.Invalid("displayName is required"))
		return
	}

	now := time.Now().UTC()
	t := &tenant.Tenant{
		ID:          uuid.NewString(),
		DisplayName: in.DisplayName,
		Type:        tenant.Type(in.Type),
		Status:      tenant.Active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := rt.app.Stores.Tenants.CreateTenant(r.Context(), t); err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to create tenant", err))
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, t)
}

// handleListTenants lists every tenant. Platform-admin only; a
// non-admin has no legitimate use for the global tenant list.
func (rt *routes) handleListTenants(w http.ResponseWriter, r *http.Request) {
	principal, ok := reqctx.Principal(r.Context())
	if !ok || !principal.IsPlatformAdmin() {
		httputil.WriteAPIError(w, apierror.Forbid("only a platform admin may list all tenants"))
		return
	}

	tenants, err := rt.app.Stores.Tenants.ListTenants(r.Context())
	if err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to list tenants", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tenants)
}

type inviteUserRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// handleInviteUser adds an existing or brand new user to the resolved
// tenant under the given role. A user matched by email is reused
// as-is; there is no separate "invite accept" step in this surface.
func (rt *routes) handleInviteUser(w http.ResponseWriter, r *http.Request) {
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

	var in inviteUserRequest
	if !decodeBody(w, r, &in) {
		return
	}
	if in.Email == "" || in.Role == "" {
		httputil.WriteAPIError(w, apierror.Invalid("email and role are required"))
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	u, err := rt.app.Stores.Users.GetUserByEmail(ctx, in.Email)
	if err != nil {
		u = &user.User{
			ID:        uuid.NewString(),
			Email:     in.Email,
			Name:      in.Name,
			Status:    user.Invited,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := rt.app.Stores.Users.CreateUser(ctx, u); err != nil {
			httputil.WriteAPIError(w, apierror.Internal("failed to create user", err))
			return
		}
	}

	if _, err := rt.app.Stores.Memberships.GetMembership(ctx, u.ID, tenantID); err == nil {
		httputil.WriteAPIError(w, apierror.Dup("user already has a membership in this tenant"))
		return
	}

	m := &membership.Membership{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		TenantID:  tenantID,
		Role:      membership.Role(in.Role),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := rt.app.Stores.Memberships.CreateMembership(ctx, m); err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to create membership", err))
		return
	}

	if principal, ok := reqctx.Principal(ctx); ok {
		rt.app.Audit.Record(ctx, &tenantID, &principal.User.ID, domainaudit.ActorUser, "MEMBERSHIP_CREATED", "membership", m.ID, map[string]any{"userId": u.ID, "role": m.Role})
	}

	httputil.WriteJSON(w, http.StatusCreated, m)
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

// handleUpdateUserRole changes a member's role within the resolved
// tenant.
func (rt *routes) handleUpdateUserRole(w http.ResponseWriter, r *http.Request) {
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

	var in updateRoleRequest
	if !decodeBody(w, r, &in) {
		return
	}
	if in.Role == "" {
		httputil.WriteAPIError(w, apierror.Invalid("role is required"))
		return
	}

	userID := pathVar(r, "userId")
	m, err := rt.app.Stores.Memberships.UpdateMembershipRole(r.Context(), userID, tenantID, membership.Role(in.Role))
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, m)
}
