// Package reqctx carries the per-request identity and tenancy facts
// established by the identity middleware (internal/identity) down to
// handlers, via typed context keys.
package reqctx

import (
	"context"

	"github.com/solarfleet/control-plane/internal/domain/membership"
	"github.com/solarfleet/control-plane/internal/identity"
)

type ctxKey int

const (
	principalKey ctxKey = iota
	devicePrincipalKey
	tenantIDKey
	roleKey
	requestIDKey
)

// WithPrincipal attaches the verified user principal to ctx.
func WithPrincipal(ctx context.Context, p *identity.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// Principal returns the verified user principal, if any.
func Principal(ctx context.Context) (*identity.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*identity.Principal)
	return p, ok
}

// WithDevicePrincipal attaches the verified device identity to ctx.
func WithDevicePrincipal(ctx context.Context, d *identity.DevicePrincipal) context.Context {
	return context.WithValue(ctx, devicePrincipalKey, d)
}

// DevicePrincipal returns the verified device identity, if any.
func DevicePrincipal(ctx context.Context) (*identity.DevicePrincipal, bool) {
	d, ok := ctx.Value(devicePrincipalKey).(*identity.DevicePrincipal)
	return d, ok
}

// WithTenant attaches the request's resolved active tenant id and role.
func WithTenant(ctx context.Context, tenantID string, role membership.Role) context.Context {
	ctx = context.WithValue(ctx, tenantIDKey, tenantID)
	return context.WithValue(ctx, roleKey, role)
}

// TenantID returns the resolved active tenant id, which may be empty
// for a platform-admin global-view request.
func TenantID(ctx context.Context) string {
	id, _ := ctx.Value(tenantIDKey).(string)
	return id
}

// Role returns the acting member's role within the resolved tenant.
func Role(ctx context.Context) membership.Role {
	r, _ := ctx.Value(roleKey).(membership.Role)
	return r
}

// WithRequestID attaches a per-request trace identifier to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the per-request trace identifier, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// RateLimitKey returns a stable per-caller key for rate limiting:
// the authenticated user id, the authenticated device id, or empty
// when neither identity has been established yet (caller falls back
// to client IP in that case).
func RateLimitKey(ctx context.Context) string {
	if p, ok := Principal(ctx); ok && p.User != nil {
		return "user:" + p.User.ID
	}
	if d, ok := DevicePrincipal(ctx); ok {
		return "device:" + d.DeviceID
	}
	return ""
}
