package main

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/solarfleet/control-plane/internal/apierror"
	"github.com/solarfleet/control-plane/internal/domain/membership"
	"github.com/solarfleet/control-plane/internal/httputil"
	"github.com/solarfleet/control-plane/internal/identity"
	"github.com/solarfleet/control-plane/internal/reqctx"
)

// userAuth verifies the caller's bearer token and attaches the
// resulting principal to the request context before calling next.
func (rt *routes) userAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, err := rt.app.Identity.VerifyUserBearer(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			httputil.WriteAPIError(w, err)
			return
		}
		r = r.WithContext(reqctx.WithPrincipal(r.Context(), principal))
		next(w, r)
	}
}

// deviceAuth verifies the caller's device MAC token and attaches the
// resulting device principal to the request context before calling
// next.
func (rt *routes) deviceAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		device, err := rt.app.Identity.VerifyDeviceMAC(r.Header.Get("X-Device-Token"))
		if err != nil {
			httputil.WriteAPIError(w, err)
			return
		}
		r = r.WithContext(reqctx.WithDevicePrincipal(r.Context(), device))
		next(w, r)
	}
}

// resolveTenant resolves the acting tenant and role for a user-authed
// request from the path's tenantId var, the X-Tenant-Id header, and
// the tenantId query param, in that priority order, and stamps the
// result onto the request context.
func resolveTenant(app *routes, r *http.Request) (*http.Request, *identity.Principal, membership.Role, error) {
	principal, ok := reqctx.Principal(r.Context())
	if !ok {
		return r, nil, "", apierror.Unauth("missing authenticated principal")
	}

	vars := mux.Vars(r)
	tenantID, role, err := app.app.Identity.ResolveTenant(principal, vars["tenantId"], r.Header.Get("X-Tenant-Id"), r.URL.Query().Get("tenantId"))
	if err != nil {
		return r, nil, "", err
	}
	return r.WithContext(reqctx.WithTenant(r.Context(), tenantID, role)), principal, role, nil
}

func requireRole(role membership.Role, allowed []membership.Role) error {
	if role.In(allowed) || role == membership.PlatformAdmin {
		return nil
	}
	return apierror.Forbid("caller's role does not permit this operation")
}
