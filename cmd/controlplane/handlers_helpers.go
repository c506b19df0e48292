package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/solarfleet/control-plane/internal/apierror"
	"github.com/solarfleet/control-plane/internal/domain/membership"
	"github.com/solarfleet/control-plane/internal/httputil"
	"github.com/solarfleet/control-plane/internal/identity"
)

// decodeBody decodes the request body into v, writing a VALIDATION_ERROR
// envelope and returning false on any decode failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httputil.WriteAPIError(w, apierror.Invalid("invalid request body"))
		return false
	}
	return true
}

func pathVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

func queryPagination(r *http.Request, defaultLimit, maxLimit int) (offset, limit int) {
	offset, limit = 0, defaultLimit
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return offset, limit
}

// hasAnyAdminMembership reports whether principal holds a TENANT_ADMIN
// or PLATFORM_ADMIN membership in any tenant, for operations that
// aren't scoped to a single resolved tenant.
func hasAnyAdminMembership(p *identity.Principal) bool {
	for _, m := range p.Memberships {
		if m.Role.In(membership.AdminRoles) {
			return true
		}
	}
	return false
}

// requireResolvedTenant runs resolveTenant and, on success, returns the
// request stamped with the resolved tenant/role alongside the
// principal. Handlers that need both call this once at the top.
func (rt *routes) requireResolvedTenant(w http.ResponseWriter, r *http.Request) (*http.Request, bool) {
	resolved, _, _, err := resolveTenant(rt, r)
	if err != nil {
		httputil.WriteAPIError(w, err)
		return nil, false
	}
	return resolved, true
}
