package main

import (
	"net/http"
	"time"

	"github.com/solarfleet/control-plane/internal/apierror"
	"github.com/solarfleet/control-plane/internal/httputil"
	"github.com/solarfleet/control-plane/internal/reqctx"
	"github.com/solarfleet/control-plane/internal/storage"
)

func (rt *routes) handleListAudit(w http.ResponseWriter, r *http.Request) {
	resolved, ok := rt.requireResolvedTenant(w, r)
	if !ok {
		return
	}
	r = resolved
	tenantID := reqctx.TenantID(r.Context())

	offset, limit := queryPagination(r, 50, 200)
	filter := storage.AuditFilter{
		EntityType: r.URL.Query().Get("entityType"),
		EntityID:   r.URL.Query().Get("entityId"),
		Offset:     offset,
		Limit:      limit,
	}
	if since := r.URL.Query().Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			filter.Since = &t
		}
	}

	logs, err := rt.app.Audit.List(r.Context(), tenantID, filter)
	if err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to list audit log", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, logs)
}
