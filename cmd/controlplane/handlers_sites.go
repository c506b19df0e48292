package main

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/solarfleet/control-plane/internal/apierror"
	domainaudit "github.com/solarfleet/control-plane/internal/domain/audit"
	"github.com/solarfleet/control-plane/internal/domain/membership"
	"github.com/solarfleet/control-plane/internal/domain/site"
	"github.com/solarfleet/control-plane/internal/httputil"
	"github.com/solarfleet/control-plane/internal/reqctx"
)

type createSiteRequest struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	PostalCode string `json:"postalCode"`
	City       string `json:"city"`
	Country    string `json:"country"`
}

func (rt *routes) handleCreateSite(w http.ResponseWriter, r *http.Request) {
	resolved, ok := rt.requireResolvedTenant(w, r)
	if !ok {
		return
	}
	r = resolved
	tenantID, role := reqctx.TenantID(r.Context()), reqctx.Role(r.Context())
	if err := requireRole(role, membership.ProvisioningRoles); err != nil {
		httputil.WriteAPIError(w, err)
		return
	}

	var in createSiteRequest
	if !decodeBody(w, r, &in) {
		return
	}
	if in.Name == "" {
		httputil.WriteAPIError(w, apierror.Invalid("name is required"))
		return
	}

	now := time.Now().UTC()
	s := &site.Site{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		Name:       in.Name,
		Address:    in.Address,
		PostalCode: in.PostalCode,
		City:       in.City,
		Country:    in.Country,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := rt.app.Stores.Sites.CreateSite(r.Context(), s); err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to create site", err))
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, s)
}

func (rt *routes) handleListSites(w http.ResponseWriter, r *http.Request) {
	resolved, ok := rt.requireResolvedTenant(w, r)
	if !ok {
		return
	}
	r = resolved
	tenantID := reqctx.TenantID(r.Context())

	sites, err := rt.app.Stores.Sites.ListSites(r.Context(), tenantID)
	if err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to list sites", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sites)
}

type updateSiteLocationRequest struct {
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	LocationLock *bool   `json:"locationLock,omitempty"`
}

// handleUpdateSiteLocation sets a site's location manually. An
// END_USER may only do this for a site they have a device on,
// resolved as "has a device on this site with ownerUserId equal to
// the acting user" (the Open Question's resolved reading); every
// other allowed role acts on any site in the tenant.
func (rt *routes) handleUpdateSiteLocation(w http.ResponseWriter, r *http.Request) {
	resolved, ok := rt.requireResolvedTenant(w, r)
	if !ok {
		return
	}
	r = resolved
	ctx := r.Context()
	tenantID, role := reqctx.TenantID(ctx), reqctx.Role(ctx)
	principal, _ := reqctx.Principal(ctx)
	siteID := pathVar(r, "siteId")

	if !role.In(membership.AdminRoles) && role != membership.Installer {
		if role != membership.EndUser || principal == nil || principal.User == nil {
			httputil.WriteAPIError(w, apierror.Forbid("caller's role does not permit this operation"))
			return
		}
		owned, err := rt.app.Stores.Devices.ListDevicesByOwnerAndSite(ctx, siteID, principal.User.ID)
		if err != nil {
			httputil.WriteAPIError(w, apierror.Internal("failed to verify site ownership", err))
			return
		}
		if len(owned) == 0 {
			httputil.WriteAPIError(w, apierror.Forbid("caller does not own a device on this site"))
			return
		}
	}

	var in updateSiteLocationRequest
	if !decodeBody(w, r, &in) {
		return
	}

	s, err := rt.app.Stores.Sites.GetSite(ctx, tenantID, siteID)
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}

	now := time.Now().UTC()
	lat, lon := in.Lat, in.Lon
	s.Lat, s.Lon = &lat, &lon
	s.LocationSource = site.Manual
	s.LocationUpdatedAt = &now
	if principal != nil && principal.User != nil {
		s.LocationUpdatedBy = principal.User.ID
	}
	if in.LocationLock != nil {
		s.LocationLock = *in.LocationLock
	}
	s.UpdatedAt = now

	if err := rt.app.Stores.Sites.UpdateSite(ctx, s); err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to update site", err))
		return
	}

	var actorID *string
	if principal != nil && principal.User != nil {
		actorID = &principal.User.ID
	}
	rt.app.Audit.Record(ctx, &tenantID, actorID, domainaudit.ActorUser, "SITE_LOCATION_SET_MANUAL", "site", s.ID, map[string]any{"lat": lat, "lon": lon})

	httputil.WriteJSON(w, http.StatusOK, s)
}
