package main

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/solarfleet/control-plane/internal/apierror"
	domainaudit "github.com/solarfleet/control-plane/internal/domain/audit"
	"github.com/solarfleet/control-plane/internal/domain/device"
	"github.com/solarfleet/control-plane/internal/domain/membership"
	"github.com/solarfleet/control-plane/internal/httputil"
	"github.com/solarfleet/control-plane/internal/reqctx"
	"github.com/solarfleet/control-plane/internal/storage"
)

type createDeviceRequest struct {
	SerialNumber string            `json:"serialNumber"`
	Model        string            `json:"model"`
	Name         string            `json:"name"`
	SiteID       *string           `json:"siteId,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
}

// provisionDeviceSecret records a rotation-bookkeeping row for a newly
// created device. The HMAC digest itself is never persisted, only a
// hash of its derivation parameters (device id + creation instant),
// per device.Secret's doc comment.
func provisionDeviceSecret(w http.ResponseWriter, r *http.Request, secrets storage.DeviceSecretStore, d *device.Device) {
	sum := sha256.Sum256([]byte(d.ID + "|" + d.CreatedAt.Format(time.RFC3339Nano)))
	_ = secrets.CreateDeviceSecret(r.Context(), &device.Secret{
		ID:        uuid.NewString(),
		DeviceID:  d.ID,
		MACDigest: hex.EncodeToString(sum[:]),
	})
}

func (rt *routes) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
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

	var in createDeviceRequest
	if !decodeBody(w, r, &in) {
		return
	}
	if in.SerialNumber == "" || in.Model == "" {
		httputil.WriteAPIError(w, apierror.Invalid("serialNumber and model are required"))
		return
	}

	ctx := r.Context()
	if _, err := rt.app.Stores.Devices.GetDeviceBySerial(ctx, tenantID, in.SerialNumber); err == nil {
		httputil.WriteAPIError(w, apierror.Dup("a device with this serial number already exists"))
		return
	}

	now := time.Now().UTC()
	d := &device.Device{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		SiteID:       in.SiteID,
		SerialNumber: in.SerialNumber,
		Model:        in.Model,
		Name:         in.Name,
		Tags:         in.Tags,
		Status:       device.Provisioned,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := rt.app.Stores.Devices.CreateDevice(ctx, d); err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to create device", err))
		return
	}
	provisionDeviceSecret(w, r, rt.app.Stores.DeviceSecrets, d)

	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"device":      d,
		"deviceToken": rt.app.Identity.IssueDeviceToken(d.ID),
	})
}

func (rt *routes) handleListDevices(w http.ResponseWriter, r *http.Request) {
	resolved, ok := rt.requireResolvedTenant(w, r)
	if !ok {
		return
	}
	r = resolved
	tenantID := reqctx.TenantID(r.Context())

	offset, limit := queryPagination(r, 50, 500)
	filter := storage.DeviceFilter{Offset: offset, Limit: limit, Search: r.URL.Query().Get("search")}
	if siteID := r.URL.Query().Get("siteId"); siteID != "" {
		filter.SiteID = &siteID
	}
	if status := r.URL.Query().Get("status"); status != "" {
		s := device.Status(status)
		filter.Status = &s
	}
	if bbox := r.URL.Query().Get("bbox"); bbox != "" {
		if b, ok := parseBBox(bbox); ok {
			filter.BBox = &b
		}
	}

	devices, total, err := rt.app.Stores.Devices.ListDevices(r.Context(), tenantID, filter)
	if err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to list devices", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"devices": devices, "total": total, "offset": offset, "limit": limit})
}

// parseBBox parses "minLon,minLat,maxLon,maxLat" into a storage.BBox.
func parseBBox(raw string) (storage.BBox, bool) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return storage.BBox{}, false
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return storage.BBox{}, false
		}
		vals[i] = v
	}
	return storage.BBox{MinLon: vals[0], MinLat: vals[1], MaxLon: vals[2], MaxLat: vals[3]}, true
}

func (rt *routes) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	resolved, ok := rt.requireResolvedTenant(w, r)
	if !ok {
		return
	}
	r = resolved
	tenantID := reqctx.TenantID(r.Context())

	d, err := rt.app.Stores.Devices.GetDevice(r.Context(), tenantID, pathVar(r, "deviceId"))
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

type updateDeviceRequest struct {
	Name    *string           `json:"name,omitempty"`
	Notes   *string           `json:"notes,omitempty"`
	Status  *string           `json:"status,omitempty"`
	SiteID  *string           `json:"siteId,omitempty"`
	OwnerID *string           `json:"ownerUserId,omitempty"`
	Tags    map[string]string `json:"tags,omitempty"`
}

func (rt *routes) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
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

	var in updateDeviceRequest
	if !decodeBody(w, r, &in) {
		return
	}

	ctx := r.Context()
	d, err := rt.app.Stores.Devices.GetDevice(ctx, tenantID, pathVar(r, "deviceId"))
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}

	if in.Name != nil {
		d.Name = *in.Name
	}
	if in.Notes != nil {
		d.Notes = *in.Notes
	}
	if in.Status != nil {
		d.Status = device.Status(*in.Status)
	}
	if in.SiteID != nil {
		d.SiteID = in.SiteID
	}
	if in.OwnerID != nil {
		d.OwnerID = in.OwnerID
	}
	if in.Tags != nil {
		d.Tags = in.Tags
	}
	d.UpdatedAt = time.Now().UTC()

	if err := rt.app.Stores.Devices.UpdateDevice(ctx, d); err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to update device", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

type bulkDeviceResult struct {
	Row          int    `json:"row"`
	SerialNumber string `json:"serialNumber"`
	DeviceID     string `json:"deviceId,omitempty"`
	DeviceToken  string `json:"deviceToken,omitempty"`
	Error        string `json:"error,omitempty"`
}

// handleBulkCreateDevices imports devices from a CSV body with header
// columns serialNumber,model,name,siteId. No library in the example
// pack parses CSV; encoding/csv is the one deliberate stdlib exception
// on this surface.
func (rt *routes) handleBulkCreateDevices(w http.ResponseWriter, r *http.Request) {
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

	reader := csv.NewReader(r.Body)
	header, err := reader.Read()
	if err != nil {
		httputil.WriteAPIError(w, apierror.Invalid("could not read CSV header"))
		return
	}
	col := map[string]int{}
	for i, name := range header {
		col[name] = i
	}
	if _, ok := col["serialNumber"]; !ok {
		httputil.WriteAPIError(w, apierror.Invalid("CSV must include a serialNumber column"))
		return
	}

	ctx := r.Context()
	var results []bulkDeviceResult
	for row := 1; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			results = append(results, bulkDeviceResult{Row: row, Error: err.Error()})
			continue
		}

		serial := valueAt(record, col, "serialNumber")
		if serial == "" {
			results = append(results, bulkDeviceResult{Row: row, Error: "serialNumber is required"})
			continue
		}

		now := time.Now().UTC()
		d := &device.Device{
			ID:           uuid.NewString(),
			TenantID:     tenantID,
			SerialNumber: serial,
			Model:        valueAt(record, col, "model"),
			Name:         valueAt(record, col, "name"),
			Status:       device.Provisioned,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if siteID := valueAt(record, col, "siteId"); siteID != "" {
			d.SiteID = &siteID
		}

		if err := rt.app.Stores.Devices.CreateDevice(ctx, d); err != nil {
			results = append(results, bulkDeviceResult{Row: row, SerialNumber: serial, Error: err.Error()})
			continue
		}
		provisionDeviceSecret(w, r, rt.app.Stores.DeviceSecrets, d)
		results = append(results, bulkDeviceResult{Row: row, SerialNumber: serial, DeviceID: d.ID, DeviceToken: rt.app.Identity.IssueDeviceToken(d.ID)})
	}

	if principal, ok := reqctx.Principal(ctx); ok {
		rt.app.Audit.Record(ctx, &tenantID, &principal.User.ID, domainaudit.ActorUser, "DEVICES_BULK_IMPORTED", "device", "", map[string]any{"rows": len(results)})
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"results": results})
}

func valueAt(record []string, col map[string]int, name string) string {
	idx, ok := col[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return record[idx]
}

