package main

import (
	"net/http"
	"time"

	"github.com/solarfleet/control-plane/internal/apierror"
	domaintelemetry "github.com/solarfleet/control-plane/internal/domain/telemetry"
	"github.com/solarfleet/control-plane/internal/httputil"
	"github.com/solarfleet/control-plane/internal/reqctx"
	telemetrysvc "github.com/solarfleet/control-plane/internal/telemetry"
)

type ingestTelemetryRequest struct {
	Ts      *time.Time             `json:"ts,omitempty"`
	Metrics map[string]any         `json:"metrics"`
	Geo     *domaintelemetry.Geo   `json:"geo,omitempty"`
}

// handleIngestTelemetry accepts a device-authed telemetry submission.
func (rt *routes) handleIngestTelemetry(w http.ResponseWriter, r *http.Request) {
	dp, ok := reqctx.DevicePrincipal(r.Context())
	if !ok {
		httputil.WriteAPIError(w, apierror.Unauth("missing device principal"))
		return
	}
	deviceID := pathVar(r, "deviceId")

	var in ingestTelemetryRequest
	if !decodeBody(w, r, &in) {
		return
	}
	ts := time.Now().UTC()
	if in.Ts != nil {
		ts = *in.Ts
	}

	result, err := rt.app.Telemetry.Ingest(r.Context(), dp.DeviceID, telemetrysvc.IngestInput{
		DeviceID: deviceID,
		Ts:       ts,
		Metrics:  in.Metrics,
		Geo:      in.Geo,
	})
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (rt *routes) handleGetTwin(w http.ResponseWriter, r *http.Request) {
	resolved, ok := rt.requireResolvedTenant(w, r)
	if !ok {
		return
	}
	r = resolved
	tenantID := reqctx.TenantID(r.Context())
	deviceID := pathVar(r, "deviceId")

	if _, err := rt.app.Stores.Devices.GetDevice(r.Context(), tenantID, deviceID); err != nil {
		httputil.WriteAPIError(w, err)
		return
	}

	twin, err := rt.app.Stores.Twins.GetTwin(r.Context(), deviceID)
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, twin)
}
