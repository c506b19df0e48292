package main

import (
	"net/http"
	"time"

	"github.com/solarfleet/control-plane/internal/apierror"
	"github.com/solarfleet/control-plane/internal/domain/alert"
	"github.com/solarfleet/control-plane/internal/domain/device"
	"github.com/solarfleet/control-plane/internal/domain/ota"
	"github.com/solarfleet/control-plane/internal/httputil"
	"github.com/solarfleet/control-plane/internal/reqctx"
	"github.com/solarfleet/control-plane/internal/storage"
)

func (rt *routes) handleListRollups(w http.ResponseWriter, r *http.Request) {
	resolved, ok := rt.requireResolvedTenant(w, r)
	if !ok {
		return
	}
	r = resolved
	tenantID := reqctx.TenantID(r.Context())

	day := time.Now().UTC()
	if raw := r.URL.Query().Get("day"); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			day = t
		}
	}

	rollups, err := rt.app.Analytics.ListForTenantDay(r.Context(), tenantID, day)
	if err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to list rollups", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rollups)
}

type dashboardSummary struct {
	DevicesByStatus     map[device.Status]int `json:"devicesByStatus"`
	OpenAlertsBySeverity map[alert.Severity]int `json:"openAlertsBySeverity"`
	TodayEnergyKwh      float64               `json:"todayEnergyKwh"`
	TodayWaterLiters    float64               `json:"todayWaterLiters"`
	TodayHeaterOnMinutes int                  `json:"todayHeaterOnMinutes"`
	PendingOtaJobs      int                   `json:"pendingOtaJobs"`
}

// handleDashboardSummary computes a tenant's fleet overview on demand
// from existing repositories: device counts by status, open alert
// counts by severity, today's rollup totals summed, and a pending OTA
// job count. No dedicated storage backs this; it is read-only and
// assembled per request.
func (rt *routes) handleDashboardSummary(w http.ResponseWriter, r *http.Request) {
	resolved, ok := rt.requireResolvedTenant(w, r)
	if !ok {
		return
	}
	r = resolved
	ctx := r.Context()
	tenantID := reqctx.TenantID(ctx)

	summary := dashboardSummary{
		DevicesByStatus:      map[device.Status]int{},
		OpenAlertsBySeverity: map[alert.Severity]int{},
	}

	const pageSize = 500
	for offset := 0; ; offset += pageSize {
		devices, total, err := rt.app.Stores.Devices.ListDevices(ctx, tenantID, storage.DeviceFilter{Offset: offset, Limit: pageSize})
		if err != nil {
			httputil.WriteAPIError(w, apierror.Internal("failed to summarize devices", err))
			return
		}
		for _, d := range devices {
			summary.DevicesByStatus[d.Status]++
		}
		if offset+len(devices) >= total || len(devices) == 0 {
			break
		}
	}

	for _, status := range alert.OpenStatuses {
		s := status
		for offset := 0; ; offset += pageSize {
			events, total, err := rt.app.Alerts.List(ctx, tenantID, storage.AlertEventFilter{Status: &s, Offset: offset, Limit: pageSize})
			if err != nil {
				httputil.WriteAPIError(w, apierror.Internal("failed to summarize alert events", err))
				return
			}
			for _, ev := range events {
				summary.OpenAlertsBySeverity[ev.Severity]++
			}
			if offset+len(events) >= total || len(events) == 0 {
				break
			}
		}
	}

	rollups, err := rt.app.Analytics.ListForTenantDay(ctx, tenantID, time.Now().UTC())
	if err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to summarize today's rollups", err))
		return
	}
	for _, rollup := range rollups {
		summary.TodayEnergyKwh += rollup.EnergyKwh
		summary.TodayWaterLiters += rollup.WaterLiters
		summary.TodayHeaterOnMinutes += rollup.HeaterOnMinutes
	}

	for offset := 0; ; offset += pageSize {
		devices, total, err := rt.app.Stores.Devices.ListDevices(ctx, tenantID, storage.DeviceFilter{Offset: offset, Limit: pageSize})
		if err != nil {
			httputil.WriteAPIError(w, apierror.Internal("failed to summarize OTA jobs", err))
			return
		}
		for _, d := range devices {
			job, err := rt.app.OTA.NextPendingForDevice(ctx, tenantID, d.ID)
			if err == nil && job != nil && job.Status != ota.Success && job.Status != ota.Canceled && job.Status != ota.JobFailed {
				summary.PendingOtaJobs++
			}
		}
		if offset+len(devices) >= total || len(devices) == 0 {
			break
		}
	}

	httputil.WriteJSON(w, http.StatusOK, summary)
}
