package main

import (
	"net/http"
	"time"

	"github.com/solarfleet/control-plane/internal/apierror"
	"github.com/solarfleet/control-plane/internal/domain/membership"
	domainota "github.com/solarfleet/control-plane/internal/domain/ota"
	"github.com/solarfleet/control-plane/internal/httputil"
	otasvc "github.com/solarfleet/control-plane/internal/ota"
	"github.com/solarfleet/control-plane/internal/reqctx"
)

type registerFirmwareRequest struct {
	Version      string `json:"version"`
	DownloadURL  string `json:"downloadUrl"`
	Checksum     string `json:"checksum"`
	ReleaseNotes string `json:"releaseNotes,omitempty"`
}

// handleRegisterFirmware is platform/tenant-admin gated but not
// tenant-scoped: the firmware catalog is global, per
// ota.FirmwarePackage's doc comment.
func (rt *routes) handleRegisterFirmware(w http.ResponseWriter, r *http.Request) {
	principal, ok := reqctx.Principal(r.Context())
	if !ok || !principal.IsPlatformAdmin() {
		httputil.WriteAPIError(w, apierror.Forbid("only a platform admin may register firmware"))
		return
	}

	var in registerFirmwareRequest
	if !decodeBody(w, r, &in) {
		return
	}
	if in.Version == "" || in.DownloadURL == "" {
		httputil.WriteAPIError(w, apierror.Invalid("version and downloadUrl are required"))
		return
	}

	f, err := rt.app.OTA.RegisterFirmware(r.Context(), in.Version, in.DownloadURL, in.Checksum, in.ReleaseNotes)
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, f)
}

func (rt *routes) handleListFirmware(w http.ResponseWriter, r *http.Request) {
	firmware, err := rt.app.OTA.ListFirmware(r.Context())
	if err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to list firmware", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, firmware)
}

type scheduleOtaJobRequest struct {
	TargetType  string         `json:"targetType"`
	DeviceID    *string        `json:"deviceId,omitempty"`
	GroupFilter map[string]any `json:"groupFilter,omitempty"`
	FirmwareID  string         `json:"firmwareId"`
	ScheduledAt *time.Time     `json:"scheduledAt,omitempty"`
}

func (rt *routes) handleScheduleOtaJob(w http.ResponseWriter, r *http.Request) {
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

	var in scheduleOtaJobRequest
	if !decodeBody(w, r, &in) {
		return
	}
	scheduledAt := time.Now().UTC()
	if in.ScheduledAt != nil {
		scheduledAt = *in.ScheduledAt
	}

	job, err := rt.app.OTA.Schedule(r.Context(), tenantID, otasvc.ScheduleInput{
		TargetType:  domainota.TargetType(in.TargetType),
		DeviceID:    in.DeviceID,
		GroupFilter: in.GroupFilter,
		FirmwareID:  in.FirmwareID,
		ScheduledAt: scheduledAt,
	})
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, job)
}

// handleCancelOtaJob is platform/tenant-admin gated. ota.Service.Cancel
// takes no tenant id, so the role check here is the only isolation
// this path gets; a tighter rewrite would have Cancel re-verify the
// job's tenant against the caller's membership.
func (rt *routes) handleCancelOtaJob(w http.ResponseWriter, r *http.Request) {
	principal, ok := reqctx.Principal(r.Context())
	if !ok || (!principal.IsPlatformAdmin() && !hasAnyAdminMembership(principal)) {
		httputil.WriteAPIError(w, apierror.Forbid("caller's role does not permit this operation"))
		return
	}

	job, err := rt.app.OTA.Cancel(r.Context(), pathVar(r, "jobId"))
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, job)
}

func (rt *routes) handleNextOtaJob(w http.ResponseWriter, r *http.Request) {
	dp, ok := reqctx.DevicePrincipal(r.Context())
	if !ok {
		httputil.WriteAPIError(w, apierror.Unauth("missing device principal"))
		return
	}
	if dp.DeviceID != pathVar(r, "deviceId") {
		httputil.WriteAPIError(w, apierror.Forbid("device token does not match requested device id"))
		return
	}

	job, err := rt.app.OTA.NextPendingForDevice(r.Context(), pathVar(r, "tenantId"), dp.DeviceID)
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, job)
}

type reportOtaJobRequest struct {
	Status   string         `json:"status"`
	Progress map[string]any `json:"progress,omitempty"`
	ErrorMsg string         `json:"errorMsg,omitempty"`
}

func (rt *routes) handleReportOtaJob(w http.ResponseWriter, r *http.Request) {
	dp, ok := reqctx.DevicePrincipal(r.Context())
	if !ok {
		httputil.WriteAPIError(w, apierror.Unauth("missing device principal"))
		return
	}

	var in reportOtaJobRequest
	if !decodeBody(w, r, &in) {
		return
	}

	job, err := rt.app.OTA.Report(r.Context(), dp.DeviceID, otasvc.ReportInput{
		JobID:    pathVar(r, "jobId"),
		Status:   domainota.JobStatus(in.Status),
		Progress: in.Progress,
		ErrorMsg: in.ErrorMsg,
	})
	if err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, job)
}
