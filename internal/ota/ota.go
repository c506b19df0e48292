// Package ota coordinates firmware registration, job scheduling, the
// device pull of its next pending job, and the device's progress
// report back to the job.
package ota

import (
	"time"

	"context"

	"github.com/google/uuid"

	"github.com/solarfleet/control-plane/internal/apierror"
	"github.com/solarfleet/control-plane/internal/domain/ota"
	"github.com/solarfleet/control-plane/internal/storage"
	"github.com/solarfleet/control-plane/pkg/logger"
)

// Service implements the OTA coordinator.
type Service struct {
	firmware storage.FirmwareStore
	jobs     storage.OtaJobStore
	devices  storage.DeviceStore
	log      *logger.Logger
}

// New creates an OTA service backed by the provided stores.
func New(firmware storage.FirmwareStore, jobs storage.OtaJobStore, devices storage.DeviceStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("ota")
	}
	return &Service{firmware: firmware, jobs: jobs, devices: devices, log: log}
}

// RegisterFirmware adds a new globally unique firmware version.
func (s *Service) RegisterFirmware(ctx context.Context, version, downloadURL, checksum, releaseNotes string) (*ota.FirmwarePackage, error) {
	f := &ota.FirmwarePackage{
		ID:           uuid.NewString(),
		Version:      version,
		DownloadURL:  downloadURL,
		Checksum:     checksum,
		ReleaseNotes: releaseNotes,
	}
	if err := s.firmware.CreateFirmware(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// ListFirmware returns the full firmware catalog.
func (s *Service) ListFirmware(ctx context.Context) ([]*ota.FirmwarePackage, error) {
	return s.firmware.ListFirmware(ctx)
}

// ScheduleInput describes a new rollout job.
type ScheduleInput struct {
	TargetType   ota.TargetType
	DeviceID     *string
	GroupFilter  map[string]any
	FirmwareID   string
	ScheduledAt  time.Time
}

// Schedule creates a new SCHEDULED job for tenantID.
func (s *Service) Schedule(ctx context.Context, tenantID string, in ScheduleInput) (*ota.Job, error) {
	if in.TargetType == ota.TargetDevice && in.DeviceID == nil {
		return nil, apierror.Invalid("deviceId is required for a DEVICE-targeted job")
	}
	if in.TargetType == ota.TargetGroup && len(in.GroupFilter) == 0 {
		return nil, apierror.Invalid("groupFilter is required for a GROUP-targeted job")
	}
	if in.DeviceID != nil {
		if _, err := s.devices.GetDevice(ctx, tenantID, *in.DeviceID); err != nil {
			return nil, err
		}
	}
	// FirmwareID is the firmware's version string; the catalog has no
	// secondary id lookup, so the version IS the reference.
	if _, err := s.firmware.GetFirmwareByVersion(ctx, in.FirmwareID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	j := &ota.Job{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		TargetType:  in.TargetType,
		DeviceID:    in.DeviceID,
		GroupFilter: in.GroupFilter,
		FirmwareID:  in.FirmwareID,
		Status:      ota.Scheduled,
		ScheduledAt: in.ScheduledAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.jobs.CreateOtaJob(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

// NextPendingForDevice returns the single earliest-scheduled job
// targeting deviceID, or nil if none.
func (s *Service) NextPendingForDevice(ctx context.Context, tenantID, deviceID string) (*ota.Job, error) {
	return s.jobs.NextPendingOtaJobForDevice(ctx, tenantID, deviceID)
}

// ReportInput is a device's progress report against a job.
type ReportInput struct {
	JobID    string
	Status   ota.JobStatus
	Progress map[string]any
	ErrorMsg string
}

// Report applies a device-submitted progress report to its job,
// updating the job's firmwareVersion onto the device on SUCCESS.
func (s *Service) Report(ctx context.Context, deviceID string, in ReportInput) (*ota.Job, error) {
	j, err := s.jobs.GetOtaJob(ctx, in.JobID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	switch in.Status {
	case ota.InProgress:
		if j.Status == ota.Scheduled {
			j.Status = ota.InProgress
			j.StartedAt = &now
		}
	case ota.Success, ota.JobFailed:
		j.Status = in.Status
		j.FinishedAt = &now
		j.ErrorMsg = in.ErrorMsg
	default:
		return nil, apierror.Invalid("status must be IN_PROGRESS, SUCCESS, or FAILED")
	}
	if in.Progress != nil {
		j.Progress = in.Progress
	}
	if err := s.jobs.UpdateOtaJob(ctx, j); err != nil {
		return nil, err
	}

	if in.Status == ota.Success {
		f, err := s.firmware.GetFirmwareByVersion(ctx, j.FirmwareID)
		if err == nil {
			d, err := s.devices.GetDeviceByID(ctx, deviceID)
			if err == nil {
				d.FirmwareVersion = f.Version
				if err := s.devices.UpdateDevice(ctx, d); err != nil {
					s.log.WithField("device_id", deviceID).WithField("error", err.Error()).
						Warn("failed to record firmware version after successful OTA report")
				}
			}
		}
	}
	return j, nil
}

// Cancel administratively cancels a job.
func (s *Service) Cancel(ctx context.Context, jobID string) (*ota.Job, error) {
	j, err := s.jobs.GetOtaJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	j.Status = ota.Canceled
	j.FinishedAt = &now
	if err := s.jobs.UpdateOtaJob(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}
