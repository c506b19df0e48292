package memory

import (
	"context"
	"sort"
	"time"

	"github.com/solarfleet/control-plane/internal/apierror"
	"github.com/solarfleet/control-plane/internal/domain/device"
	"github.com/solarfleet/control-plane/internal/domain/ota"
)

// CreateFirmware implements storage.FirmwareStore.
func (s *Store) CreateFirmware(ctx context.Context, f *ota.FirmwarePackage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.firmware[f.Version]; exists {
		return apierror.Dup("firmware version already registered")
	}
	if f.ID == "" {
		f.ID = newID()
	}
	f.CreatedAt = time.Now().UTC()
	cp := *f
	s.firmware[f.Version] = &cp
	return nil
}

// GetFirmwareByVersion implements storage.FirmwareStore.
func (s *Store) GetFirmwareByVersion(ctx context.Context, version string) (*ota.FirmwarePackage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.firmware[version]
	if !ok {
		return nil, apierror.Missing("firmware", version)
	}
	cp := *f
	return &cp, nil
}

// ListFirmware implements storage.FirmwareStore.
func (s *Store) ListFirmware(ctx context.Context) ([]*ota.FirmwarePackage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*ota.FirmwarePackage, 0, len(s.firmware))
	for _, f := range s.firmware {
		cp := *f
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// CreateOtaJob implements storage.OtaJobStore.
func (s *Store) CreateOtaJob(ctx context.Context, j *ota.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j.ID == "" {
		j.ID = newID()
	}
	now := time.Now().UTC()
	j.CreatedAt, j.UpdatedAt = now, now
	cp := *j
	s.jobs[j.ID] = &cp
	return nil
}

// GetOtaJob implements storage.OtaJobStore.
func (s *Store) GetOtaJob(ctx context.Context, id string) (*ota.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, apierror.Missing("otaJob", id)
	}
	cp := *j
	return &cp, nil
}

// NextPendingOtaJobForDevice implements storage.OtaJobStore.
func (s *Store) NextPendingOtaJobForDevice(ctx context.Context, tenantID, deviceID string) (*ota.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[deviceID]
	if !ok {
		return nil, nil
	}

	var best *ota.Job
	for _, j := range s.jobs {
		if j.TenantID != tenantID || (j.Status != ota.Scheduled && j.Status != ota.InProgress) {
			continue
		}
		targets := false
		switch j.TargetType {
		case ota.TargetDevice:
			targets = j.DeviceID != nil && *j.DeviceID == deviceID
		case ota.TargetGroup:
			targets = deviceMatchesGroupFilter(d, j.GroupFilter)
		}
		if !targets {
			continue
		}
		if best == nil || j.ScheduledAt.Before(best.ScheduledAt) {
			best = j
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func deviceMatchesGroupFilter(d *device.Device, filter map[string]any) bool {
	if len(filter) == 0 {
		return true
	}
	if model, ok := filter["model"].(string); ok && model != d.Model {
		return false
	}
	if siteID, ok := filter["siteId"].(string); ok {
		if d.SiteID == nil || *d.SiteID != siteID {
			return false
		}
	}
	return true
}

// UpdateOtaJob implements storage.OtaJobStore.
func (s *Store) UpdateOtaJob(ctx context.Context, j *ota.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[j.ID]; !ok {
		return apierror.Missing("otaJob", j.ID)
	}
	j.UpdatedAt = time.Now().UTC()
	cp := *j
	s.jobs[j.ID] = &cp
	return nil
}
