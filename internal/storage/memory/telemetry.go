package memory

import (
	"context"
	"sort"
	"time"

	"github.com/solarfleet/control-plane/internal/apierror"
	"github.com/solarfleet/control-plane/internal/domain/telemetry"
)

// CreateReading implements storage.TelemetryStore.
func (s *Store) CreateReading(ctx context.Context, r *telemetry.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = newID()
	}
	r.CreatedAt = time.Now().UTC()
	cp := *r
	s.readings[r.DeviceID] = append(s.readings[r.DeviceID], &cp)
	return nil
}

// ListRecentReadings implements storage.TelemetryStore.
func (s *Store) ListRecentReadings(ctx context.Context, deviceID string, limit int) ([]*telemetry.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.readings[deviceID]
	out := make([]*telemetry.Reading, len(all))
	copy(out, all)
	sort.Slice(out, func(i, j int) bool { return out[i].Ts.After(out[j].Ts) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	result := make([]*telemetry.Reading, len(out))
	for i, r := range out {
		cp := *r
		result[i] = &cp
	}
	return result, nil
}

// ListReadingsWindow implements storage.TelemetryStore.
func (s *Store) ListReadingsWindow(ctx context.Context, deviceID string, start, end time.Time) ([]*telemetry.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*telemetry.Reading
	for _, r := range s.readings[deviceID] {
		if !r.Ts.Before(start) && r.Ts.Before(end) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ts.Before(out[j].Ts) })
	return out, nil
}

// GetTwin implements storage.TwinStore.
func (s *Store) GetTwin(ctx context.Context, deviceID string) (*telemetry.Twin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.twins[deviceID]
	if !ok {
		return nil, apierror.Missing("twin", deviceID)
	}
	cp := *t
	return &cp, nil
}

// UpsertTwin implements storage.TwinStore.
func (s *Store) UpsertTwin(ctx context.Context, t *telemetry.Twin) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t.UpdatedAt = time.Now().UTC()
	cp := *t
	s.twins[t.DeviceID] = &cp
	return nil
}
