package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/solarfleet/control-plane/internal/apierror"
	"github.com/solarfleet/control-plane/internal/domain/analytics"
	"github.com/solarfleet/control-plane/internal/domain/audit"
	"github.com/solarfleet/control-plane/internal/domain/entitlement"
	"github.com/solarfleet/control-plane/internal/domain/sim"
	"github.com/solarfleet/control-plane/internal/domain/weather"
	"github.com/solarfleet/control-plane/internal/storage"
)

func entitlementKey(tenantID string, scope entitlement.Scope, key entitlement.Key, deviceID *string) string {
	dev := ""
	if deviceID != nil {
		dev = *deviceID
	}
	return tenantID + "|" + string(scope) + "|" + string(key) + "|" + dev
}

// GetEntitlement implements storage.EntitlementStore.
func (s *Store) GetEntitlement(ctx context.Context, tenantID string, scope entitlement.Scope, key entitlement.Key, deviceID *string) (*entitlement.Entitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entitlements[entitlementKey(tenantID, scope, key, deviceID)]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

// UpsertEntitlement implements storage.EntitlementStore.
func (s *Store) UpsertEntitlement(ctx context.Context, e *entitlement.Entitlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entitlementKey(e.TenantID, e.Scope, e.Key, e.DeviceID)
	now := time.Now().UTC()
	if existing, ok := s.entitlements[key]; ok {
		e.ID = existing.ID
		e.CreatedAt = existing.CreatedAt
	} else {
		if e.ID == "" {
			e.ID = newID()
		}
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	cp := *e
	s.entitlements[key] = &cp
	return nil
}

func rollupKey(deviceID string, day time.Time) string {
	return fmt.Sprintf("%s|%s", deviceID, day.UTC().Format("2006-01-02"))
}

// UpsertRollup implements storage.RollupStore.
func (s *Store) UpsertRollup(ctx context.Context, r *analytics.DailyRollup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rollupKey(r.DeviceID, r.Day)
	now := time.Now().UTC()
	if existing, ok := s.rollups[key]; ok {
		r.ID = existing.ID
		r.CreatedAt = existing.CreatedAt
	} else {
		if r.ID == "" {
			r.ID = newID()
		}
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	cp := *r
	s.rollups[key] = &cp
	return nil
}

// GetRollup implements storage.RollupStore.
func (s *Store) GetRollup(ctx context.Context, deviceID string, day time.Time) (*analytics.DailyRollup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rollups[rollupKey(deviceID, day)]
	if !ok {
		return nil, apierror.Missing("dailyRollup", rollupKey(deviceID, day))
	}
	cp := *r
	return &cp, nil
}

// ListRollupsForTenantDay implements storage.RollupStore.
func (s *Store) ListRollupsForTenantDay(ctx context.Context, tenantID string, day time.Time) ([]*analytics.DailyRollup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := day.UTC().Format("2006-01-02")
	var out []*analytics.DailyRollup
	for _, r := range s.rollups {
		if r.TenantID == tenantID && r.Day.UTC().Format("2006-01-02") == want {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

// AppendAudit implements storage.AuditStore.
func (s *Store) AppendAudit(ctx context.Context, l *audit.Log) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l.ID == "" {
		l.ID = newID()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	cp := *l
	s.audit = append(s.audit, &cp)
	return nil
}

// ListAudit implements storage.AuditStore.
func (s *Store) ListAudit(ctx context.Context, tenantID string, filter storage.AuditFilter) ([]*audit.Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*audit.Log
	for _, l := range s.audit {
		if l.TenantID == nil || *l.TenantID != tenantID {
			continue
		}
		if filter.EntityType != "" && l.EntityType != filter.EntityType {
			continue
		}
		if filter.EntityID != "" && l.EntityID != filter.EntityID {
			continue
		}
		if filter.Since != nil && l.CreatedAt.Before(*filter.Since) {
			continue
		}
		cp := *l
		matched = append(matched, &cp)
	}

	offset, limit := filter.Offset, filter.Limit
	if offset < 0 {
		offset = 0
	}
	if offset > len(matched) {
		offset = len(matched)
	}
	end := len(matched)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return matched[offset:end], nil
}

func weatherKey(siteID string, date time.Time) string {
	return fmt.Sprintf("%s|%s", siteID, date.UTC().Format("2006-01-02"))
}

// UpsertWeatherSnapshot implements storage.WeatherStore.
func (s *Store) UpsertWeatherSnapshot(ctx context.Context, w *weather.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := weatherKey(w.SiteID, w.Date)
	if existing, ok := s.weather[key]; ok {
		w.ID = existing.ID
	} else if w.ID == "" {
		w.ID = newID()
	}
	w.FetchedAt = time.Now().UTC()
	cp := *w
	s.weather[key] = &cp
	return nil
}

// GetLatestWeatherSnapshot implements storage.WeatherStore.
func (s *Store) GetLatestWeatherSnapshot(ctx context.Context, siteID string) (*weather.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *weather.Snapshot
	for _, w := range s.weather {
		if w.SiteID != siteID {
			continue
		}
		if latest == nil || w.Date.After(latest.Date) {
			latest = w
		}
	}
	if latest == nil {
		return nil, apierror.Missing("weatherSnapshot", siteID)
	}
	cp := *latest
	return &cp, nil
}

// CreateSimAction implements storage.SimActionStore.
func (s *Store) CreateSimAction(ctx context.Context, a *sim.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = newID()
	}
	if a.RequestedAt.IsZero() {
		a.RequestedAt = time.Now().UTC()
	}
	cp := *a
	s.sims[a.DeviceID] = append(s.sims[a.DeviceID], &cp)
	return nil
}

// ListSimActionsByDevice implements storage.SimActionStore.
func (s *Store) ListSimActionsByDevice(ctx context.Context, tenantID, deviceID string) ([]*sim.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*sim.Action
	for _, a := range s.sims[deviceID] {
		if a.TenantID == tenantID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}
