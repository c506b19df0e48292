package memory

import (
	"context"
	"time"

	"github.com/solarfleet/control-plane/internal/apierror"
	"github.com/solarfleet/control-plane/internal/domain/alert"
	"github.com/solarfleet/control-plane/internal/storage"
)

// CreateAlertRule implements storage.AlertRuleStore.
func (s *Store) CreateAlertRule(ctx context.Context, r *alert.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = newID()
	}
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	cp := *r
	s.rules[r.ID] = &cp
	return nil
}

// GetAlertRule implements storage.AlertRuleStore.
func (s *Store) GetAlertRule(ctx context.Context, tenantID, id string) (*alert.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rules[id]
	if !ok || r.TenantID != tenantID {
		return nil, apierror.Missing("alertRule", id)
	}
	cp := *r
	return &cp, nil
}

// ListEnabledAlertRulesByTenant implements storage.AlertRuleStore.
func (s *Store) ListEnabledAlertRulesByTenant(ctx context.Context, tenantID string) ([]*alert.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*alert.Rule
	for _, r := range s.rules {
		if r.TenantID == tenantID && r.Enabled {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ListAlertRulesAllTenants implements storage.AlertRuleStore.
func (s *Store) ListAlertRulesAllTenants(ctx context.Context) ([]*alert.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*alert.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		if r.Enabled {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func isOpenStatus(st alert.EventStatus) bool {
	for _, s := range alert.OpenStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// CreateAlertEventIfAbsent implements storage.AlertEventStore.
func (s *Store) CreateAlertEventIfAbsent(ctx context.Context, e *alert.Event) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.events {
		if existing.DedupeKey == e.DedupeKey && isOpenStatus(existing.Status) {
			return false, nil
		}
	}
	if e.ID == "" {
		e.ID = newID()
	}
	if e.OpenedAt.IsZero() {
		e.OpenedAt = time.Now().UTC()
	}
	cp := *e
	s.events[e.ID] = &cp
	return true, nil
}

// GetAlertEvent implements storage.AlertEventStore.
func (s *Store) GetAlertEvent(ctx context.Context, tenantID, id string) (*alert.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok || e.TenantID != tenantID {
		return nil, apierror.Missing("alertEvent", id)
	}
	cp := *e
	return &cp, nil
}

// ListAlertEvents implements storage.AlertEventStore.
func (s *Store) ListAlertEvents(ctx context.Context, tenantID string, filter storage.AlertEventFilter) ([]*alert.Event, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*alert.Event
	for _, e := range s.events {
		if e.TenantID != tenantID {
			continue
		}
		if filter.Status != nil && e.Status != *filter.Status {
			continue
		}
		if filter.Severity != nil && e.Severity != *filter.Severity {
			continue
		}
		if filter.DeviceID != nil && e.DeviceID != *filter.DeviceID {
			continue
		}
		cp := *e
		matched = append(matched, &cp)
	}

	total := len(matched)
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
	return matched[offset:end], total, nil
}

// UpdateAlertEvent implements storage.AlertEventStore.
func (s *Store) UpdateAlertEvent(ctx context.Context, e *alert.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[e.ID]; !ok {
		return apierror.Missing("alertEvent", e.ID)
	}
	cp := *e
	s.events[e.ID] = &cp
	return nil
}
