package memory

import (
	"context"
	"sort"
	"time"

	"github.com/solarfleet/control-plane/internal/apierror"
	"github.com/solarfleet/control-plane/internal/domain/notification"
)

// CreateNotificationChannel implements storage.NotificationChannelStore.
func (s *Store) CreateNotificationChannel(ctx context.Context, c *notification.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = newID()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	cp := *c
	s.channels[c.ID] = &cp
	return nil
}

// GetNotificationChannel implements storage.NotificationChannelStore.
func (s *Store) GetNotificationChannel(ctx context.Context, tenantID, id string) (*notification.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.channels[id]
	if !ok || c.TenantID != tenantID {
		return nil, apierror.Missing("notificationChannel", id)
	}
	cp := *c
	return &cp, nil
}

// ListEnabledNotificationChannelsByTenant implements storage.NotificationChannelStore.
func (s *Store) ListEnabledNotificationChannelsByTenant(ctx context.Context, tenantID string) ([]*notification.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*notification.Channel
	for _, c := range s.channels {
		if c.TenantID == tenantID && c.Enabled {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

// CreateNotificationEvent implements storage.NotificationEventStore.
func (s *Store) CreateNotificationEvent(ctx context.Context, e *notification.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = newID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	cp := *e
	s.notifications[e.ID] = &cp
	return nil
}

// ListQueuedNotificationEventsOldestFirst implements storage.NotificationEventStore.
func (s *Store) ListQueuedNotificationEventsOldestFirst(ctx context.Context, limit int) ([]*notification.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var queued []*notification.Event
	for _, e := range s.notifications {
		if e.Status == notification.Queued {
			queued = append(queued, e)
		}
	}
	sort.Slice(queued, func(i, j int) bool { return queued[i].CreatedAt.Before(queued[j].CreatedAt) })
	if limit > 0 && len(queued) > limit {
		queued = queued[:limit]
	}
	out := make([]*notification.Event, len(queued))
	for i, e := range queued {
		cp := *e
		out[i] = &cp
	}
	return out, nil
}

// UpdateNotificationEvent implements storage.NotificationEventStore.
func (s *Store) UpdateNotificationEvent(ctx context.Context, e *notification.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notifications[e.ID]; !ok {
		return apierror.Missing("notificationEvent", e.ID)
	}
	cp := *e
	s.notifications[e.ID] = &cp
	return nil
}
