package memory

import (
	"context"
	"sort"
	"time"

	"github.com/solarfleet/control-plane/internal/apierror"
	"github.com/solarfleet/control-plane/internal/domain/command"
)

// CreateCommand implements storage.CommandStore.
func (s *Store) CreateCommand(ctx context.Context, c *command.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = newID()
	}
	if c.RequestedAt.IsZero() {
		c.RequestedAt = time.Now().UTC()
	}
	cp := *c
	s.commands[c.ID] = &cp
	return nil
}

// GetCommand implements storage.CommandStore.
func (s *Store) GetCommand(ctx context.Context, id string) (*command.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.commands[id]
	if !ok {
		return nil, apierror.Missing("command", id)
	}
	cp := *c
	return &cp, nil
}

// PollAndMarkDelivered implements storage.CommandStore.
func (s *Store) PollAndMarkDelivered(ctx context.Context, deviceID string, now time.Time) ([]*command.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []*command.Command
	for _, c := range s.commands {
		if c.DeviceID == deviceID && c.Status == command.Queued {
			pending = append(pending, c)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].RequestedAt.Before(pending[j].RequestedAt) })

	out := make([]*command.Command, len(pending))
	for i, c := range pending {
		c.Status = command.Delivered
		c.DeliveredAt = &now
		cp := *c
		out[i] = &cp
	}
	return out, nil
}

// UpdateCommand implements storage.CommandStore.
func (s *Store) UpdateCommand(ctx context.Context, c *command.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.commands[c.ID]; !ok {
		return apierror.Missing("command", c.ID)
	}
	cp := *c
	s.commands[c.ID] = &cp
	return nil
}
