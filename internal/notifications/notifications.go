// Package notifications drains the queued outbound notification
// events produced by the alert evaluator, dispatching each through its
// channel-typed adapter. Delivery is fire-and-forget at this layer;
// retry policy, if any, lives in the scheduler's cadence.
package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/solarfleet/control-plane/internal/domain/notification"
	"github.com/solarfleet/control-plane/internal/storage"
	"github.com/solarfleet/control-plane/pkg/logger"
)

// batchSize is the maximum number of queued events drained per
// Consume call.
const batchSize = 100

// Adapter delivers a single notification event through its channel.
// The reference implementations are stubs; a production deployment
// would replace these with real SMTP/SMS/webhook clients.
type Adapter interface {
	Send(ctx context.Context, channel *notification.Channel, event *notification.Event) error
}

// AdapterFunc adapts a plain function to the Adapter interface.
type AdapterFunc func(ctx context.Context, channel *notification.Channel, event *notification.Event) error

// Send implements Adapter.
func (f AdapterFunc) Send(ctx context.Context, channel *notification.Channel, event *notification.Event) error {
	return f(ctx, channel, event)
}

// Service consumes the queued notification events.
type Service struct {
	channels storage.NotificationChannelStore
	events   storage.NotificationEventStore
	adapters map[notification.ChannelType]Adapter
	log      *logger.Logger
}

// New creates a notification consumer. adapters maps each channel
// type to its delivery implementation; a type with no registered
// adapter fails every event routed to it.
func New(channels storage.NotificationChannelStore, events storage.NotificationEventStore, adapters map[notification.ChannelType]Adapter, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("notifications")
	}
	if adapters == nil {
		adapters = map[notification.ChannelType]Adapter{}
	}
	return &Service{channels: channels, events: events, adapters: adapters, log: log}
}

// Consume drains up to batchSize QUEUED events oldest-first and
// dispatches each through its channel's adapter.
func (s *Service) Consume(ctx context.Context) error {
	events, err := s.events.ListQueuedNotificationEventsOldestFirst(ctx, batchSize)
	if err != nil {
		return err
	}

	for _, ev := range events {
		s.dispatch(ctx, ev)
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, ev *notification.Event) {
	channel, err := s.channels.GetNotificationChannel(ctx, ev.TenantID, ev.ChannelID)
	if err != nil {
		s.markFailed(ctx, ev, fmt.Sprintf("channel lookup failed: %v", err))
		return
	}

	adapter, ok := s.adapters[channel.Type]
	if !ok {
		s.markFailed(ctx, ev, fmt.Sprintf("no adapter registered for channel type %s", channel.Type))
		return
	}

	if err := adapter.Send(ctx, channel, ev); err != nil {
		s.markFailed(ctx, ev, err.Error())
		return
	}

	now := time.Now().UTC()
	ev.Status = notification.Sent
	ev.SentAt = &now
	if err := s.events.UpdateNotificationEvent(ctx, ev); err != nil {
		s.log.WithField("event_id", ev.ID).WithField("error", err.Error()).Warn("failed to mark notification sent")
	}
}

func (s *Service) markFailed(ctx context.Context, ev *notification.Event, reason string) {
	ev.Status = notification.Failed
	ev.ErrorMsg = reason
	if err := s.events.UpdateNotificationEvent(ctx, ev); err != nil {
		s.log.WithField("event_id", ev.ID).WithField("error", err.Error()).Warn("failed to mark notification failed")
	}
}
