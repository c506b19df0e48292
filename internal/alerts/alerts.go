// Package alerts implements the periodic alert evaluator: for each
// enabled rule, sweep the tenant's active devices, evaluate the rule's
// predicate, open a deduped event on a positive result, and produce
// outbound notifications for it.
package alerts

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/solarfleet/control-plane/internal/domain/alert"
	"github.com/solarfleet/control-plane/internal/domain/device"
	"github.com/solarfleet/control-plane/internal/domain/notification"
	"github.com/solarfleet/control-plane/internal/storage"
	"github.com/solarfleet/control-plane/pkg/logger"
)

// activeStatuses are the device lifecycle states the evaluator
// considers when sweeping a rule's tenant.
var activeStatuses = map[device.Status]bool{
	device.Active:    true,
	device.Installed: true,
}

// Service runs the periodic alert sweep.
type Service struct {
	rules         storage.AlertRuleStore
	events        storage.AlertEventStore
	devices       storage.DeviceStore
	telemetry     storage.TelemetryStore
	twins         storage.TwinStore
	channels      storage.NotificationChannelStore
	notifications storage.NotificationEventStore
	log           *logger.Logger
}

// New creates an alert evaluator backed by the provided stores.
func New(rules storage.AlertRuleStore, events storage.AlertEventStore, devices storage.DeviceStore,
	telemetry storage.TelemetryStore, twins storage.TwinStore,
	channels storage.NotificationChannelStore, notifications storage.NotificationEventStore,
	log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("alerts")
	}
	return &Service{
		rules: rules, events: events, devices: devices, telemetry: telemetry, twins: twins,
		channels: channels, notifications: notifications, log: log,
	}
}

// Sweep runs a single evaluation pass over every enabled rule across
// every tenant.
func (s *Service) Sweep(ctx context.Context) error {
	rules, err := s.rules.ListAlertRulesAllTenants(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	deps := predicateDeps{telemetry: s.telemetry, twins: s.twins}

	for _, rule := range rules {
		predicate, ok := registry[rule.Type]
		if !ok {
			continue
		}

		devices, _, err := s.devices.ListDevices(ctx, rule.TenantID, storage.DeviceFilter{})
		if err != nil {
			s.log.WithField("rule_id", rule.ID).WithField("error", err.Error()).Warn("failed to list devices for rule sweep")
			continue
		}

		for _, d := range devices {
			if !activeStatuses[d.Status] {
				continue
			}
			fires, details, err := predicate(ctx, deps, d, rule, now)
			if err != nil {
				s.log.WithField("rule_id", rule.ID).WithField("device_id", d.ID).WithField("error", err.Error()).
					Warn("predicate evaluation failed")
				continue
			}
			if !fires {
				continue
			}
			if err := s.openEvent(ctx, rule, d, details); err != nil {
				s.log.WithField("rule_id", rule.ID).WithField("device_id", d.ID).WithField("error", err.Error()).
					Warn("failed to open alert event")
			}
		}
	}
	return nil
}

func (s *Service) openEvent(ctx context.Context, rule *alert.Rule, d *device.Device, details map[string]any) error {
	ev := &alert.Event{
		ID:        uuid.NewString(),
		TenantID:  rule.TenantID,
		DeviceID:  d.ID,
		RuleID:    rule.ID,
		Severity:  rule.Severity,
		Status:    alert.Open,
		Details:   details,
		DedupeKey: alert.DedupeKey(d.ID, rule.ID),
	}
	created, err := s.events.CreateAlertEventIfAbsent(ctx, ev)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}
	return s.produceNotifications(ctx, ev)
}

// produceNotifications enqueues a NotificationEvent for each enabled
// channel of the tenant. INFO severity is suppressed on EMAIL/SMS
// channels; WEBHOOK channels receive every severity.
func (s *Service) produceNotifications(ctx context.Context, ev *alert.Event) error {
	channels, err := s.channels.ListEnabledNotificationChannelsByTenant(ctx, ev.TenantID)
	if err != nil {
		return err
	}
	for _, ch := range channels {
		if ev.Severity == alert.Info && ch.Type != notification.Webhook {
			continue
		}
		alertID := ev.ID
		event := &notification.Event{
			ID:        uuid.NewString(),
			TenantID:  ev.TenantID,
			ChannelID: ch.ID,
			AlertID:   &alertID,
			Status:    notification.Queued,
			Payload: map[string]any{
				"deviceId": ev.DeviceID,
				"ruleId":   ev.RuleID,
				"severity": ev.Severity,
				"details":  ev.Details,
			},
		}
		if err := s.notifications.CreateNotificationEvent(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// Acknowledge transitions an OPEN event to ACKNOWLEDGED.
func (s *Service) Acknowledge(ctx context.Context, tenantID, id string) (*alert.Event, error) {
	return s.transition(ctx, tenantID, id, alert.Acknowledged)
}

// Close transitions an OPEN or ACKNOWLEDGED event to CLOSED.
func (s *Service) Close(ctx context.Context, tenantID, id string) (*alert.Event, error) {
	return s.transition(ctx, tenantID, id, alert.Closed)
}

func (s *Service) transition(ctx context.Context, tenantID, id string, to alert.EventStatus) (*alert.Event, error) {
	ev, err := s.events.GetAlertEvent(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	switch to {
	case alert.Acknowledged:
		ev.AcknowledgedAt = &now
	case alert.Closed:
		ev.ClosedAt = &now
	}
	ev.Status = to
	if err := s.events.UpdateAlertEvent(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// List returns alert events for a tenant matching filter.
func (s *Service) List(ctx context.Context, tenantID string, filter storage.AlertEventFilter) ([]*alert.Event, int, error) {
	return s.events.ListAlertEvents(ctx, tenantID, filter)
}
