package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarfleet/control-plane/internal/domain/alert"
	"github.com/solarfleet/control-plane/internal/domain/device"
	"github.com/solarfleet/control-plane/internal/domain/notification"
	"github.com/solarfleet/control-plane/internal/domain/telemetry"
	"github.com/solarfleet/control-plane/internal/storage"
	"github.com/solarfleet/control-plane/internal/storage/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := New(store, store, store, store, store, store, store, nil)
	return svc, store
}

func TestSweepOpensNoTelemetryEventForStaleDevice(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	require.NoError(t, store.CreateDevice(ctx, &device.Device{ID: "d1", TenantID: "t1", SerialNumber: "SN-1", Status: device.Active}))
	require.NoError(t, store.CreateAlertRule(ctx, &alert.Rule{
		ID: "r1", TenantID: "t1", Name: "stale", Enabled: true, Type: alert.NoTelemetry, Severity: alert.Warning,
	}))

	require.NoError(t, svc.Sweep(ctx))

	events, total, err := svc.List(ctx, "t1", storage.AlertEventFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, events, 1)
	assert.Equal(t, alert.Open, events[0].Status)
	assert.Equal(t, "d1:r1", events[0].DedupeKey)
}

func TestSweepSkipsDeviceWithRecentTelemetry(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.CreateDevice(ctx, &device.Device{ID: "d1", TenantID: "t1", SerialNumber: "SN-1", Status: device.Active, LastSeenAt: &now}))
	require.NoError(t, store.CreateAlertRule(ctx, &alert.Rule{
		ID: "r1", TenantID: "t1", Name: "stale", Enabled: true, Type: alert.NoTelemetry, Severity: alert.Warning,
	}))

	require.NoError(t, svc.Sweep(ctx))

	_, total, err := svc.List(ctx, "t1", storage.AlertEventFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestSweepDoesNotDuplicateOpenEventOnRepeatedRuns(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	require.NoError(t, store.CreateDevice(ctx, &device.Device{ID: "d1", TenantID: "t1", SerialNumber: "SN-1", Status: device.Active}))
	require.NoError(t, store.CreateAlertRule(ctx, &alert.Rule{
		ID: "r1", TenantID: "t1", Name: "stale", Enabled: true, Type: alert.NoTelemetry, Severity: alert.Warning,
	}))

	require.NoError(t, svc.Sweep(ctx))
	require.NoError(t, svc.Sweep(ctx))

	_, total, err := svc.List(ctx, "t1", storage.AlertEventFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestSweepReopensAfterClose(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	require.NoError(t, store.CreateDevice(ctx, &device.Device{ID: "d1", TenantID: "t1", SerialNumber: "SN-1", Status: device.Active}))
	require.NoError(t, store.CreateAlertRule(ctx, &alert.Rule{
		ID: "r1", TenantID: "t1", Name: "stale", Enabled: true, Type: alert.NoTelemetry, Severity: alert.Warning,
	}))
	require.NoError(t, svc.Sweep(ctx))

	events, _, err := svc.List(ctx, "t1", storage.AlertEventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	_, err = svc.Close(ctx, "t1", events[0].ID)
	require.NoError(t, err)

	require.NoError(t, svc.Sweep(ctx))

	_, total, err := svc.List(ctx, "t1", storage.AlertEventFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total, "a closed event must not block re-opening the same dedupe key")
}

func TestProduceNotificationsSuppressesInfoOnEmailButNotWebhook(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	require.NoError(t, store.CreateNotificationChannel(ctx, &notification.Channel{ID: "c-email", TenantID: "t1", Type: notification.Email, Enabled: true}))
	require.NoError(t, store.CreateNotificationChannel(ctx, &notification.Channel{ID: "c-webhook", TenantID: "t1", Type: notification.Webhook, Enabled: true}))

	ev := &alert.Event{ID: "e1", TenantID: "t1", DeviceID: "d1", RuleID: "r1", Severity: alert.Info}
	require.NoError(t, svc.produceNotifications(ctx, ev))

	queued, err := store.ListQueuedNotificationEventsOldestFirst(ctx, 0)
	require.NoError(t, err)
	require.Len(t, queued, 1, "INFO severity must be suppressed on the EMAIL channel")
	assert.Equal(t, "c-webhook", queued[0].ChannelID)
}

func TestProduceNotificationsDeliversWarningToAllChannels(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	require.NoError(t, store.CreateNotificationChannel(ctx, &notification.Channel{ID: "c-email", TenantID: "t1", Type: notification.Email, Enabled: true}))
	require.NoError(t, store.CreateNotificationChannel(ctx, &notification.Channel{ID: "c-webhook", TenantID: "t1", Type: notification.Webhook, Enabled: true}))

	ev := &alert.Event{ID: "e1", TenantID: "t1", DeviceID: "d1", RuleID: "r1", Severity: alert.Warning}
	require.NoError(t, svc.produceNotifications(ctx, ev))

	queued, err := store.ListQueuedNotificationEventsOldestFirst(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, queued, 2)
}

func TestOverTempPredicateFiresFromTwinState(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	require.NoError(t, store.CreateDevice(ctx, &device.Device{ID: "d1", TenantID: "t1", SerialNumber: "SN-1", Status: device.Active}))
	require.NoError(t, store.UpsertTwin(ctx, &telemetry.Twin{DeviceID: "d1", DerivedState: map[string]any{"lastTankTempC": 95.0}}))
	require.NoError(t, store.CreateAlertRule(ctx, &alert.Rule{
		ID: "r1", TenantID: "t1", Name: "hot", Enabled: true, Type: alert.OverTemp, Severity: alert.Critical,
	}))

	require.NoError(t, svc.Sweep(ctx))

	_, total, err := svc.List(ctx, "t1", storage.AlertEventFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}
