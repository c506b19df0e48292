package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarfleet/control-plane/internal/domain/notification"
	"github.com/solarfleet/control-plane/internal/storage/memory"
)

func TestConsumeMarksSuccessfulDeliverySent(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.CreateNotificationChannel(ctx, &notification.Channel{ID: "c1", TenantID: "t1", Type: notification.Email, Enabled: true}))
	require.NoError(t, store.CreateNotificationEvent(ctx, &notification.Event{ID: "e1", TenantID: "t1", ChannelID: "c1", Status: notification.Queued}))

	svc := New(store, store, map[notification.ChannelType]Adapter{
		notification.Email: AdapterFunc(func(ctx context.Context, channel *notification.Channel, event *notification.Event) error { return nil }),
	}, nil)

	require.NoError(t, svc.Consume(ctx))

	remaining, err := store.ListQueuedNotificationEventsOldestFirst(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestConsumeMarksFailedOnAdapterError(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.CreateNotificationChannel(ctx, &notification.Channel{ID: "c1", TenantID: "t1", Type: notification.SMS, Enabled: true}))
	require.NoError(t, store.CreateNotificationEvent(ctx, &notification.Event{ID: "e1", TenantID: "t1", ChannelID: "c1", Status: notification.Queued}))

	svc := New(store, store, map[notification.ChannelType]Adapter{
		notification.SMS: AdapterFunc(func(ctx context.Context, channel *notification.Channel, event *notification.Event) error {
			return errors.New("carrier unavailable")
		}),
	}, nil)

	require.NoError(t, svc.Consume(ctx))

	remaining, err := store.ListQueuedNotificationEventsOldestFirst(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, remaining, "failed events leave the queue, not remain QUEUED")
}

func TestConsumeFailsWhenNoAdapterRegistered(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.CreateNotificationChannel(ctx, &notification.Channel{ID: "c1", TenantID: "t1", Type: notification.Webhook, Enabled: true}))
	require.NoError(t, store.CreateNotificationEvent(ctx, &notification.Event{ID: "e1", TenantID: "t1", ChannelID: "c1", Status: notification.Queued}))

	svc := New(store, store, nil, nil)
	require.NoError(t, svc.Consume(ctx))

	remaining, err := store.ListQueuedNotificationEventsOldestFirst(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}
