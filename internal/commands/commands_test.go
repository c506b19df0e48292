package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarfleet/control-plane/internal/apierror"
	"github.com/solarfleet/control-plane/internal/audit"
	"github.com/solarfleet/control-plane/internal/domain/command"
	"github.com/solarfleet/control-plane/internal/domain/device"
	"github.com/solarfleet/control-plane/internal/domain/entitlement"
	entsvc "github.com/solarfleet/control-plane/internal/entitlement"
	"github.com/solarfleet/control-plane/internal/storage/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.CreateDevice(ctx, &device.Device{ID: "d1", TenantID: "t1", SerialNumber: "SN-1", Status: device.Active}))
	svc := New(store, store, entsvc.New(store, nil), audit.New(store, nil), nil)
	return svc, store
}

func TestCreateQueuesCommandWhenEntitled(t *testing.T) {
	svc, _ := newTestService(t)
	c, err := svc.Create(context.Background(), "t1", "d1", "u1", command.RemoteBoostSet, map[string]any{"on": true})
	require.NoError(t, err)
	assert.Equal(t, command.Queued, c.Status)
	assert.Equal(t, "d1", c.DeviceID)
}

func TestCreateFailsFeatureDisabledWhenBoostDisabled(t *testing.T) {
	svc, store := newTestService(t)
	_, err := entsvc.New(store, nil).Set(context.Background(), "t1", entitlement.ScopeTenant, entitlement.BasicRemoteBoost, nil, false)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), "t1", "d1", "u1", command.RemoteBoostSet, nil)
	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	assert.Equal(t, apierror.FeatureDisabled, apiErr.Code)
}

func TestCreateFailsNotFoundForDeviceInOtherTenant(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Create(context.Background(), "other-tenant", "d1", "u1", command.RemoteBoostSet, nil)
	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	assert.Equal(t, apierror.NotFound, apiErr.Code)
}

func TestPollPendingDeliversOnceInOrder(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, "t1", "d1", "u1", command.RemoteBoostSet, map[string]any{"seq": 1})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "t1", "d1", "u1", command.SetSchedule, map[string]any{"seq": 2})
	require.NoError(t, err)

	delivered, err := svc.PollPending(ctx, "d1", "d1")
	require.NoError(t, err)
	require.Len(t, delivered, 2)
	assert.Equal(t, command.Delivered, delivered[0].Status)
	assert.Equal(t, command.RemoteBoostSet, delivered[0].Type)
	assert.Equal(t, command.SetSchedule, delivered[1].Type)

	second, err := svc.PollPending(ctx, "d1", "d1")
	require.NoError(t, err)
	assert.Empty(t, second, "already-delivered commands must not resurface")
}

func TestPollPendingRejectsMismatchedDevice(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.PollPending(context.Background(), "d1", "d2")
	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	assert.Equal(t, apierror.Forbidden, apiErr.Code)
}

func TestAcknowledgeSetsStatusAndTimestamp(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	c, err := svc.Create(ctx, "t1", "d1", "u1", command.RemoteBoostSet, nil)
	require.NoError(t, err)
	_, err = svc.PollPending(ctx, "d1", "d1")
	require.NoError(t, err)

	acked, err := svc.Acknowledge(ctx, "d1", "d1", c.ID, command.Acked, "")
	require.NoError(t, err)
	assert.Equal(t, command.Acked, acked.Status)
	require.NotNil(t, acked.AckAt)
}

func TestAcknowledgeRejectsInvalidStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	c, err := svc.Create(ctx, "t1", "d1", "u1", command.RemoteBoostSet, nil)
	require.NoError(t, err)

	_, err = svc.Acknowledge(ctx, "d1", "d1", c.ID, command.Queued, "")
	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	assert.Equal(t, apierror.ValidationError, apiErr.Code)
}
