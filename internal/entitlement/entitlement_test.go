package entitlement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarfleet/control-plane/internal/apierror"
	"github.com/solarfleet/control-plane/internal/domain/entitlement"
	"github.com/solarfleet/control-plane/internal/storage/memory"
)

func TestIsEnabledFallsBackToDefaults(t *testing.T) {
	svc := New(memory.New(), nil)

	enabled, err := svc.IsEnabled(context.Background(), "t1", entitlement.BasicRemoteBoost, nil)
	require.NoError(t, err)
	assert.True(t, enabled)

	enabled, err = svc.IsEnabled(context.Background(), "t1", entitlement.SmartHomeIntegration, nil)
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestDeviceScopeWinsOverTenantScope(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	ctx := context.Background()
	deviceID := "d1"

	_, err := svc.Set(ctx, "t1", entitlement.ScopeTenant, entitlement.BasicRemoteBoost, nil, false)
	require.NoError(t, err)
	_, err = svc.Set(ctx, "t1", entitlement.ScopeDevice, entitlement.BasicRemoteBoost, &deviceID, true)
	require.NoError(t, err)

	enabled, err := svc.IsEnabled(ctx, "t1", entitlement.BasicRemoteBoost, &deviceID)
	require.NoError(t, err)
	assert.True(t, enabled, "device-scope row should win over the tenant-scope row")

	enabled, err = svc.IsEnabled(ctx, "t1", entitlement.BasicRemoteBoost, nil)
	require.NoError(t, err)
	assert.False(t, enabled, "tenant-scope lookup without a device id should not see the device row")
}

func TestSetUpdatesExistingRowInPlace(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	ctx := context.Background()

	first, err := svc.Set(ctx, "t1", entitlement.ScopeTenant, entitlement.SmartHomeIntegration, nil, true)
	require.NoError(t, err)
	second, err := svc.Set(ctx, "t1", entitlement.ScopeTenant, entitlement.SmartHomeIntegration, nil, false)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.False(t, second.Enabled)
}

func TestRequireFailsFeatureDisabled(t *testing.T) {
	svc := New(memory.New(), nil)
	err := svc.Require(context.Background(), "t1", entitlement.SmartHomeIntegration, nil)
	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	assert.Equal(t, apierror.FeatureDisabled, apiErr.Code)
}

func TestRequirePassesForEnabledDefault(t *testing.T) {
	svc := New(memory.New(), nil)
	err := svc.Require(context.Background(), "t1", entitlement.BasicRemoteBoost, nil)
	assert.NoError(t, err)
}
