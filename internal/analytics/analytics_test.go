package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarfleet/control-plane/internal/domain/device"
	"github.com/solarfleet/control-plane/internal/domain/telemetry"
	"github.com/solarfleet/control-plane/internal/domain/tenant"
	"github.com/solarfleet/control-plane/internal/storage/memory"
)

func TestRollDayComputesAggregatesForEligibleDevice(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, store, nil)
	ctx := context.Background()

	require.NoError(t, store.CreateTenant(ctx, &tenant.Tenant{ID: "t1", DisplayName: "Acme"}))
	require.NoError(t, store.CreateDevice(ctx, &device.Device{ID: "d1", TenantID: "t1", SerialNumber: "SN-1", Status: device.Active}))

	day := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	t0 := day.Add(time.Hour)
	require.NoError(t, store.CreateReading(ctx, &telemetry.Reading{
		DeviceID: "d1", TenantID: "t1", Ts: t0,
		Metrics: map[string]any{"powerW": 1200.0, "flowLpm": 2.0, "heaterOn": true, "tankTempC": 55.0, "ambientTempC": 20.0},
	}))
	require.NoError(t, store.CreateReading(ctx, &telemetry.Reading{
		DeviceID: "d1", TenantID: "t1", Ts: t0.Add(10 * time.Minute),
		Metrics: map[string]any{"powerW": 600.0, "flowLpm": 0.0, "heaterOn": false, "tankTempC": 60.0, "ambientTempC": 22.0},
	}))

	require.NoError(t, svc.RollDay(ctx, day))

	rollups, err := svc.ListForTenantDay(ctx, "t1", day)
	require.NoError(t, err)
	require.Len(t, rollups, 1)
	r := rollups[0]

	// First sample: default 5 min interval, powerW=1200 -> 1.2kW*5/60 = 0.1 kWh.
	// Second sample: 10 min interval, powerW=600 -> 0.6kW*10/60 = 0.1 kWh.
	assert.InDelta(t, 0.2, r.EnergyKwh, 0.001)
	// Water: 2.0*5 + 0.0*10 = 10
	assert.InDelta(t, 10.0, r.WaterLiters, 0.001)
	assert.Equal(t, 5, r.HeaterOnMinutes)
	require.NotNil(t, r.TankTempMinC)
	require.NotNil(t, r.TankTempMaxC)
	assert.Equal(t, 55.0, *r.TankTempMinC)
	assert.Equal(t, 60.0, *r.TankTempMaxC)
	require.NotNil(t, r.AmbientTempAvgC)
	assert.Equal(t, 21.0, *r.AmbientTempAvgC)
}

func TestRollDaySkipsDeviceWithNoTelemetry(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, store, nil)
	ctx := context.Background()
	require.NoError(t, store.CreateTenant(ctx, &tenant.Tenant{ID: "t1", DisplayName: "Acme"}))
	require.NoError(t, store.CreateDevice(ctx, &device.Device{ID: "d1", TenantID: "t1", SerialNumber: "SN-1", Status: device.Active}))

	day := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, svc.RollDay(ctx, day))

	rollups, err := svc.ListForTenantDay(ctx, "t1", day)
	require.NoError(t, err)
	assert.Empty(t, rollups)
}

func TestRollDayIsIdempotentUpsert(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, store, nil)
	ctx := context.Background()
	require.NoError(t, store.CreateTenant(ctx, &tenant.Tenant{ID: "t1", DisplayName: "Acme"}))
	require.NoError(t, store.CreateDevice(ctx, &device.Device{ID: "d1", TenantID: "t1", SerialNumber: "SN-1", Status: device.Active}))

	day := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.CreateReading(ctx, &telemetry.Reading{
		DeviceID: "d1", TenantID: "t1", Ts: day.Add(time.Hour), Metrics: map[string]any{"powerW": 1000.0},
	}))

	require.NoError(t, svc.RollDay(ctx, day))
	require.NoError(t, svc.RollDay(ctx, day))

	rollups, err := svc.ListForTenantDay(ctx, "t1", day)
	require.NoError(t, err)
	require.Len(t, rollups, 1, "re-running the roller must upsert, not duplicate")
}
