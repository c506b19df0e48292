package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarfleet/control-plane/internal/apierror"
	"github.com/solarfleet/control-plane/internal/audit"
	"github.com/solarfleet/control-plane/internal/domain/device"
	"github.com/solarfleet/control-plane/internal/domain/site"
	"github.com/solarfleet/control-plane/internal/domain/telemetry"
	"github.com/solarfleet/control-plane/internal/storage"
	"github.com/solarfleet/control-plane/internal/storage/memory"
)

func newTestDevice(t *testing.T, store *memory.Store, siteID *string) *device.Device {
	t.Helper()
	ctx := context.Background()
	d := &device.Device{ID: "d1", TenantID: "t1", SiteID: siteID, SerialNumber: "SN-1", Status: device.Active}
	require.NoError(t, store.CreateDevice(ctx, d))
	return d
}

func TestIngestRejectsMismatchedDeviceID(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, store, audit.New(store, nil), nil)
	newTestDevice(t, store, nil)

	_, err := svc.Ingest(context.Background(), "d1", IngestInput{DeviceID: "other-device", Ts: time.Now()})
	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	assert.Equal(t, apierror.ValidationError, apiErr.Code)
}

func TestIngestPersistsReadingAndUpdatesDeviceAndTwin(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, store, audit.New(store, nil), nil)
	newTestDevice(t, store, nil)
	ctx := context.Background()
	ts := time.Now().UTC()

	result, err := svc.Ingest(ctx, "d1", IngestInput{
		DeviceID: "d1",
		Ts:       ts,
		Metrics:  map[string]any{"tankTempC": 60.0, "rssiDbm": -110.0, "batteryPct": 15.0},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.ID)
	assert.Empty(t, result.Warnings)

	d, err := store.GetDeviceByID(ctx, "d1")
	require.NoError(t, err)
	require.NotNil(t, d.LastSeenAt)
	assert.WithinDuration(t, ts, *d.LastSeenAt, time.Second)

	twin, err := store.GetTwin(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 60.0, twin.DerivedState["lastTankTempC"])
	assert.Equal(t, true, twin.DerivedState["isOnline"])
	// rssi < -100 (-20), battery < 20 (-30) => 100-20-30=50
	assert.Equal(t, 50, twin.DerivedState["healthScore"])
}

func TestIngestEmitsWarningForOutOfRangeMetric(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, store, audit.New(store, nil), nil)
	newTestDevice(t, store, nil)

	result, err := svc.Ingest(context.Background(), "d1", IngestInput{
		DeviceID: "d1",
		Ts:       time.Now(),
		Metrics:  map[string]any{"tankTempC": 500.0},
	})
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "tankTempC")
}

func TestIngestFillsSiteLocationOnFirstGeoReport(t *testing.T) {
	store := memory.New()
	auditSink := audit.New(store, nil)
	svc := New(store, store, store, store, auditSink, nil)
	ctx := context.Background()

	s := &site.Site{ID: "s1", TenantID: "t1", Name: "Roof"}
	require.NoError(t, store.CreateSite(ctx, s))
	siteID := "s1"
	newTestDevice(t, store, &siteID)

	_, err := svc.Ingest(ctx, "d1", IngestInput{
		DeviceID: "d1",
		Ts:       time.Now(),
		Metrics:  map[string]any{},
		Geo:      &telemetry.Geo{Lat: 40.0, Lon: -70.0, Source: telemetry.EdgeGNSS},
	})
	require.NoError(t, err)

	updated, err := store.GetSiteByID(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, updated.Lat)
	assert.Equal(t, 40.0, *updated.Lat)

	logs, err := auditSink.List(ctx, "t1", storage.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "SITE_LOCATION_SET_FROM_DEVICE", logs[0].Action)
}

func TestIngestDoesNotMoveLockedSite(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, store, audit.New(store, nil), nil)
	ctx := context.Background()

	lat, lon := 10.0, 10.0
	s := &site.Site{ID: "s1", TenantID: "t1", Name: "Roof", Lat: &lat, Lon: &lon, LocationLock: true}
	require.NoError(t, store.CreateSite(ctx, s))
	siteID := "s1"
	newTestDevice(t, store, &siteID)

	_, err := svc.Ingest(ctx, "d1", IngestInput{
		DeviceID: "d1",
		Ts:       time.Now(),
		Metrics:  map[string]any{},
		Geo:      &telemetry.Geo{Lat: 50.0, Lon: 50.0, Source: telemetry.EdgeGNSS},
	})
	require.NoError(t, err)

	unchanged, err := store.GetSiteByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, *unchanged.Lat)
}

func TestIngestEmitsLargeJumpAuditWithoutMovingSite(t *testing.T) {
	store := memory.New()
	auditSink := audit.New(store, nil)
	svc := New(store, store, store, store, auditSink, nil)
	ctx := context.Background()

	lat, lon := 40.0, -70.0
	s := &site.Site{ID: "s1", TenantID: "t1", Name: "Roof", Lat: &lat, Lon: &lon}
	require.NoError(t, store.CreateSite(ctx, s))
	siteID := "s1"
	newTestDevice(t, store, &siteID)

	_, err := svc.Ingest(ctx, "d1", IngestInput{
		DeviceID: "d1",
		Ts:       time.Now(),
		Metrics:  map[string]any{},
		Geo:      &telemetry.Geo{Lat: 41.0, Lon: -71.0, Source: telemetry.EdgeGNSS},
	})
	require.NoError(t, err)

	unchanged, err := store.GetSiteByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 40.0, *unchanged.Lat, "a large jump must not move the site")

	logs, err := auditSink.List(ctx, "t1", storage.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "DEVICE_GEO_LARGE_JUMP", logs[0].Action)
}
