package ota

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarfleet/control-plane/internal/domain/device"
	"github.com/solarfleet/control-plane/internal/domain/ota"
	"github.com/solarfleet/control-plane/internal/storage/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := New(store, store, store, nil)
	return svc, store
}

func TestRegisterFirmwareRejectsDuplicateVersion(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.RegisterFirmware(ctx, "1.0.0", "https://fw/1.0.0", "sha", "")
	require.NoError(t, err)

	_, err = svc.RegisterFirmware(ctx, "1.0.0", "https://fw/1.0.0", "sha", "")
	assert.Error(t, err)
}

func TestScheduleAndDevicePullAndReportSuccessUpdatesFirmwareVersion(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	require.NoError(t, store.CreateDevice(ctx, &device.Device{ID: "d1", TenantID: "t1", SerialNumber: "SN-1", Status: device.Active}))
	_, err := svc.RegisterFirmware(ctx, "2.0.0", "https://fw/2.0.0", "sha", "")
	require.NoError(t, err)

	deviceID := "d1"
	job, err := svc.Schedule(ctx, "t1", ScheduleInput{
		TargetType: ota.TargetDevice, DeviceID: &deviceID, FirmwareID: "2.0.0", ScheduledAt: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, ota.Scheduled, job.Status)

	pending, err := svc.NextPendingForDevice(ctx, "t1", "d1")
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, job.ID, pending.ID)

	updated, err := svc.Report(ctx, "d1", ReportInput{JobID: job.ID, Status: ota.Success})
	require.NoError(t, err)
	assert.Equal(t, ota.Success, updated.Status)
	require.NotNil(t, updated.FinishedAt)

	d, err := store.GetDeviceByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", d.FirmwareVersion)
}

func TestReportInProgressOnlyTransitionsFromScheduled(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	require.NoError(t, store.CreateDevice(ctx, &device.Device{ID: "d1", TenantID: "t1", SerialNumber: "SN-1", Status: device.Active}))
	_, err := svc.RegisterFirmware(ctx, "1.0.0", "https://fw/1.0.0", "sha", "")
	require.NoError(t, err)
	deviceID := "d1"
	job, err := svc.Schedule(ctx, "t1", ScheduleInput{TargetType: ota.TargetDevice, DeviceID: &deviceID, FirmwareID: "1.0.0", ScheduledAt: time.Now()})
	require.NoError(t, err)

	updated, err := svc.Report(ctx, "d1", ReportInput{JobID: job.ID, Status: ota.InProgress})
	require.NoError(t, err)
	assert.Equal(t, ota.InProgress, updated.Status)
	require.NotNil(t, updated.StartedAt)
}

func TestNextPendingForDeviceIncludesInProgressJob(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	require.NoError(t, store.CreateDevice(ctx, &device.Device{ID: "d1", TenantID: "t1", SerialNumber: "SN-1", Status: device.Active}))
	_, err := svc.RegisterFirmware(ctx, "1.0.0", "https://fw/1.0.0", "sha", "")
	require.NoError(t, err)
	deviceID := "d1"
	job, err := svc.Schedule(ctx, "t1", ScheduleInput{TargetType: ota.TargetDevice, DeviceID: &deviceID, FirmwareID: "1.0.0", ScheduledAt: time.Now()})
	require.NoError(t, err)

	_, err = svc.Report(ctx, "d1", ReportInput{JobID: job.ID, Status: ota.InProgress})
	require.NoError(t, err)

	// A device that reconnects mid-rollout must re-discover its own
	// in-flight job rather than get nil back.
	pending, err := svc.NextPendingForDevice(ctx, "t1", "d1")
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, job.ID, pending.ID)
	assert.Equal(t, ota.InProgress, pending.Status)
}

func TestScheduleGroupTargetRequiresGroupFilter(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.RegisterFirmware(ctx, "1.0.0", "https://fw/1.0.0", "sha", "")
	require.NoError(t, err)

	_, err = svc.Schedule(ctx, "t1", ScheduleInput{TargetType: ota.TargetGroup, FirmwareID: "1.0.0", ScheduledAt: time.Now()})
	assert.Error(t, err)
}

func TestCancelSetsFinishedAt(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	require.NoError(t, store.CreateDevice(ctx, &device.Device{ID: "d1", TenantID: "t1", SerialNumber: "SN-1", Status: device.Active}))
	_, err := svc.RegisterFirmware(ctx, "1.0.0", "https://fw/1.0.0", "sha", "")
	require.NoError(t, err)
	deviceID := "d1"
	job, err := svc.Schedule(ctx, "t1", ScheduleInput{TargetType: ota.TargetDevice, DeviceID: &deviceID, FirmwareID: "1.0.0", ScheduledAt: time.Now()})
	require.NoError(t, err)

	canceled, err := svc.Cancel(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, ota.Canceled, canceled.Status)
	require.NotNil(t, canceled.FinishedAt)
}
