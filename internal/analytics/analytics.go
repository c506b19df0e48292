// Package analytics computes the daily per-device rollup: energy and
// water consumption, heater runtime, and tank/ambient temperature
// extremes, derived from a day's telemetry readings.
package analytics

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/solarfleet/control-plane/internal/domain/analytics"
	"github.com/solarfleet/control-plane/internal/domain/device"
	"github.com/solarfleet/control-plane/internal/storage"
	"github.com/solarfleet/control-plane/pkg/logger"
)

// defaultIntervalMinutes is used for the first reading of a day, which
// has no predecessor to derive an interval from.
const defaultIntervalMinutes = 5.0

var activeStatuses = map[device.Status]bool{
	device.Active:    true,
	device.Installed: true,
}

// Service computes and persists daily rollups.
type Service struct {
	tenants   storage.TenantStore
	devices   storage.DeviceStore
	telemetry storage.TelemetryStore
	rollups   storage.RollupStore
	log       *logger.Logger
}

// New creates an analytics roller backed by the provided stores.
func New(tenants storage.TenantStore, devices storage.DeviceStore, telemetry storage.TelemetryStore, rollups storage.RollupStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("analytics")
	}
	return &Service{tenants: tenants, devices: devices, telemetry: telemetry, rollups: rollups, log: log}
}

// RollDay computes and upserts the rollup for every eligible device
// for the calendar day containing day (in UTC).
func (s *Service) RollDay(ctx context.Context, day time.Time) error {
	tenants, err := s.tenants.ListTenants(ctx)
	if err != nil {
		return err
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	for _, t := range tenants {
		devices, _, err := s.devices.ListDevices(ctx, t.ID, storage.DeviceFilter{})
		if err != nil {
			s.log.WithField("tenant_id", t.ID).WithField("error", err.Error()).Warn("failed to list devices for rollup")
			continue
		}
		for _, d := range devices {
			if !activeStatuses[d.Status] {
				continue
			}
			if err := s.rollDevice(ctx, d, dayStart, dayEnd); err != nil {
				s.log.WithField("device_id", d.ID).WithField("error", err.Error()).Warn("failed to compute rollup")
			}
		}
	}
	return nil
}

func (s *Service) rollDevice(ctx context.Context, d *device.Device, dayStart, dayEnd time.Time) error {
	readings, err := s.telemetry.ListReadingsWindow(ctx, d.ID, dayStart, dayEnd)
	if err != nil {
		return err
	}
	if len(readings) == 0 {
		return nil
	}

	var energyKwh, waterLiters, heaterMinutes, ambientSum float64
	var ambientSamples int
	var tankMin, tankMax *float64

	prevTs := readings[0].Ts
	for i, r := range readings {
		intervalMinutes := defaultIntervalMinutes
		if i > 0 {
			intervalMinutes = r.Ts.Sub(prevTs).Minutes()
		}
		prevTs = r.Ts

		if v, ok := toFloat(r.Metrics["powerW"]); ok {
			energyKwh += (v / 1000) * (intervalMinutes / 60)
		}
		if v, ok := toFloat(r.Metrics["flowLpm"]); ok {
			waterLiters += v * intervalMinutes
		}
		if v, ok := r.Metrics["heaterOn"].(bool); ok && v {
			heaterMinutes += intervalMinutes
		}
		if v, ok := toFloat(r.Metrics["tankTempC"]); ok {
			if tankMin == nil || v < *tankMin {
				cp := v
				tankMin = &cp
			}
			if tankMax == nil || v > *tankMax {
				cp := v
				tankMax = &cp
			}
		}
		if v, ok := toFloat(r.Metrics["ambientTempC"]); ok {
			ambientSum += v
			ambientSamples++
		}
	}

	rollup := &analytics.DailyRollup{
		TenantID:        d.TenantID,
		DeviceID:        d.ID,
		Day:             dayStart,
		EnergyKwh:       round(energyKwh, 2),
		WaterLiters:     round(waterLiters, 2),
		HeaterOnMinutes: int(math.Round(heaterMinutes)),
		TankTempMinC:    roundPtr(tankMin, 2),
		TankTempMaxC:    roundPtr(tankMax, 2),
	}
	if ambientSamples > 0 {
		avg := round(ambientSum/float64(ambientSamples), 1)
		rollup.AmbientTempAvgC = &avg
	}

	existing, err := s.rollups.GetRollup(ctx, d.ID, dayStart)
	if err == nil && existing != nil {
		rollup.ID = existing.ID
		rollup.CreatedAt = existing.CreatedAt
	} else {
		rollup.ID = uuid.NewString()
	}
	return s.rollups.UpsertRollup(ctx, rollup)
}

func round(v float64, places int) float64 {
	mult := math.Pow(10, float64(places))
	return math.Round(v*mult) / mult
}

func roundPtr(v *float64, places int) *float64 {
	if v == nil {
		return nil
	}
	r := round(*v, places)
	return &r
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// ListForTenantDay returns every rollup computed for tenantID on day.
func (s *Service) ListForTenantDay(ctx context.Context, tenantID string, day time.Time) ([]*analytics.DailyRollup, error) {
	return s.rollups.ListRollupsForTenantDay(ctx, tenantID, day)
}
