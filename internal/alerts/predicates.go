package alerts

import (
	"context"
	"time"

	"github.com/solarfleet/control-plane/internal/domain/alert"
	"github.com/solarfleet/control-plane/internal/domain/device"
	"github.com/solarfleet/control-plane/internal/storage"
)

// Predicate evaluates a single alert rule against a single device,
// returning whether it fires and any detail fields to attach to the
// resulting event.
type Predicate func(ctx context.Context, deps predicateDeps, d *device.Device, rule *alert.Rule, now time.Time) (bool, map[string]any, error)

type predicateDeps struct {
	telemetry storage.TelemetryStore
	twins     storage.TwinStore
}

// registry maps each RuleType to its predicate implementation.
var registry = map[alert.RuleType]Predicate{
	alert.NoTelemetry:      noTelemetryPredicate,
	alert.OverTemp:         overTempPredicate,
	alert.PossibleLeak:     possibleLeakPredicate,
	alert.SensorOutOfRange: sensorOutOfRangePredicate,
}

func noTelemetryPredicate(ctx context.Context, deps predicateDeps, d *device.Device, rule *alert.Rule, now time.Time) (bool, map[string]any, error) {
	threshold := paramFloat(rule.Params, "thresholdMinutes", 30)
	cutoff := now.Add(-time.Duration(threshold) * time.Minute)
	fires := d.LastSeenAt == nil || d.LastSeenAt.Before(cutoff)
	if !fires {
		return false, nil, nil
	}
	details := map[string]any{"thresholdMinutes": threshold}
	if d.LastSeenAt != nil {
		details["lastSeenAt"] = *d.LastSeenAt
	}
	return true, details, nil
}

func overTempPredicate(ctx context.Context, deps predicateDeps, d *device.Device, rule *alert.Rule, now time.Time) (bool, map[string]any, error) {
	threshold := paramFloat(rule.Params, "thresholdC", 85)
	twin, err := deps.twins.GetTwin(ctx, d.ID)
	if err != nil {
		return false, nil, nil
	}
	v, ok := toFloat(twin.DerivedState["lastTankTempC"])
	if !ok || v <= threshold {
		return false, nil, nil
	}
	return true, map[string]any{"thresholdC": threshold, "lastTankTempC": v}, nil
}

func possibleLeakPredicate(ctx context.Context, deps predicateDeps, d *device.Device, rule *alert.Rule, now time.Time) (bool, map[string]any, error) {
	lookback := paramFloat(rule.Params, "lookbackMinutes", 60)
	start := now.Add(-time.Duration(lookback) * time.Minute)
	readings, err := deps.telemetry.ListReadingsWindow(ctx, d.ID, start, now)
	if err != nil {
		return false, nil, err
	}
	if len(readings) > 10 {
		readings = readings[len(readings)-10:]
	}
	if len(readings) < 5 {
		return false, nil, nil
	}
	for _, r := range readings {
		v, ok := toFloat(r.Metrics["flowLpm"])
		if !ok || v <= 0.1 {
			return false, nil, nil
		}
	}
	return true, map[string]any{"lookbackMinutes": lookback, "sampleCount": len(readings)}, nil
}

func sensorOutOfRangePredicate(ctx context.Context, deps predicateDeps, d *device.Device, rule *alert.Rule, now time.Time) (bool, map[string]any, error) {
	metric := paramString(rule.Params, "metric", "tankTempC")
	min := paramFloat(rule.Params, "min", -10)
	max := paramFloat(rule.Params, "max", 120)
	repeatCount := int(paramFloat(rule.Params, "repeatCount", 3))

	readings, err := deps.telemetry.ListRecentReadings(ctx, d.ID, repeatCount)
	if err != nil {
		return false, nil, err
	}
	if len(readings) < repeatCount {
		return false, nil, nil
	}
	for _, r := range readings {
		v, ok := toFloat(r.Metrics[metric])
		if !ok || (v >= min && v <= max) {
			return false, nil, nil
		}
	}
	return true, map[string]any{"metric": metric, "min": min, "max": max, "repeatCount": repeatCount}, nil
}

func paramFloat(params map[string]any, key string, def float64) float64 {
	if v, ok := toFloat(params[key]); ok {
		return v
	}
	return def
}

func paramString(params map[string]any, key, def string) string {
	if v, ok := params[key].(string); ok && v != "" {
		return v
	}
	return def
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
