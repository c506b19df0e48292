// Package telemetry defines raw device readings and the derived
// per-device shadow (twin) state computed from them.
package telemetry

import "time"

// GeoSource mirrors device.GeoSource; duplicated here to keep this
// package free of a dependency on internal/domain/device.
type GeoSource string

const (
	EdgeGNSS GeoSource = "EDGE_GNSS"
	EdgeCell GeoSource = "EDGE_CELL"
)

// Geo is an optional location attached to a reading.
type Geo struct {
	Lat      float64   `json:"lat"`
	Lon      float64   `json:"lon"`
	Accuracy *float64  `json:"accuracyM,omitempty"`
	Source   GeoSource `json:"source,omitempty"`
}

// Reading is a single time-point telemetry sample for a device.
type Reading struct {
	ID        string         `json:"id"`
	DeviceID  string         `json:"deviceId"`
	TenantID  string         `json:"tenantId"`
	Ts        time.Time      `json:"ts"`
	Metrics   map[string]any `json:"metrics"`
	Geo       *Geo           `json:"geo,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Twin is the server-side cached mirror of a device's most recently
// reported state. Exactly one Twin exists per device.
type Twin struct {
	DeviceID     string         `json:"deviceId"`
	LastTs       time.Time      `json:"lastTs"`
	DerivedState map[string]any `json:"derivedState"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// Plausibility range table for distinguished numeric metrics (§4.3).
type Range struct {
	Min float64
	Max float64
}

// PlausibilityRanges is the fixed validation table; out-of-range values
// produce non-fatal warnings rather than rejecting the write.
var PlausibilityRanges = map[string]Range{
	"tankTempC":    {Min: -10, Max: 120},
	"ambientTempC": {Min: -50, Max: 70},
	"humidityPct":  {Min: 0, Max: 100},
	"lux":          {Min: 0, Max: 200000},
	"flowLpm":      {Min: 0, Max: 50},
	"powerW":       {Min: 0, Max: 10000},
	"batteryPct":   {Min: 0, Max: 100},
	"rssiDbm":      {Min: -130, Max: 0},
}
