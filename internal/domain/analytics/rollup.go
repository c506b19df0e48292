// Package analytics defines the daily per-device aggregate computed by
// the analytics roller.
package analytics

import "time"

// DailyRollup is the per-device, per-calendar-day aggregate. Unique on
// (DeviceID, Day).
type DailyRollup struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	DeviceID string `json:"deviceId"`

	Day time.Time `json:"day"`

	EnergyKwh       float64  `json:"energyKwh"`
	WaterLiters     float64  `json:"waterLiters"`
	HeaterOnMinutes int      `json:"heaterOnMinutes"`
	TankTempMinC    *float64 `json:"tankTempMinC,omitempty"`
	TankTempMaxC    *float64 `json:"tankTempMaxC,omitempty"`
	AmbientTempAvgC *float64 `json:"ambientTempAvgC,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
