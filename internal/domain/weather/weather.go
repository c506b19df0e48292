// Package weather defines the per-site daily weather snapshot
// populated by the weather integration pull.
package weather

import "time"

// Snapshot is a single day's weather observation for a site. Unique on
// (SiteID, Date).
type Snapshot struct {
	ID     string    `json:"id"`
	SiteID string    `json:"siteId"`
	Date   time.Time `json:"date"`

	Condition   string  `json:"condition"`
	TemperatureC float64 `json:"temperatureC"`
	HumidityPct float64 `json:"humidityPct"`
	WindSpeedMS float64 `json:"windSpeedMs"`

	FetchedAt time.Time `json:"fetchedAt"`
}
