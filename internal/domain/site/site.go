// Package site defines physical locations under a tenant that devices
// may be bound to.
package site

import "time"

// LocationSource identifies how a site's coordinates were obtained.
type LocationSource string

const (
	MobileGPS LocationSource = "MOBILE_GPS"
	EdgeGNSS  LocationSource = "EDGE_GNSS"
	EdgeCell  LocationSource = "EDGE_CELL"
	Manual    LocationSource = "MANUAL"
)

// Site is a physical location under a tenant, optionally geolocated.
type Site struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	Name     string `json:"name"`

	Address      string `json:"address,omitempty"`
	PostalCode   string `json:"postalCode,omitempty"`
	City         string `json:"city,omitempty"`
	Country      string `json:"country,omitempty"`

	// Lat/Lon are nil until a location has been established, by a user
	// or by the telemetry ingestor's reconciliation pass.
	Lat *float64 `json:"lat,omitempty"`
	Lon *float64 `json:"lon,omitempty"`

	LocationSource     LocationSource `json:"locationSource,omitempty"`
	LocationAccuracyM  *float64       `json:"locationAccuracyM,omitempty"`
	LocationConfidence *float64       `json:"locationConfidence,omitempty"`
	LocationUpdatedAt  *time.Time     `json:"locationUpdatedAt,omitempty"`
	LocationUpdatedBy  string         `json:"locationUpdatedBy,omitempty"`

	// LocationLock guards against device-driven overwrites of Lat/Lon.
	LocationLock bool `json:"locationLock"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasLocation reports whether the site has an established latitude.
// This is the resolved form of the ingestor's "should update site"
// predicate: the only effective condition is "site has no latitude".
func (s *Site) HasLocation() bool {
	return s.Lat != nil
}
