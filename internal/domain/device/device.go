// Package device defines the managed unit entity and its pinned
// shared-secret credential.
package device

import "time"

// Status is the device lifecycle state.
type Status string

const (
	Provisioned Status = "PROVISIONED"
	Installed   Status = "INSTALLED"
	Active      Status = "ACTIVE"
	Suspended   Status = "SUSPENDED"
	Retired     Status = "RETIRED"
)

// GeoSource identifies how a device-reported coordinate was obtained.
// Unlike Site, a device only ever reports edge-derived locations.
type GeoSource string

const (
	EdgeGNSS GeoSource = "EDGE_GNSS"
	EdgeCell GeoSource = "EDGE_CELL"
)

// Device is a managed solar-water-heater controller under a tenant,
// optionally bound to a Site and an owning User.
type Device struct {
	ID       string  `json:"id"`
	TenantID string  `json:"tenantId"`
	SiteID   *string `json:"siteId,omitempty"`
	OwnerID  *string `json:"ownerUserId,omitempty"`

	SerialNumber string            `json:"serialNumber"`
	Model        string            `json:"model"`
	Name         string            `json:"name,omitempty"`
	Notes        string            `json:"notes,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`

	Status          Status     `json:"status"`
	LastSeenAt      *time.Time `json:"lastSeenAt,omitempty"`
	FirmwareVersion string     `json:"firmwareVersion,omitempty"`
	SimICCID        string     `json:"simIccid,omitempty"`

	GeoLat      *float64  `json:"geoLat,omitempty"`
	GeoLon      *float64  `json:"geoLon,omitempty"`
	GeoSource   GeoSource `json:"geoSource,omitempty"`
	GeoAccuracy *float64  `json:"geoAccuracyM,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Secret is the per-device shared-secret pin. The HMAC digest itself is
// never stored; only a hash of the deployment secret's derivation
// parameters is retained for audit/rotation bookkeeping.
type Secret struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"deviceId"`
	MACDigest string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}
