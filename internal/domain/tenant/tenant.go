// Package tenant defines the organizational boundary every other domain
// entity is scoped by.
package tenant

import "time"

// Type classifies the kind of organization a tenant represents.
type Type string

const (
	Manufacturer     Type = "MANUFACTURER"
	Retailer         Type = "RETAILER"
	Installer        Type = "INSTALLER"
	PropertyManager  Type = "PROPERTY_MANAGER"
)

// Status is the tenant lifecycle state.
type Status string

const (
	Active    Status = "ACTIVE"
	Suspended Status = "SUSPENDED"
	Archived  Status = "ARCHIVED"
)

// Tenant is an organization operating a fleet of devices.
type Tenant struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"displayName"`
	Type        Type           `json:"type"`
	Status      Status         `json:"status"`
	Settings    map[string]any `json:"settings,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}
