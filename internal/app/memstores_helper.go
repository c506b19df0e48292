package app

import (
	"github.com/solarfleet/control-plane/internal/storage"
	"github.com/solarfleet/control-plane/internal/storage/memory"
)

// NewMemoryStores constructs a fully populated in-memory store set, all
// entities backed by a single shared *memory.Store. Intended for local
// development and tests; production deployments should supply a
// storage.Stores backed by internal/storage/postgres.
func NewMemoryStores() storage.Stores {
	mem := memory.New()
	return storage.Stores{
		Tenants:              mem,
		Users:                mem,
		Memberships:          mem,
		Sites:                mem,
		Devices:              mem,
		DeviceSecrets:        mem,
		Telemetry:            mem,
		Twins:                mem,
		Commands:             mem,
		Firmware:             mem,
		OtaJobs:              mem,
		AlertRules:           mem,
		AlertEvents:          mem,
		NotificationChannels: mem,
		NotificationEvents:   mem,
		Entitlements:         mem,
		Rollups:              mem,
		Audit:                mem,
		Weather:              mem,
		SimActions:           mem,
	}
}
