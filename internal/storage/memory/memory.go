// Package memory provides a thread-safe in-memory implementation of
// every internal/storage interface. It backs tests and is the default
// fallback for any store field left unset when wiring the application.
package memory

import (
	"sync"

	"github.com/google/uuid"

	"github.com/solarfleet/control-plane/internal/domain/alert"
	"github.com/solarfleet/control-plane/internal/domain/analytics"
	"github.com/solarfleet/control-plane/internal/domain/audit"
	"github.com/solarfleet/control-plane/internal/domain/command"
	"github.com/solarfleet/control-plane/internal/domain/device"
	"github.com/solarfleet/control-plane/internal/domain/entitlement"
	"github.com/solarfleet/control-plane/internal/domain/membership"
	"github.com/solarfleet/control-plane/internal/domain/notification"
	"github.com/solarfleet/control-plane/internal/domain/ota"
	"github.com/solarfleet/control-plane/internal/domain/sim"
	"github.com/solarfleet/control-plane/internal/domain/site"
	"github.com/solarfleet/control-plane/internal/domain/telemetry"
	"github.com/solarfleet/control-plane/internal/domain/tenant"
	"github.com/solarfleet/control-plane/internal/domain/user"
	"github.com/solarfleet/control-plane/internal/domain/weather"
)

// Store is a single-process, mutex-guarded implementation of every
// internal/storage repository interface. Each exported entry point
// takes the store's single mutex for its whole duration, which is what
// gives the "single logical transaction" sequences in the telemetry
// ingestor and command queue their atomicity in tests.
type Store struct {
	mu sync.Mutex

	tenants     map[string]*tenant.Tenant
	users       map[string]*user.User
	memberships map[string]*membership.Membership // keyed by userID+"|"+tenantID

	sites   map[string]*site.Site
	devices map[string]*device.Device
	secrets map[string]*device.Secret // keyed by deviceID

	readings map[string][]*telemetry.Reading // keyed by deviceID
	twins    map[string]*telemetry.Twin       // keyed by deviceID

	commands map[string]*command.Command

	firmware map[string]*ota.FirmwarePackage // keyed by version
	jobs     map[string]*ota.Job

	rules  map[string]*alert.Rule
	events map[string]*alert.Event

	channels       map[string]*notification.Channel
	notifications  map[string]*notification.Event

	entitlements map[string]*entitlement.Entitlement // keyed by tenant|scope|key|deviceId

	rollups map[string]*analytics.DailyRollup // keyed by deviceID|day

	audit []*audit.Log

	weather map[string]*weather.Snapshot // keyed by siteID|day
	sims    map[string][]*sim.Action     // keyed by deviceID
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		tenants:       make(map[string]*tenant.Tenant),
		users:         make(map[string]*user.User),
		memberships:   make(map[string]*membership.Membership),
		sites:         make(map[string]*site.Site),
		devices:       make(map[string]*device.Device),
		secrets:       make(map[string]*device.Secret),
		readings:      make(map[string][]*telemetry.Reading),
		twins:         make(map[string]*telemetry.Twin),
		commands:      make(map[string]*command.Command),
		firmware:      make(map[string]*ota.FirmwarePackage),
		jobs:          make(map[string]*ota.Job),
		rules:         make(map[string]*alert.Rule),
		events:        make(map[string]*alert.Event),
		channels:      make(map[string]*notification.Channel),
		notifications: make(map[string]*notification.Event),
		entitlements:  make(map[string]*entitlement.Entitlement),
		rollups:       make(map[string]*analytics.DailyRollup),
		weather:       make(map[string]*weather.Snapshot),
		sims:          make(map[string][]*sim.Action),
	}
}

func newID() string {
	return uuid.NewString()
}
