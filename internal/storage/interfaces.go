// Package storage declares the typed, tenant-filtered repository
// interfaces every domain service depends on. Concrete implementations
// live in the memory and postgres subpackages.
//
// Method names are namespaced per entity (CreateDevice rather than
// Create) because a single concrete store backs every interface at
// once; bare CRUD verbs would collide across entities on that one
// type.
package storage

import (
	"context"
	"time"

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

// DeviceFilter narrows a device listing.
type DeviceFilter struct {
	SiteID *string
	Status *device.Status
	Search string
	// BBox, when non-nil, restricts results to devices whose reported
	// or site location falls inside [MinLon,MinLat,MaxLon,MaxLat].
	BBox   *BBox
	Offset int
	Limit  int
}

// BBox is a geographic bounding box in (lon, lat) order.
type BBox struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

// AlertEventFilter narrows an alert-event listing.
type AlertEventFilter struct {
	Status   *alert.EventStatus
	Severity *alert.Severity
	DeviceID *string
	Offset   int
	Limit    int
}

// AuditFilter narrows an audit-log listing.
type AuditFilter struct {
	EntityType string
	EntityID   string
	Since      *time.Time
	Offset     int
	Limit      int
}

// TenantStore persists Tenant rows.
type TenantStore interface {
	CreateTenant(ctx context.Context, t *tenant.Tenant) error
	GetTenant(ctx context.Context, id string) (*tenant.Tenant, error)
	ListTenants(ctx context.Context) ([]*tenant.Tenant, error)
	UpdateTenant(ctx context.Context, t *tenant.Tenant) error
}

// UserStore persists User rows.
type UserStore interface {
	CreateUser(ctx context.Context, u *user.User) error
	GetUserByID(ctx context.Context, id string) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
	UpdateUser(ctx context.Context, u *user.User) error
}

// MembershipStore persists the (User, Tenant, Role) relation.
type MembershipStore interface {
	CreateMembership(ctx context.Context, m *membership.Membership) error
	GetMembership(ctx context.Context, userID, tenantID string) (*membership.Membership, error)
	ListMembershipsByUser(ctx context.Context, userID string) ([]*membership.Membership, error)
	ListMembershipsByTenant(ctx context.Context, tenantID string) ([]*membership.Membership, error)
	UpdateMembershipRole(ctx context.Context, userID, tenantID string, role membership.Role) (*membership.Membership, error)
}

// SiteStore persists Site rows, always tenant-scoped.
type SiteStore interface {
	CreateSite(ctx context.Context, s *site.Site) error
	GetSite(ctx context.Context, tenantID, id string) (*site.Site, error)
	// GetSiteByID loads a site without a tenant filter; used internally
	// by the telemetry ingestor, which already holds a tenant-verified
	// device.
	GetSiteByID(ctx context.Context, id string) (*site.Site, error)
	ListSites(ctx context.Context, tenantID string) ([]*site.Site, error)
	UpdateSite(ctx context.Context, s *site.Site) error
}

// DeviceStore persists Device rows, always tenant-scoped.
type DeviceStore interface {
	CreateDevice(ctx context.Context, d *device.Device) error
	GetDevice(ctx context.Context, tenantID, id string) (*device.Device, error)
	// GetDeviceByID loads a device without a tenant filter; used on
	// device-authenticated paths where the tenant is derived from the
	// device itself rather than the caller.
	GetDeviceByID(ctx context.Context, id string) (*device.Device, error)
	GetDeviceBySerial(ctx context.Context, tenantID, serial string) (*device.Device, error)
	ListDevices(ctx context.Context, tenantID string, filter DeviceFilter) ([]*device.Device, int, error)
	ListDevicesByOwnerAndSite(ctx context.Context, siteID, ownerUserID string) ([]*device.Device, error)
	ListDevicesBySimICCID(ctx context.Context, tenantID, iccid string) ([]*device.Device, error)
	UpdateDevice(ctx context.Context, d *device.Device) error
}

// DeviceSecretStore persists the per-device MAC pin.
type DeviceSecretStore interface {
	CreateDeviceSecret(ctx context.Context, s *device.Secret) error
	GetDeviceSecretByDeviceID(ctx context.Context, deviceID string) (*device.Secret, error)
}

// TelemetryStore persists raw Reading rows.
type TelemetryStore interface {
	CreateReading(ctx context.Context, r *telemetry.Reading) error
	// ListRecentReadings returns up to limit of the most recent
	// readings for a device, newest first.
	ListRecentReadings(ctx context.Context, deviceID string, limit int) ([]*telemetry.Reading, error)
	// ListReadingsWindow returns readings for a device within
	// [start, end), oldest first.
	ListReadingsWindow(ctx context.Context, deviceID string, start, end time.Time) ([]*telemetry.Reading, error)
}

// TwinStore persists the single per-device shadow row.
type TwinStore interface {
	GetTwin(ctx context.Context, deviceID string) (*telemetry.Twin, error)
	UpsertTwin(ctx context.Context, t *telemetry.Twin) error
}

// CommandStore persists the per-device command queue.
type CommandStore interface {
	CreateCommand(ctx context.Context, c *command.Command) error
	GetCommand(ctx context.Context, id string) (*command.Command, error)
	// PollAndMarkDelivered atomically selects all QUEUED commands for
	// the device ordered by RequestedAt ascending, marks them
	// DELIVERED, and returns the (now-delivered) rows.
	PollAndMarkDelivered(ctx context.Context, deviceID string, now time.Time) ([]*command.Command, error)
	UpdateCommand(ctx context.Context, c *command.Command) error
}

// FirmwareStore persists the globally unique firmware catalog.
type FirmwareStore interface {
	CreateFirmware(ctx context.Context, f *ota.FirmwarePackage) error
	GetFirmwareByVersion(ctx context.Context, version string) (*ota.FirmwarePackage, error)
	ListFirmware(ctx context.Context) ([]*ota.FirmwarePackage, error)
}

// OtaJobStore persists scheduled rollout jobs.
type OtaJobStore interface {
	CreateOtaJob(ctx context.Context, j *ota.Job) error
	GetOtaJob(ctx context.Context, id string) (*ota.Job, error)
	// NextPendingOtaJobForDevice returns the single earliest-scheduled
	// job targeting the device (directly or via group), or nil if none.
	NextPendingOtaJobForDevice(ctx context.Context, tenantID, deviceID string) (*ota.Job, error)
	UpdateOtaJob(ctx context.Context, j *ota.Job) error
}

// AlertRuleStore persists tenant-scoped alert rule definitions.
type AlertRuleStore interface {
	CreateAlertRule(ctx context.Context, r *alert.Rule) error
	GetAlertRule(ctx context.Context, tenantID, id string) (*alert.Rule, error)
	ListEnabledAlertRulesByTenant(ctx context.Context, tenantID string) ([]*alert.Rule, error)
	ListAlertRulesAllTenants(ctx context.Context) ([]*alert.Rule, error)
}

// AlertEventStore persists opened alert instances. CreateAlertEventIfAbsent
// enforces the dedupe-key uniqueness constraint.
type AlertEventStore interface {
	// CreateAlertEventIfAbsent inserts e unless an event with the same
	// dedupe key already has a status in alert.OpenStatuses; returns
	// (false, nil) on that benign no-op path instead of an error.
	CreateAlertEventIfAbsent(ctx context.Context, e *alert.Event) (created bool, err error)
	GetAlertEvent(ctx context.Context, tenantID, id string) (*alert.Event, error)
	ListAlertEvents(ctx context.Context, tenantID string, filter AlertEventFilter) ([]*alert.Event, int, error)
	UpdateAlertEvent(ctx context.Context, e *alert.Event) error
}

// NotificationChannelStore persists tenant-scoped delivery channels.
type NotificationChannelStore interface {
	CreateNotificationChannel(ctx context.Context, c *notification.Channel) error
	GetNotificationChannel(ctx context.Context, tenantID, id string) (*notification.Channel, error)
	ListEnabledNotificationChannelsByTenant(ctx context.Context, tenantID string) ([]*notification.Channel, error)
}

// NotificationEventStore persists the outbound notification queue.
type NotificationEventStore interface {
	CreateNotificationEvent(ctx context.Context, e *notification.Event) error
	// ListQueuedNotificationEventsOldestFirst returns up to limit
	// QUEUED events, oldest-first.
	ListQueuedNotificationEventsOldestFirst(ctx context.Context, limit int) ([]*notification.Event, error)
	UpdateNotificationEvent(ctx context.Context, e *notification.Event) error
}

// EntitlementStore persists feature-flag rows.
type EntitlementStore interface {
	// GetEntitlement looks up a single row by (tenant, scope, key,
	// deviceId); nil, nil when absent.
	GetEntitlement(ctx context.Context, tenantID string, scope entitlement.Scope, key entitlement.Key, deviceID *string) (*entitlement.Entitlement, error)
	UpsertEntitlement(ctx context.Context, e *entitlement.Entitlement) error
}

// RollupStore persists daily per-device aggregates.
type RollupStore interface {
	UpsertRollup(ctx context.Context, r *analytics.DailyRollup) error
	GetRollup(ctx context.Context, deviceID string, day time.Time) (*analytics.DailyRollup, error)
	ListRollupsForTenantDay(ctx context.Context, tenantID string, day time.Time) ([]*analytics.DailyRollup, error)
}

// AuditStore appends audit rows. Append failures are caught by callers
// and never propagated into the domain operation.
type AuditStore interface {
	AppendAudit(ctx context.Context, l *audit.Log) error
	ListAudit(ctx context.Context, tenantID string, filter AuditFilter) ([]*audit.Log, error)
}

// WeatherStore persists per-site daily weather snapshots.
type WeatherStore interface {
	UpsertWeatherSnapshot(ctx context.Context, s *weather.Snapshot) error
	GetLatestWeatherSnapshot(ctx context.Context, siteID string) (*weather.Snapshot, error)
}

// SimActionStore persists requested SIM-carrier actions.
type SimActionStore interface {
	CreateSimAction(ctx context.Context, a *sim.Action) error
	ListSimActionsByDevice(ctx context.Context, tenantID, deviceID string) ([]*sim.Action, error)
}

// Stores aggregates every repository interface. Nil fields are filled
// with the in-memory default by applyDefaults in internal/app.
// Implementations of the individual interfaces may be backed by a
// single struct (as internal/storage/memory and
// internal/storage/postgres do) or mixed and matched per concern.
type Stores struct {
	Tenants              TenantStore
	Users                UserStore
	Memberships          MembershipStore
	Sites                SiteStore
	Devices              DeviceStore
	DeviceSecrets        DeviceSecretStore
	Telemetry            TelemetryStore
	Twins                TwinStore
	Commands             CommandStore
	Firmware             FirmwareStore
	OtaJobs              OtaJobStore
	AlertRules           AlertRuleStore
	AlertEvents          AlertEventStore
	NotificationChannels NotificationChannelStore
	NotificationEvents   NotificationEventStore
	Entitlements         EntitlementStore
	Rollups              RollupStore
	Audit                AuditStore
	Weather              WeatherStore
	SimActions           SimActionStore
}
