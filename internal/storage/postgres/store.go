// Package postgres implements every internal/storage repository
// interface backed by PostgreSQL via database/sql and lib/pq.
package postgres

import (
	"database/sql"
	"time"

	"github.com/solarfleet/control-plane/internal/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var (
	_ storage.TenantStore               = (*Store)(nil)
	_ storage.UserStore                 = (*Store)(nil)
	_ storage.MembershipStore           = (*Store)(nil)
	_ storage.SiteStore                 = (*Store)(nil)
	_ storage.DeviceStore               = (*Store)(nil)
	_ storage.DeviceSecretStore         = (*Store)(nil)
	_ storage.TelemetryStore            = (*Store)(nil)
	_ storage.TwinStore                 = (*Store)(nil)
	_ storage.CommandStore              = (*Store)(nil)
	_ storage.FirmwareStore             = (*Store)(nil)
	_ storage.OtaJobStore               = (*Store)(nil)
	_ storage.AlertRuleStore            = (*Store)(nil)
	_ storage.AlertEventStore           = (*Store)(nil)
	_ storage.NotificationChannelStore  = (*Store)(nil)
	_ storage.NotificationEventStore    = (*Store)(nil)
	_ storage.EntitlementStore          = (*Store)(nil)
	_ storage.RollupStore               = (*Store)(nil)
	_ storage.AuditStore                = (*Store)(nil)
	_ storage.WeatherStore              = (*Store)(nil)
	_ storage.SimActionStore            = (*Store)(nil)
)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func fromNullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func fromNullString(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}

func toNullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func fromNullFloat(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}
