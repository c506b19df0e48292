package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/solarfleet/control-plane/internal/apierror"
	"github.com/solarfleet/control-plane/internal/domain/analytics"
	"github.com/solarfleet/control-plane/internal/domain/audit"
	"github.com/solarfleet/control-plane/internal/domain/entitlement"
	"github.com/solarfleet/control-plane/internal/domain/sim"
	"github.com/solarfleet/control-plane/internal/domain/weather"
	"github.com/solarfleet/control-plane/internal/storage"
)

// GetEntitlement implements storage.EntitlementStore.
func (s *Store) GetEntitlement(ctx context.Context, tenantID string, scope entitlement.Scope, key entitlement.Key, deviceID *string) (*entitlement.Entitlement, error) {
	var e entitlement.Entitlement
	var devID sql.NullString
	var row *sql.Row
	if deviceID != nil {
		row = s.db.QueryRowContext(ctx, `
			SELECT id, tenant_id, scope, device_id, key, enabled, created_at, updated_at
			FROM entitlements WHERE tenant_id = $1 AND scope = $2 AND key = $3 AND device_id = $4
		`, tenantID, scope, key, *deviceID)
	} else {
		row = s.db.QueryRowContext(ctx, `
			SELECT id, tenant_id, scope, device_id, key, enabled, created_at, updated_at
			FROM entitlements WHERE tenant_id = $1 AND scope = $2 AND key = $3 AND device_id IS NULL
		`, tenantID, scope, key)
	}
	err := row.Scan(&e.ID, &e.TenantID, &e.Scope, &devID, &e.Key, &e.Enabled, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if devID.Valid {
		v := devID.String
		e.DeviceID = &v
	}
	return &e, nil
}

// UpsertEntitlement implements storage.EntitlementStore.
func (s *Store) UpsertEntitlement(ctx context.Context, e *entitlement.Entitlement) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	var devID sql.NullString
	if e.DeviceID != nil {
		devID = sql.NullString{String: *e.DeviceID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entitlements (id, tenant_id, scope, device_id, key, enabled, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (tenant_id, scope, key, (COALESCE(device_id, '')))
		DO UPDATE SET enabled = $6, updated_at = $8
	`, e.ID, e.TenantID, e.Scope, devID, e.Key, e.Enabled, e.CreatedAt, e.UpdatedAt)
	return err
}

const rollupColumns = `id, tenant_id, device_id, day, energy_kwh, water_liters, heater_on_minutes,
	tank_temp_min_c, tank_temp_max_c, ambient_temp_avg_c, created_at, updated_at`

func scanRollup(row interface{ Scan(...any) error }) (*analytics.DailyRollup, error) {
	var r analytics.DailyRollup
	if err := row.Scan(&r.ID, &r.TenantID, &r.DeviceID, &r.Day, &r.EnergyKwh, &r.WaterLiters,
		&r.HeaterOnMinutes, &r.TankTempMinC, &r.TankTempMaxC, &r.AmbientTempAvgC,
		&r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// UpsertRollup implements storage.RollupStore.
func (s *Store) UpsertRollup(ctx context.Context, r *analytics.DailyRollup) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_rollups (`+rollupColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (device_id, day) DO UPDATE SET
			energy_kwh = $5, water_liters = $6, heater_on_minutes = $7,
			tank_temp_min_c = $8, tank_temp_max_c = $9, ambient_temp_avg_c = $10, updated_at = $12
	`, r.ID, r.TenantID, r.DeviceID, r.Day, r.EnergyKwh, r.WaterLiters, r.HeaterOnMinutes,
		r.TankTempMinC, r.TankTempMaxC, r.AmbientTempAvgC, r.CreatedAt, r.UpdatedAt)
	return err
}

// GetRollup implements storage.RollupStore.
func (s *Store) GetRollup(ctx context.Context, deviceID string, day time.Time) (*analytics.DailyRollup, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+rollupColumns+` FROM daily_rollups WHERE device_id = $1 AND day = $2`, deviceID, day)
	r, err := scanRollup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierror.Missing("dailyRollup", deviceID)
	}
	return r, err
}

// ListRollupsForTenantDay implements storage.RollupStore.
func (s *Store) ListRollupsForTenantDay(ctx context.Context, tenantID string, day time.Time) ([]*analytics.DailyRollup, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+rollupColumns+` FROM daily_rollups WHERE tenant_id = $1 AND day = $2`, tenantID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*analytics.DailyRollup
	for rows.Next() {
		r, err := scanRollup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AppendAudit implements storage.AuditStore.
func (s *Store) AppendAudit(ctx context.Context, l *audit.Log) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	metadataJSON, err := json.Marshal(l.Metadata)
	if err != nil {
		return err
	}
	var tenantID, actorUserID sql.NullString
	if l.TenantID != nil {
		tenantID = sql.NullString{String: *l.TenantID, Valid: true}
	}
	if l.ActorUserID != nil {
		actorUserID = sql.NullString{String: *l.ActorUserID, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, tenant_id, actor_user_id, actor_type, action, entity_type, entity_id, metadata, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, l.ID, tenantID, actorUserID, l.ActorType, l.Action, l.EntityType, l.EntityID, metadataJSON, l.CreatedAt)
	return err
}

// ListAudit implements storage.AuditStore.
func (s *Store) ListAudit(ctx context.Context, tenantID string, filter storage.AuditFilter) ([]*audit.Log, error) {
	where := []string{"tenant_id = $1"}
	args := []any{tenantID}
	n := 1

	if filter.EntityType != "" {
		n++
		where = append(where, fmt.Sprintf("entity_type = $%d", n))
		args = append(args, filter.EntityType)
	}
	if filter.EntityID != "" {
		n++
		where = append(where, fmt.Sprintf("entity_id = $%d", n))
		args = append(args, filter.EntityID)
	}
	if filter.Since != nil {
		n++
		where = append(where, fmt.Sprintf("created_at >= $%d", n))
		args = append(args, *filter.Since)
	}

	query := `SELECT id, tenant_id, actor_user_id, actor_type, action, entity_type, entity_id, metadata, created_at
		FROM audit_logs WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		n++
		query += fmt.Sprintf(" LIMIT $%d", n)
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		n++
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*audit.Log
	for rows.Next() {
		var l audit.Log
		var tID, actorUserID sql.NullString
		var metadataJSON []byte
		if err := rows.Scan(&l.ID, &tID, &actorUserID, &l.ActorType, &l.Action, &l.EntityType,
			&l.EntityID, &metadataJSON, &l.CreatedAt); err != nil {
			return nil, err
		}
		if tID.Valid {
			v := tID.String
			l.TenantID = &v
		}
		if actorUserID.Valid {
			v := actorUserID.String
			l.ActorUserID = &v
		}
		if len(metadataJSON) > 0 {
			_ = json.Unmarshal(metadataJSON, &l.Metadata)
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

// UpsertWeatherSnapshot implements storage.WeatherStore.
func (s *Store) UpsertWeatherSnapshot(ctx context.Context, w *weather.Snapshot) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	w.FetchedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO weather_snapshots (id, site_id, date, condition, temperature_c, humidity_pct, wind_speed_ms, fetched_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (site_id, date) DO UPDATE SET
			condition = $4, temperature_c = $5, humidity_pct = $6, wind_speed_ms = $7, fetched_at = $8
	`, w.ID, w.SiteID, w.Date, w.Condition, w.TemperatureC, w.HumidityPct, w.WindSpeedMS, w.FetchedAt)
	return err
}

// GetLatestWeatherSnapshot implements storage.WeatherStore.
func (s *Store) GetLatestWeatherSnapshot(ctx context.Context, siteID string) (*weather.Snapshot, error) {
	var w weather.Snapshot
	err := s.db.QueryRowContext(ctx, `
		SELECT id, site_id, date, condition, temperature_c, humidity_pct, wind_speed_ms, fetched_at
		FROM weather_snapshots WHERE site_id = $1 ORDER BY date DESC LIMIT 1
	`, siteID).Scan(&w.ID, &w.SiteID, &w.Date, &w.Condition, &w.TemperatureC, &w.HumidityPct, &w.WindSpeedMS, &w.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierror.Missing("weatherSnapshot", siteID)
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// CreateSimAction implements storage.SimActionStore.
func (s *Store) CreateSimAction(ctx context.Context, a *sim.Action) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.RequestedAt.IsZero() {
		a.RequestedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sim_actions (id, tenant_id, device_id, iccid, action, status, error_msg, requested_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, a.ID, a.TenantID, a.DeviceID, a.ICCID, a.Action, a.Status, toNullString(a.ErrorMsg), a.RequestedAt)
	return err
}

// ListSimActionsByDevice implements storage.SimActionStore.
func (s *Store) ListSimActionsByDevice(ctx context.Context, tenantID, deviceID string) ([]*sim.Action, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, device_id, iccid, action, status, error_msg, requested_at
		FROM sim_actions WHERE tenant_id = $1 AND device_id = $2 ORDER BY requested_at DESC
	`, tenantID, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*sim.Action
	for rows.Next() {
		var a sim.Action
		var errMsg sql.NullString
		if err := rows.Scan(&a.ID, &a.TenantID, &a.DeviceID, &a.ICCID, &a.Action, &a.Status, &errMsg, &a.RequestedAt); err != nil {
			return nil, err
		}
		a.ErrorMsg = fromNullString(errMsg)
		out = append(out, &a)
	}
	return out, rows.Err()
}
