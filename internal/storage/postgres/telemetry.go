package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/solarfleet/control-plane/internal/apierror"
	"github.com/solarfleet/control-plane/internal/domain/telemetry"
)

// CreateReading implements storage.TelemetryStore.
func (s *Store) CreateReading(ctx context.Context, r *telemetry.Reading) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = time.Now().UTC()

	metricsJSON, err := json.Marshal(r.Metrics)
	if err != nil {
		return err
	}
	var geoJSON []byte
	if r.Geo != nil {
		geoJSON, err = json.Marshal(r.Geo)
		if err != nil {
			return err
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO telemetry_readings (id, device_id, tenant_id, ts, metrics, geo, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, r.ID, r.DeviceID, r.TenantID, r.Ts, metricsJSON, geoJSON, r.CreatedAt)
	return err
}

func scanReading(row interface{ Scan(...any) error }) (*telemetry.Reading, error) {
	var r telemetry.Reading
	var metricsJSON, geoJSON []byte
	if err := row.Scan(&r.ID, &r.DeviceID, &r.TenantID, &r.Ts, &metricsJSON, &geoJSON, &r.CreatedAt); err != nil {
		return nil, err
	}
	if len(metricsJSON) > 0 {
		_ = json.Unmarshal(metricsJSON, &r.Metrics)
	}
	if len(geoJSON) > 0 {
		r.Geo = &telemetry.Geo{}
		_ = json.Unmarshal(geoJSON, r.Geo)
	}
	return &r, nil
}

const readingColumns = `id, device_id, tenant_id, ts, metrics, geo, created_at`

// ListRecentReadings implements storage.TelemetryStore.
func (s *Store) ListRecentReadings(ctx context.Context, deviceID string, limit int) ([]*telemetry.Reading, error) {
	query := `SELECT ` + readingColumns + ` FROM telemetry_readings WHERE device_id = $1 ORDER BY ts DESC`
	args := []any{deviceID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*telemetry.Reading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListReadingsWindow implements storage.TelemetryStore.
func (s *Store) ListReadingsWindow(ctx context.Context, deviceID string, start, end time.Time) ([]*telemetry.Reading, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+readingColumns+` FROM telemetry_readings
		WHERE device_id = $1 AND ts >= $2 AND ts < $3 ORDER BY ts ASC
	`, deviceID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*telemetry.Reading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetTwin implements storage.TwinStore.
func (s *Store) GetTwin(ctx context.Context, deviceID string) (*telemetry.Twin, error) {
	var t telemetry.Twin
	var stateJSON []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT device_id, last_ts, derived_state, updated_at FROM device_twins WHERE device_id = $1
	`, deviceID).Scan(&t.DeviceID, &t.LastTs, &stateJSON, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierror.Missing("twin", deviceID)
	}
	if err != nil {
		return nil, err
	}
	if len(stateJSON) > 0 {
		_ = json.Unmarshal(stateJSON, &t.DerivedState)
	}
	return &t, nil
}

// UpsertTwin implements storage.TwinStore.
func (s *Store) UpsertTwin(ctx context.Context, t *telemetry.Twin) error {
	t.UpdatedAt = time.Now().UTC()
	stateJSON, err := json.Marshal(t.DerivedState)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO device_twins (device_id, last_ts, derived_state, updated_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (device_id) DO UPDATE SET last_ts = $2, derived_state = $3, updated_at = $4
	`, t.DeviceID, t.LastTs, stateJSON, t.UpdatedAt)
	return err
}
