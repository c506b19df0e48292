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
	"github.com/solarfleet/control-plane/internal/domain/device"
	"github.com/solarfleet/control-plane/internal/domain/site"
	"github.com/solarfleet/control-plane/internal/storage"
)

// CreateSite implements storage.SiteStore.
func (s *Store) CreateSite(ctx context.Context, st *site.Site) error {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	st.CreatedAt, st.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sites (id, tenant_id, name, address, postal_code, city, country,
			lat, lon, location_source, location_accuracy_m, location_confidence,
			location_updated_at, location_updated_by, location_lock, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, st.ID, st.TenantID, st.Name, st.Address, st.PostalCode, st.City, st.Country,
		toNullFloat(st.Lat), toNullFloat(st.Lon), toNullString(string(st.LocationSource)),
		toNullFloat(st.LocationAccuracyM), toNullFloat(st.LocationConfidence),
		toNullTime(st.LocationUpdatedAt), toNullString(st.LocationUpdatedBy), st.LocationLock,
		st.CreatedAt, st.UpdatedAt)
	return err
}

func scanSite(row interface{ Scan(...any) error }) (*site.Site, error) {
	var st site.Site
	var locationSource, locationUpdatedBy sql.NullString
	var locationAccuracy, locationConfidence sql.NullFloat64
	var locationUpdatedAt sql.NullTime

	err := row.Scan(&st.ID, &st.TenantID, &st.Name, &st.Address, &st.PostalCode, &st.City, &st.Country,
		&st.Lat, &st.Lon, &locationSource, &locationAccuracy, &locationConfidence,
		&locationUpdatedAt, &locationUpdatedBy, &st.LocationLock, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}
	st.LocationSource = site.LocationSource(fromNullString(locationSource))
	st.LocationAccuracyM = fromNullFloat(locationAccuracy)
	st.LocationConfidence = fromNullFloat(locationConfidence)
	st.LocationUpdatedAt = fromNullTime(locationUpdatedAt)
	st.LocationUpdatedBy = fromNullString(locationUpdatedBy)
	return &st, nil
}

const siteColumns = `id, tenant_id, name, address, postal_code, city, country,
	lat, lon, location_source, location_accuracy_m, location_confidence,
	location_updated_at, location_updated_by, location_lock, created_at, updated_at`

// GetSite implements storage.SiteStore.
func (s *Store) GetSite(ctx context.Context, tenantID, id string) (*site.Site, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+siteColumns+` FROM sites WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	st, err := scanSite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierror.Missing("site", id)
	}
	return st, err
}

// GetSiteByID implements storage.SiteStore.
func (s *Store) GetSiteByID(ctx context.Context, id string) (*site.Site, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+siteColumns+` FROM sites WHERE id = $1`, id)
	st, err := scanSite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierror.Missing("site", id)
	}
	return st, err
}

// ListSites implements storage.SiteStore.
func (s *Store) ListSites(ctx context.Context, tenantID string) ([]*site.Site, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+siteColumns+` FROM sites WHERE tenant_id = $1 ORDER BY created_at`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*site.Site
	for rows.Next() {
		st, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// UpdateSite implements storage.SiteStore.
func (s *Store) UpdateSite(ctx context.Context, st *site.Site) error {
	st.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE sites SET name=$2, address=$3, postal_code=$4, city=$5, country=$6,
			lat=$7, lon=$8, location_source=$9, location_accuracy_m=$10, location_confidence=$11,
			location_updated_at=$12, location_updated_by=$13, location_lock=$14, updated_at=$15
		WHERE id = $1
	`, st.ID, st.Name, st.Address, st.PostalCode, st.City, st.Country,
		toNullFloat(st.Lat), toNullFloat(st.Lon), toNullString(string(st.LocationSource)),
		toNullFloat(st.LocationAccuracyM), toNullFloat(st.LocationConfidence),
		toNullTime(st.LocationUpdatedAt), toNullString(st.LocationUpdatedBy), st.LocationLock, st.UpdatedAt)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apierror.Missing("site", st.ID)
	}
	return nil
}

const deviceColumns = `id, tenant_id, site_id, owner_user_id, serial_number, model, name, notes, tags,
	status, last_seen_at, firmware_version, sim_iccid, geo_lat, geo_lon, geo_source, geo_accuracy_m,
	created_at, updated_at`

func scanDevice(row interface{ Scan(...any) error }) (*device.Device, error) {
	var d device.Device
	var siteID, ownerID sql.NullString
	var tagsJSON []byte
	var geoSource sql.NullString

	err := row.Scan(&d.ID, &d.TenantID, &siteID, &ownerID, &d.SerialNumber, &d.Model, &d.Name, &d.Notes,
		&tagsJSON, &d.Status, &d.LastSeenAt, &d.FirmwareVersion, &d.SimICCID, &d.GeoLat, &d.GeoLon,
		&geoSource, &d.GeoAccuracy, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if siteID.Valid {
		v := siteID.String
		d.SiteID = &v
	}
	if ownerID.Valid {
		v := ownerID.String
		d.OwnerID = &v
	}
	if len(tagsJSON) > 0 {
		_ = json.Unmarshal(tagsJSON, &d.Tags)
	}
	d.GeoSource = device.GeoSource(fromNullString(geoSource))
	return &d, nil
}

// CreateDevice implements storage.DeviceStore.
func (s *Store) CreateDevice(ctx context.Context, d *device.Device) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now

	tagsJSON, err := json.Marshal(d.Tags)
	if err != nil {
		return err
	}
	var siteID, ownerID sql.NullString
	if d.SiteID != nil {
		siteID = sql.NullString{String: *d.SiteID, Valid: true}
	}
	if d.OwnerID != nil {
		ownerID = sql.NullString{String: *d.OwnerID, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO devices (id, tenant_id, site_id, owner_user_id, serial_number, model, name, notes, tags,
			status, last_seen_at, firmware_version, sim_iccid, geo_lat, geo_lon, geo_source, geo_accuracy_m,
			created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
	`, d.ID, d.TenantID, siteID, ownerID, d.SerialNumber, d.Model, d.Name, d.Notes, tagsJSON,
		d.Status, d.LastSeenAt, d.FirmwareVersion, d.SimICCID, d.GeoLat, d.GeoLon,
		toNullString(string(d.GeoSource)), d.GeoAccuracy, d.CreatedAt, d.UpdatedAt)
	if isUniqueViolation(err) {
		return apierror.Dup("device serial number already registered for this tenant")
	}
	return err
}

// GetDevice implements storage.DeviceStore.
func (s *Store) GetDevice(ctx context.Context, tenantID, id string) (*device.Device, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierror.Missing("device", id)
	}
	return d, err
}

// GetDeviceByID implements storage.DeviceStore.
func (s *Store) GetDeviceByID(ctx context.Context, id string) (*device.Device, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = $1`, id)
	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierror.Missing("device", id)
	}
	return d, err
}

// GetDeviceBySerial implements storage.DeviceStore.
func (s *Store) GetDeviceBySerial(ctx context.Context, tenantID, serial string) (*device.Device, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE tenant_id = $1 AND serial_number = $2`, tenantID, serial)
	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierror.Missing("device", serial)
	}
	return d, err
}

// ListDevices implements storage.DeviceStore.
func (s *Store) ListDevices(ctx context.Context, tenantID string, filter storage.DeviceFilter) ([]*device.Device, int, error) {
	where := []string{"tenant_id = $1"}
	args := []any{tenantID}
	n := 1

	if filter.SiteID != nil {
		n++
		where = append(where, fmt.Sprintf("site_id = $%d", n))
		args = append(args, *filter.SiteID)
	}
	if filter.Status != nil {
		n++
		where = append(where, fmt.Sprintf("status = $%d", n))
		args = append(args, *filter.Status)
	}
	if filter.Search != "" {
		n++
		where = append(where, fmt.Sprintf("(serial_number ILIKE $%d OR name ILIKE $%d)", n, n))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.BBox != nil {
		where = append(where, fmt.Sprintf("geo_lon BETWEEN $%d AND $%d AND geo_lat BETWEEN $%d AND $%d",
			n+1, n+2, n+3, n+4))
		args = append(args, filter.BBox.MinLon, filter.BBox.MaxLon, filter.BBox.MinLat, filter.BBox.MaxLat)
		n += 4
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM devices WHERE `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + deviceColumns + ` FROM devices WHERE ` + whereClause + ` ORDER BY created_at`
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
		return nil, 0, err
	}
	defer rows.Close()

	var out []*device.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}

// ListDevicesByOwnerAndSite implements storage.DeviceStore.
func (s *Store) ListDevicesByOwnerAndSite(ctx context.Context, siteID, ownerUserID string) ([]*device.Device, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE site_id = $1 AND owner_user_id = $2`, siteID, ownerUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*device.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListDevicesBySimICCID implements storage.DeviceStore.
func (s *Store) ListDevicesBySimICCID(ctx context.Context, tenantID, iccid string) ([]*device.Device, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE tenant_id = $1 AND sim_iccid = $2`, tenantID, iccid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*device.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpdateDevice implements storage.DeviceStore.
func (s *Store) UpdateDevice(ctx context.Context, d *device.Device) error {
	d.UpdatedAt = time.Now().UTC()
	tagsJSON, err := json.Marshal(d.Tags)
	if err != nil {
		return err
	}
	var siteID, ownerID sql.NullString
	if d.SiteID != nil {
		siteID = sql.NullString{String: *d.SiteID, Valid: true}
	}
	if d.OwnerID != nil {
		ownerID = sql.NullString{String: *d.OwnerID, Valid: true}
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE devices SET site_id=$2, owner_user_id=$3, serial_number=$4, model=$5, name=$6, notes=$7,
			tags=$8, status=$9, last_seen_at=$10, firmware_version=$11, sim_iccid=$12,
			geo_lat=$13, geo_lon=$14, geo_source=$15, geo_accuracy_m=$16, updated_at=$17
		WHERE id = $1
	`, d.ID, siteID, ownerID, d.SerialNumber, d.Model, d.Name, d.Notes, tagsJSON,
		d.Status, d.LastSeenAt, d.FirmwareVersion, d.SimICCID, d.GeoLat, d.GeoLon,
		toNullString(string(d.GeoSource)), d.GeoAccuracy, d.UpdatedAt)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apierror.Missing("device", d.ID)
	}
	return nil
}

// CreateDeviceSecret implements storage.DeviceSecretStore.
func (s *Store) CreateDeviceSecret(ctx context.Context, sec *device.Secret) error {
	if sec.ID == "" {
		sec.ID = uuid.NewString()
	}
	sec.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO device_secrets (id, device_id, mac_digest, created_at) VALUES ($1,$2,$3,$4)
	`, sec.ID, sec.DeviceID, sec.MACDigest, sec.CreatedAt)
	if isUniqueViolation(err) {
		return apierror.Dup("device secret already provisioned")
	}
	return err
}

// GetDeviceSecretByDeviceID implements storage.DeviceSecretStore.
func (s *Store) GetDeviceSecretByDeviceID(ctx context.Context, deviceID string) (*device.Secret, error) {
	var sec device.Secret
	err := s.db.QueryRowContext(ctx, `
		SELECT id, device_id, mac_digest, created_at FROM device_secrets WHERE device_id = $1
	`, deviceID).Scan(&sec.ID, &sec.DeviceID, &sec.MACDigest, &sec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierror.Missing("deviceSecret", deviceID)
	}
	if err != nil {
		return nil, err
	}
	return &sec, nil
}
