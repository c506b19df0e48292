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
	"github.com/solarfleet/control-plane/internal/domain/alert"
	"github.com/solarfleet/control-plane/internal/storage"
)

const alertRuleColumns = `id, tenant_id, name, enabled, type, params, severity, created_at, updated_at`

func scanAlertRule(row interface{ Scan(...any) error }) (*alert.Rule, error) {
	var r alert.Rule
	var paramsJSON []byte
	if err := row.Scan(&r.ID, &r.TenantID, &r.Name, &r.Enabled, &r.Type, &paramsJSON, &r.Severity,
		&r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if len(paramsJSON) > 0 {
		_ = json.Unmarshal(paramsJSON, &r.Params)
	}
	return &r, nil
}

// CreateAlertRule implements storage.AlertRuleStore.
func (s *Store) CreateAlertRule(ctx context.Context, r *alert.Rule) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now

	paramsJSON, err := json.Marshal(r.Params)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO alert_rules (`+alertRuleColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, r.ID, r.TenantID, r.Name, r.Enabled, r.Type, paramsJSON, r.Severity, r.CreatedAt, r.UpdatedAt)
	return err
}

// GetAlertRule implements storage.AlertRuleStore.
func (s *Store) GetAlertRule(ctx context.Context, tenantID, id string) (*alert.Rule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+alertRuleColumns+` FROM alert_rules WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	r, err := scanAlertRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierror.Missing("alertRule", id)
	}
	return r, err
}

// ListEnabledAlertRulesByTenant implements storage.AlertRuleStore.
func (s *Store) ListEnabledAlertRulesByTenant(ctx context.Context, tenantID string) ([]*alert.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+alertRuleColumns+` FROM alert_rules WHERE tenant_id = $1 AND enabled = true
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAlertRules(rows)
}

// ListAlertRulesAllTenants implements storage.AlertRuleStore.
func (s *Store) ListAlertRulesAllTenants(ctx context.Context) ([]*alert.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+alertRuleColumns+` FROM alert_rules WHERE enabled = true`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAlertRules(rows)
}

func scanAlertRules(rows *sql.Rows) ([]*alert.Rule, error) {
	var out []*alert.Rule
	for rows.Next() {
		r, err := scanAlertRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const alertEventColumns = `id, tenant_id, device_id, rule_id, severity, status, details, dedupe_key,
	opened_at, acknowledged_at, closed_at`

func scanAlertEvent(row interface{ Scan(...any) error }) (*alert.Event, error) {
	var e alert.Event
	var detailsJSON []byte
	if err := row.Scan(&e.ID, &e.TenantID, &e.DeviceID, &e.RuleID, &e.Severity, &e.Status, &detailsJSON,
		&e.DedupeKey, &e.OpenedAt, &e.AcknowledgedAt, &e.ClosedAt); err != nil {
		return nil, err
	}
	if len(detailsJSON) > 0 {
		_ = json.Unmarshal(detailsJSON, &e.Details)
	}
	return &e, nil
}

// CreateAlertEventIfAbsent implements storage.AlertEventStore. The
// partial unique index on (dedupe_key) WHERE status IN (OPEN,
// ACKNOWLEDGED) enforces the constraint at the database level; a
// unique-violation here is the expected "already open" outcome, not an
// error.
func (s *Store) CreateAlertEventIfAbsent(ctx context.Context, e *alert.Event) (bool, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OpenedAt.IsZero() {
		e.OpenedAt = time.Now().UTC()
	}
	detailsJSON, err := json.Marshal(e.Details)
	if err != nil {
		return false, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO alert_events (`+alertEventColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, e.ID, e.TenantID, e.DeviceID, e.RuleID, e.Severity, e.Status, detailsJSON, e.DedupeKey,
		e.OpenedAt, e.AcknowledgedAt, e.ClosedAt)
	if isUniqueViolation(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetAlertEvent implements storage.AlertEventStore.
func (s *Store) GetAlertEvent(ctx context.Context, tenantID, id string) (*alert.Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+alertEventColumns+` FROM alert_events WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	e, err := scanAlertEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierror.Missing("alertEvent", id)
	}
	return e, err
}

// ListAlertEvents implements storage.AlertEventStore.
func (s *Store) ListAlertEvents(ctx context.Context, tenantID string, filter storage.AlertEventFilter) ([]*alert.Event, int, error) {
	where := []string{"tenant_id = $1"}
	args := []any{tenantID}
	n := 1

	if filter.Status != nil {
		n++
		where = append(where, fmt.Sprintf("status = $%d", n))
		args = append(args, *filter.Status)
	}
	if filter.Severity != nil {
		n++
		where = append(where, fmt.Sprintf("severity = $%d", n))
		args = append(args, *filter.Severity)
	}
	if filter.DeviceID != nil {
		n++
		where = append(where, fmt.Sprintf("device_id = $%d", n))
		args = append(args, *filter.DeviceID)
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM alert_events WHERE `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + alertEventColumns + ` FROM alert_events WHERE ` + whereClause + ` ORDER BY opened_at DESC`
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

	var out []*alert.Event
	for rows.Next() {
		e, err := scanAlertEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// UpdateAlertEvent implements storage.AlertEventStore.
func (s *Store) UpdateAlertEvent(ctx context.Context, e *alert.Event) error {
	detailsJSON, err := json.Marshal(e.Details)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE alert_events SET status=$2, details=$3, acknowledged_at=$4, closed_at=$5 WHERE id = $1
	`, e.ID, e.Status, detailsJSON, e.AcknowledgedAt, e.ClosedAt)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apierror.Missing("alertEvent", e.ID)
	}
	return nil
}
