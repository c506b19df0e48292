package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/solarfleet/control-plane/internal/apierror"
	"github.com/solarfleet/control-plane/internal/domain/notification"
)

const notificationChannelColumns = `id, tenant_id, type, config, enabled, created_at, updated_at`

func scanNotificationChannel(row interface{ Scan(...any) error }) (*notification.Channel, error) {
	var c notification.Channel
	var configJSON []byte
	if err := row.Scan(&c.ID, &c.TenantID, &c.Type, &configJSON, &c.Enabled, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if len(configJSON) > 0 {
		_ = json.Unmarshal(configJSON, &c.Config)
	}
	return &c, nil
}

// CreateNotificationChannel implements storage.NotificationChannelStore.
func (s *Store) CreateNotificationChannel(ctx context.Context, c *notification.Channel) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	configJSON, err := json.Marshal(c.Config)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notification_channels (`+notificationChannelColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, c.ID, c.TenantID, c.Type, configJSON, c.Enabled, c.CreatedAt, c.UpdatedAt)
	return err
}

// GetNotificationChannel implements storage.NotificationChannelStore.
func (s *Store) GetNotificationChannel(ctx context.Context, tenantID, id string) (*notification.Channel, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+notificationChannelColumns+` FROM notification_channels WHERE id = $1 AND tenant_id = $2
	`, id, tenantID)
	c, err := scanNotificationChannel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierror.Missing("notificationChannel", id)
	}
	return c, err
}

// ListEnabledNotificationChannelsByTenant implements storage.NotificationChannelStore.
func (s *Store) ListEnabledNotificationChannelsByTenant(ctx context.Context, tenantID string) ([]*notification.Channel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+notificationChannelColumns+` FROM notification_channels WHERE tenant_id = $1 AND enabled = true
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*notification.Channel
	for rows.Next() {
		c, err := scanNotificationChannel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const notificationEventColumns = `id, tenant_id, channel_id, alert_id, status, payload, error_msg, created_at, sent_at`

func scanNotificationEvent(row interface{ Scan(...any) error }) (*notification.Event, error) {
	var e notification.Event
	var alertID, errMsg sql.NullString
	var payloadJSON []byte
	if err := row.Scan(&e.ID, &e.TenantID, &e.ChannelID, &alertID, &e.Status, &payloadJSON, &errMsg,
		&e.CreatedAt, &e.SentAt); err != nil {
		return nil, err
	}
	if alertID.Valid {
		v := alertID.String
		e.AlertID = &v
	}
	if len(payloadJSON) > 0 {
		_ = json.Unmarshal(payloadJSON, &e.Payload)
	}
	e.ErrorMsg = fromNullString(errMsg)
	return &e, nil
}

// CreateNotificationEvent implements storage.NotificationEventStore.
func (s *Store) CreateNotificationEvent(ctx context.Context, e *notification.Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	payloadJSON, err := json.Marshal(e.Payload)
	if err != nil {
		return err
	}
	var alertID sql.NullString
	if e.AlertID != nil {
		alertID = sql.NullString{String: *e.AlertID, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notification_events (`+notificationEventColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, e.ID, e.TenantID, e.ChannelID, alertID, e.Status, payloadJSON, toNullString(e.ErrorMsg), e.CreatedAt, e.SentAt)
	return err
}

// ListQueuedNotificationEventsOldestFirst implements storage.NotificationEventStore.
func (s *Store) ListQueuedNotificationEventsOldestFirst(ctx context.Context, limit int) ([]*notification.Event, error) {
	query := `SELECT ` + notificationEventColumns + ` FROM notification_events WHERE status = 'QUEUED' ORDER BY created_at ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*notification.Event
	for rows.Next() {
		e, err := scanNotificationEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateNotificationEvent implements storage.NotificationEventStore.
func (s *Store) UpdateNotificationEvent(ctx context.Context, e *notification.Event) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notification_events SET status=$2, error_msg=$3, sent_at=$4 WHERE id = $1
	`, e.ID, e.Status, toNullString(e.ErrorMsg), e.SentAt)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apierror.Missing("notificationEvent", e.ID)
	}
	return nil
}
