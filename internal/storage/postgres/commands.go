package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/solarfleet/control-plane/internal/apierror"
	"github.com/solarfleet/control-plane/internal/domain/command"
)

const commandColumns = `id, tenant_id, device_id, type, payload, requested_by_user_id, status,
	error_msg, requested_at, delivered_at, ack_at`

func scanCommand(row interface{ Scan(...any) error }) (*command.Command, error) {
	var c command.Command
	var payloadJSON []byte
	var errMsg sql.NullString
	if err := row.Scan(&c.ID, &c.TenantID, &c.DeviceID, &c.Type, &payloadJSON, &c.RequestedByUserID,
		&c.Status, &errMsg, &c.RequestedAt, &c.DeliveredAt, &c.AckAt); err != nil {
		return nil, err
	}
	if len(payloadJSON) > 0 {
		_ = json.Unmarshal(payloadJSON, &c.Payload)
	}
	c.ErrorMsg = fromNullString(errMsg)
	return &c, nil
}

// CreateCommand implements storage.CommandStore.
func (s *Store) CreateCommand(ctx context.Context, c *command.Command) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.RequestedAt.IsZero() {
		c.RequestedAt = time.Now().UTC()
	}
	payloadJSON, err := json.Marshal(c.Payload)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO commands (`+commandColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, c.ID, c.TenantID, c.DeviceID, c.Type, payloadJSON, c.RequestedByUserID, c.Status,
		toNullString(c.ErrorMsg), c.RequestedAt, c.DeliveredAt, c.AckAt)
	return err
}

// GetCommand implements storage.CommandStore.
func (s *Store) GetCommand(ctx context.Context, id string) (*command.Command, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+commandColumns+` FROM commands WHERE id = $1`, id)
	c, err := scanCommand(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierror.Missing("command", id)
	}
	return c, err
}

// PollAndMarkDelivered implements storage.CommandStore. It runs the
// select-then-update inside a transaction so concurrent pollers never
// hand out the same queued command twice.
func (s *Store) PollAndMarkDelivered(ctx context.Context, deviceID string, now time.Time) ([]*command.Command, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT `+commandColumns+` FROM commands
		WHERE device_id = $1 AND status = 'QUEUED'
		ORDER BY requested_at ASC
		FOR UPDATE
	`, deviceID)
	if err != nil {
		return nil, err
	}
	var pending []*command.Command
	for rows.Next() {
		c, err := scanCommand(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		pending = append(pending, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, c := range pending {
		if _, err := tx.ExecContext(ctx, `
			UPDATE commands SET status = 'DELIVERED', delivered_at = $2 WHERE id = $1
		`, c.ID, now); err != nil {
			return nil, err
		}
		c.Status = command.Delivered
		c.DeliveredAt = &now
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return pending, nil
}

// UpdateCommand implements storage.CommandStore.
func (s *Store) UpdateCommand(ctx context.Context, c *command.Command) error {
	payloadJSON, err := json.Marshal(c.Payload)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE commands SET status = $2, error_msg = $3, delivered_at = $4, ack_at = $5, payload = $6
		WHERE id = $1
	`, c.ID, c.Status, toNullString(c.ErrorMsg), c.DeliveredAt, c.AckAt, payloadJSON)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apierror.Missing("command", c.ID)
	}
	return nil
}
