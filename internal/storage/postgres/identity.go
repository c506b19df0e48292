package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/solarfleet/control-plane/internal/apierror"
	"github.com/solarfleet/control-plane/internal/domain/membership"
	"github.com/solarfleet/control-plane/internal/domain/tenant"
	"github.com/solarfleet/control-plane/internal/domain/user"
)

// CreateTenant implements storage.TenantStore.
func (s *Store) CreateTenant(ctx context.Context, t *tenant.Tenant) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now

	settingsJSON, err := json.Marshal(t.Settings)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, display_name, type, status, settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, t.ID, t.DisplayName, t.Type, t.Status, settingsJSON, t.CreatedAt, t.UpdatedAt)
	return err
}

// GetTenant implements storage.TenantStore.
func (s *Store) GetTenant(ctx context.Context, id string) (*tenant.Tenant, error) {
	var t tenant.Tenant
	var settingsJSON []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, type, status, settings, created_at, updated_at
		FROM tenants WHERE id = $1
	`, id).Scan(&t.ID, &t.DisplayName, &t.Type, &t.Status, &settingsJSON, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierror.Missing("tenant", id)
	}
	if err != nil {
		return nil, err
	}
	if len(settingsJSON) > 0 {
		_ = json.Unmarshal(settingsJSON, &t.Settings)
	}
	return &t, nil
}

// ListTenants implements storage.TenantStore.
func (s *Store) ListTenants(ctx context.Context) ([]*tenant.Tenant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, display_name, type, status, settings, created_at, updated_at
		FROM tenants ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*tenant.Tenant
	for rows.Next() {
		var t tenant.Tenant
		var settingsJSON []byte
		if err := rows.Scan(&t.ID, &t.DisplayName, &t.Type, &t.Status, &settingsJSON, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		if len(settingsJSON) > 0 {
			_ = json.Unmarshal(settingsJSON, &t.Settings)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// UpdateTenant implements storage.TenantStore.
func (s *Store) UpdateTenant(ctx context.Context, t *tenant.Tenant) error {
	t.UpdatedAt = time.Now().UTC()
	settingsJSON, err := json.Marshal(t.Settings)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE tenants SET display_name = $2, type = $3, status = $4, settings = $5, updated_at = $6
		WHERE id = $1
	`, t.ID, t.DisplayName, t.Type, t.Status, settingsJSON, t.UpdatedAt)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apierror.Missing("tenant", t.ID)
	}
	return nil
}

// CreateUser implements storage.UserStore.
func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, u.ID, u.Email, u.Name, u.PasswordHash, u.Status, u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err) {
		return apierror.Dup("email already registered")
	}
	return err
}

// GetUserByID implements storage.UserStore.
func (s *Store) GetUserByID(ctx context.Context, id string) (*user.User, error) {
	var u user.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, status, created_at, updated_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierror.Missing("user", id)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail implements storage.UserStore.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	var u user.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, status, created_at, updated_at
		FROM users WHERE email = $1
	`, email).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierror.Missing("user", email)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUser implements storage.UserStore.
func (s *Store) UpdateUser(ctx context.Context, u *user.User) error {
	u.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET email = $2, name = $3, password_hash = $4, status = $5, updated_at = $6
		WHERE id = $1
	`, u.ID, u.Email, u.Name, u.PasswordHash, u.Status, u.UpdatedAt)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apierror.Missing("user", u.ID)
	}
	return nil
}

// CreateMembership implements storage.MembershipStore.
func (s *Store) CreateMembership(ctx context.Context, m *membership.Membership) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memberships (id, user_id, tenant_id, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, m.ID, m.UserID, m.TenantID, m.Role, m.CreatedAt, m.UpdatedAt)
	if isUniqueViolation(err) {
		return apierror.Dup("membership already exists for this user and tenant")
	}
	return err
}

// GetMembership implements storage.MembershipStore.
func (s *Store) GetMembership(ctx context.Context, userID, tenantID string) (*membership.Membership, error) {
	var m membership.Membership
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, tenant_id, role, created_at, updated_at
		FROM memberships WHERE user_id = $1 AND tenant_id = $2
	`, userID, tenantID).Scan(&m.ID, &m.UserID, &m.TenantID, &m.Role, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierror.Missing("membership", userID+"|"+tenantID)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMembershipsByUser implements storage.MembershipStore.
func (s *Store) ListMembershipsByUser(ctx context.Context, userID string) ([]*membership.Membership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, tenant_id, role, created_at, updated_at
		FROM memberships WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMemberships(rows)
}

// ListMembershipsByTenant implements storage.MembershipStore.
func (s *Store) ListMembershipsByTenant(ctx context.Context, tenantID string) ([]*membership.Membership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, tenant_id, role, created_at, updated_at
		FROM memberships WHERE tenant_id = $1
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMemberships(rows)
}

func scanMemberships(rows *sql.Rows) ([]*membership.Membership, error) {
	var out []*membership.Membership
	for rows.Next() {
		var m membership.Membership
		if err := rows.Scan(&m.ID, &m.UserID, &m.TenantID, &m.Role, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// UpdateMembershipRole implements storage.MembershipStore.
func (s *Store) UpdateMembershipRole(ctx context.Context, userID, tenantID string, role membership.Role) (*membership.Membership, error) {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE memberships SET role = $3, updated_at = $4 WHERE user_id = $1 AND tenant_id = $2
	`, userID, tenantID, role, now)
	if err != nil {
		return nil, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, apierror.Missing("membership", userID+"|"+tenantID)
	}
	return s.GetMembership(ctx, userID, tenantID)
}
