package memory

import (
	"context"
	"time"

	"github.com/solarfleet/control-plane/internal/apierror"
	"github.com/solarfleet/control-plane/internal/domain/membership"
	"github.com/solarfleet/control-plane/internal/domain/tenant"
	"github.com/solarfleet/control-plane/internal/domain/user"
)

func membershipKey(userID, tenantID string) string {
	return userID + "|" + tenantID
}

// CreateTenant implements storage.TenantStore.
func (s *Store) CreateTenant(ctx context.Context, t *tenant.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = newID()
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	cp := *t
	s.tenants[t.ID] = &cp
	return nil
}

// GetTenant implements storage.TenantStore.
func (s *Store) GetTenant(ctx context.Context, id string) (*tenant.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tenants[id]
	if !ok {
		return nil, apierror.Missing("tenant", id)
	}
	cp := *t
	return &cp, nil
}

// ListTenants implements storage.TenantStore.
func (s *Store) ListTenants(ctx context.Context) ([]*tenant.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*tenant.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

// UpdateTenant implements storage.TenantStore.
func (s *Store) UpdateTenant(ctx context.Context, t *tenant.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tenants[t.ID]; !ok {
		return apierror.Missing("tenant", t.ID)
	}
	t.UpdatedAt = time.Now().UTC()
	cp := *t
	s.tenants[t.ID] = &cp
	return nil
}

// CreateUser implements storage.UserStore.
func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == u.Email {
			return apierror.Dup("email already registered")
		}
	}
	if u.ID == "" {
		u.ID = newID()
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

// GetUserByID implements storage.UserStore.
func (s *Store) GetUserByID(ctx context.Context, id string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apierror.Missing("user", id)
	}
	cp := *u
	return &cp, nil
}

// GetUserByEmail implements storage.UserStore.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apierror.Missing("user", email)
}

// UpdateUser implements storage.UserStore.
func (s *Store) UpdateUser(ctx context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; !ok {
		return apierror.Missing("user", u.ID)
	}
	u.UpdatedAt = time.Now().UTC()
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

// CreateMembership implements storage.MembershipStore.
func (s *Store) CreateMembership(ctx context.Context, m *membership.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := membershipKey(m.UserID, m.TenantID)
	if _, exists := s.memberships[key]; exists {
		return apierror.Dup("membership already exists for this user and tenant")
	}
	if m.ID == "" {
		m.ID = newID()
	}
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now
	cp := *m
	s.memberships[key] = &cp
	return nil
}

// GetMembership implements storage.MembershipStore.
func (s *Store) GetMembership(ctx context.Context, userID, tenantID string) (*membership.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.memberships[membershipKey(userID, tenantID)]
	if !ok {
		return nil, apierror.Missing("membership", membershipKey(userID, tenantID))
	}
	cp := *m
	return &cp, nil
}

// ListMembershipsByUser implements storage.MembershipStore.
func (s *Store) ListMembershipsByUser(ctx context.Context, userID string) ([]*membership.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*membership.Membership
	for _, m := range s.memberships {
		if m.UserID == userID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ListMembershipsByTenant implements storage.MembershipStore.
func (s *Store) ListMembershipsByTenant(ctx context.Context, tenantID string) ([]*membership.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*membership.Membership
	for _, m := range s.memberships {
		if m.TenantID == tenantID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

// UpdateMembershipRole implements storage.MembershipStore.
func (s *Store) UpdateMembershipRole(ctx context.Context, userID, tenantID string, role membership.Role) (*membership.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := membershipKey(userID, tenantID)
	m, ok := s.memberships[key]
	if !ok {
		return nil, apierror.Missing("membership", key)
	}
	m.Role = role
	m.UpdatedAt = time.Now().UTC()
	cp := *m
	return &cp, nil
}
