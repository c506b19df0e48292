package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/solarfleet/control-plane/internal/domain/device"
	"github.com/solarfleet/control-plane/internal/domain/membership"
	"github.com/solarfleet/control-plane/internal/domain/tenant"
	"github.com/solarfleet/control-plane/internal/domain/user"
)

func TestStoreCoreIntegration(t *testing.T) {
	store, ctx := newTestStore(t)

	now := time.Now().UTC()
	tn := &tenant.Tenant{
		ID:          uuid.NewString(),
		DisplayName: "Acme Solar",
		Type:        tenant.Installer,
		Status:      tenant.Active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := store.CreateTenant(ctx, tn); err != nil {
		t.Fatalf("create tenant: %v", err)
	}

	u := &user.User{
		ID:           uuid.NewString(),
		Email:        "owner@example.com",
		Name:         "Owner",
		PasswordHash: "hash",
		Status:       user.Active,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}

	m := &membership.Membership{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		TenantID:  tn.ID,
		Role:      membership.TenantAdmin,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.CreateMembership(ctx, m); err != nil {
		t.Fatalf("create membership: %v", err)
	}

	d := &device.Device{
		ID:           uuid.NewString(),
		TenantID:     tn.ID,
		SerialNumber: "SN-0001",
		Model:        "SF-200",
		Name:         "Rooftop unit",
		Status:       device.Provisioned,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.CreateDevice(ctx, d); err != nil {
		t.Fatalf("create device: %v", err)
	}

	reloaded, err := store.GetDevice(ctx, tn.ID, d.ID)
	if err != nil {
		t.Fatalf("get device: %v", err)
	}
	if reloaded.SerialNumber != d.SerialNumber {
		t.Fatalf("expected serial number %q, got %q", d.SerialNumber, reloaded.SerialNumber)
	}

	bySerial, err := store.GetDeviceBySerial(ctx, tn.ID, "SN-0001")
	if err != nil {
		t.Fatalf("get device by serial: %v", err)
	}
	if bySerial.ID != d.ID {
		t.Fatalf("expected matching device id, got %q", bySerial.ID)
	}

	byEmail, err := store.GetUserByEmail(ctx, "owner@example.com")
	if err != nil {
		t.Fatalf("get user by email: %v", err)
	}
	if byEmail.ID != u.ID {
		t.Fatalf("expected matching user id, got %q", byEmail.ID)
	}

	mem, err := store.GetMembership(ctx, u.ID, tn.ID)
	if err != nil {
		t.Fatalf("get membership: %v", err)
	}
	if mem.Role != membership.TenantAdmin {
		t.Fatalf("expected TENANT_ADMIN role, got %q", mem.Role)
	}
}
