package app

import (
	"context"
	"testing"
	"time"

	"github.com/solarfleet/control-plane/internal/domain/tenant"
	"github.com/solarfleet/control-plane/internal/domain/user"
)

func TestApplicationLifecycle(t *testing.T) {
	stores := NewMemoryStores()
	application, err := New(stores, testConfig(), nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}

	ctx := context.Background()
	if err := application.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	t1 := &tenant.Tenant{ID: "tenant-1", DisplayName: "Acme Solar", Type: tenant.Installer, Status: tenant.Active, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	if err := stores.Tenants.CreateTenant(ctx, t1); err != nil {
		t.Fatalf("create tenant: %v", err)
	}

	u := &user.User{ID: "user-1", Email: "owner@acme.test", Name: "Owner", Status: user.Active, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	if err := stores.Users.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}

	token, err := application.Identity.IssueUserToken(u)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if token == "" {
		t.Fatalf("expected non-empty token")
	}

	if err := application.Alerts.Sweep(ctx); err != nil {
		t.Fatalf("alert sweep: %v", err)
	}
	if err := application.Notifications.Consume(ctx); err != nil {
		t.Fatalf("notification drain: %v", err)
	}
	if err := application.Analytics.RollDay(ctx, time.Now().UTC()); err != nil {
		t.Fatalf("rollup: %v", err)
	}
	if err := application.Weather.Pull(ctx, time.Now().UTC()); err != nil {
		t.Fatalf("weather pull: %v", err)
	}

	if err := application.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestApplicationLifecycle_BackgroundJobsRegistered(t *testing.T) {
	stores := NewMemoryStores()
	application, err := New(stores, testConfig(), nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := application.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
