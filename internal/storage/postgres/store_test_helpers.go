package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/solarfleet/control-plane/internal/platform/migrations"
	_ "github.com/lib/pq"
)

func newTestStore(t *testing.T) (*Store, context.Context) {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	if err := migrations.Apply(context.Background(), db, nil); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if err := resetTables(db); err != nil {
		t.Fatalf("reset tables: %v", err)
	}

	t.Cleanup(func() {
		_ = resetTables(db)
		_ = db.Close()
	})

	return New(db), context.Background()
}

func resetTables(db *sql.DB) error {
	_, err := db.Exec(`
		TRUNCATE
			sim_actions,
			weather_snapshots,
			audit_logs,
			daily_rollups,
			entitlements,
			notification_events,
			notification_channels,
			alert_events,
			alert_rules,
			ota_jobs,
			firmware_packages,
			commands,
			device_twins,
			telemetry_readings,
			device_secrets,
			devices,
			sites,
			memberships,
			users,
			tenants
		RESTART IDENTITY CASCADE
	`)
	return err
}
