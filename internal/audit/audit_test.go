package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarfleet/control-plane/internal/domain/audit"
	"github.com/solarfleet/control-plane/internal/storage"
	"github.com/solarfleet/control-plane/internal/storage/memory"
)

func TestRecordAppendsAndListReturnsIt(t *testing.T) {
	store := memory.New()
	sink := New(store, nil)
	ctx := context.Background()
	tenantID := "t1"

	sink.Record(ctx, &tenantID, nil, audit.ActorDevice, audit.ActionSiteLocationSetFromDevice, "site", "s1", map[string]any{"lat": 1.0})

	logs, err := sink.List(ctx, "t1", storage.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, audit.ActionSiteLocationSetFromDevice, logs[0].Action)
	assert.Equal(t, "site", logs[0].EntityType)
}

func TestRecordIsBestEffortOnStoreFailure(t *testing.T) {
	sink := New(failingAuditStore{}, nil)
	assert.NotPanics(t, func() {
		sink.Record(context.Background(), nil, nil, audit.ActorSystem, "X", "y", "z", nil)
	})
}

type failingAuditStore struct{}

func (failingAuditStore) AppendAudit(ctx context.Context, l *audit.Log) error {
	return assert.AnError
}

func (failingAuditStore) ListAudit(ctx context.Context, tenantID string, filter storage.AuditFilter) ([]*audit.Log, error) {
	return nil, nil
}
