// Package audit appends significant state transitions to the
// append-only audit log. Append failures are logged and swallowed:
// an audit sink outage must never fail the operation it is
// observing.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/solarfleet/control-plane/internal/domain/audit"
	"github.com/solarfleet/control-plane/internal/storage"
	"github.com/solarfleet/control-plane/pkg/logger"
)

// Sink appends audit rows on a best-effort basis.
type Sink struct {
	store storage.AuditStore
	log   *logger.Logger
}

// New creates an audit sink backed by store.
func New(store storage.AuditStore, log *logger.Logger) *Sink {
	if log == nil {
		log = logger.NewDefault("audit")
	}
	return &Sink{store: store, log: log}
}

// Record appends a single audit row. Errors are logged, not returned;
// callers invoke this inline with their own operation without
// threading a separate error path.
func (s *Sink) Record(ctx context.Context, tenantID *string, actorUserID *string, actorType audit.ActorType, action, entityType, entityID string, metadata map[string]any) {
	l := &audit.Log{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		ActorUserID: actorUserID,
		ActorType:   actorType,
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		Metadata:    metadata,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.AppendAudit(ctx, l); err != nil {
		s.log.WithField("action", action).WithField("entity_id", entityID).
			WithField("error", err.Error()).Warn("failed to append audit log")
	}
}

// List returns audit rows for a tenant, most recent activity first.
func (s *Sink) List(ctx context.Context, tenantID string, filter storage.AuditFilter) ([]*audit.Log, error) {
	return s.store.ListAudit(ctx, tenantID, filter)
}
