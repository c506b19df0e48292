// Package commands implements the per-device remote command queue:
// create, device poll-and-deliver, and device acknowledge.
package commands

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/solarfleet/control-plane/internal/apierror"
	"github.com/solarfleet/control-plane/internal/audit"
	"github.com/solarfleet/control-plane/internal/domain/command"
	domainaudit "github.com/solarfleet/control-plane/internal/domain/audit"
	"github.com/solarfleet/control-plane/internal/domain/entitlement"
	"github.com/solarfleet/control-plane/internal/domain/membership"
	"github.com/solarfleet/control-plane/internal/storage"
	"github.com/solarfleet/control-plane/pkg/logger"
)

// Entitlements resolves the BASIC_REMOTE_BOOST gate the creator must
// pass before a command is accepted.
type Entitlements interface {
	Require(ctx context.Context, tenantID string, key entitlement.Key, deviceID *string) error
}

// Service implements the command queue's create/poll/ack operations.
type Service struct {
	devices      storage.DeviceStore
	commands     storage.CommandStore
	entitlements Entitlements
	auditSink    *audit.Sink
	log          *logger.Logger
}

// New creates a command queue service.
func New(devices storage.DeviceStore, commands storage.CommandStore, entitlements Entitlements, auditSink *audit.Sink, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("commands")
	}
	return &Service{devices: devices, commands: commands, entitlements: entitlements, auditSink: auditSink, log: log}
}

// CreatorRoles is the set of roles allowed to issue a command, gated
// additionally by the BASIC_REMOTE_BOOST entitlement.
var CreatorRoles = membership.CommandIssueRoles

// Create queues a new command for deviceID on behalf of tenantID,
// enforcing tenant isolation and the remote-boost entitlement.
func (s *Service) Create(ctx context.Context, tenantID, deviceID, requestedByUserID string, cmdType command.Type, payload map[string]any) (*command.Command, error) {
	d, err := s.devices.GetDevice(ctx, tenantID, deviceID)
	if err != nil {
		return nil, err
	}

	if err := s.entitlements.Require(ctx, tenantID, entitlement.BasicRemoteBoost, &d.ID); err != nil {
		return nil, err
	}

	c := &command.Command{
		ID:                uuid.NewString(),
		TenantID:          tenantID,
		DeviceID:          d.ID,
		Type:              cmdType,
		Payload:           payload,
		RequestedByUserID: requestedByUserID,
		Status:            command.Queued,
		RequestedAt:       time.Now().UTC(),
	}
	if err := s.commands.CreateCommand(ctx, c); err != nil {
		return nil, err
	}

	if s.auditSink != nil {
		s.auditSink.Record(ctx, &tenantID, &requestedByUserID, domainaudit.ActorUser, domainaudit.ActionCommandCreated,
			"command", c.ID, map[string]any{"deviceId": d.ID, "type": cmdType})
	}
	return c, nil
}

// PollPending atomically marks every QUEUED command for deviceID as
// DELIVERED and returns them ordered by RequestedAt ascending.
// authDeviceID must equal deviceID; callers are expected to have
// already checked this at the transport boundary, but the service
// re-asserts it to keep the invariant locally enforceable.
func (s *Service) PollPending(ctx context.Context, authDeviceID, deviceID string) ([]*command.Command, error) {
	if authDeviceID != deviceID {
		return nil, apierror.Forbid("device token does not match requested device id")
	}
	return s.commands.PollAndMarkDelivered(ctx, deviceID, time.Now().UTC())
}

// Acknowledge transitions a delivered command to ACKED or FAILED.
func (s *Service) Acknowledge(ctx context.Context, authDeviceID, deviceID, commandID string, status command.Status, errMsg string) (*command.Command, error) {
	if authDeviceID != deviceID {
		return nil, apierror.Forbid("device token does not match requested device id")
	}
	if status != command.Acked && status != command.Failed {
		return nil, apierror.Invalid("status must be ACKED or FAILED")
	}

	c, err := s.commands.GetCommand(ctx, commandID)
	if err != nil {
		return nil, err
	}
	if c.DeviceID != deviceID {
		return nil, apierror.Forbid("command does not belong to this device")
	}

	now := time.Now().UTC()
	c.Status = status
	c.AckAt = &now
	c.ErrorMsg = errMsg
	if err := s.commands.UpdateCommand(ctx, c); err != nil {
		return nil, err
	}

	if s.auditSink != nil {
		action := domainaudit.ActionCommandAcked
		if status == command.Failed {
			action = domainaudit.ActionCommandFailed
		}
		s.auditSink.Record(ctx, &c.TenantID, nil, domainaudit.ActorDevice, action, "command", c.ID, nil)
	}
	return c, nil
}
