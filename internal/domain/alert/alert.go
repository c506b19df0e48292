// Package alert defines tenant-scoped alert rules and the events the
// evaluator opens against them.
package alert

import "time"

// RuleType is the closed set of alert predicate kinds.
type RuleType string

const (
	NoTelemetry        RuleType = "NO_TELEMETRY"
	OverTemp           RuleType = "OVER_TEMP"
	PossibleLeak       RuleType = "POSSIBLE_LEAK"
	SensorOutOfRange   RuleType = "SENSOR_OUT_OF_RANGE"
)

// Severity orders alert urgency.
type Severity string

const (
	Info     Severity = "INFO"
	Warning  Severity = "WARNING"
	Critical Severity = "CRITICAL"
)

// Rule is a tenant-scoped alert definition.
type Rule struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`

	Name    string         `json:"name"`
	Enabled bool           `json:"enabled"`
	Type    RuleType       `json:"type"`
	Params  map[string]any `json:"params,omitempty"`

	Severity Severity `json:"severity"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EventStatus is the lifecycle of an opened alert instance.
type EventStatus string

const (
	Open         EventStatus = "OPEN"
	Acknowledged EventStatus = "ACKNOWLEDGED"
	Closed       EventStatus = "CLOSED"
)

// OpenStatuses are the statuses that block re-opening the same
// dedupe key.
var OpenStatuses = []EventStatus{Open, Acknowledged}

// Event is an instance of a Rule firing against a specific device.
type Event struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	DeviceID string `json:"deviceId"`
	RuleID   string `json:"ruleId"`

	Severity Severity       `json:"severity"`
	Status   EventStatus    `json:"status"`
	Details  map[string]any `json:"details,omitempty"`

	// DedupeKey is "<deviceId>:<ruleId>" and carries a process-wide
	// uniqueness constraint guarding concurrent duplicate opens.
	DedupeKey string `json:"dedupeKey"`

	OpenedAt       time.Time  `json:"openedAt"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty"`
	ClosedAt       *time.Time `json:"closedAt,omitempty"`
}

// DedupeKey builds the deterministic "<deviceId>:<ruleId>" string.
func DedupeKey(deviceID, ruleID string) string {
	return deviceID + ":" + ruleID
}
