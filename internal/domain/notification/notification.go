// Package notification defines outbound notification channels and the
// queued events dispatched through them.
package notification

import "time"

// ChannelType is the delivery transport.
type ChannelType string

const (
	Email   ChannelType = "EMAIL"
	SMS     ChannelType = "SMS"
	Webhook ChannelType = "WEBHOOK"
)

// Channel is a tenant-scoped delivery destination.
type Channel struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`

	Type    ChannelType    `json:"type"`
	Config  map[string]any `json:"config,omitempty"`
	Enabled bool           `json:"enabled"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EventStatus is the delivery lifecycle of a queued notification.
type EventStatus string

const (
	Queued EventStatus = "QUEUED"
	Sent   EventStatus = "SENT"
	Failed EventStatus = "FAILED"
)

// Event is a single outbound message queued for a channel.
type Event struct {
	ID        string  `json:"id"`
	TenantID  string  `json:"tenantId"`
	ChannelID string  `json:"channelId"`
	AlertID   *string `json:"alertId,omitempty"`

	Status   EventStatus    `json:"status"`
	Payload  map[string]any `json:"payload,omitempty"`
	ErrorMsg string         `json:"errorMsg,omitempty"`

	CreatedAt time.Time  `json:"createdAt"`
	SentAt    *time.Time `json:"sentAt,omitempty"`
}
