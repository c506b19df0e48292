// Package ota defines the firmware catalog and scheduled rollout job
// entities for the OTA coordinator.
package ota

import "time"

// FirmwarePackage is a globally unique, registerable firmware image.
type FirmwarePackage struct {
	ID           string    `json:"id"`
	Version      string    `json:"version"`
	DownloadURL  string    `json:"downloadUrl"`
	Checksum     string    `json:"checksum"`
	ReleaseNotes string    `json:"releaseNotes,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// TargetType selects whether a job addresses a single device or a
// group defined by a filter.
type TargetType string

const (
	TargetDevice TargetType = "DEVICE"
	TargetGroup  TargetType = "GROUP"
)

// JobStatus is the rollout job's lifecycle state.
type JobStatus string

const (
	Scheduled  JobStatus = "SCHEDULED"
	InProgress JobStatus = "IN_PROGRESS"
	Success    JobStatus = "SUCCESS"
	JobFailed  JobStatus = "FAILED"
	Canceled   JobStatus = "CANCELED"
)

// Job is a scheduled firmware rollout targeting a device or a group.
type Job struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`

	TargetType  TargetType     `json:"targetType"`
	DeviceID    *string        `json:"deviceId,omitempty"`
	GroupFilter map[string]any `json:"groupFilter,omitempty"`

	FirmwareID string `json:"firmwareId"`

	Status   JobStatus      `json:"status"`
	Progress map[string]any `json:"progress,omitempty"`
	ErrorMsg string         `json:"errorMsg,omitempty"`

	ScheduledAt time.Time  `json:"scheduledAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
