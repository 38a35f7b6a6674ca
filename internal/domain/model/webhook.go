// Package model defines the core data types shared across the kodus review pipeline.
package model

import (
	"encoding/json"
	"errors"
	"time"
)

// WebhookJobStatus represents the queue lifecycle state of a webhook job.
type WebhookJobStatus string

const (
	// WebhookJobStatusPending indicates the job is waiting to be dispatched.
	WebhookJobStatusPending WebhookJobStatus = "pending"
	// WebhookJobStatusRunning indicates the job is currently being dispatched.
	WebhookJobStatusRunning WebhookJobStatus = "running"
	// WebhookJobStatusCompleted indicates the dispatch finished successfully.
	WebhookJobStatusCompleted WebhookJobStatus = "completed"
	// WebhookJobStatusFailed indicates the dispatch exhausted its retries.
	WebhookJobStatusFailed WebhookJobStatus = "failed"
)

// Valid returns true if the WebhookJobStatus is a known state.
func (s WebhookJobStatus) Valid() bool {
	return s == WebhookJobStatusPending || s == WebhookJobStatusRunning ||
		s == WebhookJobStatusCompleted || s == WebhookJobStatusFailed
}

// Workflow and handler identifiers recorded on every webhook job so the
// consumer side can route the payload without re-inspecting it.
const (
	WorkflowTypeCodeReview = "code_review"
	HandlerTypeWebhook     = "webhook"
)

// WebhookJobMetadata carries the provider identity and raw event name of the
// webhook that produced a job.
type WebhookJobMetadata struct {
	PlatformType PlatformType `json:"platformType"`
	Event        string       `json:"event"`
}

// WebhookJob is the durable unit of work created by the webhook intake.
// After enqueue the core never mutates it; the queue owns the lifecycle
// fields (status, retry_count, lease).
type WebhookJob struct {
	CorrelationID  string             `json:"correlation_id"             db:"correlation_id"`
	WorkflowType   string             `json:"workflow_type"              db:"workflow_type"`
	HandlerType    string             `json:"handler_type"               db:"handler_type"`
	Payload        json.RawMessage    `json:"payload"                    db:"payload"`
	Metadata       WebhookJobMetadata `json:"metadata"                   db:"metadata"`
	Status         WebhookJobStatus   `json:"status"                     db:"status"`
	Priority       int                `json:"priority"                   db:"priority"`
	RetryCount     int                `json:"retry_count"                db:"retry_count"`
	MaxRetries     int                `json:"max_retries"                db:"max_retries"`
	LastError      *string            `json:"last_error,omitempty"       db:"last_error"`
	ScheduledAt    time.Time          `json:"scheduled_at"               db:"scheduled_at"`
	StartedAt      *time.Time         `json:"started_at,omitempty"       db:"started_at"`
	CompletedAt    *time.Time         `json:"completed_at,omitempty"     db:"completed_at"`
	LeaseExpiresAt *time.Time         `json:"lease_expires_at,omitempty" db:"lease_expires_at"`
	CreatedAt      time.Time          `json:"created_at"                 db:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"                 db:"updated_at"`
}

// Validate checks the invariants a job must satisfy before enqueue.
func (j *WebhookJob) Validate() error {
	if j.CorrelationID == "" {
		return errors.New("correlation id is required")
	}
	if j.WorkflowType == "" {
		return errors.New("workflow type is required")
	}
	if len(j.Payload) == 0 {
		return errors.New("payload is required")
	}
	if !j.Metadata.PlatformType.Valid() {
		return errors.New("invalid platform type")
	}
	if j.RetryCount > j.MaxRetries {
		return errors.New("retry count exceeds max retries")
	}
	return nil
}

// WebhookJobStats reports queue depth per lifecycle state.
type WebhookJobStats struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// ErrNoWebhookJobsAvailable is returned when the queue has nothing to reserve.
var ErrNoWebhookJobsAvailable = errors.New("no webhook jobs available")
