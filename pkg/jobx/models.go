package jobx

import (
	"encoding/json"
	"time"
)

// JobStatus represents the current state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusActive    JobStatus = "active"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is a unit of work to be enqueued. Once enqueued it is immutable to
// callers; only the broker updates its bookkeeping.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`

	// MaxAttempts is the total number of handler invocations allowed,
	// first attempt included. Zero means the queue default.
	MaxAttempts int `json:"max_attempts"`

	// Backoff is the fixed delay before a retried attempt. Zero means the
	// queue default.
	Backoff time.Duration `json:"backoff"`
}

// JobInfo is the full broker-side representation of a job.
type JobInfo struct {
	ID          string          `json:"id"`
	Queue       string          `json:"queue"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      JobStatus       `json:"status"`
	Error       string          `json:"error,omitempty"`
	MaxAttempts int             `json:"max_attempts"`
	Attempts    int             `json:"attempts"`
	Backoff     time.Duration   `json:"backoff"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
