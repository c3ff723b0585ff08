// Package models defines data structures for the agentkb knowledge base.
package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// JobType selects the workflow executor for a job.
type JobType string

const (
	JobTypeIngestion     JobType = "ingestion"
	JobTypeSearch        JobType = "search"
	JobTypeSummarization JobType = "summarization"
	JobTypeDeepSearch    JobType = "deep_search"
	JobTypeSynthesis     JobType = "synthesis"
	JobTypeRefresh       JobType = "refresh"
)

// JobTypes lists all valid job types.
var JobTypes = []JobType{
	JobTypeIngestion,
	JobTypeSearch,
	JobTypeSummarization,
	JobTypeDeepSearch,
	JobTypeSynthesis,
	JobTypeRefresh,
}

// ValidJobType reports whether s names a known job type.
func ValidJobType(s string) bool {
	for _, t := range JobTypes {
		if string(t) == s {
			return true
		}
	}
	return false
}

// JobStatus represents the lifecycle state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusPaused    JobStatus = "paused"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobEventType classifies audit-log entries.
type JobEventType string

const (
	EventStart      JobEventType = "start"
	EventCheckpoint JobEventType = "checkpoint"
	EventError      JobEventType = "error"
	EventRetry      JobEventType = "retry"
	EventComplete   JobEventType = "complete"
	EventPause      JobEventType = "pause"
	EventResume     JobEventType = "resume"
)

// Job is one unit of agentic work.
type Job struct {
	ID           surrealmodels.RecordID `json:"id"`
	JobType      JobType                `json:"job_type"`
	Status       JobStatus              `json:"status"`
	Config       map[string]any         `json:"config,omitempty"`
	Result       map[string]any         `json:"result,omitempty"`
	ErrorMessage *string                `json:"error_message,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
	StartedAt    *time.Time             `json:"started_at,omitempty"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
	RetryCount   int                    `json:"retry_count"`
	MaxRetries   int                    `json:"max_retries"`
}

// Checkpoint is an immutable snapshot of workflow progress for one job.
// The checkpoint with the greatest timestamp is the sole resumption input.
type Checkpoint struct {
	ID        surrealmodels.RecordID `json:"id"`
	JobID     surrealmodels.RecordID `json:"job"`
	StepName  string                 `json:"step_name"`
	StateData map[string]any         `json:"state_data"`
	Timestamp time.Time              `json:"timestamp"`
}

// JobEvent is an immutable audit record. Events never drive control flow.
type JobEvent struct {
	ID        surrealmodels.RecordID `json:"id"`
	JobID     surrealmodels.RecordID `json:"job"`
	EventType JobEventType           `json:"event_type"`
	EventData map[string]any         `json:"event_data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}
