// -----------------------------------------------------------------------
// Detection Job - client-side view of one remote analysis request
// -----------------------------------------------------------------------

package models

import (
	"time"
)

// JobState is the lifecycle state of the tracked detection job.
type JobState string

const (
	JobStateIdle       JobState = "idle"
	JobStateSubmitting JobState = "submitting"
	JobStateQueued     JobState = "queued"
	JobStateProcessing JobState = "processing"
	JobStateCompleted  JobState = "completed"
	JobStateFailed     JobState = "failed"
	JobStateCancelled  JobState = "cancelled"
)

// IsTerminal reports whether the state is only left by an explicit reset.
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// IsActive reports whether a submission or poll loop is in progress.
func (s JobState) IsActive() bool {
	return s == JobStateSubmitting || s == JobStateQueued || s == JobStateProcessing
}

func (s JobState) String() string {
	return string(s)
}

// Job identifies one analysis request tracked by the controller.
// Exactly one Job is tracked at a time.
type Job struct {
	ID          string    `json:"id" yaml:"id"`                           // Assigned by the remote service on submission
	State       JobState  `json:"state" yaml:"state"`                     // Current lifecycle state
	Progress    int       `json:"progress" yaml:"progress"`               // 0-100 as last reported by the service
	Filename    string    `json:"filename" yaml:"filename"`               // Display name captured at submission
	Error       string    `json:"error,omitempty" yaml:"error,omitempty"` // Only set in failed
	SubmittedAt time.Time `json:"submitted_at,omitempty" yaml:"submitted_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// NewIdleJob returns the zero job in the idle state.
func NewIdleJob() Job {
	return Job{State: JobStateIdle}
}

// Snapshot is one poll response: a read-only view of the remote job.
type Snapshot struct {
	JobID     string   `json:"job_id" yaml:"job_id"`
	State     JobState `json:"state" yaml:"state"`
	Progress  int      `json:"progress" yaml:"progress"`
	Error     string   `json:"error,omitempty" yaml:"error,omitempty"`
	Filename  string   `json:"filename,omitempty" yaml:"filename,omitempty"`
	CreatedAt string   `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// Submission is the service's answer to an upload.
type Submission struct {
	JobID   string   `json:"job_id" yaml:"job_id"`
	State   JobState `json:"state" yaml:"state"`
	Message string   `json:"message,omitempty" yaml:"message,omitempty"`
}

// HealthStatus is the result of a liveness probe.
type HealthStatus struct {
	Status    string    `json:"status" yaml:"status"`
	Timestamp string    `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Healthy   bool      `json:"healthy" yaml:"healthy"`
	CheckedAt time.Time `json:"checked_at" yaml:"checked_at"`
}

// ClampProgress bounds a reported progress value to 0..100.
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
