package models

import (
	"time"

	"github.com/google/uuid"
)

// JobRecord is the persisted history row for one submission.
type JobRecord struct {
	ID                string     `json:"id" yaml:"id" badgerhold:"key"`
	RemoteJobID       string     `json:"remote_job_id" yaml:"remote_job_id" badgerhold:"index"`
	Filename          string     `json:"filename" yaml:"filename"`
	State             JobState   `json:"state" yaml:"state" badgerhold:"index"`
	Progress          int        `json:"progress" yaml:"progress"`
	Error             string     `json:"error,omitempty" yaml:"error,omitempty"`
	OverallPrediction Prediction `json:"overall_prediction,omitempty" yaml:"overall_prediction,omitempty"`
	FakePercentage    float64    `json:"fake_percentage,omitempty" yaml:"fake_percentage,omitempty"`
	TotalFrames       int        `json:"total_frames,omitempty" yaml:"total_frames,omitempty"`
	CreatedAt         time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" yaml:"updated_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
}

// NewJobRecordID generates a history record id.
// Format: rec_<uuid>
func NewJobRecordID() string {
	return "rec_" + uuid.New().String()
}
