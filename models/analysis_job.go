package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AnalysisJobStatus represents the status of an analysis job
type AnalysisJobStatus string

const (
	JobStatusPending    AnalysisJobStatus = "pending"
	JobStatusInProgress AnalysisJobStatus = "in_progress"
	JobStatusCompleted  AnalysisJobStatus = "completed"
	JobStatusFailed     AnalysisJobStatus = "failed"
	JobStatusCancelled  AnalysisJobStatus = "cancelled"
)

// Terminal reports whether the job can no longer change state
func (s AnalysisJobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Step status values
const (
	StepPending    = "pending"
	StepInProgress = "in_progress"
	StepCompleted  = "completed"
	StepFailed     = "failed"
)

// JobStep represents a step in the analysis process
type JobStep struct {
	Name        string `json:"name"`
	Status      string `json:"status"` // "pending", "in_progress", "completed", "failed"
	Description string `json:"description,omitempty"`
}

// JobSteps represents a list of analysis steps
type JobSteps []JobStep

// Value implements driver.Valuer for JSONB
func (s JobSteps) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner for JSONB
func (s *JobSteps) Scan(value interface{}) error {
	if value == nil {
		*s = make(JobSteps, 0)
		return nil
	}

	// Handle different types that pgx might return for JSONB
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*s = make(JobSteps, 0)
		return nil
	}

	if len(bytes) == 0 {
		*s = make(JobSteps, 0)
		return nil
	}

	return json.Unmarshal(bytes, s)
}

// AnalysisJob tracks the background analysis of one document
type AnalysisJob struct {
	ID           uuid.UUID         `json:"id"`
	DocID        string            `json:"doc_id"`
	Jurisdiction string            `json:"jurisdiction"`
	Status       AnalysisJobStatus `json:"status"`
	CurrentStep  *string           `json:"current_step,omitempty"`
	Steps        JobSteps          `json:"steps"`
	ErrorMessage *string           `json:"error_message,omitempty"`
	Report       *Report           `json:"report,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}

// Clone returns a deep copy safe to hand to another goroutine
func (j *AnalysisJob) Clone() *AnalysisJob {
	if j == nil {
		return nil
	}
	out := *j
	out.Steps = append(JobSteps(nil), j.Steps...)
	if j.CurrentStep != nil {
		step := *j.CurrentStep
		out.CurrentStep = &step
	}
	if j.ErrorMessage != nil {
		msg := *j.ErrorMessage
		out.ErrorMessage = &msg
	}
	if j.CompletedAt != nil {
		at := *j.CompletedAt
		out.CompletedAt = &at
	}
	if j.Report != nil {
		r := *j.Report
		out.Report = &r
	}
	return &out
}
