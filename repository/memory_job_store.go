package repository

import (
	"context"
	"sync"
	"time"

	"leasecheck-backend/models"

	"github.com/google/uuid"
)

// MemoryJobStore keeps analysis jobs in process memory. It has the same
// contract as AnalysisJobRepository and backs the server when no database
// is configured.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*models.AnalysisJob
	now  func() time.Time
}

// NewMemoryJobStore creates an empty store
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs: make(map[uuid.UUID]*models.AnalysisJob),
		now:  time.Now,
	}
}

// Create stores a copy of job and assigns its ID and timestamps
func (s *MemoryJobStore) Create(_ context.Context, job *models.AnalysisJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job.ID = uuid.New()
	job.CreatedAt = s.now()
	job.UpdatedAt = job.CreatedAt
	if job.Steps == nil {
		job.Steps = make(models.JobSteps, 0)
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

// GetByID returns a copy of the job
func (s *MemoryJobStore) GetByID(_ context.Context, id uuid.UUID) (*models.AnalysisJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return job.Clone(), nil
}

// UpdateStatus updates the status of a job
func (s *MemoryJobStore) UpdateStatus(_ context.Context, id uuid.UUID, status models.AnalysisJobStatus) error {
	return s.update(id, func(j *models.AnalysisJob) {
		j.Status = status
	})
}

// UpdateProgress records the current step and step list
func (s *MemoryJobStore) UpdateProgress(_ context.Context, id uuid.UUID, currentStep string, steps models.JobSteps) error {
	return s.update(id, func(j *models.AnalysisJob) {
		j.CurrentStep = &currentStep
		j.Steps = append(models.JobSteps(nil), steps...)
	})
}

// Complete stores the report and marks the job completed
func (s *MemoryJobStore) Complete(_ context.Context, id uuid.UUID, report *models.Report) error {
	return s.update(id, func(j *models.AnalysisJob) {
		now := s.now()
		j.Status = models.JobStatusCompleted
		j.Report = report
		j.CompletedAt = &now
	})
}

// Fail marks the job failed with a message
func (s *MemoryJobStore) Fail(_ context.Context, id uuid.UUID, errorMessage string) error {
	return s.update(id, func(j *models.AnalysisJob) {
		j.Status = models.JobStatusFailed
		j.ErrorMessage = &errorMessage
	})
}

// Cancel marks the job cancelled and drops any report
func (s *MemoryJobStore) Cancel(_ context.Context, id uuid.UUID) error {
	return s.update(id, func(j *models.AnalysisJob) {
		now := s.now()
		j.Status = models.JobStatusCancelled
		j.Report = nil
		j.CompletedAt = &now
	})
}

func (s *MemoryJobStore) update(id uuid.UUID, fn func(*models.AnalysisJob)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	fn(job)
	job.UpdatedAt = s.now()
	return nil
}
