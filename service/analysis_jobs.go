package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"leasecheck-backend/models"
	"leasecheck-backend/repository"
	"leasecheck-backend/storage"
)

// Analysis steps, in order
const (
	StepExtracting = "Extracting Clauses"
	StepAssessing  = "Assessing Clauses"
	StepReporting  = "Building Report"
)

// JobStore persists analysis jobs. Implemented by
// repository.AnalysisJobRepository and repository.MemoryJobStore.
type JobStore interface {
	Create(ctx context.Context, job *models.AnalysisJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.AnalysisJobStatus) error
	UpdateProgress(ctx context.Context, id uuid.UUID, currentStep string, steps models.JobSteps) error
	Complete(ctx context.Context, id uuid.UUID, report *models.Report) error
	Fail(ctx context.Context, id uuid.UUID, errorMessage string) error
	Cancel(ctx context.Context, id uuid.UUID) error
}

type runningJob struct {
	cancel    context.CancelFunc
	done      chan struct{}
	cancelled bool
	// set once the result is being stored; the job can no longer be cancelled
	committed bool
}

// jobTracker holds the inputs of jobs waiting to run and the cancel
// handles of jobs in flight. Document text is never persisted.
type jobTracker struct {
	mu      sync.Mutex
	pending map[uuid.UUID]AnalyzeRequest
	running map[uuid.UUID]*runningJob
}

func newJobTracker() *jobTracker {
	return &jobTracker{
		pending: make(map[uuid.UUID]AnalyzeRequest),
		running: make(map[uuid.UUID]*runningJob),
	}
}

// StartJobResult represents the result of creating an analysis job
type StartJobResult struct {
	JobID uuid.UUID
}

// StartJob validates the request and creates a pending job. The caller
// runs it with ProcessJob, usually on a background goroutine.
func (s *AnalysisService) StartJob(ctx context.Context, req AnalyzeRequest) (*StartJobResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyDocument
	}
	if req.DocID == "" {
		req.DocID = uuid.NewString()
	}

	job := &models.AnalysisJob{
		DocID:        req.DocID,
		Jurisdiction: s.resolveJurisdiction(req.Jurisdiction, ""),
		Status:       models.JobStatusPending,
		Steps:        initialSteps(),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJobCreationFailed, err)
	}

	s.tracker.mu.Lock()
	s.tracker.pending[job.ID] = req
	s.tracker.mu.Unlock()

	return &StartJobResult{JobID: job.ID}, nil
}

func initialSteps() models.JobSteps {
	return models.JobSteps{
		{Name: StepExtracting, Status: models.StepPending},
		{Name: StepAssessing, Status: models.StepPending},
		{Name: StepReporting, Status: models.StepPending},
	}
}

// ProcessJob runs a pending job to completion and stores its report.
// Failures are recorded on the job; a job cancelled through CancelJob
// ends in the cancelled state with no report.
func (s *AnalysisService) ProcessJob(ctx context.Context, jobID uuid.UUID) error {
	s.tracker.mu.Lock()
	req, ok := s.tracker.pending[jobID]
	if !ok {
		s.tracker.mu.Unlock()
		return s.orphanedJob(ctx, jobID)
	}
	delete(s.tracker.pending, jobID)

	jobCtx, cancel := context.WithCancel(ctx)
	rj := &runningJob{cancel: cancel, done: make(chan struct{})}
	s.tracker.running[jobID] = rj
	s.tracker.mu.Unlock()

	defer func() {
		cancel()
		s.tracker.mu.Lock()
		delete(s.tracker.running, jobID)
		s.tracker.mu.Unlock()
		close(rj.done)
	}()

	// store writes must land even after the analysis itself is cancelled
	storeCtx := context.WithoutCancel(ctx)
	logger := s.logger.With(zap.String("job_id", jobID.String()))

	if err := s.jobs.UpdateStatus(storeCtx, jobID, models.JobStatusInProgress); err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	steps := initialSteps()
	current := -1
	onStep := func(name string) error {
		if current >= 0 {
			steps[current].Status = models.StepCompleted
		}
		for i := range steps {
			if steps[i].Name == name {
				steps[i].Status = models.StepInProgress
				current = i
			}
		}
		return s.jobs.UpdateProgress(storeCtx, jobID, name, steps)
	}

	result, err := s.analyze(jobCtx, req, onStep)
	if err != nil {
		if s.wasCancelled(rj) {
			return s.recordCancel(storeCtx, jobID, logger)
		}
		if current >= 0 {
			steps[current].Status = models.StepFailed
			_ = s.jobs.UpdateProgress(storeCtx, jobID, steps[current].Name, steps)
		}
		s.markJobFailed(storeCtx, jobID, err.Error())
		return fmt.Errorf("analysis job %s failed: %w", jobID, err)
	}

	// a cancel that lands after the analysis finished still wins
	if !s.commitJob(rj) {
		return s.recordCancel(storeCtx, jobID, logger)
	}

	steps[current].Status = models.StepCompleted
	if err := s.jobs.UpdateProgress(storeCtx, jobID, steps[current].Name, steps); err != nil {
		logger.Warn("Failed to record final step", zap.Error(err))
	}

	s.archiveReport(storeCtx, jobID, result.Report)

	if err := s.jobs.Complete(storeCtx, jobID, result.Report); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	logger.Info("Analysis job completed",
		zap.String("doc_id", result.Report.DocID),
		zap.String("risk_level", string(result.Report.RiskLevel)))
	return nil
}

// orphanedJob handles a ProcessJob call for a job with no pending input:
// already cancelled, already finished, or lost across a restart
func (s *AnalysisService) orphanedJob(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return nil
	}

	s.tracker.mu.Lock()
	_, running := s.tracker.running[jobID]
	s.tracker.mu.Unlock()
	if running {
		return nil
	}

	s.markJobFailed(ctx, jobID, "analysis input is no longer available")
	return fmt.Errorf("analysis job %s has no input", jobID)
}

func (s *AnalysisService) wasCancelled(rj *runningJob) bool {
	s.tracker.mu.Lock()
	defer s.tracker.mu.Unlock()
	return rj.cancelled
}

// commitJob marks the job as storing its result, unless it was cancelled first
func (s *AnalysisService) commitJob(rj *runningJob) bool {
	s.tracker.mu.Lock()
	defer s.tracker.mu.Unlock()
	if rj.cancelled {
		return false
	}
	rj.committed = true
	return true
}

func (s *AnalysisService) recordCancel(ctx context.Context, jobID uuid.UUID, logger *zap.Logger) error {
	logger.Info("Analysis job cancelled")
	if err := s.jobs.Cancel(ctx, jobID); err != nil {
		return fmt.Errorf("failed to record cancellation: %w", err)
	}
	return nil
}

// CancelJob stops a pending or running job. It returns once the job has
// reached the cancelled state, or when ctx expires. A job that is already
// storing its result returns ErrJobNotRunning.
func (s *AnalysisService) CancelJob(ctx context.Context, jobID uuid.UUID) error {
	s.tracker.mu.Lock()
	if _, ok := s.tracker.pending[jobID]; ok {
		delete(s.tracker.pending, jobID)
		s.tracker.mu.Unlock()
		if err := s.jobs.Cancel(ctx, jobID); err != nil {
			return s.mapStoreError(err)
		}
		return nil
	}

	rj, ok := s.tracker.running[jobID]
	if ok && rj.committed {
		s.tracker.mu.Unlock()
		return ErrJobNotRunning
	}
	if ok {
		rj.cancelled = true
		rj.cancel()
	}
	s.tracker.mu.Unlock()

	if !ok {
		if _, err := s.GetJob(ctx, jobID); err != nil {
			return err
		}
		return ErrJobNotRunning
	}

	select {
	case <-rj.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown cancels every in-flight job and waits for them to stop
func (s *AnalysisService) Shutdown(ctx context.Context) error {
	s.tracker.mu.Lock()
	jobs := make([]*runningJob, 0, len(s.tracker.running))
	for _, rj := range s.tracker.running {
		if !rj.committed {
			rj.cancelled = true
			rj.cancel()
		}
		jobs = append(jobs, rj)
	}
	s.tracker.mu.Unlock()

	for _, rj := range jobs {
		select {
		case <-rj.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// GetJob retrieves an analysis job
func (s *AnalysisService) GetJob(ctx context.Context, jobID uuid.UUID) (*models.AnalysisJob, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, s.mapStoreError(err)
	}
	return job, nil
}

// GetReport returns the report of a completed job, falling back to the
// archive when the store no longer holds it
func (s *AnalysisService) GetReport(ctx context.Context, jobID uuid.UUID) (*models.Report, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusCompleted {
		return nil, ErrReportNotReady
	}
	if job.Report != nil {
		return job.Report, nil
	}
	if s.archive == nil {
		return nil, ErrReportNotReady
	}

	rc, err := s.archive.Get(ctx, storage.ReportKey(jobID.String()))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrReportNotReady
		}
		return nil, fmt.Errorf("failed to load archived report: %w", err)
	}
	defer rc.Close()

	var rep models.Report
	if err := json.NewDecoder(rc).Decode(&rep); err != nil {
		return nil, fmt.Errorf("failed to decode archived report: %w", err)
	}
	return &rep, nil
}

func (s *AnalysisService) archiveReport(ctx context.Context, jobID uuid.UUID, rep *models.Report) {
	if s.archive == nil || rep == nil {
		return
	}
	data, err := json.Marshal(rep)
	if err != nil {
		s.logger.Warn("Failed to encode report for archive", zap.String("job_id", jobID.String()), zap.Error(err))
		return
	}
	key := storage.ReportKey(jobID.String())
	if err := s.archive.Put(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		s.logger.Warn("Failed to archive report", zap.String("key", key), zap.Error(err))
	}
}

// markJobFailed marks a job as failed with an error message
func (s *AnalysisService) markJobFailed(ctx context.Context, jobID uuid.UUID, errorMessage string) {
	if err := s.jobs.Fail(ctx, jobID, errorMessage); err != nil {
		s.logger.Error("Failed to mark job as failed", zap.String("job_id", jobID.String()), zap.Error(err))
	}
}

func (s *AnalysisService) mapStoreError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrJobNotFound
	}
	return err
}
