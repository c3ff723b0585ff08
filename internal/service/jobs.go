// Package service provides the operator-facing job operations consumed by
// the CLI: submission, control, inspection and manual checkpoints.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/knowledgetools/agentkb/internal/config"
	"github.com/knowledgetools/agentkb/internal/db"
	"github.com/knowledgetools/agentkb/internal/models"
	"github.com/knowledgetools/agentkb/internal/sanitize"
)

// Sentinel errors for request validation.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrValidation indicates a bad job type or malformed config. The job
	// is never created.
	ErrValidation = errors.New("invalid job request")

	// ErrInvalidAction indicates a control action not permitted by the
	// job's current status. Status is left untouched.
	ErrInvalidAction = errors.New("invalid control action")
)

// StoppedByOperator is the fixed error message recorded on operator stops.
const StoppedByOperator = "stopped by operator"

// ControlAction is an external job control request.
type ControlAction string

const (
	ActionPause  ControlAction = "pause"
	ActionResume ControlAction = "resume"
	ActionStop   ControlAction = "stop"
)

// Dispatcher schedules a job execution. Implemented by orchestrator.Orchestrator.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
}

// JobService owns the exposed job operations.
type JobService struct {
	db         *db.Client
	dispatcher Dispatcher
	cfg        config.Config
}

// NewJobService creates a job service.
func NewJobService(dbClient *db.Client, dispatcher Dispatcher, cfg config.Config) *JobService {
	return &JobService{db: dbClient, dispatcher: dispatcher, cfg: cfg}
}

// JobDetail is a job with its resumption and audit context.
type JobDetail struct {
	Job              *models.Job
	LatestCheckpoint *models.Checkpoint
	EventCount       int
}

// Submit validates type and config, creates the job and dispatches it.
func (s *JobService) Submit(ctx context.Context, jobType string, rawConfig map[string]any) (*models.Job, error) {
	if !models.ValidJobType(jobType) {
		return nil, fmt.Errorf("%w: unknown job type %q", ErrValidation, jobType)
	}

	cfg, err := sanitize.JobConfig(rawConfig, s.cfg.MaxJobRuntimeMinutes, s.cfg.MaxJobCostUSD)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	job, err := s.db.CreateJob(ctx, models.JobType(jobType), cfg, 3)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	jobID := models.MustRecordIDString(job.ID)

	if err := s.dispatcher.Dispatch(ctx, jobID); err != nil {
		slog.Warn("job created but not dispatched", "job_id", jobID, "error", err)
	}

	slog.Info("job submitted", "job_id", jobID, "job_type", jobType)
	return job, nil
}

// Control applies an external pause/resume/stop transition. Actions invalid
// for the current status are rejected without mutating it. Returns the new
// status.
func (s *JobService) Control(ctx context.Context, jobID string, action ControlAction) (models.JobStatus, error) {
	job, err := s.db.GetJob(ctx, jobID)
	if err != nil {
		return "", err
	}

	switch action {
	case ActionPause:
		ok, err := s.db.PauseJob(ctx, jobID)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", fmt.Errorf("%w: cannot pause job in status %s", ErrInvalidAction, job.Status)
		}
		_ = s.db.CreateEvent(ctx, jobID, models.EventPause, map[string]any{
			"message": "Job paused by operator",
		})
		slog.Info("job paused", "job_id", jobID)
		return models.JobStatusPaused, nil

	case ActionResume:
		if job.Status != models.JobStatusPaused {
			return "", fmt.Errorf("%w: cannot resume job in status %s", ErrInvalidAction, job.Status)
		}
		_ = s.db.CreateEvent(ctx, jobID, models.EventResume, map[string]any{
			"message": "Job resumed by operator",
		})
		if err := s.dispatcher.Dispatch(ctx, jobID); err != nil {
			return "", fmt.Errorf("re-dispatch: %w", err)
		}
		slog.Info("job resumed", "job_id", jobID)
		return models.JobStatusRunning, nil

	case ActionStop:
		ok, err := s.db.StopJob(ctx, jobID, StoppedByOperator)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", fmt.Errorf("%w: cannot stop job in status %s", ErrInvalidAction, job.Status)
		}
		_ = s.db.CreateEvent(ctx, jobID, models.EventError, map[string]any{
			"error": StoppedByOperator,
		})
		slog.Info("job stopped", "job_id", jobID)
		return models.JobStatusFailed, nil
	}

	return "", fmt.Errorf("%w: unknown action %q", ErrInvalidAction, action)
}

// Delete removes a job together with its checkpoints and events. Running
// jobs must be stopped first.
func (s *JobService) Delete(ctx context.Context, jobID string) error {
	job, err := s.db.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status == models.JobStatusRunning {
		return fmt.Errorf("%w: stop the job before deleting it", ErrInvalidAction)
	}

	deleted, err := s.db.DeleteJob(ctx, jobID)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return fmt.Errorf("delete job: %w", db.ErrNotFound)
	}
	slog.Info("job deleted", "job_id", jobID)
	return nil
}

// Detail returns a job with its latest checkpoint and event count.
func (s *JobService) Detail(ctx context.Context, jobID string) (*JobDetail, error) {
	job, err := s.db.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	checkpoint, err := s.db.GetLatestCheckpoint(ctx, jobID)
	if err != nil {
		return nil, err
	}
	count, err := s.db.CountEvents(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &JobDetail{Job: job, LatestCheckpoint: checkpoint, EventCount: count}, nil
}

// List returns jobs newest first with optional status filtering.
func (s *JobService) List(ctx context.Context, status string, limit, offset int) ([]models.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	var filter *models.JobStatus
	if status != "" {
		st := models.JobStatus(status)
		filter = &st
	}
	return s.db.ListJobs(ctx, filter, limit, offset)
}

// Events returns a job's audit log ordered by timestamp descending.
func (s *JobService) Events(ctx context.Context, jobID string, limit, offset int) ([]models.JobEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	if _, err := s.db.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	return s.db.ListEvents(ctx, jobID, limit, offset)
}

// RecordCheckpoint is the operator-facing manual checkpoint path,
// independent of executor-driven checkpoints.
func (s *JobService) RecordCheckpoint(
	ctx context.Context,
	jobID string,
	stepName string,
	stateData map[string]any,
) (*models.Checkpoint, error) {
	if stepName == "" {
		return nil, fmt.Errorf("%w: step name is required", ErrValidation)
	}
	if _, err := s.db.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	stateData, err := sanitize.JobConfig(stateData, s.cfg.MaxJobRuntimeMinutes, s.cfg.MaxJobCostUSD)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return s.db.CreateCheckpoint(ctx, jobID, stepName, stateData)
}
