package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/knowledgetools/agentkb/internal/models"
)

// CreateJob inserts a new job in pending status and returns it.
func (c *Client) CreateJob(
	ctx context.Context,
	jobType models.JobType,
	config map[string]any,
	maxRetries int,
) (*models.Job, error) {
	if config == nil {
		config = map[string]any{}
	}

	sql := `
		CREATE type::record("job", $id) SET
			job_type = $job_type,
			status = 'pending',
			config = $config,
			result = NONE,
			error_message = NONE,
			retry_count = 0,
			max_retries = $max_retries,
			created_at = time::now(),
			updated_at = time::now()
		RETURN AFTER
	`

	results, err := query[[]models.Job](ctx, c, sql, map[string]any{
		"id":          uuid.NewString(),
		"job_type":    string(jobType),
		"config":      config,
		"max_retries": maxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("create job: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("create job: no result returned")
	}
	return &(*results)[0].Result[0], nil
}

// GetJob retrieves a job by ID. Returns ErrNotFound if it does not exist.
func (c *Client) GetJob(ctx context.Context, id string) (*models.Job, error) {
	results, err := query[[]models.Job](ctx, c, `
		SELECT * FROM type::record("job", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get job: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("get job %s: %w", id, ErrNotFound)
	}
	return &(*results)[0].Result[0], nil
}

// TryMarkRunning atomically transitions a job from pending or paused to
// running. The WHERE clause makes the update a compare-and-set: if another
// worker already claimed the job (or it reached a terminal status), no row
// matches and claimed is false.
func (c *Client) TryMarkRunning(ctx context.Context, id string) (*models.Job, bool, error) {
	sql := `
		UPDATE type::record("job", $id) SET
			status = 'running',
			started_at = started_at ?? time::now(),
			updated_at = time::now()
		WHERE status IN ['pending', 'paused']
		RETURN AFTER
	`

	results, err := query[[]models.Job](ctx, c, sql, map[string]any{"id": id})
	if err != nil {
		return nil, false, fmt.Errorf("mark running: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, false, nil
	}
	return &(*results)[0].Result[0], true, nil
}

// PauseJob transitions a running job to paused. Returns false if the job was
// not in running status.
func (c *Client) PauseJob(ctx context.Context, id string) (bool, error) {
	sql := `
		UPDATE type::record("job", $id) SET
			status = 'paused',
			updated_at = time::now()
		WHERE status = 'running'
		RETURN AFTER
	`

	results, err := query[[]models.Job](ctx, c, sql, map[string]any{"id": id})
	if err != nil {
		return false, fmt.Errorf("pause job: %w", wrapQueryError(err))
	}
	return results != nil && len(*results) > 0 && len((*results)[0].Result) > 0, nil
}

// StopJob transitions a non-terminal job to failed with the given message.
// Returns false if the job was already completed or failed.
func (c *Client) StopJob(ctx context.Context, id, message string) (bool, error) {
	sql := `
		UPDATE type::record("job", $id) SET
			status = 'failed',
			error_message = $message,
			completed_at = completed_at ?? time::now(),
			updated_at = time::now()
		WHERE status NOT IN ['completed', 'failed']
		RETURN AFTER
	`

	results, err := query[[]models.Job](ctx, c, sql, map[string]any{
		"id":      id,
		"message": message,
	})
	if err != nil {
		return false, fmt.Errorf("stop job: %w", wrapQueryError(err))
	}
	return results != nil && len(*results) > 0 && len((*results)[0].Result) > 0, nil
}

// CompleteJob marks a running job completed and stores its result. A job
// already moved to a terminal status (e.g. stopped by an operator while the
// executor was finishing) is left untouched.
func (c *Client) CompleteJob(ctx context.Context, id string, result map[string]any) error {
	if result == nil {
		result = map[string]any{}
	}

	_, err := query[any](ctx, c, `
		UPDATE type::record("job", $id) SET
			status = 'completed',
			result = $result,
			completed_at = time::now(),
			updated_at = time::now()
		WHERE status = 'running'
	`, map[string]any{"id": id, "result": result})
	if err != nil {
		return fmt.Errorf("complete job: %w", wrapQueryError(err))
	}
	return nil
}

// FailJob marks a non-terminal job failed with an error message.
func (c *Client) FailJob(ctx context.Context, id, message string) error {
	_, err := query[any](ctx, c, `
		UPDATE type::record("job", $id) SET
			status = 'failed',
			error_message = $message,
			completed_at = completed_at ?? time::now(),
			updated_at = time::now()
		WHERE status NOT IN ['completed', 'failed']
	`, map[string]any{"id": id, "message": message})
	if err != nil {
		return fmt.Errorf("fail job: %w", wrapQueryError(err))
	}
	return nil
}

// ListJobs returns jobs ordered by creation time (newest first), with
// optional status filtering and pagination.
func (c *Client) ListJobs(
	ctx context.Context,
	status *models.JobStatus,
	limit int,
	offset int,
) ([]models.Job, error) {
	statusClause := ""
	vars := map[string]any{"limit": limit, "offset": offset}
	if status != nil {
		statusClause = "WHERE status = $status"
		vars["status"] = string(*status)
	}

	sql := fmt.Sprintf(`
		SELECT * FROM job %s
		ORDER BY created_at DESC
		LIMIT $limit START $offset
	`, statusClause)

	results, err := query[[]models.Job](ctx, c, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.Job{}, nil
	}
	return (*results)[0].Result, nil
}

// DeleteJob removes a job with its checkpoints and events.
// Returns count of deleted jobs (0 if not found - idempotent).
func (c *Client) DeleteJob(ctx context.Context, id string) (int, error) {
	sql := `
		DELETE job_checkpoint WHERE job = type::record("job", $id);
		DELETE job_event WHERE job = type::record("job", $id);
		DELETE type::record("job", $id) RETURN BEFORE;
	`

	results, err := query[[]models.Job](ctx, c, sql, map[string]any{"id": id})
	if err != nil {
		return 0, fmt.Errorf("delete job: %w", wrapQueryError(err))
	}

	// The final statement's RETURN BEFORE carries the deleted job.
	if results == nil || len(*results) == 0 {
		return 0, nil
	}
	return len((*results)[len(*results)-1].Result), nil
}

// CreateCheckpoint appends a checkpoint row for a job.
func (c *Client) CreateCheckpoint(
	ctx context.Context,
	jobID string,
	stepName string,
	stateData map[string]any,
) (*models.Checkpoint, error) {
	if stateData == nil {
		stateData = map[string]any{}
	}

	sql := `
		CREATE type::record("job_checkpoint", $id) SET
			job = type::record("job", $job_id),
			step_name = $step_name,
			state_data = $state_data,
			timestamp = time::now()
		RETURN AFTER
	`

	results, err := query[[]models.Checkpoint](ctx, c, sql, map[string]any{
		"id":         uuid.NewString(),
		"job_id":     jobID,
		"step_name":  stepName,
		"state_data": stateData,
	})
	if err != nil {
		return nil, fmt.Errorf("create checkpoint: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("create checkpoint: no result returned")
	}
	return &(*results)[0].Result[0], nil
}

// GetLatestCheckpoint returns the newest checkpoint for a job, or nil if the
// job has none.
func (c *Client) GetLatestCheckpoint(ctx context.Context, jobID string) (*models.Checkpoint, error) {
	results, err := query[[]models.Checkpoint](ctx, c, `
		SELECT * FROM job_checkpoint
		WHERE job = type::record("job", $job_id)
		ORDER BY timestamp DESC
		LIMIT 1
	`, map[string]any{"job_id": jobID})
	if err != nil {
		return nil, fmt.Errorf("get latest checkpoint: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// CreateEvent appends a lifecycle event for a job.
func (c *Client) CreateEvent(
	ctx context.Context,
	jobID string,
	eventType models.JobEventType,
	eventData map[string]any,
) error {
	if eventData == nil {
		eventData = map[string]any{}
	}

	_, err := query[any](ctx, c, `
		CREATE type::record("job_event", $id) SET
			job = type::record("job", $job_id),
			event_type = $event_type,
			event_data = $event_data,
			timestamp = time::now()
	`, map[string]any{
		"id":         uuid.NewString(),
		"job_id":     jobID,
		"event_type": string(eventType),
		"event_data": eventData,
	})
	if err != nil {
		return fmt.Errorf("create event: %w", wrapQueryError(err))
	}
	return nil
}

// ListEvents returns events for a job ordered newest first, with pagination.
func (c *Client) ListEvents(
	ctx context.Context,
	jobID string,
	limit int,
	offset int,
) ([]models.JobEvent, error) {
	results, err := query[[]models.JobEvent](ctx, c, `
		SELECT * FROM job_event
		WHERE job = type::record("job", $job_id)
		ORDER BY timestamp DESC
		LIMIT $limit START $offset
	`, map[string]any{"job_id": jobID, "limit": limit, "offset": offset})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.JobEvent{}, nil
	}
	return (*results)[0].Result, nil
}

// CountEvents returns the total number of events recorded for a job.
func (c *Client) CountEvents(ctx context.Context, jobID string) (int, error) {
	results, err := query[[]struct {
		Count int `json:"count"`
	}](ctx, c, `
		SELECT count() AS count FROM job_event
		WHERE job = type::record("job", $job_id)
		GROUP ALL
	`, map[string]any{"job_id": jobID})
	if err != nil {
		return 0, fmt.Errorf("count events: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].Count, nil
}
