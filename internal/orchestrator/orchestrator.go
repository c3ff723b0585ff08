// Package orchestrator drives jobs from creation to a terminal state. It
// owns the dispatch pool, the single-flight guard, checkpoint-based
// resumption and the succeed/fail transitions; the per-type workflow
// executors live alongside it in this package.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/knowledgetools/agentkb/internal/config"
	"github.com/knowledgetools/agentkb/internal/guardrail"
	"github.com/knowledgetools/agentkb/internal/llm"
	"github.com/knowledgetools/agentkb/internal/metrics"
	"github.com/knowledgetools/agentkb/internal/models"
)

// Store is the durable job/checkpoint/event persistence the orchestrator
// consumes. Implemented by db.Client.
type Store interface {
	GetJob(ctx context.Context, id string) (*models.Job, error)
	TryMarkRunning(ctx context.Context, id string) (*models.Job, bool, error)
	CompleteJob(ctx context.Context, id string, result map[string]any) error
	FailJob(ctx context.Context, id, message string) error
	CreateCheckpoint(ctx context.Context, jobID, stepName string, stateData map[string]any) (*models.Checkpoint, error)
	GetLatestCheckpoint(ctx context.Context, jobID string) (*models.Checkpoint, error)
	CreateEvent(ctx context.Context, jobID string, eventType models.JobEventType, eventData map[string]any) error
}

// Library is the document/chunk lookup collaborator. Implemented by db.Client.
type Library interface {
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListChunks(ctx context.Context, documentID string) ([]models.Chunk, error)
	ListRecentCompletedDocuments(ctx context.Context, limit int) ([]models.Document, error)
	ListDocumentsOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]models.Document, error)
}

// Searcher is the keyword search collaborator. Implemented by db.Client.
type Searcher interface {
	KeywordSearch(ctx context.Context, query string, limit int) ([]models.SearchResult, error)
}

// Orchestrator runs job executions on a supervised goroutine pool. At most
// one in-process execution drives a given job id; across processes the
// compare-and-set status claim in the store provides the same guarantee.
type Orchestrator struct {
	store     Store
	library   Library
	searcher  Searcher
	transport llm.Transport
	cfg       config.Config
	logger    *slog.Logger
	collector *metrics.Collector

	sem chan struct{}
	wg  sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]struct{}

	// Injectable knobs for tests.
	now         func() time.Time
	minInterval time.Duration
}

// New creates an orchestrator with a pool of cfg.JobConcurrency workers.
func New(
	store Store,
	library Library,
	searcher Searcher,
	transport llm.Transport,
	cfg config.Config,
	logger *slog.Logger,
	collector *metrics.Collector,
) *Orchestrator {
	concurrency := cfg.JobConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:       store,
		library:     library,
		searcher:    searcher,
		transport:   transport,
		cfg:         cfg,
		logger:      logger,
		collector:   collector,
		sem:         make(chan struct{}, concurrency),
		inflight:    make(map[string]struct{}),
		now:         time.Now,
		minInterval: time.Second,
	}
}

// Dispatch schedules one execution of a job on the pool and returns
// immediately. Returns ErrAlreadyRunning if an in-process execution already
// drives this job; the cross-process race resolves via the status claim.
func (o *Orchestrator) Dispatch(ctx context.Context, jobID string) error {
	o.mu.Lock()
	if _, ok := o.inflight[jobID]; ok {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, jobID)
	}
	o.inflight[jobID] = struct{}{}
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			o.mu.Lock()
			delete(o.inflight, jobID)
			o.mu.Unlock()
		}()

		select {
		case o.sem <- struct{}{}:
			defer func() { <-o.sem }()
		case <-ctx.Done():
			o.logger.Warn("dispatch cancelled before execution", "job_id", jobID)
			return
		}

		o.execute(ctx, jobID)
	}()
	return nil
}

// Wait blocks until all dispatched executions have finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// execute claims the job, loads its latest checkpoint and runs the executor.
func (o *Orchestrator) execute(ctx context.Context, jobID string) {
	log := o.logger.With("job_id", jobID)

	job, claimed, err := o.store.TryMarkRunning(ctx, jobID)
	if err != nil {
		log.Error("failed to claim job", "error", err)
		return
	}
	if !claimed {
		log.Warn("job not claimable, skipping execution")
		return
	}

	checkpoint, err := o.store.GetLatestCheckpoint(ctx, jobID)
	if err != nil {
		o.fail(ctx, jobID, fmt.Sprintf("load checkpoint: %v", err), llm.NewLedger())
		return
	}

	o.run(ctx, job, checkpoint)
}

func (o *Orchestrator) run(ctx context.Context, job *models.Job, checkpoint *models.Checkpoint) {
	jobID := models.MustRecordIDString(job.ID)
	log := o.logger.With("job_id", jobID, "job_type", job.JobType)

	ledger := llm.NewLedger()
	jc := parseJobConfig(job.Config, o.cfg)

	client := llm.NewClient(o.transport, ledger, llm.Policy{
		Model:          o.cfg.LLMModel,
		MaxRetries:     o.cfg.LLMMaxRetries,
		Timeout:        time.Duration(o.cfg.LLMTimeoutSeconds) * time.Second,
		MinInterval:    o.minInterval,
		CostCeilingUSD: jc.MaxCostUSD,
	}, o.collector)
	client.OnRetry = func(attempt int, cause error) {
		_ = o.store.CreateEvent(ctx, jobID, models.EventRetry, map[string]any{
			"attempt": attempt + 1,
			"error":   cause.Error(),
		})
	}

	monitor := guardrail.NewMonitor(o.now(), guardrail.Limits{
		MaxRuntime: jc.MaxRuntime,
		MaxCostUSD: jc.MaxCostUSD,
	}, ledger, o.now)

	// Executor panics reach the fail transition instead of killing the
	// worker silently.
	defer func() {
		if r := recover(); r != nil {
			log.Error("executor panicked", "panic", r)
			o.fail(ctx, jobID, fmt.Sprintf("internal error: %v", r), ledger)
		}
	}()

	_ = o.store.CreateEvent(ctx, jobID, models.EventStart, map[string]any{
		"message": "Job started",
		"resumed": checkpoint != nil,
	})
	log.Info("job started", "resumed", checkpoint != nil)

	ex := &execution{
		jobID:      jobID,
		job:        job,
		client:     client,
		ledger:     ledger,
		monitor:    monitor,
		cfg:        jc,
		checkpoint: checkpoint,
		log:        log,
	}

	var result map[string]any
	var err error
	switch job.JobType {
	case models.JobTypeSummarization:
		result, err = o.runSummarization(ctx, ex)
	case models.JobTypeDeepSearch:
		result, err = o.runDeepSearch(ctx, ex)
	case models.JobTypeRefresh:
		result, err = o.runRefresh(ctx, ex)
	case models.JobTypeIngestion:
		result, err = o.runIngestion(ctx, ex)
	case models.JobTypeSearch:
		result, err = o.runSimpleSearch(ctx, ex)
	case models.JobTypeSynthesis:
		result, err = o.runSynthesis(ctx, ex)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownJobType, job.JobType)
	}

	if errors.Is(err, errHalted) {
		// Pause/stop already recorded the status change; just unwind.
		log.Info("execution halted", "reason", err)
		return
	}
	if err != nil {
		log.Error("job failed", "error", err)
		o.fail(ctx, jobID, err.Error(), ledger)
		return
	}

	// Fold the execution's ledger into the persisted result.
	stats := ledger.Stats()
	result["total_cost"] = stats["total_cost"]
	result["total_tokens"] = ledger.TotalTokens()
	result["stats"] = stats

	if err := o.store.CompleteJob(ctx, jobID, result); err != nil {
		log.Error("failed to store job result", "error", err)
		o.fail(ctx, jobID, fmt.Sprintf("store result: %v", err), ledger)
		return
	}
	_ = o.store.CreateEvent(ctx, jobID, models.EventComplete, map[string]any{
		"message": "Job completed successfully",
		"stats":   stats,
	})
	log.Info("job completed", "cost_usd", ledger.TotalCost(), "tokens", ledger.TotalTokens())
}

// fail performs the fail transition and emits the error event with ledger
// stats. Event logging is best effort; it never masks the transition.
func (o *Orchestrator) fail(ctx context.Context, jobID, message string, ledger *llm.Ledger) {
	if err := o.store.FailJob(ctx, jobID, message); err != nil {
		o.logger.Error("fail transition did not persist", "job_id", jobID, "error", err)
	}
	_ = o.store.CreateEvent(ctx, jobID, models.EventError, map[string]any{
		"error": message,
		"stats": ledger.Stats(),
	})
}

// checkControl observes cooperative pause/stop between checkpointed units of
// work. A paused or externally stopped job halts the executor without a fail
// transition.
func (o *Orchestrator) checkControl(ctx context.Context, jobID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", errHalted, err)
	}

	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job for control check: %w", err)
	}
	switch job.Status {
	case models.JobStatusPaused:
		return fmt.Errorf("%w: paused", errHalted)
	case models.JobStatusFailed:
		return fmt.Errorf("%w: stopped", errHalted)
	}
	return nil
}

// execution carries the per-run collaborators shared by all executors.
type execution struct {
	jobID      string
	job        *models.Job
	client     *llm.Client
	ledger     *llm.Ledger
	monitor    *guardrail.Monitor
	cfg        jobConfig
	checkpoint *models.Checkpoint
	log        *slog.Logger
}

// checkpoint persists progress and emits the matching audit event. The
// checkpoint write is synchronous and fatal on failure; the event is best
// effort.
func (o *Orchestrator) saveCheckpoint(
	ctx context.Context,
	ex *execution,
	stepName string,
	state any,
	eventData map[string]any,
) error {
	start := time.Now()
	if _, err := o.store.CreateCheckpoint(ctx, ex.jobID, stepName, stateMap(state)); err != nil {
		return fmt.Errorf("checkpoint %s: %w", stepName, err)
	}
	if o.collector != nil {
		o.collector.RecordTiming(metrics.OpCheckpoint, time.Since(start))
	}
	if eventData != nil {
		_ = o.store.CreateEvent(ctx, ex.jobID, models.EventCheckpoint, eventData)
	}
	return nil
}

// truncate keeps the prefix and appends an explicit marker. The cut backs
// up to a rune boundary so the result is always valid UTF-8.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + "... [truncated]"
}
