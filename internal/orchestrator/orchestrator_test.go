package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/knowledgetools/agentkb/internal/config"
	"github.com/knowledgetools/agentkb/internal/db"
	"github.com/knowledgetools/agentkb/internal/llm"
	"github.com/knowledgetools/agentkb/internal/models"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// ---------------------------------------------------------------------------
// In-memory fakes for the orchestrator's collaborators.
// ---------------------------------------------------------------------------

type storedEvent struct {
	jobID     string
	eventType models.JobEventType
	data      map[string]any
}

type fakeStore struct {
	mu          sync.Mutex
	jobs        map[string]*models.Job
	checkpoints []*models.Checkpoint
	events      []storedEvent
}

func newFakeStore() *fakeStore {
	return &fakeStore{jobs: make(map[string]*models.Job)}
}

func (s *fakeStore) addJob(id string, jobType models.JobType, status models.JobStatus, cfg map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[id] = &models.Job{
		ID:      models.JobRecordID(id),
		JobType: jobType,
		Status:  status,
		Config:  cfg,
	}
}

func (s *fakeStore) setStatus(id string, status models.JobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[id].Status = status
}

func (s *fakeStore) job(id string) models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.jobs[id]
}

func (s *fakeStore) jobCheckpoints(id string) []*models.Checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Checkpoint
	for _, cp := range s.checkpoints {
		if models.MustRecordIDString(cp.JobID) == id {
			out = append(out, cp)
		}
	}
	return out
}

func (s *fakeStore) eventTypes(id string) []models.JobEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.JobEventType
	for _, ev := range s.events {
		if ev.jobID == id {
			out = append(out, ev.eventType)
		}
	}
	return out
}

func (s *fakeStore) GetJob(_ context.Context, id string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("get job: %w", db.ErrNotFound)
	}
	copied := *job
	return &copied, nil
}

func (s *fakeStore) TryMarkRunning(_ context.Context, id string) (*models.Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, false, fmt.Errorf("claim job: %w", db.ErrNotFound)
	}
	if job.Status != models.JobStatusPending && job.Status != models.JobStatusPaused {
		return nil, false, nil
	}
	job.Status = models.JobStatusRunning
	now := time.Now()
	if job.StartedAt == nil {
		job.StartedAt = &now
	}
	copied := *job
	return &copied, true, nil
}

func (s *fakeStore) CompleteJob(_ context.Context, id string, result map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status != models.JobStatusRunning {
		return errors.New("job not running")
	}
	job.Status = models.JobStatusCompleted
	job.Result = result
	now := time.Now()
	job.CompletedAt = &now
	return nil
}

func (s *fakeStore) FailJob(_ context.Context, id, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("fail job: %w", db.ErrNotFound)
	}
	if job.Status.Terminal() {
		return nil
	}
	job.Status = models.JobStatusFailed
	job.ErrorMessage = &message
	now := time.Now()
	job.CompletedAt = &now
	return nil
}

func (s *fakeStore) CreateCheckpoint(_ context.Context, jobID, stepName string, stateData map[string]any) (*models.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := &models.Checkpoint{
		ID:        models.JobRecordID(fmt.Sprintf("cp-%d", len(s.checkpoints))),
		JobID:     models.JobRecordID(jobID),
		StepName:  stepName,
		StateData: stateData,
		Timestamp: time.Now(),
	}
	s.checkpoints = append(s.checkpoints, cp)
	return cp, nil
}

func (s *fakeStore) GetLatestCheckpoint(_ context.Context, jobID string) (*models.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.checkpoints) - 1; i >= 0; i-- {
		if models.MustRecordIDString(s.checkpoints[i].JobID) == jobID {
			copied := *s.checkpoints[i]
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) CreateEvent(_ context.Context, jobID string, eventType models.JobEventType, eventData map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, storedEvent{jobID: jobID, eventType: eventType, data: eventData})
	return nil
}

type fakeLibrary struct {
	mu     sync.Mutex
	docs   map[string]*models.Document
	chunks map[string][]models.Chunk
	stale  []models.Document
	recent []models.Document
}

func newFakeLibrary() *fakeLibrary {
	return &fakeLibrary{
		docs:   make(map[string]*models.Document),
		chunks: make(map[string][]models.Chunk),
	}
}

func (l *fakeLibrary) addDocument(id, filename string, contents ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.docs[id] = &models.Document{
		ID:       models.DocumentRecordID(id),
		Filename: filename,
		Status:   models.DocumentStatusCompleted,
	}
	for i, content := range contents {
		l.chunks[id] = append(l.chunks[id], models.Chunk{
			Document:   models.DocumentRecordID(id),
			ChunkIndex: i,
			Content:    content,
		})
	}
}

func (l *fakeLibrary) GetDocument(_ context.Context, id string) (*models.Document, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	doc, ok := l.docs[id]
	if !ok {
		return nil, fmt.Errorf("get document: %w", db.ErrNotFound)
	}
	copied := *doc
	return &copied, nil
}

func (l *fakeLibrary) ListChunks(_ context.Context, documentID string) ([]models.Chunk, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.chunks[documentID], nil
}

func (l *fakeLibrary) ListRecentCompletedDocuments(_ context.Context, limit int) ([]models.Document, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.recent) > limit {
		return l.recent[:limit], nil
	}
	return l.recent, nil
}

func (l *fakeLibrary) ListDocumentsOlderThan(_ context.Context, _ time.Time, limit int) ([]models.Document, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.stale) > limit {
		return l.stale[:limit], nil
	}
	return l.stale, nil
}

type fakeSearcher struct {
	mu      sync.Mutex
	hits    []models.SearchResult
	queries []string
}

func (f *fakeSearcher) KeywordSearch(_ context.Context, query string, _ int) ([]models.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	return f.hits, nil
}

// scriptedLLM replays fixed responses in order. An optional afterCall hook
// runs after each call, letting tests flip job state mid-run.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []string
	calls     int
	afterCall func(call int)
}

func (s *scriptedLLM) Generate(_ context.Context, _ llm.Request) (string, llm.TokenUsage, error) {
	s.mu.Lock()
	i := s.calls
	s.calls++
	hook := s.afterCall
	var content string
	if i < len(s.responses) {
		content = s.responses[i]
	} else {
		content = "overflow response"
	}
	s.mu.Unlock()

	if hook != nil {
		hook(i + 1)
	}
	return content, llm.TokenUsage{InputTokens: 100, OutputTokens: 100}, nil
}

func (s *scriptedLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

func testConfig() config.Config {
	return config.Config{
		LLMModel:             "claude-sonnet-4-20250514",
		LLMMaxRetries:        3,
		LLMTimeoutSeconds:    60,
		LLMTemperature:       1.0,
		MaxJobRuntimeMinutes: 120,
		MaxJobCostUSD:        5.0,
		JobConcurrency:       2,
	}
}

func newTestOrchestrator(store *fakeStore, library *fakeLibrary, searcher *fakeSearcher, transport llm.Transport) *Orchestrator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	o := New(store, library, searcher, transport, testConfig(), logger, nil)
	o.minInterval = 0
	o.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return o
}

func runJob(t *testing.T, o *Orchestrator, jobID string) {
	t.Helper()
	if err := o.Dispatch(context.Background(), jobID); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	o.Wait()
}

func containsEvent(types []models.JobEventType, want models.JobEventType) bool {
	for _, et := range types {
		if et == want {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Summarization
// ---------------------------------------------------------------------------

func TestSummarizationRunsToCompletion(t *testing.T) {
	store := newFakeStore()
	library := newFakeLibrary()
	library.addDocument("doc-1", "alpha.txt", "Alpha is the first letter.")
	library.addDocument("doc-2", "beta.txt", "Beta comes second.")
	transport := &scriptedLLM{responses: []string{"summary one", "summary two", "combined overview"}}

	store.addJob("job-1", models.JobTypeSummarization, models.JobStatusPending, map[string]any{
		"document_ids": []any{"doc-1", "doc-2"},
	})

	o := newTestOrchestrator(store, library, &fakeSearcher{}, transport)
	runJob(t, o, "job-1")

	job := store.job("job-1")
	if job.Status != models.JobStatusCompleted {
		t.Fatalf("status = %s, want completed (error: %v)", job.Status, job.ErrorMessage)
	}
	if transport.callCount() != 3 {
		t.Errorf("LLM calls = %d, want 3 (two summaries plus synthesis)", transport.callCount())
	}

	// One checkpoint per document, then one for the synthesis.
	cps := store.jobCheckpoints("job-1")
	if len(cps) != 3 {
		t.Fatalf("checkpoints = %d, want 3", len(cps))
	}
	wantSteps := []string{"summarize_doc_1", "summarize_doc_2", "synthesis"}
	wantProcessed := []float64{1, 2, 2}
	for i, cp := range cps {
		if cp.StepName != wantSteps[i] {
			t.Errorf("checkpoint[%d].StepName = %q, want %q", i, cp.StepName, wantSteps[i])
		}
		if got := cp.StateData["processed_count"]; got != wantProcessed[i] {
			t.Errorf("checkpoint[%d] processed_count = %v, want %v", i, got, wantProcessed[i])
		}
	}

	if job.Result["synthesis"] != "combined overview" {
		t.Errorf("result synthesis = %v", job.Result["synthesis"])
	}
	if job.Result["total_documents"] != 2 {
		t.Errorf("result total_documents = %v, want 2", job.Result["total_documents"])
	}
	if cost, ok := job.Result["total_cost"].(float64); !ok || cost <= 0 {
		t.Errorf("result total_cost = %v, want > 0", job.Result["total_cost"])
	}
	if job.Result["total_tokens"] != 600 {
		t.Errorf("result total_tokens = %v, want 600", job.Result["total_tokens"])
	}
	if job.CompletedAt == nil {
		t.Error("CompletedAt not set on terminal job")
	}

	events := store.eventTypes("job-1")
	for _, want := range []models.JobEventType{models.EventStart, models.EventCheckpoint, models.EventComplete} {
		if !containsEvent(events, want) {
			t.Errorf("missing %s event in %v", want, events)
		}
	}
}

func TestSummarizationResumesFromCheckpoint(t *testing.T) {
	store := newFakeStore()
	library := newFakeLibrary()
	library.addDocument("doc-1", "alpha.txt", "Alpha content.")
	library.addDocument("doc-2", "beta.txt", "Beta content.")
	transport := &scriptedLLM{responses: []string{"summary two", "combined overview"}}

	store.addJob("job-1", models.JobTypeSummarization, models.JobStatusPaused, map[string]any{
		"document_ids": []any{"doc-1", "doc-2"},
	})
	_, _ = store.CreateCheckpoint(context.Background(), "job-1", "summarize_doc_1", stateMap(SummarizationState{
		ProcessedCount: 1,
		TotalCount:     2,
		Summaries: []DocumentSummary{{
			DocumentID: "doc-1",
			Filename:   "alpha.txt",
			Summary:    "summary one",
		}},
	}))

	o := newTestOrchestrator(store, library, &fakeSearcher{}, transport)
	runJob(t, o, "job-1")

	job := store.job("job-1")
	if job.Status != models.JobStatusCompleted {
		t.Fatalf("status = %s, want completed (error: %v)", job.Status, job.ErrorMessage)
	}
	// Document one was summarized before the interruption; only the second
	// document and the synthesis cost new calls.
	if transport.callCount() != 2 {
		t.Errorf("LLM calls = %d, want 2", transport.callCount())
	}

	summaries, ok := job.Result["individual_summaries"].([]map[string]any)
	if !ok || len(summaries) != 2 {
		t.Fatalf("individual_summaries = %v, want 2 entries", job.Result["individual_summaries"])
	}
	if summaries[0]["summary"] != "summary one" {
		t.Errorf("first summary = %v, want preserved checkpoint value", summaries[0]["summary"])
	}
	if summaries[1]["summary"] != "summary two" {
		t.Errorf("second summary = %v", summaries[1]["summary"])
	}

	if !containsEvent(store.eventTypes("job-1"), models.EventResume) {
		t.Error("missing resume event")
	}
}

func TestSummarizationResumeAfterSynthesisReusesOverview(t *testing.T) {
	store := newFakeStore()
	library := newFakeLibrary()
	library.addDocument("doc-1", "alpha.txt", "Alpha content.")
	library.addDocument("doc-2", "beta.txt", "Beta content.")
	transport := &scriptedLLM{responses: []string{"redone overview"}}

	store.addJob("job-1", models.JobTypeSummarization, models.JobStatusPaused, map[string]any{
		"document_ids": []any{"doc-1", "doc-2"},
	})
	_, _ = store.CreateCheckpoint(context.Background(), "job-1", "synthesis", stateMap(SummarizationState{
		ProcessedCount: 2,
		TotalCount:     2,
		Summaries: []DocumentSummary{
			{DocumentID: "doc-1", Filename: "alpha.txt", Summary: "summary one"},
			{DocumentID: "doc-2", Filename: "beta.txt", Summary: "summary two"},
		},
		Synthesis: "checkpointed overview",
	}))

	o := newTestOrchestrator(store, library, &fakeSearcher{}, transport)
	runJob(t, o, "job-1")

	job := store.job("job-1")
	if job.Status != models.JobStatusCompleted {
		t.Fatalf("status = %s, want completed (error: %v)", job.Status, job.ErrorMessage)
	}
	// Every step was checkpointed before the interruption, so completion
	// must not issue a single new call.
	if transport.callCount() != 0 {
		t.Errorf("LLM calls = %d, want 0", transport.callCount())
	}
	if job.Result["synthesis"] != "checkpointed overview" {
		t.Errorf("synthesis = %v, want checkpointed overview", job.Result["synthesis"])
	}
	if job.Result["total_documents"] != 2 {
		t.Errorf("total_documents = %v, want 2", job.Result["total_documents"])
	}
}

func TestSummarizationWithNoDocumentsFails(t *testing.T) {
	store := newFakeStore()
	store.addJob("job-1", models.JobTypeSummarization, models.JobStatusPending, nil)

	o := newTestOrchestrator(store, newFakeLibrary(), &fakeSearcher{}, &scriptedLLM{})
	runJob(t, o, "job-1")

	job := store.job("job-1")
	if job.Status != models.JobStatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if job.ErrorMessage == nil || !strings.Contains(*job.ErrorMessage, "no documents") {
		t.Errorf("error = %v, want mention of missing documents", job.ErrorMessage)
	}
	if !containsEvent(store.eventTypes("job-1"), models.EventError) {
		t.Error("missing error event")
	}
}

// ---------------------------------------------------------------------------
// Deep search
// ---------------------------------------------------------------------------

func TestDeepSearchRunsToCompletion(t *testing.T) {
	store := newFakeStore()
	searcher := &fakeSearcher{hits: []models.SearchResult{
		{
			ChunkID:    surrealmodels.RecordID{Table: "chunk", ID: "c-1"},
			DocumentID: models.DocumentRecordID("doc-1"),
			Content:    "chunk content one",
			Score:      1.5,
			Filename:   "alpha.txt",
		},
	}}
	transport := &scriptedLLM{responses: []string{
		"first sub-query about topology\nsecond sub-query about routing\nthird sub-query about policy",
		"final cited answer",
	}}

	store.addJob("job-1", models.JobTypeDeepSearch, models.JobStatusPending, map[string]any{
		"query": "how does cluster networking work",
	})

	o := newTestOrchestrator(store, newFakeLibrary(), searcher, transport)
	runJob(t, o, "job-1")

	job := store.job("job-1")
	if job.Status != models.JobStatusCompleted {
		t.Fatalf("status = %s, want completed (error: %v)", job.Status, job.ErrorMessage)
	}
	// Decomposition plus final synthesis; the three searches hit the index,
	// not the model.
	if transport.callCount() != 2 {
		t.Errorf("LLM calls = %d, want 2", transport.callCount())
	}
	if len(searcher.queries) != 3 {
		t.Errorf("searches = %d, want 3", len(searcher.queries))
	}

	cps := store.jobCheckpoints("job-1")
	wantSteps := []string{"decompose_query", "search_1", "search_2", "search_3"}
	if len(cps) != len(wantSteps) {
		t.Fatalf("checkpoints = %d, want %d", len(cps), len(wantSteps))
	}
	for i, cp := range cps {
		if cp.StepName != wantSteps[i] {
			t.Errorf("checkpoint[%d].StepName = %q, want %q", i, cp.StepName, wantSteps[i])
		}
	}

	subQueries, ok := job.Result["sub_queries"].([]string)
	if !ok || len(subQueries) != 3 {
		t.Fatalf("sub_queries = %v, want 3", job.Result["sub_queries"])
	}
	if job.Result["synthesis"] != "final cited answer" {
		t.Errorf("synthesis = %v", job.Result["synthesis"])
	}
}

func TestDeepSearchResumeSkipsDecomposition(t *testing.T) {
	store := newFakeStore()
	searcher := &fakeSearcher{}
	transport := &scriptedLLM{responses: []string{"final answer"}}

	store.addJob("job-1", models.JobTypeDeepSearch, models.JobStatusPaused, map[string]any{
		"query": "how does cluster networking work",
	})
	_, _ = store.CreateCheckpoint(context.Background(), "job-1", "search_1", stateMap(DeepSearchState{
		OriginalQuery:   "how does cluster networking work",
		SubQueries:      []string{"sub-query one long enough", "sub-query two long enough", "sub-query three long enough"},
		ResultsGathered: 1,
		AllResults:      []SubQueryResult{{SubQuery: "sub-query one long enough"}},
	}))

	o := newTestOrchestrator(store, newFakeLibrary(), searcher, transport)
	runJob(t, o, "job-1")

	job := store.job("job-1")
	if job.Status != models.JobStatusCompleted {
		t.Fatalf("status = %s, want completed (error: %v)", job.Status, job.ErrorMessage)
	}
	// No second decomposition: only the synthesis call.
	if transport.callCount() != 1 {
		t.Errorf("LLM calls = %d, want 1", transport.callCount())
	}
	// Sub-queries two and three remained to search.
	if len(searcher.queries) != 2 {
		t.Errorf("searches = %d, want 2", len(searcher.queries))
	}
}

func TestDeepSearchWithoutQueryFails(t *testing.T) {
	store := newFakeStore()
	store.addJob("job-1", models.JobTypeDeepSearch, models.JobStatusPending, nil)

	o := newTestOrchestrator(store, newFakeLibrary(), &fakeSearcher{}, &scriptedLLM{})
	runJob(t, o, "job-1")

	job := store.job("job-1")
	if job.Status != models.JobStatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if job.ErrorMessage == nil || !strings.Contains(*job.ErrorMessage, "no query") {
		t.Errorf("error = %v", job.ErrorMessage)
	}
}

// ---------------------------------------------------------------------------
// Refresh
// ---------------------------------------------------------------------------

func TestRefreshReviewsStaleDocuments(t *testing.T) {
	store := newFakeStore()
	library := newFakeLibrary()
	library.addDocument("doc-1", "old-one.txt", "Aging content one.")
	library.addDocument("doc-2", "old-two.txt", "Aging content two.")
	library.stale = []models.Document{
		{ID: models.DocumentRecordID("doc-1"), Filename: "old-one.txt"},
		{ID: models.DocumentRecordID("doc-2"), Filename: "old-two.txt"},
	}
	transport := &scriptedLLM{responses: []string{"review one", "review two"}}

	store.addJob("job-1", models.JobTypeRefresh, models.JobStatusPending, nil)

	o := newTestOrchestrator(store, library, &fakeSearcher{}, transport)
	runJob(t, o, "job-1")

	job := store.job("job-1")
	if job.Status != models.JobStatusCompleted {
		t.Fatalf("status = %s, want completed (error: %v)", job.Status, job.ErrorMessage)
	}
	if transport.callCount() != 2 {
		t.Errorf("LLM calls = %d, want 2", transport.callCount())
	}
	if job.Result["documents_reviewed"] != 2 {
		t.Errorf("documents_reviewed = %v, want 2", job.Result["documents_reviewed"])
	}

	cps := store.jobCheckpoints("job-1")
	if len(cps) != 2 || cps[0].StepName != "review_1" || cps[1].StepName != "review_2" {
		t.Errorf("checkpoints = %v", cps)
	}
}

// ---------------------------------------------------------------------------
// Guardrails and failure paths
// ---------------------------------------------------------------------------

func TestCostCeilingFailsJob(t *testing.T) {
	store := newFakeStore()
	library := newFakeLibrary()
	library.addDocument("doc-1", "alpha.txt", "Alpha content.")
	transport := &scriptedLLM{responses: []string{"summary"}}

	// 100 input plus 100 output tokens cost far more than this ceiling.
	store.addJob("job-1", models.JobTypeSummarization, models.JobStatusPending, map[string]any{
		"document_ids": []any{"doc-1"},
		"max_cost_usd": 0.0001,
	})

	o := newTestOrchestrator(store, library, &fakeSearcher{}, transport)
	runJob(t, o, "job-1")

	job := store.job("job-1")
	if job.Status != models.JobStatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if job.ErrorMessage == nil || !strings.Contains(*job.ErrorMessage, "cost limit") {
		t.Errorf("error = %v, want cost limit message", job.ErrorMessage)
	}
	if job.CompletedAt == nil {
		t.Error("CompletedAt not set on failed job")
	}
}

func TestUnknownJobTypeFails(t *testing.T) {
	store := newFakeStore()
	store.addJob("job-1", models.JobType("telepathy"), models.JobStatusPending, nil)

	o := newTestOrchestrator(store, newFakeLibrary(), &fakeSearcher{}, &scriptedLLM{})
	runJob(t, o, "job-1")

	job := store.job("job-1")
	if job.Status != models.JobStatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if job.ErrorMessage == nil || !strings.Contains(*job.ErrorMessage, "unknown job type") {
		t.Errorf("error = %v", job.ErrorMessage)
	}
}

func TestCorruptCheckpointFailsJob(t *testing.T) {
	store := newFakeStore()
	library := newFakeLibrary()
	library.addDocument("doc-1", "alpha.txt", "Alpha content.")

	store.addJob("job-1", models.JobTypeSummarization, models.JobStatusPaused, map[string]any{
		"document_ids": []any{"doc-1"},
	})
	_, _ = store.CreateCheckpoint(context.Background(), "job-1", "summarize_doc_1", map[string]any{
		"bogus_field": true,
	})

	o := newTestOrchestrator(store, library, &fakeSearcher{}, &scriptedLLM{})
	runJob(t, o, "job-1")

	job := store.job("job-1")
	if job.Status != models.JobStatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if job.ErrorMessage == nil || !strings.Contains(*job.ErrorMessage, "invalid checkpoint state") {
		t.Errorf("error = %v, want invalid checkpoint message", job.ErrorMessage)
	}
}

func TestTerminalJobIsNotClaimable(t *testing.T) {
	store := newFakeStore()
	store.addJob("job-1", models.JobTypeSummarization, models.JobStatusCompleted, nil)
	transport := &scriptedLLM{}

	o := newTestOrchestrator(store, newFakeLibrary(), &fakeSearcher{}, transport)
	runJob(t, o, "job-1")

	job := store.job("job-1")
	if job.Status != models.JobStatusCompleted {
		t.Errorf("status = %s, terminal state must not change", job.Status)
	}
	if transport.callCount() != 0 {
		t.Errorf("LLM calls = %d, want 0", transport.callCount())
	}
	if len(store.eventTypes("job-1")) != 0 {
		t.Errorf("events = %v, want none", store.eventTypes("job-1"))
	}
}

// ---------------------------------------------------------------------------
// Control and concurrency
// ---------------------------------------------------------------------------

func TestPauseHaltsBetweenDocuments(t *testing.T) {
	store := newFakeStore()
	library := newFakeLibrary()
	library.addDocument("doc-1", "alpha.txt", "Alpha content.")
	library.addDocument("doc-2", "beta.txt", "Beta content.")

	transport := &scriptedLLM{responses: []string{"summary one", "summary two"}}
	transport.afterCall = func(call int) {
		if call == 1 {
			store.setStatus("job-1", models.JobStatusPaused)
		}
	}

	store.addJob("job-1", models.JobTypeSummarization, models.JobStatusPending, map[string]any{
		"document_ids": []any{"doc-1", "doc-2"},
	})

	o := newTestOrchestrator(store, library, &fakeSearcher{}, transport)
	runJob(t, o, "job-1")

	job := store.job("job-1")
	if job.Status != models.JobStatusPaused {
		t.Fatalf("status = %s, want paused", job.Status)
	}
	// Work stopped after the first checkpointed unit.
	if transport.callCount() != 1 {
		t.Errorf("LLM calls = %d, want 1", transport.callCount())
	}
	if cps := store.jobCheckpoints("job-1"); len(cps) != 1 {
		t.Errorf("checkpoints = %d, want 1", len(cps))
	}
	// A cooperative halt is not a failure.
	events := store.eventTypes("job-1")
	if containsEvent(events, models.EventError) || containsEvent(events, models.EventComplete) {
		t.Errorf("events = %v, want neither error nor complete", events)
	}
	if job.CompletedAt != nil {
		t.Error("CompletedAt set on non-terminal job")
	}
}

func TestDispatchRejectsDuplicateExecution(t *testing.T) {
	store := newFakeStore()
	library := newFakeLibrary()
	library.addDocument("doc-1", "alpha.txt", "Alpha content.")

	started := make(chan struct{})
	release := make(chan struct{})
	transport := &blockingTransport{started: started, release: release}

	store.addJob("job-1", models.JobTypeSummarization, models.JobStatusPending, map[string]any{
		"document_ids": []any{"doc-1"},
	})

	o := newTestOrchestrator(store, library, &fakeSearcher{}, transport)
	if err := o.Dispatch(context.Background(), "job-1"); err != nil {
		t.Fatalf("first Dispatch() error = %v", err)
	}
	<-started

	err := o.Dispatch(context.Background(), "job-1")
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Dispatch() error = %v, want ErrAlreadyRunning", err)
	}

	close(release)
	o.Wait()

	if got := store.job("job-1").Status; got != models.JobStatusCompleted {
		t.Errorf("status = %s, want completed", got)
	}
}

// blockingTransport signals when the first call starts and waits for release.
type blockingTransport struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingTransport) Generate(_ context.Context, _ llm.Request) (string, llm.TokenUsage, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return "done", llm.TokenUsage{InputTokens: 10, OutputTokens: 10}, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func TestParseSubQueries(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"three clean lines", "query number one\nquery number two\nquery number three", 3},
		{"skips blanks and comments", "\n# header\nreal query line\n\n", 1},
		{"skips too short", "ok\nlong enough line", 1},
		{"caps at five", "query one x\nquery two x\nquery three x\nquery four x\nquery five x\nquery six x", 5},
		{"empty", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseSubQueries(tt.content); len(got) != tt.want {
				t.Errorf("parseSubQueries() = %d queries %v, want %d", len(got), got, tt.want)
			}
		})
	}
}

func TestDecodeStateRejectsUnknownFields(t *testing.T) {
	cp := &models.Checkpoint{
		StepName:  "summarize_doc_1",
		StateData: map[string]any{"processed_count": 1, "surprise": "value"},
	}
	_, err := decodeState[SummarizationState](cp)
	if !errors.Is(err, ErrResumptionData) {
		t.Fatalf("decodeState() error = %v, want ErrResumptionData", err)
	}
}

func TestDecodeStateRoundTrip(t *testing.T) {
	in := SummarizationState{
		ProcessedCount: 2,
		TotalCount:     3,
		Summaries:      []DocumentSummary{{DocumentID: "doc-1", Summary: "s"}},
		CurrentCost:    0.05,
	}
	out, err := decodeState[SummarizationState](&models.Checkpoint{StateData: stateMap(in)})
	if err != nil {
		t.Fatalf("decodeState() error = %v", err)
	}
	if out.ProcessedCount != 2 || out.TotalCount != 3 || len(out.Summaries) != 1 {
		t.Errorf("decodeState() = %+v", out)
	}
}

func TestDecodeStateNilCheckpoint(t *testing.T) {
	out, err := decodeState[SummarizationState](nil)
	if err != nil || out != nil {
		t.Errorf("decodeState(nil) = %v, %v, want nil, nil", out, err)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate() = %q", got)
	}
	got := truncate(strings.Repeat("x", 20), 10)
	if !strings.HasSuffix(got, "... [truncated]") || !strings.HasPrefix(got, "xxxxxxxxxx") {
		t.Errorf("truncate() = %q", got)
	}
	// A cut landing mid-rune backs up to the boundary.
	got = truncate("ab→cd", 3)
	if !utf8.ValidString(got) {
		t.Errorf("truncate() = %q, not valid UTF-8", got)
	}
	if !strings.HasPrefix(got, "ab... [truncated]") {
		t.Errorf("truncate() = %q, want cut before the multi-byte rune", got)
	}
}
