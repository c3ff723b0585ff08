package orchestrator

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/knowledgetools/agentkb/internal/models"
)

// Typed checkpoint state per job type. Checkpoints persist these as opaque
// maps; decodeState recovers the typed form on resume and rejects shapes the
// executor cannot trust.

// DocumentSummary is one per-document result of a summarization run.
type DocumentSummary struct {
	DocumentID string         `json:"document_id"`
	Filename   string         `json:"filename"`
	Summary    string         `json:"summary"`
	Cost       float64        `json:"cost"`
	Tokens     map[string]int `json:"tokens,omitempty"`
}

// SummarizationState is the checkpoint payload for summarization jobs.
type SummarizationState struct {
	ProcessedCount int               `json:"processed_count"`
	TotalCount     int               `json:"total_count"`
	Summaries      []DocumentSummary `json:"summaries"`
	CurrentCost    float64           `json:"current_cost"`
	Synthesis      string            `json:"synthesis,omitempty"`
}

// SubQueryResult holds the search hits gathered for one sub-query.
type SubQueryResult struct {
	SubQuery string      `json:"sub_query"`
	Results  []SearchHit `json:"results"`
}

// SearchHit is one truncated keyword-search result stored in checkpoints.
type SearchHit struct {
	ChunkID          string         `json:"chunk_id"`
	DocumentID       string         `json:"document_id"`
	Content          string         `json:"content"`
	Score            float64        `json:"score"`
	Filename         string         `json:"filename"`
	DocumentMetadata map[string]any `json:"document_metadata,omitempty"`
}

// DeepSearchState is the checkpoint payload for deep_search jobs.
type DeepSearchState struct {
	OriginalQuery   string           `json:"original_query"`
	SubQueries      []string         `json:"sub_queries"`
	ResultsGathered int              `json:"results_gathered"`
	AllResults      []SubQueryResult `json:"all_results"`
}

// DocumentReview is one per-document result of a refresh run.
type DocumentReview struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Uploaded   string  `json:"uploaded,omitempty"`
	Analysis   string  `json:"analysis"`
	Cost       float64 `json:"cost"`
}

// RefreshState is the checkpoint payload for refresh jobs.
type RefreshState struct {
	Processed int              `json:"processed"`
	Total     int              `json:"total"`
	Reviews   []DocumentReview `json:"reviews"`
}

// decodeState converts a checkpoint's opaque state map into the executor's
// typed state. A nil checkpoint yields a nil state (fresh run). Any decode
// failure is an ErrResumptionData.
func decodeState[T any](cp *models.Checkpoint) (*T, error) {
	if cp == nil {
		return nil, nil
	}

	raw, err := json.Marshal(cp.StateData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResumptionData, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var state T
	if err := dec.Decode(&state); err != nil {
		return nil, fmt.Errorf("%w (step %q): %v", ErrResumptionData, cp.StepName, err)
	}
	return &state, nil
}

// stateMap converts a typed state into the opaque map stored in checkpoints.
func stateMap(state any) map[string]any {
	raw, err := json.Marshal(state)
	if err != nil {
		// States are plain structs of JSON-safe fields; this cannot fail.
		panic(fmt.Sprintf("encode checkpoint state: %v", err))
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		panic(fmt.Sprintf("decode checkpoint state: %v", err))
	}
	return m
}
