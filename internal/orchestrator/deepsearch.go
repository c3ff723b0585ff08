package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/knowledgetools/agentkb/internal/llm"
	"github.com/knowledgetools/agentkb/internal/models"
	"github.com/knowledgetools/agentkb/internal/sanitize"
)

const (
	maxSubQueries      = 5
	minSubQueryLength  = 5
	hitsPerSubQuery    = 5
	maxHitContent      = 500
	maxSynthesisInput  = 12000
	decomposeMaxTokens = 500
	answerMaxTokens    = 4000
)

// runDeepSearch decomposes the query into sub-queries with one metered call,
// runs the keyword search per sub-query, and synthesizes a final answer.
// The decomposition is checkpointed once, immediately, and reused on resume.
func (o *Orchestrator) runDeepSearch(ctx context.Context, ex *execution) (map[string]any, error) {
	if ex.cfg.Query == "" {
		return nil, fmt.Errorf("%w: no query provided", ErrNoWork)
	}
	query := sanitize.Text(ex.cfg.Query, 500)

	state, err := decodeState[DeepSearchState](ex.checkpoint)
	if err != nil {
		return nil, err
	}

	var subQueries []string
	var allResults []SubQueryResult
	startIndex := 0
	if state != nil && len(state.SubQueries) > 0 {
		subQueries = state.SubQueries
		allResults = state.AllResults
		startIndex = state.ResultsGathered
		_ = o.store.CreateEvent(ctx, ex.jobID, models.EventResume, map[string]any{
			"message": "Resuming with existing sub-queries",
		})
	} else {
		ex.log.Info("decomposing query", "query", query)
		resp, err := ex.client.Complete(ctx, llm.Request{
			System: searchPrompt,
			Messages: []llm.Message{{
				Role: llm.RoleUser,
				Content: fmt.Sprintf(
					"Break down this complex query into 2-5 specific sub-queries that can be searched independently:\n\n%s\n\nReturn only the sub-queries, one per line. Do not include numbers or bullets.",
					query),
			}},
			MaxTokens:   decomposeMaxTokens,
			Temperature: o.cfg.LLMTemperature,
		})
		if err != nil {
			return nil, fmt.Errorf("decompose query: %w", err)
		}

		subQueries = parseSubQueries(resp.Content)
		if len(subQueries) == 0 {
			return nil, fmt.Errorf("%w: failed to decompose query into sub-queries", ErrNoWork)
		}

		err = o.saveCheckpoint(ctx, ex, "decompose_query", DeepSearchState{
			OriginalQuery: query,
			SubQueries:    subQueries,
		}, map[string]any{
			"message":     fmt.Sprintf("Decomposed query into %d sub-queries", len(subQueries)),
			"sub_queries": subQueries,
		})
		if err != nil {
			return nil, err
		}
	}

	for i := startIndex; i < len(subQueries); i++ {
		if err := o.checkControl(ctx, ex.jobID); err != nil {
			return nil, err
		}
		if err := ex.monitor.Check(); err != nil {
			return nil, err
		}

		subQuery := subQueries[i]
		ex.log.Info("searching sub-query",
			"progress", fmt.Sprintf("%d/%d", i+1, len(subQueries)), "sub_query", subQuery)

		hits, err := o.searcher.KeywordSearch(ctx, subQuery, hitsPerSubQuery)
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", subQuery, err)
		}

		result := SubQueryResult{SubQuery: subQuery, Results: make([]SearchHit, len(hits))}
		for j, hit := range hits {
			result.Results[j] = SearchHit{
				ChunkID:          models.MustRecordIDString(hit.ChunkID),
				DocumentID:       models.MustRecordIDString(hit.DocumentID),
				Content:          truncate(hit.Content, maxHitContent),
				Score:            hit.Score,
				Filename:         hit.Filename,
				DocumentMetadata: hit.DocumentMetadata,
			}
		}
		allResults = append(allResults, result)

		err = o.saveCheckpoint(ctx, ex, fmt.Sprintf("search_%d", i+1), DeepSearchState{
			OriginalQuery:   query,
			SubQueries:      subQueries,
			ResultsGathered: i + 1,
			AllResults:      allResults,
		}, map[string]any{
			"message":   fmt.Sprintf("Searched sub-query %d/%d", i+1, len(subQueries)),
			"sub_query": subQuery,
			"hits":      len(hits),
		})
		if err != nil {
			return nil, err
		}
	}

	if err := o.checkControl(ctx, ex.jobID); err != nil {
		return nil, err
	}
	if err := ex.monitor.Check(); err != nil {
		return nil, err
	}

	ex.log.Info("synthesizing search results")
	searchContext := truncate(formatSearchContext(allResults), maxSynthesisInput)

	synthesis, err := ex.client.Complete(ctx, llm.Request{
		System: searchPrompt,
		Messages: []llm.Message{{
			Role: llm.RoleUser,
			Content: fmt.Sprintf(
				"Original query: %s\n\nSearch results:\n%s\n\nProvide a comprehensive answer with source citations.",
				query, searchContext),
		}},
		MaxTokens:   answerMaxTokens,
		Temperature: o.cfg.LLMTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize results: %w", err)
	}

	return map[string]any{
		"query":          query,
		"sub_queries":    subQueries,
		"search_results": subQueryResultMaps(allResults),
		"synthesis":      synthesis.Content,
	}, nil
}

// parseSubQueries extracts sub-queries from the decomposition output, one
// per line. Blank, comment-like and too-short lines are discarded; at most
// maxSubQueries survive.
func parseSubQueries(content string) []string {
	var subQueries []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || len(line) <= minSubQueryLength {
			continue
		}
		subQueries = append(subQueries, line)
		if len(subQueries) == maxSubQueries {
			break
		}
	}
	return subQueries
}

func formatSearchContext(results []SubQueryResult) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Sub-query: %s\nResults:\n", r.SubQuery)
		for j, hit := range r.Results {
			if j > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "- %s... [Source: %s]", hit.Content, hit.Filename)
		}
	}
	return b.String()
}

func subQueryResultMaps(results []SubQueryResult) []map[string]any {
	out := make([]map[string]any, len(results))
	for i, r := range results {
		hits := make([]map[string]any, len(r.Results))
		for j, hit := range r.Results {
			hits[j] = map[string]any{
				"chunk_id":          hit.ChunkID,
				"document_id":       hit.DocumentID,
				"content":           hit.Content,
				"score":             hit.Score,
				"filename":          hit.Filename,
				"document_metadata": hit.DocumentMetadata,
			}
		}
		out[i] = map[string]any{
			"sub_query": r.SubQuery,
			"results":   hits,
		}
	}
	return out
}
