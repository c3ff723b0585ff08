package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/knowledgetools/agentkb/internal/db"
	"github.com/knowledgetools/agentkb/internal/llm"
	"github.com/knowledgetools/agentkb/internal/models"
	"github.com/knowledgetools/agentkb/internal/sanitize"
)

const (
	maxDocumentText  = 10000
	maxCombinedText  = 15000
	recentDocsLimit  = 10
	summaryMaxTokens = 2000
)

// runSummarization summarizes each document in the resolved set with one
// metered call, checkpointing after every document, then issues a final
// synthesis call when more than one summary exists.
func (o *Orchestrator) runSummarization(ctx context.Context, ex *execution) (map[string]any, error) {
	documentIDs := ex.cfg.DocumentIDs
	if len(documentIDs) == 0 {
		docs, err := o.library.ListRecentCompletedDocuments(ctx, recentDocsLimit)
		if err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		for _, doc := range docs {
			documentIDs = append(documentIDs, models.MustRecordIDString(doc.ID))
		}
	}
	if len(documentIDs) == 0 {
		return nil, fmt.Errorf("%w: no documents found to summarize", ErrNoWork)
	}

	state, err := decodeState[SummarizationState](ex.checkpoint)
	if err != nil {
		return nil, err
	}
	startIndex := 0
	var summaries []DocumentSummary
	if state != nil {
		startIndex = state.ProcessedCount
		summaries = state.Summaries
		_ = o.store.CreateEvent(ctx, ex.jobID, models.EventResume, map[string]any{
			"message": fmt.Sprintf("Resuming from document %d/%d", startIndex, len(documentIDs)),
		})
	}

	for i := startIndex; i < len(documentIDs); i++ {
		if err := o.checkControl(ctx, ex.jobID); err != nil {
			return nil, err
		}
		if err := ex.monitor.Check(); err != nil {
			return nil, err
		}

		docID := documentIDs[i]
		doc, err := o.library.GetDocument(ctx, docID)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				ex.log.Warn("document not found, skipping", "document_id", docID)
				continue
			}
			return nil, fmt.Errorf("load document %s: %w", docID, err)
		}

		chunks, err := o.library.ListChunks(ctx, docID)
		if err != nil {
			return nil, fmt.Errorf("load chunks for %s: %w", docID, err)
		}
		if len(chunks) == 0 {
			ex.log.Warn("document has no chunks, skipping", "document_id", docID)
			continue
		}

		parts := make([]string, len(chunks))
		for j, chunk := range chunks {
			parts[j] = chunk.Content
		}
		fullText := sanitize.Text(truncate(strings.Join(parts, "\n\n"), maxDocumentText), maxDocumentText)

		ex.log.Info("summarizing document",
			"progress", fmt.Sprintf("%d/%d", i+1, len(documentIDs)), "filename", doc.Filename)
		resp, err := ex.client.Complete(ctx, llm.Request{
			System: summarizationPrompt,
			Messages: []llm.Message{{
				Role:    llm.RoleUser,
				Content: "Summarize the following document:\n\n" + fullText,
			}},
			MaxTokens:   summaryMaxTokens,
			Temperature: o.cfg.LLMTemperature,
		})
		if err != nil {
			return nil, fmt.Errorf("summarize %s: %w", doc.Filename, err)
		}

		summaries = append(summaries, DocumentSummary{
			DocumentID: docID,
			Filename:   doc.Filename,
			Summary:    resp.Content,
			Cost:       resp.Cost,
			Tokens: map[string]int{
				"input_tokens":  resp.Usage.InputTokens,
				"output_tokens": resp.Usage.OutputTokens,
			},
		})

		err = o.saveCheckpoint(ctx, ex, fmt.Sprintf("summarize_doc_%d", i+1), SummarizationState{
			ProcessedCount: i + 1,
			TotalCount:     len(documentIDs),
			Summaries:      summaries,
			CurrentCost:    ex.ledger.TotalCost(),
		}, map[string]any{
			"message":     fmt.Sprintf("Completed document %d/%d", i+1, len(documentIDs)),
			"document_id": docID,
			"filename":    doc.Filename,
			"cost":        resp.Cost,
		})
		if err != nil {
			return nil, err
		}
	}

	if len(summaries) <= 1 {
		return map[string]any{
			"summaries":       summariesMaps(summaries),
			"total_documents": len(summaries),
		}, nil
	}

	// A resume past the synthesis checkpoint reuses the stored overview
	// instead of paying for the call again.
	if state != nil && state.Synthesis != "" && state.ProcessedCount >= len(documentIDs) {
		return map[string]any{
			"individual_summaries": summariesMaps(summaries),
			"synthesis":            state.Synthesis,
			"total_documents":      len(summaries),
		}, nil
	}

	// Combine all summaries into one overview.
	if err := o.checkControl(ctx, ex.jobID); err != nil {
		return nil, err
	}
	if err := ex.monitor.Check(); err != nil {
		return nil, err
	}

	sections := make([]string, len(summaries))
	for i, s := range summaries {
		sections[i] = fmt.Sprintf("Document: %s\n\n%s", s.Filename, s.Summary)
	}
	combined := truncate(strings.Join(sections, "\n\n---\n\n"), maxCombinedText)

	ex.log.Info("synthesizing summaries", "count", len(summaries))
	synthesis, err := ex.client.Complete(ctx, llm.Request{
		System: synthesisPrompt,
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: "Synthesize these document summaries into a single overview:\n\n" + combined,
		}},
		MaxTokens:   3000,
		Temperature: o.cfg.LLMTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize summaries: %w", err)
	}

	err = o.saveCheckpoint(ctx, ex, "synthesis", SummarizationState{
		ProcessedCount: len(documentIDs),
		TotalCount:     len(documentIDs),
		Summaries:      summaries,
		CurrentCost:    ex.ledger.TotalCost(),
		Synthesis:      synthesis.Content,
	}, map[string]any{
		"message": "Synthesized all summaries",
		"cost":    synthesis.Cost,
	})
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"individual_summaries": summariesMaps(summaries),
		"synthesis":            synthesis.Content,
		"total_documents":      len(summaries),
	}, nil
}

func summariesMaps(summaries []DocumentSummary) []map[string]any {
	out := make([]map[string]any, len(summaries))
	for i, s := range summaries {
		out[i] = map[string]any{
			"document_id": s.DocumentID,
			"filename":    s.Filename,
			"summary":     s.Summary,
			"cost":        s.Cost,
			"tokens":      s.Tokens,
		}
	}
	return out
}
