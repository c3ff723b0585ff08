package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/knowledgetools/agentkb/internal/llm"
	"github.com/knowledgetools/agentkb/internal/models"
	"github.com/knowledgetools/agentkb/internal/sanitize"
)

const (
	stalenessWindow = 90 * 24 * time.Hour
	sampleChunks    = 5
	maxSampleText   = 2000
	reviewMaxTokens = 1500
)

// runRefresh reviews completed documents older than the staleness window
// for currency and accuracy, one metered call per document, checkpointing
// after each review.
func (o *Orchestrator) runRefresh(ctx context.Context, ex *execution) (map[string]any, error) {
	cutoff := o.now().Add(-stalenessWindow)
	documents, err := o.library.ListDocumentsOlderThan(ctx, cutoff, ex.cfg.MaxDocuments)
	if err != nil {
		return nil, fmt.Errorf("list stale documents: %w", err)
	}
	if len(documents) == 0 {
		return nil, fmt.Errorf("%w: no documents found to review", ErrNoWork)
	}

	state, err := decodeState[RefreshState](ex.checkpoint)
	if err != nil {
		return nil, err
	}
	startIndex := 0
	var reviews []DocumentReview
	if state != nil {
		startIndex = state.Processed
		reviews = state.Reviews
		_ = o.store.CreateEvent(ctx, ex.jobID, models.EventResume, map[string]any{
			"message": fmt.Sprintf("Resuming from document %d/%d", startIndex, len(documents)),
		})
	}

	for i := startIndex; i < len(documents); i++ {
		if err := o.checkControl(ctx, ex.jobID); err != nil {
			return nil, err
		}
		if err := ex.monitor.Check(); err != nil {
			return nil, err
		}

		doc := documents[i]
		docID := models.MustRecordIDString(doc.ID)

		chunks, err := o.library.ListChunks(ctx, docID)
		if err != nil {
			return nil, fmt.Errorf("load chunks for %s: %w", docID, err)
		}
		if len(chunks) == 0 {
			ex.log.Warn("document has no chunks, skipping", "document_id", docID)
			continue
		}
		if len(chunks) > sampleChunks {
			chunks = chunks[:sampleChunks]
		}

		parts := make([]string, len(chunks))
		for j, chunk := range chunks {
			parts[j] = chunk.Content
		}
		sample := sanitize.Text(truncate(strings.Join(parts, "\n"), maxSampleText), maxSampleText)

		ex.log.Info("reviewing document",
			"progress", fmt.Sprintf("%d/%d", i+1, len(documents)), "filename", doc.Filename)
		resp, err := ex.client.Complete(ctx, llm.Request{
			System: refreshPrompt,
			Messages: []llm.Message{{
				Role: llm.RoleUser,
				Content: fmt.Sprintf(
					"Document: %s\nUploaded: %s\n\nContent sample:\n%s\n\nAnalyze this document for currency and accuracy.",
					doc.Filename, doc.UploadTimestamp.Format(time.RFC3339), sample),
			}},
			MaxTokens:   reviewMaxTokens,
			Temperature: o.cfg.LLMTemperature,
		})
		if err != nil {
			return nil, fmt.Errorf("review %s: %w", doc.Filename, err)
		}

		reviews = append(reviews, DocumentReview{
			DocumentID: docID,
			Filename:   doc.Filename,
			Uploaded:   doc.UploadTimestamp.Format(time.RFC3339),
			Analysis:   resp.Content,
			Cost:       resp.Cost,
		})

		err = o.saveCheckpoint(ctx, ex, fmt.Sprintf("review_%d", i+1), RefreshState{
			Processed: i + 1,
			Total:     len(documents),
			Reviews:   reviews,
		}, map[string]any{
			"message":     fmt.Sprintf("Reviewed document %d/%d", i+1, len(documents)),
			"document_id": docID,
			"filename":    doc.Filename,
			"cost":        resp.Cost,
		})
		if err != nil {
			return nil, err
		}
	}

	return map[string]any{
		"documents_reviewed": len(reviews),
		"reviews":            reviewMaps(reviews),
	}, nil
}

func reviewMaps(reviews []DocumentReview) []map[string]any {
	out := make([]map[string]any, len(reviews))
	for i, r := range reviews {
		out[i] = map[string]any{
			"document_id": r.DocumentID,
			"filename":    r.Filename,
			"uploaded":    r.Uploaded,
			"analysis":    r.Analysis,
			"cost":        r.Cost,
		}
	}
	return out
}
