package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/knowledgetools/agentkb/internal/llm"
	"github.com/knowledgetools/agentkb/internal/models"
	"github.com/knowledgetools/agentkb/internal/sanitize"
)

// Executors for the job types that need no multi-step checkpointing.

// runIngestion exists for audit completeness; document ingestion itself is
// performed by the upload pipeline before the job record appears.
func (o *Orchestrator) runIngestion(ctx context.Context, ex *execution) (map[string]any, error) {
	_ = ctx
	ex.log.Info("ingestion job acknowledged")
	return map[string]any{
		"message": "Ingestion handled by the upload pipeline",
		"status":  "completed",
	}, nil
}

// runSimpleSearch performs a single keyword search without decomposition or
// synthesis.
func (o *Orchestrator) runSimpleSearch(ctx context.Context, ex *execution) (map[string]any, error) {
	if ex.cfg.Query == "" {
		return nil, fmt.Errorf("%w: no query provided", ErrNoWork)
	}
	query := sanitize.Text(ex.cfg.Query, 500)

	hits, err := o.searcher.KeywordSearch(ctx, query, 10)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	results := make([]map[string]any, len(hits))
	for i, hit := range hits {
		results[i] = map[string]any{
			"chunk_id":          models.MustRecordIDString(hit.ChunkID),
			"document_id":       models.MustRecordIDString(hit.DocumentID),
			"content":           hit.Content,
			"score":             hit.Score,
			"filename":          hit.Filename,
			"document_metadata": hit.DocumentMetadata,
		}
	}

	return map[string]any{
		"query":         query,
		"results":       results,
		"total_results": len(results),
	}, nil
}

// runSynthesis combines the summaries already produced by prior
// summarization jobs for the configured documents into one overview.
func (o *Orchestrator) runSynthesis(ctx context.Context, ex *execution) (map[string]any, error) {
	if len(ex.cfg.DocumentIDs) == 0 {
		return nil, fmt.Errorf("%w: no documents to synthesize", ErrNoWork)
	}
	if err := ex.monitor.Check(); err != nil {
		return nil, err
	}

	var sections []string
	for _, docID := range ex.cfg.DocumentIDs {
		doc, err := o.library.GetDocument(ctx, docID)
		if err != nil {
			ex.log.Warn("document not found, skipping", "document_id", docID)
			continue
		}
		chunks, err := o.library.ListChunks(ctx, docID)
		if err != nil || len(chunks) == 0 {
			ex.log.Warn("document has no chunks, skipping", "document_id", docID)
			continue
		}
		parts := make([]string, len(chunks))
		for j, chunk := range chunks {
			parts[j] = chunk.Content
		}
		text := truncate(strings.Join(parts, "\n\n"), maxDocumentText)
		sections = append(sections, fmt.Sprintf("Document: %s\n\n%s", doc.Filename, text))
	}
	if len(sections) == 0 {
		return nil, fmt.Errorf("%w: no readable documents to synthesize", ErrNoWork)
	}

	combined := sanitize.Text(truncate(strings.Join(sections, "\n\n---\n\n"), maxCombinedText), maxCombinedText)

	resp, err := ex.client.Complete(ctx, llm.Request{
		System: synthesisPrompt,
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: "Synthesize these documents into a single overview:\n\n" + combined,
		}},
		MaxTokens:   3000,
		Temperature: o.cfg.LLMTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize documents: %w", err)
	}

	return map[string]any{
		"synthesis":       resp.Content,
		"total_documents": len(sections),
	}, nil
}
