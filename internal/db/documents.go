package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/knowledgetools/agentkb/internal/metrics"
	"github.com/knowledgetools/agentkb/internal/models"
)

// CreateDocument inserts a document record and returns it.
func (c *Client) CreateDocument(
	ctx context.Context,
	filename string,
	status models.DocumentStatus,
	metadata map[string]any,
) (*models.Document, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}

	sql := `
		CREATE type::record("document", $id) SET
			filename = $filename,
			status = $status,
			metadata = $metadata,
			upload_timestamp = time::now()
		RETURN AFTER
	`

	results, err := query[[]models.Document](ctx, c, sql, map[string]any{
		"id":       uuid.NewString(),
		"filename": filename,
		"status":   string(status),
		"metadata": metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("create document: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("create document: no result returned")
	}
	return &(*results)[0].Result[0], nil
}

// GetDocument retrieves a document by ID. Returns ErrNotFound if it does not exist.
func (c *Client) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	results, err := query[[]models.Document](ctx, c, `
		SELECT * FROM type::record("document", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get document: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("get document %s: %w", id, ErrNotFound)
	}
	return &(*results)[0].Result[0], nil
}

// UpdateDocumentStatus sets a document's processing status.
func (c *Client) UpdateDocumentStatus(ctx context.Context, id string, status models.DocumentStatus) error {
	_, err := query[any](ctx, c, `
		UPDATE type::record("document", $id) SET status = $status
	`, map[string]any{"id": id, "status": string(status)})
	if err != nil {
		return fmt.Errorf("update document status: %w", wrapQueryError(err))
	}
	return nil
}

// CreateChunks inserts chunks for a document in order.
func (c *Client) CreateChunks(ctx context.Context, documentID string, contents []string) error {
	for i, content := range contents {
		_, err := query[any](ctx, c, `
			CREATE type::record("chunk", $id) SET
				document = type::record("document", $doc_id),
				chunk_index = $index,
				content = $content,
				created_at = time::now()
		`, map[string]any{
			"id":      uuid.NewString(),
			"doc_id":  documentID,
			"index":   i,
			"content": content,
		})
		if err != nil {
			return fmt.Errorf("create chunk %d: %w", i, wrapQueryError(err))
		}
	}
	return nil
}

// ListChunks returns a document's chunks in chunk_index order.
func (c *Client) ListChunks(ctx context.Context, documentID string) ([]models.Chunk, error) {
	results, err := query[[]models.Chunk](ctx, c, `
		SELECT * FROM chunk
		WHERE document = type::record("document", $doc_id)
		ORDER BY chunk_index ASC
	`, map[string]any{"doc_id": documentID})
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.Chunk{}, nil
	}
	return (*results)[0].Result, nil
}

// ListRecentCompletedDocuments returns the most recently uploaded completed
// documents, newest first.
func (c *Client) ListRecentCompletedDocuments(ctx context.Context, limit int) ([]models.Document, error) {
	results, err := query[[]models.Document](ctx, c, `
		SELECT * FROM document
		WHERE status = 'completed'
		ORDER BY upload_timestamp DESC
		LIMIT $limit
	`, map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("list recent documents: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.Document{}, nil
	}
	return (*results)[0].Result, nil
}

// ListDocumentsOlderThan returns completed documents uploaded before the
// cutoff, oldest first. Used to select stale documents for refresh.
func (c *Client) ListDocumentsOlderThan(
	ctx context.Context,
	cutoff time.Time,
	limit int,
) ([]models.Document, error) {
	results, err := query[[]models.Document](ctx, c, `
		SELECT * FROM document
		WHERE status = 'completed' AND upload_timestamp < <datetime>$cutoff
		ORDER BY upload_timestamp ASC
		LIMIT $limit
	`, map[string]any{
		"cutoff": cutoff.UTC().Format(time.RFC3339),
		"limit":  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list stale documents: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.Document{}, nil
	}
	return (*results)[0].Result, nil
}

// KeywordSearch performs BM25 full-text search over chunk content.
// Returns ranked results with parent document metadata.
func (c *Client) KeywordSearch(ctx context.Context, term string, limit int) ([]models.SearchResult, error) {
	start := time.Now()
	sql := `
		SELECT
			id AS chunk_id,
			document AS document_id,
			content,
			search::score(0) AS score,
			document.filename AS filename,
			document.metadata AS document_metadata
		FROM chunk
		WHERE content @0@ $q
		ORDER BY score DESC
		LIMIT $limit
	`

	results, err := query[[]models.SearchResult](ctx, c, sql, map[string]any{
		"q":     term,
		"limit": limit,
	})
	if c.collector != nil {
		c.collector.RecordTiming(metrics.OpSearch, time.Since(start))
	}
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.SearchResult{}, nil
	}
	return (*results)[0].Result, nil
}
