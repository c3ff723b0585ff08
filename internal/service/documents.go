package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/knowledgetools/agentkb/internal/db"
	"github.com/knowledgetools/agentkb/internal/models"
	"github.com/knowledgetools/agentkb/internal/parser"
	"github.com/knowledgetools/agentkb/internal/sanitize"
)

// DocumentService handles document ingestion and keyword search.
type DocumentService struct {
	db *db.Client
}

// NewDocumentService creates a document service.
func NewDocumentService(dbClient *db.Client) *DocumentService {
	return &DocumentService{db: dbClient}
}

// Ingest stores a document and its chunked text, marking it completed once
// all chunks are written.
func (s *DocumentService) Ingest(
	ctx context.Context,
	filename string,
	content string,
	metadata map[string]any,
) (*models.Document, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: document %q has no text content", ErrValidation, filename)
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["filename"] = filename

	doc, err := s.db.CreateDocument(ctx, filename, models.DocumentStatusProcessing, metadata)
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	docID := models.MustRecordIDString(doc.ID)

	chunks := parser.SplitText(content, parser.DefaultChunkConfig())
	if err := s.db.CreateChunks(ctx, docID, chunks); err != nil {
		if ferr := s.db.UpdateDocumentStatus(ctx, docID, models.DocumentStatusFailed); ferr != nil {
			slog.Warn("failed to mark document failed", "document_id", docID, "error", ferr)
		}
		return nil, fmt.Errorf("store chunks: %w", err)
	}

	if err := s.db.UpdateDocumentStatus(ctx, docID, models.DocumentStatusCompleted); err != nil {
		return nil, fmt.Errorf("finalize document: %w", err)
	}
	doc.Status = models.DocumentStatusCompleted

	slog.Info("document ingested", "document_id", docID, "filename", filename, "chunks", len(chunks))
	return doc, nil
}

// Search runs a keyword search over chunk content.
func (s *DocumentService) Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	query = sanitize.SearchQuery(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", ErrValidation)
	}
	if limit <= 0 {
		limit = 10
	}
	return s.db.KeywordSearch(ctx, query, limit)
}
