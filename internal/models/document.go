package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// DocumentStatus tracks document processing state.
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Document represents an ingested document whose text lives in chunks.
type Document struct {
	ID              surrealmodels.RecordID `json:"id"`
	Filename        string                 `json:"filename"`
	Status          DocumentStatus         `json:"status"`
	Metadata        map[string]any         `json:"metadata,omitempty"`
	UploadTimestamp time.Time              `json:"upload_timestamp"`
}

// Chunk is one ordered piece of a document's extracted text.
type Chunk struct {
	ID         surrealmodels.RecordID `json:"id"`
	Document   surrealmodels.RecordID `json:"document"`
	ChunkIndex int                    `json:"chunk_index"`
	Content    string                 `json:"content"`
	CreatedAt  time.Time              `json:"created_at"`
}

// SearchResult is one keyword-search hit over chunks.
type SearchResult struct {
	ChunkID          surrealmodels.RecordID `json:"chunk_id"`
	DocumentID       surrealmodels.RecordID `json:"document_id"`
	Content          string                 `json:"content"`
	Score            float64                `json:"score"`
	Filename         string                 `json:"filename"`
	DocumentMetadata map[string]any         `json:"document_metadata,omitempty"`
}
