package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Document kinds.
const (
	KindText     = "text"
	KindWeb      = "web"
	KindPDF      = "pdf"
	KindMarkdown = "markdown"
)

// Document processing statuses. A document enters the catalog as pending,
// moves to processing when ingestion starts, and ends in completed or
// failed. Terminal states are never left automatically; re-ingestion mints
// a new document id instead of retrying in place.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// DocumentRecord is a catalog entry for one ingested document. ChunkCount
// equals the number of chunks written to the vector index when Status is
// completed.
type DocumentRecord struct {
	ID         string         `json:"doc_id"`
	Title      string         `json:"title"`
	Source     string         `json:"source,omitempty"`
	Kind       string         `json:"doc_type"`
	Status     string         `json:"status"`
	ChunkCount int            `json:"chunk_count"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// DocumentStats summarizes the catalog by status and kind.
type DocumentStats struct {
	TotalDocuments int            `json:"total_documents"`
	ByStatus       map[string]int `json:"by_status"`
	ByKind         map[string]int `json:"by_type"`
}

// ValidKind reports whether kind is one of the supported document kinds.
func ValidKind(kind string) bool {
	switch kind {
	case KindText, KindWeb, KindPDF, KindMarkdown:
		return true
	}
	return false
}
