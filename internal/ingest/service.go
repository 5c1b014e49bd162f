// Package ingest turns raw content into catalog entries and indexed chunks.
// The pipeline is synchronous: the caller gets the final document status.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ltnguyen/askdocs/internal/chunker"
	"github.com/ltnguyen/askdocs/internal/retrieval"
	"github.com/ltnguyen/askdocs/internal/storage"
)

// ErrEmptyContent is returned when there is nothing to ingest.
var ErrEmptyContent = errors.New("document content is empty")

// Catalog records document lifecycle state.
type Catalog interface {
	SaveDocument(doc storage.DocumentRecord) error
}

// Indexer embeds and stores chunk records.
type Indexer interface {
	Add(ctx context.Context, records []retrieval.Record) (int, error)
}

// Receipt is returned to the caller after an ingestion attempt.
type Receipt struct {
	DocID      string `json:"doc_id"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	ChunkCount int    `json:"chunk_count"`
}

// Service runs the ingestion pipeline: catalog entry, chunking, embedding,
// index insert, final status.
type Service struct {
	catalog      Catalog
	index        Indexer
	chunkSize    int
	chunkOverlap int
	logger       *slog.Logger
}

func NewService(catalog Catalog, index Indexer, chunkSize, chunkOverlap int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		catalog:      catalog,
		index:        index,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		logger:       logger,
	}
}

// AddText ingests plain text content.
func (s *Service) AddText(ctx context.Context, content, title, source string, meta map[string]any) (Receipt, error) {
	return s.run(ctx, content, title, source, storage.KindText, meta, "Document added successfully")
}

// run is the shared pipeline. The document moves pending -> processing ->
// completed, or to failed with the error surfaced to the caller.
func (s *Service) run(ctx context.Context, content, title, source, kind string, meta map[string]any, okMessage string) (Receipt, error) {
	if strings.TrimSpace(content) == "" {
		return Receipt{}, ErrEmptyContent
	}

	docID := uuid.NewString()
	if title == "" {
		title = defaultTitle(kind, docID)
	}

	now := time.Now()
	doc := storage.DocumentRecord{
		ID:        docID,
		Title:     title,
		Source:    source,
		Kind:      kind,
		Status:    storage.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  FilterMetadata(meta),
	}
	if err := s.catalog.SaveDocument(doc); err != nil {
		return Receipt{}, fmt.Errorf("cataloging document: %w", err)
	}

	doc.Status = storage.StatusProcessing
	doc.UpdatedAt = time.Now()
	if err := s.catalog.SaveDocument(doc); err != nil {
		return Receipt{}, fmt.Errorf("cataloging document: %w", err)
	}

	n, err := s.chunkAndIndex(ctx, doc, content)
	if err != nil {
		doc.Status = storage.StatusFailed
		doc.UpdatedAt = time.Now()
		if saveErr := s.catalog.SaveDocument(doc); saveErr != nil {
			s.logger.Error("marking document failed", "doc_id", docID, "error", saveErr)
		}
		return Receipt{}, err
	}

	doc.Status = storage.StatusCompleted
	doc.ChunkCount = n
	doc.UpdatedAt = time.Now()
	if err := s.catalog.SaveDocument(doc); err != nil {
		return Receipt{}, fmt.Errorf("cataloging document: %w", err)
	}

	s.logger.Info("document ingested", "doc_id", docID, "kind", kind, "chunks", n)

	return Receipt{
		DocID:      docID,
		Status:     doc.Status,
		Message:    okMessage,
		ChunkCount: n,
	}, nil
}

func (s *Service) chunkAndIndex(ctx context.Context, doc storage.DocumentRecord, content string) (int, error) {
	chunks, err := chunker.Split(content, s.chunkSize, s.chunkOverlap)
	if err != nil {
		return 0, fmt.Errorf("chunking document %s: %w", doc.ID, err)
	}
	if len(chunks) == 0 {
		return 0, ErrEmptyContent
	}

	records := make([]retrieval.Record, 0, len(chunks))
	for _, text := range chunks {
		records = append(records, retrieval.Record{
			ChunkID:   uuid.NewString(),
			DocID:     doc.ID,
			DocKind:   doc.Kind,
			Title:     doc.Title,
			Source:    doc.Source,
			Text:      text,
			Metadata:  doc.Metadata,
			CreatedAt: time.Now().UTC(),
		})
	}

	n, err := s.index.Add(ctx, records)
	if err != nil {
		return 0, fmt.Errorf("indexing document %s: %w", doc.ID, err)
	}
	return n, nil
}

func defaultTitle(kind, docID string) string {
	switch kind {
	case storage.KindWeb:
		return "Web Document " + docID[:8]
	case storage.KindPDF:
		return "PDF Document " + docID[:8]
	case storage.KindMarkdown:
		return "Markdown Document " + docID[:8]
	default:
		return "Document " + docID[:8]
	}
}

// FilterMetadata keeps only primitive-valued entries: nils are dropped,
// strings, booleans, integers and floats pass through, everything else is
// stringified.
func FilterMetadata(meta map[string]any) map[string]any {
	if len(meta) == 0 {
		return map[string]any{}
	}
	filtered := make(map[string]any, len(meta))
	for k, v := range meta {
		switch val := v.(type) {
		case nil:
			continue
		case string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
			filtered[k] = val
		default:
			filtered[k] = fmt.Sprintf("%v", val)
		}
	}
	return filtered
}
