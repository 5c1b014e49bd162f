// Package api exposes the document, chat, and index operations over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ltnguyen/askdocs/internal/chat"
	"github.com/ltnguyen/askdocs/internal/ingest"
	"github.com/ltnguyen/askdocs/internal/retrieval"
	"github.com/ltnguyen/askdocs/internal/storage"
)

const maxRequestBodySize = 20 << 20 // 20MB, file uploads arrive base64-encoded

// Ingester runs the ingestion pipeline.
type Ingester interface {
	AddText(ctx context.Context, content, title, source string, meta map[string]any) (ingest.Receipt, error)
	AddWeb(ctx context.Context, url, title string, meta map[string]any) (ingest.Receipt, error)
	AddFile(ctx context.Context, filename string, data []byte, title string, meta map[string]any) (ingest.Receipt, error)
}

// IndexAdmin is the slice of the vector index the API needs.
type IndexAdmin interface {
	Count() (int, error)
	Clear() (int, error)
	DeleteDocument(docID string) (int, error)
	Search(ctx context.Context, query string, k int) ([]retrieval.Result, error)
}

type Deps struct {
	Ingest  Ingester
	Catalog *storage.Store
	Index   IndexAdmin
	Chat    *chat.Store
}

func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Post("/documents/text", handleAddText(deps))
	r.Post("/documents/web", handleAddWeb(deps))
	r.Post("/documents/file", handleAddFile(deps))
	r.Get("/documents", handleListDocuments(deps))
	r.Get("/documents/stats", handleDocumentStats(deps))
	r.Get("/documents/{id}", handleGetDocument(deps))
	r.Delete("/documents/{id}", handleDeleteDocument(deps))
	r.Delete("/documents", handleClearDocuments(deps))

	r.Post("/chat", handleChat(deps))
	r.Get("/conversations", handleListConversations(deps))
	r.Get("/conversations/stats", handleConversationStats(deps))
	r.Get("/conversations/{id}", handleGetConversation(deps))
	r.Delete("/conversations/{id}", handleDeleteConversation(deps))
	r.Delete("/conversations", handleClearConversations(deps))

	r.Get("/index/stats", handleIndexStats(deps))
	r.Delete("/index", handleClearIndex(deps))

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
