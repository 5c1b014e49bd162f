package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ltnguyen/askdocs/internal/ingest"
	"github.com/ltnguyen/askdocs/internal/storage"
)

type addTextRequest struct {
	Content  string         `json:"content"`
	Title    string         `json:"title"`
	Source   string         `json:"source"`
	Metadata map[string]any `json:"metadata"`
}

type addWebRequest struct {
	URL      string         `json:"url"`
	Title    string         `json:"title"`
	Metadata map[string]any `json:"metadata"`
}

type addFileRequest struct {
	Filename string         `json:"filename"`
	Content  string         `json:"content"` // base64
	Title    string         `json:"title"`
	Metadata map[string]any `json:"metadata"`
}

func handleAddText(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addTextRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Content) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "content is required")
			return
		}

		receipt, err := deps.Ingest.AddText(r.Context(), req.Content, req.Title, req.Source, req.Metadata)
		if err != nil {
			ingestError(w, err)
			return
		}
		writeJSON(w, receipt)
	}
}

func handleAddWeb(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addWebRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.URL == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "url is required")
			return
		}

		receipt, err := deps.Ingest.AddWeb(r.Context(), req.URL, req.Title, req.Metadata)
		if err != nil {
			ingestError(w, err)
			return
		}
		writeJSON(w, receipt)
	}
}

func handleAddFile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addFileRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Filename == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "filename is required")
			return
		}
		data, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid base64 content")
			return
		}

		receipt, err := deps.Ingest.AddFile(r.Context(), req.Filename, data, req.Title, req.Metadata)
		if err != nil {
			ingestError(w, err)
			return
		}
		writeJSON(w, receipt)
	}
}

func handleListDocuments(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := deps.Catalog.ListDocuments()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list documents: %v", err)
			return
		}
		if docs == nil {
			docs = []storage.DocumentRecord{}
		}
		writeJSON(w, docs)
	}
}

func handleDocumentStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := deps.Catalog.DocumentStats()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get document stats: %v", err)
			return
		}
		writeJSON(w, stats)
	}
}

func handleGetDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		doc, err := deps.Catalog.GetDocument(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "document not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get document: %v", err)
			return
		}
		writeJSON(w, doc)
	}
}

func handleDeleteDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		err := deps.Catalog.DeleteDocument(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "document not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete document: %v", err)
			return
		}

		removed, err := deps.Index.DeleteDocument(id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete document chunks: %v", err)
			return
		}
		writeJSON(w, map[string]any{"status": "deleted", "chunks_removed": removed})
	}
}

func handleClearDocuments(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := deps.Catalog.ClearDocuments()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to clear documents: %v", err)
			return
		}
		chunks, err := deps.Index.Clear()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to clear index: %v", err)
			return
		}
		writeJSON(w, map[string]any{"documents_removed": docs, "chunks_removed": chunks})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

// ingestError maps pipeline failures: bad input is the client's fault,
// anything upstream (page fetch, embedding provider) is a gateway problem.
func ingestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ingest.ErrEmptyContent), errors.Is(err, ingest.ErrNoContent):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case strings.Contains(err.Error(), "invalid url"),
		strings.Contains(err.Error(), "extracting pdf"):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	default:
		httpError(w, http.StatusBadGateway, "api_error", "ingestion failed: %v", err)
	}
}
