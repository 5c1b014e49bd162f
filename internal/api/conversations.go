package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ltnguyen/askdocs/internal/chat"
)

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
	IncludeSources *bool  `json:"include_sources"`
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}

		includeSources := true
		if req.IncludeSources != nil {
			includeSources = *req.IncludeSources
		}

		resp, err := deps.Chat.Chat(r.Context(), req.Message, req.ConversationID, includeSources)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		writeJSON(w, resp)
	}
}

func handleListConversations(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, deps.Chat.List())
	}
}

func handleConversationStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, deps.Chat.Stats())
	}
}

func handleGetConversation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		conv, ok := deps.Chat.Get(id)
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "conversation not found")
			return
		}
		writeJSON(w, conv)
	}
}

func handleDeleteConversation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		err := deps.Chat.Delete(id)
		if errors.Is(err, chat.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "conversation not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete conversation: %v", err)
			return
		}
		writeJSON(w, map[string]string{"status": "deleted"})
	}
}

func handleClearConversations(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := deps.Chat.Clear()
		writeJSON(w, map[string]any{"conversations_removed": n})
	}
}

func handleIndexStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := deps.Index.Count()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to count chunks: %v", err)
			return
		}
		writeJSON(w, map[string]any{"total_chunks": n})
	}
}

func handleClearIndex(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := deps.Index.Clear()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to clear index: %v", err)
			return
		}
		writeJSON(w, map[string]any{"chunks_removed": n})
	}
}
