package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ltnguyen/askdocs/internal/chat"
	"github.com/ltnguyen/askdocs/internal/ingest"
	"github.com/ltnguyen/askdocs/internal/retrieval"
	"github.com/ltnguyen/askdocs/internal/storage"
)

type stubIngester struct {
	receipt ingest.Receipt
	err     error
	lastOp  string
}

func (s *stubIngester) AddText(_ context.Context, content, title, source string, meta map[string]any) (ingest.Receipt, error) {
	s.lastOp = "text"
	return s.receipt, s.err
}

func (s *stubIngester) AddWeb(_ context.Context, url, title string, meta map[string]any) (ingest.Receipt, error) {
	s.lastOp = "web"
	return s.receipt, s.err
}

func (s *stubIngester) AddFile(_ context.Context, filename string, data []byte, title string, meta map[string]any) (ingest.Receipt, error) {
	s.lastOp = "file:" + filename
	return s.receipt, s.err
}

type stubIndex struct {
	count     int
	results   []retrieval.Result
	searchErr error
}

func (s *stubIndex) Count() (int, error) { return s.count, nil }
func (s *stubIndex) Clear() (int, error) {
	n := s.count
	s.count = 0
	return n, nil
}
func (s *stubIndex) DeleteDocument(docID string) (int, error) { return 2, nil }
func (s *stubIndex) Search(_ context.Context, query string, k int) ([]retrieval.Result, error) {
	return s.results, s.searchErr
}

type stubAnswerer struct {
	answer  string
	results []retrieval.Result
	err     error
}

func (s *stubAnswerer) Answer(_ context.Context, _ string) (string, []retrieval.Result, error) {
	return s.answer, s.results, s.err
}

type testDeps struct {
	handler  http.Handler
	catalog  *storage.Store
	ingester *stubIngester
	index    *stubIndex
	chat     *chat.Store
}

func setupHandler(t *testing.T, answerer chat.Answerer) testDeps {
	t.Helper()
	catalog, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:): %v", err)
	}
	t.Cleanup(func() { catalog.Close() })

	if answerer == nil {
		answerer = &stubAnswerer{answer: "stub answer"}
	}

	ingester := &stubIngester{receipt: ingest.Receipt{
		DocID:      "doc-1",
		Status:     storage.StatusCompleted,
		Message:    "Document added successfully",
		ChunkCount: 3,
	}}
	index := &stubIndex{count: 7}
	chatStore := chat.NewStore(answerer, slog.New(slog.NewTextHandler(io.Discard, nil)))

	handler := NewHandler(Deps{
		Ingest:  ingester,
		Catalog: catalog,
		Index:   index,
		Chat:    chatStore,
	})
	return testDeps{handler: handler, catalog: catalog, ingester: ingester, index: index, chat: chatStore}
}

func doJSON(t *testing.T, h http.Handler, method, url, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	d := setupHandler(t, nil)
	rr := doJSON(t, d.handler, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestAddTextDocument(t *testing.T) {
	d := setupHandler(t, nil)

	rr := doJSON(t, d.handler, http.MethodPost, "/documents/text", `{"content":"Go is fun","title":"Note"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}

	var receipt ingest.Receipt
	json.NewDecoder(rr.Body).Decode(&receipt)
	if receipt.DocID != "doc-1" || receipt.ChunkCount != 3 {
		t.Errorf("receipt = %+v", receipt)
	}
	if d.ingester.lastOp != "text" {
		t.Errorf("lastOp = %q", d.ingester.lastOp)
	}
}

func TestAddTextDocument_MissingContent(t *testing.T) {
	d := setupHandler(t, nil)
	rr := doJSON(t, d.handler, http.MethodPost, "/documents/text", `{"title":"empty"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestAddTextDocument_InvalidBody(t *testing.T) {
	d := setupHandler(t, nil)
	rr := doJSON(t, d.handler, http.MethodPost, "/documents/text", `{not json`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestAddWebDocument(t *testing.T) {
	d := setupHandler(t, nil)
	rr := doJSON(t, d.handler, http.MethodPost, "/documents/web", `{"url":"https://example.com/post"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	if d.ingester.lastOp != "web" {
		t.Errorf("lastOp = %q", d.ingester.lastOp)
	}
}

func TestAddWebDocument_MissingURL(t *testing.T) {
	d := setupHandler(t, nil)
	rr := doJSON(t, d.handler, http.MethodPost, "/documents/web", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestAddWebDocument_UpstreamFailure(t *testing.T) {
	d := setupHandler(t, nil)
	d.ingester.err = errors.New("fetching https://example.com: connection refused")

	rr := doJSON(t, d.handler, http.MethodPost, "/documents/web", `{"url":"https://example.com"}`)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502; body = %s", rr.Code, rr.Body.String())
	}
}

func TestAddWebDocument_NoContent(t *testing.T) {
	d := setupHandler(t, nil)
	d.ingester.err = fmt.Errorf("https://example.com: %w", ingest.ErrNoContent)

	rr := doJSON(t, d.handler, http.MethodPost, "/documents/web", `{"url":"https://example.com"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestAddFileDocument(t *testing.T) {
	d := setupHandler(t, nil)

	encoded := base64.StdEncoding.EncodeToString([]byte("# Title\n\nbody"))
	body := fmt.Sprintf(`{"filename":"guide.md","content":%q}`, encoded)
	rr := doJSON(t, d.handler, http.MethodPost, "/documents/file", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	if d.ingester.lastOp != "file:guide.md" {
		t.Errorf("lastOp = %q", d.ingester.lastOp)
	}
}

func TestAddFileDocument_BadBase64(t *testing.T) {
	d := setupHandler(t, nil)
	rr := doJSON(t, d.handler, http.MethodPost, "/documents/file", `{"filename":"a.txt","content":"%%%"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestGetDocument(t *testing.T) {
	d := setupHandler(t, nil)

	now := time.Now()
	doc := storage.DocumentRecord{
		ID: "doc-42", Title: "T", Kind: storage.KindText,
		Status: storage.StatusCompleted, CreatedAt: now, UpdatedAt: now,
	}
	if err := d.catalog.SaveDocument(doc); err != nil {
		t.Fatal(err)
	}

	rr := doJSON(t, d.handler, http.MethodGet, "/documents/doc-42", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var got storage.DocumentRecord
	json.NewDecoder(rr.Body).Decode(&got)
	if got.ID != "doc-42" {
		t.Errorf("id = %q", got.ID)
	}

	rr = doJSON(t, d.handler, http.MethodGet, "/documents/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestListDocuments_Empty(t *testing.T) {
	d := setupHandler(t, nil)
	rr := doJSON(t, d.handler, http.MethodGet, "/documents", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "[]" {
		t.Errorf("body = %s, want []", got)
	}
}

func TestDeleteDocument(t *testing.T) {
	d := setupHandler(t, nil)

	now := time.Now()
	d.catalog.SaveDocument(storage.DocumentRecord{
		ID: "doc-9", Title: "T", Kind: storage.KindText,
		Status: storage.StatusCompleted, CreatedAt: now, UpdatedAt: now,
	})

	rr := doJSON(t, d.handler, http.MethodDelete, "/documents/doc-9", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	var resp map[string]any
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp["status"] != "deleted" {
		t.Errorf("response = %v", resp)
	}

	rr = doJSON(t, d.handler, http.MethodDelete, "/documents/doc-9", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rr.Code)
	}
}

func TestDocumentStats(t *testing.T) {
	d := setupHandler(t, nil)
	rr := doJSON(t, d.handler, http.MethodGet, "/documents/stats", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var stats storage.DocumentStats
	json.NewDecoder(rr.Body).Decode(&stats)
	if stats.TotalDocuments != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestChatEndpoint(t *testing.T) {
	d := setupHandler(t, &stubAnswerer{
		answer:  "the answer",
		results: []retrieval.Result{{Content: "supporting chunk", Source: "s.txt"}},
	})

	rr := doJSON(t, d.handler, http.MethodPost, "/chat", `{"message":"why?"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}

	var resp chat.Response
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Message != "the answer" {
		t.Errorf("message = %q", resp.Message)
	}
	if resp.ConversationID == "" {
		t.Error("missing conversation id")
	}
	if len(resp.Sources) != 1 {
		t.Errorf("sources = %+v", resp.Sources)
	}
}

func TestChatEndpoint_ExcludesSources(t *testing.T) {
	d := setupHandler(t, &stubAnswerer{
		answer:  "ok",
		results: []retrieval.Result{{Content: "chunk"}},
	})

	rr := doJSON(t, d.handler, http.MethodPost, "/chat", `{"message":"q","include_sources":false}`)
	var resp chat.Response
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Sources != nil {
		t.Errorf("sources = %+v, want nil", resp.Sources)
	}
}

func TestChatEndpoint_MissingMessage(t *testing.T) {
	d := setupHandler(t, nil)
	rr := doJSON(t, d.handler, http.MethodPost, "/chat", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestChatEndpoint_DegradedOnFailure(t *testing.T) {
	d := setupHandler(t, &stubAnswerer{err: errors.New("model exploded")})

	rr := doJSON(t, d.handler, http.MethodPost, "/chat", `{"message":"q"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with degraded payload", rr.Code)
	}
	var resp chat.Response
	json.NewDecoder(rr.Body).Decode(&resp)
	if !resp.Degraded {
		t.Error("response not degraded")
	}
}

func TestConversationLifecycle(t *testing.T) {
	d := setupHandler(t, nil)

	rr := doJSON(t, d.handler, http.MethodPost, "/chat", `{"message":"hello"}`)
	var resp chat.Response
	json.NewDecoder(rr.Body).Decode(&resp)

	rr = doJSON(t, d.handler, http.MethodGet, "/conversations/"+resp.ConversationID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}
	var conv chat.Conversation
	json.NewDecoder(rr.Body).Decode(&conv)
	if len(conv.Messages) != 2 {
		t.Errorf("messages = %d, want 2", len(conv.Messages))
	}

	rr = doJSON(t, d.handler, http.MethodGet, "/conversations", "")
	var list []chat.Conversation
	json.NewDecoder(rr.Body).Decode(&list)
	if len(list) != 1 {
		t.Errorf("list = %d conversations, want 1", len(list))
	}

	rr = doJSON(t, d.handler, http.MethodGet, "/conversations/stats", "")
	var stats chat.Stats
	json.NewDecoder(rr.Body).Decode(&stats)
	if stats.TotalConversations != 1 || stats.TotalMessages != 2 {
		t.Errorf("stats = %+v", stats)
	}

	rr = doJSON(t, d.handler, http.MethodDelete, "/conversations/"+resp.ConversationID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rr.Code)
	}
	rr = doJSON(t, d.handler, http.MethodDelete, "/conversations/"+resp.ConversationID, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rr.Code)
	}
}

func TestClearConversations(t *testing.T) {
	d := setupHandler(t, nil)
	doJSON(t, d.handler, http.MethodPost, "/chat", `{"message":"a"}`)
	doJSON(t, d.handler, http.MethodPost, "/chat", `{"message":"b"}`)

	rr := doJSON(t, d.handler, http.MethodDelete, "/conversations", "")
	var resp map[string]any
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp["conversations_removed"].(float64) != 2 {
		t.Errorf("response = %v", resp)
	}
}

func TestIndexStats(t *testing.T) {
	d := setupHandler(t, nil)
	rr := doJSON(t, d.handler, http.MethodGet, "/index/stats", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp map[string]int
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp["total_chunks"] != 7 {
		t.Errorf("total_chunks = %d, want 7", resp["total_chunks"])
	}
}

func TestClearIndex(t *testing.T) {
	d := setupHandler(t, nil)
	rr := doJSON(t, d.handler, http.MethodDelete, "/index", "")
	var resp map[string]int
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp["chunks_removed"] != 7 {
		t.Errorf("chunks_removed = %d, want 7", resp["chunks_removed"])
	}
}
