package rag

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ltnguyen/askdocs/internal/engine"
	"github.com/ltnguyen/askdocs/internal/retrieval"
)

type fakeRetriever struct {
	results []retrieval.Result
	err     error
	gotK    int
	gotQ    string
}

func (f *fakeRetriever) Search(_ context.Context, query string, k int) ([]retrieval.Result, error) {
	f.gotQ = query
	f.gotK = k
	return f.results, f.err
}

type fakeChatEngine struct {
	answer    string
	err       error
	gotPrompt string
}

func (f *fakeChatEngine) Chat(_ context.Context, _ string, messages []engine.Message) (string, error) {
	if len(messages) > 0 {
		f.gotPrompt = messages[len(messages)-1].Content
	}
	return f.answer, f.err
}

func (f *fakeChatEngine) Embed(_ context.Context, _ string, _ string) ([]float32, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeChatEngine) IsRunning(_ context.Context) bool               { return true }
func (f *fakeChatEngine) ListModels(_ context.Context) ([]string, error) { return nil, nil }
func (f *fakeChatEngine) HasModel(_ context.Context, _ string) bool      { return true }
func (f *fakeChatEngine) PullModel(_ context.Context, _ string, _ func(engine.PullProgress)) error {
	return nil
}

func TestAnswer(t *testing.T) {
	retr := &fakeRetriever{results: []retrieval.Result{
		{Content: "Go was designed at Google.", Source: "history.md", Score: 0.93},
		{Content: "Go 1.0 was released in 2012.", Source: "history.md", Score: 0.88},
	}}
	eng := &fakeChatEngine{answer: "Go was designed at Google and released in 2012."}

	a, err := New(retr, eng, "test-model", 4, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	answer, sources, err := a.Answer(context.Background(), "When was Go released?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if answer != eng.answer {
		t.Errorf("answer = %q", answer)
	}
	if len(sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(sources))
	}
	if retr.gotK != 4 {
		t.Errorf("retrieved with k=%d, want 4", retr.gotK)
	}
	if retr.gotQ != "When was Go released?" {
		t.Errorf("retrieved with query %q", retr.gotQ)
	}

	// The prompt must carry the question and both chunks, blank-line separated.
	if !strings.Contains(eng.gotPrompt, "When was Go released?") {
		t.Errorf("prompt missing question: %q", eng.gotPrompt)
	}
	if !strings.Contains(eng.gotPrompt, "Go was designed at Google.\n\nGo 1.0 was released in 2012.") {
		t.Errorf("prompt missing joined context: %q", eng.gotPrompt)
	}
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	a, err := New(&fakeRetriever{}, &fakeChatEngine{}, "m", 0, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, _, err := a.Answer(context.Background(), "   "); err == nil {
		t.Error("expected error for blank question")
	}
}

func TestAnswer_EmptyIndex(t *testing.T) {
	eng := &fakeChatEngine{answer: "I don't know."}
	a, err := New(&fakeRetriever{}, eng, "m", 4, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	answer, sources, err := a.Answer(context.Background(), "anything?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if answer != "I don't know." {
		t.Errorf("answer = %q", answer)
	}
	if len(sources) != 0 {
		t.Errorf("got %d sources, want 0", len(sources))
	}
}

func TestAnswer_RetrievalError(t *testing.T) {
	retrErr := errors.New("store offline")
	a, err := New(&fakeRetriever{err: retrErr}, &fakeChatEngine{}, "m", 4, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, _, err := a.Answer(context.Background(), "q?"); !errors.Is(err, retrErr) {
		t.Errorf("error = %v, want wrapped %v", err, retrErr)
	}
}

func TestAnswer_GenerationError(t *testing.T) {
	chatErr := errors.New("model crashed")
	a, err := New(&fakeRetriever{}, &fakeChatEngine{err: chatErr}, "m", 4, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, _, err := a.Answer(context.Background(), "q?"); !errors.Is(err, chatErr) {
		t.Errorf("error = %v, want wrapped %v", err, chatErr)
	}
}

func TestCustomPromptTemplate(t *testing.T) {
	dir := t.TempDir()
	custom := "CTX[{{.Context}}] Q[{{.Question}}]"
	if err := os.WriteFile(filepath.Join(dir, promptFileName), []byte(custom), 0o600); err != nil {
		t.Fatal(err)
	}

	retr := &fakeRetriever{results: []retrieval.Result{{Content: "fact one"}}}
	eng := &fakeChatEngine{answer: "ok"}
	a, err := New(retr, eng, "m", 4, dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, _, err := a.Answer(context.Background(), "why?"); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if eng.gotPrompt != "CTX[fact one] Q[why?]" {
		t.Errorf("prompt = %q", eng.gotPrompt)
	}
}

func TestLoadTemplate_MissingFileUsesFallback(t *testing.T) {
	tmpl, err := loadTemplate(t.TempDir())
	if err != nil {
		t.Fatalf("loadTemplate: %v", err)
	}
	prompt, err := renderPrompt(tmpl, "some context", "some question")
	if err != nil {
		t.Fatalf("renderPrompt: %v", err)
	}
	if !strings.Contains(prompt, "some context") || !strings.Contains(prompt, "some question") {
		t.Errorf("fallback prompt missing substitutions: %q", prompt)
	}
}

func TestLoadTemplate_BadTemplate(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, promptFileName), []byte("{{.Broken"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadTemplate(dir); err == nil {
		t.Error("expected parse error")
	}
}
