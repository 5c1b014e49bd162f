package engine

import (
	"context"
	"io"
	"testing"
)

type mockEngine struct {
	isRunning bool
	models    map[string]bool
	pulled    []string

	chatFn  func(ctx context.Context, model string, messages []Message) (string, error)
	embedFn func(ctx context.Context, model, text string) ([]float32, error)
}

func (m *mockEngine) Chat(ctx context.Context, model string, messages []Message) (string, error) {
	if m.chatFn != nil {
		return m.chatFn(ctx, model, messages)
	}
	return "", nil
}

func (m *mockEngine) Embed(ctx context.Context, model, text string) ([]float32, error) {
	if m.embedFn != nil {
		return m.embedFn(ctx, model, text)
	}
	return nil, nil
}

func (m *mockEngine) IsRunning(_ context.Context) bool { return m.isRunning }

func (m *mockEngine) ListModels(_ context.Context) ([]string, error) {
	var names []string
	for n := range m.models {
		names = append(names, n)
	}
	return names, nil
}

func (m *mockEngine) HasModel(_ context.Context, name string) bool { return m.models[name] }

func (m *mockEngine) PullModel(_ context.Context, name string, cb func(PullProgress)) error {
	m.pulled = append(m.pulled, name)
	if cb != nil {
		cb(PullProgress{Status: "success"})
	}
	return nil
}

func TestEnsureReady_AllModelsPresent(t *testing.T) {
	m := &mockEngine{
		isRunning: true,
		models:    map[string]bool{"llama3.2": true, "nomic-embed-text": true},
	}
	err := EnsureReady(context.Background(), m, "llama3.2", "nomic-embed-text", io.Discard)
	if err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if len(m.pulled) != 0 {
		t.Errorf("expected no pulls, got %v", m.pulled)
	}
}

func TestEnsureReady_PullsMissing(t *testing.T) {
	m := &mockEngine{
		isRunning: true,
		models:    map[string]bool{"llama3.2": true},
	}
	err := EnsureReady(context.Background(), m, "llama3.2", "nomic-embed-text", io.Discard)
	if err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if len(m.pulled) != 1 || m.pulled[0] != "nomic-embed-text" {
		t.Errorf("expected pull of nomic-embed-text, got %v", m.pulled)
	}
}

func TestEnsureReady_BackendDown(t *testing.T) {
	m := &mockEngine{isRunning: false, models: map[string]bool{}}
	err := EnsureReady(context.Background(), m, "llama3.2", "nomic-embed-text", io.Discard)
	if err == nil {
		t.Fatal("expected error when backend is down")
	}
}
