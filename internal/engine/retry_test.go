package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ltnguyen/askdocs/internal/ollama"
)

func fastResilience() ResilienceConfig {
	return ResilienceConfig{
		CallTimeout: time.Second,
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
	}
}

func TestResilient_RetriesTransient(t *testing.T) {
	calls := 0
	m := &mockEngine{
		chatFn: func(_ context.Context, _ string, _ []Message) (string, error) {
			calls++
			if calls < 3 {
				return "", fmt.Errorf("chat: status 503: %w", ollama.ErrUnavailable)
			}
			return "answer", nil
		},
	}

	r := NewResilient(m, fastResilience())
	out, err := r.Chat(context.Background(), "llama3.2", nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if out != "answer" {
		t.Errorf("Chat = %q, want %q", out, "answer")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestResilient_DoesNotRetryFatal(t *testing.T) {
	calls := 0
	fatal := errors.New("chat: unexpected status 400")
	m := &mockEngine{
		chatFn: func(_ context.Context, _ string, _ []Message) (string, error) {
			calls++
			return "", fatal
		},
	}

	r := NewResilient(m, fastResilience())
	_, err := r.Chat(context.Background(), "llama3.2", nil)
	if !errors.Is(err, fatal) {
		t.Fatalf("error = %v, want %v", err, fatal)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestResilient_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	m := &mockEngine{
		embedFn: func(_ context.Context, _, _ string) ([]float32, error) {
			calls++
			return nil, fmt.Errorf("embed: %w", ollama.ErrUnavailable)
		},
	}

	r := NewResilient(m, fastResilience())
	_, err := r.Embed(context.Background(), "nomic-embed-text", "text")
	if !errors.Is(err, ollama.ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestResilient_RespectsCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := &mockEngine{
		embedFn: func(_ context.Context, _, _ string) ([]float32, error) {
			cancel()
			return nil, fmt.Errorf("embed: %w", ollama.ErrUnavailable)
		},
	}

	r := NewResilient(m, fastResilience())
	_, err := r.Embed(ctx, "nomic-embed-text", "text")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestResilient_AttemptTimeoutIsTransient(t *testing.T) {
	calls := 0
	m := &mockEngine{
		chatFn: func(ctx context.Context, _ string, _ []Message) (string, error) {
			calls++
			if calls == 1 {
				<-ctx.Done()
				return "", ctx.Err()
			}
			return "late answer", nil
		},
	}

	cfg := fastResilience()
	cfg.CallTimeout = 10 * time.Millisecond
	r := NewResilient(m, cfg)
	out, err := r.Chat(context.Background(), "llama3.2", nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if out != "late answer" {
		t.Errorf("Chat = %q, want %q", out, "late answer")
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}
