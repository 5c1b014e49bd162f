package engine

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/ltnguyen/askdocs/internal/ollama"
)

// ResilienceConfig bounds provider calls made through a Resilient engine.
type ResilienceConfig struct {
	// CallTimeout is the per-attempt deadline for Chat and Embed calls.
	CallTimeout time.Duration
	// MaxAttempts is the total number of tries per call, including the first.
	MaxAttempts int
	// BaseDelay is the backoff before the second attempt; it doubles per retry.
	BaseDelay time.Duration
}

func (c *ResilienceConfig) applyDefaults() {
	if c.CallTimeout <= 0 {
		c.CallTimeout = 2 * time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
}

// Resilient wraps an Engine with per-call timeouts and bounded retry with
// exponential backoff. Only transient failures (connection trouble, server
// overload, attempt timeouts) are retried; anything else fails immediately.
type Resilient struct {
	inner Engine
	cfg   ResilienceConfig
}

// NewResilient wraps inner with the given resilience policy.
func NewResilient(inner Engine, cfg ResilienceConfig) *Resilient {
	cfg.applyDefaults()
	return &Resilient{inner: inner, cfg: cfg}
}

// transient reports whether err is worth retrying.
func transient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, ollama.ErrUnavailable) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// withRetry runs call up to MaxAttempts times. The caller's ctx bounds the
// whole operation; each attempt additionally gets CallTimeout.
func (r *Resilient) withRetry(ctx context.Context, op string, call func(ctx context.Context) error) error {
	delay := r.cfg.BaseDelay
	var err error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
		err = call(attemptCtx)
		cancel()

		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			// Caller gave up; don't mask their cancellation.
			return ctx.Err()
		}
		if !transient(err) || attempt == r.cfg.MaxAttempts {
			return err
		}

		slog.Warn("provider call failed, retrying",
			"op", op, "attempt", attempt, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}

func (r *Resilient) Chat(ctx context.Context, model string, messages []Message) (string, error) {
	var out string
	err := r.withRetry(ctx, "chat", func(ctx context.Context) error {
		var err error
		out, err = r.inner.Chat(ctx, model, messages)
		return err
	})
	return out, err
}

func (r *Resilient) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	var out []float32
	err := r.withRetry(ctx, "embed", func(ctx context.Context) error {
		var err error
		out, err = r.inner.Embed(ctx, model, text)
		return err
	})
	return out, err
}

func (r *Resilient) IsRunning(ctx context.Context) bool {
	return r.inner.IsRunning(ctx)
}

func (r *Resilient) ListModels(ctx context.Context) ([]string, error) {
	return r.inner.ListModels(ctx)
}

func (r *Resilient) HasModel(ctx context.Context, name string) bool {
	return r.inner.HasModel(ctx, name)
}

// PullModel is not retried: pulls are long-running and already resumable on
// the Ollama side.
func (r *Resilient) PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error {
	return r.inner.PullModel(ctx, name, onProgress)
}
