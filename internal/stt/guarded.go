package stt

import (
	"context"
	"time"

	"github.com/lexiqai/interview-transcriber/internal/resilience"
	"github.com/lexiqai/interview-transcriber/internal/transcript"
)

// Guarded wraps a Transcriber with a circuit breaker, a retry policy and a
// per-request timeout
type Guarded struct {
	inner   Transcriber
	breaker *resilience.CircuitBreaker
	retry   *resilience.RetryConfig
	timeout time.Duration
}

// NewGuarded wraps inner. A nil breaker disables the circuit.
func NewGuarded(inner Transcriber, breaker *resilience.CircuitBreaker, retry *resilience.RetryConfig, timeout time.Duration) *Guarded {
	if retry == nil {
		retry = resilience.DefaultRetryConfig()
	}
	return &Guarded{inner: inner, breaker: breaker, retry: retry, timeout: timeout}
}

func (g *Guarded) Name() string { return g.inner.Name() }

// Available forwards to the wrapped backend when it can tell
func (g *Guarded) Available(ctx context.Context) bool {
	if c, ok := g.inner.(Checker); ok {
		return c.Available(ctx)
	}
	return true
}

// Transcribe implements Transcriber
func (g *Guarded) Transcribe(ctx context.Context, chunkPath string) ([]transcript.Segment, error) {
	var segments []transcript.Segment
	attempt := func(ctx context.Context) error {
		if g.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		s, err := g.inner.Transcribe(ctx, chunkPath)
		if err != nil {
			return err
		}
		segments = s
		return nil
	}

	err := resilience.Retry(ctx, func(ctx context.Context) error {
		if g.breaker == nil {
			return attempt(ctx)
		}
		return g.breaker.Call(ctx, attempt)
	}, g.retry, resilience.IsRetryableNetworkError)
	if err != nil {
		return nil, err
	}
	return segments, nil
}
