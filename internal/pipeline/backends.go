package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lexiqai/interview-transcriber/internal/config"
	"github.com/lexiqai/interview-transcriber/internal/diarize"
	"github.com/lexiqai/interview-transcriber/internal/observability"
	"github.com/lexiqai/interview-transcriber/internal/resilience"
	"github.com/lexiqai/interview-transcriber/internal/stt"
)

// Backends builds the model clients for one run
type Backends interface {
	Build(ctx context.Context, preset Preset) (stt.Transcriber, diarize.Diarizer, error)
}

// ConfigBackends builds backends from configuration. Circuit breakers live as
// long as the process so that a dead sidecar stays open across runs.
type ConfigBackends struct {
	cfg      *config.Config
	lookPath stt.LookPath

	mu       sync.Mutex
	breakers map[string]*resilience.CircuitBreaker
}

// NewConfigBackends creates a backend builder
func NewConfigBackends(cfg *config.Config) *ConfigBackends {
	return &ConfigBackends{
		cfg:      cfg,
		breakers: make(map[string]*resilience.CircuitBreaker),
	}
}

// Build implements Backends
func (b *ConfigBackends) Build(ctx context.Context, preset Preset) (stt.Transcriber, diarize.Diarizer, error) {
	opts := stt.OptionsFor(b.cfg, preset.LargeModel(), b.lookPath)
	inner, err := stt.New(b.cfg, opts)
	if err != nil {
		return nil, nil, err
	}

	retry := &resilience.RetryConfig{
		MaxAttempts:       b.cfg.RetryMaxAttempts,
		InitialBackoff:    time.Duration(b.cfg.RetryInitialBackoff) * time.Millisecond,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
	transcriber := stt.NewGuarded(inner, b.breaker(inner.Name()), retry, b.cfg.RequestTimeoutDuration())

	var diarizer diarize.Diarizer
	switch b.cfg.DiarizationBackend {
	case "pyannote":
		diarizer = diarize.NewPyannoteClient(diarize.PyannoteConfig{
			URL:     b.cfg.PyannoteURL,
			Model:   b.cfg.PyannoteModel,
			Token:   b.cfg.HFToken,
			Timeout: b.cfg.RequestTimeoutDuration(),
		})
	case "deepgram":
		// Reuse the transcriber's client so each chunk is uploaded once
		if dg, ok := inner.(*stt.DeepgramClient); ok {
			diarizer = dg
		} else {
			diarizer = stt.NewDeepgramClient(b.cfg.DeepgramAPIKey, stt.OptionsFor(deepgramOnly(b.cfg), preset.LargeModel(), b.lookPath))
		}
	case "none", "":
		diarizer = diarize.Noop{}
	default:
		return nil, nil, fmt.Errorf("unknown diarization backend %q", b.cfg.DiarizationBackend)
	}

	logger := observability.WithComponent("pipeline")
	logger.Debug().
		Str("stt", inner.Name()).
		Str("model", opts.Model).
		Str("device", opts.Device).
		Str("diarizer", diarizer.Name()).
		Msg("Backends ready")
	return transcriber, diarizer, nil
}

func (b *ConfigBackends) breaker(name string) *resilience.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.breakers[name]; ok {
		return cb
	}
	cb := resilience.NewCircuitBreaker(
		name,
		b.cfg.CircuitBreakerMaxFailures,
		time.Duration(b.cfg.CircuitBreakerResetTimeout)*time.Second,
	).WithObserver(func(service string, state resilience.CircuitState, failed bool) {
		observability.UpdateCircuitBreakerState(service, int(state))
		if failed {
			observability.IncrementCircuitBreakerFailures(service)
		}
	})
	b.breakers[name] = cb
	return cb
}

func deepgramOnly(cfg *config.Config) *config.Config {
	c := *cfg
	c.STTBackend = "deepgram"
	return &c
}
