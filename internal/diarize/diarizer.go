// Package diarize detects who spoke when in an audio chunk. Diarization is
// best effort: callers use Try and fall back to unlabelled lines.
package diarize

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lexiqai/interview-transcriber/internal/transcript"
)

// Diarizer is the interface for speaker diarization backends
type Diarizer interface {
	// Diarize returns speaker turns in detection order
	Diarize(ctx context.Context, chunkPath string) ([]transcript.SpeakerTurn, error)

	// Name identifies the backend in logs and metrics
	Name() string

	// Available reports whether the backend can be used at all
	Available(ctx context.Context) bool
}

// Fallback reasons reported by Try
const (
	FallbackNone        = ""
	FallbackUnavailable = "unavailable"
	FallbackError       = "error"
	FallbackPanic       = "panic"
)

// Try runs d and converts every failure into a fallback reason. It never
// returns an error and recovers panics raised by the backend.
func Try(ctx context.Context, d Diarizer, chunkPath string) (turns []transcript.SpeakerTurn, reason string) {
	logger := zerolog.Ctx(ctx)
	if d == nil {
		return nil, FallbackUnavailable
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Warn().
				Str("diarizer", d.Name()).
				Str("chunk", chunkPath).
				Str("panic", fmt.Sprint(r)).
				Msg("Diarization panicked, continuing without speakers")
			turns, reason = nil, FallbackPanic
		}
	}()

	if !d.Available(ctx) {
		logger.Warn().
			Str("diarizer", d.Name()).
			Msg("Diarization unavailable, continuing without speakers")
		return nil, FallbackUnavailable
	}

	turns, err := d.Diarize(ctx, chunkPath)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("diarizer", d.Name()).
			Str("chunk", chunkPath).
			Msg("Diarization failed, continuing without speakers")
		return nil, FallbackError
	}
	return turns, FallbackNone
}


// Noop never detects speakers. Selected with DIARIZATION_BACKEND=none.
type Noop struct{}

func (Noop) Diarize(ctx context.Context, chunkPath string) ([]transcript.SpeakerTurn, error) {
	return nil, nil
}

func (Noop) Name() string { return "none" }

func (Noop) Available(ctx context.Context) bool { return true }
