// Package stt turns audio chunks into timestamped text segments using an
// external speech-to-text service.
package stt

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/lexiqai/interview-transcriber/internal/config"
	"github.com/lexiqai/interview-transcriber/internal/transcript"
)

const (
	DeviceAuto = "auto"
	DeviceCUDA = "cuda"
	DeviceCPU  = "cpu"
)

// Transcriber is the interface for speech-to-text backends
type Transcriber interface {
	// Transcribe returns the segments recognised in one chunk file
	Transcribe(ctx context.Context, chunkPath string) ([]transcript.Segment, error)

	// Name identifies the backend in logs and metrics
	Name() string
}

// Checker is implemented by backends that can report availability
type Checker interface {
	Available(ctx context.Context) bool
}

// Options are fixed for the duration of a run
type Options struct {
	Model    string
	Device   string
	Language string
}

// LookPath finds an executable, replaced in tests
type LookPath func(file string) (string, error)

// ResolveDevice maps "auto" to cuda when an NVIDIA driver is visible and to
// cpu otherwise. Explicit values pass through.
func ResolveDevice(requested string, lookPath LookPath) string {
	requested = strings.ToLower(strings.TrimSpace(requested))
	if requested != "" && requested != DeviceAuto {
		return requested
	}
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	if _, err := lookPath("nvidia-smi"); err == nil {
		return DeviceCUDA
	}
	return DeviceCPU
}

// OptionsFor picks the model for the configured backend. large selects the
// high-accuracy model.
func OptionsFor(cfg *config.Config, large bool, lookPath LookPath) Options {
	opts := Options{Language: cfg.Language}
	switch cfg.STTBackend {
	case "deepgram":
		opts.Model = pick(large, cfg.DeepgramModelLarge, cfg.DeepgramModelSmall)
		opts.Device = DeviceCPU
		if opts.Language == "" {
			opts.Language = cfg.DeepgramLanguage
		}
	case "openai":
		opts.Model = cfg.OpenAIModel
		opts.Device = DeviceCPU
	default:
		opts.Model = pick(large, cfg.WhisperModelLarge, cfg.WhisperModelSmall)
		opts.Device = ResolveDevice(cfg.WhisperDevice, lookPath)
	}
	return opts
}

// New creates the transcriber selected by cfg.STTBackend
func New(cfg *config.Config, opts Options) (Transcriber, error) {
	switch cfg.STTBackend {
	case "whisper", "":
		return NewWhisperClient(WhisperConfig{
			URL:     cfg.WhisperURL,
			Timeout: cfg.RequestTimeoutDuration(),
		}, opts), nil
	case "deepgram":
		return NewDeepgramClient(cfg.DeepgramAPIKey, opts), nil
	case "openai":
		return NewOpenAIClient(OpenAIConfig{
			URL:     cfg.OpenAIURL,
			APIKey:  cfg.OpenAIAPIKey,
			Timeout: cfg.RequestTimeoutDuration(),
		}, opts), nil
	}
	return nil, fmt.Errorf("unknown STT backend %q", cfg.STTBackend)
}

func pick(large bool, big, small string) string {
	if large {
		return big
	}
	return small
}
