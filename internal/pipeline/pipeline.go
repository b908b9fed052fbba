// Package pipeline runs one transcription job end to end: split the source,
// then transcribe, diarize, merge and write each chunk in order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/interview-transcriber/internal/diarize"
	"github.com/lexiqai/interview-transcriber/internal/media"
	"github.com/lexiqai/interview-transcriber/internal/observability"
	"github.com/lexiqai/interview-transcriber/internal/stt"
	"github.com/lexiqai/interview-transcriber/internal/transcript"
)

// Splitter cuts a source file into chunks
type Splitter interface {
	Split(ctx context.Context, source string, chunk time.Duration) ([]media.Chunk, error)
}

// Job is one requested run
type Job struct {
	Source string
	Preset Preset
	RunID  string // Generated when empty
}

// Progress is published before each chunk stage
type Progress struct {
	RunID string
	Stage string
	Chunk int // 1-based
	Total int
}

func (p Progress) String() string {
	if p.Total == 0 {
		return p.Stage + "..."
	}
	return fmt.Sprintf("Chunk %d of %d: %s...", p.Chunk, p.Total, p.Stage)
}

// ProgressFunc receives progress updates on the run goroutine
type ProgressFunc func(Progress)

// ChunkError records a chunk that produced no output file
type ChunkError struct {
	Chunk media.Chunk
	Err   error
}

func (e ChunkError) Error() string {
	return fmt.Sprintf("chunk %d: %v", e.Chunk.Index+1, e.Err)
}

func (e ChunkError) Unwrap() error {
	return e.Err
}

// Summary describes a finished run
type Summary struct {
	RunID                string
	Preset               Preset
	Chunks               int
	Written              []string
	Failed               []ChunkError
	DiarizationFallbacks int
	Duration             time.Duration
}

// Message is the status text shown when the run ends
func (s *Summary) Message() string {
	if len(s.Failed) == 0 {
		return "Processing complete."
	}
	return fmt.Sprintf("Processing complete with errors: %d of %d chunks failed.", len(s.Failed), s.Chunks)
}

// Config configures the pipeline output
type Config struct {
	OutputDir         string
	BaseName          string // Output files are <OutputDir>/<BaseName>_partNNN.txt
	AbortOnChunkError bool   // Stop at the first failed chunk instead of continuing
}

// Pipeline runs transcription jobs
type Pipeline struct {
	cfg      Config
	splitter Splitter
	backends Backends
	merger   *transcript.Merger
}

// New creates a pipeline
func New(cfg Config, splitter Splitter, backends Backends, merger *transcript.Merger) *Pipeline {
	if cfg.OutputDir == "" {
		cfg.OutputDir = "output"
	}
	if cfg.BaseName == "" {
		cfg.BaseName = "transcription"
	}
	if merger == nil {
		merger = transcript.NewMerger(nil, "")
	}
	return &Pipeline{cfg: cfg, splitter: splitter, backends: backends, merger: merger}
}

// OutputDir returns the directory transcripts are written to
func (p *Pipeline) OutputDir() string {
	return p.cfg.OutputDir
}

// OutputPath returns the transcript path for a 0-based chunk index
func (p *Pipeline) OutputPath(index int) string {
	return filepath.Join(p.cfg.OutputDir, fmt.Sprintf("%s_part%03d.txt", p.cfg.BaseName, index+1))
}

// Run executes job. A split failure fails the run. Chunk failures are
// collected in the summary unless AbortOnChunkError is set.
func (p *Pipeline) Run(ctx context.Context, job Job, progress ProgressFunc) (*Summary, error) {
	if job.RunID == "" {
		job.RunID = observability.NewCorrelationID()
	}
	if progress == nil {
		progress = func(Progress) {}
	}

	logger := observability.WithRun(job.RunID, string(job.Preset), job.Source)
	ctx = logger.WithContext(ctx)
	metrics := observability.NewRunMetrics(string(job.Preset))
	metrics.RecordRunStart()

	start := time.Now()
	summary := &Summary{RunID: job.RunID, Preset: job.Preset}

	err := p.run(ctx, job, summary, metrics, progress, logger)
	summary.Duration = time.Since(start)

	status := "ok"
	switch {
	case err != nil:
		status = "error"
		logger.Error().Err(err).Dur("duration", summary.Duration).Msg("Run failed")
	case len(summary.Failed) > 0:
		status = "partial"
		logger.Warn().
			Int("chunks", summary.Chunks).
			Int("failed", len(summary.Failed)).
			Dur("duration", summary.Duration).
			Msg("Run finished with failed chunks")
	default:
		logger.Info().
			Int("chunks", summary.Chunks).
			Int("diarization_fallbacks", summary.DiarizationFallbacks).
			Dur("duration", summary.Duration).
			Msg("Run complete")
	}
	metrics.RecordRunEnd(status)
	return summary, err
}

func (p *Pipeline) run(ctx context.Context, job Job, summary *Summary, metrics *observability.RunMetrics, progress ProgressFunc, logger zerolog.Logger) error {
	chunkLen := job.Preset.ChunkDuration()
	if chunkLen <= 0 {
		return fmt.Errorf("unknown preset %q", job.Preset)
	}

	transcriber, diarizer, err := p.backends.Build(ctx, job.Preset)
	if err != nil {
		return fmt.Errorf("build backends: %w", err)
	}

	if err := os.MkdirAll(p.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	logger.Info().Dur("chunk_duration", chunkLen).Msg("Starting run")
	progress(Progress{RunID: job.RunID, Stage: "Splitting audio"})

	metrics.RecordStageStart(observability.StageSplit)
	chunks, err := p.splitter.Split(ctx, job.Source, chunkLen)
	metrics.RecordStageEnd(observability.StageSplit, err == nil)
	if err != nil {
		return fmt.Errorf("split audio: %w", err)
	}
	summary.Chunks = len(chunks)
	logger.Info().Int("chunks", len(chunks)).Msg("Audio split")

	if err := p.removeStale(logger); err != nil {
		return err
	}

	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}

		path, fallback, err := p.processChunk(ctx, job.RunID, chunk, len(chunks), transcriber, diarizer, metrics, progress)
		if fallback {
			summary.DiarizationFallbacks++
		}
		if err != nil {
			ce := ChunkError{Chunk: chunk, Err: err}
			summary.Failed = append(summary.Failed, ce)
			logger.Error().Err(err).Int("chunk", chunk.Index+1).Str("path", chunk.Path).Msg("Chunk failed")
			if p.cfg.AbortOnChunkError || errors.Is(err, context.Canceled) {
				return ce
			}
			continue
		}
		summary.Written = append(summary.Written, path)
	}
	return nil
}

func (p *Pipeline) processChunk(
	ctx context.Context,
	runID string,
	chunk media.Chunk,
	total int,
	t stt.Transcriber,
	d diarize.Diarizer,
	metrics *observability.RunMetrics,
	progress ProgressFunc,
) (string, bool, error) {
	logger := zerolog.Ctx(ctx).With().Int("chunk", chunk.Index+1).Logger()
	n := chunk.Index + 1

	progress(Progress{RunID: runID, Stage: "transcribing", Chunk: n, Total: total})
	metrics.RecordStageStart(observability.StageTranscribe)
	segments, err := t.Transcribe(ctx, chunk.Path)
	metrics.RecordStageEnd(observability.StageTranscribe, err == nil)
	if err != nil {
		return "", false, fmt.Errorf("transcribe: %w", err)
	}
	logger.Debug().Int("segments", len(segments)).Msg("Chunk transcribed")

	progress(Progress{RunID: runID, Stage: "identifying speakers", Chunk: n, Total: total})
	metrics.RecordStageStart(observability.StageDiarize)
	turns, reason := diarize.Try(ctx, d, chunk.Path)
	metrics.RecordStageEnd(observability.StageDiarize, reason == diarize.FallbackNone)
	fallback := reason != diarize.FallbackNone
	if fallback {
		metrics.RecordDiarizationFallback(reason)
	}

	doc := p.merger.Merge(segments, turns)

	progress(Progress{RunID: runID, Stage: "writing", Chunk: n, Total: total})
	out := p.OutputPath(chunk.Index)
	metrics.RecordStageStart(observability.StageWrite)
	err = os.WriteFile(out, []byte(doc.String()), 0o644)
	metrics.RecordStageEnd(observability.StageWrite, err == nil)
	if err != nil {
		return "", fallback, fmt.Errorf("write transcript: %w", err)
	}

	logger.Info().
		Str("output", out).
		Int("lines", len(doc.Lines)).
		Int("speakers", len(doc.Roles())).
		Msg("Chunk written")
	return out, fallback, nil
}

// removeStale deletes transcripts left by an earlier run so that a shorter
// source does not leave tail parts behind for the next archive.
func (p *Pipeline) removeStale(logger zerolog.Logger) error {
	stale, err := filepath.Glob(filepath.Join(p.cfg.OutputDir, p.cfg.BaseName+"_part*.txt"))
	if err != nil {
		return fmt.Errorf("list stale transcripts: %w", err)
	}
	for _, path := range stale {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale transcript: %w", err)
		}
	}
	if len(stale) > 0 {
		logger.Debug().Int("removed", len(stale)).Msg("Removed transcripts from previous run")
	}
	return nil
}
