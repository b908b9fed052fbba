// Package shell is the presentation layer: a small state machine guarding a
// single pipeline run, status fan-out, and the local web UI that drives it.
package shell

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/lexiqai/interview-transcriber/internal/archive"
	"github.com/lexiqai/interview-transcriber/internal/observability"
	"github.com/lexiqai/interview-transcriber/internal/pipeline"
)

var (
	// ErrBusy is returned when a run is requested while one is in progress
	ErrBusy = errors.New("a run is already in progress")

	// ErrNoFile is returned when the picker was cancelled. It is not a failure.
	ErrNoFile = errors.New("no file selected")
)

const (
	msgReady       = "Select a quality preset to transcribe an interview."
	msgNoFile      = "No file selected."
	msgCompressing = "Compressing transcriptions..."
)

// Runner executes pipeline jobs
type Runner interface {
	Run(ctx context.Context, job pipeline.Job, progress pipeline.ProgressFunc) (*pipeline.Summary, error)
	OutputDir() string
}

// Archiver writes the transcripts in dir to zipPath
type Archiver func(dir, zipPath string) (archive.Result, error)

// Options configures a Shell
type Options struct {
	ArchivePath  string
	RevealOutput bool
}

// Shell owns the run guard and the published status
type Shell struct {
	runner   Runner
	picker   Picker
	revealer Revealer
	archiver Archiver
	opts     Options
	hub      *Hub
	logger   zerolog.Logger

	running atomic.Bool
	base    context.Context // Parent of every run, cancelled at shutdown
	wg      sync.WaitGroup
}

// New creates a shell. base bounds the lifetime of background runs.
func New(base context.Context, runner Runner, picker Picker, revealer Revealer, archiver Archiver, opts Options) *Shell {
	if picker == nil {
		picker = FormPicker{}
	}
	if archiver == nil {
		archiver = archive.Compress
	}
	return &Shell{
		runner:   runner,
		picker:   picker,
		revealer: revealer,
		archiver: archiver,
		opts:     opts,
		hub:      NewHub(Status{State: StateIdle, Message: msgReady}),
		logger:   observability.WithComponent("shell"),
		base:     base,
	}
}

// Status returns the latest snapshot
func (s *Shell) Status() Status {
	return s.hub.Latest()
}

// Subscribe streams status snapshots
func (s *Shell) Subscribe() (<-chan Status, func()) {
	return s.hub.Subscribe()
}

// Start picks a source and launches a run on a background goroutine. It
// returns ErrNoFile without touching the filesystem when nothing was picked,
// and ErrBusy when a run is already in progress.
func (s *Shell) Start(ctx context.Context, preset pipeline.Preset, submitted string) error {
	if s.running.Load() {
		observability.RecordRejectedRun()
		return ErrBusy
	}

	source, err := s.picker.Pick(ctx, submitted)
	if err != nil {
		s.publishError(fmt.Errorf("file picker: %w", err))
		return err
	}
	if source == "" {
		s.hub.Publish(Status{State: StateIdle, Message: msgNoFile})
		return ErrNoFile
	}

	if !s.running.CompareAndSwap(false, true) {
		observability.RecordRejectedRun()
		return ErrBusy
	}

	job := pipeline.Job{Source: source, Preset: preset, RunID: observability.NewCorrelationID()}
	s.hub.Publish(Status{
		State:         StateRunning,
		Message:       "Processing " + source + "...",
		Indeterminate: true,
		RunID:         job.RunID,
		Preset:        string(preset),
	})

	s.wg.Add(1)
	go s.execute(job)
	return nil
}

func (s *Shell) execute(job pipeline.Job) {
	defer s.wg.Done()
	defer s.running.Store(false)

	logger := observability.WithCorrelationID(job.RunID).With().Str("component", "shell").Logger()
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Run panicked")
			s.publishError(fmt.Errorf("internal error: %v", r))
		}
	}()

	summary, err := s.runner.Run(s.base, job, func(p pipeline.Progress) {
		s.hub.Publish(Status{
			State:         StateRunning,
			Message:       p.String(),
			Indeterminate: true,
			RunID:         job.RunID,
			Preset:        string(job.Preset),
		})
	})
	if err != nil {
		s.publishError(err)
		return
	}

	s.hub.Publish(Status{
		State:   StateIdle,
		Message: summary.Message(),
		RunID:   job.RunID,
		Preset:  string(job.Preset),
		Written: summary.Written,
	})

	if s.opts.RevealOutput && s.revealer != nil {
		if err := s.revealer.Reveal(s.base, s.runner.OutputDir()); err != nil {
			logger.Warn().Err(err).Msg("Could not open output folder")
		}
	}
}

// Compress archives the output directory synchronously. It holds the same
// slot as a run, so neither can start while the other is writing.
func (s *Shell) Compress(ctx context.Context) (archive.Result, error) {
	if !s.running.CompareAndSwap(false, true) {
		observability.RecordRejectedRun()
		return archive.Result{}, ErrBusy
	}
	defer s.running.Store(false)

	s.hub.Publish(Status{State: StateRunning, Message: msgCompressing, Indeterminate: true})
	res, err := s.archiver(s.runner.OutputDir(), s.opts.ArchivePath)
	observability.RecordArchive(err == nil, res.Count())
	if err != nil {
		s.publishError(fmt.Errorf("compress: %w", err))
		return res, err
	}

	s.logger.Info().Str("archive", res.Path).Int("files", res.Count()).Msg("Transcriptions compressed")
	s.hub.Publish(Status{
		State:   StateIdle,
		Message: fmt.Sprintf("Transcriptions compressed into %s (%d files).", res.Path, res.Count()),
	})
	return res, nil
}

// Wait blocks until the current run, if any, has finished
func (s *Shell) Wait() {
	s.wg.Wait()
}

// Close waits for the run to finish and stops status fan-out
func (s *Shell) Close() {
	s.wg.Wait()
	s.hub.Close()
}

func (s *Shell) publishError(err error) {
	s.logger.Error().Err(err).Msg("Operation failed")
	s.hub.Publish(Status{State: StateError, Message: "Error: " + err.Error()})
}
