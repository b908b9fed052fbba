package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lexiqai/interview-transcriber/internal/archive"
	"github.com/lexiqai/interview-transcriber/internal/config"
	"github.com/lexiqai/interview-transcriber/internal/media"
	"github.com/lexiqai/interview-transcriber/internal/observability"
	"github.com/lexiqai/interview-transcriber/internal/pipeline"
	"github.com/lexiqai/interview-transcriber/internal/shell"
	"github.com/lexiqai/interview-transcriber/internal/stt"
	"github.com/lexiqai/interview-transcriber/internal/transcript"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("addr", cfg.ListenAddr()).
		Str("stt_backend", cfg.STTBackend).
		Str("diarization_backend", cfg.DiarizationBackend).
		Str("output_dir", cfg.OutputDir).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Interview transcriber starting")

	if cfg.DiarizationBackend == "pyannote" && cfg.HFToken == "" {
		logger.Warn().Msg("HF_TOKEN is not set, transcripts will be written without speaker roles")
	}

	// Runs outlive the request that started them and stop only on shutdown
	runCtx, cancelRuns := context.WithCancel(context.Background())
	defer cancelRuns()

	runner := media.ExecRunner{}
	segmenter := media.NewSegmenter(media.SegmenterConfig{
		FFmpegPath:  cfg.FFmpegPath,
		FFprobePath: cfg.FFprobePath,
		WorkDir:     cfg.SegmentsDir,
	}, media.WithRunner(runner), media.WithLogger(observability.WithComponent("segmenter")))

	assigner, err := transcript.AssignerByName(cfg.RoleStrategy, transcript.PositionalRoles{
		First:             cfg.RoleFirst,
		Second:            cfg.RoleSecond,
		ParticipantFormat: cfg.RoleParticipantFormat,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid role strategy")
	}

	backends := pipeline.NewConfigBackends(cfg)
	pipe := pipeline.New(pipeline.Config{
		OutputDir:         cfg.OutputDir,
		BaseName:          cfg.OutputBaseName,
		AbortOnChunkError: cfg.AbortOnChunkError,
	}, segmenter, backends, transcript.NewMerger(assigner, cfg.RoleUnknown))

	var picker shell.Picker = shell.FormPicker{}
	if cfg.Picker == "zenity" {
		picker = shell.NewZenityPicker(runner)
	}

	sh := shell.New(runCtx, pipe, picker, shell.NewOpenRevealer(runner), archive.Compress, shell.Options{
		ArchivePath:  filepath.Join(cfg.OutputDir, cfg.ArchiveName),
		RevealOutput: cfg.RevealOutput,
	})

	// Create HTTP server
	mux := http.NewServeMux()
	shell.NewServer(sh).Register(mux)

	// Health check endpoint
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	// Readiness endpoint
	mux.HandleFunc("/ready", observability.ReadinessHandler(readinessChecks(cfg)))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// No write timeout: the websocket stream and zenity-backed runs hold
	// requests open
	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("url", fmt.Sprintf("http://%s/", cfg.ListenAddr())).
			Msg("Shell listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	if cfg.OpenBrowser {
		url := fmt.Sprintf("http://%s/", cfg.ListenAddr())
		if err := shell.NewOpenRevealer(runner).Reveal(runCtx, url); err != nil {
			logger.Warn().Err(err).Msg("Could not open browser")
		}
	}

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop the run in progress; ffmpeg and model requests see the cancellation
	cancelRuns()
	sh.Close()

	logger.Info().Msg("Shutdown complete")
}

// readinessChecks builds the named dependency probes for /ready
func readinessChecks(cfg *config.Config) map[string]observability.HealthCheckFunc {
	checks := map[string]observability.HealthCheckFunc{
		"ffmpeg": func(ctx context.Context) (bool, error) {
			if _, err := exec.LookPath(cfg.FFmpegPath); err != nil {
				return false, err
			}
			return true, nil
		},
		"transcriber": func(ctx context.Context) (bool, error) {
			t, err := stt.New(cfg, stt.OptionsFor(cfg, false, nil))
			if err != nil {
				return false, err
			}
			if c, ok := t.(stt.Checker); ok && !c.Available(ctx) {
				return false, fmt.Errorf("%s backend unavailable", t.Name())
			}
			return true, nil
		},
		"diarizer": func(ctx context.Context) (bool, error) {
			// Diarization is optional; an unavailable backend only degrades labels
			_, d, err := pipeline.NewConfigBackends(cfg).Build(ctx, pipeline.PresetMedium)
			if err != nil {
				return false, err
			}
			if !d.Available(ctx) {
				return true, fmt.Errorf("%s unavailable, speakers will be Unknown", d.Name())
			}
			return true, nil
		},
	}
	if cfg.ModelGRPCHealthAddr != "" {
		checks["model_host"] = observability.GRPCHealthCheck(cfg.ModelGRPCHealthAddr)
	}
	return checks
}
