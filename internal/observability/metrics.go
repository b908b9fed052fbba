package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline stages used as metric labels
const (
	StageSplit      = "split"
	StageTranscribe = "transcribe"
	StageDiarize    = "diarize"
	StageWrite      = "write"
)

var (
	// Run metrics
	activeRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transcriber_active_runs",
		Help: "Number of pipeline runs in progress (0 or 1)",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcriber_runs_total",
		Help: "Total number of pipeline runs by preset and outcome",
	}, []string{"preset", "status"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "transcriber_run_duration_seconds",
		Help:    "Duration of pipeline runs in seconds",
		Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 1800, 3600},
	})

	rejectedRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcriber_runs_rejected_total",
		Help: "Run requests rejected because a run was already in progress",
	})

	// Chunk metrics
	chunksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcriber_chunks_total",
		Help: "Total number of chunk operations by stage and status",
	}, []string{"stage", "status"})

	stageLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transcriber_stage_latency_seconds",
		Help:    "Latency of a pipeline stage in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	diarizationFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcriber_diarization_fallbacks_total",
		Help: "Chunks labelled Unknown because diarization failed or was unavailable",
	}, []string{"reason"})

	// Archive metrics
	archivesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcriber_archives_total",
		Help: "Total number of archive writes by status",
	}, []string{"status"})

	archivedFiles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcriber_archived_files_total",
		Help: "Total number of text files written into archives",
	})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "transcriber_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcriber_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})
)

// RunMetrics tracks metrics for a single pipeline run
type RunMetrics struct {
	preset     string
	startTime  time.Time
	mu         sync.Mutex
	stageStart map[string]time.Time
}

// NewRunMetrics creates a new metrics tracker for a run
func NewRunMetrics(preset string) *RunMetrics {
	return &RunMetrics{
		preset:     preset,
		startTime:  time.Now(),
		stageStart: make(map[string]time.Time),
	}
}

// RecordRunStart records the start of a run
func (m *RunMetrics) RecordRunStart() {
	activeRuns.Inc()
}

// RecordRunEnd records the end of a run with its outcome (ok, partial, error)
func (m *RunMetrics) RecordRunEnd(status string) {
	activeRuns.Dec()
	runsTotal.WithLabelValues(m.preset, status).Inc()
	runDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordStageStart marks the start of a stage for the current chunk
func (m *RunMetrics) RecordStageStart(stage string) {
	m.mu.Lock()
	m.stageStart[stage] = time.Now()
	m.mu.Unlock()
}

// RecordStageEnd records the latency and outcome of a stage
func (m *RunMetrics) RecordStageEnd(stage string, success bool) {
	m.mu.Lock()
	start, ok := m.stageStart[stage]
	delete(m.stageStart, stage)
	m.mu.Unlock()

	if ok {
		stageLatency.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}

	status := "success"
	if !success {
		status = "error"
	}
	chunksTotal.WithLabelValues(stage, status).Inc()
}

// RecordDiarizationFallback records a chunk that fell back to unknown speakers
func (m *RunMetrics) RecordDiarizationFallback(reason string) {
	diarizationFallbacks.WithLabelValues(reason).Inc()
}

// RecordRejectedRun records a run request refused by the run guard
func RecordRejectedRun() {
	rejectedRuns.Inc()
}

// RecordArchive records an archive write
func RecordArchive(success bool, files int) {
	status := "success"
	if !success {
		status = "error"
	}
	archivesTotal.WithLabelValues(status).Inc()
	if success {
		archivedFiles.Add(float64(files))
	}
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
