package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestHealthCheckHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthCheckHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var status HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Status != "healthy" || status.Service != serviceName {
		t.Errorf("Unexpected status %+v", status)
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name     string
		checks   map[string]HealthCheckFunc
		wantCode int
		wantDeps int
	}{
		{
			name: "all healthy",
			checks: map[string]HealthCheckFunc{
				"ffmpeg":  func(context.Context) (bool, error) { return true, nil },
				"whisper": func(context.Context) (bool, error) { return true, nil },
			},
			wantCode: http.StatusOK,
			wantDeps: 2,
		},
		{
			name: "one failing",
			checks: map[string]HealthCheckFunc{
				"ffmpeg":   func(context.Context) (bool, error) { return true, nil },
				"pyannote": func(context.Context) (bool, error) { return false, errors.New("connection refused") },
			},
			wantCode: http.StatusServiceUnavailable,
			wantDeps: 2,
		},
		{
			name: "degraded is still ready",
			checks: map[string]HealthCheckFunc{
				"diarizer": func(context.Context) (bool, error) { return true, errors.New("no HF token") },
			},
			wantCode: http.StatusOK,
			wantDeps: 1,
		},
		{
			name: "nil check skipped",
			checks: map[string]HealthCheckFunc{
				"ffmpeg": nil,
			},
			wantCode: http.StatusOK,
			wantDeps: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ReadinessHandler(tt.checks)(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("Expected %d, got %d", tt.wantCode, rec.Code)
			}
			var status HealthStatus
			if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(status.Dependencies) != tt.wantDeps {
				t.Errorf("Expected %d dependencies, got %d", tt.wantDeps, len(status.Dependencies))
			}
		})
	}
}

func TestRunChecks_RecordsMessage(t *testing.T) {
	deps, ok := RunChecks(context.Background(), map[string]HealthCheckFunc{
		"pyannote": func(context.Context) (bool, error) { return false, errors.New("HF_TOKEN not set") },
	})
	if ok {
		t.Error("Expected overall failure")
	}
	if deps["pyannote"].Message != "HF_TOKEN not set" {
		t.Errorf("Expected message to be recorded, got %q", deps["pyannote"].Message)
	}
}

func TestGRPCHealthCheck(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	go srv.Serve(lis)
	defer srv.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	check := GRPCHealthCheck(lis.Addr().String())
	ok, err := check(ctx)
	if err != nil || !ok {
		t.Fatalf("Expected serving model host, got ok=%v err=%v", ok, err)
	}

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	ok, err = check(ctx)
	if ok || err == nil {
		t.Error("Expected NOT_SERVING to fail the check")
	}
}

func TestRunChecks_Degraded(t *testing.T) {
	deps, ok := RunChecks(context.Background(), map[string]HealthCheckFunc{
		"diarizer": func(context.Context) (bool, error) { return true, errors.New("pyannote unavailable") },
	})
	if !ok {
		t.Error("Expected degraded dependency not to fail readiness")
	}
	if deps["diarizer"].Status != "degraded" || deps["diarizer"].Message == "" {
		t.Errorf("Unexpected dependency status %+v", deps["diarizer"])
	}
}
