package diarize

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/lexiqai/interview-transcriber/internal/transcript"
)

type stubDiarizer struct {
	available bool
	turns     []transcript.SpeakerTurn
	err       error
	panicWith any
	calls     int
}

func (s *stubDiarizer) Name() string                       { return "stub" }
func (s *stubDiarizer) Available(ctx context.Context) bool { return s.available }

func (s *stubDiarizer) Diarize(ctx context.Context, chunkPath string) ([]transcript.SpeakerTurn, error) {
	s.calls++
	if s.panicWith != nil {
		panic(s.panicWith)
	}
	return s.turns, s.err
}

func TestTry(t *testing.T) {
	turns := []transcript.SpeakerTurn{{Start: 0, End: 1, Speaker: "A"}}

	tests := []struct {
		name       string
		d          Diarizer
		wantTurns  int
		wantReason string
	}{
		{"success", &stubDiarizer{available: true, turns: turns}, 1, FallbackNone},
		{"unavailable", &stubDiarizer{available: false, turns: turns}, 0, FallbackUnavailable},
		{"error", &stubDiarizer{available: true, err: errors.New("cuda out of memory")}, 0, FallbackError},
		{"panic", &stubDiarizer{available: true, panicWith: "index out of range"}, 0, FallbackPanic},
		{"nil", nil, 0, FallbackUnavailable},
		{"noop", Noop{}, 0, FallbackNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := Try(context.Background(), tt.d, "part000.mp3")
			if len(got) != tt.wantTurns {
				t.Errorf("Expected %d turns, got %d", tt.wantTurns, len(got))
			}
			if reason != tt.wantReason {
				t.Errorf("Expected reason %q, got %q", tt.wantReason, reason)
			}
		})
	}
}

func TestTry_UnavailableSkipsCall(t *testing.T) {
	d := &stubDiarizer{available: false}
	Try(context.Background(), d, "x.mp3")
	if d.calls != 0 {
		t.Errorf("Expected no diarize call, got %d", d.calls)
	}
}

func TestTry_LogsWarningFromContextLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx := zerolog.New(&buf).WithContext(context.Background())

	turns, _ := Try(ctx, &stubDiarizer{available: true, err: errors.New("boom")}, "x.mp3")
	if turns != nil {
		t.Errorf("Expected nil turns, got %v", turns)
	}
	if !strings.Contains(buf.String(), `"level":"warn"`) || !strings.Contains(buf.String(), "boom") {
		t.Errorf("Expected a warning with the cause, got %s", buf.String())
	}
}

func writeChunk(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "part001.wav")
	if err := os.WriteFile(path, []byte("RIFF fake"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPyannoteClient_Diarize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/diarize" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer hf_test" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.FormValue("model") != defaultPyannoteModel {
			http.Error(w, "bad model", http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"num_speakers":2,"segments":[
			{"speaker_id":"SPEAKER_00","start_time":0.0,"end_time":10.0},
			{"speaker_id":"SPEAKER_01","start_time":10.0,"end_time":15.5}]}`))
	}))
	defer server.Close()

	client := NewPyannoteClient(PyannoteConfig{URL: server.URL, Token: "hf_test"})
	turns, err := client.Diarize(context.Background(), writeChunk(t))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := []transcript.SpeakerTurn{
		{Start: 0, End: 10, Speaker: "SPEAKER_00"},
		{Start: 10, End: 15.5, Speaker: "SPEAKER_01"},
	}
	if len(turns) != len(want) {
		t.Fatalf("Expected %d turns, got %d", len(want), len(turns))
	}
	for i := range want {
		if turns[i] != want[i] {
			t.Errorf("Turn %d: expected %+v, got %+v", i, want[i], turns[i])
		}
	}
}

func TestPyannoteClient_ErrorField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"segments":[],"error":"model not loaded"}`))
	}))
	defer server.Close()

	client := NewPyannoteClient(PyannoteConfig{URL: server.URL, Token: "hf_test"})
	if _, err := client.Diarize(context.Background(), writeChunk(t)); err == nil {
		t.Error("Expected error from error field")
	}
}

func TestPyannoteClient_Available(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if NewPyannoteClient(PyannoteConfig{URL: server.URL}).Available(context.Background()) {
		t.Error("Expected client without token to be unavailable")
	}
	if !NewPyannoteClient(PyannoteConfig{URL: server.URL, Token: "hf_x"}).Available(context.Background()) {
		t.Error("Expected client with token and healthy sidecar to be available")
	}
}

func TestTry_PyannoteWithoutTokenFallsBack(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	turns, reason := Try(context.Background(), NewPyannoteClient(PyannoteConfig{URL: server.URL}), writeChunk(t))
	if reason != FallbackUnavailable {
		t.Errorf("Expected %q, got %q", FallbackUnavailable, reason)
	}
	if turns != nil {
		t.Errorf("Expected no turns, got %v", turns)
	}
	if called {
		t.Error("Expected no request without a token")
	}
}
