package config

import (
	"os"
	"testing"
	"time"
)

func clearBackendEnv() {
	for _, key := range []string{
		"STT_BACKEND", "DIARIZATION_BACKEND", "DEEPGRAM_API_KEY", "OPENAI_API_KEY",
		"HF_TOKEN", "PICKER", "LOG_LEVEL", "SEGMENTS_DIR", "OUTPUT_DIR",
	} {
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearBackendEnv()

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default Port '8080', got '%s'", cfg.Port)
	}
	if cfg.STTBackend != "whisper" {
		t.Errorf("Expected default STTBackend 'whisper', got '%s'", cfg.STTBackend)
	}
	if cfg.DiarizationBackend != "pyannote" {
		t.Errorf("Expected default DiarizationBackend 'pyannote', got '%s'", cfg.DiarizationBackend)
	}
	if cfg.SegmentsDir != "audio_segments" {
		t.Errorf("Expected default SegmentsDir 'audio_segments', got '%s'", cfg.SegmentsDir)
	}
	if cfg.OutputDir != "output" {
		t.Errorf("Expected default OutputDir 'output', got '%s'", cfg.OutputDir)
	}
	if cfg.WhisperModelLarge != "large" || cfg.WhisperModelSmall != "small" {
		t.Errorf("Unexpected whisper model defaults: %s/%s", cfg.WhisperModelLarge, cfg.WhisperModelSmall)
	}
	if cfg.RoleFirst != "Interviewer" || cfg.RoleSecond != "Interviewee" || cfg.RoleUnknown != "Unknown" {
		t.Errorf("Unexpected role defaults: %s/%s/%s", cfg.RoleFirst, cfg.RoleSecond, cfg.RoleUnknown)
	}
	if cfg.AbortOnChunkError {
		t.Error("Expected AbortOnChunkError to default to false")
	}
}

func TestLoad_DeepgramRequiresKey(t *testing.T) {
	clearBackendEnv()
	os.Setenv("STT_BACKEND", "deepgram")
	defer os.Unsetenv("STT_BACKEND")

	if _, err := LoadFromEnv(); err == nil {
		t.Error("Expected error when DEEPGRAM_API_KEY is missing")
	}

	os.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")
	defer os.Unsetenv("DEEPGRAM_API_KEY")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}
	if cfg.DeepgramAPIKey != "test-deepgram-key" {
		t.Errorf("Expected DeepgramAPIKey 'test-deepgram-key', got '%s'", cfg.DeepgramAPIKey)
	}
}

func TestLoad_OpenAIRequiresKey(t *testing.T) {
	clearBackendEnv()
	os.Setenv("STT_BACKEND", "OpenAI")
	defer os.Unsetenv("STT_BACKEND")

	if _, err := LoadFromEnv(); err == nil {
		t.Error("Expected error when OPENAI_API_KEY is missing")
	}
}

func TestLoad_MissingHFTokenIsNotAnError(t *testing.T) {
	clearBackendEnv()
	os.Setenv("DIARIZATION_BACKEND", "pyannote")
	defer os.Unsetenv("DIARIZATION_BACKEND")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}
	if cfg.HFToken != "" {
		t.Errorf("Expected empty HFToken, got '%s'", cfg.HFToken)
	}
}

func TestLoad_UnknownBackends(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"STT_BACKEND", "vosk"},
		{"DIARIZATION_BACKEND", "nemo"},
		{"PICKER", "gtk"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearBackendEnv()
			os.Setenv(tt.key, tt.value)
			defer os.Unsetenv(tt.key)

			if _, err := LoadFromEnv(); err == nil {
				t.Errorf("Expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestConfig_Helpers(t *testing.T) {
	clearBackendEnv()

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}
	if cfg.RequestTimeoutDuration() != 600*time.Second {
		t.Errorf("Expected 600s request timeout, got %v", cfg.RequestTimeoutDuration())
	}
	if cfg.ListenAddr() != "127.0.0.1:8080" {
		t.Errorf("Expected listen address 127.0.0.1:8080, got %s", cfg.ListenAddr())
	}
}

func TestConfig_ObservabilityDefaults(t *testing.T) {
	clearBackendEnv()

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default LogLevel 'info', got '%s'", cfg.LogLevel)
	}
	if cfg.LogPretty {
		t.Error("Expected default LogPretty false, got true")
	}
	if !cfg.MetricsEnabled {
		t.Error("Expected default MetricsEnabled true, got false")
	}
	if cfg.RetryMaxAttempts != 1 {
		t.Errorf("Expected default RetryMaxAttempts 1, got %d", cfg.RetryMaxAttempts)
	}
}
