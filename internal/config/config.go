package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the transcriber
type Config struct {
	// Shell (local web UI) configuration
	Port         string `envconfig:"PORT" default:"8080"`
	BindAddress  string `envconfig:"BIND_ADDRESS" default:"127.0.0.1"`
	Picker       string `envconfig:"PICKER" default:"form"`          // form, zenity
	RevealOutput bool   `envconfig:"REVEAL_OUTPUT" default:"true"`   // Open the output folder after a run
	OpenBrowser  bool   `envconfig:"OPEN_BROWSER" default:"false"`   // Open the shell page on startup

	// Media tooling
	FFmpegPath  string `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	FFprobePath string `envconfig:"FFPROBE_PATH" default:"ffprobe"`

	// File system layout
	SegmentsDir    string `envconfig:"SEGMENTS_DIR" default:"audio_segments"`
	OutputDir      string `envconfig:"OUTPUT_DIR" default:"output"`
	OutputBaseName string `envconfig:"OUTPUT_BASENAME" default:"transcription"`
	ArchiveName    string `envconfig:"ARCHIVE_NAME" default:"transcriptions.zip"`

	// Speech-to-text backend: whisper, deepgram, openai
	STTBackend string `envconfig:"STT_BACKEND" default:"whisper"`

	// faster-whisper sidecar
	WhisperURL        string `envconfig:"WHISPER_URL" default:"http://localhost:8387"`
	WhisperModelLarge string `envconfig:"WHISPER_MODEL_LARGE" default:"large"`
	WhisperModelSmall string `envconfig:"WHISPER_MODEL_SMALL" default:"small"`
	WhisperDevice     string `envconfig:"WHISPER_DEVICE" default:"auto"` // auto, cuda, cpu
	Language          string `envconfig:"LANGUAGE" default:""`           // Empty lets the model detect it

	// Deepgram pre-recorded API
	DeepgramAPIKey     string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModelLarge string `envconfig:"DEEPGRAM_MODEL_LARGE" default:"nova-2"`
	DeepgramModelSmall string `envconfig:"DEEPGRAM_MODEL_SMALL" default:"base"`
	DeepgramLanguage   string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`

	// OpenAI transcription API
	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY" default:""`
	OpenAIModel  string `envconfig:"OPENAI_MODEL" default:"whisper-1"`
	OpenAIURL    string `envconfig:"OPENAI_URL" default:"https://api.openai.com/v1"`

	// Diarization backend: pyannote, deepgram, none
	DiarizationBackend string `envconfig:"DIARIZATION_BACKEND" default:"pyannote"`
	PyannoteURL        string `envconfig:"PYANNOTE_URL" default:"http://localhost:8388"`
	PyannoteModel      string `envconfig:"PYANNOTE_MODEL" default:"pyannote/speaker-diarization"`
	HFToken            string `envconfig:"HF_TOKEN" default:""` // Access token for the diarization model

	// Role labels
	RoleStrategy          string `envconfig:"ROLE_STRATEGY" default:"positional"` // positional, speaker
	RoleFirst             string `envconfig:"ROLE_FIRST" default:"Interviewer"`
	RoleSecond            string `envconfig:"ROLE_SECOND" default:"Interviewee"`
	RoleParticipantFormat string `envconfig:"ROLE_PARTICIPANT_FORMAT" default:"Participant %d"`
	RoleUnknown           string `envconfig:"ROLE_UNKNOWN" default:"Unknown"`

	// Pipeline behaviour
	AbortOnChunkError bool `envconfig:"ABORT_ON_CHUNK_ERROR" default:"false"`
	RequestTimeout    int  `envconfig:"REQUEST_TIMEOUT" default:"600"` // seconds, per model request

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"1"`             // 1 means no retry
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"500"`        // Initial backoff in milliseconds

	// Observability configuration
	LogLevel            string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty           bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled      bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
	ModelGRPCHealthAddr string `envconfig:"MODEL_GRPC_HEALTH_ADDR" default:""`
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks backend selections and their credentials.
func (c *Config) Validate() error {
	c.STTBackend = strings.ToLower(strings.TrimSpace(c.STTBackend))
	c.DiarizationBackend = strings.ToLower(strings.TrimSpace(c.DiarizationBackend))

	switch c.STTBackend {
	case "whisper":
	case "deepgram":
		if c.DeepgramAPIKey == "" {
			return fmt.Errorf("DEEPGRAM_API_KEY is required for the deepgram backend")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai backend")
		}
	default:
		return fmt.Errorf("unknown STT_BACKEND %q", c.STTBackend)
	}

	switch c.DiarizationBackend {
	case "pyannote", "none":
	case "deepgram":
		if c.DeepgramAPIKey == "" {
			return fmt.Errorf("DEEPGRAM_API_KEY is required for deepgram diarization")
		}
	default:
		return fmt.Errorf("unknown DIARIZATION_BACKEND %q", c.DiarizationBackend)
	}

	switch c.Picker {
	case "form", "zenity":
	default:
		return fmt.Errorf("unknown PICKER %q", c.Picker)
	}

	if c.SegmentsDir == "" || c.OutputDir == "" {
		return fmt.Errorf("SEGMENTS_DIR and OUTPUT_DIR must not be empty")
	}
	return nil
}

// RequestTimeoutDuration returns the per-request model timeout.
func (c *Config) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// ListenAddr is the address the shell listens on.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%s", c.BindAddress, c.Port)
}
