package diarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/lexiqai/interview-transcriber/internal/transcript"
)

const (
	defaultPyannoteURL     = "http://localhost:8388"
	defaultPyannoteModel   = "pyannote/speaker-diarization"
	defaultPyannoteTimeout = 10 * time.Minute
)

// PyannoteConfig configures the pyannote sidecar client
type PyannoteConfig struct {
	URL     string
	Model   string
	Token   string // Hugging Face access token for the gated pipeline
	Timeout time.Duration
}

// PyannoteClient implements Diarizer against a pyannote HTTP sidecar
type PyannoteClient struct {
	cfg    PyannoteConfig
	client *http.Client
}

// NewPyannoteClient creates a new pyannote sidecar client
func NewPyannoteClient(cfg PyannoteConfig) *PyannoteClient {
	if cfg.URL == "" {
		cfg.URL = defaultPyannoteURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultPyannoteModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultPyannoteTimeout
	}
	return &PyannoteClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *PyannoteClient) Name() string { return "pyannote" }

// Available requires a token and a healthy sidecar
func (p *PyannoteClient) Available(ctx context.Context) bool {
	if p.cfg.Token == "" {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Diarize uploads the chunk and converts the returned segments to turns
func (p *PyannoteClient) Diarize(ctx context.Context, chunkPath string) ([]transcript.SpeakerTurn, error) {
	f, err := os.Open(chunkPath)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("audio", filepath.Base(chunkPath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("write audio data: %w", err)
	}
	_ = writer.WriteField("model", p.cfg.Model)
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL+"/diarize", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+p.cfg.Token)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("diarization request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("diarization error (status %d): %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var result pyannoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode diarization response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("diarization error: %s", result.Error)
	}
	return result.turns(), nil
}

type pyannoteResponse struct {
	Segments    []pyannoteSegment `json:"segments"`
	NumSpeakers int               `json:"num_speakers"`
	Error       string            `json:"error,omitempty"`
}

type pyannoteSegment struct {
	SpeakerID string  `json:"speaker_id"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

func (r *pyannoteResponse) turns() []transcript.SpeakerTurn {
	out := make([]transcript.SpeakerTurn, len(r.Segments))
	for i, s := range r.Segments {
		out[i] = transcript.SpeakerTurn{Start: s.StartTime, End: s.EndTime, Speaker: s.SpeakerID}
	}
	return out
}
