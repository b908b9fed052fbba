package stt

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
	defaultWhisperURL     = "http://localhost:8387"
	defaultRequestTimeout = 10 * time.Minute
)

// WhisperConfig configures the faster-whisper sidecar client
type WhisperConfig struct {
	URL     string
	Timeout time.Duration
}

// WhisperClient implements Transcriber against a faster-whisper HTTP sidecar
type WhisperClient struct {
	cfg    WhisperConfig
	opts   Options
	client *http.Client
}

// NewWhisperClient creates a new Whisper sidecar client
func NewWhisperClient(cfg WhisperConfig, opts Options) *WhisperClient {
	if cfg.URL == "" {
		cfg.URL = defaultWhisperURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultRequestTimeout
	}
	return &WhisperClient{
		cfg:    cfg,
		opts:   opts,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (w *WhisperClient) Name() string { return "whisper" }

// Available checks if the sidecar answers its health endpoint
func (w *WhisperClient) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.cfg.URL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Transcribe uploads the chunk and converts the returned segments
func (w *WhisperClient) Transcribe(ctx context.Context, chunkPath string) ([]transcript.Segment, error) {
	fields := map[string]string{
		"model":  w.opts.Model,
		"device": w.opts.Device,
	}
	if w.opts.Language != "" {
		fields["language"] = w.opts.Language
	}
	body, contentType, err := multipartAudio("audio", chunkPath, fields)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL+"/transcribe", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("whisper", resp)
	}

	var result whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode whisper response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("whisper error: %s", result.Error)
	}
	return result.segments(), nil
}

type whisperResponse struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Segments []whisperSegment `json:"segments"`
	Error    string           `json:"error,omitempty"`
}

type whisperSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

func (r *whisperResponse) segments() []transcript.Segment {
	out := make([]transcript.Segment, len(r.Segments))
	for i, s := range r.Segments {
		out[i] = transcript.Segment{Start: s.Start, End: s.End, Text: s.Text}
	}
	return out
}

// multipartAudio builds a form with the file under fileField plus the
// non-empty extra fields.
func multipartAudio(fileField, path string, fields map[string]string) (*bytes.Buffer, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(fileField, filepath.Base(path))
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("write audio data: %w", err)
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := writer.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

// statusError reads a bounded body for the message. The "(status N)" form is
// what the retry classifier matches on.
func statusError(service string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return fmt.Errorf("%s error (status %d): %s", service, resp.StatusCode, bytes.TrimSpace(body))
}
