package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lexiqai/interview-transcriber/internal/transcript"
)

const defaultOpenAIURL = "https://api.openai.com/v1"

// OpenAIConfig configures the OpenAI transcription client
type OpenAIConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// OpenAIClient implements Transcriber with the /audio/transcriptions endpoint
type OpenAIClient struct {
	cfg    OpenAIConfig
	opts   Options
	client *http.Client
}

// NewOpenAIClient creates a new OpenAI transcription client
func NewOpenAIClient(cfg OpenAIConfig, opts Options) *OpenAIClient {
	if cfg.URL == "" {
		cfg.URL = defaultOpenAIURL
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultRequestTimeout
	}
	if opts.Model == "" {
		opts.Model = "whisper-1"
	}
	return &OpenAIClient{
		cfg:    cfg,
		opts:   opts,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (o *OpenAIClient) Name() string { return "openai" }

// Available reports whether an API key is configured
func (o *OpenAIClient) Available(ctx context.Context) bool {
	return o.cfg.APIKey != ""
}

// Transcribe uploads the chunk and requests verbose_json so that segment
// timestamps are returned.
func (o *OpenAIClient) Transcribe(ctx context.Context, chunkPath string) ([]transcript.Segment, error) {
	body, contentType, err := multipartAudio("file", chunkPath, map[string]string{
		"model":           o.opts.Model,
		"language":        o.opts.Language,
		"response_format": "verbose_json",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.URL+"/audio/transcriptions", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("openai", resp)
	}

	var result openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode openai response: %w", err)
	}

	segments := make([]transcript.Segment, len(result.Segments))
	for i, s := range result.Segments {
		segments[i] = transcript.Segment{Start: s.Start, End: s.End, Text: s.Text}
	}
	return segments, nil
}

type openAIResponse struct {
	Text     string          `json:"text"`
	Language string          `json:"language"`
	Duration float64         `json:"duration"`
	Segments []openAISegment `json:"segments"`
}

type openAISegment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}
