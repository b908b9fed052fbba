package stt

import (
	"context"
	"fmt"
	"sync"

	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/lexiqai/interview-transcriber/internal/transcript"
)

// preRecorded is the part of the Deepgram REST client we use
type preRecorded interface {
	DoFile(ctx context.Context, filePath string, req *interfaces.PreRecordedTranscriptionOptions, resBody interface{}) error
}

// DeepgramClient transcribes and diarizes chunks with Deepgram's pre-recorded
// API. One request serves both: the last response is kept so that the
// diarization pass for the same chunk does not upload it again.
type DeepgramClient struct {
	apiKey string
	opts   Options
	client preRecorded

	mu        sync.Mutex
	cachePath string
	cached    *deepgramResponse
}

// NewDeepgramClient creates a new Deepgram pre-recorded client
func NewDeepgramClient(apiKey string, opts Options) *DeepgramClient {
	return &DeepgramClient{
		apiKey: apiKey,
		opts:   opts,
		client: listenClient.NewREST(apiKey, &interfaces.ClientOptions{}),
	}
}

func (d *DeepgramClient) Name() string { return "deepgram" }

// Available reports whether an API key is configured
func (d *DeepgramClient) Available(ctx context.Context) bool {
	return d.apiKey != ""
}

// Transcribe returns Deepgram utterances as segments
func (d *DeepgramClient) Transcribe(ctx context.Context, chunkPath string) ([]transcript.Segment, error) {
	resp, err := d.fetch(ctx, chunkPath)
	if err != nil {
		return nil, err
	}
	return resp.segments(), nil
}

// Diarize returns Deepgram utterances as speaker turns
func (d *DeepgramClient) Diarize(ctx context.Context, chunkPath string) ([]transcript.SpeakerTurn, error) {
	resp, err := d.fetch(ctx, chunkPath)
	if err != nil {
		return nil, err
	}
	return resp.turns(), nil
}

func (d *DeepgramClient) fetch(ctx context.Context, chunkPath string) (*deepgramResponse, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cached != nil && d.cachePath == chunkPath {
		return d.cached, nil
	}

	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:      d.opts.Model,
		Language:   d.opts.Language,
		Punctuate:  true,
		Diarize:    true,
		Utterances: true,
	}

	var resp deepgramResponse
	if err := d.client.DoFile(ctx, chunkPath, options, &resp); err != nil {
		return nil, fmt.Errorf("deepgram request: %w", err)
	}

	d.cachePath = chunkPath
	d.cached = &resp
	return &resp, nil
}

type deepgramResponse struct {
	Results struct {
		Utterances []deepgramUtterance `json:"utterances"`
	} `json:"results"`
}

type deepgramUtterance struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Transcript string  `json:"transcript"`
	Speaker    *int    `json:"speaker"`
}

func (r *deepgramResponse) segments() []transcript.Segment {
	out := make([]transcript.Segment, 0, len(r.Results.Utterances))
	for _, u := range r.Results.Utterances {
		out = append(out, transcript.Segment{Start: u.Start, End: u.End, Text: u.Transcript})
	}
	return out
}

// turns skips utterances without a speaker, which Deepgram omits when
// diarization did not run.
func (r *deepgramResponse) turns() []transcript.SpeakerTurn {
	var out []transcript.SpeakerTurn
	for _, u := range r.Results.Utterances {
		if u.Speaker == nil {
			continue
		}
		out = append(out, transcript.SpeakerTurn{
			Start:   u.Start,
			End:     u.End,
			Speaker: fmt.Sprintf("speaker_%d", *u.Speaker),
		})
	}
	return out
}
