// Package media wraps the external ffmpeg tooling used to cut source audio
// into fixed-duration chunks.
package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrInvalidSource is returned when the source path is missing or not a file
var ErrInvalidSource = errors.New("invalid source audio")

const (
	chunkPrefix      = "part"
	defaultExtension = ".mp3"
)

// Chunk is one fixed-duration slice of the source audio
type Chunk struct {
	Index int           // Zero-based position in the source
	Path  string        // Chunk file in the working directory
	Start time.Duration // Planned start offset in the source
	End   time.Duration // Planned end offset in the source
}

// Duration returns the planned length of the chunk
func (c Chunk) Duration() time.Duration {
	return c.End - c.Start
}

func (c Chunk) String() string {
	return fmt.Sprintf("chunk %d [%s-%s]", c.Index, c.Start, c.End)
}

// SegmenterConfig configures a Segmenter
type SegmenterConfig struct {
	FFmpegPath  string
	FFprobePath string
	WorkDir     string // Working directory for chunk files, reused across runs
}

// Segmenter cuts audio files into chunks with ffmpeg's segment muxer
type Segmenter struct {
	cfg    SegmenterConfig
	runner Runner
	logger zerolog.Logger
}

// Option configures a Segmenter
type Option func(*Segmenter)

// WithRunner replaces the command runner
func WithRunner(r Runner) Option {
	return func(s *Segmenter) {
		s.runner = r
	}
}

// WithLogger sets the segmenter logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Segmenter) {
		s.logger = l
	}
}

// NewSegmenter creates a Segmenter
func NewSegmenter(cfg SegmenterConfig, opts ...Option) *Segmenter {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = "audio_segments"
	}
	s := &Segmenter{
		cfg:    cfg,
		runner: ExecRunner{},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Split cuts source into chunks of the given duration without re-encoding.
// Chunk files from an earlier run are removed first.
func (s *Segmenter) Split(ctx context.Context, source string, chunk time.Duration) ([]Chunk, error) {
	if chunk <= 0 {
		return nil, fmt.Errorf("chunk duration must be positive, got %s", chunk)
	}
	if err := validateSource(source); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(source))
	if ext == "" {
		ext = defaultExtension
	}

	if err := os.MkdirAll(s.cfg.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("create working directory: %w", err)
	}
	if err := s.removeStale(); err != nil {
		return nil, err
	}

	cmd := Command{
		Binary: s.cfg.FFmpegPath,
		Args: []string{
			"-hide_banner", "-nostdin", "-y",
			"-i", source,
			"-f", "segment",
			"-segment_time", strconv.FormatFloat(chunk.Seconds(), 'f', -1, 64),
			"-c", "copy",
			filepath.Join(s.cfg.WorkDir, chunkPrefix+"%03d"+ext),
		},
	}
	s.logger.Debug().Str("command", cmd.String()).Msg("Splitting audio")

	res, err := s.runner.Run(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", source, err)
	}
	s.logger.Debug().Dur("took", res.Duration).Msg("ffmpeg finished")

	paths, err := filepath.Glob(filepath.Join(s.cfg.WorkDir, chunkPrefix+"*"+ext))
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("split %s: ffmpeg produced no chunks", source)
	}
	sort.Strings(paths)

	total, err := s.Probe(ctx, source)
	if err != nil {
		// Offsets are informational; the chunk files are what matter
		s.logger.Warn().Err(err).Msg("Could not probe source duration")
		total = 0
	}

	chunks := PlanChunks(total, chunk)
	if len(chunks) != len(paths) {
		if total > 0 {
			s.logger.Warn().
				Int("planned", len(chunks)).
				Int("produced", len(paths)).
				Msg("ffmpeg chunk count differs from plan")
		}
		chunks = make([]Chunk, len(paths))
		for i := range chunks {
			start := time.Duration(i) * chunk
			end := start + chunk
			if total > 0 && end > total {
				end = total
			}
			chunks[i] = Chunk{Index: i, Start: start, End: end}
		}
	}
	for i, p := range paths {
		chunks[i].Path = p
	}
	return chunks, nil
}

// Probe returns the duration of a media file using ffprobe
func (s *Segmenter) Probe(ctx context.Context, source string) (time.Duration, error) {
	res, err := s.runner.Run(ctx, Command{
		Binary: s.cfg.FFprobePath,
		Args: []string{
			"-v", "error",
			"-show_entries", "format=duration",
			"-of", "default=noprint_wrappers=1:nokey=1",
			source,
		},
	})
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", source, err)
	}
	return parseDuration(string(res.Stdout))
}

// PlanChunks returns the contiguous ranges ffmpeg is asked to produce for a
// source of the given length: ceil(total/d) chunks, each at most d long.
func PlanChunks(total, d time.Duration) []Chunk {
	if total <= 0 || d <= 0 {
		return nil
	}
	n := int((total + d - 1) / d)
	chunks := make([]Chunk, n)
	for i := range chunks {
		start := time.Duration(i) * d
		end := start + d
		if end > total {
			end = total
		}
		chunks[i] = Chunk{Index: i, Start: start, End: end}
	}
	return chunks
}

func (s *Segmenter) removeStale() error {
	stale, err := filepath.Glob(filepath.Join(s.cfg.WorkDir, chunkPrefix+"*"))
	if err != nil {
		return fmt.Errorf("list stale chunks: %w", err)
	}
	for _, p := range stale {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale chunk: %w", err)
		}
	}
	return nil
}

func validateSource(source string) error {
	if strings.TrimSpace(source) == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidSource)
	}
	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrInvalidSource, source)
	}
	return nil
}

func parseDuration(out string) (time.Duration, error) {
	out = strings.TrimSpace(out)
	secs, err := strconv.ParseFloat(out, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", out, err)
	}
	if secs < 0 {
		return 0, fmt.Errorf("negative duration %q", out)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
