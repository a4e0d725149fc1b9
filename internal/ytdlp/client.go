// Package ytdlp drives the external yt-dlp extraction tool as a black-box
// subprocess: it builds argument vectors, supervises the process lifecycle,
// and parses the tool's best-effort text progress protocol.
package ytdlp

import (
	"context"
	"log/slog"
	"os/exec"
	"time"

	"github.com/vidfetch/vidfetch-api/internal/extract"
)

// Default tool settings.
const (
	DefaultBinary       = "yt-dlp"
	DefaultFfmpegBinary = "ffmpeg"
	DefaultTimeout      = 10 * time.Minute
	probeTimeout        = 60 * time.Second
)

// Client runs yt-dlp. It implements extract.Extractor.
type Client struct {
	binary  string
	ffmpeg  string
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBinary overrides the yt-dlp executable path.
func WithBinary(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.binary = path
		}
	}
}

// WithFfmpeg overrides the ffmpeg executable path handed to yt-dlp for
// post-processing.
func WithFfmpeg(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.ffmpeg = path
		}
	}
}

// WithTimeout sets the per-attempt wall-clock budget for a download.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a yt-dlp client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		binary:  DefaultBinary,
		ffmpeg:  DefaultFfmpegBinary,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Available verifies that yt-dlp and its ffmpeg companion can be invoked.
func (c *Client) Available() error {
	if _, err := exec.LookPath(c.binary); err != nil {
		return extract.ErrToolUnavailable
	}
	if _, err := exec.LookPath(c.ffmpeg); err != nil {
		return extract.ErrToolUnavailable
	}
	return nil
}

// Download runs one extraction attempt to completion. Progress events
// parsed from stdout are delivered through onProgress; the returned error
// is classified per the extract package taxonomy.
func (c *Client) Download(ctx context.Context, req extract.Request, onProgress extract.ProgressFunc) (*extract.Result, error) {
	parser := NewProgressParser(onProgress)

	args := BuildArgs(req)
	if c.ffmpeg != DefaultFfmpegBinary {
		args = append([]string{"--ffmpeg-location", c.ffmpeg}, args...)
	}

	stderr, err := c.run(ctx, args, parser)
	res := &extract.Result{
		Stderr:          stderr,
		DestinationHint: parser.Destination(),
	}
	if err != nil {
		return res, err
	}
	return res, nil
}

// Compile-time check that Client implements extract.Extractor.
var _ extract.Extractor = (*Client)(nil)
