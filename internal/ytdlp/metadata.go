package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/vidfetch/vidfetch-api/internal/extract"
)

// probePayload is the narrow slice of yt-dlp's --dump-json output the
// pipeline consumes. Everything else the tool emits is dropped at the
// boundary.
type probePayload struct {
	Title     string  `json:"title"`
	Thumbnail string  `json:"thumbnail"`
	Duration  float64 `json:"duration"`
	Uploader  string  `json:"uploader"`
	Channel   string  `json:"channel"`
}

// Probe fetches source metadata without downloading media.
func (c *Client) Probe(ctx context.Context, url string) (*extract.Metadata, error) {
	if _, err := exec.LookPath(c.binary); err != nil {
		return nil, fmt.Errorf("%w: %s not found in PATH", extract.ErrToolUnavailable, c.binary)
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.binary,
		"--dump-json",
		"--no-playlist",
		"--skip-download",
		url,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: metadata probe after %s", extract.ErrTimeout, probeTimeout)
		}
		return nil, fmt.Errorf("%w: probe: %s", extract.ErrExtractionFailed, diagnosticTail(stderr.String()))
	}

	var payload probePayload
	if err := json.Unmarshal(stdout.Bytes(), &payload); err != nil {
		return nil, fmt.Errorf("%w: probe output: %v", extract.ErrExtractionFailed, err)
	}

	uploader := payload.Uploader
	if uploader == "" {
		uploader = payload.Channel
	}

	return &extract.Metadata{
		Title:        payload.Title,
		ThumbnailURL: payload.Thumbnail,
		DurationSec:  payload.Duration,
		Uploader:     uploader,
	}, nil
}
