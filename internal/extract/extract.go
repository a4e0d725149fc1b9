// Package extract provides the common interface for media extraction
// backends. The concrete yt-dlp adapter implements this interface.
package extract

import "context"

// Metadata is the narrowly-typed source metadata the pipeline consumes.
// It is fetched once before a download and denormalized into the job record.
type Metadata struct {
	// Title is the human-readable title of the source media.
	Title string
	// ThumbnailURL is the preview image URL, if any.
	ThumbnailURL string
	// DurationSec is the media duration in seconds.
	DurationSec float64
	// Uploader is the channel or account that published the media.
	Uploader string
}

// ProgressEvent is a structured progress update parsed from the extraction
// tool's text output. Events are produced by the stream parser and consumed
// exclusively by the download orchestrator.
type ProgressEvent struct {
	// Percent is the download progress in [0,100].
	Percent float64
	// Speed is a best-effort transfer rate string (e.g. "1.24MiB/s").
	Speed string
	// ETA is a best-effort remaining-time string (e.g. "00:41").
	ETA string
	// Phase marks a pipeline phase transition (e.g. "post-processing").
	Phase string
}

// ProgressFunc receives progress events during a download.
type ProgressFunc func(ev ProgressEvent)

// Result is the outcome of a finished extraction subprocess.
type Result struct {
	// Stderr is the captured (truncated) diagnostic output.
	Stderr string
	// DestinationHint is the output path announced on stdout, if any.
	DestinationHint string
}

// Request describes one extraction attempt.
type Request struct {
	// URL is the source media URL.
	URL string
	// Resolution is the requested height ceiling token (e.g. "1080p", "4K").
	Resolution Resolution
	// Format selects the stream class to extract.
	Format Format
	// DestDir is the job-scoped directory the artifact is written into.
	DestDir string
}

// Extractor defines the interface for media extraction backends.
type Extractor interface {
	// Probe fetches source metadata without downloading media.
	Probe(ctx context.Context, url string) (*Metadata, error)

	// Download runs the extraction to completion, streaming progress events
	// through onProgress. The returned error is classified per the package
	// error taxonomy.
	Download(ctx context.Context, req Request, onProgress ProgressFunc) (*Result, error)
}
