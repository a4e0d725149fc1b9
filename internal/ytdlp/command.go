package ytdlp

import (
	"fmt"
	"path/filepath"

	"github.com/vidfetch/vidfetch-api/internal/extract"
)

// outputTemplate is the yt-dlp output template used for every download.
// The artifact lands in the job-scoped destination directory, so concurrent
// jobs can never collide on a filename.
const outputTemplate = "%(title).180B.%(ext)s"

// BuildArgs constructs the yt-dlp argument vector for one extraction
// attempt. It is a pure function over the request.
func BuildArgs(req extract.Request) []string {
	args := []string{
		"--newline",
		"--no-playlist",
		"--no-warnings",
	}

	switch req.Format {
	case extract.FormatAudio:
		args = append(args,
			"-f", audioSelector(),
			"-x",
			"--audio-format", "mp3",
			"--audio-quality", "0",
		)
	case extract.FormatVideo:
		args = append(args, "-f", videoSelector(req.Resolution.Height()))
	default:
		args = append(args,
			"-f", combinedSelector(req.Resolution.Height()),
			"--merge-output-format", "mp4",
		)
	}

	args = append(args, "-o", filepath.Join(req.DestDir, outputTemplate))
	args = append(args, req.URL)
	return args
}

// audioSelector prefers an M4A stream, then any best-audio stream. Height
// ceilings never apply to audio-only requests.
func audioSelector() string {
	return "bestaudio[ext=m4a]/bestaudio/best"
}

// videoSelector builds a video-only fallback chain capped at height h:
// exact container+codec, relaxed codec, best video under the ceiling, best
// anything under the ceiling, best unconditionally.
func videoSelector(h int) string {
	return fmt.Sprintf(
		"bestvideo[height<=%d][ext=mp4][vcodec^=avc1]/bestvideo[height<=%d][ext=mp4]/bestvideo[height<=%d]/best[height<=%d]/best",
		h, h, h, h,
	)
}

// combinedSelector builds a muxed video+audio fallback chain capped at
// height h, relaxing container then codec constraints before falling back
// to pre-muxed streams.
func combinedSelector(h int) string {
	return fmt.Sprintf(
		"bestvideo[height<=%d][ext=mp4][vcodec^=avc1]+bestaudio[ext=m4a]/bestvideo[height<=%d][ext=mp4]+bestaudio/bestvideo[height<=%d]+bestaudio/best[height<=%d]/best",
		h, h, h, h,
	)
}
