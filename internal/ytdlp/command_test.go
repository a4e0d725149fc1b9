package ytdlp

import (
	"slices"
	"strings"
	"testing"

	"github.com/vidfetch/vidfetch-api/internal/extract"
)

func TestBuildArgs_Both(t *testing.T) {
	args := BuildArgs(extract.Request{
		URL:        "https://example.com/watch?v=abc",
		Resolution: "1080p",
		Format:     extract.FormatBoth,
		DestDir:    "/tmp/jobs/dl-1",
	})

	for _, flag := range []string{"--newline", "--no-playlist", "--merge-output-format"} {
		if !slices.Contains(args, flag) {
			t.Errorf("expected %s in args, got %v", flag, args)
		}
	}

	selector := argAfter(t, args, "-f")
	if !strings.Contains(selector, "height<=1080") {
		t.Errorf("expected height ceiling 1080 in selector %q", selector)
	}
	if strings.Count(selector, "/") < 3 {
		t.Errorf("expected at least 3 fallback alternatives in selector %q", selector)
	}
	if !strings.HasSuffix(selector, "/best") {
		t.Errorf("expected unconditional final fallback in selector %q", selector)
	}

	// URL must be the final argument
	if args[len(args)-1] != "https://example.com/watch?v=abc" {
		t.Errorf("expected URL last, got %v", args)
	}
}

func TestBuildArgs_Video(t *testing.T) {
	args := BuildArgs(extract.Request{
		URL:        "https://example.com/v",
		Resolution: "720p",
		Format:     extract.FormatVideo,
		DestDir:    "/tmp/jobs/dl-2",
	})

	selector := argAfter(t, args, "-f")
	if !strings.Contains(selector, "bestvideo[height<=720][ext=mp4][vcodec^=avc1]") {
		t.Errorf("expected strict container+codec first alternative, got %q", selector)
	}
	if slices.Contains(args, "-x") {
		t.Error("video request must not extract audio")
	}
	if slices.Contains(args, "--merge-output-format") {
		t.Error("video-only request must not set a merge container")
	}
}

func TestBuildArgs_Audio(t *testing.T) {
	args := BuildArgs(extract.Request{
		URL:        "https://example.com/v",
		Resolution: "4K",
		Format:     extract.FormatAudio,
		DestDir:    "/tmp/jobs/dl-3",
	})

	selector := argAfter(t, args, "-f")
	// Height ceilings never apply to audio
	if strings.Contains(selector, "height") {
		t.Errorf("audio selector must not carry a height ceiling: %q", selector)
	}
	if !strings.HasPrefix(selector, "bestaudio[ext=m4a]") {
		t.Errorf("expected m4a preference first, got %q", selector)
	}

	if !slices.Contains(args, "-x") {
		t.Error("expected -x for audio extraction")
	}
	fmtArg := argAfter(t, args, "--audio-format")
	if fmtArg != "mp3" {
		t.Errorf("expected mp3 normalization, got %q", fmtArg)
	}
}

func TestBuildArgs_OutputScopedToDestDir(t *testing.T) {
	args := BuildArgs(extract.Request{
		URL:        "https://example.com/v",
		Resolution: "480p",
		Format:     extract.FormatBoth,
		DestDir:    "/tmp/jobs/dl-4",
	})

	out := argAfter(t, args, "-o")
	if !strings.HasPrefix(out, "/tmp/jobs/dl-4/") {
		t.Errorf("output template must live under the job dir, got %q", out)
	}
	if !strings.Contains(out, "%(ext)s") {
		t.Errorf("output template must defer the extension to the tool, got %q", out)
	}
}

// argAfter returns the value following a flag, failing the test if absent.
func argAfter(t *testing.T, args []string, flag string) string {
	t.Helper()
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		t.Fatalf("flag %s not found in %v", flag, args)
	}
	return args[i+1]
}
