package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vidfetch/vidfetch-api/internal/extract"
)

func writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLocate_LargestWins(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "small.mp4", 100)
	want := writeFile(t, dir, "big.mp4", 5000)

	a, err := Locate(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Path != want {
		t.Errorf("expected %s, got %s", want, a.Path)
	}
	if a.Size != 5000 {
		t.Errorf("expected size 5000, got %d", a.Size)
	}
}

func TestLocate_SkipsPartialsAndSidecars(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "video.mp4.part", 9000)
	writeFile(t, dir, "video.mp4.ytdl", 9000)
	writeFile(t, dir, "video.info.json", 9000)
	writeFile(t, dir, "video.description", 9000)
	writeFile(t, dir, "thumb.jpg", 9000)
	writeFile(t, dir, "subs.vtt", 9000)
	want := writeFile(t, dir, "video.mp4", 1000)

	a, err := Locate(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Path != want {
		t.Errorf("expected payload %s despite larger non-candidates, got %s", want, a.Path)
	}
}

func TestLocate_TieBrokenByModTime(t *testing.T) {
	dir := t.TempDir()
	older := writeFile(t, dir, "a.mp4", 2000)
	newer := writeFile(t, dir, "b.mp4", 2000)

	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(older, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	a, err := Locate(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Path != newer {
		t.Errorf("expected newest of equal-size candidates, got %s", a.Path)
	}
}

func TestLocate_IgnoresSubdirectories(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "fragments"), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	want := writeFile(t, dir, "video.webm", 1500)

	a, err := Locate(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Path != want {
		t.Errorf("expected %s, got %s", want, a.Path)
	}
}

func TestLocate_Empty(t *testing.T) {
	_, err := Locate(t.TempDir())
	if !errors.Is(err, extract.ErrNoArtifact) {
		t.Fatalf("expected ErrNoArtifact, got %v", err)
	}
}

func TestLocate_OnlyNonCandidates(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "video.mp4.part", 9000)
	writeFile(t, dir, "video.info.json", 500)

	_, err := Locate(dir)
	if !errors.Is(err, extract.ErrNoArtifact) {
		t.Fatalf("expected ErrNoArtifact, got %v", err)
	}
}

func TestLocate_MissingDir(t *testing.T) {
	_, err := Locate(filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, extract.ErrNoArtifact) {
		t.Fatalf("expected ErrNoArtifact, got %v", err)
	}
}

func TestArtifact_Ext(t *testing.T) {
	tests := []struct {
		path string
		ext  string
	}{
		{"/tmp/a/Video Title.mp4", ".mp4"},
		{"/tmp/a/SONG.MP3", ".mp3"},
		{"/tmp/a/noext", ""},
	}
	for _, tt := range tests {
		a := Artifact{Path: tt.path}
		if got := a.Ext(); got != tt.ext {
			t.Errorf("%s: expected %q, got %q", tt.path, tt.ext, got)
		}
	}
}
