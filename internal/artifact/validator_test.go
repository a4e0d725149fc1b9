package artifact

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/vidfetch/vidfetch-api/internal/extract"
)

// writeArtifact creates a file of the given total size starting with head.
func writeArtifact(t *testing.T, name string, head []byte, size int) Artifact {
	t.Helper()
	data := make([]byte, size)
	copy(data, head)
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return Artifact{Path: path, Size: int64(size)}
}

var (
	mp4Head  = append([]byte{0x00, 0x00, 0x00, 0x20}, []byte("ftypisom")...)
	m4aHead  = append([]byte{0x00, 0x00, 0x00, 0x20}, []byte("ftypM4A ")...)
	ebmlHead = []byte{0x1A, 0x45, 0xDF, 0xA3, 0x01, 0x00, 0x00, 0x00}
	id3Head  = []byte("ID3\x04\x00\x00\x00\x00\x00\x00")
	mp3Head  = []byte{0xFF, 0xFB, 0x90, 0x00}
)

func TestValidate_AcceptsGoodArtifacts(t *testing.T) {
	tests := []struct {
		name   string
		head   []byte
		size   int
		format extract.Format
	}{
		{"mp4 video", mp4Head, 300 * 1024, extract.FormatVideo},
		{"mp4 both", mp4Head, 300 * 1024, extract.FormatBoth},
		{"webm video", ebmlHead, 300 * 1024, extract.FormatVideo},
		{"m4a audio", m4aHead, 40 * 1024, extract.FormatAudio},
		{"id3 mp3 audio", id3Head, 40 * 1024, extract.FormatAudio},
		{"raw mp3 frame audio", mp3Head, 40 * 1024, extract.FormatAudio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := writeArtifact(t, "file.bin", tt.head, tt.size)
			if err := Validate(a, tt.format); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if _, err := os.Stat(a.Path); err != nil {
				t.Error("valid artifact must survive validation")
			}
		})
	}
}

func TestValidate_TooSmall(t *testing.T) {
	tests := []struct {
		name   string
		head   []byte
		size   int
		format extract.Format
	}{
		{"truncated video", mp4Head, 10 * 1024, extract.FormatVideo},
		{"truncated both", mp4Head, 255 * 1024, extract.FormatBoth},
		{"truncated audio", id3Head, 16 * 1024, extract.FormatAudio},
		{"zero bytes", nil, 0, extract.FormatVideo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := writeArtifact(t, "file.bin", tt.head, tt.size)
			err := Validate(a, tt.format)
			if !errors.Is(err, extract.ErrArtifactTooSmall) {
				t.Fatalf("expected ErrArtifactTooSmall, got %v", err)
			}
			if _, serr := os.Stat(a.Path); !os.IsNotExist(serr) {
				t.Error("invalid artifact must be deleted")
			}
		})
	}
}

func TestValidate_BadSignature(t *testing.T) {
	// An HTML error page saved with a media extension is the classic case.
	a := writeArtifact(t, "video.mp4", []byte("<!DOCTYPE html><html>"), 300*1024)

	err := Validate(a, extract.FormatVideo)
	if !errors.Is(err, extract.ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
	if _, serr := os.Stat(a.Path); !os.IsNotExist(serr) {
		t.Error("invalid artifact must be deleted")
	}
}

func TestValidate_AudioRequestRejectsVideoContainer(t *testing.T) {
	a := writeArtifact(t, "out.webm", ebmlHead, 40*1024)

	err := Validate(a, extract.FormatAudio)
	if !errors.Is(err, extract.ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		head []byte
		want signatureClass
	}{
		{"mp4", mp4Head, classVideo},
		{"m4a", m4aHead, classAudio},
		{"m4b", append([]byte{0, 0, 0, 0x20}, []byte("ftypM4B ")...), classAudio},
		{"ebml", ebmlHead, classVideo},
		{"id3", id3Head, classAudio},
		{"mp3 sync", mp3Head, classAudio},
		{"text", []byte("hello world, not media"), classUnknown},
		{"short", []byte{0xFF}, classUnknown},
		{"empty", nil, classUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			head := make([]byte, 0, 16)
			head = append(head, tt.head...)
			if len(head) > 16 {
				head = head[:16]
			}
			if got := classify(head); got != tt.want {
				t.Errorf("expected class %d, got %d", tt.want, got)
			}
		})
	}
}

func TestClassify_PaddedHeads(t *testing.T) {
	// classify sees exactly what readHead returns for a full-size file.
	head := make([]byte, 16)
	copy(head, mp4Head)
	if got := classify(head); got != classVideo {
		t.Errorf("expected video, got %d", got)
	}
	if !bytes.Equal(head[4:8], []byte("ftyp")) {
		t.Fatal("test fixture corrupted")
	}
}
