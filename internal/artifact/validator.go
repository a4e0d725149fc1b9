package artifact

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/vidfetch/vidfetch-api/internal/extract"
)

// Size floors per format class. Audio gets the looser floor; a zero-exit
// transfer that produced less than this is truncated, not a real payload.
const (
	minAudioBytes = 32 * 1024
	minVideoBytes = 256 * 1024
)

// signatureClass distinguishes containers that can only carry audio from
// ones that carry video (possibly with audio).
type signatureClass int

const (
	classUnknown signatureClass = iota
	classAudio
	classVideo
)

// Validate checks the located file against a size floor and a container
// signature appropriate to the requested format class. An invalid file is
// deleted (best-effort) before the classified error is returned; a corrupt
// artifact must never reach the upload stage.
func Validate(a Artifact, format extract.Format) error {
	if err := validate(a, format); err != nil {
		_ = os.Remove(a.Path)
		return err
	}
	return nil
}

func validate(a Artifact, format extract.Format) error {
	floor := int64(minVideoBytes)
	if format == extract.FormatAudio {
		floor = minAudioBytes
	}
	if a.Size < floor {
		return fmt.Errorf("%w: %d bytes, need at least %d", extract.ErrArtifactTooSmall, a.Size, floor)
	}

	head, err := readHead(a.Path, 16)
	if err != nil {
		return fmt.Errorf("%w: %v", extract.ErrBadSignature, err)
	}

	class := classify(head)
	switch {
	case class == classUnknown:
		return fmt.Errorf("%w: no known container signature", extract.ErrBadSignature)
	case format == extract.FormatAudio && class != classAudio:
		// Many video containers also carry audio, but an audio-only
		// request must produce an audio container.
		return fmt.Errorf("%w: video container for an audio request", extract.ErrBadSignature)
	}
	return nil
}

// classify inspects the leading bytes against known container signatures:
// ISO-BMFF "ftyp" (MP4/M4A family), EBML (WebM/Matroska), ID3 tag and MPEG
// frame sync (MP3).
func classify(head []byte) signatureClass {
	if len(head) >= 12 && bytes.Equal(head[4:8], []byte("ftyp")) {
		if isAudioBrand(head[8:12]) {
			return classAudio
		}
		return classVideo
	}
	if bytes.HasPrefix(head, []byte{0x1A, 0x45, 0xDF, 0xA3}) {
		return classVideo
	}
	if bytes.HasPrefix(head, []byte("ID3")) {
		return classAudio
	}
	if len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0 {
		return classAudio
	}
	return classUnknown
}

// isAudioBrand recognizes audio-only ISO-BMFF major brands (M4A/M4B).
func isAudioBrand(brand []byte) bool {
	return bytes.HasPrefix(brand, []byte("M4A")) || bytes.HasPrefix(brand, []byte("M4B"))
}

func readHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	head := make([]byte, n)
	read, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	return head[:read], nil
}
