package extract

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Format selects the stream class to extract.
type Format string

const (
	// FormatVideo requests a video-only stream.
	FormatVideo Format = "video"
	// FormatAudio requests a best-audio stream normalized to MP3.
	FormatAudio Format = "audio"
	// FormatBoth requests the best combined (or muxed) stream.
	FormatBoth Format = "both"
)

// IsValid returns true if the format is a known token.
func (f Format) IsValid() bool {
	return f == FormatVideo || f == FormatAudio || f == FormatBoth
}

// Resolution is a requested height ceiling token such as "720p" or "4K".
type Resolution string

// Height returns the pixel-height ceiling the token maps to.
// "4K" maps to 2160; "<N>p" maps to N.
func (r Resolution) Height() int {
	if strings.EqualFold(string(r), "4K") {
		return 2160
	}
	h, err := strconv.Atoi(strings.TrimSuffix(string(r), "p"))
	if err != nil {
		return 0
	}
	return h
}

// IsValid returns true if the token is one of the supported resolutions.
func (r Resolution) IsValid() bool {
	switch string(r) {
	case "144p", "360p", "480p", "720p", "1080p", "1440p", "4K":
		return true
	}
	return false
}

// degradeLadder is the fixed parameter ladder walked on retry. Each retry
// steps down to the next rung strictly below the current height ceiling.
var degradeLadder = []Resolution{"1080p", "720p", "480p"}

// Degrade returns the next lower rung of the retry ladder for r.
// ok is false when no lower rung exists.
func (r Resolution) Degrade() (next Resolution, ok bool) {
	h := r.Height()
	for _, rung := range degradeLadder {
		if rung.Height() < h {
			return rung, true
		}
	}
	return r, false
}

// ErrInvalidQuality is returned for malformed quality tokens.
var ErrInvalidQuality = errors.New("invalid quality token")

// ParseQuality splits a client quality token of the form
// "<resolution>_<format>" (e.g. "1080p_both") into its parts.
func ParseQuality(quality string) (Resolution, Format, error) {
	res, format, found := strings.Cut(quality, "_")
	if !found {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidQuality, quality)
	}

	r := Resolution(res)
	f := Format(format)
	if !r.IsValid() || !f.IsValid() {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidQuality, quality)
	}
	return r, f, nil
}
