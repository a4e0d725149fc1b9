package ytdlp

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vidfetch/vidfetch-api/internal/extract"
)

// Parser tuning. During the download phase progress is clamped to
// downloadCeiling; the remaining headroom is reserved for validation and
// upload, which the orchestrator reports itself.
const (
	downloadCeiling  = 90.0
	postProcessFloor = 85.0
	minEmitDelta     = 1.0
	minEmitInterval  = 2 * time.Second

	// maxPendingBytes bounds the buffered partial line. Real progress
	// lines are well under this; anything longer without a terminator is
	// noise and gets dropped rather than accumulated.
	maxPendingBytes = 4 << 10
)

// Percentage patterns in priority order. yt-dlp has changed its progress
// line format across releases; each variant is matched independently and
// the first hit wins.
var percentPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\[download\]\s+(\d{1,3}(?:\.\d+)?)%`),
	regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)%\s+of\b`),
	regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)%.*?ETA`),
}

var (
	speedPattern       = regexp.MustCompile(`(\d+(?:\.\d+)?\s?[KMGT]i?B/s)`)
	etaPattern         = regexp.MustCompile(`ETA\s+(\d[\d:]*)`)
	destinationPattern = regexp.MustCompile(`Destination:\s+(.+)`)
)

// postProcessMarkers indicate the bulk transfer is done and the tool moved
// on to audio extraction or muxing.
var postProcessMarkers = []string{
	"[ExtractAudio]",
	"Extracting audio",
	"[Merger]",
	"Merging formats",
	"[ffmpeg]",
}

// ProgressParser consumes the extraction tool's interleaved text output in
// arbitrary fragments and emits de-duplicated, rate-limited progress events.
// Percentages are monotonically non-decreasing; unparseable fragments are
// ignored.
type ProgressParser struct {
	emit extract.ProgressFunc
	now  func() time.Time

	pending     strings.Builder
	maxPercent  float64
	lastPercent float64
	lastEmit    time.Time
	destination string
}

// NewProgressParser creates a parser that delivers events through emit.
func NewProgressParser(emit extract.ProgressFunc) *ProgressParser {
	return &ProgressParser{
		emit: emit,
		now:  time.Now,
	}
}

// Write implements io.Writer so the parser can sit directly on the
// subprocess stdout pipe. It never returns an error.
func (p *ProgressParser) Write(b []byte) (int, error) {
	p.Feed(string(b))
	return len(b), nil
}

// Feed consumes a chunk of decoded text. Chunk boundaries are arbitrary:
// a partial trailing line is buffered until its terminator arrives. yt-dlp
// terminates progress lines with \r and regular lines with \n.
func (p *ProgressParser) Feed(chunk string) {
	text := p.pending.String() + chunk

	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] != '\n' && text[i] != '\r' {
			continue
		}
		if i > start {
			p.scanLine(text[start:i])
		}
		start = i + 1
	}

	p.pending.Reset()
	if tail := text[start:]; len(tail) <= maxPendingBytes {
		p.pending.WriteString(tail)
	}
}

// Destination returns the output path announced by the tool, if any.
func (p *ProgressParser) Destination() string {
	return p.destination
}

// MaxPercent returns the running maximum percentage seen so far.
func (p *ProgressParser) MaxPercent() float64 {
	return p.maxPercent
}

func (p *ProgressParser) scanLine(line string) {
	if m := destinationPattern.FindStringSubmatch(line); m != nil {
		p.destination = strings.TrimSpace(m[1])
	}

	ev := extract.ProgressEvent{}
	forced := false

	for _, marker := range postProcessMarkers {
		if strings.Contains(line, marker) {
			if p.maxPercent < postProcessFloor {
				p.maxPercent = postProcessFloor
			}
			ev.Phase = "post-processing"
			forced = true
			break
		}
	}

	if pct, ok := matchPercent(line); ok {
		// Monotonic clamp: never below the running maximum, never above
		// the download-phase ceiling.
		if pct > p.maxPercent {
			p.maxPercent = min(pct, downloadCeiling)
		}
	}

	if m := speedPattern.FindStringSubmatch(line); m != nil {
		ev.Speed = m[1]
	}
	if m := etaPattern.FindStringSubmatch(line); m != nil {
		ev.ETA = m[1]
	}

	if ev.Phase == "" && ev.Speed == "" && ev.ETA == "" && p.maxPercent == p.lastPercent {
		return
	}

	now := p.now()
	advanced := p.maxPercent-p.lastPercent >= minEmitDelta
	elapsed := now.Sub(p.lastEmit) >= minEmitInterval
	if !forced && !advanced && !elapsed {
		return
	}

	ev.Percent = p.maxPercent
	p.lastPercent = p.maxPercent
	p.lastEmit = now
	if p.emit != nil {
		p.emit(ev)
	}
}

// matchPercent tries each known percentage variant, first match wins.
func matchPercent(line string) (float64, bool) {
	for _, re := range percentPatterns {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		pct, err := strconv.ParseFloat(m[1], 64)
		if err != nil || pct < 0 || pct > 100 {
			continue
		}
		return pct, true
	}
	return 0, false
}
