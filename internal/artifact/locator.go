// Package artifact locates and validates the media file an extraction run
// leaves on disk before it is allowed downstream.
package artifact

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/vidfetch/vidfetch-api/internal/extract"
)

// Artifact describes a located output file pending validation.
type Artifact struct {
	// Path is the absolute location on disk.
	Path string
	// Size is the file size in bytes.
	Size int64
}

// Ext returns the extension observed on disk, including the dot.
// The extraction tool may substitute container formats, so downstream code
// must trust this over the originally requested one.
func (a Artifact) Ext() string {
	return strings.ToLower(filepath.Ext(a.Path))
}

// partialSuffixes mark in-flight or resumable transfer state.
var partialSuffixes = []string{".part", ".ytdl", ".tmp", ".temp", ".download"}

// sidecarSuffixes mark metadata/subtitle companions the tool writes next to
// the payload.
var sidecarSuffixes = []string{
	".json", ".info.json", ".description",
	".srt", ".vtt",
	".jpg", ".jpeg", ".png", ".webp",
}

// Locate scans dir for the produced media file. Partial files and sidecars
// are filtered out; among the remaining candidates the largest wins, ties
// broken by most recent modification; a larger finished file is more
// likely the payload than a stray leftover.
func Locate(dir string) (Artifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: read %s: %v", extract.ErrNoArtifact, dir, err)
	}

	var (
		best     Artifact
		bestInfo fs.FileInfo
	)
	for _, entry := range entries {
		if entry.IsDir() || !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if skipName(name) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		switch {
		case bestInfo == nil,
			info.Size() > bestInfo.Size(),
			info.Size() == bestInfo.Size() && info.ModTime().After(bestInfo.ModTime()):
			best = Artifact{Path: filepath.Join(dir, name), Size: info.Size()}
			bestInfo = info
		}
	}

	if bestInfo == nil {
		return Artifact{}, fmt.Errorf("%w: no candidate in %s", extract.ErrNoArtifact, dir)
	}
	return best, nil
}

func skipName(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	for _, suffix := range sidecarSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
