package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	log "github.com/sirupsen/logrus"

	coreErrors "github.com/angelospk/subdl/pkg/core/errors"
	"github.com/angelospk/subdl/pkg/core/matcher"
	"github.com/angelospk/subdl/pkg/core/metadata"
)

// zipMagic is the local file header signature at offset 0 of a ZIP file.
var zipMagic = []byte("PK\x03\x04")

// IsArchive reports whether data starts with the ZIP signature.
func IsArchive(data []byte) bool {
	return bytes.HasPrefix(data, zipMagic)
}

// Resolve picks the subtitle entry of a ZIP payload that best fits the video.
// It returns nil, nil when no entry has the wanted extension. With several
// candidates the one with the highest episode score plus name similarity to
// videoBaseName wins; the earliest entry wins ties.
func Resolve(data []byte, videoBaseName, ext string) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &coreErrors.CorruptArchiveError{Err: err}
	}

	entries := subtitleEntries(zr.File, ext)
	if len(entries) == 0 {
		return nil, nil
	}
	if len(entries) == 1 {
		return readEntry(entries[0])
	}

	videoStem := metadata.Stem(videoBaseName)
	want := metadata.ParseEpisodeTag(videoStem)

	best := entries[0]
	bestScore := -1e9
	for _, f := range entries {
		entryStem := metadata.Stem(path.Base(f.Name))
		score := float64(matcher.EpisodeScore(want, entryStem)) + matcher.Similarity(videoStem, entryStem)
		log.WithFields(log.Fields{"entry": f.Name, "score": score}).Debug("Scored archive entry")
		if score > bestScore {
			best, bestScore = f, score
		}
	}
	return readEntry(best)
}

// subtitleEntries lists regular files with the wanted extension, skipping
// macOS resource forks and metadata folders.
func subtitleEntries(files []*zip.File, ext string) []*zip.File {
	ext = strings.ToLower(ext)
	var out []*zip.File
	for _, f := range files {
		name := f.Name
		if f.FileInfo().IsDir() || strings.HasSuffix(name, "/") {
			continue
		}
		if strings.HasPrefix(name, "__MACOSX/") || strings.Contains(name, "/__MACOSX/") {
			continue
		}
		if strings.HasPrefix(path.Base(name), "._") {
			continue
		}
		if strings.ToLower(path.Ext(name)) != ext {
			continue
		}
		out = append(out, f)
	}
	return out
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, &coreErrors.CorruptArchiveError{Err: fmt.Errorf("open %s: %w", f.Name, err)}
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &coreErrors.CorruptArchiveError{Err: fmt.Errorf("read %s: %w", f.Name, err)}
	}
	return data, nil
}
