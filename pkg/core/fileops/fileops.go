package fileops

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	coreErrors "github.com/angelospk/subdl/pkg/core/errors"
)

// ErrNotVideo is returned when a single input file is not a supported video.
var ErrNotVideo = errors.New("fileops: not a supported video file")

// VideoExtensions are matched case-insensitively.
var VideoExtensions = map[string]bool{
	".mkv": true, ".mp4": true, ".avi": true, ".mov": true, ".m4v": true,
}

// SupportedExtensions lists VideoExtensions in sorted order for messages.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(VideoExtensions))
	for ext := range VideoExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// IsVideo reports whether path has a supported video extension.
func IsVideo(path string) bool {
	return VideoExtensions[strings.ToLower(filepath.Ext(path))]
}

// DiscoverVideos returns the video files at root: root itself when it is a
// video file, or every video below it when it is a directory. The result is
// sorted case-insensitively by path.
func DiscoverVideos(ctx context.Context, fsys afero.Fs, root string) ([]string, error) {
	info, err := fsys.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("cannot access %s: %w", root, err)
	}
	if !info.IsDir() {
		if !IsVideo(root) {
			return nil, fmt.Errorf("%s: %w (supported: %s)", filepath.Base(root), ErrNotVideo, strings.Join(SupportedExtensions(), ", "))
		}
		return []string{root}, nil
	}

	var videos []string
	err = afero.Walk(fsys, root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			log.Warnf("Error accessing path %q: %v", path, err)
			if fi != nil && fi.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !fi.IsDir() && IsVideo(path) {
			videos = append(videos, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(videos, func(i, j int) bool {
		li, lj := strings.ToLower(videos[i]), strings.ToLower(videos[j])
		if li == lj {
			return videos[i] < videos[j]
		}
		return li < lj
	})
	log.Debugf("Found %d video files in %s", len(videos), root)
	return videos, nil
}

// SubtitlePath is the sidecar path for a video: same directory and base
// name with ext replacing the video extension.
func SubtitlePath(videoPath, ext string) string {
	return strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + ext
}

// WriteFileAtomic writes data to a temporary sibling and renames it over
// target, so readers never see a partial file. On failure the temporary
// file is removed and a FileSystemError is returned.
func WriteFileAtomic(fsys afero.Fs, target string, data []byte) error {
	tmp := target + ".tmp"
	if err := afero.WriteFile(fsys, tmp, data, 0o644); err != nil {
		cleanupTemp(fsys, tmp)
		return &coreErrors.FileSystemError{Op: "write", Path: target, Err: err}
	}
	if err := fsys.Rename(tmp, target); err != nil {
		cleanupTemp(fsys, tmp)
		return &coreErrors.FileSystemError{Op: "rename", Path: target, Err: err}
	}
	return nil
}

func cleanupTemp(fsys afero.Fs, tmp string) {
	if err := fsys.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).WithField("file", tmp).Debug("Could not remove temporary file")
	}
}
