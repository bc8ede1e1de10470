package metadata

import (
	"path/filepath"

	ptn "github.com/razsteinmetz/go-ptn"
	log "github.com/sirupsen/logrus"
)

// ReleaseInfo holds the release attributes of a video filename, for display
// and diagnostics. Matching itself relies on Parse.
type ReleaseInfo struct {
	Title        string `json:"title,omitempty"`
	Year         int    `json:"year,omitempty"`
	Season       int    `json:"season,omitempty"`
	Episode      int    `json:"episode,omitempty"`
	Resolution   string `json:"resolution,omitempty"` // e.g., "1080p", "720p"
	Source       string `json:"source,omitempty"`     // e.g., "BluRay", "WEB-DL"
	ReleaseGroup string `json:"releaseGroup,omitempty"`
}

// DescribeRelease runs the torrent-name parser over filename. A parser
// failure yields an empty ReleaseInfo.
func DescribeRelease(filename string) ReleaseInfo {
	parsed, err := ptn.Parse(filepath.Base(filename))
	if err != nil {
		log.WithError(err).WithField("file", filename).Debug("Release name parser failed")
		return ReleaseInfo{}
	}
	return ReleaseInfo{
		Title:        parsed.Title,
		Year:         parsed.Year,
		Season:       parsed.Season,
		Episode:      parsed.Episode,
		Resolution:   parsed.Resolution,
		Source:       parsed.Quality,
		ReleaseGroup: parsed.Group,
	}
}
