package processor

import (
	"context"
	"strings"

	"github.com/angelospk/subdl/pkg/core/subsource"
)

type titleKey struct {
	title string
	year  int
}

// Cache remembers catalog answers for the lifetime of one run, so episodes of
// the same series cost one search and one listing. It is owned by a single
// Run and is not safe for concurrent use.
type Cache struct {
	titles    map[titleKey][]subsource.TitleCandidate
	subtitles map[string][]subsource.SubtitleCandidate
}

// NewCache returns an empty session cache.
func NewCache() *Cache {
	return &Cache{
		titles:    make(map[titleKey][]subsource.TitleCandidate),
		subtitles: make(map[string][]subsource.SubtitleCandidate),
	}
}

func (p *Processor) searchTitles(ctx context.Context, cache *Cache, title string, year int) ([]subsource.TitleCandidate, error) {
	key := titleKey{title: strings.ToLower(title), year: year}
	if titles, ok := cache.titles[key]; ok {
		p.logger.WithField("title", title).Debug("Title search served from cache")
		return titles, nil
	}
	titles, err := p.catalog.SearchTitles(ctx, title, year)
	if err != nil {
		return nil, err
	}
	cache.titles[key] = titles
	return titles, nil
}

func (p *Processor) listSubtitles(ctx context.Context, cache *Cache, titleID string) ([]subsource.SubtitleCandidate, error) {
	if subs, ok := cache.subtitles[titleID]; ok {
		p.logger.WithField("titleId", titleID).Debug("Subtitle list served from cache")
		return subs, nil
	}
	subs, err := p.catalog.ListSubtitles(ctx, titleID, p.opts.Language.APIName())
	if err != nil {
		return nil, err
	}
	cache.subtitles[titleID] = subs
	return subs, nil
}
