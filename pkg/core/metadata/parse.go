package metadata

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// EpisodeTag is a canonical upper-case season/episode marker such as "S02E03".
// The zero value means no episode was found.
type EpisodeTag string

// ParsedQuery is the search-worthy information recovered from a filename.
type ParsedQuery struct {
	Title   string
	Year    int // 0 when no year was found
	Episode EpisodeTag
}

// String renders the query the way progress lines show it.
func (q ParsedQuery) String() string {
	s := q.Title
	if q.Year > 0 {
		s += fmt.Sprintf(" (%d)", q.Year)
	}
	if q.Episode != "" {
		s += " " + string(q.Episode)
	}
	return s
}

var (
	// Both patterns capture the whole marker in group 1 and demand a
	// non-alphanumeric neighbour on the left and a non-digit on the right,
	// so resolutions like 1920x1080 and long runs like S01E105 are ignored.
	seasonEpisodeRegex = regexp.MustCompile(`(?i)(?:^|[^a-z0-9])(s(\d{1,2})e(\d{1,2}))(?:[^0-9]|$)`)
	crossEpisodeRegex  = regexp.MustCompile(`(?i)(?:^|[^a-z0-9])((\d{1,2})x(\d{2,3}))(?:[^0-9]|$)`)

	yearRegex          = regexp.MustCompile(`(?:^|[^A-Za-z0-9])((?:19|20)\d{2})(?:[^A-Za-z0-9]|$)`)
	squareGroupRegex   = regexp.MustCompile(`\[([^\]]*)\]`)
	roundGroupRegex    = regexp.MustCompile(`\(([^)]*)\)`)
	separatorRegex     = regexp.MustCompile(`[._\-]+`)
	leftoverBracketRgx = regexp.MustCompile(`[(){}\[\]]`)
)

// releaseTokens are stripped from titles as whole tokens, case-insensitively.
var releaseTokens = []string{
	// resolutions
	"2160p", "1080p", "720p", "480p", "4K", "UHD",
	// sources
	"WEB-DL", "WEBDL", "WEBRip", "BluRay", "Blu-Ray", "BDRip", "BRRip", "HDRip", "DVDRip", "HDTV", "REMUX",
	// codecs
	"x264", "x265", "HEVC", "AVC", "H264", "H265", "H.264", "H.265", "10bit",
	// audio
	"AAC", "DTS", "AC3", "EAC3", "DD5.1", "DDP5.1", "FLAC", "MP3", "TrueHD", "Atmos",
	// dynamic range
	"HDR", "HDR10", "SDR",
	// edition flags
	"EXTENDED", "UNRATED", "REMASTERED", "PROPER", "REPACK", "IMAX",
	// streaming services
	"NF", "AMZN", "HULU", "DSNP", "ATVP",
}

var releaseTokenRegexes = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(releaseTokens))
	for _, tok := range releaseTokens {
		out = append(out, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(tok)))
	}
	return out
}()

// Parse extracts title, year and episode tag from a media filename. It never
// fails; an empty Title means nothing usable was left after cleaning.
//
// Everything from the episode marker onwards is discarded, since TV releases
// put quality and group tags after it.
func Parse(filename string) ParsedQuery {
	stem := Stem(filepath.Base(filename))

	var q ParsedQuery
	work := stem
	if tag, start := findEpisode(stem); tag != "" {
		q.Episode = tag
		work = stem[:start]
	}

	yearText := ""
	if m := yearRegex.FindStringSubmatch(work); m != nil {
		yearText = m[1]
		q.Year, _ = strconv.Atoi(yearText)
	}

	cleaned := removeGroups(work, yearText)
	for _, re := range releaseTokenRegexes {
		cleaned = removeWholeToken(cleaned, re)
	}

	title := cleaned
	if yearText != "" {
		title = removeWholeToken(title, regexp.MustCompile(yearText))
	}
	// A name that is only a year ("1917.mkv") leaves the title empty.
	q.Title = tidy(title)
	return q
}

// ParseEpisodeTag finds the first episode marker in free text and returns its
// canonical form, or "" when there is none.
func ParseEpisodeTag(text string) EpisodeTag {
	tag, _ := findEpisode(text)
	return tag
}

// findEpisode returns the canonical tag and the byte offset where it starts.
func findEpisode(text string) (EpisodeTag, int) {
	for _, re := range []*regexp.Regexp{seasonEpisodeRegex, crossEpisodeRegex} {
		loc := re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		season, _ := strconv.Atoi(text[loc[4]:loc[5]])
		episode, _ := strconv.Atoi(text[loc[6]:loc[7]])
		return EpisodeTag(fmt.Sprintf("S%02dE%02d", season, episode)), loc[2]
	}
	return "", -1
}

// Stem strips a trailing file extension. Purely numeric suffixes such as the
// ".2023" in "Movie.2023" are not treated as extensions.
func Stem(name string) string {
	ext := filepath.Ext(name)
	if len(ext) < 2 || len(ext) > 5 {
		return name
	}
	hasLetter := false
	for _, r := range ext[1:] {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			hasLetter = true
		case r >= '0' && r <= '9':
		default:
			return name
		}
	}
	if !hasLetter {
		return name
	}
	return strings.TrimSuffix(name, ext)
}

// removeGroups drops [..] and (..) groups whose content is not exactly the year.
func removeGroups(s, year string) string {
	keep := func(re *regexp.Regexp) func(string) string {
		return func(group string) string {
			inner := re.FindStringSubmatch(group)[1]
			if year != "" && strings.TrimSpace(inner) == year {
				return group
			}
			return " "
		}
	}
	s = squareGroupRegex.ReplaceAllStringFunc(s, keep(squareGroupRegex))
	return roundGroupRegex.ReplaceAllStringFunc(s, keep(roundGroupRegex))
}

// removeWholeToken deletes matches of re that are not part of a longer
// alphanumeric run.
func removeWholeToken(s string, re *regexp.Regexp) string {
	locs := re.FindAllStringIndex(s, -1)
	if locs == nil {
		return s
	}
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		if !isTokenBoundary(s, loc[0]-1) || !isTokenBoundary(s, loc[1]) {
			continue
		}
		b.WriteString(s[last:loc[0]])
		last = loc[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

func isTokenBoundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	c := s[i]
	return !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9')
}

func tidy(s string) string {
	s = separatorRegex.ReplaceAllString(s, " ")
	s = leftoverBracketRgx.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}
