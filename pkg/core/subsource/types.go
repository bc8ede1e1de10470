package subsource

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// --- Request parameters ---

// SearchParams defines the query for the title search endpoint.
type SearchParams struct {
	SearchType string `url:"searchType"`
	Query      string `url:"q"`
	Year       int    `url:"year,omitempty"`
}

// ListParams defines the query for the subtitle listing endpoint.
type ListParams struct {
	MovieID  string `url:"movieId"`
	Language string `url:"language"`
}

// --- Response types ---

// MediaType classifies a catalog title.
type MediaType string

const (
	MediaMovie   MediaType = "movie"
	MediaSeries  MediaType = "series"
	MediaUnknown MediaType = ""
)

// TitleCandidate is one title returned by the search endpoint.
type TitleCandidate struct {
	ID          string
	Title       string
	ReleaseYear int // 0 when unknown
	MediaType   MediaType
}

// Rating is the community vote tally of a subtitle.
type Rating struct {
	Good  int `json:"good"`
	Total int `json:"total"`
}

// SubtitleCandidate is one subtitle returned by the listing endpoint.
type SubtitleCandidate struct {
	ID              string
	Language        string
	ReleaseInfo     []string
	HearingImpaired *bool
	Rating          *Rating
	Downloads       *int
	FormatHints     []string // format, extension, type, fileType in that order
}

// ReleaseText joins the release lines into one string for matching.
func (s SubtitleCandidate) ReleaseText() string {
	return strings.Join(s.ReleaseInfo, " ")
}

// IsHearingImpaired reports a positive hearing-impaired flag.
func (s SubtitleCandidate) IsHearingImpaired() bool {
	return s.HearingImpaired != nil && *s.HearingImpaired
}

// UnmarshalJSON decodes a search result, accepting numeric or string ids and years.
func (t *TitleCandidate) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = TitleCandidate{
		ID:          firstScalar(raw, "movieId", "id"),
		Title:       firstScalar(raw, "title", "name"),
		ReleaseYear: atoiOrZero(firstScalar(raw, "releaseYear", "year")),
		MediaType:   normalizeMediaType(firstScalar(raw, "type", "mediaType")),
	}
	return nil
}

// UnmarshalJSON decodes a listing entry. releaseInfo may be a list or a single string.
func (s *SubtitleCandidate) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = SubtitleCandidate{
		ID:          firstScalar(raw, "subtitleId", "id"),
		Language:    firstScalar(raw, "language", "lang"),
		ReleaseInfo: stringList(raw["releaseInfo"]),
	}

	if v, ok := raw["hearingImpaired"]; ok {
		var hi bool
		if json.Unmarshal(v, &hi) == nil {
			s.HearingImpaired = &hi
		} else if n, err := strconv.Atoi(scalarString(v)); err == nil {
			hi = n != 0
			s.HearingImpaired = &hi
		}
	}
	if v, ok := raw["rating"]; ok {
		var r Rating
		if json.Unmarshal(v, &r) == nil {
			s.Rating = &r
		}
	}
	if v, ok := raw["downloads"]; ok {
		if n, err := strconv.Atoi(scalarString(v)); err == nil {
			s.Downloads = &n
		}
	}
	for _, key := range []string{"format", "extension", "type", "fileType"} {
		var hint string
		if v, ok := raw[key]; ok && json.Unmarshal(v, &hint) == nil && hint != "" {
			s.FormatHints = append(s.FormatHints, hint)
		}
	}
	return nil
}

// firstScalar returns the first key holding a string or number, as a string.
func firstScalar(raw map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		if v, ok := raw[key]; ok {
			if s := scalarString(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func scalarString(v json.RawMessage) string {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return ""
	}
	var s string
	if json.Unmarshal(v, &s) == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if json.Unmarshal(v, &n) == nil {
		return n.String()
	}
	return ""
}

func stringList(v json.RawMessage) []string {
	if len(v) == 0 {
		return nil
	}
	var list []json.RawMessage
	if json.Unmarshal(v, &list) == nil {
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s := scalarString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	if s := scalarString(v); s != "" {
		return []string{s}
	}
	return nil
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func normalizeMediaType(s string) MediaType {
	switch strings.ToLower(s) {
	case "movie", "movies", "film":
		return MediaMovie
	case "series", "tvseries", "tv", "tvshow", "show", "episode":
		return MediaSeries
	default:
		return MediaUnknown
	}
}
