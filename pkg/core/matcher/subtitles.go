package matcher

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/angelospk/subdl/pkg/core/metadata"
	"github.com/angelospk/subdl/pkg/core/subsource"
)

// TargetFormat is the subtitle format written to disk.
const TargetFormat = "srt"

var (
	qualityTokens = []string{
		"web-dl", "webrip", "bluray", "blu-ray", "bdrip", "brrip", "hdtv",
		"dvdrip", "hdrip", "remux", "2160p", "1080p", "720p", "480p",
	}
	codecTokens = []string{"x265", "hevc", "x264", "avc"}

	// formatTokens are the subtitle formats recognised in catalog metadata.
	formatTokens = []string{"srt", "ass", "ssa", "vtt", "sub", "idx"}
)

// Filter keeps candidates in the wanted language whose format is inferred to
// be format. Input order is preserved.
func Filter(cands []subsource.SubtitleCandidate, lang metadata.LanguageInfo, format string) []subsource.SubtitleCandidate {
	synonyms := lang.Synonyms()
	format = metadata.Fold(format)
	var out []subsource.SubtitleCandidate
	for _, c := range cands {
		if LanguageMatches(c.Language, synonyms) && FormatMatches(c, format) {
			out = append(out, c)
		}
	}
	return out
}

// LanguageMatches reports whether a catalog language label names one of the
// synonyms. Codes of three letters or fewer must appear as a whole word so
// that "hindi" never matches "ind"; longer synonyms use substring tests in
// both directions.
func LanguageMatches(label string, synonyms []string) bool {
	l := metadata.Fold(strings.TrimSpace(label))
	if l == "" {
		return false
	}
	words := tokens(l)
	for _, syn := range synonyms {
		if len(syn) <= 3 {
			for _, w := range words {
				if w == syn {
					return true
				}
			}
			continue
		}
		if strings.Contains(l, syn) || (len(l) > 3 && strings.Contains(syn, l)) {
			return true
		}
	}
	return false
}

// FormatMatches infers a candidate's format from its format hints and then
// its release lines. The first field naming another known format excludes
// the candidate, the first naming the target includes it, and no signal at
// all includes it.
func FormatMatches(c subsource.SubtitleCandidate, target string) bool {
	fields := append(append([]string(nil), c.FormatHints...), c.ReleaseInfo...)
	for _, field := range fields {
		sawTarget := false
		for _, tok := range tokens(metadata.Fold(field)) {
			if tok == target {
				sawTarget = true
				continue
			}
			if isFormatToken(tok) {
				return false
			}
		}
		if sawTarget {
			return true
		}
	}
	return true
}

// ScoreSubtitle scores one candidate against the parsed query and the
// original video filename.
func ScoreSubtitle(query metadata.ParsedQuery, filename string, c subsource.SubtitleCandidate) float64 {
	return scoreSubtitle(query, filename, c).Score
}

func scoreSubtitle(query metadata.ParsedQuery, filename string, c subsource.SubtitleCandidate) Scored[subsource.SubtitleCandidate] {
	release := c.ReleaseText()
	lowerFile := metadata.Fold(filepath.Base(filename))
	lowerRelease := metadata.Fold(release)

	var reasons []string
	score := 0.0

	if ep := EpisodeScore(query.Episode, release); ep != 0 {
		score += float64(ep)
		reasons = append(reasons, fmt.Sprintf("episode=%+d", ep))
	}
	if tok, ok := sharedToken(qualityTokens, lowerFile, lowerRelease); ok {
		score += QualityBonus
		reasons = append(reasons, "quality="+tok)
	}
	if tok, ok := sharedToken(codecTokens, lowerFile, lowerRelease); ok {
		score += CodecBonus
		reasons = append(reasons, "codec="+tok)
	}
	if c.IsHearingImpaired() {
		score -= HearingImpairedPenalty
		reasons = append(reasons, "flag=hi")
	}

	sim := Similarity(metadata.Stem(filepath.Base(filename)), release)
	score += sim
	reasons = append(reasons, fmt.Sprintf("similarity=%.3f", sim))

	return Scored[subsource.SubtitleCandidate]{Candidate: c, Score: score, Reasons: reasons}
}

// RankSubtitles scores every candidate and orders them best first. Equal
// scores keep their catalog order.
func RankSubtitles(query metadata.ParsedQuery, filename string, cands []subsource.SubtitleCandidate) []Scored[subsource.SubtitleCandidate] {
	scored := make([]Scored[subsource.SubtitleCandidate], 0, len(cands))
	for _, c := range cands {
		scored = append(scored, scoreSubtitle(query, filename, c))
	}
	return rank(scored)
}

// sharedToken returns the first vocabulary entry present in both strings.
func sharedToken(vocab []string, a, b string) (string, bool) {
	for _, tok := range vocab {
		if strings.Contains(a, tok) && strings.Contains(b, tok) {
			return tok, true
		}
	}
	return "", false
}

func isFormatToken(tok string) bool {
	for _, f := range formatTokens {
		if tok == f {
			return true
		}
	}
	return false
}

// tokens splits on anything that is not a letter or digit.
func tokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
