package matcher

import (
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/angelospk/subdl/pkg/core/metadata"
)

// Score weights. Every other rule is sized so that one episode match outweighs
// all the non-episode bonuses combined.
const (
	EpisodeMatchBonus      = 50
	EpisodeMismatchPenalty = 50
	QualityBonus           = 10
	CodecBonus             = 10
	HearingImpairedPenalty = 15

	// AutoAcceptScore is the top score at which a subtitle is taken without
	// asking. It is the episode bonus itself: only a confirmed episode match
	// can reach it.
	AutoAcceptScore = EpisodeMatchBonus
)

// Prompt list sizes.
const (
	MaxSubtitleChoices = 20
	MaxTitleChoices    = 10
)

// Scored pairs a candidate with its computed score. The candidate is never modified.
type Scored[T any] struct {
	Candidate T
	Score     float64
	Reasons   []string
}

// MatchDecision tells the caller what to do with a ranked list. OK is false
// when there is nothing to pick; otherwise Index is the default choice and
// Auto reports whether it may be taken without asking.
type MatchDecision struct {
	Index int
	OK    bool
	Auto  bool
}

// Decide applies the auto-accept threshold to a ranked list.
func Decide[T any](ranked []Scored[T]) MatchDecision {
	if len(ranked) == 0 {
		return MatchDecision{}
	}
	return MatchDecision{Index: 0, OK: true, Auto: ranked[0].Score >= AutoAcceptScore}
}

// Top returns at most n leading entries.
func Top[T any](ranked []Scored[T], n int) []Scored[T] {
	if len(ranked) > n {
		return ranked[:n]
	}
	return ranked
}

// Similarity is the case-insensitive Ratcliff/Obershelp ratio of a and b, in [0,1].
func Similarity(a, b string) float64 {
	a, b = metadata.Fold(a), metadata.Fold(b)
	m := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return m.Ratio()
}

// EpisodeScore compares the wanted episode with the first episode marker in
// text: a match earns the bonus, a different episode the penalty, and no
// marker on either side scores zero.
func EpisodeScore(want metadata.EpisodeTag, text string) int {
	if want == "" {
		return 0
	}
	got := metadata.ParseEpisodeTag(text)
	switch {
	case got == "":
		return 0
	case got == want:
		return EpisodeMatchBonus
	default:
		return -EpisodeMismatchPenalty
	}
}

// rank sorts by descending score, keeping input order among equals.
func rank[T any](scored []Scored[T]) []Scored[T] {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}
