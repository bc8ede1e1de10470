package matcher

import (
	"fmt"

	"github.com/angelospk/subdl/pkg/core/metadata"
	"github.com/angelospk/subdl/pkg/core/subsource"
)

// RankTitles orders catalog titles by how well they fit the parsed query:
// title similarity, release year proximity and whether the catalog type
// agrees with the presence of an episode marker.
func RankTitles(query metadata.ParsedQuery, titles []subsource.TitleCandidate) []Scored[subsource.TitleCandidate] {
	scored := make([]Scored[subsource.TitleCandidate], 0, len(titles))
	for _, t := range titles {
		scored = append(scored, scoreTitle(query, t))
	}
	return rank(scored)
}

func scoreTitle(query metadata.ParsedQuery, t subsource.TitleCandidate) Scored[subsource.TitleCandidate] {
	sim := Similarity(query.Title, t.Title)
	score := sim
	reasons := []string{fmt.Sprintf("title=%.3f", sim)}

	if query.Year > 0 && t.ReleaseYear > 0 {
		delta := query.Year - t.ReleaseYear
		if delta < 0 {
			delta = -delta
		}
		switch {
		case delta == 0:
			score += 1.5
			reasons = append(reasons, "year=exact")
		case delta <= 1:
			score += 1.0
			reasons = append(reasons, "year=close")
		case delta <= 3:
			score -= 0.5
			reasons = append(reasons, "year=off")
		default:
			score -= 1.0
			reasons = append(reasons, "year=far")
		}
	}

	want := subsource.MediaMovie
	if query.Episode != "" {
		want = subsource.MediaSeries
	}
	if t.MediaType != subsource.MediaUnknown && t.MediaType != want {
		score -= 1.0
		reasons = append(reasons, "media_type=mismatch")
	}

	return Scored[subsource.TitleCandidate]{Candidate: t, Score: score, Reasons: reasons}
}
