package matcher_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelospk/subdl/pkg/core/matcher"
	"github.com/angelospk/subdl/pkg/core/metadata"
	"github.com/angelospk/subdl/pkg/core/subsource"
)

func boolPtr(b bool) *bool { return &b }

func sub(id string, hi bool, release ...string) subsource.SubtitleCandidate {
	return subsource.SubtitleCandidate{ID: id, Language: "Indonesian", ReleaseInfo: release, HearingImpaired: boolPtr(hi)}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, matcher.Similarity("abc", "abc"))
	assert.Equal(t, 1.0, matcher.Similarity("ABC", "abc"))
	assert.Equal(t, 0.0, matcher.Similarity("abc", "xyz"))
	assert.InDelta(t, 0.5, matcher.Similarity("Great.Movie.2023", "movie.en"), 1e-9)
	assert.InDelta(t, 10.0/21.0, matcher.Similarity("Great.Movie.2023", "movie"), 1e-9)
}

func TestEpisodeScore(t *testing.T) {
	assert.Equal(t, 50, matcher.EpisodeScore("S02E03", "Show S02E03 WEB"))
	assert.Equal(t, 50, matcher.EpisodeScore("S02E03", "Show 2x03 WEB"))
	assert.Equal(t, -50, matcher.EpisodeScore("S02E03", "Show S02E04 WEB"))
	assert.Equal(t, 0, matcher.EpisodeScore("S02E03", "Show Season 2 WEB"))
	assert.Equal(t, 0, matcher.EpisodeScore("", "Show S02E04 WEB"))
}

func TestRankSubtitles_EpisodeScenario(t *testing.T) {
	query := metadata.Parse("Show.S02E03.WEB.mkv")
	require.Equal(t, metadata.EpisodeTag("S02E03"), query.Episode)

	cands := []subsource.SubtitleCandidate{
		sub("wrong", false, "Show S02E04 WEB"),
		sub("right", false, "Show S02E03 WEB"),
	}
	ranked := matcher.RankSubtitles(query, "Show.S02E03.WEB.mkv", cands)
	require.Len(t, ranked, 2)

	assert.Equal(t, "right", ranked[0].Candidate.ID)
	assert.GreaterOrEqual(t, ranked[0].Score, float64(matcher.AutoAcceptScore))
	assert.Equal(t, "wrong", ranked[1].Candidate.ID)
	assert.LessOrEqual(t, ranked[1].Score, -30.0)

	decision := matcher.Decide(ranked)
	assert.Equal(t, matcher.MatchDecision{Index: 0, OK: true, Auto: true}, decision)

	// Inputs are not modified by ranking.
	assert.Equal(t, "wrong", cands[0].ID)
}

func TestRankSubtitles_EpisodeDominatesBonuses(t *testing.T) {
	filename := "Show.S01E05.1080p.WEB-DL.x265.mkv"
	query := metadata.Parse(filename)

	correctButHI := sub("correct", true, "Show.S01E05.HDTV")
	wrongWithBonuses := sub("wrong", false, "Show.S01E06.1080p.WEB-DL.x265")

	ranked := matcher.RankSubtitles(query, filename, []subsource.SubtitleCandidate{wrongWithBonuses, correctButHI})
	assert.Equal(t, "correct", ranked[0].Candidate.ID)
	assert.Greater(t, ranked[0].Score, ranked[1].Score)
}

func TestScoreSubtitle_Bonuses(t *testing.T) {
	filename := "Great.Movie.2023.1080p.WEB-DL.x264.mkv"
	query := metadata.Parse(filename)

	full := matcher.ScoreSubtitle(query, filename, sub("1", false, "Great.Movie.2023.1080p.WEB-DL.x264-GRP"))
	assert.GreaterOrEqual(t, full, 20.0)
	assert.Less(t, full, 21.0)

	hi := matcher.ScoreSubtitle(query, filename, sub("2", true, "Great.Movie.2023.1080p.WEB-DL.x264-GRP"))
	assert.InDelta(t, full-float64(matcher.HearingImpairedPenalty), hi, 1e-9)

	// Several shared quality tokens still count once.
	qualityOnly := matcher.ScoreSubtitle(query, filename, sub("3", false, "Great.Movie.2023.1080p.WEB-DL"))
	assert.GreaterOrEqual(t, qualityOnly, 10.0)
	assert.Less(t, qualityOnly, 11.0)

	none := matcher.ScoreSubtitle(query, filename, sub("4", false, "Great.Movie.2023.720p.BluRay.x265"))
	assert.GreaterOrEqual(t, none, 0.0)
	assert.Less(t, none, 1.0)
}

func TestScoreSubtitle_IsPure(t *testing.T) {
	filename := "Great.Movie.2023.1080p.WEB-DL.x264.mkv"
	query := metadata.Parse(filename)
	c := sub("1", false, "Great.Movie.2023.1080p")
	assert.Equal(t, matcher.ScoreSubtitle(query, filename, c), matcher.ScoreSubtitle(query, filename, c))
}

func TestRankSubtitles_StableOnTies(t *testing.T) {
	query := metadata.Parse("Movie.mkv")
	cands := []subsource.SubtitleCandidate{
		sub("a", false, "Same Release"),
		sub("b", false, "Same Release"),
		sub("c", false, "Same Release"),
	}
	ranked := matcher.RankSubtitles(query, "Movie.mkv", cands)
	ids := []string{ranked[0].Candidate.ID, ranked[1].Candidate.ID, ranked[2].Candidate.ID}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestDecide(t *testing.T) {
	assert.Equal(t, matcher.MatchDecision{}, matcher.Decide[subsource.SubtitleCandidate](nil))

	below := []matcher.Scored[subsource.SubtitleCandidate]{{Score: 49.99}, {Score: 10}}
	assert.Equal(t, matcher.MatchDecision{Index: 0, OK: true, Auto: false}, matcher.Decide(below))

	exact := []matcher.Scored[subsource.SubtitleCandidate]{{Score: 50}}
	assert.True(t, matcher.Decide(exact).Auto)
}

func TestTop(t *testing.T) {
	ranked := make([]matcher.Scored[int], 25)
	assert.Len(t, matcher.Top(ranked, matcher.MaxSubtitleChoices), 20)
	assert.Len(t, matcher.Top(ranked[:3], matcher.MaxTitleChoices), 3)
}

func TestFilter_Language(t *testing.T) {
	lang, ok := metadata.LookupLanguage("id")
	require.True(t, ok)

	labels := map[string]bool{
		"Indonesian":       true,
		"indonesia":        true,
		"Bahasa Indonesia": true,
		"ID":               true,
		"ind":              true,
		"Hindi":            false,
		"English":          false,
		"":                 false,
	}
	for label, want := range labels {
		c := subsource.SubtitleCandidate{ID: "1", Language: label}
		got := matcher.Filter([]subsource.SubtitleCandidate{c}, lang, matcher.TargetFormat)
		assert.Equal(t, want, len(got) == 1, "label %q", label)
	}
}

func TestFilter_Format(t *testing.T) {
	lang, _ := metadata.LookupLanguage("id")
	mk := func(hints []string, release ...string) subsource.SubtitleCandidate {
		return subsource.SubtitleCandidate{ID: "1", Language: "Indonesian", FormatHints: hints, ReleaseInfo: release}
	}
	tests := []struct {
		name string
		cand subsource.SubtitleCandidate
		want bool
	}{
		{"no signal", mk(nil, "Great.Movie.2023.1080p"), true},
		{"explicit srt", mk([]string{"SRT"}), true},
		{"ass hint", mk([]string{"ass"}), false},
		{"vtt in release", mk(nil, "Great.Movie.2023.WEB.vtt"), false},
		{"srt hint wins over later release", mk([]string{"srt"}, "also.vtt"), true},
		{"word containing ass", mk(nil, "Assassins.Creed.2016.1080p"), true},
		{"sub idx pair", mk([]string{"subtitle"}, "Movie SUB IDX"), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := matcher.Filter([]subsource.SubtitleCandidate{tc.cand}, lang, matcher.TargetFormat)
			assert.Equal(t, tc.want, len(got) == 1)
		})
	}
}

func TestRankTitles(t *testing.T) {
	query := metadata.ParsedQuery{Title: "Great Movie", Year: 2023}
	titles := []subsource.TitleCandidate{
		{ID: "sequel", Title: "Great Movie 2", ReleaseYear: 2024, MediaType: subsource.MediaMovie},
		{ID: "series", Title: "Great Movie", ReleaseYear: 2023, MediaType: subsource.MediaSeries},
		{ID: "exact", Title: "Great Movie", ReleaseYear: 2023, MediaType: subsource.MediaMovie},
	}
	ranked := matcher.RankTitles(query, titles)
	require.Len(t, ranked, 3)
	assert.Equal(t, "exact", ranked[0].Candidate.ID)
	assert.InDelta(t, 2.5, ranked[0].Score, 1e-9)
	assert.Equal(t, "sequel", ranked[1].Candidate.ID)
	assert.Equal(t, "series", ranked[2].Candidate.ID)
	assert.Contains(t, ranked[2].Reasons, "media_type=mismatch")
}

func TestRankTitles_EpisodePrefersSeries(t *testing.T) {
	query := metadata.ParsedQuery{Title: "Drama Show", Episode: "S02E03"}
	titles := []subsource.TitleCandidate{
		{ID: "movie", Title: "Drama Show", MediaType: subsource.MediaMovie},
		{ID: "show", Title: "Drama Show", MediaType: subsource.MediaSeries},
	}
	ranked := matcher.RankTitles(query, titles)
	assert.Equal(t, "show", ranked[0].Candidate.ID)
}
