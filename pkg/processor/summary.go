package processor

import (
	"strconv"

	"github.com/angelospk/subdl/pkg/core/prompt"
)

// Outcome is the result of processing one video.
type Outcome int

const (
	Succeeded Outcome = iota
	Skipped
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Skipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Summary counts outcomes across a run.
type Summary struct {
	Succeeded int
	Skipped   int
	Failed    int
}

// Add records one outcome.
func (s *Summary) Add(o Outcome) {
	switch o {
	case Succeeded:
		s.Succeeded++
	case Skipped:
		s.Skipped++
	default:
		s.Failed++
	}
}

// Total is the number of videos seen.
func (s Summary) Total() int {
	return s.Succeeded + s.Skipped + s.Failed
}

// Render formats the summary as a table.
func (s Summary) Render() string {
	rows := [][]string{
		{"Succeeded", strconv.Itoa(s.Succeeded)},
		{"Skipped", strconv.Itoa(s.Skipped)},
		{"Failed", strconv.Itoa(s.Failed)},
		{"Total", strconv.Itoa(s.Total())},
	}
	return "\nSummary\n" + prompt.RenderTable([]string{"Result", "Files"}, rows, []prompt.Alignment{prompt.AlignLeft, prompt.AlignRight})
}
