package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/angelospk/subdl/internal/constants"
	"github.com/angelospk/subdl/pkg/core/archive"
	coreErrors "github.com/angelospk/subdl/pkg/core/errors"
	"github.com/angelospk/subdl/pkg/core/fileops"
	"github.com/angelospk/subdl/pkg/core/matcher"
	"github.com/angelospk/subdl/pkg/core/metadata"
	"github.com/angelospk/subdl/pkg/core/subsource"
)

// Catalog is the subset of the SubSource client the processor needs.
type Catalog interface {
	SearchTitles(ctx context.Context, title string, year int) ([]subsource.TitleCandidate, error)
	ListSubtitles(ctx context.Context, titleID, language string) ([]subsource.SubtitleCandidate, error)
	Download(ctx context.Context, subtitleID string) ([]byte, error)
	Validate(ctx context.Context) error
}

// Chooser asks the user to pick from a list or confirm an action.
type Chooser interface {
	Choose(ctx context.Context, title string, headers []string, rows [][]string, def int) (int, bool, error)
	Confirm(ctx context.Context, question string) (bool, error)
}

// Ensure the real client satisfies Catalog
var _ Catalog = (*subsource.Client)(nil)

// Options control one run.
type Options struct {
	Language metadata.LanguageInfo
	Force    bool // Overwrite existing subtitles without asking
	DryRun   bool // Parse and report only; no network, no writes

	// Interrupts cancels the file being processed; the run moves on.
	Interrupts <-chan struct{}
}

// Processor fetches one subtitle per video file.
type Processor struct {
	catalog Catalog
	chooser Chooser
	fs      afero.Fs
	out     io.Writer
	logger  *log.Logger
	opts    Options
}

// NewProcessor creates a new Processor instance.
func NewProcessor(catalog Catalog, chooser Chooser, fs afero.Fs, out io.Writer, logger *log.Logger, opts Options) *Processor {
	if logger == nil {
		logger = log.New()
		logger.SetFormatter(&log.TextFormatter{})
		logger.SetOutput(os.Stderr)
		logger.SetLevel(log.InfoLevel)
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if out == nil {
		out = io.Discard
	}
	if opts.Language.Code2 == "" {
		opts.Language, _ = metadata.LookupLanguage(constants.DefaultLanguage)
	}
	return &Processor{
		catalog: catalog,
		chooser: chooser,
		fs:      fs,
		out:     out,
		logger:  logger,
		opts:    opts,
	}
}

// Run processes videos in order and prints a summary table. The API key is
// checked once up front; a rejected key, during the check or later, aborts
// the run with an AuthError.
func (p *Processor) Run(ctx context.Context, videos []string) (Summary, error) {
	var summary Summary

	if !p.opts.DryRun {
		if err := p.catalog.Validate(ctx); err != nil {
			if coreErrors.IsFatal(err) {
				return summary, err
			}
			p.logger.WithError(err).Warn("Could not verify the API key, continuing")
		}
	}

	defer func() { fmt.Fprintln(p.out, summary.Render()) }()

	cache := NewCache()
	for i, video := range videos {
		if err := ctx.Err(); err != nil {
			fmt.Fprintln(p.out, "\nCancelled.")
			return summary, err
		}
		outcome, err := p.runOne(ctx, cache, video, i+1, len(videos))
		summary.Add(outcome)
		if err != nil && coreErrors.IsFatal(err) {
			return summary, err
		}
	}
	return summary, nil
}

// runOne gives the file its own cancellable context and reports failures.
func (p *Processor) runOne(ctx context.Context, cache *Cache, video string, index, total int) (Outcome, error) {
	fileCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		select {
		case <-p.opts.Interrupts:
			cancel()
		case <-done:
		}
	}()
	defer close(done)
	defer cancel()

	outcome, err := p.ProcessVideo(fileCtx, cache, video, index, total)
	if err == nil {
		return outcome, nil
	}

	if ctx.Err() != nil {
		return Failed, err
	}
	if fileCtx.Err() != nil {
		fmt.Fprintln(p.out, "  Interrupted, moving on to the next file.")
		return Failed, err
	}
	fmt.Fprintf(p.out, "  Failed: %s\n", describeFailure(err))
	p.logger.WithError(err).WithField("file", video).Debug("Video failed")
	return outcome, err
}

// ProcessVideo runs the whole pipeline for one video: parse, search, choose a
// title, list and rank subtitles, download, unpack and save next to the video.
// A nil error with Skipped means the user or a precondition declined the file.
func (p *Processor) ProcessVideo(ctx context.Context, cache *Cache, videoPath string, index, total int) (Outcome, error) {
	base := filepath.Base(videoPath)
	target := fileops.SubtitlePath(videoPath, constants.SubtitleExt)
	fmt.Fprintf(p.out, "\n[%d/%d] %s\n", index, total, base)

	if !p.opts.Force {
		exists, err := afero.Exists(p.fs, target)
		if err != nil {
			return Failed, &coreErrors.FileSystemError{Op: "stat", Path: target, Err: err}
		}
		if exists {
			replace, err := p.chooser.Confirm(ctx, fmt.Sprintf("  %s already exists. Replace it?", filepath.Base(target)))
			if err != nil {
				return Failed, err
			}
			if !replace {
				fmt.Fprintln(p.out, "  Skipped: subtitle already exists.")
				return Skipped, nil
			}
		}
	}

	query := metadata.Parse(base)
	if query.Title == "" {
		return Failed, &coreErrors.ParseError{Filename: base}
	}
	fmt.Fprintf(p.out, "  Parsed: %s\n", query)

	if p.opts.DryRun {
		fmt.Fprintf(p.out, "  Dry run: would search %q in %s and save %s\n",
			query.Title, p.opts.Language.Name, filepath.Base(target))
		return Succeeded, nil
	}

	titles, err := p.searchTitles(ctx, cache, query.Title, query.Year)
	if err != nil {
		return Failed, err
	}
	if len(titles) == 0 {
		return Failed, &coreErrors.NotFoundError{Stage: "search", Query: query.String()}
	}

	title, ok, err := p.chooseTitle(ctx, query, titles)
	if err != nil {
		return Failed, err
	}
	if !ok {
		fmt.Fprintln(p.out, "  Skipped: no title selected.")
		return Skipped, nil
	}

	subs, err := p.listSubtitles(ctx, cache, title.ID)
	if err != nil {
		return Failed, err
	}
	subs = matcher.Filter(subs, p.opts.Language, matcher.TargetFormat)
	if len(subs) == 0 {
		return Failed, &coreErrors.NotFoundError{Stage: "filter", Query: title.Title}
	}

	sub, ok, err := p.chooseSubtitle(ctx, query, base, subs)
	if err != nil {
		return Failed, err
	}
	if !ok {
		fmt.Fprintln(p.out, "  Skipped: no subtitle selected.")
		return Skipped, nil
	}

	data, err := p.fetch(ctx, sub, base)
	if err != nil {
		return Failed, err
	}

	if err := fileops.WriteFileAtomic(p.fs, target, data); err != nil {
		return Failed, err
	}
	fmt.Fprintf(p.out, "  Saved %s\n", filepath.Base(target))
	return Succeeded, nil
}

func (p *Processor) chooseTitle(ctx context.Context, query metadata.ParsedQuery, titles []subsource.TitleCandidate) (subsource.TitleCandidate, bool, error) {
	ranked := matcher.Top(matcher.RankTitles(query, titles), matcher.MaxTitleChoices)

	rows := make([][]string, len(ranked))
	for i, r := range ranked {
		year := "-"
		if r.Candidate.ReleaseYear > 0 {
			year = strconv.Itoa(r.Candidate.ReleaseYear)
		}
		rows[i] = []string{r.Candidate.Title, year, string(r.Candidate.MediaType), fmt.Sprintf("%.2f", r.Score)}
	}

	idx, ok, err := p.chooser.Choose(ctx, "  Select the title:", []string{"Title", "Year", "Type", "Score"}, rows, 0)
	if err != nil || !ok {
		return subsource.TitleCandidate{}, false, err
	}
	chosen := ranked[idx]
	p.logger.WithFields(log.Fields{"id": chosen.Candidate.ID, "reasons": chosen.Reasons}).Debug("Title chosen")
	return chosen.Candidate, true, nil
}

func (p *Processor) chooseSubtitle(ctx context.Context, query metadata.ParsedQuery, filename string, subs []subsource.SubtitleCandidate) (subsource.SubtitleCandidate, bool, error) {
	ranked := matcher.RankSubtitles(query, filename, subs)
	decision := matcher.Decide(ranked)
	if !decision.OK {
		return subsource.SubtitleCandidate{}, false, nil
	}

	if decision.Auto {
		best := ranked[decision.Index]
		fmt.Fprintf(p.out, "  Auto-selected: %s (score %.2f)\n", shorten(best.Candidate.ReleaseText(), 70), best.Score)
		return best.Candidate, true, nil
	}

	ranked = matcher.Top(ranked, matcher.MaxSubtitleChoices)
	rows := make([][]string, len(ranked))
	for i, r := range ranked {
		c := r.Candidate
		hi := ""
		if c.IsHearingImpaired() {
			hi = "HI"
		}
		rating := "-"
		if c.Rating != nil {
			rating = fmt.Sprintf("%d/%d", c.Rating.Good, c.Rating.Total)
		}
		downloads := "-"
		if c.Downloads != nil {
			downloads = strconv.Itoa(*c.Downloads)
		}
		rows[i] = []string{shorten(c.ReleaseText(), 60), hi, rating, downloads, fmt.Sprintf("%.2f", r.Score)}
	}

	idx, ok, err := p.chooser.Choose(ctx, "  Select the subtitle:",
		[]string{"Release", "HI", "Rating", "Downloads", "Score"}, rows, decision.Index)
	if err != nil || !ok {
		return subsource.SubtitleCandidate{}, false, err
	}
	return ranked[idx].Candidate, true, nil
}

// fetch downloads a subtitle and unpacks it when the payload is an archive.
func (p *Processor) fetch(ctx context.Context, sub subsource.SubtitleCandidate, videoBase string) ([]byte, error) {
	data, err := p.catalog.Download(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errEmptyPayload
	}
	if !archive.IsArchive(data) {
		return data, nil
	}

	entry, err := archive.Resolve(data, videoBase, constants.SubtitleExt)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, errNoSubtitleInArchive
	}
	return entry, nil
}

var (
	errEmptyPayload        = errors.New("the download was empty")
	errNoSubtitleInArchive = errors.New("the archive contains no " + constants.SubtitleExt + " file")
)

// describeFailure turns an error into a message that tells the user what to do.
func describeFailure(err error) string {
	var fsErr *coreErrors.FileSystemError
	var notFound *coreErrors.NotFoundError

	switch {
	case errors.As(err, &notFound) && notFound.Stage == "search":
		return fmt.Sprintf("no titles found for %q. Check the filename or rename it to include the title.", notFound.Query)
	case errors.As(err, &notFound):
		return fmt.Sprintf("no matching %s subtitles for %q.", constants.SubtitleExt, notFound.Query)
	case errors.Is(err, coreErrors.ErrParse):
		return "could not find a title in the filename. Rename it to start with the title."
	case errors.Is(err, coreErrors.ErrRateLimited):
		return "the API is rate limiting requests. Wait a minute and try again."
	case errors.Is(err, coreErrors.ErrServer):
		return "the SubSource API is having problems. Try again later."
	case errors.Is(err, coreErrors.ErrNetwork):
		return "network error. Check your internet connection."
	case errors.Is(err, coreErrors.ErrCorruptArchive):
		return "the downloaded archive is corrupt. Try another subtitle."
	case errors.As(err, &fsErr) && fsErr.Permission():
		return fmt.Sprintf("permission denied writing %s. Check the folder permissions.", fsErr.Path)
	case errors.As(err, &fsErr):
		return fmt.Sprintf("could not save %s: %v", fsErr.Path, fsErr.Err)
	}
	return err.Error()
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
