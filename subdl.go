// Package subdl downloads subtitles for video files from the SubSource catalog.
//
// The Downloader type is the non-interactive entry point for programs that
// embed the fetcher: it discovers videos under a path, picks the best title
// and subtitle for each, and writes <video>.srt next to it. The command line
// tool in cmd/cli adds prompts on top of the same pipeline.
package subdl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/angelospk/subdl/internal/constants"
	"github.com/angelospk/subdl/pkg/core/fileops"
	"github.com/angelospk/subdl/pkg/core/metadata"
	"github.com/angelospk/subdl/pkg/core/prompt"
	"github.com/angelospk/subdl/pkg/core/subsource"
	"github.com/angelospk/subdl/pkg/processor"
)

// Config holds the configuration for a Downloader.
type Config struct {
	ApiKey   string
	BaseURL  string        // Optional: Override default base URL
	Timeout  time.Duration // Per-request timeout, default 20s
	Language string        // Code or name, default "id"
	Force    bool          // Replace existing subtitles
	Logger   *logrus.Logger
	Out      io.Writer // Progress output, default discarded
	Fs       afero.Fs  // Default OS filesystem
}

// Downloader fetches subtitles without asking questions: the best ranked
// title and subtitle are always taken and existing subtitles are kept unless
// Force is set.
type Downloader struct {
	client *subsource.Client
	fs     afero.Fs
	proc   *processor.Processor
}

// New creates a Downloader.
func New(config Config) (*Downloader, error) {
	if config.Language == "" {
		config.Language = constants.DefaultLanguage
	}
	lang, ok := metadata.LookupLanguage(config.Language)
	if !ok {
		return nil, fmt.Errorf("unknown language %q", config.Language)
	}
	if config.Fs == nil {
		config.Fs = afero.NewOsFs()
	}
	if config.Out == nil {
		config.Out = io.Discard
	}

	client, err := subsource.NewClient(subsource.Config{
		ApiKey:  config.ApiKey,
		BaseURL: config.BaseURL,
		Timeout: config.Timeout,
		Logger:  config.Logger,
		Fs:      config.Fs,
	})
	if err != nil {
		return nil, err
	}

	chooser := prompt.New(nil, config.Out, true)
	return &Downloader{
		client: client,
		fs:     config.Fs,
		proc: processor.NewProcessor(client, chooser, config.Fs, config.Out, config.Logger, processor.Options{
			Language: lang,
			Force:    config.Force,
		}),
	}, nil
}

// Client exposes the underlying catalog client for direct searches.
func (d *Downloader) Client() *subsource.Client {
	return d.client
}

// Fetch downloads subtitles for the video at path, or for every video below
// it when path is a directory.
func (d *Downloader) Fetch(ctx context.Context, path string) (processor.Summary, error) {
	videos, err := fileops.DiscoverVideos(ctx, d.fs, path)
	if err != nil {
		return processor.Summary{}, err
	}
	if len(videos) == 0 {
		return processor.Summary{}, ErrNoVideos
	}
	return d.proc.Run(ctx, videos)
}

// ErrNoVideos is returned by Fetch when path holds no supported video files.
var ErrNoVideos = errors.New("no video files found")
