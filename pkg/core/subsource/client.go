package subsource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/angelospk/subdl/internal/constants"
	"github.com/angelospk/subdl/internal/httpclient"
	coreErrors "github.com/angelospk/subdl/pkg/core/errors"
)

// DefaultUserAgent identifies the tool to the catalog.
const DefaultUserAgent = "SubDL-CLI/1.0"

// maxLoggedBody caps raw responses written to the debug log.
const maxLoggedBody = 500

// Config holds the configuration for the SubSource client.
type Config struct {
	ApiKey    string
	UserAgent string
	BaseURL   string        // Optional: Override default base URL
	Timeout   time.Duration // Per-request timeout, default 20s
	Verbose   bool          // Log raw responses at debug level
	DebugDir  string        // Where undecodable responses are saved, default cwd
	Logger    *logrus.Logger
	Fs        afero.Fs         // Filesystem for debug artifacts, default OS
	Timer     httpclient.Timer // Retry sleeper, default real time
}

// Client is the SubSource catalog API client.
type Client struct {
	http     *httpclient.Client
	fs       afero.Fs
	debugDir string
	verbose  bool
	logger   *logrus.Logger
	now      func() time.Time
}

// NewClient creates a new SubSource API client.
func NewClient(config Config) (*Client, error) {
	if config.ApiKey == "" {
		return nil, errors.New("API key is required")
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}

	baseURL := constants.DefaultBaseURL
	if config.BaseURL != "" {
		if _, err := url.ParseRequestURI(config.BaseURL); err != nil {
			return nil, fmt.Errorf("invalid BaseURL provided: %w", err)
		}
		baseURL = config.BaseURL
	}
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	if config.Fs == nil {
		config.Fs = afero.NewOsFs()
	}

	return &Client{
		http: httpclient.New(httpclient.Options{
			BaseURL:   baseURL,
			APIKey:    config.ApiKey,
			UserAgent: config.UserAgent,
			Timeout:   config.Timeout,
			Logger:    config.Logger,
			Timer:     config.Timer,
		}),
		fs:       config.Fs,
		debugDir: config.DebugDir,
		verbose:  config.Verbose,
		logger:   config.Logger,
		now:      time.Now,
	}, nil
}

// SearchTitles searches the catalog for films and series matching title.
// year is omitted from the query when zero.
func (c *Client) SearchTitles(ctx context.Context, title string, year int) ([]TitleCandidate, error) {
	params := SearchParams{SearchType: "text", Query: title, Year: year}
	titles, err := getList[TitleCandidate](ctx, c, constants.SearchPath, params)
	if err != nil {
		return nil, fmt.Errorf("subsource: search %q: %w", title, err)
	}

	out := titles[:0]
	for _, t := range titles {
		if t.ID == "" {
			c.logger.WithField("title", t.Title).Debug("Dropping search result without an id")
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// ListSubtitles lists the subtitles of one title in the given catalog language.
func (c *Client) ListSubtitles(ctx context.Context, titleID, language string) ([]SubtitleCandidate, error) {
	params := ListParams{MovieID: titleID, Language: language}
	subs, err := getList[SubtitleCandidate](ctx, c, constants.SubtitlesPath, params)
	if err != nil {
		return nil, fmt.Errorf("subsource: list subtitles for %s: %w", titleID, err)
	}

	out := subs[:0]
	for _, s := range subs {
		if s.ID == "" {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// Download fetches the payload of one subtitle: a ZIP archive or raw text.
func (c *Client) Download(ctx context.Context, subtitleID string) ([]byte, error) {
	path := fmt.Sprintf(constants.DownloadPath, url.PathEscape(subtitleID))
	resp, err := c.http.Get(ctx, path, nil, "*/*")
	if err != nil {
		return nil, fmt.Errorf("subsource: download %s: %w", subtitleID, err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("subsource: download %s: %w", subtitleID,
			&coreErrors.APIError{StatusCode: resp.StatusCode, Body: truncate(resp.Body, 200)})
	}
	c.logger.WithFields(logrus.Fields{"id": subtitleID, "bytes": len(resp.Body)}).Debug("Downloaded subtitle payload")
	return resp.Body, nil
}

// Validate issues one cheap search so a rejected key surfaces before any work.
func (c *Client) Validate(ctx context.Context) error {
	resp, err := c.http.Get(ctx, constants.SearchPath, SearchParams{SearchType: "text", Query: "a"}, "")
	if err != nil {
		return fmt.Errorf("subsource: validate API key: %w", err)
	}
	c.logger.WithField("status", resp.StatusCode).Debug("API key accepted")
	return nil
}

// getList performs a GET and decodes a list-shaped body.
// Unhandled 4xx statuses and undecodable bodies yield an empty list.
func getList[T any](ctx context.Context, c *Client, path string, params interface{}) ([]T, error) {
	resp, err := c.http.Get(ctx, path, params, "")
	if err != nil {
		return nil, err
	}
	if c.verbose {
		c.logger.WithFields(logrus.Fields{
			"path":   path,
			"status": resp.StatusCode,
		}).Debugf("Response: %s", truncate(resp.Body, maxLoggedBody))
	}
	if !resp.OK() {
		c.logger.WithFields(logrus.Fields{
			"path":   path,
			"status": resp.StatusCode,
		}).Warnf("Unexpected response: %s", truncate(resp.Body, 200))
		return nil, nil
	}

	var list []T
	items, err := extractItems(resp.Body)
	if err == nil {
		err = json.Unmarshal(items, &list)
	}
	if err != nil {
		c.saveDebugResponse(resp.Body, err)
		return nil, nil
	}
	return list, nil
}

// extractItems accepts a bare array, or an object whose non-empty "data"
// or "items" holds the array. Anything else decodes to an empty array.
func extractItems(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return trimmed, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		var scalar interface{}
		if json.Unmarshal(trimmed, &scalar) == nil {
			return json.RawMessage("[]"), nil
		}
		return nil, err
	}
	for _, key := range []string{"data", "items"} {
		v := bytes.TrimSpace(envelope[key])
		if len(v) > 2 && v[0] == '[' && !isEmptyArray(v) {
			return v, nil
		}
	}
	return json.RawMessage("[]"), nil
}

func isEmptyArray(v []byte) bool {
	var list []json.RawMessage
	return json.Unmarshal(v, &list) == nil && len(list) == 0
}

// saveDebugResponse writes an undecodable body to a timestamped file.
func (c *Client) saveDebugResponse(body []byte, decodeErr error) {
	name := fmt.Sprintf(".subdl_debug_%s.json", c.now().Format("20060102_150405"))
	path := filepath.Join(c.debugDir, name)
	entry := c.logger.WithError(decodeErr)
	if err := afero.WriteFile(c.fs, path, body, 0o644); err != nil {
		entry.Warn("Unexpected API response (could not save debug file)")
		return
	}
	entry.WithField("file", path).Warn("Unexpected API response, raw body saved")
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
