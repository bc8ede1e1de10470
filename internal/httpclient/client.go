package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/go-querystring/query"
	"github.com/sirupsen/logrus"

	"github.com/angelospk/subdl/internal/constants"
	coreErrors "github.com/angelospk/subdl/pkg/core/errors"
)

// MaxAttempts is the total number of tries for one logical request.
const MaxAttempts = 3

// DefaultRetryAfter is used when a 429 response has no usable Retry-After header.
const DefaultRetryAfter = 5 * time.Second

var (
	// ServerBackoff is slept between attempts after a 5xx response.
	ServerBackoff = []time.Duration{1 * time.Second, 3 * time.Second}
	// NetworkBackoff is slept between attempts after a timeout or connection failure.
	NetworkBackoff = []time.Duration{500 * time.Millisecond, 1500 * time.Millisecond}
)

// Timer waits for a retry delay. retry-go's default uses time.After.
type Timer = retry.Timer

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL    string
	APIKey     string
	UserAgent  string
	Timeout    time.Duration
	Logger     *logrus.Logger
	Timer      Timer
	HTTPClient *http.Client
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client manages making HTTP requests to the API.
type Client struct {
	mu         sync.RWMutex // Protects baseURL
	baseURL    string
	apiKey     string
	userAgent  string
	httpClient *http.Client
	timer      Timer
	logger     *logrus.Logger
}

// New creates a new internal HTTP client.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = constants.DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = constants.DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		userAgent:  opts.UserAgent,
		httpClient: opts.HTTPClient,
		timer:      opts.Timer,
		logger:     opts.Logger,
	}
}

// SetBaseURL updates the base URL used for requests.
func (c *Client) SetBaseURL(baseURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = strings.TrimRight(baseURL, "/")
}

// BaseURL returns the current base URL.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// Get performs a GET request with the retry policy applied. Any 2xx or
// unhandled 4xx response is returned as-is; 401/403 become an AuthError and
// exhausted retries become RateLimitError, ServerError or NetworkError.
func (c *Client) Get(ctx context.Context, path string, params interface{}, accept string) (*Response, error) {
	fullURL, err := c.buildURL(path, params)
	if err != nil {
		return nil, err
	}
	if accept == "" {
		accept = "application/json"
	}

	attempts := 0
	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(MaxAttempts),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.DelayType(retryDelay),
		retry.OnRetry(func(n uint, err error) {
			c.logger.WithFields(logrus.Fields{
				"attempt": n + 1,
				"path":    path,
			}).WithError(err).Warn("Request attempt failed")
		}),
	}
	if c.timer != nil {
		opts = append(opts, retry.WithTimer(c.timer))
	}

	resp, err := retry.DoWithData(func() (*Response, error) {
		attempts++
		return c.do(ctx, fullURL, accept)
	}, opts...)
	if err != nil {
		return nil, withAttempts(err, attempts)
	}
	return resp, nil
}

func (c *Client) buildURL(path string, params interface{}) (string, error) {
	fullURL, err := url.Parse(c.BaseURL())
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	fullURL.Path += path

	if params != nil {
		v, err := query.Values(params)
		if err != nil {
			return "", fmt.Errorf("failed to encode query parameters: %w", err)
		}
		fullURL.RawQuery = v.Encode()
	}
	return fullURL.String(), nil
}

// do performs one attempt and classifies its outcome.
func (c *Client) do(ctx context.Context, fullURL, accept string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set(constants.AuthHeader, c.apiKey)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", accept)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &coreErrors.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &coreErrors.NetworkError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &coreErrors.AuthError{StatusCode: resp.StatusCode}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &coreErrors.RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())}
	case resp.StatusCode >= 500 && resp.StatusCode < 600:
		return nil, &coreErrors.ServerError{StatusCode: resp.StatusCode}
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// parseRetryAfter reads a delay in whole seconds or as an HTTP date relative to now.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return DefaultRetryAfter
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return DefaultRetryAfter
}

func isRetryable(err error) bool {
	var rl *coreErrors.RateLimitError
	var se *coreErrors.ServerError
	var ne *coreErrors.NetworkError
	return errors.As(err, &rl) || errors.As(err, &se) || errors.As(err, &ne)
}

// retryDelay picks the sleep before attempt n+1 from the kind of failure of
// attempt n. retry-go counts n from 1 when it asks for a delay.
func retryDelay(n uint, err error, _ *retry.Config) time.Duration {
	var rl *coreErrors.RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	var se *coreErrors.ServerError
	if errors.As(err, &se) {
		return backoffAt(ServerBackoff, n)
	}
	return backoffAt(NetworkBackoff, n)
}

func backoffAt(steps []time.Duration, n uint) time.Duration {
	i := int(n) - 1
	if i < 0 {
		i = 0
	}
	if i >= len(steps) {
		return steps[len(steps)-1]
	}
	return steps[i]
}

// withAttempts records how many attempts were made on a terminal retryable error.
func withAttempts(err error, attempts int) error {
	var rl *coreErrors.RateLimitError
	if errors.As(err, &rl) {
		rl.Attempts = attempts
		return rl
	}
	var se *coreErrors.ServerError
	if errors.As(err, &se) {
		se.Attempts = attempts
		return se
	}
	var ne *coreErrors.NetworkError
	if errors.As(err, &ne) {
		ne.Attempts = attempts
		return ne
	}
	return err
}
