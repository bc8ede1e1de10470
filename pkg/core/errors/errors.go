package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"time"
)

// Sentinel values for errors.Is checks. The typed errors below match them.
var (
	ErrParse          = errors.New("subdl: could not parse a title from the filename")
	ErrAuth           = errors.New("subsource: unauthorized (invalid or expired API key)")
	ErrRateLimited    = errors.New("subsource: rate limit exceeded")
	ErrServer         = errors.New("subsource: server error")
	ErrNetwork        = errors.New("subsource: network error")
	ErrNotFound       = errors.New("subsource: no matching results")
	ErrCorruptArchive = errors.New("archive: corrupt or invalid zip container")
	ErrFileSystem     = errors.New("fileops: file system error")
	ErrAPI            = errors.New("subsource: unexpected API response")
)

// ParseError reports a filename that normalised to an empty title.
type ParseError struct {
	Filename string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not parse a title from %q", e.Filename)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// AuthError is returned for 401/403 responses. It is never retried and is
// fatal to the whole run.
type AuthError struct {
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("subsource: API key rejected (status %d)", e.StatusCode)
}

func (e *AuthError) Is(target error) bool { return target == ErrAuth }

// RateLimitError is returned for 429 responses. RetryAfter carries the delay
// the server asked for on the last attempt.
type RateLimitError struct {
	RetryAfter time.Duration
	Attempts   int
}

func (e *RateLimitError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("subsource: rate limit exceeded after %d attempts", e.Attempts)
	}
	return fmt.Sprintf("subsource: rate limited (retry after %s)", e.RetryAfter)
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// ServerError is returned for 5xx responses.
type ServerError struct {
	StatusCode int
	Attempts   int
}

func (e *ServerError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("subsource: server error (status %d) after %d attempts", e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("subsource: server error (status %d)", e.StatusCode)
}

func (e *ServerError) Is(target error) bool { return target == ErrServer }

// NetworkError wraps transport-level failures (timeouts, refused connections).
type NetworkError struct {
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("subsource: network error after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("subsource: network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// NotFoundError reports an empty result set at the search or filter stage.
type NotFoundError struct {
	Stage string // "search" or "filter"
	Query string
}

func (e *NotFoundError) Error() string {
	switch e.Stage {
	case "filter":
		return fmt.Sprintf("no subtitles matching the language and format for %q", e.Query)
	default:
		return fmt.Sprintf("no results for %q", e.Query)
	}
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// CorruptArchiveError reports a payload that looks like a ZIP but cannot be opened.
type CorruptArchiveError struct {
	Err error
}

func (e *CorruptArchiveError) Error() string {
	return fmt.Sprintf("archive: corrupt or invalid zip container: %v", e.Err)
}

func (e *CorruptArchiveError) Unwrap() error { return e.Err }

func (e *CorruptArchiveError) Is(target error) bool { return target == ErrCorruptArchive }

// FileSystemError reports a failure while writing a subtitle to disk.
type FileSystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileSystemError) Error() string {
	if e.Permission() {
		return fmt.Sprintf("cannot %s %s: permission denied", e.Op, e.Path)
	}
	return fmt.Sprintf("cannot %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileSystemError) Unwrap() error { return e.Err }

func (e *FileSystemError) Is(target error) bool { return target == ErrFileSystem }

// Permission reports whether the underlying failure was a permission error.
func (e *FileSystemError) Permission() bool {
	return errors.Is(e.Err, fs.ErrPermission)
}

// APIError is a non-retryable, non-auth HTTP status the caller could not use.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("subsource: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("subsource: unexpected status %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) Is(target error) bool { return target == ErrAPI }

// IsFatal reports whether err must abort a whole batch rather than one file.
func IsFatal(err error) bool {
	return errors.Is(err, ErrAuth)
}
