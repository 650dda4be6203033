package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure modes.
var (
	ErrEmptyResponse     = errors.New("empty response body")
	ErrInvalidURL        = errors.New("invalid URL")
	ErrNotHTML           = errors.New("response is not HTML")
	ErrBlocked           = errors.New("blocked by robots.txt")
	ErrNoDate            = errors.New("no publication date found")
	ErrOutsideWindow     = errors.New("published outside the time window")
	ErrNotArticle        = errors.New("page is not an article")
	ErrSingleWordTitle   = errors.New("title has fewer than two words")
	ErrDuplicate         = errors.New("duplicate link")
	ErrMissingCredential = errors.New("missing API credential")
	ErrUnparseableReply  = errors.New("unparseable enrichment reply")
)

// FetchError wraps errors that occur during fetching.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
	RetryAfter time.Duration // populated from Retry-After header on HTTP 429
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// ParseError wraps errors that occur while parsing a fetched document.
type ParseError struct {
	URL   string
	Stage string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %s (stage=%s): %v", e.URL, e.Stage, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SourceError marks a failure that aborts a whole crawl source.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s failed: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// ConfigError reports missing or invalid configuration.
type ConfigError struct {
	Key string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error (%s): %v", e.Key, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// StorageError wraps errors that occur during storage/export.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PipelineError wraps errors that occur in the acceptance pipeline.
type PipelineError struct {
	Stage string
	Item  *NewsItem
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error at stage %q: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
