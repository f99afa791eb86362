package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every error returned by the read-tree pipeline matches
// exactly one of the first five through errors.Is.
var (
	// ErrInvalidURL indicates the URL host or path shape is not recognized
	ErrInvalidURL = errors.New("invalid URL")

	// ErrNotFound indicates the repository, branch, file or archive does not exist
	ErrNotFound = errors.New("not found")

	// ErrAuth indicates credentials were rejected or lack the required scope
	ErrAuth = errors.New("authentication failed")

	// ErrNetwork indicates a transport failure or an unexpected response
	ErrNetwork = errors.New("network error")

	// ErrArchive indicates a corrupt archive or an unexpected content type
	ErrArchive = errors.New("archive error")

	// ErrNotModified indicates the caller's etag still matches the remote commit
	ErrNotModified = errors.New("not modified")

	// ErrCacheMiss indicates a cache miss
	ErrCacheMiss = errors.New("cache miss")
)

// Pipeline stage names used in StageError
const (
	StageParse       = "parse"
	StageResolveRepo = "resolve_repo"
	StageResolveRef  = "resolve_ref"
	StageFetch       = "fetch_archive"
	StageExtract     = "extract"
	StageReadFile    = "read_file"
)

// StageError is returned by a single pipeline stage. Kind is one of the
// sentinel errors above.
type StageError struct {
	Kind  error
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewStageError creates a new StageError
func NewStageError(kind error, stage string, err error) *StageError {
	return &StageError{
		Kind:  kind,
		Stage: stage,
		Err:   err,
	}
}

// ReadTreeError tags any pipeline failure with the URL the caller passed in
type ReadTreeError struct {
	URL string
	Err error
}

func (e *ReadTreeError) Error() string {
	return fmt.Sprintf("read %s: %v", e.URL, e.Err)
}

func (e *ReadTreeError) Unwrap() error {
	return e.Err
}

// NewReadTreeError creates a new ReadTreeError
func NewReadTreeError(url string, err error) *ReadTreeError {
	return &ReadTreeError{
		URL: url,
		Err: err,
	}
}

// FetchError represents an HTTP error response for a specific request URL
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new FetchError
func NewFetchError(url string, statusCode int, err error) *FetchError {
	return &FetchError{
		URL:        url,
		StatusCode: statusCode,
		Err:        err,
	}
}

// RetryableError indicates an error that can be retried
type RetryableError struct {
	Err        error
	RetryAfter int // Seconds to wait before retry, 0 if unknown
}

func (e *RetryableError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("retryable error (retry after %ds): %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("retryable error: %v", e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable checks if an error should be retried by the transport layer.
// Pipeline stages never retry on their own.
func IsRetryable(err error) bool {
	var retryable *RetryableError
	if errors.As(err, &retryable) {
		return true
	}

	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		switch fetchErr.StatusCode {
		case 429, 502, 503, 504:
			return true
		}
		if fetchErr.StatusCode >= 520 && fetchErr.StatusCode <= 530 {
			return true
		}
	}

	return false
}

// KindForStatus maps an HTTP status code to the pipeline error taxonomy
func KindForStatus(statusCode int) error {
	switch {
	case statusCode == 404 || statusCode == 410:
		return ErrNotFound
	case statusCode == 401 || statusCode == 403:
		return ErrAuth
	default:
		return ErrNetwork
	}
}

// IsNotFound reports whether err is a not-found failure
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsNotModified reports whether err signals an unchanged tree
func IsNotModified(err error) bool {
	return errors.Is(err, ErrNotModified)
}
