package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure modes.
var (
	ErrElementNotFound = errors.New("element not found")
	ErrRateLimited     = errors.New("rate limited")
	ErrNoNextPage      = errors.New("no next page control")
	ErrNoDetailURL     = errors.New("no detail page URL")
	ErrEmptyInput      = errors.New("empty input")
	ErrSessionClosed   = errors.New("browsing session closed")
)

// AuthError is returned when the sign-in flow fails. It aborts the run.
type AuthError struct {
	Step string // navigate, identifier, continue, secret, submit
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("sign-in failed at step %q: %v", e.Step, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// CategoryError is returned when a category crawl cannot continue.
// The category is skipped and the run goes on.
type CategoryError struct {
	URL   string
	State string
	Err   error
}

func (e *CategoryError) Error() string {
	return fmt.Sprintf("category %s failed in state %s: %v", e.URL, e.State, e.Err)
}

func (e *CategoryError) Unwrap() error { return e.Err }

// FieldLookupError describes a single field that could not be extracted.
// It never escapes the extractor; the field is recorded as absent.
type FieldLookupError struct {
	Field    string
	Selector string
	Err      error
}

func (e *FieldLookupError) Error() string {
	return fmt.Sprintf("field %q (selector=%q): %v", e.Field, e.Selector, e.Err)
}

func (e *FieldLookupError) Unwrap() error { return e.Err }

// EnrichmentError describes a failed detail-page visit. The item keeps its
// listing fields.
type EnrichmentError struct {
	URL string
	Err error
}

func (e *EnrichmentError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("enrichment failed: %v", e.Err)
	}
	return fmt.Sprintf("enrichment failed for %s: %v", e.URL, e.Err)
}

func (e *EnrichmentError) Unwrap() error { return e.Err }

// NumericParseError is returned when a price string does not normalise to a
// decimal number.
type NumericParseError struct {
	Input string
	Err   error
}

func (e *NumericParseError) Error() string {
	return fmt.Sprintf("cannot parse %q as a number: %v", e.Input, e.Err)
}

func (e *NumericParseError) Unwrap() error { return e.Err }

// FetchError wraps errors that occur while loading a document.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
	RetryAfter time.Duration // populated from Retry-After on HTTP 429/503
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// StorageError wraps errors that occur during persistence.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
