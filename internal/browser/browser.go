// Package browser defines the browsing surface used by the crawler and its
// two backends: a Chromium session driven by rod, and a static backend that
// loads documents over HTTP (or from memory) and queries them with goquery
// and htmlquery.
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/IshaanNene/dealstalk/internal/types"
)

// Browser owns pages. It is a single sequential resource: callers operate
// one page at a time.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Finder looks up elements beneath a document or element.
type Finder interface {
	// Find returns the first match, waiting up to timeout for it to appear.
	// A miss wraps types.ErrElementNotFound.
	Find(ctx context.Context, sel Selector, timeout time.Duration) (Element, error)
	// FindAll returns the matches currently present, possibly none.
	FindAll(ctx context.Context, sel Selector) ([]Element, error)
}

// Page is a single browsing tab.
type Page interface {
	Finder
	Navigate(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)
	ReadyState(ctx context.Context) (string, error)
	// Status returns the HTTP status of the current main document, 0 when
	// the backend cannot tell.
	Status(ctx context.Context) (int, error)
	Close() error
}

// Element is a node inside a page.
type Element interface {
	Finder
	Text(ctx context.Context) (string, error)
	// Attr returns nil when the attribute is not set.
	Attr(ctx context.Context, name string) (*string, error)
	// Click and Input wait for the element to become actionable until ctx
	// is done; callers bound ctx.
	Click(ctx context.Context) error
	Input(ctx context.Context, text string) error
}

// SelectorKind is the query language of a Selector.
type SelectorKind int

const (
	CSS SelectorKind = iota
	XPath
)

func (k SelectorKind) String() string {
	if k == XPath {
		return "xpath"
	}
	return "css"
}

// Selector is a parsed element query.
type Selector struct {
	Kind SelectorKind
	Expr string
}

func (s Selector) String() string {
	return s.Kind.String() + ":" + s.Expr
}

// ParseSelector parses "css:<expr>", "xpath:<expr>" or a bare expression.
// Bare expressions starting with "/", "./" or "(" are XPath, anything else
// is CSS.
func ParseSelector(raw string) (Selector, error) {
	s := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(s, "css:"):
		s = strings.TrimSpace(strings.TrimPrefix(s, "css:"))
		if s == "" {
			return Selector{}, fmt.Errorf("parse selector %q: %w", raw, types.ErrEmptyInput)
		}
		return Selector{Kind: CSS, Expr: s}, nil
	case strings.HasPrefix(s, "xpath:"):
		s = strings.TrimSpace(strings.TrimPrefix(s, "xpath:"))
		if s == "" {
			return Selector{}, fmt.Errorf("parse selector %q: %w", raw, types.ErrEmptyInput)
		}
		return Selector{Kind: XPath, Expr: s}, nil
	case s == "":
		return Selector{}, fmt.Errorf("parse selector: %w", types.ErrEmptyInput)
	case strings.HasPrefix(s, "/"), strings.HasPrefix(s, "./"), strings.HasPrefix(s, "("):
		return Selector{Kind: XPath, Expr: s}, nil
	default:
		return Selector{Kind: CSS, Expr: s}, nil
	}
}

// MustParseSelector is ParseSelector for selectors known at compile time.
func MustParseSelector(raw string) Selector {
	sel, err := ParseSelector(raw)
	if err != nil {
		panic(err)
	}
	return sel
}

// StatusError maps a main-document status to a FetchError. 429 and 503 are
// retryable rate limiting. Success and 0 (unknown) return nil.
func StatusError(url string, status int) error {
	switch {
	case status == 429 || status == 503:
		return &types.FetchError{
			URL:        url,
			StatusCode: status,
			Err:        types.ErrRateLimited,
			Retryable:  true,
		}
	case status >= 400:
		return &types.FetchError{URL: url, StatusCode: status, Err: fmt.Errorf("HTTP %d", status)}
	}
	return nil
}

func notFound(sel Selector) error {
	return fmt.Errorf("%s: %w", sel, types.ErrElementNotFound)
}
