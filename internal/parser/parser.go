// Package parser pulls named fields out of listing elements and detail pages.
package parser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IshaanNene/dealstalk/internal/browser"
	"github.com/IshaanNene/dealstalk/internal/config"
	"github.com/IshaanNene/dealstalk/internal/types"
)

// Rule is a compiled field rule.
type Rule struct {
	Name      string
	Selector  browser.Selector
	Attribute string // empty reads the element text
}

// CompileRules parses the selectors of cfg rules.
func CompileRules(rules []config.FieldRule) ([]Rule, error) {
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		sel, err := browser.ParseSelector(r.Selector)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", r.Name, err)
		}
		out = append(out, Rule{Name: r.Name, Selector: sel, Attribute: r.Attribute})
	}
	return out, nil
}

// Extractor reads fields with per-field fault isolation: a failed lookup
// yields nil for that field and never affects its siblings.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger.With("component", "extractor")}
}

// Extract runs every rule against scope. Each lookup waits at most timeout.
// The result has an entry, possibly nil, for every rule.
func (x *Extractor) Extract(ctx context.Context, scope browser.Finder, rules []Rule, timeout time.Duration) types.Fields {
	fields := make(types.Fields, len(rules))
	for _, r := range rules {
		v, err := x.lookup(ctx, scope, r, timeout)
		if err != nil {
			x.logger.Debug("field absent", "error", err)
			fields[r.Name] = nil
			continue
		}
		fields[r.Name] = v
	}
	return fields
}

func (x *Extractor) lookup(ctx context.Context, scope browser.Finder, r Rule, timeout time.Duration) (*string, error) {
	fail := func(err error) error {
		return &types.FieldLookupError{Field: r.Name, Selector: r.Selector.String(), Err: err}
	}
	if scope == nil {
		return nil, fail(types.ErrElementNotFound)
	}

	lctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	el, err := scope.Find(lctx, r.Selector, timeout)
	if err != nil {
		return nil, fail(err)
	}
	v, err := readValue(lctx, el, r.Attribute)
	if err != nil {
		return nil, fail(err)
	}
	return v, nil
}

// ExtractAll reads attr (or text) from every element matching sel, in
// document order. Elements without a value are skipped. The result is never
// nil.
func (x *Extractor) ExtractAll(ctx context.Context, scope browser.Finder, sel browser.Selector, attr string, timeout time.Duration) []string {
	out := []string{}
	if scope == nil {
		return out
	}

	lctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	els, err := scope.FindAll(lctx, sel)
	if err != nil {
		x.logger.Debug("collection absent", "selector", sel.String(), "error", err)
		return out
	}
	for _, el := range els {
		v, err := readValue(lctx, el, attr)
		if err != nil {
			continue
		}
		out = append(out, *v)
	}
	return out
}

// readValue returns the trimmed text or attribute of el. An empty value is a
// miss.
func readValue(ctx context.Context, el browser.Element, attr string) (*string, error) {
	var raw string
	if attr == "" {
		text, err := el.Text(ctx)
		if err != nil {
			return nil, fmt.Errorf("read text: %w", err)
		}
		raw = text
	} else {
		v, err := el.Attr(ctx, attr)
		if err != nil {
			return nil, fmt.Errorf("read attribute %s: %w", attr, err)
		}
		if v == nil {
			return nil, fmt.Errorf("attribute %s: %w", attr, types.ErrElementNotFound)
		}
		raw = *v
	}
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("empty value: %w", types.ErrEmptyInput)
	}
	return &s, nil
}
