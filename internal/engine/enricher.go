package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/dealstalk/internal/browser"
	"github.com/IshaanNene/dealstalk/internal/config"
	"github.com/IshaanNene/dealstalk/internal/parser"
	"github.com/IshaanNene/dealstalk/internal/types"
)

// DetailEnricher visits detail pages on a page of its own, opened on first
// use and reused, so the listing page is never navigated away from.
type DetailEnricher struct {
	browser   browser.Browser
	page      browser.Page
	rules     []parser.Rule
	images    browser.Selector
	ready     *browser.Selector
	extractor *parser.Extractor
	pacer     *Pacer
	timeouts  config.TimeoutConfig
	logger    *slog.Logger
}

// NewDetailEnricher compiles the detail rules.
func NewDetailEnricher(cfg *config.Config, b browser.Browser, extractor *parser.Extractor, pacer *Pacer, logger *slog.Logger) (*DetailEnricher, error) {
	rules, err := parser.CompileRules(cfg.Crawl.DetailFields)
	if err != nil {
		return nil, fmt.Errorf("detail fields: %w", err)
	}
	images, err := browser.ParseSelector(cfg.Crawl.ImageSelector)
	if err != nil {
		return nil, fmt.Errorf("image selector: %w", err)
	}
	e := &DetailEnricher{
		browser:   b,
		rules:     rules,
		images:    images,
		extractor: extractor,
		pacer:     pacer,
		timeouts:  cfg.Timeouts,
		logger:    logger.With("component", "enricher"),
	}
	if cfg.Crawl.DetailReadySelector != "" {
		sel, err := browser.ParseSelector(cfg.Crawl.DetailReadySelector)
		if err != nil {
			return nil, fmt.Errorf("detail ready selector: %w", err)
		}
		e.ready = &sel
	}
	return e, nil
}

// Enrich loads detailURL and reads the secondary fields. A navigation or
// readiness failure returns an *types.EnrichmentError and no fields.
func (e *DetailEnricher) Enrich(ctx context.Context, detailURL string) (*types.Enrichment, error) {
	fail := func(err error) (*types.Enrichment, error) {
		return nil, &types.EnrichmentError{URL: detailURL, Err: err}
	}

	if e.page == nil {
		page, err := e.browser.NewPage(ctx)
		if err != nil {
			return fail(fmt.Errorf("open detail page: %w", err))
		}
		e.page = page
	}
	page := e.page

	err := e.pacer.Do(ctx, "detail", func(ctx context.Context) error {
		return page.Navigate(ctx, detailURL)
	})
	if err != nil {
		return fail(err)
	}

	cond := browser.DocumentReady(page)
	if e.ready != nil {
		cond = browser.AllOf(cond, browser.ElementPresent(page, *e.ready))
	}
	if err := browser.WaitUntil(ctx, e.timeouts.Settle, e.timeouts.Poll, cond); err != nil {
		return fail(err)
	}

	fields := e.extractor.Extract(ctx, page, e.rules, e.timeouts.Element)
	images := e.extractor.ExtractAll(ctx, page, e.images, "src", e.timeouts.Element)
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	return &types.Enrichment{
		Description: fields.Get(types.FieldDescription),
		ShipFrom:    fields.Get(types.FieldShipFrom),
		SoldBy:      fields.Get(types.FieldSoldBy),
		Images:      images,
	}, nil
}

// Close closes the detail page if one was opened.
func (e *DetailEnricher) Close() error {
	if e.page == nil {
		return nil
	}
	err := e.page.Close()
	e.page = nil
	return err
}
