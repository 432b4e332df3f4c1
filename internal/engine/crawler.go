package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/IshaanNene/dealstalk/internal/browser"
	"github.com/IshaanNene/dealstalk/internal/config"
	"github.com/IshaanNene/dealstalk/internal/observability"
	"github.com/IshaanNene/dealstalk/internal/parser"
	"github.com/IshaanNene/dealstalk/internal/pricing"
	"github.com/IshaanNene/dealstalk/internal/types"
)

// State is a category crawl state.
type State int

const (
	StateStart State = iota
	StatePageLoaded
	StateItemsProcessed
	StateNextPageRequested
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StatePageLoaded:
		return "page_loaded"
	case StateItemsProcessed:
		return "items_processed"
	case StateNextPageRequested:
		return "next_page_requested"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Enricher fetches detail-page fields for one item.
type Enricher interface {
	Enrich(ctx context.Context, detailURL string) (*types.Enrichment, error)
}

// CategoryResult is the outcome of crawling one category.
type CategoryResult struct {
	URL       string
	Category  string
	Records   []*types.ProductRecord
	Pages     int
	Advances  int
	Seen      int
	Qualified int
	State     State
	Err       error // *types.CategoryError when State is StateFailed
}

// CategoryCrawler walks the pages of one category listing.
type CategoryCrawler struct {
	listing    browser.Selector
	banner     browser.Selector
	next       browser.Selector
	detailLink browser.Selector
	rules      []parser.Rule
	maxPages   int
	threshold  decimal.Decimal
	timeouts   config.TimeoutConfig

	extractor *parser.Extractor
	enricher  Enricher
	pacer     *Pacer
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewCategoryCrawler compiles the crawl selectors and rules.
func NewCategoryCrawler(cfg *config.Config, extractor *parser.Extractor, enricher Enricher, pacer *Pacer, metrics *observability.Metrics, logger *slog.Logger) (*CategoryCrawler, error) {
	threshold, err := cfg.MinDiscountValue()
	if err != nil {
		return nil, err
	}
	rules, err := parser.CompileRules(cfg.Crawl.Fields)
	if err != nil {
		return nil, fmt.Errorf("listing fields: %w", err)
	}

	c := &CategoryCrawler{
		rules:     rules,
		maxPages:  cfg.Crawl.MaxPages,
		threshold: threshold,
		timeouts:  cfg.Timeouts,
		extractor: extractor,
		enricher:  enricher,
		pacer:     pacer,
		metrics:   metrics,
		logger:    logger.With("component", "crawler"),
	}
	if c.maxPages < 1 || c.maxPages > config.MaxPagesLimit {
		c.maxPages = config.MaxPagesLimit
	}

	for _, s := range []struct {
		dst  *browser.Selector
		name string
		raw  string
	}{
		{&c.listing, "listing", cfg.Crawl.ListingSelector},
		{&c.banner, "banner", cfg.Crawl.BannerSelector},
		{&c.next, "next", cfg.Crawl.NextSelector},
		{&c.detailLink, "detail link", cfg.Crawl.DetailLinkSelector},
	} {
		sel, err := browser.ParseSelector(s.raw)
		if err != nil {
			return nil, fmt.Errorf("%s selector: %w", s.name, err)
		}
		*s.dst = sel
	}
	return c, nil
}

// Crawl processes categoryURL on page. It never returns an error directly:
// a failure is reported in the result, alongside any records gathered
// before it.
func (c *CategoryCrawler) Crawl(ctx context.Context, page browser.Page, categoryURL string) *CategoryResult {
	res := &CategoryResult{URL: categoryURL, State: StateStart}
	logger := c.logger.With("category_url", categoryURL)

	fail := func(err error) *CategoryResult {
		res.Err = &types.CategoryError{URL: categoryURL, State: res.State.String(), Err: err}
		res.State = StateFailed
		return res
	}

	// Start -> PageLoaded
	err := c.pacer.Do(ctx, "category", func(ctx context.Context) error {
		return page.Navigate(ctx, categoryURL)
	})
	if err != nil {
		return fail(fmt.Errorf("load category: %w", err))
	}
	if err := c.settle(ctx, browser.DocumentReady(page)); err != nil {
		return fail(fmt.Errorf("wait for category page: %w", err))
	}
	bannerEl, err := page.Find(ctx, c.banner, c.timeouts.Element)
	if err != nil {
		return fail(fmt.Errorf("locate category label: %w", err))
	}
	label, err := bannerEl.Text(ctx)
	if err != nil {
		return fail(fmt.Errorf("read category label: %w", err))
	}
	res.Category = strings.TrimSpace(label)
	logger = logger.With("category", res.Category)

	for pageNo := 1; ; pageNo++ {
		res.State = StatePageLoaded
		res.Pages = pageNo
		c.metrics.PagesVisited.Add(1)

		if err := c.processPage(ctx, page, res, logger); err != nil {
			return fail(err)
		}
		res.State = StateItemsProcessed

		if pageNo >= c.maxPages {
			logger.Debug("page ceiling reached", "pages", pageNo)
			res.State = StateDone
			return res
		}

		res.State = StateNextPageRequested
		if err := c.advance(ctx, page); err != nil {
			if ctx.Err() != nil {
				return fail(ctx.Err())
			}
			if errors.Is(err, types.ErrNoNextPage) {
				logger.Debug("no next page", "pages", pageNo)
			} else {
				logger.Warn("page advance failed, ending category", "pages", pageNo, "error", err)
			}
			res.State = StateDone
			return res
		}
		res.Advances++
	}
}

// processPage extracts every listing element on the current page and keeps
// those above the discount threshold.
func (c *CategoryCrawler) processPage(ctx context.Context, page browser.Page, res *CategoryResult, logger *slog.Logger) error {
	pageURL, err := page.URL(ctx)
	if err != nil {
		return fmt.Errorf("read page URL: %w", err)
	}
	items, err := page.FindAll(ctx, c.listing)
	if err != nil {
		return fmt.Errorf("enumerate listings: %w", err)
	}
	logger.Debug("listing page loaded", "page", res.Pages, "elements", len(items))

	for _, el := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		res.Seen++
		c.metrics.ListingsSeen.Add(1)

		fields := c.extractor.Extract(ctx, el, c.rules, c.timeouts.Field)
		rawPrice := fields.Get(types.FieldPrice)
		rawOriginal := fields.Get(types.FieldOriginalPrice)
		discount, derr := pricing.Discount(rawPrice, rawOriginal)
		if derr != nil {
			logger.Debug("discount defaulted to 0", "error", derr)
		}
		if !pricing.Qualifies(discount, c.threshold) {
			continue
		}

		res.Qualified++
		c.metrics.ListingsQualified.Add(1)
		record := types.NewProductRecord(res.Category, fields,
			pricing.NormalizePtr(rawPrice), pricing.NormalizePtr(rawOriginal), discount)

		c.enrich(ctx, el, pageURL, record, logger)
		res.Records = append(res.Records, record)
	}
	return nil
}

// enrich merges detail fields into record. Failures are absorbed: the record
// keeps its listing fields.
func (c *CategoryCrawler) enrich(ctx context.Context, el browser.Element, pageURL string, record *types.ProductRecord, logger *slog.Logger) {
	detailURL, err := c.detailURL(ctx, el, pageURL)
	if err != nil {
		c.metrics.EnrichmentsFailed.Add(1)
		logger.Warn("enrichment skipped", "error", &types.EnrichmentError{Err: err})
		return
	}

	enrichment, err := c.enricher.Enrich(ctx, detailURL)
	if err != nil {
		c.metrics.EnrichmentsFailed.Add(1)
		logger.Warn("enrichment failed", "url", detailURL, "error", err)
		return
	}
	if err := record.Enrich(*enrichment); err != nil {
		logger.Warn("enrichment not merged", "url", detailURL, "error", err)
		return
	}
	c.metrics.EnrichmentsOK.Add(1)
}

func (c *CategoryCrawler) detailURL(ctx context.Context, el browser.Element, pageURL string) (string, error) {
	link, err := el.Find(ctx, c.detailLink, c.timeouts.Field)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrNoDetailURL, err)
	}
	href, err := link.Attr(ctx, "href")
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrNoDetailURL, err)
	}
	if href == nil || strings.TrimSpace(*href) == "" {
		return "", types.ErrNoDetailURL
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("%w: bad page URL: %v", types.ErrNoDetailURL, err)
	}
	ref, err := url.Parse(strings.TrimSpace(*href))
	if err != nil {
		return "", fmt.Errorf("%w: bad href %q: %v", types.ErrNoDetailURL, *href, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// advance activates the next-page control and waits for the new page. A
// rate-limited landing page is retried by navigating to its URL directly.
func (c *CategoryCrawler) advance(ctx context.Context, page browser.Page) error {
	next, err := page.Find(ctx, c.next, c.timeouts.Element)
	if err != nil {
		if errors.Is(err, types.ErrElementNotFound) {
			return types.ErrNoNextPage
		}
		return fmt.Errorf("locate next page control: %w", err)
	}
	prev, err := page.URL(ctx)
	if err != nil {
		return fmt.Errorf("read page URL: %w", err)
	}

	var landed string
	return c.pacer.Do(ctx, "next page", func(ctx context.Context) error {
		if landed != "" {
			if err := page.Navigate(ctx, landed); err != nil {
				return err
			}
			if err := c.settle(ctx, browser.DocumentReady(page)); err != nil {
				return fmt.Errorf("wait for next page: %w", err)
			}
			return nil
		}

		if err := activate(ctx, next, c.next, c.timeouts); err != nil {
			return fmt.Errorf("activate next page control: %w", err)
		}
		if err := c.settle(ctx, browser.AllOf(browser.URLChanged(page, prev), browser.DocumentReady(page))); err != nil {
			return fmt.Errorf("wait for next page: %w", err)
		}
		cur, err := page.URL(ctx)
		if err != nil {
			return fmt.Errorf("read page URL: %w", err)
		}
		status, err := page.Status(ctx)
		if err != nil {
			c.logger.Debug("page status unavailable", "url", cur, "error", err)
			return nil
		}
		if err := browser.StatusError(cur, status); err != nil {
			landed = cur
			return err
		}
		return nil
	})
}

// activate clicks el, bounding the click by the navigation timeout.
func activate(ctx context.Context, el browser.Element, sel browser.Selector, timeouts config.TimeoutConfig) error {
	actx, cancel := context.WithTimeout(ctx, timeouts.Navigation)
	defer cancel()
	if err := el.Click(actx); err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("click %s: not actionable within %s: %w", sel, timeouts.Navigation, err)
		}
		return fmt.Errorf("click %s: %w", sel, err)
	}
	return nil
}

func (c *CategoryCrawler) settle(ctx context.Context, cond browser.Condition) error {
	return browser.WaitUntil(ctx, c.timeouts.Settle, c.timeouts.Poll, cond)
}
