package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/IshaanNene/dealstalk/internal/browser"
	"github.com/IshaanNene/dealstalk/internal/config"
	"github.com/IshaanNene/dealstalk/internal/observability"
	"github.com/IshaanNene/dealstalk/internal/parser"
	"github.com/IshaanNene/dealstalk/internal/storage"
	"github.com/IshaanNene/dealstalk/internal/types"
)

// Report summarises a finished run.
type Report struct {
	RunID      string
	Records    []*types.ProductRecord
	Categories []*CategoryResult
	StartedAt  time.Time
	Elapsed    time.Duration
}

// Orchestrator drives a run: sign in once, crawl every category in order,
// persist the merged records.
type Orchestrator struct {
	cfg      *config.Config
	browser  browser.Browser
	backends []storage.Storage
	metrics  *observability.Metrics
	runID    string
	base     *slog.Logger
	logger   *slog.Logger
}

// New creates an Orchestrator. The browser is owned by the orchestrator and
// closed when Run returns.
func New(cfg *config.Config, b browser.Browser, backends []storage.Storage, metrics *observability.Metrics, logger *slog.Logger) *Orchestrator {
	runID := uuid.NewString()
	base := logger.With("run_id", runID)
	return &Orchestrator{
		cfg:      cfg,
		browser:  b,
		backends: backends,
		metrics:  metrics,
		runID:    runID,
		base:     base,
		logger:   base.With("component", "orchestrator"),
	}
}

// RunID returns the identifier attached to every log line of this run.
func (o *Orchestrator) RunID() string { return o.runID }

// Run executes the crawl. A sign-in failure returns an *types.AuthError and
// persists nothing. Category failures are logged and skipped. When ctx is
// cancelled mid-run the records gathered so far are persisted and ctx's
// error is returned with the report.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: o.runID, StartedAt: time.Now()}
	defer func() {
		if err := o.browser.Close(); err != nil {
			o.logger.Warn("browser close failed", "error", err)
		}
	}()

	pacer := NewPacer(o.cfg.Pacing, o.metrics, o.base)
	extractor := parser.NewExtractor(o.base)
	sessions, err := NewSessionManager(o.cfg, pacer, o.base)
	if err != nil {
		return nil, o.setupFailed("configure session", err)
	}
	enricher, err := NewDetailEnricher(o.cfg, o.browser, extractor, pacer, o.base)
	if err != nil {
		return nil, o.setupFailed("configure enricher", err)
	}
	defer func() {
		if err := enricher.Close(); err != nil {
			o.logger.Warn("detail page close failed", "error", err)
		}
	}()
	crawler, err := NewCategoryCrawler(o.cfg, extractor, enricher, pacer, o.metrics, o.base)
	if err != nil {
		return nil, o.setupFailed("configure crawler", err)
	}

	page, err := o.browser.NewPage(ctx)
	if err != nil {
		return nil, o.setupFailed("open page", err)
	}

	session, err := sessions.Establish(ctx, page, o.cfg.Credentials())
	if err != nil {
		var authErr *types.AuthError
		step := ""
		if errors.As(err, &authErr) {
			step = authErr.Step
		}
		o.logger.Error("sign-in failed", "step", step, "error", err)
		return nil, err
	}
	o.logger.Info("signed in", "at", session.EstablishedAt.Format(time.RFC3339))

	urls := o.cfg.CategoryURLs()
	for i, categoryURL := range urls {
		if ctx.Err() != nil {
			break
		}
		o.metrics.CategoriesTotal.Add(1)
		res := crawler.Crawl(ctx, session.Page, categoryURL)
		report.Categories = append(report.Categories, res)
		report.Records = append(report.Records, res.Records...)

		if res.Err != nil && ctx.Err() != nil {
			o.logger.Warn("run interrupted", "url", categoryURL, "records_kept", len(res.Records))
			break
		}
		if res.Err != nil {
			o.metrics.CategoriesFailed.Add(1)
			o.logger.Error("category failed",
				"index", i+1,
				"url", categoryURL,
				"records_kept", len(res.Records),
				"error", res.Err,
			)
			continue
		}
		o.logger.Info("category done",
			"index", i+1,
			"url", categoryURL,
			"category", res.Category,
			"pages", res.Pages,
			"seen", res.Seen,
			"qualified", res.Qualified,
		)
	}

	persistErr := o.persist(report.Records)
	report.Elapsed = time.Since(report.StartedAt)
	o.metrics.RecordsTotal.Store(int64(len(report.Records)))

	o.logger.Info("run finished",
		"categories", len(report.Categories),
		"records", len(report.Records),
		"elapsed", report.Elapsed.Round(time.Millisecond),
	)

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, persistErr
}

func (o *Orchestrator) setupFailed(what string, err error) error {
	err = fmt.Errorf("%s: %w", what, err)
	o.logger.Error("run setup failed", "error", err)
	return err
}

// persist hands records to every backend and closes them. A failing
// backend does not stop the others; the first error is returned.
func (o *Orchestrator) persist(records []*types.ProductRecord) error {
	multi := storage.NewMultiStorage(o.backends, o.base)
	storeErr := multi.Store(records)
	if err := multi.Close(); err != nil {
		o.logger.Warn("storage close failed", "error", err)
	}
	if storeErr != nil {
		return storeErr
	}
	if len(o.backends) > 0 {
		o.logger.Info("records persisted", "records", len(records), "paths", storage.OutputPaths(o.backends))
	}
	return nil
}
