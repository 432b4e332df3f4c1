package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"
)

// Metrics tracks run counters.
type Metrics struct {
	CategoriesTotal   atomic.Int64
	CategoriesFailed  atomic.Int64
	PagesVisited      atomic.Int64
	ListingsSeen      atomic.Int64
	ListingsQualified atomic.Int64
	EnrichmentsOK     atomic.Int64
	EnrichmentsFailed atomic.Int64
	RecordsTotal      atomic.Int64
	RateLimitBackoffs atomic.Int64

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

type sample struct {
	name  string
	help  string
	value int64
}

func (m *Metrics) samples() []sample {
	return []sample{
		{"dealstalk_categories_total", "Categories crawled", m.CategoriesTotal.Load()},
		{"dealstalk_categories_failed_total", "Categories abandoned after an error", m.CategoriesFailed.Load()},
		{"dealstalk_pages_visited_total", "Listing pages processed", m.PagesVisited.Load()},
		{"dealstalk_listings_seen_total", "Listing elements extracted", m.ListingsSeen.Load()},
		{"dealstalk_listings_qualified_total", "Listings above the discount threshold", m.ListingsQualified.Load()},
		{"dealstalk_enrichments_ok_total", "Detail pages merged", m.EnrichmentsOK.Load()},
		{"dealstalk_enrichments_failed_total", "Detail pages that failed", m.EnrichmentsFailed.Load()},
		{"dealstalk_records_total", "Records collected", m.RecordsTotal.Load()},
		{"dealstalk_rate_limit_backoffs_total", "Backoffs after a rate-limited navigation", m.RateLimitBackoffs.Load()},
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	for _, s := range m.samples() {
		fmt.Fprintf(w, "# HELP %s %s\n", s.name, s.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", s.name)
		fmt.Fprintf(w, "%s %d\n", s.name, s.value)
	}
}

// StartServer serves metrics on port until ctx is done.
func (m *Metrics) StartServer(ctx context.Context, port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	m.logger.Info("metrics server starting", "addr", addr, "path", path)

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	return nil
}

// Snapshot returns all metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"categories_total":    m.CategoriesTotal.Load(),
		"categories_failed":   m.CategoriesFailed.Load(),
		"pages_visited":       m.PagesVisited.Load(),
		"listings_seen":       m.ListingsSeen.Load(),
		"listings_qualified":  m.ListingsQualified.Load(),
		"enrichments_ok":      m.EnrichmentsOK.Load(),
		"enrichments_failed":  m.EnrichmentsFailed.Load(),
		"records_total":       m.RecordsTotal.Load(),
		"rate_limit_backoffs": m.RateLimitBackoffs.Load(),
	}
}
