package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/dealstalk/internal/browser"
	"github.com/IshaanNene/dealstalk/internal/config"
	"github.com/IshaanNene/dealstalk/internal/engine"
	"github.com/IshaanNene/dealstalk/internal/fetcher"
	"github.com/IshaanNene/dealstalk/internal/observability"
	"github.com/IshaanNene/dealstalk/internal/storage"
	"github.com/IshaanNene/dealstalk/internal/types"
)

var (
	outputDir   string
	categories  []string
	maxPages    int
	minDiscount string
	headless    bool
	engineName  string
)

// runCmd creates the "run" subcommand.
func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "run",
		Short:        "Sign in and crawl the configured categories",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         runCrawl,
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "directory for the JSON/CSV output")
	cmd.Flags().StringArrayVar(&categories, "category", nil, "category listing URL (repeatable, replaces the configured list)")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "listing pages per category (1-15)")
	cmd.Flags().StringVar(&minDiscount, "min-discount", "", "keep products discounted strictly above this percentage")
	cmd.Flags().BoolVar(&headless, "headless", true, "run the browser headless")
	cmd.Flags().StringVar(&engineName, "engine", "", "browsing backend: rod, http")

	return cmd
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cmd, cfg)

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := config.ValidateCredentials(cfg); err != nil {
		return err
	}

	logger, closer, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics(logger)
	if cfg.Metrics.Enabled {
		if err := metrics.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Warn("failed to start metrics server", "error", err)
		}
	}

	b, release, err := newBrowser(cfg, logger)
	if err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer release()

	backends, err := storage.New(cfg.Storage, logger)
	if err != nil {
		b.Close()
		return fmt.Errorf("create storage: %w", err)
	}

	orch := engine.New(cfg, b, backends, metrics, logger)
	logger.Info("starting run",
		"run_id", orch.RunID(),
		"engine", cfg.Browser.Engine,
		"categories", len(cfg.CategoryURLs()),
		"max_pages", cfg.Crawl.MaxPages,
		"min_discount", cfg.Crawl.MinDiscount,
	)

	report, err := orch.Run(ctx)
	if err != nil {
		var authErr *types.AuthError
		if errors.As(err, &authErr) {
			return fmt.Errorf("sign-in failed, nothing was crawled: %w", err)
		}
		if report == nil || !errors.Is(err, context.Canceled) {
			return err
		}
		fmt.Println("\nInterrupted: partial results were saved.")
	}

	printSummary(report, backends)
	return err
}

// newBrowser selects the browsing backend named by browser.engine. The
// returned release func frees the transport behind the browser.
func newBrowser(cfg *config.Config, logger *slog.Logger) (browser.Browser, func(), error) {
	switch cfg.Browser.Engine {
	case "http":
		hf, err := fetcher.NewHTTPFetcher(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		release := func() {
			if err := hf.Close(); err != nil {
				logger.Warn("fetcher close failed", "error", err)
			}
		}
		return browser.NewStaticBrowser(browser.NewHTTPSource(hf), logger), release, nil
	case "rod", "":
		b, err := browser.NewRodBrowser(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return b, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown browser engine %q", cfg.Browser.Engine)
	}
}

func printSummary(report *engine.Report, backends []storage.Storage) {
	fmt.Printf("\n✅ Run %s complete in %s\n", report.RunID, report.Elapsed.Round(time.Millisecond))
	for _, c := range report.Categories {
		status := "ok"
		if c.Err != nil {
			status = "failed"
		}
		label := c.Category
		if label == "" {
			label = c.URL
		}
		fmt.Printf("   %-40s %-6s pages=%d seen=%d kept=%d\n", label, status, c.Pages, c.Seen, len(c.Records))
	}
	fmt.Printf("   Records:   %d\n", len(report.Records))
	if paths := storage.OutputPaths(backends); len(paths) > 0 {
		fmt.Printf("   Output:    %s\n", strings.Join(paths, ", "))
	}
}

// applyCLIOverrides applies explicitly set flags to the config.
func applyCLIOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if outputDir != "" {
		cfg.Storage.OutputDir = outputDir
		if cfg.Logging.Dir == "" || cfg.Logging.Dir == "." {
			cfg.Logging.Dir = outputDir
		}
	}
	if len(categories) > 0 {
		cfg.Catalogue.Categories = categories
	}
	if flags.Changed("max-pages") {
		cfg.Crawl.MaxPages = maxPages
	}
	if minDiscount != "" {
		cfg.Crawl.MinDiscount = minDiscount
	}
	if flags.Changed("headless") {
		cfg.Browser.Headless = headless
	}
	if engineName != "" {
		cfg.Browser.Engine = strings.ToLower(engineName)
	}
}
