package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/dealstalk/internal/config"
	"github.com/IshaanNene/dealstalk/internal/logging"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dealstalk",
		Short: "dealstalk: signed-in best-seller discount crawler",
		Long: `dealstalk signs in to the storefront once, walks each configured
best-seller category (up to 15 listing pages), keeps the products discounted
by more than the configured threshold, enriches them from their detail pages
and writes the result as JSON and CSV.

Credentials come from the config file or DEALSTALK_SESSION_EMAIL and
DEALSTALK_SESSION_PASSWORD.`,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dealstalk %s\n", config.Version)
		},
	}
}

// configCmd prints the effective configuration with the password redacted.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			out, err := config.DumpYAML(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

// setupLogger builds the run logger from cfg.Logging; --verbose forces debug.
func setupLogger(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	lc := cfg.Logging
	if verbose {
		lc.Level = "debug"
	}
	logger, closer, path, err := logging.New(lc, time.Now())
	if err != nil {
		return nil, nil, fmt.Errorf("setup logging: %w", err)
	}
	if path != "" {
		logger.Debug("logging to file", "path", path)
	}
	return logger, closer, nil
}
