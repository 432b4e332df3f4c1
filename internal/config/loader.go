package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/IshaanNene/dealstalk/internal/types"
)

// Load reads configuration from file and environment.
// Priority (highest to lowest): env vars > config file > defaults.
// CLI flags are applied by the caller on the returned Config.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("DEALSTALK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("dealstalk")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".dealstalk"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Slices are decoded into fresh values so a shorter list in the file
	// does not inherit trailing default entries.
	cfg.Catalogue.Categories = nil
	cfg.Crawl.Fields = nil
	cfg.Crawl.DetailFields = nil
	cfg.Storage.Formats = nil

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper so that env overrides are
// visible to Unmarshal.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("session.sign_in_url", cfg.Session.SignInURL)
	v.SetDefault("session.email", cfg.Session.Email)
	v.SetDefault("session.password", cfg.Session.Password)
	v.SetDefault("session.email_selector", cfg.Session.EmailSelector)
	v.SetDefault("session.continue_selector", cfg.Session.ContinueSelector)
	v.SetDefault("session.password_selector", cfg.Session.PasswordSelector)
	v.SetDefault("session.submit_selector", cfg.Session.SubmitSelector)

	v.SetDefault("catalogue.categories", cfg.Catalogue.Categories)
	v.SetDefault("catalogue.max_categories", cfg.Catalogue.MaxCategories)

	v.SetDefault("crawl.max_pages", cfg.Crawl.MaxPages)
	v.SetDefault("crawl.min_discount", cfg.Crawl.MinDiscount)
	v.SetDefault("crawl.listing_selector", cfg.Crawl.ListingSelector)
	v.SetDefault("crawl.banner_selector", cfg.Crawl.BannerSelector)
	v.SetDefault("crawl.next_selector", cfg.Crawl.NextSelector)
	v.SetDefault("crawl.detail_link_selector", cfg.Crawl.DetailLinkSelector)
	v.SetDefault("crawl.fields", cfg.Crawl.Fields)
	v.SetDefault("crawl.detail_fields", cfg.Crawl.DetailFields)
	v.SetDefault("crawl.image_selector", cfg.Crawl.ImageSelector)
	v.SetDefault("crawl.detail_ready_selector", cfg.Crawl.DetailReadySelector)

	v.SetDefault("timeouts.element", cfg.Timeouts.Element)
	v.SetDefault("timeouts.field", cfg.Timeouts.Field)
	v.SetDefault("timeouts.settle", cfg.Timeouts.Settle)
	v.SetDefault("timeouts.poll", cfg.Timeouts.Poll)
	v.SetDefault("timeouts.navigation", cfg.Timeouts.Navigation)

	v.SetDefault("pacing.rate", cfg.Pacing.Rate)
	v.SetDefault("pacing.burst", cfg.Pacing.Burst)
	v.SetDefault("pacing.max_retries", cfg.Pacing.MaxRetries)
	v.SetDefault("pacing.backoff", cfg.Pacing.Backoff)

	v.SetDefault("browser.engine", cfg.Browser.Engine)
	v.SetDefault("browser.headless", cfg.Browser.Headless)
	v.SetDefault("browser.bin", cfg.Browser.Bin)
	v.SetDefault("browser.no_sandbox", cfg.Browser.NoSandbox)
	v.SetDefault("browser.stealth", cfg.Browser.Stealth)
	v.SetDefault("browser.proxy", cfg.Browser.Proxy)
	v.SetDefault("browser.user_agent", cfg.Browser.UserAgent)
	v.SetDefault("browser.window_size", cfg.Browser.WindowSize)

	v.SetDefault("storage.output_dir", cfg.Storage.OutputDir)
	v.SetDefault("storage.json_file", cfg.Storage.JSONFile)
	v.SetDefault("storage.csv_file", cfg.Storage.CSVFile)
	v.SetDefault("storage.jsonl_file", cfg.Storage.JSONLFile)
	v.SetDefault("storage.formats", cfg.Storage.Formats)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)
	v.SetDefault("logging.dir", cfg.Logging.Dir)
	v.SetDefault("logging.prefix", cfg.Logging.Prefix)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}

// Credentials returns the configured sign-in pair.
func (c *Config) Credentials() types.Credentials {
	return types.Credentials{Email: c.Session.Email, Password: c.Session.Password}
}

// MinDiscountValue parses crawl.min_discount.
func (c *Config) MinDiscountValue() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(c.Crawl.MinDiscount))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse crawl.min_discount %q: %w", c.Crawl.MinDiscount, err)
	}
	return d, nil
}

// CategoryURLs returns the catalogue truncated to max_categories.
func (c *Config) CategoryURLs() []string {
	limit := c.Catalogue.MaxCategories
	if limit <= 0 || limit > MaxCategoriesLimit {
		limit = MaxCategoriesLimit
	}
	urls := c.Catalogue.Categories
	if len(urls) > limit {
		urls = urls[:limit]
	}
	return append([]string(nil), urls...)
}

// DumpYAML renders the configuration as YAML with the password redacted.
func DumpYAML(cfg *Config) ([]byte, error) {
	redacted := *cfg
	if redacted.Session.Password != "" {
		redacted.Session.Password = "********"
	}
	out, err := yaml.Marshal(&redacted)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}
