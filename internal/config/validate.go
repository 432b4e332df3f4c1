package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if err := ValidateURL(cfg.Session.SignInURL); err != nil {
		return fmt.Errorf("session.sign_in_url: %w", err)
	}
	required := []struct{ name, value string }{
		{"session.email_selector", cfg.Session.EmailSelector},
		{"session.continue_selector", cfg.Session.ContinueSelector},
		{"session.password_selector", cfg.Session.PasswordSelector},
		{"session.submit_selector", cfg.Session.SubmitSelector},
		{"crawl.listing_selector", cfg.Crawl.ListingSelector},
		{"crawl.banner_selector", cfg.Crawl.BannerSelector},
		{"crawl.next_selector", cfg.Crawl.NextSelector},
		{"crawl.detail_link_selector", cfg.Crawl.DetailLinkSelector},
		{"crawl.image_selector", cfg.Crawl.ImageSelector},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%s must not be empty", r.name)
		}
	}

	if len(cfg.Catalogue.Categories) == 0 {
		return fmt.Errorf("catalogue.categories must list at least one URL")
	}
	for _, u := range cfg.Catalogue.Categories {
		if err := ValidateURL(u); err != nil {
			return fmt.Errorf("catalogue.categories %q: %w", u, err)
		}
	}
	if cfg.Catalogue.MaxCategories < 1 || cfg.Catalogue.MaxCategories > MaxCategoriesLimit {
		return fmt.Errorf("catalogue.max_categories must be 1-%d, got %d", MaxCategoriesLimit, cfg.Catalogue.MaxCategories)
	}

	if cfg.Crawl.MaxPages < 1 || cfg.Crawl.MaxPages > MaxPagesLimit {
		return fmt.Errorf("crawl.max_pages must be 1-%d, got %d", MaxPagesLimit, cfg.Crawl.MaxPages)
	}
	if _, err := cfg.MinDiscountValue(); err != nil {
		return err
	}
	if err := validateRules("crawl.fields", cfg.Crawl.Fields); err != nil {
		return err
	}
	if err := validateRules("crawl.detail_fields", cfg.Crawl.DetailFields); err != nil {
		return err
	}

	if cfg.Timeouts.Element <= 0 || cfg.Timeouts.Field <= 0 || cfg.Timeouts.Settle <= 0 || cfg.Timeouts.Navigation <= 0 {
		return fmt.Errorf("timeouts must be > 0")
	}
	if cfg.Timeouts.Poll <= 0 || cfg.Timeouts.Poll > cfg.Timeouts.Settle {
		return fmt.Errorf("timeouts.poll must be > 0 and <= timeouts.settle, got %s", cfg.Timeouts.Poll)
	}

	if cfg.Pacing.Rate < 0 {
		return fmt.Errorf("pacing.rate must be >= 0, got %v", cfg.Pacing.Rate)
	}
	if cfg.Pacing.Rate > 0 && cfg.Pacing.Burst < 1 {
		return fmt.Errorf("pacing.burst must be >= 1, got %d", cfg.Pacing.Burst)
	}
	if cfg.Pacing.MaxRetries < 0 {
		return fmt.Errorf("pacing.max_retries must be >= 0, got %d", cfg.Pacing.MaxRetries)
	}
	if cfg.Pacing.Backoff < 0 {
		return fmt.Errorf("pacing.backoff must be >= 0")
	}

	if cfg.Browser.Engine != "rod" && cfg.Browser.Engine != "http" {
		return fmt.Errorf("browser.engine must be 'rod' or 'http', got %q", cfg.Browser.Engine)
	}
	if cfg.Browser.Proxy != "" {
		if _, err := url.Parse(cfg.Browser.Proxy); err != nil {
			return fmt.Errorf("invalid browser.proxy %q: %w", cfg.Browser.Proxy, err)
		}
	}

	validFormats := map[string]bool{"json": true, "jsonl": true, "csv": true}
	if len(cfg.Storage.Formats) == 0 {
		return fmt.Errorf("storage.formats must list at least one format")
	}
	for _, f := range cfg.Storage.Formats {
		if !validFormats[f] {
			return fmt.Errorf("storage.formats %q is not supported (valid: json, jsonl, csv)", f)
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}
	switch cfg.Logging.Output {
	case "stderr", "file", "both":
	default:
		return fmt.Errorf("logging.output must be stderr/file/both, got %q", cfg.Logging.Output)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// ValidateCredentials rejects an empty identifier or secret.
func ValidateCredentials(cfg *Config) error {
	if strings.TrimSpace(cfg.Session.Email) == "" {
		return fmt.Errorf("session.email is required (set DEALSTALK_SESSION_EMAIL)")
	}
	if cfg.Session.Password == "" {
		return fmt.Errorf("session.password is required (set DEALSTALK_SESSION_PASSWORD)")
	}
	return nil
}

func validateRules(section string, rules []FieldRule) error {
	seen := make(map[string]bool, len(rules))
	for i, r := range rules {
		if r.Name == "" {
			return fmt.Errorf("%s[%d]: name must not be empty", section, i)
		}
		if r.Selector == "" {
			return fmt.Errorf("%s[%d] (%s): selector must not be empty", section, i, r.Name)
		}
		if seen[r.Name] {
			return fmt.Errorf("%s: duplicate field %q", section, r.Name)
		}
		seen[r.Name] = true
	}
	return nil
}

// ValidateURL checks if a URL string is valid for crawling.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
