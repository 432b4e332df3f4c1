package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// --- Defaults Tests ---

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Crawl.MaxPages != 15 {
		t.Errorf("expected max_pages 15, got %d", cfg.Crawl.MaxPages)
	}
	if cfg.Logging.Output != "both" {
		t.Errorf("expected logging output both, got %q", cfg.Logging.Output)
	}
	if len(cfg.Catalogue.Categories) != 4 {
		t.Errorf("expected 4 default categories, got %d", len(cfg.Catalogue.Categories))
	}
	d, err := cfg.MinDiscountValue()
	if err != nil {
		t.Fatalf("MinDiscountValue: %v", err)
	}
	if d.String() != "50" {
		t.Errorf("expected min discount 50, got %s", d)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"max pages zero", func(c *Config) { c.Crawl.MaxPages = 0 }},
		{"max pages above ceiling", func(c *Config) { c.Crawl.MaxPages = 16 }},
		{"max categories above ceiling", func(c *Config) { c.Catalogue.MaxCategories = 11 }},
		{"bad min discount", func(c *Config) { c.Crawl.MinDiscount = "fifty" }},
		{"empty catalogue", func(c *Config) { c.Catalogue.Categories = nil }},
		{"bad category url", func(c *Config) { c.Catalogue.Categories = []string{"ftp://x"} }},
		{"unknown engine", func(c *Config) { c.Browser.Engine = "selenium" }},
		{"unknown format", func(c *Config) { c.Storage.Formats = []string{"parquet"} }},
		{"bad log output", func(c *Config) { c.Logging.Output = "syslog" }},
		{"duplicate field", func(c *Config) {
			c.Crawl.Fields = append(c.Crawl.Fields, FieldRule{Name: "name", Selector: "span"})
		}},
		{"empty next selector", func(c *Config) { c.Crawl.NextSelector = " " }},
		{"empty image selector", func(c *Config) { c.Crawl.ImageSelector = "" }},
		{"poll above settle", func(c *Config) { c.Timeouts.Poll = time.Minute }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateCredentials(t *testing.T) {
	cfg := DefaultConfig()
	if err := ValidateCredentials(cfg); err == nil {
		t.Error("expected error for empty credentials")
	}
	cfg.Session.Email = "user@example.com"
	cfg.Session.Password = "secret"
	if err := ValidateCredentials(cfg); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCategoryURLsCapped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Catalogue.Categories = nil
	for i := 0; i < 14; i++ {
		cfg.Catalogue.Categories = append(cfg.Catalogue.Categories, "https://example.com/c/"+string(rune('a'+i)))
	}
	got := cfg.CategoryURLs()
	if len(got) != 10 {
		t.Fatalf("expected 10 categories, got %d", len(got))
	}
	if got[0] != "https://example.com/c/a" || got[9] != "https://example.com/c/j" {
		t.Errorf("order not preserved: %v", got)
	}

	cfg.Catalogue.MaxCategories = 2
	if n := len(cfg.CategoryURLs()); n != 2 {
		t.Errorf("expected 2 categories, got %d", n)
	}
}

// --- Loader Tests ---

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dealstalk.yaml")
	body := `
session:
  email: someone@example.com
catalogue:
  categories:
    - https://example.com/gp/bestsellers/books
crawl:
  max_pages: 3
  min_discount: "60.5"
  fields:
    - name: name
      selector: "css:.title"
timeouts:
  settle: 5s
storage:
  formats: [json]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Session.Email != "someone@example.com" {
		t.Errorf("email = %q", cfg.Session.Email)
	}
	if len(cfg.Catalogue.Categories) != 1 {
		t.Errorf("expected 1 category, got %v", cfg.Catalogue.Categories)
	}
	if cfg.Crawl.MaxPages != 3 {
		t.Errorf("max_pages = %d", cfg.Crawl.MaxPages)
	}
	if len(cfg.Crawl.Fields) != 1 || cfg.Crawl.Fields[0].Selector != "css:.title" {
		t.Errorf("fields = %+v", cfg.Crawl.Fields)
	}
	if len(cfg.Crawl.DetailFields) != 3 {
		t.Errorf("expected default detail fields, got %+v", cfg.Crawl.DetailFields)
	}
	if cfg.Timeouts.Settle != 5*time.Second {
		t.Errorf("settle = %s", cfg.Timeouts.Settle)
	}
	if cfg.Timeouts.Element != 10*time.Second {
		t.Errorf("element timeout default lost: %s", cfg.Timeouts.Element)
	}
	if len(cfg.Storage.Formats) != 1 || cfg.Storage.Formats[0] != "json" {
		t.Errorf("formats = %v", cfg.Storage.Formats)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("loaded config invalid: %v", err)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DEALSTALK_SESSION_PASSWORD", "from-env")
	t.Setenv("DEALSTALK_CRAWL_MAX_PAGES", "7")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for explicit missing config file")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "c.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Session.Password != "from-env" {
		t.Errorf("password = %q", cfg.Session.Password)
	}
	if cfg.Crawl.MaxPages != 7 {
		t.Errorf("max_pages = %d", cfg.Crawl.MaxPages)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
}

func TestDumpYAMLRedactsPassword(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Session.Password = "hunter2"
	out, err := DumpYAML(cfg)
	if err != nil {
		t.Fatalf("DumpYAML: %v", err)
	}
	if strings.Contains(string(out), "hunter2") {
		t.Error("password leaked into dump")
	}
	if !strings.Contains(string(out), "max_pages: 15") {
		t.Errorf("dump missing crawl section:\n%s", out)
	}
	if cfg.Session.Password != "hunter2" {
		t.Error("DumpYAML mutated the config")
	}
}
