package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for dealstalk.
type Config struct {
	Session   SessionConfig   `mapstructure:"session"   yaml:"session"`
	Catalogue CatalogueConfig `mapstructure:"catalogue" yaml:"catalogue"`
	Crawl     CrawlConfig     `mapstructure:"crawl"     yaml:"crawl"`
	Timeouts  TimeoutConfig   `mapstructure:"timeouts"  yaml:"timeouts"`
	Pacing    PacingConfig    `mapstructure:"pacing"    yaml:"pacing"`
	Browser   BrowserConfig   `mapstructure:"browser"   yaml:"browser"`
	Storage   StorageConfig   `mapstructure:"storage"   yaml:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"   yaml:"metrics"`
}

// SessionConfig controls the two-step sign-in flow.
type SessionConfig struct {
	SignInURL        string `mapstructure:"sign_in_url"       yaml:"sign_in_url"`
	Email            string `mapstructure:"email"             yaml:"email"`
	Password         string `mapstructure:"password"          yaml:"password"`
	EmailSelector    string `mapstructure:"email_selector"    yaml:"email_selector"`
	ContinueSelector string `mapstructure:"continue_selector" yaml:"continue_selector"`
	PasswordSelector string `mapstructure:"password_selector" yaml:"password_selector"`
	SubmitSelector   string `mapstructure:"submit_selector"   yaml:"submit_selector"`
}

// CatalogueConfig lists the category listing pages to crawl.
type CatalogueConfig struct {
	Categories    []string `mapstructure:"categories"     yaml:"categories"`
	MaxCategories int      `mapstructure:"max_categories" yaml:"max_categories"`
}

// CrawlConfig controls listing traversal and field extraction.
type CrawlConfig struct {
	MaxPages            int         `mapstructure:"max_pages"             yaml:"max_pages"`
	MinDiscount         string      `mapstructure:"min_discount"          yaml:"min_discount"`
	ListingSelector     string      `mapstructure:"listing_selector"      yaml:"listing_selector"`
	BannerSelector      string      `mapstructure:"banner_selector"       yaml:"banner_selector"`
	NextSelector        string      `mapstructure:"next_selector"         yaml:"next_selector"`
	DetailLinkSelector  string      `mapstructure:"detail_link_selector"  yaml:"detail_link_selector"`
	Fields              []FieldRule `mapstructure:"fields"                yaml:"fields"`
	DetailFields        []FieldRule `mapstructure:"detail_fields"         yaml:"detail_fields"`
	ImageSelector       string      `mapstructure:"image_selector"        yaml:"image_selector"`
	DetailReadySelector string      `mapstructure:"detail_ready_selector" yaml:"detail_ready_selector"`
}

// FieldRule defines a single extraction rule. An empty Attribute reads the
// element text.
type FieldRule struct {
	Name      string `mapstructure:"name"      yaml:"name"`
	Selector  string `mapstructure:"selector"  yaml:"selector"`
	Attribute string `mapstructure:"attribute" yaml:"attribute,omitempty"`
}

// TimeoutConfig holds the per-call wait bounds.
type TimeoutConfig struct {
	Element    time.Duration `mapstructure:"element"    yaml:"element"`
	Field      time.Duration `mapstructure:"field"      yaml:"field"`
	Settle     time.Duration `mapstructure:"settle"     yaml:"settle"`
	Poll       time.Duration `mapstructure:"poll"       yaml:"poll"`
	Navigation time.Duration `mapstructure:"navigation" yaml:"navigation"`
}

// PacingConfig controls navigation rate and rate-limit backoff.
type PacingConfig struct {
	Rate       float64       `mapstructure:"rate"        yaml:"rate"`
	Burst      int           `mapstructure:"burst"       yaml:"burst"`
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
	Backoff    time.Duration `mapstructure:"backoff"     yaml:"backoff"`
}

// BrowserConfig selects and tunes the browsing backend.
type BrowserConfig struct {
	Engine     string `mapstructure:"engine"      yaml:"engine"` // rod, http
	Headless   bool   `mapstructure:"headless"    yaml:"headless"`
	Bin        string `mapstructure:"bin"         yaml:"bin,omitempty"`
	NoSandbox  bool   `mapstructure:"no_sandbox"  yaml:"no_sandbox"`
	Stealth    bool   `mapstructure:"stealth"     yaml:"stealth"`
	Proxy      string `mapstructure:"proxy"       yaml:"proxy,omitempty"`
	UserAgent  string `mapstructure:"user_agent"  yaml:"user_agent"`
	WindowSize string `mapstructure:"window_size" yaml:"window_size"`
}

// StorageConfig controls output files.
type StorageConfig struct {
	OutputDir string   `mapstructure:"output_dir" yaml:"output_dir"`
	JSONFile  string   `mapstructure:"json_file"  yaml:"json_file"`
	CSVFile   string   `mapstructure:"csv_file"   yaml:"csv_file"`
	JSONLFile string   `mapstructure:"jsonl_file" yaml:"jsonl_file"`
	Formats   []string `mapstructure:"formats"    yaml:"formats"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"` // stderr, file, both
	Dir    string `mapstructure:"dir"    yaml:"dir"`
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
}

// MetricsConfig controls the Prometheus text endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// Limits imposed on the catalogue and crawl regardless of configuration.
const (
	MaxCategoriesLimit = 10
	MaxPagesLimit      = 15
)

// DefaultConfig returns a Config targeting the amazon.in best-seller pages.
func DefaultConfig() *Config {
	return &Config{
		Session: SessionConfig{
			SignInURL:        "https://www.amazon.in/ap/signin",
			EmailSelector:    "#ap_email",
			ContinueSelector: "#continue",
			PasswordSelector: "#ap_password",
			SubmitSelector:   "#signInSubmit",
		},
		Catalogue: CatalogueConfig{
			Categories:    DefaultCategories(),
			MaxCategories: MaxCategoriesLimit,
		},
		Crawl: CrawlConfig{
			MaxPages:           MaxPagesLimit,
			MinDiscount:        "50",
			ListingSelector:    `xpath://div[@class="a-section a-spacing-none aok-relative"]`,
			BannerSelector:     "#zg_banner_text",
			NextSelector:       `xpath://li[@class="a-last"]/a`,
			DetailLinkSelector: `xpath:.//a[@class="a-link-normal"]`,
			Fields:             DefaultFieldRules(),
			DetailFields:       DefaultDetailRules(),
			ImageSelector:      `xpath://div[@id="altImages"]//img`,
		},
		Timeouts: TimeoutConfig{
			Element:    10 * time.Second,
			Field:      2 * time.Second,
			Settle:     15 * time.Second,
			Poll:       250 * time.Millisecond,
			Navigation: 30 * time.Second,
		},
		Pacing: PacingConfig{
			Rate:       1,
			Burst:      1,
			MaxRetries: 3,
			Backoff:    5 * time.Second,
		},
		Browser: BrowserConfig{
			Engine:     "rod",
			Headless:   true,
			NoSandbox:  true,
			Stealth:    true,
			UserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			WindowSize: "1920,1080",
		},
		Storage: StorageConfig{
			OutputDir: ".",
			JSONFile:  "amazon_products.json",
			CSVFile:   "amazon_products.csv",
			JSONLFile: "amazon_products.jsonl",
			Formats:   []string{"json", "csv"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "both",
			Dir:    ".",
			Prefix: "dealstalk",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

// DefaultCategories returns the built-in best-seller catalogue.
func DefaultCategories() []string {
	return []string{
		"https://www.amazon.in/gp/bestsellers/kitchen",
		"https://www.amazon.in/gp/bestsellers/shoes",
		"https://www.amazon.in/gp/bestsellers/computers",
		"https://www.amazon.in/gp/bestsellers/electronics",
	}
}

// DefaultFieldRules returns the listing element rules.
func DefaultFieldRules() []FieldRule {
	return []FieldRule{
		{Name: "name", Selector: `xpath:.//span[@class="a-size-medium a-color-base a-text-normal"]`},
		{Name: "price", Selector: `xpath:.//span[@class="a-price-whole"]`},
		{Name: "original_price", Selector: `xpath:.//span[@class="a-price a-text-price"]`},
		{Name: "rating", Selector: `xpath:.//span[@class="a-icon-alt"]`},
		{Name: "review_count", Selector: `xpath:.//span[@class="a-size-small"]`},
	}
}

// DefaultDetailRules returns the detail page rules.
func DefaultDetailRules() []FieldRule {
	return []FieldRule{
		{Name: "description", Selector: `xpath://div[@id="productDescription"]`},
		{Name: "ship_from", Selector: `xpath://div[@id="tabular-buybox"]//span[contains(text(), "Ships from")]/../following-sibling::span`},
		{Name: "sold_by", Selector: `xpath://div[@id="tabular-buybox"]//span[contains(text(), "Sold by")]/../following-sibling::span`},
	}
}
