// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/leadharvest/leadharvest/internal/leads"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Logging    LoggingConfig   `mapstructure:"logging"`
	Server     ServerConfig    `mapstructure:"server"`
	Output     OutputConfig    `mapstructure:"output"`
	Dedupe     DedupeConfig    `mapstructure:"dedupe"`
	Sources    SourcesConfig   `mapstructure:"sources"`
	Crawl      CrawlConfig     `mapstructure:"crawl"`
	HTTP       HTTPConfig      `mapstructure:"http"`
	Headless   HeadlessConfig  `mapstructure:"headless"`
	Archive    ArchiveConfig   `mapstructure:"archive"`
	Publisher  PublisherConfig `mapstructure:"publisher"`
	Locations  []leads.Location `mapstructure:"locations"`
	Categories []string         `mapstructure:"categories"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ServerConfig controls the observe HTTP server. Port 0 disables it.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// OutputConfig sets the CSV destination.
type OutputConfig struct {
	Path         string `mapstructure:"path"`
	IncludePhone bool   `mapstructure:"include_phone"`
}

// DedupeConfig selects and parameterizes the dedupe store.
type DedupeConfig struct {
	Provider     string `mapstructure:"provider"` // "file" or "postgres"
	Path         string `mapstructure:"path"`
	DSN          string `mapstructure:"dsn"`
	FlushSeconds int    `mapstructure:"flush_seconds"`
}

// SourcesConfig governs listing resolution.
type SourcesConfig struct {
	MaxPages  int             `mapstructure:"max_pages"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Serper    SerperConfig    `mapstructure:"serper"`
}

// DirectoryConfig parameterizes the primary listings directory.
type DirectoryConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// SerperConfig holds the fallback places-search credential and endpoints.
type SerperConfig struct {
	APIKey         string `mapstructure:"api_key"`
	Required       bool   `mapstructure:"required"`
	PlacesEndpoint string `mapstructure:"places_endpoint"`
	ScrapeEndpoint string `mapstructure:"scrape_endpoint"`
}

// CrawlConfig governs per-listing website enrichment.
type CrawlConfig struct {
	Concurrency  int     `mapstructure:"concurrency"`
	SkipWebsites bool    `mapstructure:"skip_websites"`
	PerHostRPS   float64 `mapstructure:"per_host_rps"`
}

// HTTPConfig configures the retrying HTTP executor.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
}

// HeadlessConfig configures the headless rendering fallback.
type HeadlessConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	NavTimeoutSec  int  `mapstructure:"nav_timeout_seconds"`
	MinHTMLBytes   int  `mapstructure:"min_html_bytes"`
	MaxConcurrency int  `mapstructure:"max_concurrency"`
}

// ArchiveConfig selects the raw page archive provider.
type ArchiveConfig struct {
	Provider  string `mapstructure:"provider"` // "noop", "local" or "gcs"
	Dir       string `mapstructure:"dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PublisherConfig selects the task event publisher.
type PublisherConfig struct {
	Provider  string `mapstructure:"provider"` // "noop" or "pubsub"
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Load builds a Config from disk and environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LEADHARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("server.port", 0)
	v.SetDefault("output.path", "leads.csv")
	v.SetDefault("output.include_phone", true)
	v.SetDefault("dedupe.provider", "file")
	v.SetDefault("dedupe.path", "processed.json")
	v.SetDefault("dedupe.flush_seconds", 60)
	v.SetDefault("sources.max_pages", 3)
	v.SetDefault("sources.directory.base_url", "https://www.yellowpages.com")
	v.SetDefault("sources.serper.places_endpoint", "https://google.serper.dev/places")
	v.SetDefault("sources.serper.scrape_endpoint", "https://scrape.serper.dev")
	v.SetDefault("crawl.concurrency", 5)
	v.SetDefault("crawl.per_host_rps", 2)
	v.SetDefault("http.timeout_seconds", 10)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("http.backoff_initial_ms", 500)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.nav_timeout_seconds", 20)
	v.SetDefault("headless.min_html_bytes", 2000)
	v.SetDefault("headless.max_concurrency", 1)
	v.SetDefault("archive.provider", "noop")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("publisher.provider", "noop")
	v.SetDefault("locations", defaultLocations())
	v.SetDefault("categories", defaultCategories())
}

func defaultLocations() []map[string]string {
	return []map[string]string{
		{"city": "Springfield", "region": "IL"},
		{"city": "Columbus", "region": "OH"},
		{"city": "Madison", "region": "WI"},
		{"city": "Austin", "region": "TX"},
		{"city": "Portland", "region": "OR"},
	}
}

func defaultCategories() []string {
	return []string{"bakeries", "plumbers", "dentists", "landscaping", "auto repair"}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Output.Path == "" {
		return fmt.Errorf("output.path must be set")
	}
	if c.Crawl.Concurrency <= 0 {
		return fmt.Errorf("crawl.concurrency must be > 0")
	}
	if c.Sources.MaxPages <= 0 {
		return fmt.Errorf("sources.max_pages must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.Sources.Serper.Required && c.Sources.Serper.APIKey == "" {
		return fmt.Errorf("sources.serper.api_key must be set when the fallback source is required")
	}
	switch c.Dedupe.Provider {
	case "file":
		if c.Dedupe.Path == "" {
			return fmt.Errorf("dedupe.path must be set for the file provider")
		}
	case "postgres":
		if c.Dedupe.DSN == "" {
			return fmt.Errorf("dedupe.dsn must be set for the postgres provider")
		}
	default:
		return fmt.Errorf("unknown dedupe provider: %s", c.Dedupe.Provider)
	}
	switch c.Archive.Provider {
	case "noop":
	case "local":
		if c.Archive.Dir == "" {
			return fmt.Errorf("archive.dir must be set for the local provider")
		}
	case "gcs":
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket must be set for the gcs provider")
		}
	default:
		return fmt.Errorf("unknown archive provider: %s", c.Archive.Provider)
	}
	switch c.Publisher.Provider {
	case "noop", "memory":
	case "pubsub":
		if c.Publisher.ProjectID == "" || c.Publisher.Topic == "" {
			return fmt.Errorf("publisher.project_id and publisher.topic must be set for the pubsub provider")
		}
	default:
		return fmt.Errorf("unknown publisher provider: %s", c.Publisher.Provider)
	}
	if len(c.Locations) == 0 {
		return fmt.Errorf("locations table must not be empty")
	}
	if len(c.Categories) == 0 {
		return fmt.Errorf("categories list must not be empty")
	}
	return nil
}

// RequestTimeout converts the HTTP timeout config into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// InitialBackoff converts the backoff config into a duration.
func (c Config) InitialBackoff() time.Duration {
	return time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond
}

// FlushInterval converts the dedupe flush config into a duration.
func (c Config) FlushInterval() time.Duration {
	return time.Duration(c.Dedupe.FlushSeconds) * time.Second
}
