package config

import (
	"time"

	"github.com/IshaanNene/NewsGoat/internal/types"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for NewsGoat.
type Config struct {
	Crawl      CrawlConfig      `mapstructure:"crawl"      yaml:"crawl"`
	Fetcher    FetcherConfig    `mapstructure:"fetcher"    yaml:"fetcher"`
	Render     RenderConfig     `mapstructure:"render"     yaml:"render"`
	Extraction ExtractionConfig `mapstructure:"extraction" yaml:"extraction"`
	Sources    []SourceConfig   `mapstructure:"sources"    yaml:"sources"`
	AI         AIConfig         `mapstructure:"ai"         yaml:"ai"`
	Cache      CacheConfig      `mapstructure:"cache"      yaml:"cache"`
	Storage    StorageConfig    `mapstructure:"storage"    yaml:"storage"`
	Schedule   ScheduleConfig   `mapstructure:"schedule"   yaml:"schedule"`
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"    yaml:"metrics"`
}

// CrawlConfig controls the crawl orchestrator.
type CrawlConfig struct {
	WindowDays        int  `mapstructure:"window_days"        yaml:"window_days"`
	MaxLinks          int  `mapstructure:"max_links"          yaml:"max_links"`
	MinBodyLength     int  `mapstructure:"min_body_length"    yaml:"min_body_length"`
	Concurrency       int  `mapstructure:"concurrency"        yaml:"concurrency"`
	SourceConcurrency int  `mapstructure:"source_concurrency" yaml:"source_concurrency"`
	RespectRobotsTxt  bool `mapstructure:"respect_robots_txt" yaml:"respect_robots_txt"`
	SitemapMaxDepth   int  `mapstructure:"sitemap_max_depth"  yaml:"sitemap_max_depth"`
}

// FetcherConfig controls the HTTP fetch collaborator.
type FetcherConfig struct {
	UserAgent       string        `mapstructure:"user_agent"        yaml:"user_agent"`
	AcceptLanguage  string        `mapstructure:"accept_language"   yaml:"accept_language"`
	Timeout         time.Duration `mapstructure:"timeout"           yaml:"timeout"`
	RobotsTimeout   time.Duration `mapstructure:"robots_timeout"    yaml:"robots_timeout"`
	PolitenessDelay time.Duration `mapstructure:"politeness_delay"  yaml:"politeness_delay"`
	MaxRetries      int           `mapstructure:"max_retries"       yaml:"max_retries"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"       yaml:"retry_delay"`
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
}

// RenderConfig controls the headless-browser fallback for script-built listings.
type RenderConfig struct {
	Enabled      bool          `mapstructure:"enabled"       yaml:"enabled"`
	Headless     bool          `mapstructure:"headless"      yaml:"headless"`
	Stealth      bool          `mapstructure:"stealth"       yaml:"stealth"`
	Timeout      time.Duration `mapstructure:"timeout"       yaml:"timeout"`
	WaitSelector string        `mapstructure:"wait_selector" yaml:"wait_selector"`
	SelectorWait time.Duration `mapstructure:"selector_wait" yaml:"selector_wait"`
	BrowserBin   string        `mapstructure:"browser_bin"   yaml:"browser_bin"`
}

// ExtractionConfig holds per-domain main-text rules evaluated before the built-in ones.
type ExtractionConfig struct {
	Rules []DomainRulesConfig `mapstructure:"rules" yaml:"rules"`
}

// DomainRulesConfig is an ordered candidate list for hosts containing Domain.
type DomainRulesConfig struct {
	Domain     string            `mapstructure:"domain"     yaml:"domain"`
	Candidates []CandidateConfig `mapstructure:"candidates" yaml:"candidates"`
}

// CandidateConfig describes one container candidate. Either XPath or Tag is set.
type CandidateConfig struct {
	Tag      string `mapstructure:"tag"      yaml:"tag"`
	Class    string `mapstructure:"class"    yaml:"class"`
	Itemprop string `mapstructure:"itemprop" yaml:"itemprop"`
	XPath    string `mapstructure:"xpath"    yaml:"xpath"`
}

// Source kinds.
const (
	SourceListing = "listing"
	SourceSitemap = "sitemap"
	SourceFeed    = "feed"
)

// SourceConfig describes one crawl source.
type SourceConfig struct {
	Name     string `mapstructure:"name"     yaml:"name"`
	Type     string `mapstructure:"type"     yaml:"type"`
	URL      string `mapstructure:"url"      yaml:"url"`
	Disabled bool   `mapstructure:"disabled" yaml:"disabled"`

	// Listing filters.
	AllowSubstrings []string `mapstructure:"allow_substrings" yaml:"allow_substrings"`
	AllowRegex      string   `mapstructure:"allow_regex"      yaml:"allow_regex"`
	MaxLinks        int      `mapstructure:"max_links"        yaml:"max_links"`

	// Feed entries without a title fall back to DisplayName.
	DisplayName string `mapstructure:"display_name" yaml:"display_name"`

	// Sitemap filters and fallback.
	PathContains    []string `mapstructure:"path_contains"    yaml:"path_contains"`
	LangSuffix      string   `mapstructure:"lang_suffix"      yaml:"lang_suffix"`
	FallbackListing string   `mapstructure:"fallback_listing" yaml:"fallback_listing"`
	FallbackAllow   []string `mapstructure:"fallback_allow"   yaml:"fallback_allow"`
}

// AIConfig controls the enrichment pass.
type AIConfig struct {
	Enabled       bool          `mapstructure:"enabled"         yaml:"enabled"`
	Provider      string        `mapstructure:"provider"        yaml:"provider"`
	Model         string        `mapstructure:"model"           yaml:"model"`
	Endpoint      string        `mapstructure:"endpoint"        yaml:"endpoint"`
	APIKey        string        `mapstructure:"api_key"         yaml:"api_key"`
	Timeout       time.Duration `mapstructure:"timeout"         yaml:"timeout"`
	Concurrency   int           `mapstructure:"concurrency"     yaml:"concurrency"`
	MaxInputChars int           `mapstructure:"max_input_chars" yaml:"max_input_chars"`
}

// CacheConfig controls the Redis-backed enrichment cache.
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"  yaml:"enabled"`
	Addr     string        `mapstructure:"addr"     yaml:"addr"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db"       yaml:"db"`
	TTL      time.Duration `mapstructure:"ttl"      yaml:"ttl"`
	Prefix   string        `mapstructure:"prefix"   yaml:"prefix"`
}

// StorageConfig controls output/storage.
type StorageConfig struct {
	Type       string      `mapstructure:"type"        yaml:"type"`
	OutputPath string      `mapstructure:"output_path" yaml:"output_path"`
	Mongo      MongoConfig `mapstructure:"mongo"       yaml:"mongo"`
}

// MongoConfig enables an additional MongoDB sink.
type MongoConfig struct {
	Enabled    bool   `mapstructure:"enabled"    yaml:"enabled"`
	URI        string `mapstructure:"uri"        yaml:"uri"`
	Database   string `mapstructure:"database"   yaml:"database"`
	Collection string `mapstructure:"collection" yaml:"collection"`
}

// ScheduleConfig controls the periodic crawl command.
type ScheduleConfig struct {
	Cron string `mapstructure:"cron" yaml:"cron"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Crawl: CrawlConfig{
			WindowDays:        types.DefaultWindowDays,
			MaxLinks:          80,
			MinBodyLength:     200,
			Concurrency:       4,
			SourceConcurrency: 4,
			RespectRobotsTxt:  true,
			SitemapMaxDepth:   4,
		},
		Fetcher: FetcherConfig{
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
			AcceptLanguage:  "pl-PL,pl;q=0.9,en-US;q=0.8,en;q=0.7",
			Timeout:         20 * time.Second,
			RobotsTimeout:   15 * time.Second,
			PolitenessDelay: 250 * time.Millisecond,
			MaxRetries:      1,
			RetryDelay:      2 * time.Second,
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    100,
		},
		Render: RenderConfig{
			Enabled:      true,
			Headless:     true,
			Stealth:      true,
			Timeout:      20 * time.Second,
			WaitSelector: `a[href*="/news/"]`,
			SelectorWait: 10 * time.Second,
		},
		Sources: DefaultSources(),
		AI: AIConfig{
			Enabled:       true,
			Provider:      "gemini",
			Model:         "gemini-2.5-flash",
			Timeout:       60 * time.Second,
			Concurrency:   2,
			MaxInputChars: 12000,
		},
		Cache: CacheConfig{
			Addr:   "localhost:6379",
			TTL:    7 * 24 * time.Hour,
			Prefix: "newsgoat:enrich:",
		},
		Storage: StorageConfig{
			Type:       "json",
			OutputPath: "./output",
			Mongo: MongoConfig{
				URI:        "mongodb://localhost:27017",
				Database:   "newsgoat",
				Collection: "news",
			},
		},
		Schedule: ScheduleConfig{
			Cron: "0 7 * * *",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

// EnabledSources returns the sources that are not disabled, optionally
// restricted to the given names.
func (c *Config) EnabledSources(names ...string) []SourceConfig {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []SourceConfig
	for _, s := range c.Sources {
		if s.Disabled {
			continue
		}
		if len(want) > 0 && !want[s.Name] {
			continue
		}
		out = append(out, s)
	}
	return out
}
