package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/IshaanNene/NewsGoat/internal/types"
)

// legacyEnv maps config keys to additional environment variable names
// honored for compatibility with existing deployments.
var legacyEnv = map[string][]string{
	"crawl.window_days": {"NEWS_WINDOW_DAYS"},
	"ai.api_key":        {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
}

// Load reads configuration from file, environment, and CLI flags.
// Priority (highest to lowest): CLI flags > env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("NEWSGOAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		envName := "NEWSGOAT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(append([]string{key, envName}, names...)...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("newsgoat")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".newsgoat"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Sources are only replaced when the file defines them.
	if v.IsSet("sources") {
		cfg.Sources = nil
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Crawl.WindowDays = types.ClampWindowDays(cfg.Crawl.WindowDays)
	return cfg, nil
}

// setDefaults registers default values in viper so AutomaticEnv can see them.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("crawl.window_days", cfg.Crawl.WindowDays)
	v.SetDefault("crawl.max_links", cfg.Crawl.MaxLinks)
	v.SetDefault("crawl.min_body_length", cfg.Crawl.MinBodyLength)
	v.SetDefault("crawl.concurrency", cfg.Crawl.Concurrency)
	v.SetDefault("crawl.source_concurrency", cfg.Crawl.SourceConcurrency)
	v.SetDefault("crawl.respect_robots_txt", cfg.Crawl.RespectRobotsTxt)
	v.SetDefault("crawl.sitemap_max_depth", cfg.Crawl.SitemapMaxDepth)

	v.SetDefault("fetcher.user_agent", cfg.Fetcher.UserAgent)
	v.SetDefault("fetcher.accept_language", cfg.Fetcher.AcceptLanguage)
	v.SetDefault("fetcher.timeout", cfg.Fetcher.Timeout)
	v.SetDefault("fetcher.robots_timeout", cfg.Fetcher.RobotsTimeout)
	v.SetDefault("fetcher.politeness_delay", cfg.Fetcher.PolitenessDelay)
	v.SetDefault("fetcher.max_retries", cfg.Fetcher.MaxRetries)
	v.SetDefault("fetcher.retry_delay", cfg.Fetcher.RetryDelay)
	v.SetDefault("fetcher.follow_redirects", cfg.Fetcher.FollowRedirects)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.tls_insecure", cfg.Fetcher.TLSInsecure)
	v.SetDefault("fetcher.idle_conn_timeout", cfg.Fetcher.IdleConnTimeout)
	v.SetDefault("fetcher.max_idle_conns", cfg.Fetcher.MaxIdleConns)

	v.SetDefault("render.enabled", cfg.Render.Enabled)
	v.SetDefault("render.headless", cfg.Render.Headless)
	v.SetDefault("render.stealth", cfg.Render.Stealth)
	v.SetDefault("render.timeout", cfg.Render.Timeout)
	v.SetDefault("render.wait_selector", cfg.Render.WaitSelector)
	v.SetDefault("render.selector_wait", cfg.Render.SelectorWait)
	v.SetDefault("render.browser_bin", cfg.Render.BrowserBin)

	v.SetDefault("ai.enabled", cfg.AI.Enabled)
	v.SetDefault("ai.provider", cfg.AI.Provider)
	v.SetDefault("ai.model", cfg.AI.Model)
	v.SetDefault("ai.endpoint", cfg.AI.Endpoint)
	v.SetDefault("ai.api_key", cfg.AI.APIKey)
	v.SetDefault("ai.timeout", cfg.AI.Timeout)
	v.SetDefault("ai.concurrency", cfg.AI.Concurrency)
	v.SetDefault("ai.max_input_chars", cfg.AI.MaxInputChars)

	v.SetDefault("cache.enabled", cfg.Cache.Enabled)
	v.SetDefault("cache.addr", cfg.Cache.Addr)
	v.SetDefault("cache.password", cfg.Cache.Password)
	v.SetDefault("cache.db", cfg.Cache.DB)
	v.SetDefault("cache.ttl", cfg.Cache.TTL)
	v.SetDefault("cache.prefix", cfg.Cache.Prefix)

	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.output_path", cfg.Storage.OutputPath)
	v.SetDefault("storage.mongo.enabled", cfg.Storage.Mongo.Enabled)
	v.SetDefault("storage.mongo.uri", cfg.Storage.Mongo.URI)
	v.SetDefault("storage.mongo.database", cfg.Storage.Mongo.Database)
	v.SetDefault("storage.mongo.collection", cfg.Storage.Mongo.Collection)

	v.SetDefault("schedule.cron", cfg.Schedule.Cron)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
