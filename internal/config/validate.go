package config

import (
	"fmt"
	"net/url"
	"regexp"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Crawl.Concurrency < 1 || cfg.Crawl.Concurrency > 64 {
		return fmt.Errorf("crawl.concurrency must be 1-64, got %d", cfg.Crawl.Concurrency)
	}
	if cfg.Crawl.SourceConcurrency < 1 {
		return fmt.Errorf("crawl.source_concurrency must be >= 1, got %d", cfg.Crawl.SourceConcurrency)
	}
	if cfg.Crawl.MaxLinks < 1 {
		return fmt.Errorf("crawl.max_links must be >= 1, got %d", cfg.Crawl.MaxLinks)
	}
	if cfg.Crawl.MinBodyLength < 0 {
		return fmt.Errorf("crawl.min_body_length must be >= 0")
	}

	if cfg.Fetcher.Timeout <= 0 {
		return fmt.Errorf("fetcher.timeout must be > 0")
	}
	if cfg.Fetcher.PolitenessDelay < 0 {
		return fmt.Errorf("fetcher.politeness_delay must be >= 0")
	}
	if cfg.Fetcher.MaxRetries < 0 {
		return fmt.Errorf("fetcher.max_retries must be >= 0, got %d", cfg.Fetcher.MaxRetries)
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}

	if cfg.Render.Enabled && cfg.Render.Timeout <= 0 {
		return fmt.Errorf("render.timeout must be > 0")
	}

	for i, r := range cfg.Extraction.Rules {
		if r.Domain == "" {
			return fmt.Errorf("extraction.rules[%d].domain is required", i)
		}
		for j, c := range r.Candidates {
			if c.Tag == "" && c.XPath == "" {
				return fmt.Errorf("extraction.rules[%d].candidates[%d] needs tag or xpath", i, j)
			}
			if c.Class != "" {
				if _, err := regexp.Compile(c.Class); err != nil {
					return fmt.Errorf("extraction.rules[%d].candidates[%d].class: %w", i, j, err)
				}
			}
		}
	}

	if err := validateSources(cfg.Sources); err != nil {
		return err
	}

	validProviders := map[string]bool{
		"gemini": true, "openai": true, "ollama": true, "custom": true,
	}
	if cfg.AI.Enabled {
		if !validProviders[cfg.AI.Provider] {
			return fmt.Errorf("ai.provider %q is not supported (valid: gemini, openai, ollama, custom)", cfg.AI.Provider)
		}
		if cfg.AI.Concurrency < 1 {
			return fmt.Errorf("ai.concurrency must be >= 1, got %d", cfg.AI.Concurrency)
		}
		if cfg.AI.Provider == "custom" && cfg.AI.Endpoint == "" {
			return fmt.Errorf("ai.endpoint is required for the custom provider")
		}
	}

	validStorageTypes := map[string]bool{
		"json": true, "jsonl": true, "csv": true, "none": true,
	}
	if !validStorageTypes[cfg.Storage.Type] {
		return fmt.Errorf("storage.type %q is not supported (valid: json, jsonl, csv, none)", cfg.Storage.Type)
	}
	if cfg.Storage.Mongo.Enabled && cfg.Storage.Mongo.URI == "" {
		return fmt.Errorf("storage.mongo.uri is required when mongo is enabled")
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

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

func validateSources(sources []SourceConfig) error {
	seen := make(map[string]bool, len(sources))
	for i, s := range sources {
		if s.Name == "" {
			return fmt.Errorf("sources[%d].name is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate source name %q", s.Name)
		}
		seen[s.Name] = true

		switch s.Type {
		case SourceListing, SourceSitemap, SourceFeed:
		default:
			return fmt.Errorf("source %s: type must be listing, sitemap or feed, got %q", s.Name, s.Type)
		}
		if err := ValidateURL(s.URL); err != nil {
			return fmt.Errorf("source %s: %w", s.Name, err)
		}
		if s.AllowRegex != "" {
			if _, err := regexp.Compile(s.AllowRegex); err != nil {
				return fmt.Errorf("source %s: invalid allow_regex: %w", s.Name, err)
			}
		}
		if s.FallbackListing != "" {
			if err := ValidateURL(s.FallbackListing); err != nil {
				return fmt.Errorf("source %s: fallback_listing: %w", s.Name, err)
			}
		}
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
