// Package newsgoat wires the crawl engine, enrichment and storage into a
// single entry point for embedding NewsGoat as a library.
//
// Example usage:
//
//	cfg, _ := config.Load("")
//	c, err := newsgoat.New(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	report, err := c.Run(ctx)
package newsgoat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/IshaanNene/NewsGoat/internal/ai"
	"github.com/IshaanNene/NewsGoat/internal/config"
	"github.com/IshaanNene/NewsGoat/internal/engine"
	"github.com/IshaanNene/NewsGoat/internal/fetcher"
	"github.com/IshaanNene/NewsGoat/internal/observability"
	"github.com/IshaanNene/NewsGoat/internal/storage"
	"github.com/IshaanNene/NewsGoat/internal/types"
)

// Crawler runs crawl, enrichment and storage phases against one config.
type Crawler struct {
	cfg      *config.Config
	fetcher  fetcher.Fetcher
	renderer fetcher.Renderer
	engine   *engine.Engine
	metrics  *observability.Metrics
	cache    *storage.RedisCache
	gen      ai.Generator
	logger   *slog.Logger
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithFetcher replaces the HTTP fetcher.
func WithFetcher(f fetcher.Fetcher) Option {
	return func(c *Crawler) { c.fetcher = f }
}

// WithRenderer replaces the headless-browser renderer.
func WithRenderer(r fetcher.Renderer) Option {
	return func(c *Crawler) { c.renderer = r }
}

// WithGenerator replaces the LLM client used for enrichment.
func WithGenerator(g ai.Generator) Option {
	return func(c *Crawler) { c.gen = g }
}

// WithMetrics shares m with the caller, e.g. for a metrics endpoint.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Crawler) { c.metrics = m }
}

// New validates cfg and builds a Crawler. The renderer is created only
// when render.enabled is set; the Redis cache only when cache.enabled is
// set and reachable.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Crawler, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	c := &Crawler{
		cfg:    cfg,
		logger: logger.With("component", "newsgoat"),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.metrics == nil {
		c.metrics = observability.NewMetrics(logger)
	}
	if c.fetcher == nil {
		c.fetcher = fetcher.NewHTTPFetcher(&cfg.Fetcher, logger)
	}
	if c.renderer == nil && cfg.Render.Enabled {
		c.renderer = fetcher.NewBrowserRenderer(cfg, logger)
	}

	engineOpts := []engine.Option{engine.WithMetrics(c.metrics)}
	if c.renderer != nil {
		engineOpts = append(engineOpts, engine.WithRenderer(c.renderer))
	}
	eng, err := engine.New(cfg, c.fetcher, logger, engineOpts...)
	if err != nil {
		return nil, err
	}
	c.engine = eng

	if cfg.AI.Enabled && cfg.Cache.Enabled {
		cache, err := storage.NewRedisCache(context.Background(), &cfg.Cache, logger)
		if err != nil {
			c.logger.Warn("enrichment cache unavailable, continuing without it", "error", err)
		} else {
			c.cache = cache
		}
	}
	return c, nil
}

// Metrics returns the shared counters.
func (c *Crawler) Metrics() *observability.Metrics {
	return c.metrics
}

// Crawl runs every enabled source, or only the named ones.
func (c *Crawler) Crawl(ctx context.Context, sourceNames ...string) (*engine.RunResult, error) {
	sources := c.cfg.EnabledSources(sourceNames...)
	if len(sources) == 0 {
		if len(sourceNames) > 0 {
			return nil, &types.ConfigError{Key: "sources", Err: fmt.Errorf("no enabled source named %s", strings.Join(sourceNames, ", "))}
		}
		return nil, &types.ConfigError{Key: "sources", Err: errors.New("no enabled sources")}
	}
	return c.engine.Run(ctx, sources), nil
}

// Enrich rewrites titles and bodies of items not yet enriched. A missing
// credential is returned as a *types.ConfigError before any item is touched.
func (c *Crawler) Enrich(ctx context.Context, items []*types.NewsItem) (ai.EnrichStats, error) {
	opts := []ai.EnricherOption{ai.WithEnrichMetrics(c.metrics)}
	if c.cache != nil {
		opts = append(opts, ai.WithCache(c.cache))
	}

	var enricher *ai.Enricher
	if c.gen != nil {
		opts = append(opts, ai.WithConcurrency(c.cfg.AI.Concurrency), ai.WithMaxInputChars(c.cfg.AI.MaxInputChars))
		enricher = ai.NewEnricher(c.gen, c.cfg.AI.Model, c.logger, opts...)
	} else {
		var err error
		enricher, err = ai.NewEnricherFromConfig(&c.cfg.AI, c.logger, opts...)
		if err != nil {
			return ai.EnrichStats{}, err
		}
	}
	return enricher.Enrich(ctx, items)
}

// Store writes items to the configured file backend and, when enabled,
// MongoDB. It returns the file path written, if any.
func (c *Crawler) Store(window types.TimeWindow, items []*types.NewsItem) (string, error) {
	file, err := storage.NewFileStorage(c.cfg.Storage.Type, c.cfg.Storage.OutputPath, window, c.logger)
	if err != nil {
		return "", err
	}
	backends := []storage.Storage{file}

	if c.cfg.Storage.Mongo.Enabled {
		m := c.cfg.Storage.Mongo
		mongo, err := storage.NewMongoStorage(m.URI, m.Database, m.Collection, c.logger)
		if err != nil {
			c.logger.Error("mongodb unavailable, writing files only", "error", err)
		} else {
			backends = append(backends, mongo)
		}
	}

	sink := storage.NewMultiStorage(backends, c.logger)
	storeErr := sink.Store(items)
	closeErr := sink.Close()
	if err := errors.Join(storeErr, closeErr); err != nil {
		return "", err
	}
	c.metrics.ItemsStored.Add(int64(len(items)))

	path := ""
	if c.cfg.Storage.Type != "none" {
		path = filepath.Join(c.cfg.Storage.OutputPath, storage.OutputFileName(window, c.cfg.Storage.Type))
	}
	return path, nil
}

// Report is the outcome of a full Run.
type Report struct {
	Result     *engine.RunResult
	Enrich     ai.EnrichStats
	EnrichErr  error
	OutputPath string
}

// Run crawls, enriches when ai.enabled is set, and stores the result.
// Source and enrichment failures are recorded in the report; only storage
// failures and cancellation are returned.
func (c *Crawler) Run(ctx context.Context, sourceNames ...string) (*Report, error) {
	result, err := c.Crawl(ctx, sourceNames...)
	if err != nil {
		return nil, err
	}
	report := &Report{Result: result}

	if c.cfg.AI.Enabled && len(result.Items) > 0 && ctx.Err() == nil {
		report.Enrich, report.EnrichErr = c.Enrich(ctx, result.Items)
		var cfgErr *types.ConfigError
		if errors.As(report.EnrichErr, &cfgErr) {
			c.logger.Error("enrichment skipped", "error", report.EnrichErr)
		}
	}

	path, err := c.Store(result.Window, result.Items)
	if err != nil {
		return report, err
	}
	report.OutputPath = path
	return report, ctx.Err()
}

// Close releases the fetcher, renderer and cache.
func (c *Crawler) Close() error {
	var errs []error
	if c.renderer != nil {
		errs = append(errs, c.renderer.Close())
	}
	if c.fetcher != nil {
		errs = append(errs, c.fetcher.Close())
	}
	if c.cache != nil {
		errs = append(errs, c.cache.Close())
	}
	return errors.Join(errs...)
}
