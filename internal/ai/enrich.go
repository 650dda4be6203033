package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/IshaanNene/NewsGoat/internal/config"
	"github.com/IshaanNene/NewsGoat/internal/observability"
	"github.com/IshaanNene/NewsGoat/internal/types"
)

// Cache stores enrichment results across runs, keyed by CacheKey.
type Cache interface {
	Get(ctx context.Context, key string) (Enrichment, bool, error)
	Set(ctx context.Context, key string, e Enrichment) error
}

// CacheKey identifies an item's enrichment for a given model.
func CacheKey(model string, item *types.NewsItem) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(item.Link))
	h.Write([]byte{0})
	h.Write([]byte(item.Title))
	return hex.EncodeToString(h.Sum(nil))
}

// EnrichStats summarizes one enrichment pass.
type EnrichStats struct {
	Enriched int
	Cached   int
	Skipped  int
	Failed   int
}

// Enricher rewrites item titles and bodies through a Generator.
type Enricher struct {
	gen         Generator
	cache       Cache
	model       string
	maxChars    int
	concurrency int
	retryDelay  time.Duration
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// EnricherOption configures an Enricher.
type EnricherOption func(*Enricher)

// WithCache consults c before calling the generator and stores fresh results in it.
func WithCache(c Cache) EnricherOption {
	return func(e *Enricher) { e.cache = c }
}

// WithEnrichMetrics records enrichment counters into m.
func WithEnrichMetrics(m *observability.Metrics) EnricherOption {
	return func(e *Enricher) { e.metrics = m }
}

// WithConcurrency bounds the number of in-flight generator calls.
func WithConcurrency(n int) EnricherOption {
	return func(e *Enricher) { e.concurrency = n }
}

// WithMaxInputChars caps the body length sent to the model.
func WithMaxInputChars(n int) EnricherOption {
	return func(e *Enricher) { e.maxChars = n }
}

// WithRetryDelay sets the pause before the single retry of a rate-limited
// or server-failed generator call.
func WithRetryDelay(d time.Duration) EnricherOption {
	return func(e *Enricher) { e.retryDelay = d }
}

// NewEnricher creates an Enricher over gen. model namespaces cache keys.
func NewEnricher(gen Generator, model string, logger *slog.Logger, opts ...EnricherOption) *Enricher {
	e := &Enricher{
		gen:         gen,
		model:       model,
		maxChars:    DefaultMaxInputChars,
		concurrency: 1,
		retryDelay:  defaultRetryDelay,
		logger:      logger.With("component", "enricher"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = observability.NewMetrics(logger)
	}
	return e
}

// NewEnricherFromConfig validates cfg and builds an Enricher backed by an
// LLMClient. A missing credential yields a *types.ConfigError.
func NewEnricherFromConfig(cfg *config.AIConfig, logger *slog.Logger, opts ...EnricherOption) (*Enricher, error) {
	if err := CheckConfig(cfg); err != nil {
		return nil, err
	}
	client := NewLLMClient(cfg, logger)
	base := []EnricherOption{
		WithConcurrency(cfg.Concurrency),
		WithMaxInputChars(cfg.MaxInputChars),
	}
	return NewEnricher(client, cfg.Model, logger, append(base, opts...)...), nil
}

// Enrich fills EnrichedTitle and EnrichedBody on items that lack them.
// Already-enriched items are left untouched and cost no generator call.
// Per-item failures are logged and counted; the returned error is only
// the context's.
func (e *Enricher) Enrich(ctx context.Context, items []*types.NewsItem) (EnrichStats, error) {
	var enriched, cached, skipped, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(e.concurrency, 1))
	for _, item := range items {
		if item.IsEnriched() {
			skipped.Add(1)
			e.metrics.EnrichSkipped.Add(1)
			continue
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			fromCache, err := e.enrichOne(gctx, item)
			switch {
			case err != nil:
				failed.Add(1)
				e.metrics.EnrichFailed.Add(1)
				e.logger.Error("enrichment failed", "link", item.Link, "error", err)
			case fromCache:
				cached.Add(1)
				e.metrics.EnrichCached.Add(1)
			default:
				enriched.Add(1)
				e.metrics.EnrichOK.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	stats := EnrichStats{
		Enriched: int(enriched.Load()),
		Cached:   int(cached.Load()),
		Skipped:  int(skipped.Load()),
		Failed:   int(failed.Load()),
	}
	e.logger.Info("enrichment finished",
		"enriched", stats.Enriched,
		"cached", stats.Cached,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
	)
	return stats, ctx.Err()
}

func (e *Enricher) enrichOne(ctx context.Context, item *types.NewsItem) (bool, error) {
	key := CacheKey(e.model, item)
	if e.cache != nil {
		hit, ok, err := e.cache.Get(ctx, key)
		if err != nil {
			e.logger.Warn("enrichment cache read failed", "link", item.Link, "error", err)
		} else if ok {
			item.SetEnrichment(hit.Title, hit.Body)
			e.logger.Debug("enrichment served from cache", "link", item.Link)
			return true, nil
		}
	}

	start := time.Now()
	e.logger.Info("enrichment started", "link", item.Link)

	reply, err := e.generate(ctx, BuildPrompt(item, e.maxChars))
	if err != nil {
		return false, err
	}
	result, err := ParseEnrichment(reply)
	if err != nil {
		return false, err
	}
	item.SetEnrichment(result.Title, result.Body)
	e.logger.Info("enrichment done", "link", item.Link, "duration", time.Since(start))

	if e.cache != nil {
		if err := e.cache.Set(ctx, key, result); err != nil {
			e.logger.Warn("enrichment cache write failed", "link", item.Link, "error", err)
		}
	}
	return false, nil
}

const defaultRetryDelay = 2 * time.Second

// generate calls the generator, retrying once when the failure is a 429 or
// 5xx. A Retry-After from the service overrides the configured delay.
func (e *Enricher) generate(ctx context.Context, prompt string) (string, error) {
	reply, err := e.gen.Generate(ctx, prompt)
	var fe *types.FetchError
	if err == nil || !errors.As(err, &fe) || !fe.IsRetryable() {
		return reply, err
	}

	delay := e.retryDelay
	if fe.RetryAfter > 0 {
		delay = fe.RetryAfter
	}
	e.logger.Warn("generator call failed, retrying", "status", fe.StatusCode, "delay", delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
	}
	return e.gen.Generate(ctx, prompt)
}
