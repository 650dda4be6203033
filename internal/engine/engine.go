package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/IshaanNene/NewsGoat/internal/config"
	"github.com/IshaanNene/NewsGoat/internal/fetcher"
	"github.com/IshaanNene/NewsGoat/internal/observability"
	"github.com/IshaanNene/NewsGoat/internal/parser"
	"github.com/IshaanNene/NewsGoat/internal/pipeline"
	"github.com/IshaanNene/NewsGoat/internal/types"
)

// Engine orchestrates crawling of listing, sitemap and feed sources.
type Engine struct {
	cfg       *config.Config
	fetcher   fetcher.Fetcher
	renderer  fetcher.Renderer
	registry  *parser.Registry
	extractor *parser.Extractor
	robots    *RobotsManager
	sitemaps  *SitemapIngestor
	feeds     *FeedIngestor
	metrics   *observability.Metrics
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRenderer enables the script-rendering fallback for empty listings.
func WithRenderer(r fetcher.Renderer) Option {
	return func(e *Engine) { e.renderer = r }
}

// WithMetrics records counters into m.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the clock that anchors the time window.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRegistry replaces the extraction rule registry.
func WithRegistry(r *parser.Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// New creates an Engine that fetches through f.
func New(cfg *config.Config, f fetcher.Fetcher, logger *slog.Logger, opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:     cfg,
		fetcher: f,
		now:     time.Now,
		logger:  logger.With("component", "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.registry == nil {
		reg, err := parser.NewRegistryFromConfig(&cfg.Extraction)
		if err != nil {
			return nil, err
		}
		e.registry = reg
	}
	if e.metrics == nil {
		e.metrics = observability.NewMetrics(logger)
	}

	e.extractor = parser.NewExtractor(e.registry, logger)
	e.robots = NewRobotsManager(f, cfg.Crawl.RespectRobotsTxt, cfg.Fetcher.RobotsTimeout, logger)
	e.sitemaps = NewSitemapIngestor(f, cfg.Crawl.SitemapMaxDepth, logger)
	e.feeds = NewFeedIngestor(f, logger)
	return e, nil
}

// Metrics returns the engine's counters.
func (e *Engine) Metrics() *observability.Metrics {
	return e.metrics
}

// SourceReport summarizes one source's contribution to a run.
type SourceReport struct {
	Name       string
	Type       string
	Candidates int
	Accepted   int
	Duration   time.Duration
	Err        error
}

// RunResult is the outcome of a crawl run. Items is always populated with
// whatever was gathered, even when some sources failed.
type RunResult struct {
	RunID      string
	Window     types.TimeWindow
	Items      []*types.NewsItem
	Reports    []SourceReport
	StartedAt  time.Time
	FinishedAt time.Time
}

// Failed returns the reports of sources that failed.
func (r *RunResult) Failed() []SourceReport {
	var out []SourceReport
	for _, rep := range r.Reports {
		if rep.Err != nil {
			out = append(out, rep)
		}
	}
	return out
}

// Run crawls sources concurrently and returns the accepted items. Source
// failures are logged and reported, never returned.
func (e *Engine) Run(ctx context.Context, sources []config.SourceConfig) *RunResult {
	result := &RunResult{
		RunID:     uuid.NewString(),
		Window:    types.NewTimeWindow(e.now(), e.cfg.Crawl.WindowDays),
		Reports:   make([]SourceReport, len(sources)),
		StartedAt: time.Now(),
	}
	logger := e.logger.With("run_id", result.RunID)

	pipe := pipeline.NewNewsPipeline(result.Window, e.cfg.Crawl.MinBodyLength, logger)
	pipe.OnDrop(func(string, *types.NewsItem) { e.metrics.ItemsDropped.Add(1) })

	run := &crawlRun{
		Engine:  e,
		window:  result.Window,
		pipe:    pipe,
		visited: NewDeduplicator(256),
		logger:  logger,
	}
	collector := NewCollector()

	logger.Info("crawl started", "sources", len(sources), "window", result.Window.String())

	var g errgroup.Group
	g.SetLimit(max(e.cfg.Crawl.SourceConcurrency, 1))
	for i, src := range sources {
		g.Go(func() error {
			result.Reports[i] = run.crawlSource(ctx, src, collector)
			return nil
		})
	}
	_ = g.Wait()

	result.Items = collector.Items()
	result.FinishedAt = time.Now()
	logger.Info("crawl finished",
		"items", len(result.Items),
		"failed_sources", len(result.Failed()),
		"duration", result.FinishedAt.Sub(result.StartedAt),
	)
	return result
}

// crawlRun holds per-run state shared by all sources.
type crawlRun struct {
	*Engine
	window  types.TimeWindow
	pipe    *pipeline.Pipeline
	visited *Deduplicator
	logger  *slog.Logger
}

func (r *crawlRun) crawlSource(ctx context.Context, src config.SourceConfig, collector *Collector) SourceReport {
	start := time.Now()
	report := SourceReport{Name: src.Name, Type: src.Type}
	r.metrics.SourcesTotal.Add(1)

	if err := ctx.Err(); err != nil {
		report.Err = err
		return report
	}

	var (
		items      []*types.NewsItem
		candidates int
		err        error
	)
	switch src.Type {
	case config.SourceListing:
		items, candidates, err = r.crawlListing(ctx, src)
	case config.SourceSitemap:
		items, candidates, err = r.crawlSitemap(ctx, src)
	case config.SourceFeed:
		items, candidates, err = r.crawlFeed(ctx, src)
	default:
		err = fmt.Errorf("unknown source type %q", src.Type)
	}

	collector.Append(items...)
	report.Candidates = candidates
	report.Accepted = len(items)
	report.Duration = time.Since(start)

	if err != nil {
		report.Err = &types.SourceError{Source: src.Name, Err: err}
		r.metrics.SourcesFailed.Add(1)
		r.logger.Error("source failed", "source", src.Name, "url", src.URL, "error", err)
		return report
	}

	r.logger.Info("source complete",
		"source", src.Name,
		"type", src.Type,
		"candidates", candidates,
		"accepted", len(items),
		"duration", report.Duration,
	)
	return report
}

// crawlListing discovers article links on a listing page and processes them.
// A listing with no candidates is re-read through the renderer when one is set.
func (r *crawlRun) crawlListing(ctx context.Context, src config.SourceConfig) ([]*types.NewsItem, int, error) {
	filter, err := r.listingFilter(src)
	if err != nil {
		return nil, 0, err
	}

	resp, err := r.fetch(ctx, src.URL, types.TagListing, src.Name)
	if err != nil {
		r.metrics.FetchErrors.Add(1)
		return nil, 0, err
	}
	doc, err := resp.Document()
	if err != nil {
		return nil, 0, err
	}

	base := resp.FinalURL
	if base == "" {
		base = src.URL
	}
	links := parser.DiscoverLinks(base, doc, filter)

	if len(links) == 0 && r.renderer != nil {
		r.metrics.RenderFallbacks.Add(1)
		r.logger.Info("no links found, rendering listing", "source", src.Name, "url", src.URL)
		if rendered, err := r.renderListing(ctx, src.URL); err != nil {
			r.logger.Warn("render fallback failed", "source", src.Name, "error", err)
		} else {
			links = parser.DiscoverLinks(src.URL, rendered, filter)
		}
	}

	r.metrics.LinksDiscovered.Add(int64(len(links)))
	r.logger.Debug("links discovered", "source", src.Name, "count", len(links))

	return r.processCandidates(ctx, src.Name, links), len(links), nil
}

func (r *crawlRun) renderListing(ctx context.Context, rawURL string) (*goquery.Document, error) {
	html, err := r.renderer.Render(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

func (r *crawlRun) listingFilter(src config.SourceConfig) (parser.LinkFilter, error) {
	f := parser.LinkFilter{
		AllowSubstrings: src.AllowSubstrings,
		MaxLinks:        src.MaxLinks,
	}
	if f.MaxLinks <= 0 {
		f.MaxLinks = r.cfg.Crawl.MaxLinks
	}
	if src.AllowRegex != "" {
		re, err := regexp.Compile(src.AllowRegex)
		if err != nil {
			return f, fmt.Errorf("allow_regex: %w", err)
		}
		f.AllowRegex = re
	}
	return f, nil
}

// crawlSitemap collects candidates from the origin's sitemaps. Entries with
// a lastmod are window-filtered before fetching; undated entries are judged
// after fetching by the date cascade. When nothing is accepted, the
// configured fallback listing is crawled instead.
func (r *crawlRun) crawlSitemap(ctx context.Context, src config.SourceConfig) ([]*types.NewsItem, int, error) {
	base, err := url.Parse(src.URL)
	if err != nil {
		return nil, 0, err
	}

	var entries []SitemapEntry
	for _, sm := range r.robots.Sitemaps(ctx, base) {
		if ctx.Err() != nil {
			break
		}
		entries = append(entries, r.sitemaps.Expand(ctx, sm)...)
	}
	r.metrics.SitemapURLs.Add(int64(len(entries)))

	entries = filterSitemapEntries(entries, src.PathContains, src.LangSuffix)
	sortByLastModDesc(entries)

	limit := src.MaxLinks
	if limit <= 0 {
		limit = r.cfg.Crawl.MaxLinks
	}
	var links []string
	for _, entry := range entries {
		if entry.HasLastMod && !r.window.Contains(entry.LastMod) {
			continue
		}
		links = append(links, entry.Loc)
		if len(links) >= limit {
			break
		}
	}

	r.logger.Debug("sitemap candidates", "source", src.Name, "entries", len(entries), "candidates", len(links))
	items := r.processCandidates(ctx, src.Name, links)

	if len(items) == 0 && src.FallbackListing != "" && ctx.Err() == nil {
		r.logger.Info("sitemap yielded no items, crawling fallback listing", "source", src.Name, "listing", src.FallbackListing)
		fallback := config.SourceConfig{
			Name:            src.Name,
			Type:            config.SourceListing,
			URL:             src.FallbackListing,
			AllowSubstrings: src.FallbackAllow,
			MaxLinks:        src.MaxLinks,
		}
		more, n, err := r.crawlListing(ctx, fallback)
		return more, len(links) + n, err
	}
	return items, len(links), nil
}

func (r *crawlRun) crawlFeed(ctx context.Context, src config.SourceConfig) ([]*types.NewsItem, int, error) {
	items, entries, err := r.feeds.Ingest(ctx, src)
	r.metrics.FeedEntries.Add(int64(entries))
	if err != nil {
		return nil, entries, err
	}
	return r.accept(items), entries, nil
}

// processCandidates fetches links with bounded concurrency and runs the
// resulting items through the acceptance pipeline in discovery order.
func (r *crawlRun) processCandidates(ctx context.Context, source string, links []string) []*types.NewsItem {
	results := make([]*types.NewsItem, len(links))

	var g errgroup.Group
	g.SetLimit(max(r.cfg.Crawl.Concurrency, 1))
	for i, link := range links {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			item, err := r.processArticle(ctx, source, link)
			switch {
			case err == nil:
			case IsSkip(err):
				r.metrics.ItemsRejected.Add(1)
				r.logger.Debug("candidate skipped", "source", source, "url", link, "reason", err)
				return nil
			default:
				r.metrics.FetchErrors.Add(1)
				r.logger.Debug("candidate failed", "source", source, "url", link, "error", err)
				return nil
			}
			results[i] = item
			return nil
		})
	}
	_ = g.Wait()

	return r.accept(results)
}

func (r *crawlRun) accept(items []*types.NewsItem) []*types.NewsItem {
	var out []*types.NewsItem
	for _, item := range items {
		if item == nil {
			continue
		}
		kept, err := r.pipe.Process(item)
		if err != nil {
			r.logger.Warn("pipeline error", "link", item.Link, "error", err)
			continue
		}
		if kept == nil {
			continue
		}
		r.metrics.ItemsAccepted.Add(1)
		r.logger.Info("item accepted", "source", kept.Source, "title", kept.Title, "date", kept.Published)
		out = append(out, kept)
	}
	return out
}

// processArticle fetches one candidate and builds an item from it.
// The returned error names the reason the candidate was skipped.
func (r *crawlRun) processArticle(ctx context.Context, source, link string) (*types.NewsItem, error) {
	if !r.visited.MarkIfNew(link) {
		return nil, types.ErrDuplicate
	}
	if !r.robots.IsAllowed(ctx, link) {
		return nil, types.ErrBlocked
	}

	resp, err := r.fetch(ctx, link, types.TagArticle, source)
	if err != nil {
		return nil, err
	}
	if !resp.IsHTML() {
		return nil, &types.FetchError{URL: link, StatusCode: resp.StatusCode, Err: types.ErrNotHTML}
	}

	doc, err := resp.Document()
	if err != nil {
		return nil, err
	}
	if !parser.IsArticle(doc) {
		return nil, types.ErrNotArticle
	}

	published, ok := parser.ExtractDate(doc)
	if !ok {
		return nil, types.ErrNoDate
	}
	if !r.window.Contains(published) {
		return nil, fmt.Errorf("%w: %s", types.ErrOutsideWindow, published.Format(time.DateOnly))
	}

	title := parser.ExtractTitle(doc)
	body := r.extractor.ExtractBody(doc, link)

	item, err := types.NewNewsItem(title, body, link, published)
	if err != nil {
		return nil, err
	}
	item.Source = source
	return item, nil
}

func (r *crawlRun) fetch(ctx context.Context, rawURL, tag, source string) (*types.Response, error) {
	req, err := types.NewRequest(rawURL)
	if err != nil {
		return nil, err
	}
	req.Tag = tag
	req.Source = source

	resp, err := r.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	r.metrics.PagesFetched.Add(1)
	r.metrics.BytesDownload.Add(int64(len(resp.Body)))
	return resp, nil
}

// IsSkip reports whether err is an expected per-candidate rejection rather
// than a transport or parse failure. Skips count as rejected candidates,
// everything else as fetch errors.
func IsSkip(err error) bool {
	for _, target := range []error{
		types.ErrDuplicate, types.ErrBlocked, types.ErrNotArticle,
		types.ErrNoDate, types.ErrOutsideWindow, types.ErrSingleWordTitle,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
