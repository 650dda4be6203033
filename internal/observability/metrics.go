package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters for crawl and enrichment runs.
type Metrics struct {
	// Crawl metrics
	SourcesTotal    atomic.Int64
	SourcesFailed   atomic.Int64
	LinksDiscovered atomic.Int64
	SitemapURLs     atomic.Int64
	FeedEntries     atomic.Int64
	RenderFallbacks atomic.Int64

	// Fetch metrics
	PagesFetched  atomic.Int64
	FetchErrors   atomic.Int64
	BytesDownload atomic.Int64

	// Item metrics
	ItemsRejected atomic.Int64
	ItemsDropped  atomic.Int64
	ItemsAccepted atomic.Int64
	ItemsStored   atomic.Int64

	// Enrichment metrics
	EnrichOK      atomic.Int64
	EnrichFailed  atomic.Int64
	EnrichSkipped atomic.Int64
	EnrichCached  atomic.Int64

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

type counter struct {
	name  string
	help  string
	value *atomic.Int64
}

func (m *Metrics) counters() []counter {
	return []counter{
		{"sources_total", "Crawl sources processed", &m.SourcesTotal},
		{"sources_failed_total", "Crawl sources that failed", &m.SourcesFailed},
		{"links_discovered_total", "Article candidate links discovered on listings", &m.LinksDiscovered},
		{"sitemap_urls_total", "URLs collected from sitemaps", &m.SitemapURLs},
		{"feed_entries_total", "Feed entries read", &m.FeedEntries},
		{"render_fallbacks_total", "Listings re-read through the renderer", &m.RenderFallbacks},
		{"pages_fetched_total", "Pages fetched successfully", &m.PagesFetched},
		{"fetch_errors_total", "Fetches that failed", &m.FetchErrors},
		{"bytes_downloaded_total", "Response bytes downloaded", &m.BytesDownload},
		{"items_rejected_total", "Candidates rejected before item creation", &m.ItemsRejected},
		{"items_dropped_total", "Items dropped by the acceptance pipeline", &m.ItemsDropped},
		{"items_accepted_total", "Items accepted into the result", &m.ItemsAccepted},
		{"items_stored_total", "Items written to storage", &m.ItemsStored},
		{"enrich_ok_total", "Items enriched", &m.EnrichOK},
		{"enrich_failed_total", "Enrichment calls that failed or were unparseable", &m.EnrichFailed},
		{"enrich_skipped_total", "Items skipped because they were already enriched", &m.EnrichSkipped},
		{"enrich_cached_total", "Items enriched from the cache", &m.EnrichCached},
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	for _, c := range m.counters() {
		name := "newsgoat_" + c.name
		fmt.Fprintf(w, "# HELP %s %s\n", name, c.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", name)
		fmt.Fprintf(w, "%s %d\n", name, c.value.Load())
	}
}

// StartServer starts the metrics HTTP server in the background. Shut it
// down with the returned server.
func (m *Metrics) StartServer(port int, path string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.logger.Info("metrics server starting", "addr", srv.Addr, "path", path)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return srv
}

// Shutdown stops a server returned by StartServer.
func Shutdown(ctx context.Context, srv *http.Server) error {
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Snapshot returns all counters keyed by name without the _total suffix.
func (m *Metrics) Snapshot() map[string]int64 {
	out := make(map[string]int64)
	for _, c := range m.counters() {
		out[strings.TrimSuffix(c.name, "_total")] = c.value.Load()
	}
	return out
}
