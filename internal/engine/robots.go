package engine

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"

	"github.com/IshaanNene/NewsGoat/internal/fetcher"
	"github.com/IshaanNene/NewsGoat/internal/types"
)

// robotsAgent is the user-agent token matched in robots.txt groups.
const robotsAgent = "newsgoat"

// maxCrawlDelay caps a robots.txt Crawl-delay so one host cannot stall a run.
const maxCrawlDelay = 10 * time.Second

// fallbackSitemapPaths are probed when robots.txt lists no sitemaps.
var fallbackSitemapPaths = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/sitemap-index.xml",
	"/sitemap-news.xml",
	"/sitemap_news.xml",
	"/news/sitemap.xml",
	"/pl/sitemap.xml",
}

// RobotsManager fetches and caches robots.txt per origin. It answers
// sitemap discovery and, when enforcement is on, path permission checks
// and Crawl-delay propagation to the fetcher.
type RobotsManager struct {
	fetcher fetcher.Fetcher
	enforce bool
	timeout time.Duration
	logger  *slog.Logger

	mu    sync.RWMutex
	cache map[string]*robotstxt.RobotsData
	group singleflight.Group
}

// NewRobotsManager creates a RobotsManager. enforce controls IsAllowed and
// Crawl-delay; sitemap discovery always reads robots.txt.
func NewRobotsManager(f fetcher.Fetcher, enforce bool, timeout time.Duration, logger *slog.Logger) *RobotsManager {
	return &RobotsManager{
		fetcher: f,
		enforce: enforce,
		timeout: timeout,
		logger:  logger.With("component", "robots"),
		cache:   make(map[string]*robotstxt.RobotsData),
	}
}

// IsAllowed checks if a URL is allowed by its origin's robots.txt.
func (rm *RobotsManager) IsAllowed(ctx context.Context, rawURL string) bool {
	if !rm.enforce {
		return true
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}

	data := rm.get(ctx, u)
	if data == nil {
		return true
	}
	return data.TestAgent(u.RequestURI(), robotsAgent)
}

// Sitemaps returns the Sitemap: directives for base's origin, or the
// fallback path list when there are none.
func (rm *RobotsManager) Sitemaps(ctx context.Context, base *url.URL) []string {
	if data := rm.get(ctx, base); data != nil && len(data.Sitemaps) > 0 {
		return data.Sitemaps
	}

	origin := base.Scheme + "://" + base.Host
	out := make([]string, 0, len(fallbackSitemapPaths))
	for _, p := range fallbackSitemapPaths {
		out = append(out, origin+p)
	}
	return out
}

// get returns cached rules, fetching robots.txt once per origin even under
// concurrent callers. A failed fetch is cached as nil.
func (rm *RobotsManager) get(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	origin := u.Scheme + "://" + u.Host

	rm.mu.RLock()
	data, ok := rm.cache[origin]
	rm.mu.RUnlock()
	if ok {
		return data
	}

	v, _, _ := rm.group.Do(origin, func() (any, error) {
		data := rm.fetch(ctx, origin)
		if data != nil {
			rm.applyCrawlDelay(u.Hostname(), data)
		}
		rm.mu.Lock()
		rm.cache[origin] = data
		rm.mu.Unlock()
		return data, nil
	})
	return v.(*robotstxt.RobotsData)
}

func (rm *RobotsManager) fetch(ctx context.Context, origin string) *robotstxt.RobotsData {
	req, err := types.NewRequest(origin + "/robots.txt")
	if err != nil {
		return nil
	}
	req.Tag = types.TagRobots
	req.Timeout = rm.timeout

	resp, err := rm.fetcher.Fetch(ctx, req)
	if err != nil {
		rm.logger.Debug("robots.txt unavailable", "origin", origin, "error", err)
		return nil
	}

	data, err := robotstxt.FromBytes(resp.Body)
	if err != nil {
		rm.logger.Debug("robots.txt unparseable", "origin", origin, "error", err)
		return nil
	}
	return data
}

// applyCrawlDelay raises the fetcher's per-host gap to the group's
// Crawl-delay, capped at maxCrawlDelay.
func (rm *RobotsManager) applyCrawlDelay(host string, data *robotstxt.RobotsData) {
	if !rm.enforce {
		return
	}
	d, ok := rm.fetcher.(fetcher.HostDelayer)
	if !ok {
		return
	}
	group := data.FindGroup(robotsAgent)
	if group == nil || group.CrawlDelay <= 0 {
		return
	}
	delay := min(group.CrawlDelay, maxCrawlDelay)
	d.RaiseHostDelay(host, delay)
	rm.logger.Debug("crawl-delay applied", "host", host, "delay", delay)
}
