package engine

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"

	"github.com/IshaanNene/NewsGoat/internal/fetcher"
	"github.com/IshaanNene/NewsGoat/internal/parser"
	"github.com/IshaanNene/NewsGoat/internal/types"
)

// SitemapEntry is one <url> of a sitemap.
type SitemapEntry struct {
	Loc        string
	LastMod    time.Time
	HasLastMod bool
}

// SitemapIngestor expands sitemaps and sitemap indexes into URL entries.
type SitemapIngestor struct {
	fetcher  fetcher.Fetcher
	maxDepth int
	logger   *slog.Logger
}

// NewSitemapIngestor creates an ingestor that follows index nesting up to maxDepth levels.
func NewSitemapIngestor(f fetcher.Fetcher, maxDepth int, logger *slog.Logger) *SitemapIngestor {
	if maxDepth < 1 {
		maxDepth = 1
	}
	return &SitemapIngestor{
		fetcher:  f,
		maxDepth: maxDepth,
		logger:   logger.With("component", "sitemap"),
	}
}

// Expand fetches sitemapURL and returns the union of its entries and, for
// an index, the entries of every child sitemap. Unreachable or malformed
// sitemaps contribute nothing.
func (s *SitemapIngestor) Expand(ctx context.Context, sitemapURL string) []SitemapEntry {
	var out []SitemapEntry
	s.expand(ctx, sitemapURL, 0, make(map[string]bool), &out)
	return out
}

func (s *SitemapIngestor) expand(ctx context.Context, sitemapURL string, depth int, visited map[string]bool, out *[]SitemapEntry) {
	if visited[sitemapURL] || depth > s.maxDepth || ctx.Err() != nil {
		return
	}
	visited[sitemapURL] = true

	req, err := types.NewRequest(sitemapURL)
	if err != nil {
		return
	}
	req.Tag = types.TagSitemap

	resp, err := s.fetcher.Fetch(ctx, req)
	if err != nil {
		s.logger.Debug("sitemap unavailable", "url", sitemapURL, "error", err)
		return
	}

	children, entries, err := parseSitemap(resp.Body)
	if err != nil {
		s.logger.Debug("sitemap unparseable", "url", sitemapURL, "error", err)
		return
	}

	s.logger.Debug("sitemap read", "url", sitemapURL, "children", len(children), "urls", len(entries))
	*out = append(*out, entries...)
	for _, child := range children {
		s.expand(ctx, child, depth+1, visited, out)
	}
}

// parseSitemap returns child sitemap locations and URL entries. Gzipped
// bodies are inflated first.
func parseSitemap(body []byte) ([]string, []SitemapEntry, error) {
	var r io.Reader = bytes.NewReader(body)
	if len(body) > 2 && body[0] == 0x1f && body[1] == 0x8b {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("gunzip: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, nil, err
	}

	var children []string
	for _, n := range xmlquery.Find(doc, "//*[local-name()='sitemap']") {
		if loc := childText(n, "loc"); loc != "" {
			children = append(children, loc)
		}
	}

	var entries []SitemapEntry
	for _, n := range xmlquery.Find(doc, "//*[local-name()='url']") {
		loc := childText(n, "loc")
		if loc == "" {
			continue
		}
		entry := SitemapEntry{Loc: loc}
		if lm := childText(n, "lastmod"); lm != "" {
			if t, err := parser.ParseDate(lm); err == nil {
				entry.LastMod, entry.HasLastMod = t, true
			}
		}
		entries = append(entries, entry)
	}

	return children, entries, nil
}

func childText(n *xmlquery.Node, name string) string {
	child := xmlquery.FindOne(n, "./*[local-name()='"+name+"']")
	if child == nil {
		return ""
	}
	return strings.TrimSpace(child.InnerText())
}

// filterSitemapEntries keeps entries containing any of pathContains (when
// set) and ending with langSuffix (when set), deduplicated by location.
func filterSitemapEntries(entries []SitemapEntry, pathContains []string, langSuffix string) []SitemapEntry {
	seen := make(map[string]bool, len(entries))
	var out []SitemapEntry
	for _, e := range entries {
		if seen[e.Loc] {
			continue
		}
		if len(pathContains) > 0 && !containsAny(e.Loc, pathContains) {
			continue
		}
		if langSuffix != "" && !strings.HasSuffix(e.Loc, langSuffix) {
			continue
		}
		seen[e.Loc] = true
		out = append(out, e)
	}
	return out
}

// sortByLastModDesc orders entries newest first; undated entries keep
// their relative order at the end.
func sortByLastModDesc(entries []SitemapEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.HasLastMod != b.HasLastMod {
			return a.HasLastMod
		}
		return a.LastMod.After(b.LastMod)
	})
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
