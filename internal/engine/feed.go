package engine

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/mmcdole/gofeed"

	"github.com/IshaanNene/NewsGoat/internal/config"
	"github.com/IshaanNene/NewsGoat/internal/fetcher"
	"github.com/IshaanNene/NewsGoat/internal/parser"
	"github.com/IshaanNene/NewsGoat/internal/types"
)

// FeedIngestor turns RSS/Atom entries into news items.
type FeedIngestor struct {
	fetcher fetcher.Fetcher
	logger  *slog.Logger
}

// NewFeedIngestor creates a feed ingestor.
func NewFeedIngestor(f fetcher.Fetcher, logger *slog.Logger) *FeedIngestor {
	return &FeedIngestor{
		fetcher: f,
		logger:  logger.With("component", "feed"),
	}
}

// Ingest fetches and parses src.URL. Entries without a resolvable date or
// with a single-word title are skipped; window filtering is left to the caller.
func (fi *FeedIngestor) Ingest(ctx context.Context, src config.SourceConfig) ([]*types.NewsItem, int, error) {
	req, err := types.NewRequest(src.URL)
	if err != nil {
		return nil, 0, err
	}
	req.Tag = types.TagFeed
	req.Source = src.Name

	resp, err := fi.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, 0, err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, 0, &types.ParseError{URL: src.URL, Stage: "feed", Err: err}
	}

	var items []*types.NewsItem
	for _, entry := range feed.Items {
		item, err := fi.entryItem(src, entry)
		if err != nil {
			fi.logger.Debug("feed entry skipped", "source", src.Name, "link", entry.Link, "reason", err)
			continue
		}
		items = append(items, item)
	}
	return items, len(feed.Items), nil
}

func (fi *FeedIngestor) entryItem(src config.SourceConfig, entry *gofeed.Item) (*types.NewsItem, error) {
	published, ok := parser.DateFromFeedItem(entry)
	if !ok {
		return nil, types.ErrNoDate
	}

	title := entry.Title
	if title == "" {
		title = src.DisplayName
	}

	summary := parser.StripMarkup(entry.Description)
	if summary == "" {
		summary = parser.StripMarkup(entry.Content)
	}

	if entry.Link == "" {
		return nil, fmt.Errorf("%w: entry has no link", types.ErrInvalidURL)
	}

	item, err := types.NewNewsItem(parser.StripMarkup(title), summary, entry.Link, published)
	if err != nil {
		return nil, err
	}
	item.Source = src.Name
	item.FromFeed = true
	return item, nil
}
