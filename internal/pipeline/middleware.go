package pipeline

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/IshaanNene/NewsGoat/internal/types"
)

// TrimMiddleware trims whitespace from title and body.
type TrimMiddleware struct{}

func (m *TrimMiddleware) Name() string { return "trim" }

func (m *TrimMiddleware) Process(item *types.NewsItem) (*types.NewsItem, error) {
	item.Title = strings.Join(strings.Fields(item.Title), " ")
	item.Body = strings.TrimSpace(item.Body)
	return item, nil
}

// TitleWordsMiddleware drops items whose title has fewer than MinWords words.
type TitleWordsMiddleware struct {
	MinWords int
}

func (m *TitleWordsMiddleware) Name() string { return "title_words" }

func (m *TitleWordsMiddleware) Process(item *types.NewsItem) (*types.NewsItem, error) {
	if len(strings.Fields(item.Title)) < m.MinWords {
		return nil, nil
	}
	return item, nil
}

// MinBodyMiddleware drops crawled items whose body is shorter than MinChars
// characters. Feed items carry summaries and are exempt.
type MinBodyMiddleware struct {
	MinChars int
}

func (m *MinBodyMiddleware) Name() string { return "min_body" }

func (m *MinBodyMiddleware) Process(item *types.NewsItem) (*types.NewsItem, error) {
	if item.FromFeed {
		return item, nil
	}
	if utf8.RuneCountInString(item.Body) < m.MinChars {
		return nil, nil
	}
	return item, nil
}

// WindowMiddleware drops undated items and items published outside Window.
type WindowMiddleware struct {
	Window types.TimeWindow
}

func (m *WindowMiddleware) Name() string { return "window" }

func (m *WindowMiddleware) Process(item *types.NewsItem) (*types.NewsItem, error) {
	if !m.Window.ContainsDate(item.Published) {
		return nil, nil
	}
	return item, nil
}

// DedupMiddleware drops items whose link was already accepted.
type DedupMiddleware struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewDedupMiddleware() *DedupMiddleware {
	return &DedupMiddleware{
		seen: make(map[string]struct{}),
	}
}

func (m *DedupMiddleware) Name() string { return "dedup" }

func (m *DedupMiddleware) Process(item *types.NewsItem) (*types.NewsItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.seen[item.Link]; exists {
		return nil, nil
	}
	m.seen[item.Link] = struct{}{}
	return item, nil
}
