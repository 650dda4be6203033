package pipeline

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/IshaanNene/NewsGoat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

var today = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func newItem(t *testing.T, title, body, link string, published time.Time) *types.NewsItem {
	t.Helper()
	item, err := types.NewNewsItem(title, body, link, published)
	if err != nil {
		t.Fatalf("NewNewsItem: %v", err)
	}
	return item
}

func TestPipelineBasic(t *testing.T) {
	p := New(testLogger)
	p.Use(&TrimMiddleware{})

	item := &types.NewsItem{Title: "  Hello   World  ", Body: "\n body \n", Link: "https://example.com"}
	result, err := p.Process(item)
	if err != nil {
		t.Fatalf("pipeline error: %v", err)
	}
	if result.Title != "Hello World" || result.Body != "body" {
		t.Errorf("unexpected trimmed item %+v", result)
	}
}

func TestNewsPipelineGates(t *testing.T) {
	longBody := strings.Repeat("Zdanie o edukacji. ", 15)
	inWindow := time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC)
	outOfWindow := time.Date(2025, 6, 6, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		item func() *types.NewsItem
		keep bool
	}{
		{"accepted", func() *types.NewsItem { return newItem(t, "Nowy program", longBody, "https://a.pl/1", inWindow) }, true},
		{"short body", func() *types.NewsItem { return newItem(t, "Nowy program", "Za krótko.", "https://a.pl/2", inWindow) }, false},
		{"short feed summary", func() *types.NewsItem {
			it := newItem(t, "Nowy program", "Krótko.", "https://a.pl/3", inWindow)
			it.FromFeed = true
			return it
		}, true},
		{"outside window", func() *types.NewsItem { return newItem(t, "Nowy program", longBody, "https://a.pl/4", outOfWindow) }, false},
		{"undated", func() *types.NewsItem { return newItem(t, "Nowy program", longBody, "https://a.pl/5", time.Time{}) }, false},
		{"single word after trim", func() *types.NewsItem {
			return &types.NewsItem{Title: "Aktualności", Body: longBody, Link: "https://a.pl/6"}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewNewsPipeline(types.NewTimeWindow(today, 3), 200, testLogger)
			got, err := p.Process(tt.item())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (got != nil) != tt.keep {
				t.Errorf("keep = %v, want %v", got != nil, tt.keep)
			}
		})
	}
}

func TestPipelineOnDropReportsStage(t *testing.T) {
	p := NewNewsPipeline(types.NewTimeWindow(today, 3), 200, testLogger)
	var stages []string
	p.OnDrop(func(stage string, _ *types.NewsItem) { stages = append(stages, stage) })

	body := strings.Repeat("x", 300)
	date := time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)
	p.Process(newItem(t, "Raz dwa", body, "https://a.pl/1", date))
	p.Process(newItem(t, "Raz dwa", body, "https://a.pl/1", date))

	if len(stages) != 1 || stages[0] != "dedup" {
		t.Errorf("expected one dedup drop, got %v", stages)
	}
}

type failingMiddleware struct{}

func (failingMiddleware) Name() string { return "boom" }
func (failingMiddleware) Process(*types.NewsItem) (*types.NewsItem, error) {
	return nil, errors.New("boom")
}

func TestPipelineErrorWrapsStage(t *testing.T) {
	p := New(testLogger)
	p.Use(failingMiddleware{})

	_, err := p.Process(&types.NewsItem{Link: "https://a.pl"})
	var pe *types.PipelineError
	if !errors.As(err, &pe) || pe.Stage != "boom" {
		t.Errorf("expected PipelineError at stage boom, got %v", err)
	}
}

func TestDedupMiddlewareConcurrent(t *testing.T) {
	m := NewDedupMiddleware()
	var wg sync.WaitGroup
	var mu sync.Mutex
	kept := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if res, _ := m.Process(&types.NewsItem{Link: "https://a.pl/same"}); res != nil {
				mu.Lock()
				kept++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if kept != 1 {
		t.Errorf("expected exactly one item kept, got %d", kept)
	}
}
