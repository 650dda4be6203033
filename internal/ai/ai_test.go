package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IshaanNene/NewsGoat/internal/config"
	"github.com/IshaanNene/NewsGoat/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testItem(t *testing.T, link string) *types.NewsItem {
	t.Helper()
	item, err := types.NewNewsItem("Nowy nabór wniosków", "Treść artykułu o naborze.", link,
		time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewNewsItem: %v", err)
	}
	return item
}

// --- Response Parsing Tests ---

func TestParseEnrichment(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantTitle string
		wantBody  string
	}{
		{
			name:      "plain json",
			raw:       `{"gemini_tytul":"T","gemini_tresc":"B"}`,
			wantTitle: "T",
			wantBody:  "B",
		},
		{
			name:      "multi-line fence",
			raw:       "```json\n{\"gemini_tytul\":\"T\",\"gemini_tresc\":\"B1\\n\\nB2\"}\n```",
			wantTitle: "T",
			wantBody:  "B1\n\nB2",
		},
		{
			name:      "single-line fence",
			raw:       "```{\"gemini_tytul\":\"T\",\"gemini_tresc\":\"B1\\n\\nB2\"}```",
			wantTitle: "T",
			wantBody:  "B1\n\nB2",
		},
		{
			name:      "alternate keys",
			raw:       `Oto wynik: {"gemini_title":"Tytuł","gemini_content":"Akapit"} koniec`,
			wantTitle: "Tytuł",
			wantBody:  "Akapit",
		},
		{
			name:      "unstructured lines",
			raw:       "Line One\nLine Two\n\nLine Three",
			wantTitle: "Line One",
			wantBody:  "Line Two\n\nLine Three",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEnrichment(tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Title != tt.wantTitle || got.Body != tt.wantBody {
				t.Errorf("got (%q, %q), want (%q, %q)", got.Title, got.Body, tt.wantTitle, tt.wantBody)
			}
		})
	}
}

func TestParseEnrichmentFallbackTitleCapped(t *testing.T) {
	long := strings.Repeat("ż", 300)
	got, err := ParseEnrichment(long + "\nbody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len([]rune(got.Title)); n != maxFallbackTitle {
		t.Errorf("title length = %d, want %d", n, maxFallbackTitle)
	}
}

func TestParseEnrichmentUnparseable(t *testing.T) {
	for _, raw := range []string{"", "   ", "tylko tytuł", "```\n```"} {
		if _, err := ParseEnrichment(raw); !errors.Is(err, types.ErrUnparseableReply) {
			t.Errorf("ParseEnrichment(%q) error = %v", raw, err)
		}
	}
}

// --- Prompt Tests ---

func TestBuildPrompt(t *testing.T) {
	item := testItem(t, "https://example.pl/news/a")
	item.Body = strings.Repeat("a", 50)

	p := BuildPrompt(item, 10)
	if !strings.Contains(p, "TYTUL_ORG: Nowy nabór wniosków\n") {
		t.Error("prompt missing original title")
	}
	if !strings.Contains(p, "DATA: 2025-06-09\n") {
		t.Error("prompt missing date")
	}
	if !strings.HasSuffix(p, "TEKST: "+strings.Repeat("a", 10)) {
		t.Errorf("body not truncated: %q", p[len(p)-30:])
	}
	if !strings.Contains(p, "gemini_tytul, gemini_tresc") {
		t.Error("prompt does not name the output fields")
	}
}

// --- Enricher Tests ---

type fakeGenerator struct {
	calls atomic.Int64
	reply string
	err   error
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls.Add(1)
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string]Enrichment
}

func (c *memCache) Get(_ context.Context, key string) (Enrichment, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.data[key]
	return e, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, e Enrichment) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = e
	return nil
}

func TestEnrichIsIdempotent(t *testing.T) {
	gen := &fakeGenerator{reply: `{"gemini_tytul":"Nowy tytuł","gemini_tresc":"A\n\nB"}`}
	enricher := NewEnricher(gen, "test-model", testLogger(), WithConcurrency(2))

	items := []*types.NewsItem{testItem(t, "https://example.pl/a"), testItem(t, "https://example.pl/b")}
	ctx := context.Background()

	stats, err := enricher.Enrich(ctx, items)
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if stats.Enriched != 2 || gen.calls.Load() != 2 {
		t.Fatalf("first pass: stats=%+v calls=%d", stats, gen.calls.Load())
	}
	if items[0].EnrichedTitle != "Nowy tytuł" || items[0].EnrichedBody != "A\n\nB" {
		t.Errorf("unexpected enrichment: %+v", items[0])
	}

	stats, _ = enricher.Enrich(ctx, items)
	if gen.calls.Load() != 2 {
		t.Errorf("second pass made %d extra calls", gen.calls.Load()-2)
	}
	if stats.Skipped != 2 {
		t.Errorf("expected 2 skipped, got %+v", stats)
	}
}

func TestEnrichFailureLeavesItemUntouched(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("quota exceeded")}
	enricher := NewEnricher(gen, "m", testLogger())

	item := testItem(t, "https://example.pl/a")
	stats, err := enricher.Enrich(context.Background(), []*types.NewsItem{item})
	if err != nil {
		t.Fatalf("per-item failures must not surface: %v", err)
	}
	if stats.Failed != 1 || item.IsEnriched() {
		t.Errorf("stats=%+v enriched=%v", stats, item.IsEnriched())
	}
}

func TestEnrichUsesCache(t *testing.T) {
	cache := &memCache{data: make(map[string]Enrichment)}
	gen := &fakeGenerator{reply: `{"gemini_tytul":"T","gemini_tresc":"B"}`}

	first := testItem(t, "https://example.pl/a")
	if _, err := NewEnricher(gen, "m", testLogger(), WithCache(cache)).Enrich(context.Background(), []*types.NewsItem{first}); err != nil {
		t.Fatal(err)
	}

	again := testItem(t, "https://example.pl/a")
	stats, _ := NewEnricher(gen, "m", testLogger(), WithCache(cache)).Enrich(context.Background(), []*types.NewsItem{again})
	if gen.calls.Load() != 1 {
		t.Errorf("expected cached result, generator called %d times", gen.calls.Load())
	}
	if stats.Cached != 1 || again.EnrichedTitle != "T" {
		t.Errorf("stats=%+v item=%+v", stats, again)
	}
}

func TestCacheKeyDependsOnModel(t *testing.T) {
	item := testItem(t, "https://example.pl/a")
	if CacheKey("a", item) == CacheKey("b", item) {
		t.Error("cache keys should differ per model")
	}
}

// --- LLM Client Tests ---

func TestCheckConfig(t *testing.T) {
	cfg := config.DefaultConfig().AI
	cfg.APIKey = ""

	err := CheckConfig(&cfg)
	var cfgErr *types.ConfigError
	if !errors.As(err, &cfgErr) || !errors.Is(err, types.ErrMissingCredential) {
		t.Fatalf("expected missing credential ConfigError, got %v", err)
	}
	if _, err := NewEnricherFromConfig(&cfg, testLogger()); err == nil {
		t.Error("expected NewEnricherFromConfig to fail without a key")
	}

	cfg.Provider = string(ProviderOllama)
	if err := CheckConfig(&cfg); err != nil {
		t.Errorf("ollama needs no key: %v", err)
	}
}

func TestGeminiGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-2.5-flash:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "secret" {
			t.Errorf("missing api key header")
		}
		var body struct {
			GenerationConfig struct {
				ResponseMimeType string `json:"responseMimeType"`
			} `json:"generationConfig"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.GenerationConfig.ResponseMimeType != "application/json" {
			t.Errorf("responseMimeType = %q", body.GenerationConfig.ResponseMimeType)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"gemini_tytul\":"},{"text":"\"T\",\"gemini_tresc\":\"B\"}"}]}}]}`))
	}))
	defer srv.Close()

	cfg := config.DefaultConfig().AI
	cfg.Endpoint = srv.URL
	cfg.APIKey = "secret"

	client := NewLLMClient(&cfg, testLogger())
	reply, err := client.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	got, err := ParseEnrichment(reply)
	if err != nil || got.Title != "T" || got.Body != "B" {
		t.Errorf("got %+v, %v", got, err)
	}
}

func TestGeminiErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		http.Error(w, `{"error":{"message":"quota"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := config.DefaultConfig().AI
	cfg.Endpoint = srv.URL
	cfg.APIKey = "k"

	_, err := NewLLMClient(&cfg, testLogger()).Generate(context.Background(), "p")
	var fe *types.FetchError
	if !errors.As(err, &fe) || fe.StatusCode != http.StatusTooManyRequests || !fe.Retryable {
		t.Fatalf("expected retryable FetchError, got %v", err)
	}
	if fe.RetryAfter != 7*time.Second {
		t.Errorf("RetryAfter = %v, want 7s", fe.RetryAfter)
	}
}

func TestEnrichRetriesRateLimitedCallOnce(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		wantCalls int64
		wantOK    bool
	}{
		{"429 then success", []int{http.StatusTooManyRequests, http.StatusOK}, 2, true},
		{"503 twice", []int{http.StatusServiceUnavailable, http.StatusServiceUnavailable}, 2, false},
		{"400 is not retried", []int{http.StatusBadRequest, http.StatusOK}, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int64
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := calls.Add(1)
				status := tt.statuses[min(int(n), len(tt.statuses))-1]
				if status != http.StatusOK {
					http.Error(w, "busy", status)
					return
				}
				_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"gemini_tytul\":\"T\",\"gemini_tresc\":\"B\"}"}]}}]}`))
			}))
			defer srv.Close()

			cfg := config.DefaultConfig().AI
			cfg.Endpoint = srv.URL
			cfg.APIKey = "k"
			enricher, err := NewEnricherFromConfig(&cfg, testLogger(), WithRetryDelay(time.Millisecond))
			if err != nil {
				t.Fatalf("NewEnricherFromConfig: %v", err)
			}

			item := testItem(t, "https://example.pl/a")
			stats, _ := enricher.Enrich(context.Background(), []*types.NewsItem{item})
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
			if ok := stats.Enriched == 1 && item.EnrichedTitle == "T"; ok != tt.wantOK {
				t.Errorf("enriched = %v (stats %+v), want %v", ok, stats, tt.wantOK)
			}
		})
	}
}

func TestOpenAIGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" || r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("unexpected request %s %q", r.URL.Path, r.Header.Get("Authorization"))
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	cfg := config.AIConfig{Provider: "openai", Model: "gpt-4o-mini", Endpoint: srv.URL, APIKey: "k", Timeout: time.Second}
	got, err := NewLLMClient(&cfg, testLogger()).Generate(context.Background(), "p")
	if err != nil || got != "ok" {
		t.Errorf("got %q, %v", got, err)
	}
}
