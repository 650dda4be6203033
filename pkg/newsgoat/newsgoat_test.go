package newsgoat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IshaanNene/NewsGoat/internal/config"
	"github.com/IshaanNene/NewsGoat/internal/storage"
	"github.com/IshaanNene/NewsGoat/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type staticFetcher map[string]string

func (f staticFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	body, ok := f[req.URLString()]
	if !ok {
		return nil, &types.FetchError{URL: req.URLString(), StatusCode: http.StatusNotFound, Err: errors.New("not found")}
	}
	return &types.Response{
		StatusCode:  http.StatusOK,
		Body:        []byte(body),
		Request:     req,
		ContentType: "text/html",
		FinalURL:    req.URLString(),
	}, nil
}

func (staticFetcher) Close() error { return nil }

type countingGenerator struct{ calls atomic.Int64 }

func (g *countingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls.Add(1)
	return `{"gemini_tytul":"Przepisany tytuł","gemini_tresc":"Akapit pierwszy.\n\nAkapit drugi."}`, nil
}

const body = "Instytut Badań Edukacyjnych opublikował nowy raport dotyczący kompetencji uczniów szkół podstawowych w całym kraju."

func article(date string) string {
	return fmt.Sprintf(`<html><head><meta property="og:type" content="article">
<meta property="article:published_time" content="%s"></head>
<body><article><h1>Raport o kompetencjach uczniów</h1><p>%s</p><p>%s</p><p>%s</p></article></body></html>`,
		date, body, body, body)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Render.Enabled = false
	cfg.Storage.OutputPath = t.TempDir()
	cfg.Sources = []config.SourceConfig{{
		Name:            "ibe",
		Type:            config.SourceListing,
		URL:             "https://ibe.example.pl/aktualnosci",
		AllowSubstrings: []string{"/aktualnosci/"},
	}}
	return cfg
}

func testFetcher() staticFetcher {
	today := time.Now().Format(time.DateOnly)
	return staticFetcher{
		"https://ibe.example.pl/aktualnosci":        `<html><body><a href="/aktualnosci/raport">Raport</a></body></html>`,
		"https://ibe.example.pl/aktualnosci/raport": article(today),
	}
}

func TestRunCrawlsEnrichesAndStores(t *testing.T) {
	cfg := testConfig(t)
	cfg.AI.Enabled = true
	gen := &countingGenerator{}

	c, err := New(cfg, testLogger(), WithFetcher(testFetcher()), WithGenerator(gen))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Result.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(report.Result.Items))
	}
	if report.Enrich.Enriched != 1 || gen.calls.Load() != 1 {
		t.Errorf("enrich stats = %+v", report.Enrich)
	}

	want := filepath.Join(cfg.Storage.OutputPath, storage.OutputFileName(report.Result.Window, "json"))
	if report.OutputPath != want {
		t.Errorf("output path = %q, want %q", report.OutputPath, want)
	}
	items, err := storage.LoadJSON(report.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].EnrichedTitle != "Przepisany tytuł" {
		t.Errorf("stored items = %+v", items)
	}

	// Re-enriching a stored run makes no further calls.
	if _, err := c.Enrich(context.Background(), items); err != nil {
		t.Fatal(err)
	}
	if gen.calls.Load() != 1 {
		t.Errorf("expected no extra generator calls, got %d", gen.calls.Load())
	}
	if c.Metrics().ItemsStored.Load() != 1 {
		t.Error("stored items not counted")
	}
}

func TestRunMissingCredentialStillStores(t *testing.T) {
	cfg := testConfig(t)
	cfg.AI.Enabled = true
	cfg.AI.APIKey = ""

	c, err := New(cfg, testLogger(), WithFetcher(testFetcher()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !errors.Is(report.EnrichErr, types.ErrMissingCredential) {
		t.Errorf("expected missing credential, got %v", report.EnrichErr)
	}
	if _, err := os.Stat(report.OutputPath); err != nil {
		t.Errorf("output not written: %v", err)
	}
}

func TestCrawlUnknownSource(t *testing.T) {
	c, err := New(testConfig(t), testLogger(), WithFetcher(testFetcher()))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	_, err = c.Crawl(context.Background(), "nope")
	var cfgErr *types.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigError, got %v", err)
	}
}
