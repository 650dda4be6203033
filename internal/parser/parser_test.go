package parser

import (
	"log/slog"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/IshaanNene/NewsGoat/internal/config"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func makeDoc(t testing.TB, body string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

// longParagraphs returns n sentences of roughly 60 characters each wrapped in <p>.
func longParagraphs(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString("<p>Ministerstwo ogłosiło nowy program wsparcia dla szkół średnich.</p>")
	}
	return b.String()
}

func sameDay(a time.Time, y int, m time.Month, d int) bool {
	return a.Year() == y && a.Month() == m && a.Day() == d
}

// --- Date extraction ---

func TestExtractDateFromMeta(t *testing.T) {
	doc := makeDoc(t, `<html><head>
		<meta property="article:published_time" content="2025-06-07T09:15:00+02:00">
		</head><body><time datetime="2024-01-01">1 stycznia 2024</time></body></html>`)

	got, ok := ExtractDate(doc)
	if !ok || !sameDay(got, 2025, time.June, 7) {
		t.Errorf("expected 2025-06-07 from meta, got %v (ok=%v)", got, ok)
	}
}

func TestExtractDateSkipsUnparseableMeta(t *testing.T) {
	doc := makeDoc(t, `<html><head>
		<meta property="article:published_time" content="wkrótce">
		<meta name="date" content="2025-05-30">
		</head><body></body></html>`)

	got, ok := ExtractDate(doc)
	if !ok || !sameDay(got, 2025, time.May, 30) {
		t.Errorf("expected fallthrough to name=date, got %v (ok=%v)", got, ok)
	}
}

func TestExtractDateFromTimeTagDayFirst(t *testing.T) {
	doc := makeDoc(t, `<html><body><time>05/06/2025</time></body></html>`)
	got, ok := ExtractDate(doc)
	if !ok || !sameDay(got, 2025, time.June, 5) {
		t.Errorf("expected day-first 2025-06-05, got %v (ok=%v)", got, ok)
	}
}

func TestExtractDatePolishLongFormFromText(t *testing.T) {
	doc := makeDoc(t, `<html><body>
		<div class="meta">Opublikowano 7 czerwca 2025 w dziale Edukacja</div>
		<p>Treść artykułu bez daty w znacznikach.</p>
		</body></html>`)

	if _, ok := dateFromMeta(doc); ok {
		t.Fatal("meta stage should not find a date")
	}
	if _, ok := dateFromTimeTags(doc); ok {
		t.Fatal("time stage should not find a date")
	}
	got, ok := ExtractDate(doc)
	if !ok || !sameDay(got, 2025, time.June, 7) {
		t.Errorf("expected 2025-06-07 from free text, got %v (ok=%v)", got, ok)
	}
}

func TestDateInTextPatterns(t *testing.T) {
	tests := []struct {
		text    string
		y       int
		m       time.Month
		d       int
		noMatch bool
	}{
		{text: "Dodano: 03/06/2025", y: 2025, m: time.June, d: 3},
		{text: "Dodano: 3.6.2025 r.", y: 2025, m: time.June, d: 3},
		{text: "Updated 2025-06-09 by admin", y: 2025, m: time.June, d: 9},
		{text: "12 WRZEŚNIA 2024", y: 2024, m: time.September, d: 12},
		{text: "1 pazdziernika 2024", y: 2024, m: time.October, d: 1},
		{text: "31/02/2025 then 2025-03-01", y: 2025, m: time.March, d: 1},
		{text: "no dates here", noMatch: true},
	}
	for _, tt := range tests {
		got, ok := dateInText(tt.text)
		if tt.noMatch {
			if ok {
				t.Errorf("%q: expected no date, got %v", tt.text, got)
			}
			continue
		}
		if !ok || !sameDay(got, tt.y, tt.m, tt.d) {
			t.Errorf("%q: got %v (ok=%v)", tt.text, got, ok)
		}
	}
}

func TestExtractDateIgnoresScriptText(t *testing.T) {
	doc := makeDoc(t, `<html><body><script>var d = "2020-01-01";</script><p>Bez daty.</p></body></html>`)
	if got, ok := ExtractDate(doc); ok {
		t.Errorf("expected no date, got %v", got)
	}
}

func TestDateFromFeedItem(t *testing.T) {
	parsed := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		item *gofeed.Item
		want time.Time
		ok   bool
	}{
		{"published", &gofeed.Item{Published: "Mon, 09 Jun 2025 08:00:00 +0000", Updated: "2025-01-01"}, time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC), true},
		{"updated", &gofeed.Item{Published: "garbage", Updated: "2025-06-08T10:00:00Z"}, time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC), true},
		{"created", &gofeed.Item{Custom: map[string]string{"created": "2025-06-07"}}, time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC), true},
		{"preparsed", &gofeed.Item{PublishedParsed: &parsed}, parsed, true},
		{"none", &gofeed.Item{}, time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DateFromFeedItem(tt.item)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && !sameDay(got, tt.want.Year(), tt.want.Month(), tt.want.Day()) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

// --- Classification ---

func TestIsArticle(t *testing.T) {
	tests := []struct {
		name string
		html string
		want bool
	}{
		{"og type", `<html><head><meta property="og:type" content="Article"></head><body></body></html>`, true},
		{"itemtype", `<html><body><div itemtype="https://schema.org/NewsArticle"></div></body></html>`, true},
		{"json-ld graph", `<html><head><script type="application/ld+json">{"@graph":[{"@type":"WebPage"},{"@type":["NewsArticle"]}]}</script></head><body></body></html>`, true},
		{"article element", `<html><body><article><h1>Tytuł</h1>` + longParagraphs(3) + `</article></body></html>`, true},
		{"article without h1", `<html><body><article>` + longParagraphs(5) + `</article></body></html>`, false},
		{"main element", `<html><body><main>` + longParagraphs(3) + `</main></body></html>`, true},
		{"body class", `<html><body><div class="wrapper field--name-body"></div></body></html>`, true},
		{"body class mixed case", `<html><body><div class="Article-Body"></div></body></html>`, true},
		{"listing", `<html><body><ul><li><a href="/a">A</a></li></ul><p>one</p></body></html>`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsArticle(makeDoc(t, tt.html)); got != tt.want {
				t.Errorf("IsArticle = %v, want %v", got, tt.want)
			}
		})
	}
}

// --- Title and body ---

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		html string
		want string
	}{
		{`<html><head><title>Strona</title></head><body><h1> Nowy   rok szkolny </h1></body></html>`, "Nowy rok szkolny"},
		{`<html><head><title>Tytuł strony</title></head><body></body></html>`, "Tytuł strony"},
		{`<html><body><p>x</p></body></html>`, UntitledPlaceholder},
	}
	for _, tt := range tests {
		if got := ExtractTitle(makeDoc(t, tt.html)); got != tt.want {
			t.Errorf("ExtractTitle = %q, want %q", got, tt.want)
		}
	}
}

func TestExtractBodyDomainRule(t *testing.T) {
	html := `<html><body>
		<header><p>Menu header text that must not appear.</p></header>
		<div class="itemFullText">` + longParagraphs(8) + `<ul><li>Punkt pierwszy</li></ul></div>
		<div class="content"><p>Short other content.</p></div>
		<footer><p>Stopka</p></footer>
		</body></html>`

	e := NewExtractor(DefaultRegistry(), testLogger)
	body := e.ExtractBody(makeDoc(t, html), "https://edunews.pl/system-edukacji/1234-nowy-program")

	if strings.Contains(body, "Menu header") || strings.Contains(body, "Stopka") {
		t.Errorf("chrome leaked into body: %q", body)
	}
	parts := strings.Split(body, "\n\n")
	if len(parts) != 9 {
		t.Fatalf("expected 8 paragraphs and 1 list item, got %d parts", len(parts))
	}
	if parts[8] != "Punkt pierwszy" {
		t.Errorf("list items should follow paragraphs, got %q", parts[8])
	}
}

func TestExtractBodyRejectsShortCandidateThenFallsBack(t *testing.T) {
	html := `<html><body>
		<div class="entry-content"><p>Za krótko.</p></div>
		<article><p>Pierwszy akapit.</p><p>Drugi akapit.</p></article>
		</body></html>`

	e := NewExtractor(DefaultRegistry(), testLogger)
	body := e.ExtractBody(makeDoc(t, html), "https://ibe.edu.pl/pl/aktualnosci/x")
	if body != "Pierwszy akapit.\n\nDrugi akapit." {
		t.Errorf("expected article fallback text, got %q", body)
	}
}

func TestExtractBodyFallbackOrder(t *testing.T) {
	html := `<html><body><p>Jeden.</p><ul><li>Dwa.</li></ul><p>Trzy.</p></body></html>`
	e := NewExtractor(NewRegistry(), testLogger)
	body := e.ExtractBody(makeDoc(t, html), "https://unknown.example/a")
	if body != "Jeden.\n\nDwa.\n\nTrzy." {
		t.Errorf("expected document-order fallback, got %q", body)
	}
}

func TestRegistryFromConfigXPathRule(t *testing.T) {
	reg, err := NewRegistryFromConfig(&config.ExtractionConfig{
		Rules: []config.DomainRulesConfig{{
			Domain:     "frse.org.pl",
			Candidates: []config.CandidateConfig{{XPath: `//section[@id="tresc"]`}},
		}},
	})
	if err != nil {
		t.Fatalf("NewRegistryFromConfig: %v", err)
	}
	if domains := reg.Domains(); domains[0] != "frse.org.pl" || len(domains) != 5 {
		t.Fatalf("expected configured rule first, got %v", domains)
	}

	html := `<html><body>
		<div class="field--name-body"><p>Nie ten kontener.</p></div>
		<section id="tresc">` + longParagraphs(8) + `</section></body></html>`
	body := NewExtractor(reg, testLogger).ExtractBody(makeDoc(t, html), "https://www.frse.org.pl/aktualnosci/x")
	if !strings.HasPrefix(body, "Ministerstwo ogłosiło") || strings.Contains(body, "Nie ten") {
		t.Errorf("expected xpath container text, got %q", body)
	}
}

func TestRegistryRejectsBadClassPattern(t *testing.T) {
	if err := NewRegistry().Register("x.pl", RuleSet{{Tag: "div", Class: "("}}); err == nil {
		t.Error("expected error for invalid class pattern")
	}
}

// --- Link discovery ---

func TestDiscoverLinks(t *testing.T) {
	html := `<html><body>
		<a href="/news/a">A</a>
		<a href="https://other.org/news/x">X</a>
		<a href="/news/b#comments">B</a>
		<a href="/files/report.PDF">PDF</a>
		<a href="news/c">C</a>
		<a href="https://example.com/news/a">A again</a>
		<a href="//cdn.example.net/news/y">Y</a>
		<a href="/news/d">D</a>
		<a href="mailto:x@example.com">mail</a>
		<a href="/news/e">E</a>
		</body></html>`

	links := DiscoverLinks("https://example.com/", makeDoc(t, html), LinkFilter{})
	want := []string{
		"https://example.com/news/a",
		"https://example.com/news/b",
		"https://example.com/news/c",
		"https://example.com/news/d",
		"https://example.com/news/e",
	}
	if len(links) != len(want) {
		t.Fatalf("expected %d links, got %d: %v", len(want), len(links), links)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Errorf("links[%d] = %q, want %q", i, links[i], want[i])
		}
	}
}

func TestDiscoverLinksAllowListAndCap(t *testing.T) {
	html := `<html><body>
		<a href="/kontakt">Kontakt</a>
		<a href="/system-edukacji/101-pierwszy">1</a>
		<a href="/inne/2024-cos">2</a>
		<a href="/wydarzenia/konferencja">3</a>
		<a href="/wydarzenia/202-warsztaty">4</a>
		<a href="/aktualnosci?start=20">next</a>
		</body></html>`

	f := LinkFilter{
		AllowSubstrings: []string{"/system-edukacji/", "/wydarzenia/"},
		AllowRegex:      regexp.MustCompile(`https?://[^/]*edunews\.pl/.+?/\d{3,}-`),
	}
	links := DiscoverLinks("https://edunews.pl/aktualnosci", makeDoc(t, html), f)
	want := []string{
		"https://edunews.pl/system-edukacji/101-pierwszy",
		"https://edunews.pl/wydarzenia/202-warsztaty",
	}
	if strings.Join(links, " ") != strings.Join(want, " ") {
		t.Errorf("got %v, want %v", links, want)
	}

	// Either filter alone is not enough.
	regexOnly := DiscoverLinks("https://edunews.pl/aktualnosci", makeDoc(t, html), LinkFilter{AllowRegex: f.AllowRegex})
	if len(regexOnly) != 3 {
		t.Errorf("regex-only filter: got %v", regexOnly)
	}
	substrOnly := DiscoverLinks("https://edunews.pl/aktualnosci", makeDoc(t, html), LinkFilter{AllowSubstrings: f.AllowSubstrings})
	if len(substrOnly) != 3 {
		t.Errorf("substring-only filter: got %v", substrOnly)
	}

	f.MaxLinks = 1
	if capped := DiscoverLinks("https://edunews.pl/aktualnosci", makeDoc(t, html), f); len(capped) != 1 {
		t.Errorf("expected cap of 1, got %v", capped)
	}
}

func TestListingExclusion(t *testing.T) {
	html := `<html><body><a href="/aktualnosci?start=40">Starsze</a><a href="/aktualnosci/1">Nowe</a></body></html>`
	links := DiscoverLinks("https://edunews.pl/aktualnosci", makeDoc(t, html), LinkFilter{})
	if len(links) != 1 || links[0] != "https://edunews.pl/aktualnosci/1" {
		t.Errorf("expected pagination link excluded, got %v", links)
	}
}

func TestStripMarkup(t *testing.T) {
	got := StripMarkup(`<p>Nowy <b>konkurs</b></p><script>alert(1)</script>`)
	if got != "Nowy konkurs" {
		t.Errorf("StripMarkup = %q", got)
	}
	if StripMarkup("  plain   text ") != "plain text" {
		t.Error("plain text should be whitespace-normalized")
	}
}

// --- Benchmarks ---

func BenchmarkExtractBody(b *testing.B) {
	html := `<html><body><article><h1>Tytuł artykułu</h1>` + longParagraphs(40) + `</article></body></html>`
	e := NewExtractor(DefaultRegistry(), testLogger)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.ExtractBody(makeDoc(b, html), "https://ibe.edu.pl/pl/aktualnosci/x")
	}
}

func BenchmarkExtractDate(b *testing.B) {
	html := `<html><body>` + longParagraphs(40) + `<p>Opublikowano 7 czerwca 2025</p></body></html>`
	doc := makeDoc(b, html)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ExtractDate(doc)
	}
}
