package parser

import (
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// UntitledPlaceholder is used when a page has neither <h1> nor <title>.
const UntitledPlaceholder = "Brak tytułu"

// Candidate text must exceed minCandidateChars and contain minCandidatePeriods
// sentence periods to be accepted.
const (
	minCandidateChars   = 400
	minCandidatePeriods = 3
)

var chromeTags = []string{"script", "style", "noscript", "iframe", "form"}

var chromeSelectors = []string{
	"header", "footer", "nav", "aside",
	".breadcrumb", ".breadcrumbs", ".menu", ".navbar", ".sidebar",
	".pagination", ".pager", ".cookie", ".cookies",
}

// CleanDocument removes scripts, forms and page chrome in place.
func CleanDocument(doc *goquery.Document) {
	doc.Find(strings.Join(chromeTags, ", ")).Remove()
	doc.Find(strings.Join(chromeSelectors, ", ")).Remove()
}

// ExtractTitle returns the first <h1> text, else <title>, else UntitledPlaceholder.
func ExtractTitle(doc *goquery.Document) string {
	if t := normalizeSpace(doc.Find("h1").First().Text()); t != "" {
		return t
	}
	if t := normalizeSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return UntitledPlaceholder
}

// Extractor pulls the main body text out of article pages.
type Extractor struct {
	registry *Registry
	logger   *slog.Logger
}

// NewExtractor creates an extractor backed by registry.
func NewExtractor(registry *Registry, logger *slog.Logger) *Extractor {
	return &Extractor{
		registry: registry,
		logger:   logger.With("component", "extractor"),
	}
}

// ExtractBody cleans doc in place and returns the article text. Domain rules
// are tried first; the generic fallback collects paragraphs and list items
// from the first <article>, else <main>, else the whole document.
func (e *Extractor) ExtractBody(doc *goquery.Document, pageURL string) string {
	CleanDocument(doc)

	host := ""
	if u, err := url.Parse(pageURL); err == nil {
		host = u.Host
	}

	if rules, ok := e.registry.Resolve(host); ok {
		for _, c := range rules {
			sel := c.find(doc)
			if sel == nil || sel.Length() == 0 {
				continue
			}
			text := containerText(sel)
			if acceptable(text) {
				e.logger.Debug("domain rule matched", "url", pageURL, "candidate", c.String())
				return text
			}
		}
	}

	return fallbackText(doc)
}

// containerText joins all paragraph texts, then all list-item texts.
func containerText(sel *goquery.Selection) string {
	var parts []string
	collect := func(_ int, s *goquery.Selection) {
		if t := normalizeSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	}
	sel.Find("p").Each(collect)
	sel.Find("li").Each(collect)
	return strings.Join(parts, "\n\n")
}

func acceptable(text string) bool {
	return utf8.RuneCountInString(text) > minCandidateChars &&
		strings.Count(text, ".") >= minCandidatePeriods
}

func fallbackText(doc *goquery.Document) string {
	scope := doc.Find("article").First()
	if scope.Length() == 0 {
		scope = doc.Find("main").First()
	}
	if scope.Length() == 0 {
		scope = doc.Selection
	}

	var parts []string
	scope.Find("p, li").Each(func(_ int, s *goquery.Selection) {
		if t := normalizeSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, "\n\n")
}
