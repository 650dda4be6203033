package parser

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	articleTypeRe = regexp.MustCompile(`(?i)article`)
	bodyClassRe   = regexp.MustCompile(`(?i)(entry-content|article-body|field--name-body)`)
)

// articleSignals are checked in order; any positive signal classifies the page.
var articleSignals = []func(doc *goquery.Document) bool{
	hasOpenGraphArticle,
	hasArticleItemtype,
	hasJSONLDArticle,
	hasArticleElement,
	hasMainElement,
	hasBodyClassDiv,
}

// IsArticle reports whether a page looks like a single article rather than
// a listing, index or other non-article page.
func IsArticle(doc *goquery.Document) bool {
	for _, signal := range articleSignals {
		if signal(doc) {
			return true
		}
	}
	return false
}

func hasOpenGraphArticle(doc *goquery.Document) bool {
	og := doc.Find(`meta[property="og:type"]`).First()
	return strings.Contains(strings.ToLower(og.AttrOr("content", "")), "article")
}

func hasArticleItemtype(doc *goquery.Document) bool {
	found := false
	doc.Find("[itemtype]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		found = articleTypeRe.MatchString(sel.AttrOr("itemtype", ""))
		return !found
	})
	return found
}

func hasJSONLDArticle(doc *goquery.Document) bool {
	found := false
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var data any
		if err := json.Unmarshal([]byte(strings.TrimSpace(sel.Text())), &data); err != nil {
			return true
		}
		found = jsonLDHasArticleType(data)
		return !found
	})
	return found
}

// jsonLDHasArticleType walks objects, arrays and @graph looking for an
// Article-like @type.
func jsonLDHasArticleType(v any) bool {
	switch node := v.(type) {
	case []any:
		for _, child := range node {
			if jsonLDHasArticleType(child) {
				return true
			}
		}
	case map[string]any:
		switch t := node["@type"].(type) {
		case string:
			if articleTypeRe.MatchString(t) {
				return true
			}
		case []any:
			for _, each := range t {
				if s, ok := each.(string); ok && articleTypeRe.MatchString(s) {
					return true
				}
			}
		}
		if graph, ok := node["@graph"]; ok {
			return jsonLDHasArticleType(graph)
		}
	}
	return false
}

func hasArticleElement(doc *goquery.Document) bool {
	article := doc.Find("article").First()
	if article.Length() == 0 {
		return false
	}
	return article.Find("h1").Length() > 0 && article.Find("p").Length() >= 3
}

func hasMainElement(doc *goquery.Document) bool {
	main := doc.Find("main").First()
	return main.Length() > 0 && main.Find("p").Length() >= 3
}

func hasBodyClassDiv(doc *goquery.Document) bool {
	found := false
	doc.Find("div[class]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		found = bodyClassRe.MatchString(sel.AttrOr("class", ""))
		return !found
	})
	return found
}
