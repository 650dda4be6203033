package parser

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultMaxLinks caps discovered candidates per listing.
const DefaultMaxLinks = 80

// DefaultDenyExtensions are binary/document suffixes never treated as articles.
var DefaultDenyExtensions = []string{
	".pdf", ".jpg", ".jpeg", ".png", ".gif", ".webp",
	".zip", ".doc", ".docx", ".xls", ".xlsx",
}

// ListingExclusion skips URLs on Host whose full URL contains every Contains entry.
type ListingExclusion struct {
	Name     string
	Host     string
	Contains []string
}

// Match reports whether u is excluded.
func (x ListingExclusion) Match(u *url.URL) bool {
	if !strings.Contains(u.Host, x.Host) {
		return false
	}
	full := u.String()
	for _, c := range x.Contains {
		if !strings.Contains(full, c) {
			return false
		}
	}
	return true
}

var listingExclusions = []ListingExclusion{
	{Name: "edunews-pagination", Host: "edunews.pl", Contains: []string{"aktualnosci", "start="}},
}

// LinkFilter narrows the anchors of a listing page to article candidates.
// A link must contain one of AllowSubstrings when that list is set, and must
// also match AllowRegex when that is set.
type LinkFilter struct {
	AllowSubstrings []string
	AllowRegex      *regexp.Regexp
	MaxLinks        int
	DenyExtensions  []string
}

func (f LinkFilter) allowed(link string) bool {
	if len(f.AllowSubstrings) > 0 && !containsAny(link, f.AllowSubstrings) {
		return false
	}
	if f.AllowRegex != nil && !f.AllowRegex.MatchString(link) {
		return false
	}
	return true
}

func (f LinkFilter) denied(u *url.URL) bool {
	exts := f.DenyExtensions
	if exts == nil {
		exts = DefaultDenyExtensions
	}
	full := strings.ToLower(u.String())
	path := strings.ToLower(u.Path)
	for _, ext := range exts {
		if strings.HasSuffix(full, ext) || strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// DiscoverLinks returns same-host article candidate URLs from a listing page
// in document order, deduplicated and capped at MaxLinks.
func DiscoverLinks(baseURL string, doc *goquery.Document, f LinkFilter) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	limit := f.MaxLinks
	if limit <= 0 {
		limit = DefaultMaxLinks
	}

	seen := make(map[string]bool)
	var links []string

	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" ||
			strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") ||
			strings.HasPrefix(href, "mailto:") ||
			strings.HasPrefix(href, "tel:") ||
			strings.HasPrefix(href, "data:") {
			return true
		}

		parsed, err := url.Parse(href)
		if err != nil {
			return true
		}
		resolved := base.ResolveReference(parsed)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return true
		}
		if resolved.Host != base.Host {
			return true
		}
		resolved.Fragment = ""

		if f.denied(resolved) {
			return true
		}
		for _, x := range listingExclusions {
			if x.Match(resolved) {
				return true
			}
		}

		abs := resolved.String()
		if !f.allowed(abs) || seen[abs] {
			return true
		}
		seen[abs] = true
		links = append(links, abs)
		return len(links) < limit
	})

	return links
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
