package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
)

// DateStrategy inspects a document and reports a publication date.
type DateStrategy func(doc *goquery.Document) (time.Time, bool)

// dateCascade is tried in order; the first strategy that yields a date wins.
var dateCascade = []DateStrategy{
	dateFromMeta,
	dateFromTimeTags,
	dateFromText,
}

// ExtractDate determines an article's publication date from its HTML.
func ExtractDate(doc *goquery.Document) (time.Time, bool) {
	for _, strategy := range dateCascade {
		if t, ok := strategy(doc); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

var metaDateAttrs = []struct{ attr, value string }{
	{"property", "article:published_time"},
	{"property", "article:modified_time"},
	{"property", "og:published_time"},
	{"property", "og:updated_time"},
	{"name", "date"},
	{"name", "pubdate"},
	{"itemprop", "datePublished"},
	{"itemprop", "dateModified"},
}

func dateFromMeta(doc *goquery.Document) (time.Time, bool) {
	for _, m := range metaDateAttrs {
		sel := doc.Find(fmt.Sprintf(`meta[%s=%q]`, m.attr, m.value)).First()
		content := strings.TrimSpace(sel.AttrOr("content", ""))
		if content == "" {
			continue
		}
		if t, err := ParseDate(content); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func dateFromTimeTags(doc *goquery.Document) (found time.Time, ok bool) {
	doc.Find("time").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		value := sel.AttrOr("datetime", "")
		if value == "" {
			value = sel.AttrOr("content", "")
		}
		if value == "" {
			value = normalizeSpace(sel.Text())
		}
		if value == "" {
			return true
		}
		if t, err := ParseDayFirst(value); err == nil {
			found, ok = t, true
			return false
		}
		return true
	})
	return found, ok
}

type textDatePattern struct {
	re    *regexp.Regexp
	build func(m []string) (time.Time, bool)
}

var polishDateRe = regexp.MustCompile(`(?i)\b(\d{1,2})\s+(stycznia|lutego|marca|kwietnia|maja|czerwca|lipca|sierpnia|wrze[sś]nia|pa[zź]dziernika|listopada|grudnia)\s+(\d{4})\b`)

// polishMonths maps genitive month names to month numbers.
var polishMonths = map[string]time.Month{
	"stycznia":     time.January,
	"lutego":       time.February,
	"marca":        time.March,
	"kwietnia":     time.April,
	"maja":         time.May,
	"czerwca":      time.June,
	"lipca":        time.July,
	"sierpnia":     time.August,
	"września":     time.September,
	"wrzesnia":     time.September,
	"października": time.October,
	"pazdziernika": time.October,
	"listopada":    time.November,
	"grudnia":      time.December,
}

// textDatePatterns run against the page's visible text. The first pattern
// whose first match forms a valid date wins.
var textDatePatterns = []textDatePattern{
	{regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`), dayMonthYear},
	{regexp.MustCompile(`\b(\d{1,2})\.(\d{1,2})\.(\d{4})\b`), dayMonthYear},
	{regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`), yearMonthDay},
	{polishDateRe, polishDayMonthYear},
}

func dateFromText(doc *goquery.Document) (time.Time, bool) {
	return dateInText(visibleText(doc))
}

func dateInText(text string) (time.Time, bool) {
	for _, p := range textDatePatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if t, ok := p.build(m); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func dayMonthYear(m []string) (time.Time, bool) {
	d, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	y, _ := strconv.Atoi(m[3])
	return calendarDate(y, time.Month(mo), d)
}

func yearMonthDay(m []string) (time.Time, bool) {
	y, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	d, _ := strconv.Atoi(m[3])
	return calendarDate(y, time.Month(mo), d)
}

func polishDayMonthYear(m []string) (time.Time, bool) {
	d, _ := strconv.Atoi(m[1])
	mo, ok := polishMonths[strings.ToLower(m[2])]
	if !ok {
		return time.Time{}, false
	}
	y, _ := strconv.Atoi(m[3])
	return calendarDate(y, mo, d)
}

// calendarDate rejects dates that time.Date would silently normalize.
func calendarDate(y int, m time.Month, d int) (time.Time, bool) {
	if m < time.January || m > time.December || d < 1 {
		return time.Time{}, false
	}
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if t.Month() != m || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

// fallbackLayouts cover inputs dateparse rejects.
var fallbackLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02.01.2006",
	"2.1.2006",
	"02/01/2006",
	"2 January 2006",
	"2 Jan 2006",
	"Mon, 02 Jan 2006 15:04:05 -0700",
	"2006/01/02",
}

// ParseDate parses a machine-oriented date string (ISO 8601, RFC 1123 and
// similar). Ambiguous numeric dates are read month-first.
func ParseDate(s string) (time.Time, error) {
	return parseFlexible(s, true)
}

// ParseDayFirst parses a human-oriented date string, reading ambiguous
// numeric dates day-first. Polish long-form dates are accepted.
func ParseDayFirst(s string) (time.Time, error) {
	return parseFlexible(s, false)
}

func parseFlexible(s string, monthFirst bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if !monthFirst {
		if t, ok := dateInText(s); ok {
			return t, nil
		}
	}
	if t, err := parseAny(s, monthFirst); err == nil {
		return t, nil
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if m := polishDateRe.FindStringSubmatch(s); m != nil {
		if t, ok := polishDayMonthYear(m); ok {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// parseAny guards against panics dateparse can raise on odd input.
func parseAny(s string, monthFirst bool) (t time.Time, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dateparse %q: %v", s, r)
		}
	}()
	return dateparse.ParseAny(s, dateparse.PreferMonthFirst(monthFirst))
}

// DateFromFeedItem resolves a feed entry's date from its published, updated
// and created fields in that order, then from the parser's pre-parsed times.
func DateFromFeedItem(item *gofeed.Item) (time.Time, bool) {
	candidates := []string{item.Published, item.Updated, item.Custom["created"]}
	if item.DublinCoreExt != nil {
		candidates = append(candidates, item.DublinCoreExt.Date...)
	}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if t, err := ParseDate(c); err == nil {
			return t, true
		}
	}
	for _, t := range []*time.Time{item.PublishedParsed, item.UpdatedParsed} {
		if t != nil && !t.IsZero() {
			return *t, true
		}
	}
	return time.Time{}, false
}
