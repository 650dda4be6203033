package types

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// dateLayout is the wire form of a publication date.
const dateLayout = "2006-01-02"

// Date is a calendar date without a time of day.
type Date struct {
	time.Time
}

// NewDate truncates t to its own calendar date.
func NewDate(t time.Time) Date {
	return Date{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) String() string { return d.Format(dateLayout) }

// MarshalJSON encodes the date as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts "YYYY-MM-DD" or a full RFC 3339 timestamp.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", s, err)
	}
	*d = NewDate(t)
	return nil
}

// NewsItem is one accepted news record. JSON keys follow the established output
// contract consumed by the front-end.
type NewsItem struct {
	Title         string `json:"tytuł"`
	Body          string `json:"treść"`
	Link          string `json:"link"`
	Published     *Date  `json:"data"`
	EnrichedTitle string `json:"gemini_tytul,omitempty"`
	EnrichedBody  string `json:"gemini_tresc,omitempty"`

	// Source is the crawl source name that produced the item.
	Source string `json:"-"`

	// FromFeed marks items built from feed entries; they carry no body floor.
	FromFeed bool `json:"-"`
}

// NewNewsItem validates and builds an item. Titles with fewer than two
// whitespace-separated words are rejected. The link fragment is dropped.
func NewNewsItem(title, body, link string, published time.Time) (*NewsItem, error) {
	title = strings.TrimSpace(title)
	if len(strings.Fields(title)) <= 1 {
		return nil, fmt.Errorf("%w: %q", ErrSingleWordTitle, title)
	}
	if link == "" {
		return nil, ErrInvalidURL
	}
	if u, err := url.Parse(link); err == nil {
		u.Fragment = ""
		link = u.String()
	}

	item := &NewsItem{
		Title: title,
		Body:  strings.TrimSpace(body),
		Link:  link,
	}
	if !published.IsZero() {
		d := NewDate(published)
		item.Published = &d
	}
	return item, nil
}

// IsEnriched reports whether both enriched fields are already populated.
func (n *NewsItem) IsEnriched() bool {
	return n.EnrichedTitle != "" && n.EnrichedBody != ""
}

// SetEnrichment stores a rewritten title and body.
func (n *NewsItem) SetEnrichment(title, body string) {
	n.EnrichedTitle = title
	n.EnrichedBody = body
}
