package engine

import (
	"net/url"
	"slices"
	"strings"
	"sync"
)

// Deduplicator remembers article URLs already claimed during a run so the
// same page reached from two sources is fetched once.
type Deduplicator struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewDeduplicator(capacity int) *Deduplicator {
	return &Deduplicator{seen: make(map[string]struct{}, capacity)}
}

// MarkIfNew records rawURL and reports whether it had not been seen before.
func (d *Deduplicator) MarkIfNew(rawURL string) bool {
	key := CanonicalizeURL(rawURL)

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = struct{}{}
	return true
}

// Count returns the number of distinct URLs claimed.
func (d *Deduplicator) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// trackingParams are query keys added by newsletters and social shares.
var trackingParams = []string{"fbclid", "gclid", "mc_cid", "mc_eid"}

func isTrackingParam(key string) bool {
	k := strings.ToLower(key)
	return strings.HasPrefix(k, "utm_") || slices.Contains(trackingParams, k)
}

// CanonicalizeURL normalizes an article URL into a dedup key. Scheme and host
// are lowercased, the fragment, default port and tracking parameters are
// dropped, remaining query keys are sorted and a trailing slash is trimmed.
func CanonicalizeURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	switch port := u.Port(); {
	case u.Scheme == "http" && port == "80", u.Scheme == "https" && port == "443":
		u.Host = u.Hostname()
	}

	if u.RawQuery != "" {
		params := u.Query()
		for k := range params {
			if isTrackingParam(k) {
				params.Del(k)
			}
		}
		// Encode sorts by key.
		u.RawQuery = params.Encode()
	}

	u.Path = strings.TrimRight(u.Path, "/")
	if u.Path == "" {
		u.Path = "/"
	}
	u.RawPath = ""

	return u.String()
}
