package parser

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"

	"github.com/IshaanNene/NewsGoat/internal/config"
)

// Candidate describes one main-content container to try. XPath candidates
// are evaluated with htmlquery; the others match by tag, class pattern
// (searched in each class token) and itemprop.
type Candidate struct {
	Tag      string
	Class    string
	Itemprop string
	XPath    string

	classRe *regexp.Regexp
}

func (c Candidate) String() string {
	switch {
	case c.XPath != "":
		return c.XPath
	case c.Itemprop != "":
		return fmt.Sprintf("%s[itemprop=%s]", c.Tag, c.Itemprop)
	case c.Class != "":
		return c.Tag + "." + c.Class
	default:
		return c.Tag
	}
}

func (c *Candidate) compile() error {
	if c.Class == "" {
		return nil
	}
	re, err := regexp.Compile(c.Class)
	if err != nil {
		return fmt.Errorf("candidate %s: %w", c, err)
	}
	c.classRe = re
	return nil
}

// find returns the first element in doc matching the candidate.
func (c Candidate) find(doc *goquery.Document) *goquery.Selection {
	if c.XPath != "" {
		if len(doc.Nodes) == 0 {
			return nil
		}
		node, err := htmlquery.Query(doc.Nodes[0], c.XPath)
		if err != nil || node == nil {
			return nil
		}
		return doc.FindNodes(node)
	}

	var found *goquery.Selection
	doc.Find(c.Tag).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if c.Itemprop != "" && sel.AttrOr("itemprop", "") != c.Itemprop {
			return true
		}
		if c.classRe != nil && !classTokenMatches(sel, c.classRe) {
			return true
		}
		found = sel
		return false
	})
	return found
}

func classTokenMatches(sel *goquery.Selection, re *regexp.Regexp) bool {
	for _, token := range strings.Fields(sel.AttrOr("class", "")) {
		if re.MatchString(token) {
			return true
		}
	}
	return false
}

// RuleSet is an ordered list of candidates for one domain.
type RuleSet []Candidate

type registryEntry struct {
	domain string
	rules  RuleSet
}

// Registry maps domain matchers to extraction rule sets. The first entry
// whose domain is contained in the page host applies.
type Registry struct {
	mu      sync.RWMutex
	entries []registryEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a rule set for hosts containing domain.
func (r *Registry) Register(domain string, rules RuleSet) error {
	compiled := make(RuleSet, len(rules))
	for i, c := range rules {
		if err := c.compile(); err != nil {
			return err
		}
		compiled[i] = c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, registryEntry{domain: domain, rules: compiled})
	return nil
}

// Resolve returns the rule set for host, if any.
func (r *Registry) Resolve(host string) (RuleSet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if strings.Contains(host, e.domain) {
			return e.rules, true
		}
	}
	return nil, false
}

// Domains lists registered domain matchers in resolution order.
func (r *Registry) Domains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.domain
	}
	return out
}

// builtinRules are the rules for the default sources.
var builtinRules = []registryEntry{
	{"edunews.pl", RuleSet{
		{Tag: "div", Class: "itemFullText"},
		{Tag: "div", Class: "content"},
		{Tag: "div", Class: "article-body"},
		{Tag: "div", Class: "articleContent"},
		{Tag: "div", Itemprop: "articleBody"},
	}},
	{"frse.org.pl", RuleSet{
		{Tag: "div", Class: "field--name-body"},
		{Tag: "div", Class: "node__content"},
		{Tag: "article"},
		{Tag: "div", Class: "entry-content"},
		{Tag: "div", Class: "content"},
	}},
	{"youth.europa.eu", RuleSet{
		{Tag: "div", Class: "field--name-body"},
		{Tag: "article"},
		{Tag: "main"},
	}},
	{"ibe.edu.pl", RuleSet{
		{Tag: "div", Class: "entry-content"},
		{Tag: "article"},
		{Tag: "main"},
	}},
}

// DefaultRegistry returns a registry with the built-in domain rules.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, e := range builtinRules {
		if err := r.Register(e.domain, e.rules); err != nil {
			panic(err)
		}
	}
	return r
}

// NewRegistryFromConfig registers configured rules ahead of the built-in ones.
func NewRegistryFromConfig(cfg *config.ExtractionConfig) (*Registry, error) {
	r := NewRegistry()
	for _, dr := range cfg.Rules {
		rules := make(RuleSet, 0, len(dr.Candidates))
		for _, c := range dr.Candidates {
			rules = append(rules, Candidate{Tag: c.Tag, Class: c.Class, Itemprop: c.Itemprop, XPath: c.XPath})
		}
		if err := r.Register(dr.Domain, rules); err != nil {
			return nil, fmt.Errorf("extraction rules for %s: %w", dr.Domain, err)
		}
	}
	for _, e := range builtinRules {
		if err := r.Register(e.domain, e.rules); err != nil {
			return nil, err
		}
	}
	return r, nil
}
