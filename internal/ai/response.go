package ai

import (
	"encoding/json"
	"strings"

	"github.com/IshaanNene/NewsGoat/internal/types"
)

const maxFallbackTitle = 200

// Enrichment is a rewritten title and body.
type Enrichment struct {
	Title string `json:"gemini_tytul"`
	Body  string `json:"gemini_tresc"`
}

type enrichmentPayload struct {
	Title    string `json:"gemini_tytul"`
	AltTitle string `json:"gemini_title"`
	Body     string `json:"gemini_tresc"`
	AltBody  string `json:"gemini_content"`
}

// ParseEnrichment extracts a title and body from a model reply. It strips
// markdown fences, then reads the outermost JSON object, then falls back to
// treating the first non-empty line as the title and the remaining lines as
// paragraphs. Fields found by an earlier step are kept by later ones.
func ParseEnrichment(raw string) (Enrichment, error) {
	text := stripFences(strings.TrimSpace(raw))

	var out Enrichment
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		var p enrichmentPayload
		if err := json.Unmarshal([]byte(text[start:end+1]), &p); err == nil {
			out.Title = strings.TrimSpace(firstNonEmpty(p.Title, p.AltTitle))
			out.Body = strings.TrimSpace(firstNonEmpty(p.Body, p.AltBody))
		}
	}

	if out.Title == "" || out.Body == "" {
		var lines []string
		for _, ln := range strings.Split(text, "\n") {
			if ln = strings.TrimSpace(ln); ln != "" {
				lines = append(lines, ln)
			}
		}
		if len(lines) > 0 {
			if out.Title == "" {
				out.Title = truncateRunes(lines[0], maxFallbackTitle)
			}
			if out.Body == "" {
				out.Body = strings.Join(lines[1:], "\n\n")
			}
		}
	}

	if out.Title == "" || out.Body == "" {
		return Enrichment{}, types.ErrUnparseableReply
	}
	return out, nil
}

// stripFences removes a leading ```lang line and a trailing ``` line. A reply
// fenced on a single line loses only the backtick runs.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}

	lines := strings.Split(s, "\n")
	if len(lines) == 1 {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		return strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}

	lines = lines[1:]
	if n := len(lines); n > 0 && strings.HasPrefix(strings.TrimSpace(lines[n-1]), "```") {
		lines = lines[:n-1]
	}
	return strings.Join(lines, "\n")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
