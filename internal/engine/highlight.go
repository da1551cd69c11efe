package engine

import (
	"sort"
	"strings"

	"github.com/vanban-cloud/docdex/internal/analysis"
	"github.com/vanban-cloud/docdex/internal/domain"
)

// Snippet defaults.
const (
	DefaultSnippetWindow    = 30 // tokens of surrounding context
	DefaultSnippetsPerField = 3
)

// Highlighter extracts surrounding-context snippets with matched terms
// wrapped in <mark> tags.
type Highlighter struct {
	window   int
	perField int
}

// NewHighlighter creates a highlighter. Zero values take the defaults.
func NewHighlighter(window, perField int) *Highlighter {
	if window <= 0 {
		window = DefaultSnippetWindow
	}
	if perField <= 0 {
		perField = DefaultSnippetsPerField
	}
	return &Highlighter{window: window, perField: perField}
}

// Highlight extracts snippets for one candidate, best-scoring field first.
// terms are the matched index terms; phrase keys are split back into their
// component terms for marking.
func (h *Highlighter) Highlight(doc *domain.Document, c *Candidate, scorer *Scorer) []string {
	termSet := make(map[string]struct{})
	for key := range c.Matches {
		for _, t := range strings.Fields(key) {
			termSet[t] = struct{}{}
		}
	}
	if len(termSet) == 0 {
		return nil
	}

	fields := matchedFields(c)
	sort.Slice(fields, func(i, j int) bool {
		si, sj := scorer.FieldScore(c, fields[i]), scorer.FieldScore(c, fields[j])
		if si != sj {
			return si > sj
		}
		return fields[i] < fields[j]
	})

	var snippets []string
	for _, field := range fields {
		snippets = append(snippets, h.fieldSnippets(doc.Field(field), termSet)...)
	}
	return snippets
}

// HighlightTerms extracts snippets for the given plain terms across all
// searchable fields, used by the semantic path where no candidate match
// structure exists.
func (h *Highlighter) HighlightTerms(doc *domain.Document, terms []string) []string {
	termSet := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		termSet[t] = struct{}{}
	}
	if len(termSet) == 0 {
		return nil
	}

	var snippets []string
	for _, field := range []string{domain.FieldTitle, domain.FieldSummary, domain.FieldContent, domain.FieldSubject} {
		snippets = append(snippets, h.fieldSnippets(doc.Field(field), termSet)...)
	}
	return snippets
}

// fieldSnippets extracts up to perField non-overlapping windows around
// matches in one field's text.
func (h *Highlighter) fieldSnippets(text string, terms map[string]struct{}) []string {
	if text == "" {
		return nil
	}
	tokens := analysis.Tokenize(text)

	matched := make([]bool, len(tokens))
	for i, tok := range tokens {
		if _, ok := terms[tok.Term]; ok {
			matched[i] = true
		}
	}

	var snippets []string
	half := h.window / 2
	next := 0
	for i := 0; i < len(tokens) && len(snippets) < h.perField; i++ {
		if !matched[i] || i < next {
			continue
		}
		from := i - half
		if from < 0 {
			from = 0
		}
		to := i + half
		if to >= len(tokens) {
			to = len(tokens) - 1
		}
		snippets = append(snippets, renderSnippet(text, tokens, matched, from, to))
		next = to + 1
	}
	return snippets
}

// renderSnippet rebuilds the original text span with matched tokens wrapped
// in <mark> tags, keeping the source casing and punctuation.
func renderSnippet(text string, tokens []analysis.Token, matched []bool, from, to int) string {
	var b strings.Builder
	cursor := tokens[from].StartByte
	for i := from; i <= to; i++ {
		tok := tokens[i]
		b.WriteString(text[cursor:tok.StartByte])
		if matched[i] {
			b.WriteString("<mark>")
			b.WriteString(text[tok.StartByte:tok.EndByte])
			b.WriteString("</mark>")
		} else {
			b.WriteString(text[tok.StartByte:tok.EndByte])
		}
		cursor = tok.EndByte
	}
	return strings.TrimSpace(b.String())
}

func matchedFields(c *Candidate) []string {
	seen := make(map[string]struct{})
	for _, m := range c.Matches {
		for f := range m.Fields {
			seen[f] = struct{}{}
		}
	}
	fields := make([]string, 0, len(seen))
	for f := range seen {
		fields = append(fields, f)
	}
	return fields
}
