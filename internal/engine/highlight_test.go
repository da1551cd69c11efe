package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/vanban-cloud/docdex/internal/domain"
	"github.com/vanban-cloud/docdex/internal/query"
)

func TestHighlight_MarksMatchesKeepingCasing(t *testing.T) {
	idx := newTestIndex(t)
	e := NewExecutor(idx, Config{})
	h := NewHighlighter(0, 0)
	s := NewScorer(nil)

	res, err := e.Execute(context.Background(), &query.Term{Term: "thuế"}, noFilters(t))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	doc, ok := idx.Document("luat-01")
	if !ok {
		t.Fatal("document missing from index")
	}

	snippets := h.Highlight(&doc, res.Candidates["luat-01"], s)
	if len(snippets) == 0 {
		t.Fatal("no snippets returned")
	}
	// The title field scores highest, so its snippet leads, and the
	// original capitalization survives inside the mark.
	if snippets[0] != "Luật <mark>Thuế</mark> thu nhập doanh nghiệp" {
		t.Errorf("first snippet = %q", snippets[0])
	}
	for _, sn := range snippets {
		if !strings.Contains(sn, "<mark>") {
			t.Errorf("snippet without a mark: %q", sn)
		}
	}
}

func TestHighlight_PhraseTermsMarkedIndividually(t *testing.T) {
	idx := newTestIndex(t)
	e := NewExecutor(idx, Config{})
	h := NewHighlighter(0, 0)
	s := NewScorer(nil)

	node := &query.Phrase{Terms: []string{"thu", "hồi", "đất"}}
	res, err := e.Execute(context.Background(), node, noFilters(t))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	doc, ok := idx.Document("nghidinh-02")
	if !ok {
		t.Fatal("document missing from index")
	}

	snippets := h.Highlight(&doc, res.Candidates["nghidinh-02"], s)
	if len(snippets) == 0 {
		t.Fatal("no snippets returned")
	}
	joined := strings.Join(snippets, " ")
	for _, term := range []string{"thu", "hồi", "đất"} {
		if !strings.Contains(joined, "<mark>"+term+"</mark>") {
			t.Errorf("phrase term %q not marked in %q", term, joined)
		}
	}
}

func TestHighlight_PerFieldCap(t *testing.T) {
	idx := newTestIndex(t)
	e := NewExecutor(idx, Config{})
	// A two-token window keeps the four content occurrences of thuế in
	// luat-01 from collapsing into one snippet.
	h := NewHighlighter(2, 1)
	s := NewScorer(nil)

	res, err := e.Execute(context.Background(), &query.Term{Term: "thuế"}, noFilters(t))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	doc, ok := idx.Document("luat-01")
	if !ok {
		t.Fatal("document missing from index")
	}

	snippets := h.Highlight(&doc, res.Candidates["luat-01"], s)
	// One snippet per matched field at most: title, summary, content,
	// metadata.subject.
	if len(snippets) > 4 {
		t.Errorf("got %d snippets, want at most one per field", len(snippets))
	}
}

func TestHighlight_NoMatchesNoSnippets(t *testing.T) {
	idx := newTestIndex(t)
	h := NewHighlighter(0, 0)
	s := NewScorer(nil)

	doc, ok := idx.Document("luat-01")
	if !ok {
		t.Fatal("document missing from index")
	}
	c := &Candidate{DocID: "luat-01", Matches: map[string]*TermMatch{}, MinDistance: -1}
	if snippets := h.Highlight(&doc, c, s); snippets != nil {
		t.Errorf("snippets = %v, want nil for matchless candidate", snippets)
	}
}

func TestHighlightTerms_SemanticPath(t *testing.T) {
	idx := newTestIndex(t)
	h := NewHighlighter(0, 0)

	doc, ok := idx.Document("thongtu-03")
	if !ok {
		t.Fatal("document missing from index")
	}
	snippets := h.HighlightTerms(&doc, []string{"thuế", "khấu"})
	if len(snippets) == 0 {
		t.Fatal("no snippets returned")
	}
	joined := strings.Join(snippets, " ")
	if !strings.Contains(joined, "<mark>thuế</mark>") {
		t.Errorf("thuế not marked in %q", joined)
	}
	if !strings.Contains(joined, "<mark>khấu</mark>") {
		t.Errorf("khấu not marked in %q", joined)
	}
}

func TestHighlightTerms_Empty(t *testing.T) {
	idx := newTestIndex(t)
	h := NewHighlighter(0, 0)

	doc, ok := idx.Document("luat-01")
	if !ok {
		t.Fatal("document missing from index")
	}
	if snippets := h.HighlightTerms(&doc, nil); snippets != nil {
		t.Errorf("snippets = %v, want nil for empty term list", snippets)
	}
}

func TestHighlight_FieldFilteredMatchStaysInField(t *testing.T) {
	idx := newTestIndex(t)
	e := NewExecutor(idx, Config{})
	h := NewHighlighter(0, 0)
	s := NewScorer(nil)

	node := &query.FieldFilter{Field: domain.FieldTitle, Value: "bồi"}
	res, err := e.Execute(context.Background(), node, noFilters(t))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	doc, ok := idx.Document("nghidinh-02")
	if !ok {
		t.Fatal("document missing from index")
	}

	snippets := h.Highlight(&doc, res.Candidates["nghidinh-02"], s)
	if len(snippets) == 0 {
		t.Fatal("no snippets returned")
	}
	if !strings.Contains(snippets[0], "<mark>bồi</mark>") {
		t.Errorf("first snippet = %q, want a marked title match", snippets[0])
	}
}
