// Package engine compiles a query AST plus structured filters into an
// execution against the index store and turns the surviving candidates into
// a ranked, highlighted, facet-annotated result page.
//
// The pipeline has named stages: filter → resolve → score → facet →
// paginate. Each stage is deterministic over an unchanged index snapshot.
package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/vanban-cloud/docdex/internal/domain"
	"github.com/vanban-cloud/docdex/internal/domain/search/filter"
	"github.com/vanban-cloud/docdex/internal/index"
	"github.com/vanban-cloud/docdex/internal/query"
)

// DefaultExpansionCap bounds wildcard/fuzzy term expansion.
const DefaultExpansionCap = 64

// Index is the store contract the executor consumes.
type Index interface {
	Lookup(term string) []index.Posting
	Terms() []string
	Document(id string) (domain.Document, bool)
	ScanDocuments(fn func(doc *domain.Document) bool)
	Len() int
}

// TermMatch records how one matched term (or phrase) hits a document.
type TermMatch struct {
	Fields  map[string]int // field → occurrence count
	Penalty float64        // expansion looseness scale, 1 for exact matches
}

// Candidate is a document surviving text-match and filter resolution,
// prior to scoring.
type Candidate struct {
	DocID       string
	Matches     map[string]*TermMatch
	MinDistance int // minimum proximity distance found, -1 when not constrained
}

// Result is the resolved candidate set.
type Result struct {
	Candidates map[string]*Candidate
	// Approximate marks a truncated wildcard/fuzzy expansion: the result is
	// incomplete but not an error.
	Approximate bool
}

// Config tunes the executor.
type Config struct {
	ExpansionCap int
}

// Executor resolves ASTs bottom-up against the index store.
type Executor struct {
	idx          Index
	expansionCap int
}

// NewExecutor creates an executor over the given index.
func NewExecutor(idx Index, cfg Config) *Executor {
	cap := cfg.ExpansionCap
	if cap <= 0 {
		cap = DefaultExpansionCap
	}
	return &Executor{idx: idx, expansionCap: cap}
}

// Universe returns the ids of all documents passing the structured filters.
// Filters narrow, never widen, the text-match candidates; an empty
// expression admits the whole corpus.
func (e *Executor) Universe(ctx context.Context, filters filter.Expression) (map[string]struct{}, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	allowed := make(map[string]struct{})
	e.idx.ScanDocuments(func(doc *domain.Document) bool {
		if matchesFilters(doc, filters) {
			allowed[doc.ID()] = struct{}{}
		}
		return true
	})
	return allowed, nil
}

// Execute resolves the AST into a candidate set. A nil AST yields an empty
// set, not an error. Cancellation and deadline are checked between node
// evaluations; the executor abandons remaining work and returns ErrTimeout
// or ErrCancelled rather than a silently truncated result.
func (e *Executor) Execute(ctx context.Context, node query.Node, filters filter.Expression) (*Result, error) {
	allowed, err := e.Universe(ctx, filters)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return &Result{Candidates: map[string]*Candidate{}}, nil
	}
	res := &Result{}
	candidates, err := e.resolve(ctx, node, allowed, res)
	if err != nil {
		return nil, err
	}
	res.Candidates = candidates
	return res, nil
}

// resolve walks the AST bottom-up. Independent children of And/Or are
// resolved concurrently and merged in child order, so the outcome stays
// deterministic.
func (e *Executor) resolve(
	ctx context.Context, node query.Node, allowed map[string]struct{}, res *Result,
) (map[string]*Candidate, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	switch n := node.(type) {
	case *query.Term:
		return e.resolveTerm(n.Term, "", 1, allowed), nil

	case *query.FieldFilter:
		return e.resolveTerm(n.Value, n.Field, 1, allowed), nil

	case *query.Phrase:
		return e.resolvePhrase(n, allowed), nil

	case *query.Proximity:
		return e.resolveProximity(n, allowed), nil

	case *query.Wildcard:
		return e.resolveWildcard(ctx, n, allowed, res)

	case *query.Fuzzy:
		return e.resolveFuzzy(ctx, n, allowed, res)

	case *query.And:
		children, err := e.resolveChildren(ctx, n.Children, allowed, res)
		if err != nil {
			return nil, err
		}
		return intersect(children), nil

	case *query.Or:
		children, err := e.resolveChildren(ctx, n.Children, allowed, res)
		if err != nil {
			return nil, err
		}
		return union(children), nil

	case *query.Not:
		child, err := e.resolve(ctx, n.Child, allowed, res)
		if err != nil {
			return nil, err
		}
		return difference(allowed, child), nil

	default:
		// The node set is closed; a new kind must be wired here explicitly.
		return nil, domain.ErrInvalidArgument
	}
}

// resolveChildren evaluates independent AST branches in parallel.
func (e *Executor) resolveChildren(
	ctx context.Context, children []query.Node, allowed map[string]struct{}, res *Result,
) ([]map[string]*Candidate, error) {
	results := make([]map[string]*Candidate, len(children))
	errs := make([]error, len(children))

	var wg sync.WaitGroup
	for i, child := range children {
		wg.Add(1)
		go func(i int, child query.Node) {
			defer wg.Done()
			results[i], errs[i] = e.resolve(ctx, child, allowed, res)
		}(i, child)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// resolveTerm resolves one exact term, optionally restricted to a field.
func (e *Executor) resolveTerm(
	term, onlyField string, penalty float64, allowed map[string]struct{},
) map[string]*Candidate {
	out := make(map[string]*Candidate)
	for _, p := range e.idx.Lookup(term) {
		if _, ok := allowed[p.DocID]; !ok {
			continue
		}
		fields := make(map[string]int)
		for f, positions := range p.Fields {
			if onlyField != "" && f != onlyField {
				continue
			}
			fields[f] = len(positions)
		}
		if len(fields) == 0 {
			continue
		}
		out[p.DocID] = &Candidate{
			DocID:       p.DocID,
			Matches:     map[string]*TermMatch{term: {Fields: fields, Penalty: penalty}},
			MinDistance: -1,
		}
	}
	return out
}

// resolvePhrase admits documents where the terms appear consecutively in
// order within one field, counting whole-phrase occurrences.
func (e *Executor) resolvePhrase(n *query.Phrase, allowed map[string]struct{}) map[string]*Candidate {
	postings := e.lookupAll(n.Terms, allowed)
	if postings == nil {
		return map[string]*Candidate{}
	}

	out := make(map[string]*Candidate)
	phraseKey := strings.Join(n.Terms, " ")
	for docID, perTerm := range postings {
		fields := make(map[string]int)
		for field, first := range perTerm[0] {
			count := 0
			for _, start := range first {
				if followsConsecutively(perTerm, field, start) {
					count++
				}
			}
			if count > 0 {
				fields[field] = count
			}
		}
		if len(fields) > 0 {
			out[docID] = &Candidate{
				DocID:       docID,
				Matches:     map[string]*TermMatch{phraseKey: {Fields: fields, Penalty: 1}},
				MinDistance: -1,
			}
		}
	}
	return out
}

// resolveProximity admits documents containing all terms where the minimum
// pairwise token distance within one field is at most MaxDistance.
func (e *Executor) resolveProximity(n *query.Proximity, allowed map[string]struct{}) map[string]*Candidate {
	postings := e.lookupAll(n.Terms, allowed)
	if postings == nil {
		return map[string]*Candidate{}
	}

	out := make(map[string]*Candidate)
	for docID, perTerm := range postings {
		best := -1
		for i := 0; i < len(perTerm); i++ {
			for j := i + 1; j < len(perTerm); j++ {
				if d := minFieldDistance(perTerm[i], perTerm[j]); d >= 0 && (best < 0 || d < best) {
					best = d
				}
			}
		}
		if best < 0 || best > n.MaxDistance {
			continue
		}
		matches := make(map[string]*TermMatch, len(n.Terms))
		for i, term := range n.Terms {
			fields := make(map[string]int)
			for f, positions := range perTerm[i] {
				fields[f] = len(positions)
			}
			matches[term] = &TermMatch{Fields: fields, Penalty: 1}
		}
		out[docID] = &Candidate{DocID: docID, Matches: matches, MinDistance: best}
	}
	return out
}

// lookupAll returns per-document, per-term field position maps for documents
// in the allowed set containing every term. Nil when any term has no
// postings at all.
func (e *Executor) lookupAll(terms []string, allowed map[string]struct{}) map[string][]map[string][]int {
	docs := make(map[string][]map[string][]int)
	for i, term := range terms {
		postings := e.idx.Lookup(term)
		if len(postings) == 0 {
			return nil
		}
		for _, p := range postings {
			if _, ok := allowed[p.DocID]; !ok {
				continue
			}
			perTerm := docs[p.DocID]
			if perTerm == nil {
				if i > 0 {
					continue // missed an earlier term
				}
				perTerm = make([]map[string][]int, len(terms))
				docs[p.DocID] = perTerm
			}
			perTerm[i] = p.Fields
		}
	}
	for docID, perTerm := range docs {
		for _, fields := range perTerm {
			if fields == nil {
				delete(docs, docID)
				break
			}
		}
	}
	return docs
}

// followsConsecutively checks that terms 1..n-1 appear at start+1..start+n-1
// in the given field.
func followsConsecutively(perTerm []map[string][]int, field string, start int) bool {
	for k := 1; k < len(perTerm); k++ {
		if !containsPosition(perTerm[k][field], start+k) {
			return false
		}
	}
	return true
}

func containsPosition(positions []int, target int) bool {
	for _, p := range positions {
		if p == target {
			return true
		}
		if p > target {
			return false
		}
	}
	return false
}

// minFieldDistance computes the minimum absolute position distance between
// two occurrence maps, comparing positions within the same field only.
func minFieldDistance(a, b map[string][]int) int {
	best := -1
	for field, pa := range a {
		pb, ok := b[field]
		if !ok {
			continue
		}
		// Both position lists are ascending; a linear merge finds the
		// minimum gap without the quadratic pair walk.
		i, j := 0, 0
		for i < len(pa) && j < len(pb) {
			d := pa[i] - pb[j]
			if d < 0 {
				d = -d
			}
			if best < 0 || d < best {
				best = d
			}
			if pa[i] < pb[j] {
				i++
			} else {
				j++
			}
		}
	}
	return best
}

// intersect merges And children: a document survives only if present in
// every child, accumulating the matches of all of them.
func intersect(children []map[string]*Candidate) map[string]*Candidate {
	if len(children) == 0 {
		return map[string]*Candidate{}
	}
	out := make(map[string]*Candidate)
	for docID, c := range children[0] {
		merged := cloneCandidate(c)
		ok := true
		for _, other := range children[1:] {
			oc, present := other[docID]
			if !present {
				ok = false
				break
			}
			mergeInto(merged, oc)
		}
		if ok {
			out[docID] = merged
		}
	}
	return out
}

// union merges Or children.
func union(children []map[string]*Candidate) map[string]*Candidate {
	out := make(map[string]*Candidate)
	for _, child := range children {
		for docID, c := range child {
			if existing, ok := out[docID]; ok {
				mergeInto(existing, c)
			} else {
				out[docID] = cloneCandidate(c)
			}
		}
	}
	return out
}

// difference returns allowed \ child. The surviving documents carry no
// matches; a pure NOT query scores zero everywhere.
func difference(allowed map[string]struct{}, child map[string]*Candidate) map[string]*Candidate {
	out := make(map[string]*Candidate)
	for docID := range allowed {
		if _, excluded := child[docID]; excluded {
			continue
		}
		out[docID] = &Candidate{DocID: docID, Matches: map[string]*TermMatch{}, MinDistance: -1}
	}
	return out
}

func cloneCandidate(c *Candidate) *Candidate {
	matches := make(map[string]*TermMatch, len(c.Matches))
	for term, m := range c.Matches {
		fields := make(map[string]int, len(m.Fields))
		for f, n := range m.Fields {
			fields[f] = n
		}
		matches[term] = &TermMatch{Fields: fields, Penalty: m.Penalty}
	}
	return &Candidate{DocID: c.DocID, Matches: matches, MinDistance: c.MinDistance}
}

// mergeInto folds other's matches into dst. A term matched by several
// branches keeps the looser penalty's higher score contribution only once.
func mergeInto(dst, other *Candidate) {
	for term, m := range other.Matches {
		if existing, ok := dst.Matches[term]; ok {
			if m.Penalty > existing.Penalty {
				existing.Penalty = m.Penalty
			}
			continue
		}
		fields := make(map[string]int, len(m.Fields))
		for f, n := range m.Fields {
			fields[f] = n
		}
		dst.Matches[term] = &TermMatch{Fields: fields, Penalty: m.Penalty}
	}
	if other.MinDistance >= 0 && (dst.MinDistance < 0 || other.MinDistance < dst.MinDistance) {
		dst.MinDistance = other.MinDistance
	}
}

// matchesFilters applies the structured pre-filters to one document.
func matchesFilters(doc *domain.Document, filters filter.Expression) bool {
	for _, c := range filters.Conditions() {
		switch {
		case c.Match() != "":
			if !matchField(doc, c.Field(), c.Match()) {
				return false
			}
		case c.AnyOf() != nil:
			if !hasAnyTag(doc.Tags(), c.AnyOf()) {
				return false
			}
		case c.Range() != nil:
			if !c.Range().Contains(dateField(doc, c.Field())) {
				return false
			}
		}
	}
	return true
}

func matchField(doc *domain.Document, field, value string) bool {
	switch field {
	case filter.FieldCategory:
		return strings.EqualFold(doc.Category(), value)
	case filter.FieldDocumentType:
		return strings.EqualFold(doc.Metadata()["document_type"], value)
	case filter.FieldIssuingAgency:
		// Agency names are long and inconsistently abbreviated; substring
		// match mirrors how the portal filters them.
		return strings.Contains(
			strings.ToLower(doc.Metadata()["issuing_agency"]),
			strings.ToLower(value),
		)
	}
	return false
}

func hasAnyTag(tags, wanted []string) bool {
	for _, w := range wanted {
		for _, t := range tags {
			if strings.EqualFold(t, w) {
				return true
			}
		}
	}
	return false
}

const dateLayout = "2006-01-02"

func dateField(doc *domain.Document, field string) time.Time {
	switch field {
	case filter.FieldDateCreated:
		return doc.CreatedAt()
	case filter.FieldIssueDate:
		t, err := time.Parse(dateLayout, doc.Metadata()["issue_date"])
		if err != nil {
			return time.Time{}
		}
		return t
	case filter.FieldEffectiveDate:
		t, err := time.Parse(dateLayout, doc.Metadata()["effective_date"])
		if err != nil {
			return time.Time{}
		}
		return t
	}
	return time.Time{}
}

// ctxErr maps context termination onto the engine error taxonomy.
func ctxErr(ctx context.Context) error {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return domain.ErrTimeout
	case context.Canceled:
		return domain.ErrCancelled
	}
	return nil
}
