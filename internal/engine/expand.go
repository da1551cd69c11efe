package engine

import (
	"context"
	"sort"
	"strings"

	"github.com/vanban-cloud/docdex/internal/analysis"
	"github.com/vanban-cloud/docdex/internal/query"
)

// ctxCheckEvery is how many scanned terms pass between cancellation checks
// inside an expansion loop.
const ctxCheckEvery = 256

// resolveWildcard expands the glob to a bounded set of index terms and
// resolves the expansion as an Or. Truncating the expansion marks the
// result approximate instead of failing.
func (e *Executor) resolveWildcard(
	ctx context.Context, n *query.Wildcard, allowed map[string]struct{}, res *Result,
) (map[string]*Candidate, error) {
	terms := e.idx.Terms()

	// A literal prefix narrows the scan to one lexical range; a leading
	// wildcard forces the full term scan the planner flagged as high cost.
	prefix := literalPrefix(n.Pattern)
	if prefix != "" {
		from := sort.SearchStrings(terms, prefix)
		to := from
		for to < len(terms) && strings.HasPrefix(terms[to], prefix) {
			to++
		}
		terms = terms[from:to]
	}

	foldedPattern := analysis.Fold(n.Pattern)
	var expansions []string
	for i, term := range terms {
		if i%ctxCheckEvery == 0 {
			if err := ctxErr(ctx); err != nil {
				return nil, err
			}
		}
		if matchGlob(n.Pattern, term) || matchGlob(foldedPattern, analysis.Fold(term)) {
			expansions = append(expansions, term)
		}
	}

	if len(expansions) > e.expansionCap {
		expansions = expansions[:e.expansionCap]
		res.Approximate = true
	}

	children := make([]map[string]*Candidate, len(expansions))
	for i, term := range expansions {
		children[i] = e.resolveTerm(term, "", 1, allowed)
	}
	return union(children), nil
}

// resolveFuzzy expands the term to all index terms within MaxEdits edits,
// closest first, and resolves the expansion as an Or. Each expansion's
// score is scaled by 1-(edits/(maxEdits+1)), penalizing looser matches.
func (e *Executor) resolveFuzzy(
	ctx context.Context, n *query.Fuzzy, allowed map[string]struct{}, res *Result,
) (map[string]*Candidate, error) {
	type expansion struct {
		term  string
		edits int
	}

	target := []rune(n.Term)
	foldedTarget := []rune(analysis.Fold(n.Term))

	var expansions []expansion
	for i, term := range e.idx.Terms() {
		if i%ctxCheckEvery == 0 {
			if err := ctxErr(ctx); err != nil {
				return nil, err
			}
		}
		candidate := []rune(term)
		if lengthGap(target, candidate) > n.MaxEdits {
			continue
		}
		d := boundedEditDistance(target, candidate, n.MaxEdits)
		if d < 0 {
			// Users often type unaccented Vietnamese; retry on folded forms.
			d = boundedEditDistance(foldedTarget, []rune(analysis.Fold(term)), n.MaxEdits)
		}
		if d >= 0 {
			expansions = append(expansions, expansion{term: term, edits: d})
		}
	}

	sort.Slice(expansions, func(i, j int) bool {
		if expansions[i].edits != expansions[j].edits {
			return expansions[i].edits < expansions[j].edits
		}
		return expansions[i].term < expansions[j].term
	})
	if len(expansions) > e.expansionCap {
		expansions = expansions[:e.expansionCap]
		res.Approximate = true
	}

	children := make([]map[string]*Candidate, len(expansions))
	for i, x := range expansions {
		penalty := 1 - float64(x.edits)/float64(n.MaxEdits+1)
		children[i] = e.resolveTerm(x.term, "", penalty, allowed)
	}
	return union(children), nil
}

// literalPrefix returns the pattern's literal characters before the first
// wildcard.
func literalPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, "*?"); i >= 0 {
		return pattern[:i]
	}
	return pattern
}

// matchGlob matches s against a pattern of literals, `?` (one rune), and
// `*` (any run of runes). Iterative with single-star backtracking.
func matchGlob(pattern, s string) bool {
	p := []rune(pattern)
	t := []rune(s)

	pi, ti := 0, 0
	star, starTi := -1, 0
	for ti < len(t) {
		switch {
		case pi < len(p) && (p[pi] == '?' || p[pi] == t[ti]):
			pi++
			ti++
		case pi < len(p) && p[pi] == '*':
			star, starTi = pi, ti
			pi++
		case star >= 0:
			starTi++
			pi, ti = star+1, starTi
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}

func lengthGap(a, b []rune) int {
	if len(a) > len(b) {
		return len(a) - len(b)
	}
	return len(b) - len(a)
}

// boundedEditDistance computes the Levenshtein distance between a and b,
// returning -1 as soon as it provably exceeds max. The DP keeps one row;
// max is at most 2, so the band stays tiny.
func boundedEditDistance(a, b []rune, max int) int {
	if lengthGap(a, b) > max {
		return -1
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		cur[0] = i
		rowMin := cur[0]
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			d := prev[j-1] + cost
			if del := prev[j] + 1; del < d {
				d = del
			}
			if ins := cur[j-1] + 1; ins < d {
				d = ins
			}
			cur[j] = d
			if d < rowMin {
				rowMin = d
			}
		}
		if rowMin > max {
			return -1
		}
		prev, cur = cur, prev
	}

	if prev[len(b)] > max {
		return -1
	}
	return prev[len(b)]
}
