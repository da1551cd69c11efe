package engine

import (
	"sort"
	"time"

	"github.com/vanban-cloud/docdex/internal/domain"
	"github.com/vanban-cloud/docdex/internal/domain/search/request"
)

// Weights maps a field name to its term-frequency weight. The defaults
// (title=10, summary=5, metadata.subject=3, content=1) are product-tuning
// constants exposed through configuration.
type Weights map[string]float64

// DefaultWeights returns the default field weights.
func DefaultWeights() Weights {
	return Weights{
		domain.FieldTitle:   10,
		domain.FieldSummary: 5,
		domain.FieldSubject: 3,
		domain.FieldContent: 1,
	}
}

func (w Weights) weight(field string) float64 {
	if v, ok := w[field]; ok {
		return v
	}
	return 1
}

// Ranked is a scored candidate in final order. UpdatedAt is part of the
// relevance ordering key and travels with the cursor, so tied scores resume
// without gaps.
type Ranked struct {
	DocID     string
	Score     float64
	UpdatedAt time.Time
}

// Scorer assigns mode-comparable relevance scores.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer with the given field weights.
func NewScorer(weights Weights) *Scorer {
	if weights == nil {
		weights = DefaultWeights()
	}
	return &Scorer{weights: weights}
}

// Score computes the candidate's relevance: the penalty-scaled weighted
// term frequency summed over fields, scaled down by proximity distance when
// the query constrained one.
func (s *Scorer) Score(c *Candidate) float64 {
	total := 0.0
	for _, m := range c.Matches {
		fieldScore := 0.0
		for field, count := range m.Fields {
			fieldScore += s.weights.weight(field) * float64(count)
		}
		total += m.Penalty * fieldScore
	}
	if c.MinDistance >= 0 {
		total *= 1 / (1 + float64(c.MinDistance))
	}
	return total
}

// FieldScore computes the candidate's score within a single field, used to
// pick the best field for snippet extraction.
func (s *Scorer) FieldScore(c *Candidate, field string) float64 {
	total := 0.0
	for _, m := range c.Matches {
		if count, ok := m.Fields[field]; ok {
			total += m.Penalty * s.weights.weight(field) * float64(count)
		}
	}
	return total
}

// Rank scores and orders the candidate set. Relevance order is strictly
// descending by score with ties broken by most recent updated_at and then
// ascending document id, so identical inputs always produce identical
// orderings.
func (s *Scorer) Rank(res *Result, idx Index, order request.Sort) []Ranked {
	ranked := make([]Ranked, 0, len(res.Candidates))
	for _, c := range res.Candidates {
		ranked = append(ranked, Ranked{DocID: c.DocID, Score: s.Score(c)})
	}
	SortRanked(ranked, idx, order)
	return ranked
}

// SortRanked orders scored results per the requested sort. Exported so the
// semantic path can order externally scored candidates the same way.
func SortRanked(ranked []Ranked, idx Index, order request.Sort) {
	switch order {
	case request.SortDateDesc, request.SortDateAsc:
		sort.Slice(ranked, func(i, j int) bool {
			di, _ := idx.Document(ranked[i].DocID)
			dj, _ := idx.Document(ranked[j].DocID)
			if !di.CreatedAt().Equal(dj.CreatedAt()) {
				if order == request.SortDateAsc {
					return di.CreatedAt().Before(dj.CreatedAt())
				}
				return di.CreatedAt().After(dj.CreatedAt())
			}
			return ranked[i].DocID < ranked[j].DocID
		})
	case request.SortTitle:
		sort.Slice(ranked, func(i, j int) bool {
			di, _ := idx.Document(ranked[i].DocID)
			dj, _ := idx.Document(ranked[j].DocID)
			if di.Title() != dj.Title() {
				return di.Title() < dj.Title()
			}
			return ranked[i].DocID < ranked[j].DocID
		})
	default: // relevance
		for i := range ranked {
			if doc, ok := idx.Document(ranked[i].DocID); ok {
				ranked[i].UpdatedAt = doc.UpdatedAt()
			}
		}
		sort.Slice(ranked, func(i, j int) bool {
			return rankedBefore(ranked[i], ranked[j])
		})
	}
}

// rankedBefore reports whether a orders before b in relevance order: score
// descending, then most recent updated_at, then ascending document id. The
// cursor seek uses the same comparator, so resuming from a page boundary
// never skips a document tying the boundary score.
func rankedBefore(a, b Ranked) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.DocID < b.DocID
}
