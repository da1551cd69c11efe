// Package result models search hits, facets, and result pages.
package result

import "time"

// Item is a single search hit.
type Item struct {
	documentID string
	score      float64
	highlights []string
}

// NewItem creates a search hit. Score is non-negative and comparable only
// with scores produced by the same search mode.
func NewItem(documentID string, score float64, highlights []string) Item {
	return Item{documentID: documentID, score: score, highlights: highlights}
}

// DocumentID returns the matched document identifier.
func (i *Item) DocumentID() string { return i.documentID }

// Score returns the relevance score.
func (i *Item) Score() float64 { return i.score }

// Highlights returns the highlighted snippets, best field first.
func (i *Item) Highlights() []string { return i.highlights }

// FacetBucket is a count of candidates carrying one value of a facet field.
type FacetBucket struct {
	Field string
	Value string
	Count int
}

// Page is one page of a result set plus the set-wide aggregates.
// TotalCount and Facets are computed over the filtered, unpaginated
// candidate set, so they are identical for every page of the same query.
type Page struct {
	Items       []Item
	TotalCount  int
	Facets      []FacetBucket
	Approximate bool
	NextCursor  string
	Duration    time.Duration
	Suggestions []string
}
