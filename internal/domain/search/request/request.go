// Package request models a validated search request.
package request

import (
	"fmt"

	"github.com/vanban-cloud/docdex/internal/domain/search/filter"
	"github.com/vanban-cloud/docdex/internal/domain/search/mode"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 4096
	// DefaultLimit applies when the caller does not set a page size.
	DefaultLimit = 10
	// MaxLimit bounds the page size.
	MaxLimit = 100
	// LimitUnset marks an absent limit; zero is a valid count-only request.
	LimitUnset = -1
)

// Sort orders beyond relevance.
type Sort string

// Sort order constants.
const (
	SortRelevance Sort = "relevance"
	SortDateDesc  Sort = "date_desc"
	SortDateAsc   Sort = "date_asc"
	SortTitle     Sort = "title"
)

// IsValid checks if the sort order is supported.
func (s Sort) IsValid() bool {
	switch s {
	case SortRelevance, SortDateDesc, SortDateAsc, SortTitle:
		return true
	}
	return false
}

// Request is a validated search request.
type Request struct {
	query      string
	searchMode mode.Mode
	filters    filter.Expression
	limit      int
	offset     int
	cursor     string
	sort       Sort
}

// New validates and normalizes search parameters.
// Defaults: mode=full_text, limit=10, sort=relevance. limit=0 is a valid
// count-only request (facets and total_count, no items); pass LimitUnset
// for the default. Cursor and offset are mutually exclusive.
func New(
	query string,
	m mode.Mode,
	filters filter.Expression,
	limit, offset int,
	cursor string,
	sort Sort,
) (Request, error) {
	if query == "" {
		return Request{}, fmt.Errorf("query is required")
	}
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("query too long (max %d chars)", MaxQueryLength)
	}
	if m == "" {
		m = mode.FullText
	}
	if !m.IsValid() {
		return Request{}, fmt.Errorf("invalid search mode: %q", m)
	}
	if limit == LimitUnset {
		limit = DefaultLimit
	}
	if limit < 0 {
		return Request{}, fmt.Errorf("limit must be non-negative")
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		return Request{}, fmt.Errorf("offset must be non-negative")
	}
	if cursor != "" && offset > 0 {
		return Request{}, fmt.Errorf("cursor and offset are mutually exclusive")
	}
	if sort == "" {
		sort = SortRelevance
	}
	if !sort.IsValid() {
		return Request{}, fmt.Errorf("invalid sort order: %q", sort)
	}
	if sort != SortRelevance && cursor != "" {
		return Request{}, fmt.Errorf("cursor pagination requires relevance sort")
	}

	return Request{
		query:      query,
		searchMode: m,
		filters:    filters,
		limit:      limit,
		offset:     offset,
		cursor:     cursor,
		sort:       sort,
	}, nil
}

// Query returns the raw query text.
func (r *Request) Query() string { return r.query }

// Mode returns the search strategy.
func (r *Request) Mode() mode.Mode { return r.searchMode }

// Filters returns the structured pre-filters.
func (r *Request) Filters() filter.Expression { return r.filters }

// Limit returns the page size; zero means count-only.
func (r *Request) Limit() int { return r.limit }

// Offset returns the page offset.
func (r *Request) Offset() int { return r.offset }

// Cursor returns the opaque pagination cursor, empty when offset paging.
func (r *Request) Cursor() string { return r.cursor }

// Sort returns the requested sort order.
func (r *Request) Sort() Sort { return r.sort }
