package engine

import (
	"sort"

	"github.com/vanban-cloud/docdex/internal/domain/search/result"
)

// Facet field names reported to callers.
const (
	FacetCategory = "category"
	FacetTag      = "tag"
	FacetMonth    = "month" // date bucket, YYYY-MM of date_created
)

// Facets counts the candidate set by category, tag, and month bucket.
// It runs over the filtered, unpaginated candidates, so bucket counts sum
// consistently regardless of page size or offset: category buckets are
// exclusive and exhaustive and always sum to the candidate count.
func Facets(ids []string, idx Index) []result.FacetBucket {
	categories := make(map[string]int)
	tags := make(map[string]int)
	months := make(map[string]int)

	for _, id := range ids {
		doc, ok := idx.Document(id)
		if !ok {
			continue
		}
		category := doc.Category()
		if category == "" {
			category = "uncategorized"
		}
		categories[category]++
		for _, t := range doc.Tags() {
			tags[t]++
		}
		months[doc.CreatedAt().Format("2006-01")]++
	}

	buckets := make([]result.FacetBucket, 0, len(categories)+len(tags)+len(months))
	buckets = appendBuckets(buckets, FacetCategory, categories)
	buckets = appendBuckets(buckets, FacetTag, tags)
	buckets = appendBuckets(buckets, FacetMonth, months)
	return buckets
}

// appendBuckets emits one field's buckets ordered by count descending,
// value ascending.
func appendBuckets(buckets []result.FacetBucket, field string, counts map[string]int) []result.FacetBucket {
	start := len(buckets)
	for value, count := range counts {
		buckets = append(buckets, result.FacetBucket{Field: field, Value: value, Count: count})
	}
	group := buckets[start:]
	sort.Slice(group, func(i, j int) bool {
		if group[i].Count != group[j].Count {
			return group[i].Count > group[j].Count
		}
		return group[i].Value < group[j].Value
	})
	return buckets
}
