package engine

import (
	"testing"

	"github.com/vanban-cloud/docdex/internal/domain/search/result"
)

func allFixtureIDs() []string {
	ids := make([]string, len(fixtureDocs))
	for i, d := range fixtureDocs {
		ids[i] = d.id
	}
	return ids
}

func bucketsFor(buckets []result.FacetBucket, field string) []result.FacetBucket {
	var out []result.FacetBucket
	for _, b := range buckets {
		if b.Field == field {
			out = append(out, b)
		}
	}
	return out
}

func TestFacets_CategoriesSumToCandidateCount(t *testing.T) {
	idx := newTestIndex(t)

	buckets := Facets(allFixtureIDs(), idx)
	categories := bucketsFor(buckets, FacetCategory)

	total := 0
	for _, b := range categories {
		total += b.Count
	}
	if total != len(fixtureDocs) {
		t.Errorf("category counts sum to %d, want %d", total, len(fixtureDocs))
	}
}

func TestFacets_UncategorizedFallback(t *testing.T) {
	idx := newTestIndex(t)

	buckets := bucketsFor(Facets(allFixtureIDs(), idx), FacetCategory)
	want := []result.FacetBucket{
		{Field: FacetCategory, Value: "tax", Count: 2},
		{Field: FacetCategory, Value: "land", Count: 1},
		{Field: FacetCategory, Value: "uncategorized", Count: 1},
	}
	if len(buckets) != len(want) {
		t.Fatalf("got %d category buckets %v, want %d", len(buckets), buckets, len(want))
	}
	for i, b := range want {
		if buckets[i] != b {
			t.Errorf("bucket[%d] = %+v, want %+v", i, buckets[i], b)
		}
	}
}

func TestFacets_MonthBuckets(t *testing.T) {
	idx := newTestIndex(t)

	buckets := bucketsFor(Facets(allFixtureIDs(), idx), FacetMonth)
	want := []result.FacetBucket{
		{Field: FacetMonth, Value: "2022-02", Count: 2},
		{Field: FacetMonth, Value: "2020-06", Count: 1},
		{Field: FacetMonth, Value: "2021-09", Count: 1},
	}
	if len(buckets) != len(want) {
		t.Fatalf("got %d month buckets %v, want %d", len(buckets), buckets, len(want))
	}
	for i, b := range want {
		if buckets[i] != b {
			t.Errorf("bucket[%d] = %+v, want %+v", i, buckets[i], b)
		}
	}
}

func TestFacets_TagCounts(t *testing.T) {
	idx := newTestIndex(t)

	buckets := bucketsFor(Facets(allFixtureIDs(), idx), FacetTag)
	counts := make(map[string]int, len(buckets))
	for _, b := range buckets {
		counts[b.Value] = b.Count
	}
	if counts["thuế"] != 2 {
		t.Errorf("tag thuế count = %d, want 2", counts["thuế"])
	}
	if counts["bồi thường"] != 1 || counts["đất đai"] != 1 || counts["doanh nghiệp"] != 1 {
		t.Errorf("unexpected tag counts: %v", counts)
	}
	// Highest count first.
	if len(buckets) == 0 || buckets[0].Value != "thuế" {
		t.Errorf("first tag bucket = %+v, want thuế", buckets[0])
	}
}

func TestFacets_SubsetOnly(t *testing.T) {
	idx := newTestIndex(t)

	buckets := bucketsFor(Facets([]string{"luat-01", "thongtu-03"}, idx), FacetCategory)
	if len(buckets) != 1 || buckets[0].Value != "tax" || buckets[0].Count != 2 {
		t.Errorf("subset category buckets = %v, want tax=2 only", buckets)
	}
}

func TestFacets_SkipsUnknownIDs(t *testing.T) {
	idx := newTestIndex(t)

	buckets := Facets([]string{"luat-01", "missing"}, idx)
	categories := bucketsFor(buckets, FacetCategory)
	if len(categories) != 1 || categories[0].Count != 1 {
		t.Errorf("category buckets = %v, want tax=1 only", categories)
	}
}
