package engine

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/vanban-cloud/docdex/internal/domain"
)

func rankedFixture(n int) []Ranked {
	ranked := make([]Ranked, n)
	for i := range ranked {
		ranked[i] = Ranked{DocID: fmt.Sprintf("doc-%03d", i), Score: float64(n - i)}
	}
	return ranked
}

func TestPaginate_OffsetWindow(t *testing.T) {
	ranked := rankedFixture(10)

	page, next, err := Paginate(ranked, 3, 2, "", 0)
	if err != nil {
		t.Fatalf("Paginate: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("page size = %d, want 3", len(page))
	}
	if page[0].DocID != "doc-002" || page[2].DocID != "doc-004" {
		t.Errorf("page = %v", ids(page))
	}
	if next == "" {
		t.Error("non-final page issued no cursor")
	}
}

func TestPaginate_FinalPageHasNoCursor(t *testing.T) {
	ranked := rankedFixture(5)

	page, next, err := Paginate(ranked, 10, 0, "", 0)
	if err != nil {
		t.Fatalf("Paginate: %v", err)
	}
	if len(page) != 5 {
		t.Fatalf("page size = %d, want 5", len(page))
	}
	if next != "" {
		t.Errorf("final page issued cursor %q", next)
	}
}

func TestPaginate_LimitZeroIsCountOnly(t *testing.T) {
	ranked := rankedFixture(5)

	page, next, err := Paginate(ranked, 0, 0, "", 0)
	if err != nil {
		t.Fatalf("Paginate: %v", err)
	}
	if len(page) != 0 || next != "" {
		t.Errorf("limit=0 returned page %v cursor %q, want empty", ids(page), next)
	}
}

func TestPaginate_OffsetPastEnd(t *testing.T) {
	ranked := rankedFixture(5)

	page, next, err := Paginate(ranked, 3, 100, "", 1000)
	if err != nil {
		t.Fatalf("Paginate: %v", err)
	}
	if len(page) != 0 || next != "" {
		t.Errorf("past-end offset returned page %v cursor %q", ids(page), next)
	}
}

func TestPaginate_DeepOffsetRejected(t *testing.T) {
	ranked := rankedFixture(5)

	_, _, err := Paginate(ranked, 3, 101, "", 100)
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestPaginate_CursorRoundTrip(t *testing.T) {
	ranked := rankedFixture(10)

	first, cursor, err := Paginate(ranked, 4, 0, "", 0)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first) != 4 || cursor == "" {
		t.Fatalf("first page = %v cursor %q", ids(first), cursor)
	}

	second, next, err := Paginate(ranked, 4, 0, cursor, 0)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if second[0].DocID != "doc-004" || len(second) != 4 {
		t.Errorf("second page = %v, want doc-004..doc-007", ids(second))
	}

	third, last, err := Paginate(ranked, 4, 0, next, 0)
	if err != nil {
		t.Fatalf("third page: %v", err)
	}
	if len(third) != 2 || third[0].DocID != "doc-008" {
		t.Errorf("third page = %v, want doc-008 doc-009", ids(third))
	}
	if last != "" {
		t.Errorf("final page issued cursor %q", last)
	}
}

func TestPaginate_CursorBypassesOffsetThreshold(t *testing.T) {
	ranked := rankedFixture(10)

	_, cursor, err := Paginate(ranked, 4, 0, "", 2)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	// Deep paging with a cursor works even past the offset threshold.
	page, _, err := Paginate(ranked, 4, 9999, cursor, 2)
	if err != nil {
		t.Fatalf("cursor page: %v", err)
	}
	if len(page) != 4 || page[0].DocID != "doc-004" {
		t.Errorf("cursor page = %v", ids(page))
	}
}

func TestPaginate_MalformedCursor(t *testing.T) {
	ranked := rankedFixture(5)

	for _, cursor := range []string{"not!base64", "bm90LWpzb24"} {
		_, _, err := Paginate(ranked, 3, 0, cursor, 0)
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("cursor %q: err = %v, want ErrInvalidArgument", cursor, err)
		}
	}
}

func TestPaginate_TiedScoresAcrossPages(t *testing.T) {
	// Relevance order breaks score ties by most recent updated_at first, so
	// the newer document can carry the lexically larger id. Resuming from a
	// cursor on the tie boundary must still reach the older document.
	newer := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	older := time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)
	ranked := []Ranked{
		{DocID: "z-nghidinh", Score: 7, UpdatedAt: newer},
		{DocID: "a-luat", Score: 7, UpdatedAt: older},
	}

	first, cursor, err := Paginate(ranked, 1, 0, "", 0)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first) != 1 || first[0].DocID != "z-nghidinh" {
		t.Fatalf("first page = %v", ids(first))
	}
	if cursor == "" {
		t.Fatal("non-final page issued no cursor")
	}

	second, next, err := Paginate(ranked, 1, 0, cursor, 0)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second) != 1 || second[0].DocID != "a-luat" {
		t.Fatalf("second page = %v, want the tied older document", ids(second))
	}
	if next != "" {
		t.Errorf("final page issued cursor %q", next)
	}
}

func TestPaginate_CursorStableAcrossInserts(t *testing.T) {
	ranked := rankedFixture(6)

	first, cursor, err := Paginate(ranked, 3, 0, "", 0)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if first[2].DocID != "doc-002" {
		t.Fatalf("first page = %v", ids(first))
	}

	// A document admitted mid-pagination that ranks ahead of the cursor
	// must not shift the resume position.
	grown := append([]Ranked{{DocID: "doc-new", Score: 99}}, ranked...)
	second, _, err := Paginate(grown, 3, 0, cursor, 0)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if second[0].DocID != "doc-003" {
		t.Errorf("resume position = %s, want doc-003", second[0].DocID)
	}
}

func TestPaginate_CursorSkipsRemovedBoundary(t *testing.T) {
	ranked := rankedFixture(6)

	_, cursor, err := Paginate(ranked, 3, 0, "", 0)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}

	// The boundary document disappeared; resume continues at the first
	// item ranking after the cursor position.
	shrunk := append(append([]Ranked{}, ranked[:2]...), ranked[3:]...)
	second, _, err := Paginate(shrunk, 3, 0, cursor, 0)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if second[0].DocID != "doc-003" {
		t.Errorf("resume position = %s, want doc-003", second[0].DocID)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	last := Ranked{
		DocID:     "luat-01",
		Score:     22.5,
		UpdatedAt: time.Date(2023, 7, 1, 12, 30, 0, 0, time.UTC),
	}
	got, err := DecodeCursor(EncodeCursor(last))
	if err != nil {
		t.Fatalf("DecodeCursor: %v", err)
	}
	if got.DocID != last.DocID || got.Score != last.Score || !got.UpdatedAt.Equal(last.UpdatedAt) {
		t.Errorf("round trip = %+v, want %+v", got, last)
	}
}
