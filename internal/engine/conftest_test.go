package engine

import (
	"testing"
	"time"

	"github.com/vanban-cloud/docdex/internal/dedup"
	"github.com/vanban-cloud/docdex/internal/domain"
	"github.com/vanban-cloud/docdex/internal/domain/search/filter"
	"github.com/vanban-cloud/docdex/internal/index"
)

// The fixture corpus. Titles and content are chosen so that term, phrase,
// proximity, wildcard, and fuzzy queries each have known answers.
var fixtureDocs = []struct {
	id        string
	title     string
	summary   string
	content   string
	category  string
	tags      []string
	metadata  map[string]string
	createdAt time.Time
	updatedAt time.Time
}{
	{
		id:      "luat-01",
		title:   "Luật Thuế thu nhập doanh nghiệp",
		summary: "Quy định về thuế thu nhập đối với doanh nghiệp",
		content: "Luật này quy định về người nộp thuế, thu nhập chịu thuế, " +
			"thu nhập được miễn thuế và căn cứ tính thuế thu nhập doanh nghiệp.",
		category: "tax",
		tags:     []string{"thuế", "doanh nghiệp"},
		metadata: map[string]string{
			"document_type":  "law",
			"issuing_agency": "Quốc hội",
			"subject":        "thuế thu nhập",
			"issue_date":     "2020-06-17",
			"effective_date": "2021-01-01",
		},
		createdAt: time.Date(2020, 6, 17, 0, 0, 0, 0, time.UTC),
		updatedAt: time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC),
	},
	{
		id:      "nghidinh-02",
		title:   "Nghị định về bồi thường đất đai",
		summary: "Bồi thường, hỗ trợ, tái định cư khi Nhà nước thu hồi đất",
		content: "Nghị định này quy định chi tiết việc bồi thường về đất khi " +
			"Nhà nước thu hồi đất vì mục đích quốc phòng, an ninh.",
		category: "land",
		tags:     []string{"đất đai", "bồi thường"},
		metadata: map[string]string{
			"document_type":  "decree",
			"issuing_agency": "Chính phủ",
			"subject":        "bồi thường đất",
			"issue_date":     "2021-09-01",
			"effective_date": "2021-11-01",
		},
		createdAt: time.Date(2021, 9, 1, 0, 0, 0, 0, time.UTC),
		updatedAt: time.Date(2021, 9, 1, 0, 0, 0, 0, time.UTC),
	},
	{
		id:      "thongtu-03",
		title:   "Thông tư hướng dẫn thuế giá trị gia tăng",
		summary: "Hướng dẫn thi hành về thuế giá trị gia tăng",
		content: "Thông tư này hướng dẫn về đối tượng chịu thuế giá trị gia tăng " +
			"và phương pháp khấu trừ thuế.",
		category: "tax",
		tags:     []string{"thuế"},
		metadata: map[string]string{
			"document_type":  "circular",
			"issuing_agency": "Bộ Tài chính",
			"subject":        "thuế giá trị gia tăng",
			"issue_date":     "2022-02-15",
			"effective_date": "2022-04-01",
		},
		createdAt: time.Date(2022, 2, 15, 0, 0, 0, 0, time.UTC),
		updatedAt: time.Date(2022, 2, 15, 0, 0, 0, 0, time.UTC),
	},
	{
		id:      "quyetdinh-04",
		title:   "Quyết định phê duyệt quy hoạch sử dụng đất",
		summary: "",
		content: "Phê duyệt quy hoạch sử dụng đất quốc gia thời kỳ 2021-2030, " +
			"tầm nhìn đến năm 2050.",
		category: "",
		tags:     nil,
		metadata: map[string]string{
			"document_type":  "decision",
			"issuing_agency": "Thủ tướng Chính phủ",
		},
		createdAt: time.Date(2022, 2, 20, 0, 0, 0, 0, time.UTC),
		updatedAt: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
	},
}

// newTestIndex builds a populated store for engine tests.
func newTestIndex(t *testing.T) *index.Store {
	t.Helper()
	s := index.NewStore(index.Config{Shards: 4})
	for _, d := range fixtureDocs {
		doc, err := domain.New(
			d.id, d.title, d.summary, d.content, d.category,
			d.tags, d.metadata, nil, d.createdAt, d.updatedAt,
		)
		if err != nil {
			t.Fatalf("domain.New(%s): %v", d.id, err)
		}
		if _, err := s.Admit(doc, dedup.Compute(doc.Content())); err != nil {
			t.Fatalf("Admit(%s): %v", d.id, err)
		}
	}
	return s
}

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	return NewExecutor(newTestIndex(t), Config{})
}

func noFilters(t *testing.T) filter.Expression {
	t.Helper()
	e, err := filter.NewExpression()
	if err != nil {
		t.Fatalf("NewExpression: %v", err)
	}
	return e
}

func mustFilters(t *testing.T, conditions ...filter.Condition) filter.Expression {
	t.Helper()
	e, err := filter.NewExpression(conditions...)
	if err != nil {
		t.Fatalf("NewExpression: %v", err)
	}
	return e
}

func mustMatch(t *testing.T, field, value string) filter.Condition {
	t.Helper()
	c, err := filter.NewMatch(field, value)
	if err != nil {
		t.Fatalf("NewMatch: %v", err)
	}
	return c
}

func mustAnyOf(t *testing.T, field string, values []string) filter.Condition {
	t.Helper()
	c, err := filter.NewAnyOf(field, values)
	if err != nil {
		t.Fatalf("NewAnyOf: %v", err)
	}
	return c
}

func mustDateRange(t *testing.T, field string, from, to time.Time) filter.Condition {
	t.Helper()
	c, err := filter.NewDateRange(field, filter.DateRange{From: from, To: to})
	if err != nil {
		t.Fatalf("NewDateRange: %v", err)
	}
	return c
}

// candidateIDs extracts the sorted-insensitive id set of a result.
func candidateIDs(res *Result) map[string]bool {
	ids := make(map[string]bool, len(res.Candidates))
	for id := range res.Candidates {
		ids[id] = true
	}
	return ids
}

func wantIDs(t *testing.T, res *Result, want ...string) {
	t.Helper()
	got := candidateIDs(res)
	if len(got) != len(want) {
		t.Fatalf("got %d candidates %v, want %d %v", len(got), got, len(want), want)
	}
	for _, id := range want {
		if !got[id] {
			t.Fatalf("missing candidate %s, got %v", id, got)
		}
	}
}
