package search

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vanban-cloud/docdex/internal/dedup"
	"github.com/vanban-cloud/docdex/internal/domain"
	"github.com/vanban-cloud/docdex/internal/domain/search/filter"
	"github.com/vanban-cloud/docdex/internal/domain/search/mode"
	"github.com/vanban-cloud/docdex/internal/domain/search/request"
	"github.com/vanban-cloud/docdex/internal/engine"
	"github.com/vanban-cloud/docdex/internal/index"
	"github.com/vanban-cloud/docdex/internal/query"
)

// mockEngine implements the Engine interface for tests. Unset functions
// delegate to a real executor over the test index.
type mockEngine struct {
	real       *engine.Executor
	executeFn  func(ctx context.Context, node query.Node, filters filter.Expression) (*engine.Result, error)
	universeFn func(ctx context.Context, filters filter.Expression) (map[string]struct{}, error)
}

func (m *mockEngine) Execute(ctx context.Context, node query.Node, filters filter.Expression) (*engine.Result, error) {
	if m.executeFn != nil {
		return m.executeFn(ctx, node, filters)
	}
	return m.real.Execute(ctx, node, filters)
}

func (m *mockEngine) Universe(ctx context.Context, filters filter.Expression) (map[string]struct{}, error) {
	if m.universeFn != nil {
		return m.universeFn(ctx, filters)
	}
	return m.real.Universe(ctx, filters)
}

// mockRanker implements SemanticRanker.
type mockRanker struct {
	rankFn func(ctx context.Context, query string, topK int) ([]engine.Ranked, error)
}

func (m *mockRanker) Rank(ctx context.Context, query string, topK int) ([]engine.Ranked, error) {
	if m.rankFn != nil {
		return m.rankFn(ctx, query, topK)
	}
	return nil, nil
}

// mockSink implements AnalyticsSink, delivering records on a channel so
// tests can wait for the asynchronous emit.
type mockSink struct {
	recordErr error
	records   chan domain.AnalyticsRecord
}

func newMockSink() *mockSink {
	return &mockSink{records: make(chan domain.AnalyticsRecord, 8)}
}

func (m *mockSink) Record(_ context.Context, rec domain.AnalyticsRecord) error {
	m.records <- rec
	return m.recordErr
}

func (m *mockSink) await(t *testing.T) domain.AnalyticsRecord {
	t.Helper()
	select {
	case rec := <-m.records:
		return rec
	case <-time.After(2 * time.Second):
		t.Fatal("no analytics record emitted")
		return domain.AnalyticsRecord{}
	}
}

func newTestIndex(t *testing.T) *index.Store {
	t.Helper()
	s := index.NewStore(index.Config{Shards: 2})

	docs := []struct {
		id, title, content, category string
		tags                         []string
	}{
		{
			id:       "luat-01",
			title:    "Luật Thuế thu nhập doanh nghiệp",
			content:  "Quy định về người nộp thuế và căn cứ tính thuế thu nhập.",
			category: "tax",
			tags:     []string{"thuế"},
		},
		{
			id:       "nghidinh-02",
			title:    "Nghị định về bồi thường đất đai",
			content:  "Quy định chi tiết việc bồi thường về đất khi Nhà nước thu hồi đất.",
			category: "land",
			tags:     []string{"đất đai"},
		},
		{
			id:       "thongtu-03",
			title:    "Thông tư hướng dẫn thuế giá trị gia tăng",
			content:  "Hướng dẫn về đối tượng chịu thuế giá trị gia tăng.",
			category: "tax",
			tags:     []string{"thuế"},
		},
	}
	created := time.Date(2022, 1, 10, 0, 0, 0, 0, time.UTC)
	for _, d := range docs {
		doc, err := domain.New(
			d.id, d.title, "", d.content, d.category, d.tags, nil, nil, created, created,
		)
		if err != nil {
			t.Fatalf("domain.New(%s): %v", d.id, err)
		}
		if _, err := s.Admit(doc, dedup.Compute(doc.Content())); err != nil {
			t.Fatalf("Admit(%s): %v", d.id, err)
		}
		created = created.Add(24 * time.Hour)
	}
	return s
}

// newTestService wires a service over a real index with mockable
// collaborators.
func newTestService(t *testing.T, cfg Config) (*Service, *mockEngine, *mockSink) {
	t.Helper()
	idx := newTestIndex(t)
	me := &mockEngine{real: engine.NewExecutor(idx, engine.Config{})}
	sink := newMockSink()
	svc := New(
		me, idx, engine.NewScorer(nil), engine.NewHighlighter(0, 0),
		nil, sink, zap.NewNop(), cfg,
	)
	return svc, me, sink
}

func mustRequest(t *testing.T, q string, m mode.Mode) *request.Request {
	t.Helper()
	req, err := request.New(q, m, filter.Expression{}, request.LimitUnset, 0, "", request.SortRelevance)
	if err != nil {
		t.Fatalf("request.New: %v", err)
	}
	return &req
}
