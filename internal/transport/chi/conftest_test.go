package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/vanban-cloud/docdex/internal/dedup"
	"github.com/vanban-cloud/docdex/internal/domain"
	"github.com/vanban-cloud/docdex/internal/engine"
	"github.com/vanban-cloud/docdex/internal/index"
	documentuc "github.com/vanban-cloud/docdex/internal/usecase/document"
	healthuc "github.com/vanban-cloud/docdex/internal/usecase/health"
	searchuc "github.com/vanban-cloud/docdex/internal/usecase/search"
)

// failingPinger simulates an unreachable analytics sink.
type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

type serverOptions struct {
	analytics healthuc.AnalyticsPinger
}

// newTestServer wires the full stack over an in-memory index seeded with a
// small legal corpus.
func newTestServer(t *testing.T, opts serverOptions) http.Handler {
	t.Helper()

	idx := index.NewStore(index.Config{Shards: 2})
	docs := []struct {
		id, title, content, category string
	}{
		{"luat-01", "Luật Thuế thu nhập doanh nghiệp", "Quy định về người nộp thuế và căn cứ tính thuế.", "tax"},
		{"nghidinh-02", "Nghị định về bồi thường đất đai", "Quy định việc bồi thường về đất khi Nhà nước thu hồi đất.", "land"},
	}
	created := time.Date(2022, 1, 10, 0, 0, 0, 0, time.UTC)
	for _, d := range docs {
		doc, err := domain.New(d.id, d.title, "", d.content, d.category, nil, nil, nil, created, created)
		if err != nil {
			t.Fatalf("domain.New(%s): %v", d.id, err)
		}
		if _, err := idx.Admit(doc, dedup.Compute(doc.Content())); err != nil {
			t.Fatalf("Admit(%s): %v", d.id, err)
		}
	}

	log := zap.NewNop()
	eng := engine.NewExecutor(idx, engine.Config{})
	search := searchuc.New(
		eng, idx, engine.NewScorer(nil), engine.NewHighlighter(0, 0),
		nil, nil, log, searchuc.Config{},
	)
	documents := documentuc.New(idx, log)
	health := healthuc.New(idx, opts.analytics)

	srv := NewServer(documents, search, health, log)
	r := chi.NewRouter()
	srv.Routes(r)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func validDocument(id string) documentRequest {
	return documentRequest{
		ID:       id,
		Title:    "Thông tư mới",
		Content:  "Nội dung hướng dẫn thi hành chi tiết một số điều của luật.",
		Category: "tax",
		Metadata: map[string]string{"document_type": "circular"},
	}
}
