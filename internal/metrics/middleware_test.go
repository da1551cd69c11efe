package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(Middleware())

	r.Post("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"items":[]}`))
	})
	r.Get("/v1/documents/{id}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") == "ghost" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"id":"luat-01"}`))
	})
	r.Delete("/v1/documents/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func TestMiddleware_RecordsDurationAndCount(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest("POST", "/v1/search", strings.NewReader(`{"query":"thuế"}`))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	requestsVal := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/v1/search", "200"))
	if requestsVal < 1 {
		t.Errorf("expected http_requests_total >= 1, got %f", requestsVal)
	}

	durationCount := testutil.CollectAndCount(httpRequestDuration)
	if durationCount == 0 {
		t.Error("expected http_request_duration_seconds to have observations")
	}
}

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := newTestRouter()

	// Distinct document ids collapse into one route-pattern label, keeping
	// metric cardinality bounded.
	for _, id := range []string{"luat-01", "nghidinh-02"} {
		req := httptest.NewRequest("GET", "/v1/documents/"+id, http.NoBody)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
	}

	val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/v1/documents/{id}", "200"))
	if val < 2 {
		t.Errorf("expected requests_total for /v1/documents/{id} >= 2, got %f", val)
	}
}

func TestMiddleware_StatusCodes(t *testing.T) {
	r := newTestRouter()

	tests := []struct {
		method, path, status string
	}{
		{"GET", "/v1/documents/luat-01", "200"},
		{"GET", "/v1/documents/ghost", "404"},
		{"DELETE", "/v1/documents/luat-01", "204"},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.status, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, http.NoBody)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(tc.method, "/v1/documents/{id}", tc.status))
			if val < 1 {
				t.Errorf("expected requests_total for %s status %s >= 1, got %f", tc.method, tc.status, val)
			}
		})
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "unknown"},
		{"/v1/search", "/v1/search"},
		{"/v1/documents/{id}", "/v1/documents/{id}"},
		{"/health", "/health"},
	}

	for _, tc := range tests {
		result := normalizePath(tc.input)
		if result != tc.expected {
			t.Errorf("normalizePath(%q) = %q, want %q", tc.input, result, tc.expected)
		}
	}
}

func TestMiddleware_ExposedViaPromhttp(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest("POST", "/v1/search", strings.NewReader(`{"query":"đất"}`))
	r.ServeHTTP(httptest.NewRecorder(), req)

	rr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", http.NoBody))

	if rr.Code != 200 {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	body, err := io.ReadAll(rr.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if !strings.Contains(string(body), "docdex_http_requests_total") {
		t.Error("expected docdex_http_requests_total in the metrics exposition")
	}
}
