// Package openai ranks documents semantically through an OpenAI-compatible
// embedding API. Only the query is embedded at search time; document
// vectors arrive precomputed at admission.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vanban-cloud/docdex/internal/domain"
	"github.com/vanban-cloud/docdex/internal/engine"
)

// VectorIndex iterates stored document vectors.
type VectorIndex interface {
	ScanVectors(fn func(id string, vec []float32) bool)
}

// Ranker embeds the query text and ranks indexed documents by cosine
// similarity.
type Ranker struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	limiter    *rate.Limiter
	idx        VectorIndex
	logger     *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	Dimensions        int
	RequestsPerSecond float64
	Burst             int
}

// NewRanker creates an OpenAI-compatible semantic ranker.
func NewRanker(cfg *Config, idx VectorIndex, logger *zap.Logger) *Ranker {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}

	return &Ranker{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		idx:        idx,
		logger:     logger,
	}
}

// Rank embeds the query and returns the topK most similar documents in
// descending similarity order. Documents admitted without a vector are
// skipped.
func (r *Ranker) Rank(ctx context.Context, query string, topK int) ([]engine.Ranked, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	req := openai.EmbeddingRequest{
		Input:          []string{query},
		Model:          r.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if r.dimensions > 0 {
		req.Dimensions = r.dimensions
	}

	resp, err := r.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, parseAPIError(err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("empty embedding response: %w", domain.ErrSemanticUnavailable)
	}
	queryVec := resp.Data[0].Embedding

	ranked := make([]engine.Ranked, 0, topK)
	r.idx.ScanVectors(func(id string, vec []float32) bool {
		score := cosine(queryVec, vec)
		if math.IsNaN(score) {
			return true
		}
		ranked = append(ranked, engine.Ranked{DocID: id, Score: score})
		return true
	})

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].DocID < ranked[j].DocID
	})
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (r *Ranker) HealthCheck(ctx context.Context) error {
	if _, err := r.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// cosine computes cosine similarity; NaN when either vector is zero or the
// dimensions disagree.
func cosine(a []float32, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.NaN()
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return math.NaN()
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrSemanticUnavailable for correct 502 mapping.
func parseAPIError(err error) error {
	wrap := domain.ErrSemanticUnavailable

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail != "" {
			return fmt.Errorf("embedding API error %d: %s: %w",
				reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("embedding API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("embedding request failed: %w", wrap)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
