package search

import (
	"context"

	"github.com/vanban-cloud/docdex/internal/domain"
	"github.com/vanban-cloud/docdex/internal/domain/search/filter"
	"github.com/vanban-cloud/docdex/internal/engine"
	"github.com/vanban-cloud/docdex/internal/query"
)

// Engine resolves parsed queries against the index.
type Engine interface {
	Execute(ctx context.Context, node query.Node, filters filter.Expression) (*engine.Result, error)
	Universe(ctx context.Context, filters filter.Expression) (map[string]struct{}, error)
}

// SemanticRanker ranks documents by embedding similarity to the query text.
type SemanticRanker interface {
	Rank(ctx context.Context, query string, topK int) ([]engine.Ranked, error)
}

// AnalyticsSink persists per-query analytics records.
type AnalyticsSink interface {
	Record(ctx context.Context, rec domain.AnalyticsRecord) error
}
