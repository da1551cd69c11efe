package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vanban-cloud/docdex/internal/analysis"
	"github.com/vanban-cloud/docdex/internal/domain"
	"github.com/vanban-cloud/docdex/internal/domain/search/mode"
	"github.com/vanban-cloud/docdex/internal/domain/search/request"
	"github.com/vanban-cloud/docdex/internal/domain/search/result"
	"github.com/vanban-cloud/docdex/internal/engine"
	"github.com/vanban-cloud/docdex/internal/metrics"
	"github.com/vanban-cloud/docdex/internal/query"
)

// Config tunes the search service.
type Config struct {
	QueryTimeout    time.Duration
	CursorThreshold int
	SemanticTopK    int
	MaxRetries      int
	RetryBackoff    time.Duration
	// SuggestionFloor is the result count below which alternative query
	// suggestions are produced.
	SuggestionFloor int
}

// Service defaults.
const (
	DefaultQueryTimeout    = 5 * time.Second
	DefaultSemanticTopK    = 100
	DefaultMaxRetries      = 2
	DefaultRetryBackoff    = 50 * time.Millisecond
	DefaultSuggestionFloor = 3
)

// ApplyDefaults fills unset config fields.
func (c *Config) ApplyDefaults() {
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = DefaultQueryTimeout
	}
	if c.CursorThreshold <= 0 {
		c.CursorThreshold = engine.DefaultCursorThreshold
	}
	if c.SemanticTopK <= 0 {
		c.SemanticTopK = DefaultSemanticTopK
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	if c.SuggestionFloor <= 0 {
		c.SuggestionFloor = DefaultSuggestionFloor
	}
}

// Service orchestrates search: parse, execute, rank, facet, paginate, and
// record analytics.
type Service struct {
	eng         Engine
	idx         engine.Index
	scorer      *engine.Scorer
	highlighter *engine.Highlighter
	semantic    SemanticRanker
	analytics   AnalyticsSink
	log         *zap.Logger
	cfg         Config
}

// New creates a search service. semantic and analytics can be nil.
func New(
	eng Engine, idx engine.Index, scorer *engine.Scorer, highlighter *engine.Highlighter,
	semantic SemanticRanker, analytics AnalyticsSink, log *zap.Logger, cfg Config,
) *Service {
	cfg.ApplyDefaults()
	return &Service{
		eng:         eng,
		idx:         idx,
		scorer:      scorer,
		highlighter: highlighter,
		semantic:    semantic,
		analytics:   analytics,
		log:         log,
		cfg:         cfg,
	}
}

// Search executes one validated search request end to end. The query runs
// under the configured timeout; an analytics record is emitted for both
// successful and failed requests without blocking the response.
func (s *Service) Search(ctx context.Context, req *request.Request) (result.Page, error) {
	start := time.Now()

	page, err := s.search(ctx, req)
	elapsed := time.Since(start)
	page.Duration = elapsed

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.SearchesTotal.WithLabelValues(string(req.Mode()), status).Inc()
	metrics.SearchDuration.WithLabelValues(string(req.Mode())).Observe(elapsed.Seconds())

	s.emitAnalytics(req, page.TotalCount, elapsed, err)

	if err != nil {
		return result.Page{Duration: elapsed}, err
	}
	return page, nil
}

func (s *Service) search(ctx context.Context, req *request.Request) (result.Page, error) {
	if err := req.Filters().Validate(); err != nil {
		return result.Page{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	if req.Mode() == mode.Semantic {
		return s.searchSemantic(ctx, req)
	}

	node, err := query.Parse(req.Query(), req.Mode())
	if err != nil {
		return result.Page{}, fmt.Errorf("parse query: %w", err)
	}
	if query.HasLeadingWildcard(node) {
		metrics.FullTermScansTotal.Inc()
		s.log.Debug("leading wildcard forces a full term scan", zap.String("query", req.Query()))
	}

	res, err := s.executeWithRetry(ctx, node, req)
	if err != nil {
		return result.Page{}, err
	}
	if res.Approximate {
		metrics.ExpansionTruncationsTotal.Inc()
	}

	ranked := s.scorer.Rank(res, s.idx, req.Sort())
	return s.assemble(req, ranked, res)
}

// searchSemantic delegates ranking to the semantic collaborator, then
// applies the same filters, facets, and pagination as the lexical modes.
// Collaborator scores pass through unchanged.
func (s *Service) searchSemantic(ctx context.Context, req *request.Request) (result.Page, error) {
	if s.semantic == nil {
		return result.Page{}, domain.ErrSemanticNotConfigured
	}

	ranked, err := s.semantic.Rank(ctx, req.Query(), s.cfg.SemanticTopK)
	if err != nil {
		return result.Page{}, fmt.Errorf("semantic rank: %w", err)
	}

	allowed, err := s.eng.Universe(ctx, req.Filters())
	if err != nil {
		return result.Page{}, err
	}
	filtered := ranked[:0]
	for _, r := range ranked {
		if _, ok := allowed[r.DocID]; ok {
			filtered = append(filtered, r)
		}
	}
	if req.Sort() != request.SortRelevance {
		engine.SortRanked(filtered, s.idx, req.Sort())
	}

	return s.assemble(req, filtered, nil)
}

// assemble builds the result page: facets and total over the full ranked
// set, highlights only for the page actually returned.
func (s *Service) assemble(req *request.Request, ranked []engine.Ranked, res *engine.Result) (result.Page, error) {
	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.DocID
	}
	facets := engine.Facets(ids, s.idx)

	pageRanked, next, err := engine.Paginate(
		ranked, req.Limit(), req.Offset(), req.Cursor(), s.cfg.CursorThreshold,
	)
	if err != nil {
		return result.Page{}, err
	}

	queryTerms := analysis.Terms(req.Query())
	items := make([]result.Item, 0, len(pageRanked))
	for _, r := range pageRanked {
		doc, ok := s.idx.Document(r.DocID)
		var highlights []string
		if ok {
			if res != nil {
				if c, found := res.Candidates[r.DocID]; found {
					highlights = s.highlighter.Highlight(&doc, c, s.scorer)
				}
			} else {
				highlights = s.highlighter.HighlightTerms(&doc, queryTerms)
			}
		}
		items = append(items, result.NewItem(r.DocID, r.Score, highlights))
	}

	page := result.Page{
		Items:      items,
		TotalCount: len(ranked),
		Facets:     facets,
		NextCursor: next,
	}
	if res != nil {
		page.Approximate = res.Approximate
	}
	if len(ranked) < s.cfg.SuggestionFloor {
		page.Suggestions = suggestions(queryTerms)
	}
	return page, nil
}

// executeWithRetry retries transient index failures with doubling backoff.
// Parse errors and cancellation are surfaced immediately.
func (s *Service) executeWithRetry(
	ctx context.Context, node query.Node, req *request.Request,
) (*engine.Result, error) {
	backoff := s.cfg.RetryBackoff
	for attempt := 0; ; attempt++ {
		res, err := s.eng.Execute(ctx, node, req.Filters())
		if err == nil || !errors.Is(err, domain.ErrIndexUnavailable) || attempt >= s.cfg.MaxRetries {
			return res, err
		}
		s.log.Warn("index unavailable, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
		)
		select {
		case <-ctx.Done():
			// Same translation the executor applies, so the transport's
			// sentinel mapping holds when the deadline hits mid-backoff.
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, domain.ErrTimeout
			}
			return nil, domain.ErrCancelled
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// emitAnalytics records the query outcome without blocking the response.
// Sink failures are counted and logged, never surfaced to the caller.
func (s *Service) emitAnalytics(req *request.Request, total int, elapsed time.Duration, searchErr error) {
	if s.analytics == nil {
		return
	}
	rec := domain.AnalyticsRecord{
		ID:          uuid.NewString(),
		Query:       req.Query(),
		Mode:        string(req.Mode()),
		Filters:     req.Filters().String(),
		ResultCount: total,
		Duration:    elapsed,
		Timestamp:   time.Now().UTC(),
		Success:     searchErr == nil,
	}
	if searchErr != nil {
		rec.Error = searchErr.Error()
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.analytics.Record(ctx, rec); err != nil {
			metrics.AnalyticsDroppedTotal.Inc()
			s.log.Warn("analytics record dropped", zap.String("id", rec.ID), zap.Error(err))
		}
	}()
}

// suggestions proposes narrower queries when a search comes back nearly
// empty: the individual terms of a multi-word query, so the caller can
// retry the parts that do match.
func suggestions(terms []string) []string {
	if len(terms) < 2 {
		return nil
	}
	out := make([]string, 0, 3)
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == 3 {
			break
		}
	}
	return out
}
