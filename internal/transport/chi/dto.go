package chi

import (
	"fmt"
	"time"

	"github.com/vanban-cloud/docdex/internal/dedup"
	"github.com/vanban-cloud/docdex/internal/domain"
	"github.com/vanban-cloud/docdex/internal/domain/search/filter"
	"github.com/vanban-cloud/docdex/internal/domain/search/mode"
	"github.com/vanban-cloud/docdex/internal/domain/search/request"
	"github.com/vanban-cloud/docdex/internal/domain/search/result"
	healthuc "github.com/vanban-cloud/docdex/internal/usecase/health"
)

// Error codes returned in the error response body.
const (
	codeBadRequest           = "bad_request"
	codeValidationFailed     = "validation_failed"
	codeParseError           = "parse_error"
	codeUnknownField         = "unknown_field"
	codeQueryTimeout         = "query_timeout"
	codeCancelled            = "cancelled"
	codeIndexUnavailable     = "index_unavailable"
	codeDocumentNotFound     = "document_not_found"
	codeAlreadyExists        = "already_exists"
	codeSemanticNotAvailable = "semantic_not_configured"
	codeSemanticUnavailable  = "semantic_unavailable"
	codeInternalError        = "internal_error"
)

type errorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Position *int   `json:"position,omitempty"`
	Field    string `json:"field,omitempty"`
}

type searchRequest struct {
	Query   string      `json:"query"`
	Mode    string      `json:"mode,omitempty"`
	Filters []filterDTO `json:"filters,omitempty"`
	Limit   *int        `json:"limit,omitempty"`
	Offset  int         `json:"offset,omitempty"`
	Cursor  string      `json:"cursor,omitempty"`
	Sort    string      `json:"sort,omitempty"`
}

// filterDTO is one structured filter clause: value for exact match, values
// for set membership, from/to for date ranges (inclusive, YYYY-MM-DD).
type filterDTO struct {
	Field  string   `json:"field"`
	Value  string   `json:"value,omitempty"`
	Values []string `json:"values,omitempty"`
	From   string   `json:"from,omitempty"`
	To     string   `json:"to,omitempty"`
}

type searchItem struct {
	ID         string   `json:"id"`
	Score      float64  `json:"score"`
	Highlights []string `json:"highlights,omitempty"`
}

type facetDTO struct {
	Field string `json:"field"`
	Value string `json:"value"`
	Count int    `json:"count"`
}

type searchResponse struct {
	Items           []searchItem `json:"items"`
	TotalCount      int          `json:"total_count"`
	Facets          []facetDTO   `json:"facets"`
	Approximate     bool         `json:"approximate,omitempty"`
	NextCursor      string       `json:"next_cursor,omitempty"`
	Suggestions     []string     `json:"suggestions,omitempty"`
	ExecutionTimeMs int64        `json:"execution_time_ms"`
}

type documentRequest struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Summary   string            `json:"summary,omitempty"`
	Content   string            `json:"content"`
	Category  string            `json:"category,omitempty"`
	Tags      []string          `json:"tags,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Vector    []float32         `json:"vector,omitempty"`
	CreatedAt *time.Time        `json:"created_at,omitempty"`
	UpdatedAt *time.Time        `json:"updated_at,omitempty"`
}

type admitResponse struct {
	ID         string  `json:"id"`
	Outcome    string  `json:"outcome"`
	ExistingID string  `json:"existing_id,omitempty"`
	Similarity float64 `json:"similarity,omitempty"`
}

type healthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Documents int               `json:"documents"`
}

const filterDateLayout = "2006-01-02"

func filtersFromDTO(dtos []filterDTO) (filter.Expression, error) {
	if len(dtos) == 0 {
		return filter.Expression{}, nil
	}
	conditions := make([]filter.Condition, 0, len(dtos))
	for _, d := range dtos {
		cond, err := conditionFromDTO(d)
		if err != nil {
			return filter.Expression{}, err
		}
		conditions = append(conditions, cond)
	}
	expr, err := filter.NewExpression(conditions...)
	if err != nil {
		return filter.Expression{}, fmt.Errorf("new expression: %w", err)
	}
	return expr, nil
}

func conditionFromDTO(d filterDTO) (filter.Condition, error) {
	switch {
	case len(d.Values) > 0:
		return filter.NewAnyOf(d.Field, d.Values)
	case d.From != "" || d.To != "":
		r, err := dateRangeFromDTO(d)
		if err != nil {
			return filter.Condition{}, err
		}
		return filter.NewDateRange(d.Field, r)
	default:
		return filter.NewMatch(d.Field, d.Value)
	}
}

func dateRangeFromDTO(d filterDTO) (filter.DateRange, error) {
	var r filter.DateRange
	if d.From != "" {
		from, err := time.Parse(filterDateLayout, d.From)
		if err != nil {
			return filter.DateRange{}, fmt.Errorf("filter %q: bad from date %q", d.Field, d.From)
		}
		r.From = from
	}
	if d.To != "" {
		to, err := time.Parse(filterDateLayout, d.To)
		if err != nil {
			return filter.DateRange{}, fmt.Errorf("filter %q: bad to date %q", d.Field, d.To)
		}
		r.To = to
	}
	return r, nil
}

func searchRequestFromDTO(dto searchRequest) (request.Request, error) {
	filters, err := filtersFromDTO(dto.Filters)
	if err != nil {
		return request.Request{}, err
	}

	limit := request.LimitUnset
	if dto.Limit != nil {
		limit = *dto.Limit
	}

	req, err := request.New(
		dto.Query, mode.Mode(dto.Mode), filters,
		limit, dto.Offset, dto.Cursor, request.Sort(dto.Sort),
	)
	if err != nil {
		return request.Request{}, fmt.Errorf("build search request: %w", err)
	}
	return req, nil
}

func documentFromDTO(dto documentRequest) (domain.Document, error) {
	createdAt := time.Time{}
	if dto.CreatedAt != nil {
		createdAt = *dto.CreatedAt
	}
	updatedAt := time.Time{}
	if dto.UpdatedAt != nil {
		updatedAt = *dto.UpdatedAt
	}
	return domain.New(
		dto.ID, dto.Title, dto.Summary, dto.Content, dto.Category,
		dto.Tags, dto.Metadata, dto.Vector, createdAt, updatedAt,
	)
}

func searchResponseFromPage(page result.Page) searchResponse {
	items := make([]searchItem, len(page.Items))
	for i := range page.Items {
		it := &page.Items[i]
		items[i] = searchItem{
			ID:         it.DocumentID(),
			Score:      it.Score(),
			Highlights: it.Highlights(),
		}
	}

	facets := make([]facetDTO, len(page.Facets))
	for i, f := range page.Facets {
		facets[i] = facetDTO{Field: f.Field, Value: f.Value, Count: f.Count}
	}

	return searchResponse{
		Items:           items,
		TotalCount:      page.TotalCount,
		Facets:          facets,
		Approximate:     page.Approximate,
		NextCursor:      page.NextCursor,
		Suggestions:     page.Suggestions,
		ExecutionTimeMs: page.Duration.Milliseconds(),
	}
}

func admitResponseFromOutcome(id string, out dedup.Outcome) admitResponse {
	resp := admitResponse{ID: id, Outcome: outcomeName(out.Kind)}
	if out.Kind != dedup.New {
		resp.ExistingID = out.ExistingID
		resp.Similarity = out.Similarity
	}
	return resp
}

func outcomeName(k dedup.Kind) string {
	switch k {
	case dedup.ExactDuplicate:
		return "exact_duplicate"
	case dedup.NearDuplicate:
		return "near_duplicate"
	default:
		return "new"
	}
}

func healthResponseFromReport(rep healthuc.Report) healthResponse {
	checks := make(map[string]string, len(rep.Checks))
	for k, v := range rep.Checks {
		checks[k] = string(v)
	}
	return healthResponse{
		Status:    string(rep.Status),
		Checks:    checks,
		Documents: rep.Documents,
	}
}
