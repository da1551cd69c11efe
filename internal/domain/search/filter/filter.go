// Package filter models the structured pre-filters applied before scoring.
// Filters narrow, never widen, the text-match candidate set.
package filter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/vanban-cloud/docdex/internal/domain"
)

// Filterable field names. Anything else is an unknown-field plan error.
const (
	FieldCategory      = "category"
	FieldTags          = "tags"
	FieldDocumentType  = "document_type"
	FieldIssuingAgency = "issuing_agency"
	FieldDateCreated   = "date_created"
	FieldIssueDate     = "issue_date"
	FieldEffectiveDate = "effective_date"
)

var matchFields = map[string]bool{
	FieldCategory:      true,
	FieldDocumentType:  true,
	FieldIssuingAgency: true,
}

var rangeFields = map[string]bool{
	FieldDateCreated:   true,
	FieldIssueDate:     true,
	FieldEffectiveDate: true,
}

// MaxConditions is the maximum number of conditions per expression.
const MaxConditions = 32

// Condition is a single filter clause: an exact match, a tag membership
// test, or a date range.
type Condition struct {
	field     string
	match     string
	anyOf     []string
	dateRange *DateRange
}

// NewMatch creates an exact match condition on a categorical field.
func NewMatch(field, value string) (Condition, error) {
	if field == "" {
		return Condition{}, fmt.Errorf("filter field is required")
	}
	if value == "" {
		return Condition{}, fmt.Errorf("match value is required for field %q", field)
	}
	return Condition{field: field, match: value}, nil
}

// NewAnyOf creates a membership condition: the document carries at least
// one of the given values. Used for the tags field.
func NewAnyOf(field string, values []string) (Condition, error) {
	if field == "" {
		return Condition{}, fmt.Errorf("filter field is required")
	}
	if len(values) == 0 {
		return Condition{}, fmt.Errorf("at least one value is required for field %q", field)
	}
	return Condition{field: field, anyOf: values}, nil
}

// NewDateRange creates a date range condition. At least one bound is required.
func NewDateRange(field string, r DateRange) (Condition, error) {
	if field == "" {
		return Condition{}, fmt.Errorf("filter field is required")
	}
	if r.From.IsZero() && r.To.IsZero() {
		return Condition{}, fmt.Errorf("at least one range bound is required for field %q", field)
	}
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return Condition{}, fmt.Errorf("range for field %q ends before it starts", field)
	}
	return Condition{field: field, dateRange: &r}, nil
}

// Field returns the filtered field name.
func (c Condition) Field() string { return c.field }

// Match returns the exact match value, empty for other kinds.
func (c Condition) Match() string { return c.match }

// AnyOf returns the membership values, nil for other kinds.
func (c Condition) AnyOf() []string { return c.anyOf }

// Range returns the date range, nil for other kinds.
func (c Condition) Range() *DateRange { return c.dateRange }

// DateRange bounds a date field inclusively. A zero bound is open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// Expression is a conjunction of filter conditions.
type Expression struct {
	conditions []Condition
}

// NewExpression creates a filter expression from conditions.
func NewExpression(conditions ...Condition) (Expression, error) {
	if len(conditions) > MaxConditions {
		return Expression{}, fmt.Errorf("too many filter conditions (max %d)", MaxConditions)
	}
	return Expression{conditions: conditions}, nil
}

// Conditions returns the filter conditions.
func (e Expression) Conditions() []Condition { return e.conditions }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool { return len(e.conditions) == 0 }

// Validate checks every condition against the filterable field registry.
// All invalid fields are reported at once so the caller can fix the whole
// request in one round trip.
func (e Expression) Validate() error {
	var result *multierror.Error
	for _, c := range e.conditions {
		switch {
		case c.match != "":
			if !matchFields[c.field] {
				result = multierror.Append(result, domain.NewUnknownField(c.field))
			}
		case c.anyOf != nil:
			if c.field != FieldTags {
				result = multierror.Append(result, domain.NewUnknownField(c.field))
			}
		case c.dateRange != nil:
			if !rangeFields[c.field] {
				result = multierror.Append(result, domain.NewUnknownField(c.field))
			}
		}
	}
	return result.ErrorOrNil()
}

// String renders the expression compactly for analytics records.
func (e Expression) String() string {
	if e.IsEmpty() {
		return ""
	}
	parts := make([]string, 0, len(e.conditions))
	for _, c := range e.conditions {
		switch {
		case c.match != "":
			parts = append(parts, c.field+"="+c.match)
		case c.anyOf != nil:
			parts = append(parts, c.field+" in ["+strings.Join(c.anyOf, ",")+"]")
		case c.dateRange != nil:
			parts = append(parts, c.field+" in "+formatRange(*c.dateRange))
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, " AND ")
}

func formatRange(r DateRange) string {
	const layout = "2006-01-02"
	from, to := "", ""
	if !r.From.IsZero() {
		from = r.From.Format(layout)
	}
	if !r.To.IsZero() {
		to = r.To.Format(layout)
	}
	return "[" + from + ".." + to + "]"
}
