package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrAlreadyExists signals an admit notification for an id that is
	// already indexed; the ingestion collaborator should send an update.
	ErrAlreadyExists = errors.New("document already indexed")
	// ErrTimeout signals that a query exceeded its deadline.
	// Distinct from an empty result set.
	ErrTimeout = errors.New("query timed out")
	// ErrCancelled signals that a query was cancelled by the caller.
	ErrCancelled = errors.New("query cancelled")
	// ErrIndexUnavailable signals that the index store is unreachable.
	// Retryable; the search service retries a bounded number of times.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrDuplicate signals a duplicate document on the ingest path.
	ErrDuplicate = errors.New("duplicate document")
	// ErrUnknownField signals a filter on a field the index does not know.
	ErrUnknownField = errors.New("unknown field")
	// ErrInvalidArgument signals an invalid query argument (bad NEAR distance,
	// bad edit distance).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrSemanticNotConfigured signals that no semantic collaborator is wired.
	ErrSemanticNotConfigured = errors.New("semantic search not configured")
	// ErrSemanticUnavailable signals a semantic collaborator failure.
	ErrSemanticUnavailable = errors.New("semantic collaborator unavailable")
)

// ParseError describes a malformed query with enough detail to correct it.
type ParseError struct {
	Pos   int    // rune offset of the offending token in the raw query
	Token string // the offending token, empty at end of input
	Msg   string // what was expected
}

func (e *ParseError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("parse error at position %d: %s", e.Pos, e.Msg)
	}
	return fmt.Sprintf("parse error at position %d near %q: %s", e.Pos, e.Token, e.Msg)
}

// NewParseError creates a ParseError.
func NewParseError(pos int, token, msg string) error {
	return &ParseError{Pos: pos, Token: token, Msg: msg}
}

// UnknownFieldError wraps ErrUnknownField with the offending field name.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownField.Error(), e.Field)
}

func (e *UnknownFieldError) Unwrap() error { return ErrUnknownField }

// NewUnknownField creates an unknown-field plan error.
func NewUnknownField(field string) error {
	return &UnknownFieldError{Field: field}
}

// DuplicateError wraps ErrDuplicate with the colliding document id.
type DuplicateError struct {
	ExistingID string
	Similarity float64
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s: matches %s (similarity %.2f)", ErrDuplicate.Error(), e.ExistingID, e.Similarity)
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicate }
