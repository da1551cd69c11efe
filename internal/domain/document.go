package domain

import (
	"fmt"
	"regexp"
	"time"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// MaxContentSize is the maximum document content size in bytes.
const MaxContentSize = 1 << 20 // 1MB of extracted text

// Searchable field names. These are the only fields carrying postings;
// metadata subfields are addressed as "metadata.<key>".
const (
	FieldTitle   = "title"
	FieldSummary = "summary"
	FieldContent = "content"
	FieldSubject = "metadata.subject"
)

// Document is the engine's read-mostly projection of a legal document.
// The write path (upload, OCR, crawling) is owned by the ingestion
// subsystem; the engine only receives admit/update/delete notifications.
type Document struct {
	id        string
	title     string
	summary   string
	content   string
	category  string
	tags      []string
	metadata  map[string]string
	vector    []float32
	createdAt time.Time
	updatedAt time.Time
}

// New validates and creates a Document projection.
// ID: ^[a-zA-Z0-9_-]+$, 1-256 chars. Content: non-empty, max 1MB.
// The vector is optional and comes precomputed from the semantic collaborator.
func New(
	id, title, summary, content, category string,
	tags []string, metadata map[string]string, vector []float32,
	createdAt, updatedAt time.Time,
) (Document, error) {
	if id == "" {
		return Document{}, fmt.Errorf("document ID is required")
	}
	if len(id) > 256 {
		return Document{}, fmt.Errorf("document ID too long (max 256)")
	}
	if !idRegex.MatchString(id) {
		return Document{}, fmt.Errorf("document ID must be alphanumeric with underscores and hyphens")
	}
	if content == "" {
		return Document{}, fmt.Errorf("content is required")
	}
	if len(content) > MaxContentSize {
		return Document{}, fmt.Errorf("content too large (max %d bytes)", MaxContentSize)
	}
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	return Document{
		id:        id,
		title:     title,
		summary:   summary,
		content:   content,
		category:  category,
		tags:      cloneStrings(tags),
		metadata:  cloneStringMap(metadata),
		vector:    vector,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}, nil
}

// ID returns the immutable document identifier.
func (d *Document) ID() string { return d.id }

// Title returns the document title.
func (d *Document) Title() string { return d.title }

// Summary returns the document summary.
func (d *Document) Summary() string { return d.summary }

// Content returns the extracted text content.
func (d *Document) Content() string { return d.content }

// Category returns the document category.
func (d *Document) Category() string { return d.category }

// Tags returns the document tag set.
func (d *Document) Tags() []string { return d.tags }

// Metadata returns the metadata map (document_type, issuing_agency,
// subject, issue_date, effective_date, ...).
func (d *Document) Metadata() map[string]string { return d.metadata }

// Vector returns the precomputed embedding vector, nil if absent.
func (d *Document) Vector() []float32 { return d.vector }

// CreatedAt returns the creation timestamp.
func (d *Document) CreatedAt() time.Time { return d.createdAt }

// UpdatedAt returns the last update timestamp.
func (d *Document) UpdatedAt() time.Time { return d.updatedAt }

// Field returns the text of a searchable field by name.
// Metadata subfields are addressed as "metadata.<key>".
func (d *Document) Field(name string) string {
	switch name {
	case FieldTitle:
		return d.title
	case FieldSummary:
		return d.summary
	case FieldContent:
		return d.content
	}
	if k, ok := metadataKey(name); ok {
		return d.metadata[k]
	}
	return ""
}

// SearchableFields returns the non-empty searchable fields of the document.
// Every admitted document has at least one (content is mandatory).
func (d *Document) SearchableFields() map[string]string {
	fields := make(map[string]string, 4)
	if d.title != "" {
		fields[FieldTitle] = d.title
	}
	if d.summary != "" {
		fields[FieldSummary] = d.summary
	}
	fields[FieldContent] = d.content
	if s := d.metadata["subject"]; s != "" {
		fields[FieldSubject] = s
	}
	return fields
}

func metadataKey(field string) (string, bool) {
	const prefix = "metadata."
	if len(field) > len(prefix) && field[:len(prefix)] == prefix {
		return field[len(prefix):], true
	}
	return "", false
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	c := make([]string, len(s))
	copy(c, s)
	return c
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
