package document

import (
	"github.com/vanban-cloud/docdex/internal/dedup"
	"github.com/vanban-cloud/docdex/internal/domain"
)

// Indexer is the index admission contract. Admission and fingerprint
// registration are atomic: a document is either fully searchable with its
// fingerprint registered, or absent.
type Indexer interface {
	Admit(doc domain.Document, fp dedup.Fingerprint) (dedup.Outcome, error)
	Update(doc domain.Document, fp dedup.Fingerprint) (dedup.Outcome, error)
	Remove(id string) error
	Len() int
}
