package document

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vanban-cloud/docdex/internal/dedup"
	"github.com/vanban-cloud/docdex/internal/domain"
	"github.com/vanban-cloud/docdex/internal/metrics"
)

// Service handles document admission, update, and removal.
type Service struct {
	idx Indexer
	log *zap.Logger
}

// New creates a document service.
func New(idx Indexer, log *zap.Logger) *Service {
	return &Service{idx: idx, log: log}
}

// Admit fingerprints and indexes a new document. An exact duplicate of an
// already-indexed document is skipped; a near duplicate is indexed and
// flagged in the outcome. The duplicate check and the index write happen
// under one lock, so two concurrent admissions of identical content cannot
// both register as new.
func (s *Service) Admit(ctx context.Context, doc domain.Document) (dedup.Outcome, error) {
	fp := dedup.Compute(doc.Content())
	out, err := s.idx.Admit(doc, fp)
	if err != nil {
		return out, fmt.Errorf("admit document %s: %w", doc.ID(), err)
	}
	s.observe(doc.ID(), out)
	return out, nil
}

// Update replaces an indexed document. Postings and fingerprint of the old
// version are gone before the new version becomes visible.
func (s *Service) Update(ctx context.Context, doc domain.Document) (dedup.Outcome, error) {
	fp := dedup.Compute(doc.Content())
	out, err := s.idx.Update(doc, fp)
	if err != nil {
		return out, fmt.Errorf("update document %s: %w", doc.ID(), err)
	}
	s.observe(doc.ID(), out)
	return out, nil
}

// Remove deletes a document and its fingerprint from the index.
func (s *Service) Remove(ctx context.Context, id string) error {
	if err := s.idx.Remove(id); err != nil {
		return fmt.Errorf("remove document %s: %w", id, err)
	}
	metrics.IndexedDocuments.Set(float64(s.idx.Len()))
	return nil
}

func (s *Service) observe(id string, out dedup.Outcome) {
	switch out.Kind {
	case dedup.ExactDuplicate:
		metrics.DuplicatesDetectedTotal.WithLabelValues("exact").Inc()
		s.log.Info("exact duplicate skipped",
			zap.String("id", id),
			zap.String("existing_id", out.ExistingID),
		)
	case dedup.NearDuplicate:
		metrics.DuplicatesDetectedTotal.WithLabelValues("near").Inc()
		s.log.Info("near duplicate flagged",
			zap.String("id", id),
			zap.String("existing_id", out.ExistingID),
			zap.Float64("similarity", out.Similarity),
		)
	}
	metrics.IndexedDocuments.Set(float64(s.idx.Len()))
}
