// Package index holds the in-memory document index store: stored field
// projections, a positional inverted index, and the fingerprint registry
// used for duplicate detection.
//
// The store is sharded by document id. Reads take a per-shard read lock and
// run fully in parallel; admit/update/delete take a narrow per-shard write
// lock so a reader never observes a half-written posting list. Fingerprint
// registration happens inside the same critical section as the index write,
// so two concurrent admits of identical content cannot both report New.
package index

import (
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/vanban-cloud/docdex/internal/analysis"
	"github.com/vanban-cloud/docdex/internal/dedup"
	"github.com/vanban-cloud/docdex/internal/domain"
)

// DefaultShards is the default shard count.
const DefaultShards = 8

// Posting is one document's occurrences of a term, grouped by field.
type Posting struct {
	DocID  string
	Fields map[string][]int // field → ascending token positions
}

// Config tunes the store.
type Config struct {
	Shards        int
	NearThreshold float64 // near-duplicate similarity threshold
}

// Store is the sharded in-memory index.
type Store struct {
	shards []*shard

	// Fingerprint registry. Guarded by fpmu, which is always acquired
	// before any shard lock on the write path.
	fpmu         sync.Mutex
	fingerprints map[uint64]string   // content hash → doc id
	signatures   map[string][]uint64 // doc id → min-hash signature
	bands        map[uint64][]string // LSH band key → candidate doc ids

	nearThreshold float64
}

type shard struct {
	mu       sync.RWMutex
	docs     map[string]domain.Document
	postings map[string]map[string]map[string][]int // term → doc id → field → positions
}

// NewStore creates an empty index store.
func NewStore(cfg Config) *Store {
	n := cfg.Shards
	if n <= 0 {
		n = DefaultShards
	}
	threshold := cfg.NearThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = dedup.DefaultNearThreshold
	}

	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = &shard{
			docs:     make(map[string]domain.Document),
			postings: make(map[string]map[string]map[string][]int),
		}
	}
	return &Store{
		shards:        shards,
		fingerprints:  make(map[uint64]string),
		signatures:    make(map[string][]uint64),
		bands:         make(map[uint64][]string),
		nearThreshold: threshold,
	}
}

// Admit checks the fingerprint and indexes a new document in one atomic
// step. ExactDuplicate outcomes skip the index write; NearDuplicate flags
// the collision but does not block ingestion.
func (s *Store) Admit(doc domain.Document, fp dedup.Fingerprint) (dedup.Outcome, error) {
	s.fpmu.Lock()
	defer s.fpmu.Unlock()

	if _, ok := s.signatures[doc.ID()]; ok {
		return dedup.Outcome{}, domain.ErrAlreadyExists
	}
	return s.admitLocked(doc, fp)
}

// Update replaces an existing document's projection, postings, and
// fingerprint atomically. The old entries are fully removed first, so no
// orphaned postings survive. Updating to content another document already
// owns reports the collision and leaves the old version in place.
func (s *Store) Update(doc domain.Document, fp dedup.Fingerprint) (dedup.Outcome, error) {
	s.fpmu.Lock()
	defer s.fpmu.Unlock()

	if _, ok := s.signatures[doc.ID()]; !ok {
		return dedup.Outcome{}, domain.ErrDocumentNotFound
	}
	// The collision check must run before removeLocked: admitLocked skips
	// the index write on an exact duplicate, which would leave the document
	// deleted instead of replaced.
	if existing, ok := s.fingerprints[fp.ContentHash]; ok && existing != doc.ID() {
		return dedup.Outcome{Kind: dedup.ExactDuplicate, ExistingID: existing, Similarity: 1}, nil
	}
	s.removeLocked(doc.ID())
	return s.admitLocked(doc, fp)
}

// Remove deletes a document and all its index entries atomically.
func (s *Store) Remove(id string) error {
	s.fpmu.Lock()
	defer s.fpmu.Unlock()

	if _, ok := s.signatures[id]; !ok {
		return domain.ErrDocumentNotFound
	}
	s.removeLocked(id)
	return nil
}

// Lookup returns the postings of a term across all shards, sorted by
// document id for deterministic downstream merging.
func (s *Store) Lookup(term string) []Posting {
	var out []Posting
	for _, sh := range s.shards {
		sh.mu.RLock()
		for docID, fields := range sh.postings[term] {
			p := Posting{DocID: docID, Fields: make(map[string][]int, len(fields))}
			for f, positions := range fields {
				p.Fields[f] = positions
			}
			out = append(out, p)
		}
		sh.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocID < out[j].DocID })
	return out
}

// Terms returns every indexed term, sorted. Used by wildcard and fuzzy
// expansion scans.
func (s *Store) Terms() []string {
	seen := make(map[string]struct{})
	for _, sh := range s.shards {
		sh.mu.RLock()
		for term := range sh.postings {
			seen[term] = struct{}{}
		}
		sh.mu.RUnlock()
	}
	terms := make([]string, 0, len(seen))
	for t := range seen {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms
}

// Document returns a document projection by id.
func (s *Store) Document(id string) (domain.Document, bool) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	doc, ok := sh.docs[id]
	return doc, ok
}

// ScanDocuments calls fn for every document until fn returns false.
// The iteration order is unspecified; callers needing determinism sort ids.
func (s *Store) ScanDocuments(fn func(doc *domain.Document) bool) {
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, doc := range sh.docs {
			if !fn(&doc) {
				sh.mu.RUnlock()
				return
			}
		}
		sh.mu.RUnlock()
	}
}

// ScanVectors calls fn for every document carrying a precomputed vector.
func (s *Store) ScanVectors(fn func(id string, vec []float32) bool) {
	for _, sh := range s.shards {
		sh.mu.RLock()
		for id, doc := range sh.docs {
			v := doc.Vector()
			if len(v) == 0 {
				continue
			}
			if !fn(id, v) {
				sh.mu.RUnlock()
				return
			}
		}
		sh.mu.RUnlock()
	}
}

// Len returns the number of indexed documents.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.docs)
		sh.mu.RUnlock()
	}
	return n
}

// admitLocked indexes doc and registers its fingerprint. Caller holds fpmu.
func (s *Store) admitLocked(doc domain.Document, fp dedup.Fingerprint) (dedup.Outcome, error) {
	if existing, ok := s.fingerprints[fp.ContentHash]; ok {
		return dedup.Outcome{Kind: dedup.ExactDuplicate, ExistingID: existing, Similarity: 1}, nil
	}

	outcome := dedup.Outcome{Kind: dedup.New}
	if id, sim := s.nearestLocked(fp.Signature); id != "" && sim >= s.nearThreshold {
		outcome = dedup.Outcome{Kind: dedup.NearDuplicate, ExistingID: id, Similarity: sim}
	}

	sh := s.shardFor(doc.ID())
	sh.mu.Lock()
	sh.docs[doc.ID()] = doc
	for field, text := range doc.SearchableFields() {
		for _, tok := range analysis.Tokenize(text) {
			byDoc := sh.postings[tok.Term]
			if byDoc == nil {
				byDoc = make(map[string]map[string][]int)
				sh.postings[tok.Term] = byDoc
			}
			byField := byDoc[doc.ID()]
			if byField == nil {
				byField = make(map[string][]int)
				byDoc[doc.ID()] = byField
			}
			byField[field] = append(byField[field], tok.Position)
		}
	}
	sh.mu.Unlock()

	s.fingerprints[fp.ContentHash] = doc.ID()
	s.signatures[doc.ID()] = fp.Signature
	for _, key := range dedup.BandKeys(fp.Signature) {
		s.bands[key] = append(s.bands[key], doc.ID())
	}
	return outcome, nil
}

// removeLocked deletes the document, its postings, and its fingerprint.
// Caller holds fpmu and has verified the document exists.
func (s *Store) removeLocked(id string) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	doc, ok := sh.docs[id]
	if ok {
		for _, text := range doc.SearchableFields() {
			for _, tok := range analysis.Tokenize(text) {
				byDoc := sh.postings[tok.Term]
				if byDoc == nil {
					continue
				}
				delete(byDoc, id)
				if len(byDoc) == 0 {
					delete(sh.postings, tok.Term)
				}
			}
		}
		delete(sh.docs, id)
	}
	sh.mu.Unlock()

	sig := s.signatures[id]
	delete(s.signatures, id)
	for hash, owner := range s.fingerprints {
		if owner == id {
			delete(s.fingerprints, hash)
			break
		}
	}
	for _, key := range dedup.BandKeys(sig) {
		s.bands[key] = removeString(s.bands[key], id)
		if len(s.bands[key]) == 0 {
			delete(s.bands, key)
		}
	}
}

// nearestLocked finds the most similar registered signature among LSH band
// candidates. Caller holds fpmu.
func (s *Store) nearestLocked(sig []uint64) (string, float64) {
	seen := make(map[string]struct{})
	bestID := ""
	bestSim := 0.0
	for _, key := range dedup.BandKeys(sig) {
		for _, id := range s.bands[key] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			sim := dedup.Similarity(sig, s.signatures[id])
			if sim > bestSim || (sim == bestSim && (bestID == "" || id < bestID)) {
				bestID, bestSim = id, sim
			}
		}
	}
	return bestID, bestSim
}

func (s *Store) shardFor(id string) *shard {
	return s.shards[xxhash.Sum64String(id)%uint64(len(s.shards))]
}

func removeString(s []string, v string) []string {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
