// Package dedup computes content fingerprints for duplicate detection.
//
// A fingerprint carries an exact hash of the normalized content plus a
// shingled min-hash signature for near-duplicate flagging. Fingerprints are
// pure values; registration happens atomically inside the index store's
// admit path.
package dedup

import (
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/vanban-cloud/docdex/internal/analysis"
)

// Signature parameters. 64 permutations in 16 bands of 4 rows gives a sharp
// candidate cutoff around the 0.9 similarity default.
const (
	NumHashes   = 64
	NumBands    = 16
	RowsPerBand = NumHashes / NumBands
	ShingleSize = 3
)

// DefaultNearThreshold is the default near-duplicate similarity threshold.
// A starting point for tuning, not a contract value.
const DefaultNearThreshold = 0.9

// Kind classifies a duplicate check outcome.
type Kind int

// Outcome kinds.
const (
	New Kind = iota
	ExactDuplicate
	NearDuplicate
)

// Outcome is the result of a check-and-register at admit time.
type Outcome struct {
	Kind       Kind
	ExistingID string  // colliding document, set for duplicates
	Similarity float64 // estimated Jaccard similarity, set for NearDuplicate
}

// Fingerprint is a content-derived identity: a deterministic hash over
// normalized content plus a min-hash signature over token shingles.
type Fingerprint struct {
	ContentHash uint64
	Signature   []uint64
}

// Compute derives the fingerprint of raw document content. Deterministic
// over normalized content, so whitespace and case variations collide.
func Compute(content string) Fingerprint {
	normalized := analysis.NormalizeContent(content)
	return Fingerprint{
		ContentHash: xxhash.Sum64String(normalized),
		Signature:   minhash(normalized),
	}
}

// Similarity estimates the Jaccard similarity of two shingle sets from
// their min-hash signatures.
func Similarity(a, b []uint64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	equal := 0
	for i := range a {
		if a[i] == b[i] {
			equal++
		}
	}
	return float64(equal) / float64(len(a))
}

// BandKeys returns one hash per signature band. Two documents sharing any
// band key are near-duplicate candidates worth a full signature comparison.
func BandKeys(sig []uint64) []uint64 {
	keys := make([]uint64, NumBands)
	for band := 0; band < NumBands; band++ {
		h := xxhash.New()
		var buf [8]byte
		for row := 0; row < RowsPerBand; row++ {
			v := sig[band*RowsPerBand+row]
			for i := 0; i < 8; i++ {
				buf[i] = byte(v >> (8 * i))
			}
			_, _ = h.Write(buf[:])
		}
		// Fold the band number in so identical rows in different bands
		// land in different buckets.
		keys[band] = h.Sum64() ^ (uint64(band) << 56)
	}
	return keys
}

func minhash(normalized string) []uint64 {
	terms := analysis.Terms(normalized)

	sig := make([]uint64, NumHashes)
	for i := range sig {
		sig[i] = ^uint64(0)
	}

	if len(terms) == 0 {
		return sig
	}

	n := len(terms) - ShingleSize + 1
	if n < 1 {
		n = 1 // short documents: one shingle of whatever is there
	}
	for s := 0; s < n; s++ {
		end := s + ShingleSize
		if end > len(terms) {
			end = len(terms)
		}
		base := xxhash.Sum64String(strings.Join(terms[s:end], " "))
		for i := 0; i < NumHashes; i++ {
			h := permute(base, uint64(i))
			if h < sig[i] {
				sig[i] = h
			}
		}
	}
	return sig
}

// permute applies the i-th universal hash permutation to a base hash.
// Multiplier and offset come from splitmix64 so they are deterministic
// across processes.
func permute(h, i uint64) uint64 {
	a := splitmix64(i*2+1) | 1 // odd multiplier
	b := splitmix64(i*2 + 2)
	return a*h + b
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
