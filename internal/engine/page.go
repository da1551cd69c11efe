package engine

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vanban-cloud/docdex/internal/domain"
)

// DefaultCursorThreshold is the offset beyond which offset paging is
// rejected in favor of cursor paging.
const DefaultCursorThreshold = 10000

// cursorPayload encodes the position after the last returned item. Resuming
// seeks by the full ranking key (score, updated_at, doc id) rather than by
// index, so documents admitted mid-pagination never shift already-returned
// positions; ones ranking ahead of the cursor are simply not revisited.
type cursorPayload struct {
	Score     float64   `json:"s"`
	UpdatedAt time.Time `json:"u"`
	DocID     string    `json:"d"`
}

// EncodeCursor builds the opaque cursor for the item at the page boundary.
func EncodeCursor(last Ranked) string {
	data, _ := json.Marshal(cursorPayload{Score: last.Score, UpdatedAt: last.UpdatedAt, DocID: last.DocID})
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor parses an opaque cursor.
func DecodeCursor(cursor string) (Ranked, error) {
	data, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return Ranked{}, fmt.Errorf("%w: malformed cursor", domain.ErrInvalidArgument)
	}
	var p cursorPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return Ranked{}, fmt.Errorf("%w: malformed cursor", domain.ErrInvalidArgument)
	}
	return Ranked{DocID: p.DocID, Score: p.Score, UpdatedAt: p.UpdatedAt}, nil
}

// Paginate slices one page out of the ranked candidate list. Offsets up to
// threshold are served directly; deeper paging must use the cursor issued
// with every non-final page. limit=0 returns an empty page (count-only
// queries still get total_count and facets upstream).
func Paginate(ranked []Ranked, limit, offset int, cursor string, threshold int) ([]Ranked, string, error) {
	if threshold <= 0 {
		threshold = DefaultCursorThreshold
	}

	start := offset
	if cursor != "" {
		last, err := DecodeCursor(cursor)
		if err != nil {
			return nil, "", err
		}
		start = afterCursor(ranked, last)
	} else if offset > threshold {
		return nil, "", fmt.Errorf(
			"%w: offset %d exceeds %d, use the returned cursor for deep paging",
			domain.ErrInvalidArgument, offset, threshold,
		)
	}

	if limit == 0 || start >= len(ranked) {
		return nil, "", nil
	}

	end := start + limit
	if end > len(ranked) {
		end = len(ranked)
	}
	page := ranked[start:end]

	next := ""
	if end < len(ranked) {
		next = EncodeCursor(page[len(page)-1])
	}
	return page, next, nil
}

// afterCursor finds the index of the first item strictly after the cursor
// position, using the same comparator relevance ranking sorts with. Items
// admitted since the cursor was issued that rank before it are skipped,
// keeping already-returned positions stable.
func afterCursor(ranked []Ranked, last Ranked) int {
	for i, r := range ranked {
		if rankedBefore(last, r) {
			return i
		}
	}
	return len(ranked)
}
