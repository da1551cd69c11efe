// Package analytics persists search analytics records to a capped Redis
// stream. The stream is an append-only tuning log, never read on the
// serving path.
package analytics

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/vanban-cloud/docdex/internal/domain"
)

// DefaultMaxLen caps the analytics stream length.
const DefaultMaxLen = 100000

// Config holds connection parameters for the analytics sink.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
	Stream   string
	MaxLen   int64
}

// Sink appends analytics records to a Redis stream via rueidis.
type Sink struct {
	client rueidis.Client
	stream string
	maxLen int64
}

// New creates a Redis-backed analytics sink.
func New(cfg Config) (*Sink, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	if cfg.Stream == "" {
		return nil, fmt.Errorf("stream is required")
	}
	if cfg.MaxLen <= 0 {
		cfg.MaxLen = DefaultMaxLen
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Sink{client: client, stream: cfg.Stream, maxLen: cfg.MaxLen}, nil
}

// Record appends one analytics record. The stream is trimmed approximately
// to MaxLen so old entries age out without blocking writes.
func (s *Sink) Record(ctx context.Context, rec domain.AnalyticsRecord) error {
	cmd := s.client.B().Xadd().
		Key(s.stream).
		Maxlen().Almost().Threshold(strconv.FormatInt(s.maxLen, 10)).
		Id("*").
		FieldValue().
		FieldValue("id", rec.ID).
		FieldValue("query", rec.Query).
		FieldValue("mode", rec.Mode).
		FieldValue("filters", rec.Filters).
		FieldValue("result_count", strconv.Itoa(rec.ResultCount)).
		FieldValue("duration_ms", strconv.FormatInt(rec.Duration.Milliseconds(), 10)).
		FieldValue("timestamp", rec.Timestamp.Format("2006-01-02T15:04:05.000Z07:00")).
		FieldValue("success", strconv.FormatBool(rec.Success)).
		FieldValue("error", rec.Error).
		Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Sink) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (s *Sink) Close() {
	s.client.Close()
}
