package health

import "context"

// AnalyticsPinger checks analytics sink availability.
type AnalyticsPinger interface {
	Ping(ctx context.Context) error
}

// IndexReader exposes index size for readiness reporting.
type IndexReader interface {
	Len() int
}
