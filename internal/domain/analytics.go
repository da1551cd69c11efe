package domain

import "time"

// AnalyticsRecord is an append-only log entry describing one search request.
// Created once per completed (or failed) query, never mutated, and used only
// for tuning and reporting, never for serving.
type AnalyticsRecord struct {
	ID          string        `json:"id"`
	Query       string        `json:"query"`
	Mode        string        `json:"mode"`
	Filters     string        `json:"filters,omitempty"`
	ResultCount int           `json:"result_count"`
	Duration    time.Duration `json:"duration"`
	Timestamp   time.Time     `json:"timestamp"`
	Success     bool          `json:"success"`
	Error       string        `json:"error,omitempty"`
}
