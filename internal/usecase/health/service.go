package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status    Status
	Checks    map[string]CheckResult
	Documents int
}

// Service coordinates health checks.
type Service struct {
	idx       IndexReader
	analytics AnalyticsPinger
}

// New creates a Service. analytics can be nil.
func New(idx IndexReader, analytics AnalyticsPinger) *Service {
	return &Service{idx: idx, analytics: analytics}
}

// Check runs health checks against all components. The in-memory index is
// always serving; analytics degrades the report without failing it because
// search keeps working when the sink is down.
func (s *Service) Check(ctx context.Context) Report {
	checks := map[string]CheckResult{"index": CheckOK}

	if s.analytics != nil {
		if err := s.analytics.Ping(ctx); err != nil {
			checks["analytics"] = CheckError
		} else {
			checks["analytics"] = CheckOK
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks, Documents: s.idx.Len()}
}
