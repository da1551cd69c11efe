package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search Prometheus metrics.
var (
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docdex",
			Name:      "searches_total",
			Help:      "Total number of search requests",
		},
		[]string{"mode", "status"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docdex",
			Name:      "search_duration_seconds",
			Help:      "Search execution duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"mode"},
	)

	ExpansionTruncationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docdex",
			Name:      "expansion_truncations_total",
			Help:      "Wildcard and fuzzy expansions cut off at the term cap",
		},
	)

	FullTermScansTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docdex",
			Name:      "full_term_scans_total",
			Help:      "Queries whose leading-wildcard pattern forced a full term scan",
		},
	)

	DuplicatesDetectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docdex",
			Name:      "duplicates_detected_total",
			Help:      "Duplicate documents detected at admission",
		},
		[]string{"kind"}, // "exact" / "near"
	)

	IndexedDocuments = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docdex",
			Name:      "indexed_documents",
			Help:      "Documents currently in the index",
		},
	)

	AnalyticsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docdex",
			Name:      "analytics_dropped_total",
			Help:      "Analytics records dropped because the sink was unavailable",
		},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers Prometheus search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchesTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(ExpansionTruncationsTotal)
	prometheus.MustRegister(FullTermScansTotal)
	prometheus.MustRegister(DuplicatesDetectedTotal)
	prometheus.MustRegister(IndexedDocuments)
	prometheus.MustRegister(AnalyticsDroppedTotal)
}
