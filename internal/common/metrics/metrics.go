// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueriesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bi_queries_processed_total",
			Help: "Total number of business questions answered",
		},
		[]string{"intent_kind"},
	)

	QueriesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bi_queries_failed_total",
			Help: "Total number of questions that failed",
		},
		[]string{"stage", "error_code"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "bi_stage_duration_seconds",
			Help: "Duration of pipeline stages in seconds",
		},
		[]string{"stage"},
	)

	QualityIssuesEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bi_quality_issues_total",
			Help: "Quality issues surfaced per board and category",
		},
		[]string{"board", "category"},
	)

	BoardFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "bi_board_fetch_duration_seconds",
			Help: "Duration of board service fetches in seconds",
		},
		[]string{"board"},
	)

	SnapshotCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bi_snapshot_cache_total",
			Help: "Board snapshot cache lookups by outcome",
		},
		[]string{"outcome"},
	)
)
