// Package metrics holds the Prometheus collectors of the gift recommender.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ModelRequestDuration measures model server calls.
	// Labels:
	//   - model: model or analyzer name
	//   - outcome: "success", "error"
	ModelRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "giftbot_model_request_duration_seconds",
			Help:    "Duration of model server requests in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"model", "outcome"},
	)

	// CacheLoads counts product embedding cache lookups.
	// Labels:
	//   - outcome: "hit", "fallback", "miss"
	CacheLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giftbot_cache_loads_total",
			Help: "Total number of product embedding cache lookups",
		},
		[]string{"outcome"},
	)

	// DateGroupsAnalyzed counts analyzed date-groups.
	// Labels:
	//   - outcome: "success", "error"
	DateGroupsAnalyzed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giftbot_date_groups_analyzed_total",
			Help: "Total number of analyzed conversation date-groups",
		},
		[]string{"outcome"},
	)

	// AnalysisDuration measures one whole conversation analysis.
	AnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "giftbot_analysis_duration_seconds",
			Help:    "Duration of conversation analyses in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	// Recommendations counts products returned to callers.
	Recommendations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "giftbot_recommendations_total",
			Help: "Total number of recommended products",
		},
	)

	// UploadsTotal counts stored conversation uploads.
	// Labels:
	//   - source: "api", "telegram"
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giftbot_uploads_total",
			Help: "Total number of uploaded conversation exports",
		},
		[]string{"source"},
	)
)

// Outcome maps an error to the "success"/"error" label value.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveModelRequest records one model server call started at start.
func ObserveModelRequest(model string, start time.Time, err error) {
	ModelRequestDuration.WithLabelValues(model, Outcome(err)).Observe(time.Since(start).Seconds())
}
