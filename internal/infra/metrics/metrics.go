// internal/infra/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Transitions counts category changes by destination.
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "explain_bot",
		Name:      "category_transitions_total",
		Help:      "Number of posts moved into each category.",
	}, []string{"from", "to"})

	// SweepRecords counts records evaluated by a watcher job, by outcome.
	SweepRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "explain_bot",
		Name:      "sweep_records_total",
		Help:      "Records evaluated by reconciliation jobs.",
	}, []string{"job", "outcome"})

	SweepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "explain_bot",
		Name:      "sweep_duration_seconds",
		Help:      "Duration of reconciliation job runs.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"job"})

	// APIFailures counts moderation API calls that failed after all retries.
	APIFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "explain_bot",
		Name:      "moderation_api_failures_total",
		Help:      "Moderation API calls that failed after retries.",
	}, []string{"operation"})

	Events = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "explain_bot",
		Name:      "events_total",
		Help:      "Inbound events by type and result.",
	}, []string{"event", "result"})

	Responses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "explain_bot",
		Name:      "author_responses_total",
		Help:      "Responses sent to authors replying to explanation requests.",
	}, []string{"type"})
)
