package observability

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbourn/go-feed-digest/internal/domain"
)

// Digest-level Prometheus collectors. HTTP traffic metrics live in the
// middleware package; everything counted here is pipeline work.
var (
	pipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_pipeline_runs_total",
			Help: "Total number of finished pipeline runs, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	pipelineDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "digest_pipeline_duration_seconds",
			Help:    "End-to-end duration of a pipeline run in seconds.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	postsStored = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "digest_posts_stored_total",
			Help: "Total number of newly stored posts across all runs.",
		},
	)

	briefingsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "digest_briefings_created_total",
			Help: "Total number of briefings generated.",
		},
	)

	deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_deliveries_total",
			Help: "Total number of briefing delivery attempts, labeled by channel and outcome.",
		},
		[]string{"channel", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(pipelineRuns, pipelineDuration, postsStored, briefingsCreated, deliveries)
}

// RunOutcome collapses a persisted run status into a bounded label value.
// Failure statuses carry free-form reasons that must not become labels.
func RunOutcome(status string) string {
	switch {
	case status == domain.RunStatusCompleted:
		return "completed"
	case strings.Contains(status, "session_invalid"):
		return "session_invalid"
	case strings.Contains(status, "no_tweets"):
		return "no_tweets"
	case strings.Contains(status, "summary_error"):
		return "summary_error"
	default:
		return "failed"
	}
}

// RecordPipelineRun counts one finished run and observes its duration.
func RecordPipelineRun(outcome string, elapsed time.Duration) {
	pipelineRuns.WithLabelValues(outcome).Inc()
	pipelineDuration.Observe(elapsed.Seconds())
}

// RecordPostsStored adds newly inserted posts to the running total.
func RecordPostsStored(n int) {
	if n > 0 {
		postsStored.Add(float64(n))
	}
}

// RecordBriefing counts one generated briefing.
func RecordBriefing() {
	briefingsCreated.Inc()
}

// RecordDelivery counts one delivery attempt on the given channel.
func RecordDelivery(channel string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	deliveries.WithLabelValues(channel, outcome).Inc()
}
