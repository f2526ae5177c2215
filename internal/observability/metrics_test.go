package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRunOutcome_BoundedLabels(t *testing.T) {
	cases := []struct {
		status string
		want   string
	}{
		{"completed", "completed"},
		{"failed: session_invalid", "session_invalid"},
		{"failed: no_tweets", "no_tweets"},
		{"failed: summary_error: llm status 500", "summary_error"},
		{"failed: browser crashed mid scroll", "failed"},
		{"failed: store briefing: disk I/O error", "failed"},
		{"failed: unknown feed source: rss", "failed"},
	}
	for _, tc := range cases {
		if got := RunOutcome(tc.status); got != tc.want {
			t.Errorf("RunOutcome(%q) = %q; want %q", tc.status, got, tc.want)
		}
	}
}

func TestRecordHelpers_IncrementCollectors(t *testing.T) {
	// Baselines first; other tests in the binary share the registry.
	baseRuns := testutil.ToFloat64(pipelineRuns.WithLabelValues("completed"))
	basePosts := testutil.ToFloat64(postsStored)
	baseBriefings := testutil.ToFloat64(briefingsCreated)
	baseEmailOK := testutil.ToFloat64(deliveries.WithLabelValues("email", "ok"))
	baseTelegramErr := testutil.ToFloat64(deliveries.WithLabelValues("telegram", "error"))

	RecordPipelineRun("completed", 2*time.Second)
	RecordPostsStored(3)
	RecordPostsStored(0)  // no-op
	RecordPostsStored(-1) // no-op
	RecordBriefing()
	RecordDelivery("email", true)
	RecordDelivery("telegram", false)

	if got := testutil.ToFloat64(pipelineRuns.WithLabelValues("completed")); got != baseRuns+1 {
		t.Fatalf("pipelineRuns completed = %v; want %v", got, baseRuns+1)
	}
	if got := testutil.ToFloat64(postsStored); got != basePosts+3 {
		t.Fatalf("postsStored = %v; want %v", got, basePosts+3)
	}
	if got := testutil.ToFloat64(briefingsCreated); got != baseBriefings+1 {
		t.Fatalf("briefingsCreated = %v; want %v", got, baseBriefings+1)
	}
	if got := testutil.ToFloat64(deliveries.WithLabelValues("email", "ok")); got != baseEmailOK+1 {
		t.Fatalf("deliveries email/ok = %v; want %v", got, baseEmailOK+1)
	}
	if got := testutil.ToFloat64(deliveries.WithLabelValues("telegram", "error")); got != baseTelegramErr+1 {
		t.Fatalf("deliveries telegram/error = %v; want %v", got, baseTelegramErr+1)
	}
	// Duration histogram buckets are timing-dependent; RecordPipelineRun above
	// exercises the Observe path.
}
