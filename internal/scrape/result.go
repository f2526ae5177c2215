// Package scrape implements browser-driven feed acquisition: a per-tenant
// Chrome profile, a navigation/scroll/extract loop over the rendered
// timeline, and early termination once previously stored content is reached.
// The loop itself only depends on the FeedView interface, so its behavior is
// fully testable without a browser.
package scrape

import "github.com/tbourn/go-feed-digest/internal/domain"

// Status tags an acquisition outcome. Callers branch on the tag instead of
// sniffing error types: an expired login is an operational condition, not an
// exception.
type Status int

const (
	// StatusOK means the loop ran to a normal stop condition. The batch may
	// still be empty when the feed had nothing new.
	StatusOK Status = iota
	// StatusSessionInvalid means the profile is no longer authenticated and
	// a re-login is required. No batch is produced.
	StatusSessionInvalid
	// StatusFailed means a run-fatal error ended acquisition. Whatever was
	// collected before the failure is preserved in Batch.
	StatusFailed
)

// String returns the status name as used in logs and run records.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSessionInvalid:
		return "session_invalid"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of one acquisition attempt. Batch preserves
// scroll-discovery order; Reason is only set for StatusFailed.
type Result struct {
	Status Status
	Batch  []domain.FeedPost
	Reason string
}

// OK wraps a finished batch.
func OK(batch []domain.FeedPost) Result {
	return Result{Status: StatusOK, Batch: batch}
}

// SessionInvalid signals that the profile needs a fresh login.
func SessionInvalid() Result {
	return Result{Status: StatusSessionInvalid}
}

// Failed wraps a run-fatal error together with any partial batch collected
// before the failure; partial results are preferred over total loss.
func Failed(reason string, partial []domain.FeedPost) Result {
	return Result{Status: StatusFailed, Batch: partial, Reason: reason}
}
