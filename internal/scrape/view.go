package scrape

import "context"

// FeedView is the browser surface the acquisition loop drives. The
// production implementation is a chromedp session bound to a tenant profile;
// tests script a fake. Every method honors context cancellation, and none
// may block past the configured page-load timeout.
type FeedView interface {
	// Navigate loads the given URL and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error
	// Location returns the current page URL, after any redirects.
	Location(ctx context.Context) (string, error)
	// HasElement reports whether the CSS selector matches anything on the
	// current page.
	HasElement(ctx context.Context, selector string) (bool, error)
	// SelectPrimaryTab activates the algorithmic ("For you") timeline tab.
	// Best-effort: an error means the tab could not be confirmed, which the
	// loop treats as non-fatal.
	SelectPrimaryTab(ctx context.Context) error
	// ScrollBy scrolls the viewport down by the given pixel distance.
	ScrollBy(ctx context.Context, pixels int) error
	// CaptureHTML snapshots the rendered document for extraction.
	CaptureHTML(ctx context.Context) (string, error)
}
