package scrape

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-feed-digest/internal/config"
	"github.com/tbourn/go-feed-digest/internal/extract"
)

// pass scripts one CaptureHTML call of the fake view.
type pass struct {
	html string
	err  error
}

// fakeView replays scripted snapshots and records how the loop drove it.
type fakeView struct {
	loc     string
	compose bool
	passes  []pass
	idx     int
	scrolls int
	navs    []string
	tabErr  error

	// onPassErr runs when a scripted pass error fires, so tests can cancel
	// the run context the way a dead browser would.
	onPassErr func()
}

func (f *fakeView) Navigate(ctx context.Context, url string) error {
	f.navs = append(f.navs, url)
	return nil
}

func (f *fakeView) Location(ctx context.Context) (string, error) { return f.loc, nil }

func (f *fakeView) HasElement(ctx context.Context, selector string) (bool, error) {
	return f.compose, nil
}

func (f *fakeView) SelectPrimaryTab(ctx context.Context) error { return f.tabErr }

func (f *fakeView) ScrollBy(ctx context.Context, pixels int) error {
	f.scrolls++
	return nil
}

func (f *fakeView) CaptureHTML(ctx context.Context) (string, error) {
	if f.idx >= len(f.passes) {
		return "", nil
	}
	p := f.passes[f.idx]
	f.idx++
	if p.err != nil && f.onPassErr != nil {
		f.onPassErr()
	}
	return p.html, p.err
}

// articleHTML renders a minimal timeline article carrying a permalink, an
// author block and body text, enough for the extraction engine to accept it.
func articleHTML(id, handle, text string) string {
	return fmt.Sprintf(`<article data-testid="tweet">`+
		`<div data-testid="User-Name"><a href="/%s" role="link"><span>%s</span></a></div>`+
		`<div data-testid="tweetText">%s</div>`+
		`<a href="/%s/status/%s">permalink</a>`+
		`</article>`, handle, handle, text, handle, id)
}

func snapshot(articles ...string) string {
	return "<html><body>" + strings.Join(articles, "") + "</body></html>"
}

func newTestAcquirer(view FeedView) *Acquirer {
	a := NewAcquirer(view, &extract.Engine{Log: zerolog.Nop()}, config.ScraperConfig{
		FeedURL:        "https://x.com",
		ScrollDistance: 800,
		KnownStreak:    3,
		MinScrollDelay: time.Millisecond,
		MaxScrollDelay: 2 * time.Millisecond,
	}, zerolog.Nop())
	a.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return a
}

func batchIDs(r Result) []string {
	ids := make([]string, 0, len(r.Batch))
	for _, p := range r.Batch {
		ids = append(ids, p.ExternalID)
	}
	return ids
}

func TestAcquire_StopsOnKnownStreak(t *testing.T) {
	view := &fakeView{
		loc:     "https://x.com/home",
		compose: true,
		passes: []pass{
			{html: snapshot(
				articleHTML("101", "alice", "first"),
				articleHTML("102", "bob", "second"),
			)},
			{html: snapshot(
				articleHTML("101", "alice", "first"),
				articleHTML("102", "bob", "second"),
				articleHTML("90", "carol", "old"),
				articleHTML("91", "dave", "older"),
				articleHTML("92", "erin", "oldest"),
			)},
		},
	}
	known := map[string]bool{"90": true, "91": true, "92": true}

	res := newTestAcquirer(view).Acquire(context.Background(), Options{
		MaxRecords:  50,
		StopOnKnown: true,
		Known:       func(id string) bool { return known[id] },
	})

	if res.Status != StatusOK {
		t.Fatalf("status = %v, want %v (reason %q)", res.Status, StatusOK, res.Reason)
	}
	ids := batchIDs(res)
	if len(ids) != 2 || ids[0] != "101" || ids[1] != "102" {
		t.Fatalf("batch ids = %v, want [101 102]", ids)
	}
	if len(view.navs) != 1 || view.navs[0] != "https://x.com/home" {
		t.Fatalf("navigations = %v, want [https://x.com/home]", view.navs)
	}
}

func TestAcquire_NewRecordResetsKnownStreak(t *testing.T) {
	view := &fakeView{
		loc:     "https://x.com/home",
		compose: true,
		passes: []pass{
			{html: snapshot(
				articleHTML("80", "alice", "known one"),
				articleHTML("81", "bob", "known two"),
				articleHTML("200", "carol", "fresh"),
				articleHTML("82", "dave", "known three"),
				articleHTML("83", "erin", "known four"),
				articleHTML("84", "frank", "known five"),
			)},
		},
	}
	known := map[string]bool{"80": true, "81": true, "82": true, "83": true, "84": true}

	res := newTestAcquirer(view).Acquire(context.Background(), Options{
		MaxRecords:  50,
		StopOnKnown: true,
		Known:       func(id string) bool { return known[id] },
	})

	if res.Status != StatusOK {
		t.Fatalf("status = %v, want %v (reason %q)", res.Status, StatusOK, res.Reason)
	}
	if ids := batchIDs(res); len(ids) != 1 || ids[0] != "200" {
		t.Fatalf("batch ids = %v, want [200]", ids)
	}
}

func TestAcquire_RecordCapStopsMidPass(t *testing.T) {
	var passes []pass
	id := 100
	for i := 0; i < 3; i++ {
		var arts []string
		for j := 0; j < 4; j++ {
			id++
			arts = append(arts, articleHTML(fmt.Sprint(id), "alice", "post"))
		}
		passes = append(passes, pass{html: snapshot(arts...)})
	}
	view := &fakeView{loc: "https://x.com/home", compose: true, passes: passes}

	res := newTestAcquirer(view).Acquire(context.Background(), Options{MaxRecords: 10})

	if res.Status != StatusOK {
		t.Fatalf("status = %v, want %v (reason %q)", res.Status, StatusOK, res.Reason)
	}
	if len(res.Batch) != 10 {
		t.Fatalf("batch size = %d, want exactly 10", len(res.Batch))
	}
	if got := res.Batch[9].ExternalID; got != "110" {
		t.Fatalf("last id = %q, want 110", got)
	}
	if view.scrolls > 20 {
		t.Fatalf("scrolls = %d, want at most max_records*2 = 20", view.scrolls)
	}
}

func TestAcquire_ScrollBudgetEndsEmptyFeed(t *testing.T) {
	// No compose button but still on /home: the fallback keeps the session
	// valid, and an article-free page must end via the scroll budget.
	view := &fakeView{loc: "https://x.com/home", compose: false}

	res := newTestAcquirer(view).Acquire(context.Background(), Options{MaxRecords: 2})

	if res.Status != StatusOK {
		t.Fatalf("status = %v, want %v (reason %q)", res.Status, StatusOK, res.Reason)
	}
	if len(res.Batch) != 0 {
		t.Fatalf("batch size = %d, want 0", len(res.Batch))
	}
	if view.scrolls != 4 {
		t.Fatalf("scrolls = %d, want exactly max_records*2 = 4", view.scrolls)
	}
}

func TestAcquire_LoginRedirectReturnsSessionInvalid(t *testing.T) {
	for _, loc := range []string{
		"https://x.com/login",
		"https://x.com/i/flow/login",
	} {
		view := &fakeView{loc: loc, compose: false}
		res := newTestAcquirer(view).Acquire(context.Background(), Options{MaxRecords: 10})

		if res.Status != StatusSessionInvalid {
			t.Fatalf("loc %q: status = %v, want %v", loc, res.Status, StatusSessionInvalid)
		}
		if len(res.Batch) != 0 {
			t.Fatalf("loc %q: batch size = %d, want 0", loc, len(res.Batch))
		}
		if view.idx != 0 {
			t.Fatalf("loc %q: %d extraction passes ran after invalid session", loc, view.idx)
		}
	}
}

func TestAcquire_ComposeButtonValidatesOffHomeSession(t *testing.T) {
	view := &fakeView{loc: "https://x.com/somewhere", compose: true}

	res := newTestAcquirer(view).Acquire(context.Background(), Options{MaxRecords: 1})

	if res.Status != StatusOK {
		t.Fatalf("status = %v, want %v (reason %q)", res.Status, StatusOK, res.Reason)
	}
}

func TestAcquire_BrowserDeathKeepsPartialBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	view := &fakeView{
		loc:     "https://x.com/home",
		compose: true,
		passes: []pass{
			{html: snapshot(
				articleHTML("101", "alice", "first"),
				articleHTML("102", "bob", "second"),
			)},
			{err: errors.New("target crashed")},
		},
		onPassErr: cancel,
	}

	res := newTestAcquirer(view).Acquire(ctx, Options{MaxRecords: 50})

	if res.Status != StatusFailed {
		t.Fatalf("status = %v, want %v", res.Status, StatusFailed)
	}
	if !strings.Contains(res.Reason, "target crashed") {
		t.Fatalf("reason = %q, want it to carry the browser error", res.Reason)
	}
	if ids := batchIDs(res); len(ids) != 2 || ids[0] != "101" || ids[1] != "102" {
		t.Fatalf("partial batch ids = %v, want [101 102]", ids)
	}
}

func TestAcquire_TransientPassErrorIsTolerated(t *testing.T) {
	view := &fakeView{
		loc:     "https://x.com/home",
		compose: true,
		passes: []pass{
			{err: errors.New("snapshot flake")},
			{html: snapshot(articleHTML("101", "alice", "first"))},
		},
	}

	res := newTestAcquirer(view).Acquire(context.Background(), Options{MaxRecords: 1})

	if res.Status != StatusOK {
		t.Fatalf("status = %v, want %v (reason %q)", res.Status, StatusOK, res.Reason)
	}
	if ids := batchIDs(res); len(ids) != 1 || ids[0] != "101" {
		t.Fatalf("batch ids = %v, want [101]", ids)
	}
}

func TestAcquire_DuplicateArticlesCollectedOnce(t *testing.T) {
	view := &fakeView{
		loc:     "https://x.com/home",
		compose: true,
		passes: []pass{
			{html: snapshot(
				articleHTML("101", "alice", "first"),
				articleHTML("102", "bob", "second"),
			)},
			{html: snapshot(
				articleHTML("102", "bob", "second"),
				articleHTML("103", "carol", "third"),
			)},
		},
	}

	res := newTestAcquirer(view).Acquire(context.Background(), Options{MaxRecords: 3})

	if res.Status != StatusOK {
		t.Fatalf("status = %v, want %v (reason %q)", res.Status, StatusOK, res.Reason)
	}
	if ids := batchIDs(res); len(ids) != 3 || ids[0] != "101" || ids[1] != "102" || ids[2] != "103" {
		t.Fatalf("batch ids = %v, want [101 102 103]", ids)
	}
}

func TestAcquire_TabSelectionFailureIsNonFatal(t *testing.T) {
	view := &fakeView{
		loc:     "https://x.com/home",
		compose: true,
		tabErr:  errors.New("tab not found"),
		passes: []pass{
			{html: snapshot(articleHTML("101", "alice", "first"))},
		},
	}

	res := newTestAcquirer(view).Acquire(context.Background(), Options{MaxRecords: 1})

	if res.Status != StatusOK {
		t.Fatalf("status = %v, want %v (reason %q)", res.Status, StatusOK, res.Reason)
	}
	if len(res.Batch) != 1 {
		t.Fatalf("batch size = %d, want 1", len(res.Batch))
	}
}

func TestAcquire_RejectsBadOptions(t *testing.T) {
	view := &fakeView{loc: "https://x.com/home", compose: true}
	a := newTestAcquirer(view)

	if res := a.Acquire(context.Background(), Options{MaxRecords: 0}); res.Status != StatusFailed {
		t.Fatalf("max_records=0: status = %v, want %v", res.Status, StatusFailed)
	}
	res := a.Acquire(context.Background(), Options{MaxRecords: 5, StopOnKnown: true})
	if res.Status != StatusFailed {
		t.Fatalf("stop_on_known without oracle: status = %v, want %v", res.Status, StatusFailed)
	}
	if len(view.navs) != 0 {
		t.Fatalf("navigation happened before option validation: %v", view.navs)
	}
}
