package scrape

import (
	"context"
	"errors"
	"fmt"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"

	"github.com/tbourn/go-feed-digest/internal/config"
)

// Browser owns one Chrome process bound to a tenant profile directory. It is
// an explicitly constructed, explicitly closed resource: one Browser per
// acquisition run, closed unconditionally when the run ends so no orphaned
// process outlives its job.
type Browser struct {
	cfg         config.ScraperConfig
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

var _ FeedView = (*Browser)(nil)

// Launch starts Chrome against the given profile directory. The parent
// context bounds the whole browser lifetime; canceling it (for example on a
// job timeout) force-kills the process.
func Launch(parent context.Context, cfg config.ScraperConfig, profileDir string) (*Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(profileDir),
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight),
		chromedp.Flag("lang", cfg.Locale),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
	)
	if !cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	// First Run starts the process; the timezone override must be in place
	// before any navigation happens.
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return emulation.SetTimezoneOverride(cfg.Timezone).Do(ctx)
	}))
	if err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	return &Browser{cfg: cfg, ctx: ctx, cancel: cancel, allocCancel: allocCancel}, nil
}

// Close tears the browser down. Safe to call more than once.
func (b *Browser) Close() {
	b.cancel()
	b.allocCancel()
}

// run executes chromedp actions under both the caller's context and the
// page-load ceiling.
func (b *Browser) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(b.ctx, b.cfg.PageLoadTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// Navigate implements FeedView.
func (b *Browser) Navigate(ctx context.Context, url string) error {
	return b.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery))
}

// Location implements FeedView.
func (b *Browser) Location(ctx context.Context) (string, error) {
	var loc string
	err := b.run(ctx, chromedp.Location(&loc))
	return loc, err
}

// HasElement implements FeedView.
func (b *Browser) HasElement(ctx context.Context, selector string) (bool, error) {
	var found bool
	expr := fmt.Sprintf("document.querySelector(%q) !== null", selector)
	err := b.run(ctx, chromedp.Evaluate(expr, &found))
	return found, err
}

// primaryTabScript clicks the algorithmic timeline tab by its label, in the
// UI languages the profiles run under.
const primaryTabScript = `(() => {
	const labels = ["For you", "For You", "Für dich"];
	const tabs = Array.from(document.querySelectorAll("[role='tab']"));
	const tab = tabs.find(el => labels.includes(el.textContent.trim()));
	if (!tab) return false;
	tab.click();
	return true;
})()`

// SelectPrimaryTab implements FeedView.
func (b *Browser) SelectPrimaryTab(ctx context.Context) error {
	var clicked bool
	if err := b.run(ctx, chromedp.Evaluate(primaryTabScript, &clicked)); err != nil {
		return err
	}
	if !clicked {
		return errors.New("primary timeline tab not found")
	}
	return nil
}

// ScrollBy implements FeedView.
func (b *Browser) ScrollBy(ctx context.Context, pixels int) error {
	var ok bool
	expr := fmt.Sprintf("(() => { window.scrollBy(0, %d); return true; })()", pixels)
	return b.run(ctx, chromedp.Evaluate(expr, &ok))
}

// CaptureHTML implements FeedView.
func (b *Browser) CaptureHTML(ctx context.Context) (string, error) {
	var html string
	err := b.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}
