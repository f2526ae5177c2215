package scrape

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-feed-digest/internal/config"
	"github.com/tbourn/go-feed-digest/internal/domain"
	"github.com/tbourn/go-feed-digest/internal/extract"
)

// Settle windows around navigation and tab selection, randomized so the
// cadence does not look machine-generated. The short fixed pause lets newly
// scrolled-in articles finish rendering before the next extraction pass.
const (
	navSettleMin = 2 * time.Second
	navSettleMax = 4 * time.Second
	tabSettleMin = 1500 * time.Millisecond
	tabSettleMax = 2500 * time.Millisecond
	passSettle   = 500 * time.Millisecond

	// scrollBudgetMultiplier bounds scroll attempts at MaxRecords times this
	// factor, a defensive cap against a stalled or empty feed.
	scrollBudgetMultiplier = 2
)

// KnownFunc reports whether an external id is already stored for the tenant.
// Implementations must be side-effect-free and cheap; the loop calls it once
// per newly seen item.
type KnownFunc func(externalID string) bool

// Options configure one acquisition run.
type Options struct {
	// MaxRecords caps the batch size; must be positive.
	MaxRecords int
	// StopOnKnown enables early termination once Known reports a streak of
	// already-stored items, meaning the run has caught up to prior content.
	StopOnKnown bool
	// Known is the storage existence predicate; required when StopOnKnown.
	Known KnownFunc
}

// Acquirer drives a FeedView through navigate/extract/scroll passes and
// assembles a bounded, de-duplicated batch in scroll-discovery order.
type Acquirer struct {
	View   FeedView
	Engine *extract.Engine
	Cfg    config.ScraperConfig
	Log    zerolog.Logger

	rng   *rand.Rand
	sleep func(ctx context.Context, d time.Duration) error
}

// NewAcquirer builds an Acquirer over the given view.
func NewAcquirer(view FeedView, engine *extract.Engine, cfg config.ScraperConfig, log zerolog.Logger) *Acquirer {
	return &Acquirer{
		View:   view,
		Engine: engine,
		Cfg:    cfg,
		Log:    log,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:  sleepCtx,
	}
}

// Acquire runs the acquisition loop until one of its stop conditions fires:
// a streak of already-known items, the record cap, or the scroll budget.
// Transient per-pass errors degrade to an empty pass; browser-fatal errors
// end the run with whatever was collected so far.
func (a *Acquirer) Acquire(ctx context.Context, opts Options) Result {
	if opts.MaxRecords <= 0 {
		return Failed("max_records must be positive", nil)
	}
	if opts.StopOnKnown && opts.Known == nil {
		return Failed("known oracle required when stop_on_known is set", nil)
	}

	feedRoot := strings.TrimRight(a.Cfg.FeedURL, "/") + "/home"
	if err := a.View.Navigate(ctx, feedRoot); err != nil {
		return Failed("navigate: "+err.Error(), nil)
	}
	if err := a.sleep(ctx, a.jitter(navSettleMin, navSettleMax)); err != nil {
		return Failed(err.Error(), nil)
	}

	authed, err := sessionValid(ctx, a.View)
	if err != nil {
		return Failed("session check: "+err.Error(), nil)
	}
	if !authed {
		a.Log.Warn().Msg("profile is not authenticated; login required")
		return SessionInvalid()
	}

	if err := a.View.SelectPrimaryTab(ctx); err != nil {
		a.Log.Debug().Err(err).Msg("primary tab not confirmed; continuing with current view")
	} else if err := a.sleep(ctx, a.jitter(tabSettleMin, tabSettleMax)); err != nil {
		return Failed(err.Error(), nil)
	}

	var (
		batch       []domain.FeedPost
		seen        = make(map[string]struct{})
		knownStreak int
		scrolls     int
	)
	budget := opts.MaxRecords * scrollBudgetMultiplier

	for {
		if err := ctx.Err(); err != nil {
			return Failed(err.Error(), batch)
		}

		html, err := a.View.CaptureHTML(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return Failed("capture: "+err.Error(), batch)
			}
			a.Log.Warn().Err(err).Int("scrolls", scrolls).Msg("extraction pass failed; treating as empty")
		} else {
			articles, perr := extract.ArticlesFromHTML(html)
			if perr != nil {
				a.Log.Warn().Err(perr).Msg("snapshot parse failed; treating as empty pass")
			}
			for _, art := range articles {
				post := a.Engine.Extract(art)
				if post == nil {
					continue
				}
				if _, dup := seen[post.ExternalID]; dup {
					continue
				}
				seen[post.ExternalID] = struct{}{}

				if opts.StopOnKnown && opts.Known(post.ExternalID) {
					knownStreak++
					if knownStreak >= a.Cfg.KnownStreak {
						a.Log.Info().Int("collected", len(batch)).Msg("caught up to stored content; stopping")
						return OK(batch)
					}
					continue
				}
				// Any new record breaks the streak: a known item surrounded
				// by new ones must not end the run.
				knownStreak = 0
				batch = append(batch, *post)
				if len(batch) >= opts.MaxRecords {
					a.Log.Info().Int("collected", len(batch)).Msg("record cap reached; stopping")
					return OK(batch)
				}
			}
		}

		if scrolls >= budget {
			a.Log.Info().Int("collected", len(batch)).Int("scrolls", scrolls).Msg("scroll budget exhausted; stopping")
			return OK(batch)
		}
		scrolls++
		if err := a.View.ScrollBy(ctx, a.Cfg.ScrollDistance); err != nil {
			if ctx.Err() != nil {
				return Failed("scroll: "+err.Error(), batch)
			}
			a.Log.Warn().Err(err).Msg("scroll failed; retrying next pass")
		}
		if err := a.sleep(ctx, a.jitter(a.Cfg.MinScrollDelay, a.Cfg.MaxScrollDelay)); err != nil {
			return Failed(err.Error(), batch)
		}
		if err := a.sleep(ctx, passSettle); err != nil {
			return Failed(err.Error(), batch)
		}
	}
}

// sessionValid decides whether the current page belongs to an authenticated
// session. A login or onboarding URL is a definite no; the compose button is
// a definite yes; otherwise staying on the home timeline counts as valid.
func sessionValid(ctx context.Context, view FeedView) (bool, error) {
	loc, err := view.Location(ctx)
	if err != nil {
		return false, err
	}
	if strings.Contains(loc, "/login") || strings.Contains(loc, "/i/flow/") {
		return false, nil
	}
	if ok, err := view.HasElement(ctx, extract.SelCompose); err == nil && ok {
		return true, nil
	}
	return strings.Contains(loc, "/home"), nil
}

// jitter picks a uniformly random duration in [min, max].
func (a *Acquirer) jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(a.rng.Int63n(int64(max-min)))
}

// sleepCtx pauses for d or until the context ends, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
