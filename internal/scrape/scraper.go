package scrape

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-feed-digest/internal/config"
	"github.com/tbourn/go-feed-digest/internal/extract"
)

// loginPollInterval is how often Login re-checks the session while a human
// completes authentication in the opened window.
const loginPollInterval = 3 * time.Second

// Scraper provisions per-tenant browser sessions and runs the acquisition
// loop over them. One Scraper serves all tenants; each Fetch launches and
// disposes its own browser so concurrent tenants never share a process.
type Scraper struct {
	Sessions *SessionStore
	Cfg      config.ScraperConfig
	Log      zerolog.Logger

	launch func(ctx context.Context, cfg config.ScraperConfig, profileDir string) (FeedView, func(), error)
}

// NewScraper wires a Scraper around the session store and scraper settings.
func NewScraper(sessions *SessionStore, cfg config.ScraperConfig, log zerolog.Logger) *Scraper {
	return &Scraper{
		Sessions: sessions,
		Cfg:      cfg,
		Log:      log,
		launch: func(ctx context.Context, cfg config.ScraperConfig, profileDir string) (FeedView, func(), error) {
			b, err := Launch(ctx, cfg, profileDir)
			if err != nil {
				return nil, nil, err
			}
			return b, b.Close, nil
		},
	}
}

// Fetch runs one acquisition pass for the tenant and reports the outcome as
// a Result. Browser startup problems never panic the caller; they surface as
// a failed Result with an empty batch.
func (s *Scraper) Fetch(ctx context.Context, ownerID string, opts Options) Result {
	profile, err := s.Sessions.Resolve(ownerID)
	if err != nil {
		return Failed("resolve profile: "+err.Error(), nil)
	}

	view, closeView, err := s.launch(ctx, s.Cfg, profile)
	if err != nil {
		return Failed("launch browser: "+err.Error(), nil)
	}
	defer closeView()

	log := s.Log.With().Str("owner_id", ownerID).Logger()
	acq := NewAcquirer(view, &extract.Engine{Log: log}, s.Cfg, log)
	return acq.Acquire(ctx, opts)
}

// Login opens a visible browser window on the tenant profile so a human can
// complete authentication, then polls until the session reads as valid or
// the context expires. The established cookies persist in the profile
// directory and make later headless runs possible.
func (s *Scraper) Login(ctx context.Context, ownerID string) error {
	profile, err := s.Sessions.Resolve(ownerID)
	if err != nil {
		return err
	}

	cfg := s.Cfg
	cfg.Headless = false
	view, closeView, err := s.launch(ctx, cfg, profile)
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	defer closeView()

	feedRoot := strings.TrimRight(cfg.FeedURL, "/") + "/home"
	if err := view.Navigate(ctx, feedRoot); err != nil {
		return fmt.Errorf("navigate %s: %w", feedRoot, err)
	}

	s.Log.Info().Str("owner_id", ownerID).Msg("complete the login in the opened browser window")
	for {
		ok, err := sessionValid(ctx, view)
		if err == nil && ok {
			s.Log.Info().Str("owner_id", ownerID).Msg("session established")
			return nil
		}
		if err := sleepCtx(ctx, loginPollInterval); err != nil {
			return fmt.Errorf("login not completed: %w", err)
		}
	}
}
