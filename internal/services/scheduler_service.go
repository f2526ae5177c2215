// Package services – Scheduler
//
// This file implements the digest scheduler: a ticker loop that periodically
// finds tenants whose local schedule hour has arrived and dispatches their
// pipeline runs onto a bounded worker pool. Two guards keep it polite: a
// per-tenant single-flight (one in-flight run per owner, also honored by
// manual triggers) and a duplicate-briefing window that skips tenants who
// already received a briefing recently, so restarts and overlapping sweeps
// never double-send.
package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-feed-digest/internal/config"
	"github.com/tbourn/go-feed-digest/internal/domain"
	"github.com/tbourn/go-feed-digest/internal/repo"
)

// PipelineRunner is the unit of work the scheduler dispatches.
type PipelineRunner interface {
	Run(ctx context.Context, ownerID string) (*PipelineOutcome, error)
}

// Scheduler periodically evaluates which tenants are due and runs their
// pipelines with bounded concurrency.
type Scheduler struct {
	// DB is the GORM handle used to list tenants and check briefing
	// recency.
	DB *gorm.DB
	// Cfg carries the sweep interval, worker count, job timeout, and the
	// duplicate-briefing guard window.
	Cfg config.SchedulerConfig
	// Pipeline executes one tenant's digest run.
	Pipeline PipelineRunner
	// Log receives sweep and job progress.
	Log zerolog.Logger

	// now is the clock seam for tests.
	now func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
	sem      chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler constructs a Scheduler with its worker pool sized from the
// configuration (minimum one worker).
func NewScheduler(db *gorm.DB, cfg config.SchedulerConfig, pipeline PipelineRunner, log zerolog.Logger) *Scheduler {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		DB:       db,
		Cfg:      cfg,
		Pipeline: pipeline,
		Log:      log,
		now:      time.Now,
		inFlight: make(map[string]struct{}),
		sem:      make(chan struct{}, workers),
	}
}

// Run drives the sweep loop until ctx is canceled, then waits for in-flight
// jobs to wind down. One sweep happens immediately on start; tenants whose
// hour matches startup time are already due, and the briefing guard absorbs
// restart churn.
func (s *Scheduler) Run(ctx context.Context) {
	s.Log.Info().Dur("check_interval", s.Cfg.CheckInterval).
		Int("workers", cap(s.sem)).Msg("scheduler started")

	s.sweep(ctx)

	ticker := time.NewTicker(s.Cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Log.Info().Msg("scheduler stopping")
			s.wg.Wait()
			s.Log.Info().Msg("scheduler stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Trigger runs one tenant's pipeline immediately, honoring the same
// single-flight and duplicate-briefing guards as scheduled runs. It blocks
// until the run finishes and returns its outcome.
//
// Errors:
//   - ErrPipelineBusy when the owner already has a run in flight.
//   - ErrRecentBriefing when the latest briefing is newer than the guard
//     window.
func (s *Scheduler) Trigger(ctx context.Context, ownerID string) (*PipelineOutcome, error) {
	if !s.tryAcquire(ownerID) {
		return nil, ErrPipelineBusy
	}
	defer s.release(ownerID)

	if err := s.checkBriefingGuard(ctx, ownerID); err != nil {
		return nil, err
	}

	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	jctx, cancel := s.jobContext(ctx)
	defer cancel()
	return s.Pipeline.Run(jctx, ownerID)
}

// Running reports whether a pipeline run is currently in flight for the
// owner.
func (s *Scheduler) Running(ownerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inFlight[ownerID]
	return ok
}

// sweep finds due tenants and dispatches one job each.
func (s *Scheduler) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	tenants, err := repo.ListDigestEnabledSettings(ctx, s.DB)
	if err != nil {
		s.Log.Error().Err(err).Msg("list digest tenants failed")
		return
	}

	now := s.clock()
	dispatched := 0
	for i := range tenants {
		set := &tenants[i]
		if !s.due(set, now) {
			continue
		}
		if err := s.checkBriefingGuard(ctx, set.OwnerID); err != nil {
			if !errors.Is(err, ErrRecentBriefing) {
				s.Log.Error().Err(err).Str("owner_id", set.OwnerID).Msg("briefing guard check failed")
			}
			continue
		}
		if !s.tryAcquire(set.OwnerID) {
			continue
		}
		s.dispatch(ctx, set.OwnerID)
		dispatched++
	}

	s.Log.Debug().Int("tenants", len(tenants)).Int("dispatched", dispatched).Msg("sweep finished")
}

// dispatch hands one owner to the worker pool. The single-flight mark is
// held while the job waits for a worker slot, so a tenant queued behind a
// full pool cannot be queued twice.
func (s *Scheduler) dispatch(ctx context.Context, ownerID string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(ownerID)

		select {
		case s.sem <- struct{}{}:
			defer func() { <-s.sem }()
		case <-ctx.Done():
			return
		}

		jctx, cancel := s.jobContext(ctx)
		defer cancel()

		out, err := s.Pipeline.Run(jctx, ownerID)
		if err != nil {
			s.Log.Error().Err(err).Str("owner_id", ownerID).Msg("scheduled pipeline run failed")
			return
		}
		s.Log.Info().Str("owner_id", ownerID).Str("status", out.Status).Msg("scheduled pipeline run finished")
	}()
}

// due reports whether the tenant's schedule hour matches now in the
// tenant's own timezone. Unknown zones fall back to UTC rather than
// silencing the tenant forever.
func (s *Scheduler) due(set *domain.UserSettings, now time.Time) bool {
	loc, err := time.LoadLocation(set.Timezone)
	if err != nil {
		s.Log.Warn().Str("owner_id", set.OwnerID).Str("timezone", set.Timezone).Msg("invalid timezone, using UTC")
		loc = time.UTC
	}
	return now.In(loc).Hour() == set.ScheduleHour
}

// checkBriefingGuard returns ErrRecentBriefing when the owner's latest
// briefing is newer than the guard window.
func (s *Scheduler) checkBriefingGuard(ctx context.Context, ownerID string) error {
	if s.Cfg.BriefingGuard <= 0 {
		return nil
	}
	latest, err := repo.LatestBriefing(ctx, s.DB, ownerID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		return err
	}
	if s.clock().Sub(latest.CreatedAt) < s.Cfg.BriefingGuard {
		return ErrRecentBriefing
	}
	return nil
}

func (s *Scheduler) tryAcquire(ownerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[ownerID]; busy {
		return false
	}
	s.inFlight[ownerID] = struct{}{}
	return true
}

func (s *Scheduler) release(ownerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, ownerID)
}

// jobContext bounds one pipeline run by the configured job timeout.
func (s *Scheduler) jobContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Cfg.JobTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.Cfg.JobTimeout)
}

// clock returns the injected clock or the real one.
func (s *Scheduler) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// intervalRE matches interval strings like "30m", "6h", "1d".
var intervalRE = regexp.MustCompile(`^(\d+)\s*([mhd])$`)

// ParseInterval parses a human-friendly interval string into a duration.
// Supported units are m (minutes), h (hours), and d (days).
func ParseInterval(s string) (time.Duration, error) {
	m := intervalRE.FindStringSubmatch(strings.ToLower(strings.TrimSpace(s)))
	if m == nil {
		return 0, fmt.Errorf("invalid interval %q: use e.g. 30m, 6h, or 1d", s)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid interval %q: use e.g. 30m, 6h, or 1d", s)
	}
	switch m[2] {
	case "m":
		return time.Duration(n) * time.Minute, nil
	case "h":
		return time.Duration(n) * time.Hour, nil
	default:
		return time.Duration(n) * 24 * time.Hour, nil
	}
}
