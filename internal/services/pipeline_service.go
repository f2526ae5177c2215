// Package services – PipelineService
//
// This file implements PipelineService, the per-tenant orchestrator behind
// every digest: acquire the feed (browser scrape or live API, per tenant
// settings), ingest the batch with dedup, trim retention, summarize the
// look-back window, persist the briefing, and push it through the delivery
// channels. Every run is recorded as a ScrapeRun whose terminal status
// captures how far the pipeline got; domain-level failures (expired session,
// empty feed, summarizer errors) become statuses, not returned errors, so a
// scheduler driving many tenants never crashes on one of them.
//
// Observability: Run is OpenTelemetry-instrumented; spans carry the owner,
// the feed source, and the terminal status.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/go-feed-digest/internal/domain"
	"github.com/tbourn/go-feed-digest/internal/feedapi"
	"github.com/tbourn/go-feed-digest/internal/observability"
	"github.com/tbourn/go-feed-digest/internal/repo"
	"github.com/tbourn/go-feed-digest/internal/scrape"
)

// Pipeline status reasons recorded inside "failed: <reason>".
const (
	reasonNoRecords      = "no_tweets"
	reasonSessionInvalid = "session_invalid"
	summaryErrorPrefix   = "summary_error: "
)

// FeedScraper is the browser acquisition dependency.
type FeedScraper interface {
	// Fetch runs one acquisition pass for the owner and reports the tagged
	// outcome.
	Fetch(ctx context.Context, ownerID string, opts scrape.Options) scrape.Result
}

// TimelineProvider is the live-API acquisition dependency.
type TimelineProvider interface {
	// Timeline returns up to limit posts from the account's home timeline.
	Timeline(ctx context.Context, limit int) ([]domain.FeedPost, error)
}

// Summarizer turns a window of stored posts into newsletter text.
type Summarizer interface {
	Summarize(ctx context.Context, provider string, posts []domain.StoredPost, preset, custom string) (string, error)
}

// Deliverer pushes a finished briefing through the tenant's channels.
type Deliverer interface {
	Deliver(ctx context.Context, b *domain.Briefing, set *domain.UserSettings, stats repo.Engagement) DeliveryResult
}

// PipelineOutcome reports one finished pipeline run. Status mirrors the
// terminal ScrapeRun status; Briefing is nil unless the run produced one.
type PipelineOutcome struct {
	RunID        string           `json:"run_id"`
	Status       string           `json:"status"`
	RecordsFound int              `json:"records_found"`
	RecordsNew   int              `json:"records_new"`
	Briefing     *domain.Briefing `json:"briefing,omitempty"`
}

// Completed reports whether the run reached the completed status.
func (o *PipelineOutcome) Completed() bool {
	return o != nil && o.Status == domain.RunStatusCompleted
}

// PipelineService coordinates acquisition, ingestion, summarization, and
// delivery for one tenant at a time.
type PipelineService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// Scraper serves tenants whose feed_source is "scrape".
	Scraper FeedScraper
	// Feed serves tenants whose feed_source is "api".
	Feed TimelineProvider

	Summary  Summarizer
	Delivery Deliverer

	// Events receives stage notifications for the live run stream. Optional;
	// a nil hub disables publishing.
	Events *RunEventHub

	// Log receives per-stage progress; callers tag it with their component.
	Log zerolog.Logger

	// TitleLocale selects the casing rules for briefing titles.
	TitleLocale language.Tag

	// now is the clock seam for tests.
	now func() time.Time
}

// NewPipelineService constructs a PipelineService.
func NewPipelineService(db *gorm.DB, scraper FeedScraper, feed TimelineProvider, summary Summarizer, delivery Deliverer, log zerolog.Logger) *PipelineService {
	return &PipelineService{
		DB:          db,
		Scraper:     scraper,
		Feed:        feed,
		Summary:     summary,
		Delivery:    delivery,
		Log:         log,
		TitleLocale: language.Und,
		now:         time.Now,
	}
}

// Run executes the full pipeline for one owner.
//
// Stage semantics:
//   - A ScrapeRun row is created up front and finalized exactly once with
//     the terminal status, so "the most recent run" is always queryable.
//   - An expired session finishes the run as "failed: session_invalid".
//   - A fatal acquisition still ingests whatever partial batch it salvaged
//     before the run is finished as "failed: <reason>".
//   - An empty feed finishes as "failed: no_tweets"; this is an expected
//     condition, not an application error.
//   - After ingestion the tenant's storage is trimmed to max_records.
//   - Summarizer failures finish as "failed: summary_error: <reason>" and
//     produce no briefing.
//   - Delivery failures are recorded on the briefing, never on the run.
//
// The returned error is non-nil only when the pipeline could not even
// record its outcome (settings or run-row persistence failures).
func (s *PipelineService) Run(ctx context.Context, ownerID string) (*PipelineOutcome, error) {
	tr := otel.Tracer("services/PipelineService")
	ctx, span := tr.Start(ctx, "Run",
		trace.WithAttributes(attribute.String("owner.id", ownerID)),
	)
	defer span.End()

	set, err := repo.GetOrCreateSettings(ctx, s.DB, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	span.SetAttributes(attribute.String("feed.source", set.FeedSource))

	run, err := repo.StartRun(ctx, s.DB, ownerID)
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	s.Log.Info().Str("owner_id", ownerID).Str("run_id", run.ID).
		Str("feed_source", set.FeedSource).Msg("pipeline started")
	s.Events.Publish(RunEvent{OwnerID: ownerID, RunID: run.ID, Stage: StageStarted, Detail: set.FeedSource})

	res := s.acquire(ctx, ownerID, set)
	s.Events.Publish(RunEvent{
		OwnerID: ownerID,
		RunID:   run.ID,
		Stage:   StageAcquired,
		Detail:  fmt.Sprintf("%s, %d posts", res.Status, len(res.Batch)),
	})

	switch res.Status {
	case scrape.StatusSessionInvalid:
		out := s.finish(ctx, span, run, 0, 0, domain.FailedRunStatus(reasonSessionInvalid))
		return out, nil

	case scrape.StatusFailed:
		// Salvage the partial batch before recording the failure.
		inserted := s.ingest(ctx, ownerID, set, res.Batch)
		out := s.finish(ctx, span, run, len(res.Batch), inserted, domain.FailedRunStatus(res.Reason))
		return out, nil
	}

	if len(res.Batch) == 0 {
		out := s.finish(ctx, span, run, 0, 0, domain.FailedRunStatus(reasonNoRecords))
		return out, nil
	}

	inserted, err := repo.InsertPosts(ctx, s.DB, ownerID, res.Batch)
	if err != nil {
		out := s.finish(ctx, span, run, len(res.Batch), 0, domain.FailedRunStatus(err.Error()))
		return out, nil
	}
	if set.MaxRecords > 0 {
		if deleted, terr := repo.TrimToNewest(ctx, s.DB, ownerID, set.MaxRecords); terr != nil {
			s.Log.Warn().Err(terr).Str("owner_id", ownerID).Msg("retention trim failed")
		} else if deleted > 0 {
			s.Log.Debug().Str("owner_id", ownerID).Int64("deleted", deleted).Msg("trimmed old posts")
		}
	}

	now := s.clock()
	since := now.Add(-time.Duration(set.SummaryHours) * time.Hour)
	window, err := repo.ListPostsSince(ctx, s.DB, ownerID, since, 0)
	if err != nil {
		out := s.finish(ctx, span, run, len(res.Batch), inserted, domain.FailedRunStatus(err.Error()))
		return out, nil
	}
	if len(window) == 0 {
		// Everything acquired was already known and older than the window;
		// the acquisition itself succeeded.
		out := s.finish(ctx, span, run, len(res.Batch), inserted, domain.RunStatusCompleted)
		return out, nil
	}

	s.Events.Publish(RunEvent{
		OwnerID: ownerID,
		RunID:   run.ID,
		Stage:   StageSummarizing,
		Detail:  fmt.Sprintf("%d posts, %s", len(window), set.LLMProvider),
	})
	summary, err := s.Summary.Summarize(ctx, set.LLMProvider, window, set.PromptPreset, set.CustomPrompt)
	if err != nil {
		out := s.finish(ctx, span, run, len(res.Batch), inserted, domain.FailedRunStatus(summaryErrorPrefix+err.Error()))
		return out, nil
	}

	briefing, err := repo.CreateBriefing(ctx, s.DB, ownerID, s.briefingTitle(set.PromptPreset, now), summary, len(window), since, now)
	if err != nil {
		out := s.finish(ctx, span, run, len(res.Batch), inserted, domain.FailedRunStatus("store briefing: "+err.Error()))
		return out, nil
	}
	observability.RecordBriefing()
	s.Events.Publish(RunEvent{OwnerID: ownerID, RunID: run.ID, Stage: StageBriefing, Detail: briefing.ID})

	out := s.finish(ctx, span, run, len(res.Batch), inserted, domain.RunStatusCompleted)
	out.Briefing = briefing

	s.deliver(ctx, briefing, set, since)
	return out, nil
}

// acquire runs the tenant's configured acquisition method and normalizes the
// outcome into a tagged scrape.Result.
func (s *PipelineService) acquire(ctx context.Context, ownerID string, set *domain.UserSettings) scrape.Result {
	switch set.FeedSource {
	case domain.FeedSourceAPI:
		if s.Feed == nil {
			return scrape.Failed("live api provider not configured", nil)
		}
		batch, err := s.Feed.Timeline(ctx, set.MaxRecords)
		if err != nil {
			if errors.Is(err, feedapi.ErrUnauthorized) {
				return scrape.SessionInvalid()
			}
			return scrape.Failed(err.Error(), batch)
		}
		return scrape.OK(batch)

	case domain.FeedSourceScrape:
		if s.Scraper == nil {
			return scrape.Failed("scraper not configured", nil)
		}
		return s.Scraper.Fetch(ctx, ownerID, scrape.Options{
			MaxRecords:  set.MaxRecords,
			StopOnKnown: true,
			Known:       s.knownOracle(ctx, ownerID),
		})

	default:
		return scrape.Failed("unknown feed source: "+set.FeedSource, nil)
	}
}

// knownOracle binds the storage existence check into the scraper's
// early-stop predicate. Lookup errors report "unknown" so a degraded
// database makes runs longer, never blind.
func (s *PipelineService) knownOracle(ctx context.Context, ownerID string) scrape.KnownFunc {
	return func(externalID string) bool {
		exists, err := repo.PostExists(ctx, s.DB, ownerID, externalID)
		if err != nil {
			s.Log.Warn().Err(err).Str("owner_id", ownerID).Msg("known-post lookup failed")
			return false
		}
		return exists
	}
}

// ingest stores a batch, tolerating failure; used on the salvage path where
// the run is already failing.
func (s *PipelineService) ingest(ctx context.Context, ownerID string, set *domain.UserSettings, batch []domain.FeedPost) int {
	if len(batch) == 0 {
		return 0
	}
	inserted, err := repo.InsertPosts(ctx, s.DB, ownerID, batch)
	if err != nil {
		s.Log.Warn().Err(err).Str("owner_id", ownerID).Msg("partial batch ingest failed")
		return 0
	}
	if set.MaxRecords > 0 {
		if _, err := repo.TrimToNewest(ctx, s.DB, ownerID, set.MaxRecords); err != nil {
			s.Log.Warn().Err(err).Str("owner_id", ownerID).Msg("retention trim failed")
		}
	}
	return inserted
}

// finish finalizes the run row, records the run metrics, and assembles the
// outcome.
func (s *PipelineService) finish(ctx context.Context, span trace.Span, run *domain.ScrapeRun, found, inserted int, status string) *PipelineOutcome {
	if err := repo.FinishRun(ctx, s.DB, run.ID, found, inserted, status); err != nil {
		s.Log.Error().Err(err).Str("run_id", run.ID).Str("status", status).Msg("finalize run failed")
	}
	span.SetAttributes(attribute.String("pipeline.status", status))
	observability.RecordPipelineRun(observability.RunOutcome(status), time.Since(run.StartedAt))
	observability.RecordPostsStored(inserted)
	s.Events.Publish(RunEvent{OwnerID: run.OwnerID, RunID: run.ID, Stage: StageFinished, Detail: status})

	lvl := zerolog.InfoLevel
	if strings.HasPrefix(status, "failed") {
		lvl = zerolog.WarnLevel
	}
	s.Log.WithLevel(lvl).Str("run_id", run.ID).Str("status", status).
		Int("records_found", found).Int("records_new", inserted).
		Msg("pipeline finished")

	return &PipelineOutcome{
		RunID:        run.ID,
		Status:       status,
		RecordsFound: found,
		RecordsNew:   inserted,
	}
}

// deliver pushes the briefing through any enabled channels and records the
// per-channel outcome on the briefing row.
func (s *PipelineService) deliver(ctx context.Context, b *domain.Briefing, set *domain.UserSettings, since time.Time) {
	if s.Delivery == nil || (!set.EmailEnabled && !set.TelegramEnabled) {
		return
	}

	stats, err := repo.EngagementStats(ctx, s.DB, set.OwnerID, since)
	if err != nil {
		s.Log.Warn().Err(err).Str("owner_id", set.OwnerID).Msg("engagement stats failed")
		stats = repo.Engagement{}
	}

	res := s.Delivery.Deliver(ctx, b, set, stats)
	if err := repo.MarkBriefingDelivery(ctx, s.DB, b.ID, res.Email, res.Telegram, res.Err); err != nil {
		s.Log.Error().Err(err).Str("briefing_id", b.ID).Msg("record delivery outcome failed")
		return
	}
	b.DeliveredEmail = res.Email
	b.DeliveredTelegram = res.Telegram
	b.DeliveryError = res.Err

	if res.Err != nil {
		s.Log.Warn().Str("briefing_id", b.ID).Str("delivery_error", *res.Err).Msg("briefing partially delivered")
	} else {
		s.Log.Info().Str("briefing_id", b.ID).Bool("email", res.Email).Bool("telegram", res.Telegram).Msg("briefing delivered")
	}
}

// briefingTitle derives the display title from the preset name and date,
// e.g. "Your Feed Digest - Mar 2" or "Tech Ai Digest - Mar 2".
func (s *PipelineService) briefingTitle(preset string, now time.Time) string {
	base := "your feed digest"
	if preset != "" && preset != PresetNewsletter {
		base = strings.ReplaceAll(preset, "_", " ") + " digest"
	}
	caser := cases.Title(s.titleLocaleOrDefault())
	return caser.String(base) + " - " + now.Format("Jan 2")
}

// titleLocaleOrDefault returns the configured locale for casing or English
// if unset.
func (s *PipelineService) titleLocaleOrDefault() language.Tag {
	if s.TitleLocale == language.Und {
		return language.English
	}
	return s.TitleLocale
}

// clock returns the injected clock or the real one.
func (s *PipelineService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}
