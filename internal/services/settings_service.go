// Package services – SettingsService
//
// This file implements the SettingsService, which manages per-tenant digest
// configuration. Reads create the settings row on first access with the
// schema defaults; updates are sparse patches that are validated field by
// field before anything is written, so a single bad value rejects the whole
// request and the stored row never holds an out-of-range setting.
//
// Service-level errors (ErrInvalidSetting, ErrSettingsNotFound) are returned
// for predictable cases so handlers can map them to HTTP results
// consistently.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-feed-digest/internal/domain"
	"github.com/tbourn/go-feed-digest/internal/repo"
)

// Settings bounds. MaxRecords doubles as the retention keep-count, so the
// upper bound also caps per-tenant storage.
const (
	maxRecordsCeiling   = 1000
	summaryHoursCeiling = 168
)

// SettingsRepo defines the repository contract required by SettingsService.
type SettingsRepo interface {
	// GetOrCreateSettings returns the owner's settings row, creating it with
	// defaults when absent.
	GetOrCreateSettings(ctx context.Context, db *gorm.DB, ownerID string) (*domain.UserSettings, error)

	// UpdateSettings applies the column updates and returns the fresh row.
	UpdateSettings(ctx context.Context, db *gorm.DB, ownerID string, updates map[string]any) (*domain.UserSettings, error)
}

// SettingsUpdate is a sparse patch of tenant settings; nil fields are left
// untouched.
type SettingsUpdate struct {
	FeedSource      *string `json:"feed_source,omitempty"`
	MaxRecords      *int    `json:"max_records,omitempty"`
	SummaryHours    *int    `json:"summary_hours,omitempty"`
	PromptPreset    *string `json:"prompt_preset,omitempty"`
	CustomPrompt    *string `json:"custom_prompt,omitempty"`
	LLMProvider     *string `json:"llm_provider,omitempty"`
	ScheduleHour    *int    `json:"schedule_hour,omitempty"`
	Timezone        *string `json:"timezone,omitempty"`
	DigestEnabled   *bool   `json:"digest_enabled,omitempty"`
	EmailEnabled    *bool   `json:"email_enabled,omitempty"`
	TelegramEnabled *bool   `json:"telegram_enabled,omitempty"`
	Email           *string `json:"email,omitempty"`
	TelegramChatID  *string `json:"telegram_chat_id,omitempty"`
}

// SettingsService provides read and patch operations over tenant digest
// configuration.
type SettingsService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the settings repository used by this service.
	Repo SettingsRepo
	// Prompts validates preset names on update. Nil falls back to the
	// built-in presets.
	Prompts *Prompts
}

// NewSettingsService constructs a SettingsService.
func NewSettingsService(db *gorm.DB, r SettingsRepo, prompts *Prompts) *SettingsService {
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	return &SettingsService{DB: db, Repo: r, Prompts: prompts}
}

// Get returns the owner's settings, creating the row with defaults on first
// access.
func (s *SettingsService) Get(ctx context.Context, ownerID string) (*domain.UserSettings, error) {
	tr := otel.Tracer("services/SettingsService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(attribute.String("owner.id", ownerID)),
	)
	defer span.End()

	return s.Repo.GetOrCreateSettings(ctx, s.DB, ownerID)
}

// Update validates the patch and applies it. An empty patch returns the
// current row unchanged.
//
// Validation rules:
//   - feed_source: scrape | api
//   - max_records: 1..1000
//   - summary_hours: 1..168
//   - prompt_preset: a known preset name
//   - llm_provider: openai | lmstudio | anthropic
//   - schedule_hour: 0..23
//   - timezone: a loadable IANA zone name
//   - email: containing "@" when non-empty (deliverability is the SMTP
//     server's problem, not ours)
//
// Each violation is reported as a wrapped ErrInvalidSetting naming the
// field.
func (s *SettingsService) Update(ctx context.Context, ownerID string, upd SettingsUpdate) (*domain.UserSettings, error) {
	tr := otel.Tracer("services/SettingsService")
	ctx, span := tr.Start(ctx, "Update",
		trace.WithAttributes(attribute.String("owner.id", ownerID)),
	)
	defer span.End()

	fields, err := s.buildUpdates(upd)
	if err != nil {
		return nil, err
	}

	// Ensure the row exists so a first-ever PATCH behaves like read-then-write.
	if _, err := s.Repo.GetOrCreateSettings(ctx, s.DB, ownerID); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return s.Repo.GetOrCreateSettings(ctx, s.DB, ownerID)
	}

	out, err := s.Repo.UpdateSettings(ctx, s.DB, ownerID, fields)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrSettingsNotFound
		}
		return nil, err
	}
	return out, nil
}

// buildUpdates turns the patch into a column update map, validating every
// set field.
func (s *SettingsService) buildUpdates(upd SettingsUpdate) (map[string]any, error) {
	fields := make(map[string]any)

	if upd.FeedSource != nil {
		v := strings.ToLower(strings.TrimSpace(*upd.FeedSource))
		if v != domain.FeedSourceScrape && v != domain.FeedSourceAPI {
			return nil, fmt.Errorf("%w: feed_source must be %q or %q", ErrInvalidSetting, domain.FeedSourceScrape, domain.FeedSourceAPI)
		}
		fields["feed_source"] = v
	}
	if upd.MaxRecords != nil {
		if *upd.MaxRecords < 1 || *upd.MaxRecords > maxRecordsCeiling {
			return nil, fmt.Errorf("%w: max_records must be between 1 and %d", ErrInvalidSetting, maxRecordsCeiling)
		}
		fields["max_records"] = *upd.MaxRecords
	}
	if upd.SummaryHours != nil {
		if *upd.SummaryHours < 1 || *upd.SummaryHours > summaryHoursCeiling {
			return nil, fmt.Errorf("%w: summary_hours must be between 1 and %d", ErrInvalidSetting, summaryHoursCeiling)
		}
		fields["summary_hours"] = *upd.SummaryHours
	}
	if upd.PromptPreset != nil {
		v := strings.TrimSpace(*upd.PromptPreset)
		prompts := s.Prompts
		if prompts == nil {
			prompts = DefaultPrompts()
		}
		if !prompts.Has(v) {
			return nil, fmt.Errorf("%w: unknown prompt_preset %q (known: %s)", ErrInvalidSetting, v, strings.Join(prompts.Names(), ", "))
		}
		fields["prompt_preset"] = v
	}
	if upd.CustomPrompt != nil {
		fields["custom_prompt"] = strings.TrimSpace(*upd.CustomPrompt)
	}
	if upd.LLMProvider != nil {
		v := strings.ToLower(strings.TrimSpace(*upd.LLMProvider))
		switch v {
		case domain.ProviderOpenAI, domain.ProviderLMStudio, domain.ProviderAnthropic:
		default:
			return nil, fmt.Errorf("%w: llm_provider must be one of %s, %s, %s", ErrInvalidSetting, domain.ProviderOpenAI, domain.ProviderLMStudio, domain.ProviderAnthropic)
		}
		fields["llm_provider"] = v
	}
	if upd.ScheduleHour != nil {
		if *upd.ScheduleHour < 0 || *upd.ScheduleHour > 23 {
			return nil, fmt.Errorf("%w: schedule_hour must be between 0 and 23", ErrInvalidSetting)
		}
		fields["schedule_hour"] = *upd.ScheduleHour
	}
	if upd.Timezone != nil {
		v := strings.TrimSpace(*upd.Timezone)
		if _, err := time.LoadLocation(v); err != nil || v == "" {
			return nil, fmt.Errorf("%w: unknown timezone %q", ErrInvalidSetting, v)
		}
		fields["timezone"] = v
	}
	if upd.DigestEnabled != nil {
		fields["digest_enabled"] = *upd.DigestEnabled
	}
	if upd.EmailEnabled != nil {
		fields["email_enabled"] = *upd.EmailEnabled
	}
	if upd.TelegramEnabled != nil {
		fields["telegram_enabled"] = *upd.TelegramEnabled
	}
	if upd.Email != nil {
		v := strings.TrimSpace(*upd.Email)
		if v != "" && !strings.Contains(v, "@") {
			return nil, fmt.Errorf("%w: email %q is not an address", ErrInvalidSetting, v)
		}
		fields["email"] = v
	}
	if upd.TelegramChatID != nil {
		fields["telegram_chat_id"] = strings.TrimSpace(*upd.TelegramChatID)
	}

	return fields, nil
}
