// Package domain defines the persistence models for stored posts, scrape
// runs, briefings, and per-tenant settings, plus the transient feed post
// value produced by acquisition. Persistent types are mapped with GORM and
// form the core data layer of the digest application.
package domain

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Feed source selection for a tenant.
const (
	FeedSourceScrape = "scrape"
	FeedSourceAPI    = "api"
)

// Supported summarizer providers.
const (
	ProviderOpenAI    = "openai"
	ProviderLMStudio  = "lmstudio"
	ProviderAnthropic = "anthropic"
)

// Scrape run lifecycle statuses. A failed run carries its reason inline,
// e.g. "failed: summary_error: timeout".
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	runFailurePrefix   = "failed: "
	runReasonMaxLen    = 100
)

// FailedRunStatus builds the terminal status string for a failed run.
// The reason is capped at 100 characters so arbitrarily long provider
// errors cannot bloat the runs table.
func FailedRunStatus(reason string) string {
	reason = strings.TrimSpace(reason)
	if len(reason) > runReasonMaxLen {
		reason = reason[:runReasonMaxLen]
	}
	return runFailurePrefix + reason
}

// FeedPost is one observed timeline post, produced transiently by the
// extraction engine (or the live-API provider) during a single acquisition
// run. It is a value object: never mutated after creation, durable only once
// it passes the ingestion store's existence check.
//
// Optional numeric fields are pointers because absence and zero mean
// different things: a nil count is "could not determine", never 0.
//
// Fields:
//   - ExternalID: platform-assigned stable id; required, the dedup key.
//   - AuthorHandle / AuthorName: primary author of the content.
//   - Content: full post text.
//   - PostedAt: source-reported timestamp, when parseable.
//   - Likes / Reposts / Replies: engagement counts, nil when unknown.
//   - MediaURLs: validated http(s) URLs in display order.
//   - IsRepost / RepostOfAuthor: amplification marker and the amplifier.
//   - IsReply / ReplyToHandle: reply marker and the addressee, when known.
type FeedPost struct {
	ExternalID     string     `json:"external_id"`
	AuthorHandle   string     `json:"author_handle"`
	AuthorName     string     `json:"author_name"`
	Content        string     `json:"content"`
	PostedAt       *time.Time `json:"posted_at,omitempty"`
	Likes          *int       `json:"likes,omitempty"`
	Reposts        *int       `json:"reposts,omitempty"`
	Replies        *int       `json:"replies,omitempty"`
	MediaURLs      []string   `json:"media_urls,omitempty"`
	IsRepost       bool       `json:"is_repost"`
	RepostOfAuthor string     `json:"repost_of_author,omitempty"`
	IsReply        bool       `json:"is_reply"`
	ReplyToHandle  string     `json:"reply_to_handle,omitempty"`
}

// StoredPost is a FeedPost made durable for one tenant. The same external id
// may exist once per tenant but never twice for the same tenant (enforced by
// ux_posts_external_owner). Rows are immutable after insert and removed only
// by retention trimming, so there is no soft-delete marker.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - ExternalID / OwnerID: the per-tenant uniqueness pair.
//   - MediaURLs: JSON-encoded string slice (see EncodeMediaURLs).
//   - StoredAt: insertion time; the retention ordering key.
type StoredPost struct {
	ID             string     `json:"id"               gorm:"type:char(36);primaryKey"`
	ExternalID     string     `json:"external_id"      gorm:"type:varchar(32);not null;uniqueIndex:ux_posts_external_owner,priority:1"`
	OwnerID        string     `json:"owner_id"         gorm:"type:varchar(64);not null;index;uniqueIndex:ux_posts_external_owner,priority:2"`
	AuthorHandle   string     `json:"author_handle"    gorm:"type:varchar(64);index"`
	AuthorName     string     `json:"author_name"      gorm:"type:varchar(128)"`
	Content        string     `json:"content"          gorm:"type:text"`
	PostedAt       *time.Time `json:"posted_at,omitempty"`
	Likes          *int       `json:"likes,omitempty"`
	Reposts        *int       `json:"reposts,omitempty"`
	Replies        *int       `json:"replies,omitempty"`
	MediaURLs      string     `json:"-"                gorm:"type:text"`
	IsRepost       bool       `json:"is_repost"        gorm:"not null;default:false"`
	RepostOfAuthor string     `json:"repost_of_author,omitempty" gorm:"type:varchar(64)"`
	IsReply        bool       `json:"is_reply"         gorm:"not null;default:false"`
	ReplyToHandle  string     `json:"reply_to_handle,omitempty"  gorm:"type:varchar(64)"`
	StoredAt       time.Time  `json:"stored_at"        gorm:"not null;index:idx_posts_owner_stored,priority:2"`
}

// TableName returns the database table name for StoredPost.
func (StoredPost) TableName() string { return "posts" }

// MediaURLList decodes the JSON-encoded media column. A missing or corrupt
// value decodes to nil rather than an error; media is best-effort data.
func (p StoredPost) MediaURLList() []string {
	if p.MediaURLs == "" {
		return nil
	}
	var urls []string
	if err := json.Unmarshal([]byte(p.MediaURLs), &urls); err != nil {
		return nil
	}
	return urls
}

// EncodeMediaURLs serializes media URLs for the MediaURLs column. An empty
// slice encodes to the empty string so the column stays NULL-ish for the
// common no-media case.
func EncodeMediaURLs(urls []string) string {
	if len(urls) == 0 {
		return ""
	}
	b, err := json.Marshal(urls)
	if err != nil {
		return ""
	}
	return string(b)
}

// ScrapeRun records one execution of the acquisition loop. It is created in
// the running state when the loop starts and finalized exactly once, whether
// the run completed or failed; rows persist regardless of pipeline outcome so
// operators can always inspect the most recent runs.
//
// Fields:
//   - RecordsFound: items the loop observed (new + already known).
//   - RecordsNew: items actually inserted by ingestion.
//   - Status: running | completed | failed: <reason>.
type ScrapeRun struct {
	ID           string     `json:"id"            gorm:"type:char(36);primaryKey"`
	OwnerID      string     `json:"owner_id"      gorm:"type:varchar(64);not null;index:idx_runs_owner_started,priority:1"`
	StartedAt    time.Time  `json:"started_at"    gorm:"not null;index:idx_runs_owner_started,priority:2"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	RecordsFound int        `json:"records_found" gorm:"not null;default:0"`
	RecordsNew   int        `json:"records_new"   gorm:"not null;default:0"`
	Status       string     `json:"status"        gorm:"type:varchar(128);not null;default:'running'"`
}

// TableName returns the database table name for ScrapeRun.
func (ScrapeRun) TableName() string { return "scrape_runs" }

// Briefing is one generated newsletter for a tenant. Delivery outcomes are
// recorded on the artifact itself: a briefing that was generated but not
// delivered is still a successful pipeline result, with the channel errors
// preserved in DeliveryError.
//
// Fields:
//   - Title: display title, e.g. "Your Feed Digest - Mar 2".
//   - Content: the newsletter body in Markdown.
//   - RecordCount: posts summarized into this briefing.
//   - PeriodStart / PeriodEnd: the window of posts covered.
//   - DeliveredEmail / DeliveredTelegram: per-channel success flags.
//   - DeliveryError: "; "-joined channel failures, nil when all succeeded.
//   - DeletedAt: soft deletion marker (users may discard briefings).
type Briefing struct {
	ID                string         `json:"id"           gorm:"type:char(36);primaryKey"`
	OwnerID           string         `json:"owner_id"     gorm:"type:varchar(64);not null;index:idx_briefings_owner_created,priority:1"`
	Title             string         `json:"title"        gorm:"type:varchar(255);not null"`
	Content           string         `json:"content"      gorm:"type:text;not null"`
	RecordCount       int            `json:"record_count" gorm:"not null;default:0"`
	PeriodStart       time.Time      `json:"period_start"`
	PeriodEnd         time.Time      `json:"period_end"`
	DeliveredEmail    bool           `json:"delivered_email"    gorm:"not null;default:false"`
	DeliveredTelegram bool           `json:"delivered_telegram" gorm:"not null;default:false"`
	DeliveryError     *string        `json:"delivery_error,omitempty" gorm:"type:text"`
	CreatedAt         time.Time      `json:"created_at"   gorm:"index:idx_briefings_owner_created,priority:2"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `json:"-"            gorm:"index"`
}

// TableName returns the database table name for Briefing.
func (Briefing) TableName() string { return "briefings" }

// UserSettings holds one tenant's digest configuration. Exactly one row per
// owner (enforced by unique index); readers create the row on first access
// with the defaults below.
//
// Fields:
//   - FeedSource: "scrape" (browser acquisition) or "api" (live API).
//   - MaxRecords: acquisition cap and retention keep-count.
//   - SummaryHours: look-back window for briefing content.
//   - PromptPreset / CustomPrompt: named preset or free-form instructions;
//     a non-empty CustomPrompt wins.
//   - LLMProvider: openai | lmstudio | anthropic.
//   - ScheduleHour: tenant-local hour (0-23) when the daily digest is due.
//   - Timezone: IANA name used to evaluate ScheduleHour.
//   - Email / TelegramChatID: delivery addresses for the enabled channels.
type UserSettings struct {
	ID              string         `json:"id"               gorm:"type:char(36);primaryKey"`
	OwnerID         string         `json:"owner_id"         gorm:"type:varchar(64);not null;uniqueIndex:ux_settings_owner"`
	FeedSource      string         `json:"feed_source"      gorm:"type:varchar(16);not null;default:'scrape';check:feed_source IN ('scrape','api')"`
	MaxRecords      int            `json:"max_records"      gorm:"not null;default:100"`
	SummaryHours    int            `json:"summary_hours"    gorm:"not null;default:24"`
	PromptPreset    string         `json:"prompt_preset"    gorm:"type:varchar(64);not null;default:'newsletter'"`
	CustomPrompt    string         `json:"custom_prompt"    gorm:"type:text"`
	LLMProvider     string         `json:"llm_provider"     gorm:"type:varchar(16);not null;default:'openai';check:llm_provider IN ('openai','lmstudio','anthropic')"`
	ScheduleHour    int            `json:"schedule_hour"    gorm:"not null;default:8;check:schedule_hour BETWEEN 0 AND 23"`
	Timezone        string         `json:"timezone"         gorm:"type:varchar(64);not null;default:'UTC'"`
	DigestEnabled   bool           `json:"digest_enabled"   gorm:"not null;default:true"`
	EmailEnabled    bool           `json:"email_enabled"    gorm:"not null;default:false"`
	TelegramEnabled bool           `json:"telegram_enabled" gorm:"not null;default:false"`
	Email           string         `json:"email"            gorm:"type:varchar(255)"`
	TelegramChatID  string         `json:"telegram_chat_id" gorm:"type:varchar(64)"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-"                gorm:"index"`
}

// TableName returns the database table name for UserSettings.
func (UserSettings) TableName() string { return "user_settings" }
