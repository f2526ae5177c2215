// Settings HTTP handlers.
//
// This file exposes REST endpoints for tenant digest configuration:
//   - GET   /settings   (read, row created with defaults on first access)
//   - PATCH /settings   (sparse update, validated field by field)
//
// It also carries the shared handler wiring: the Handlers struct, the service
// contracts consumed by the HTTP layer, and the pagination helpers used by
// list endpoints.
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-feed-digest/internal/domain"
	"github.com/tbourn/go-feed-digest/internal/services"
	"github.com/tbourn/go-feed-digest/internal/utils"
)

//
// Service contracts (context-aware)
//

// SettingsService defines the tenant configuration operations consumed by
// HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type SettingsService interface {
	// Get returns the owner's settings, creating the row on first access.
	Get(ctx context.Context, ownerID string) (*domain.UserSettings, error)
	// Update validates a sparse patch and applies it.
	Update(ctx context.Context, ownerID string, upd services.SettingsUpdate) (*domain.UserSettings, error)
}

// TriggerService defines on-demand pipeline execution, consumed by the
// manual digest trigger endpoint.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type TriggerService interface {
	// Trigger runs the owner's pipeline immediately and blocks until it
	// finishes.
	Trigger(ctx context.Context, ownerID string) (*services.PipelineOutcome, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for settings, briefings, posts, runs, and
// the manual digest trigger. Mutating flows go through the service contracts;
// read-only listings query the repository directly on the shared DB handle.
type Handlers struct {
	db          *gorm.DB
	settingsSvc SettingsService
	trigger     TriggerService
	events      *services.RunEventHub
	idemTTL     time.Duration
}

// New constructs and returns a Handlers instance bound to the given
// dependencies. idemTTL bounds how long a recorded trigger result stays
// replayable; non-positive values fall back to 24h.
func New(db *gorm.DB, settingsSvc SettingsService, trigger TriggerService, events *services.RunEventHub, idemTTL time.Duration) *Handlers {
	if idemTTL <= 0 {
		idemTTL = 24 * time.Hour
	}
	return &Handlers{db: db, settingsSvc: settingsSvc, trigger: trigger, events: events, idemTTL: idemTTL}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// Shared DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.ClampInt(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return
}

// paginationMeta assembles the Pagination envelope from a page request and
// the total row count.
func paginationMeta(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

//
// Handlers
//

// GetSettings godoc
// @ID          getSettings
// @Summary     Get digest settings
// @Description Returns the current user's digest configuration, creating it with defaults on first access.
// @Tags        Settings
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     200  {object}  domain.UserSettings
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /settings [get]
func (h *Handlers) GetSettings(c *gin.Context) {
	set, err := h.settingsSvc.Get(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, set)
}

// UpdateSettings godoc
// @ID          updateSettings
// @Summary     Update digest settings
// @Description Applies a sparse patch to the current user's digest configuration.
// @Description Absent fields are left untouched; a single invalid value rejects the whole patch.
// @Tags        Settings
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    services.SettingsUpdate  true  "Sparse settings patch"
//
// @Success     200  {object}  domain.UserSettings
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid patch"
// @Failure     404  {object}  handlers.ErrorResponse  "Settings not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /settings [patch]
func (h *Handlers) UpdateSettings(c *gin.Context) {
	var upd services.SettingsUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	set, err := h.settingsSvc.Update(c.Request.Context(), userID(c), upd)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidSetting):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		case errors.Is(err, services.ErrSettingsNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "settings not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, set)
}
