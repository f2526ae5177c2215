// Manual digest trigger HTTP handler.
//
// This file exposes the endpoint that runs the full pipeline on demand:
//   - POST /digest/trigger
//
// The trigger honors the same single-flight and duplicate-briefing guards as
// scheduled runs and supports idempotency via the Idempotency-Key header: a
// repeated key replays the recorded briefing and sets
// `Idempotency-Replayed: true` instead of running the pipeline again.
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-feed-digest/internal/domain"
	"github.com/tbourn/go-feed-digest/internal/http/middleware"
	"github.com/tbourn/go-feed-digest/internal/repo"
	"github.com/tbourn/go-feed-digest/internal/services"
)

// triggerIdempotencyKey reads the validated idempotency key stashed by the
// middleware, falling back to the raw header when the validator is not
// installed (tests exercise handlers without it).
func triggerIdempotencyKey(c *gin.Context) string {
	if k, ok := middleware.GetIdempotencyKey(c); ok && k != "" {
		return k
	}
	return strings.TrimSpace(c.GetHeader(middleware.HeaderIdempotencyKey))
}

// TriggerDigest godoc
// @ID          triggerDigest
// @Summary     Run the digest pipeline now
// @Description Executes acquisition, ingestion, summarization, and delivery for the current
// @Description user and blocks until the run finishes. The response reports the run outcome;
// @Description a failed run is still a 200 with its failure status. A replayed request
// @Description reports the recorded briefing with zero record counts, since the counts
// @Description describe work done by this request.
// @Tags        Digest
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
//
// @Success     200  {object}  services.PipelineOutcome
// @Header      200  {string}  Idempotency-Replayed  "true when a recorded result was returned"
// @Failure     409  {object}  handlers.ErrorResponse "Run in flight or briefing too recent"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /digest/trigger [post]
func (h *Handlers) TriggerDigest(c *gin.Context) {
	ctx := c.Request.Context()
	owner := userID(c)
	idemKey := triggerIdempotencyKey(c)

	// Idempotency (replay path): return the recorded briefing if it still
	// exists; a discarded briefing falls through to a fresh run.
	if idemKey != "" && h.db != nil {
		if rec, err := repo.GetIdempotency(ctx, h.db, owner, idemKey, time.Now().UTC()); err == nil && rec != nil && rec.BriefingID != "" {
			if prev, err2 := repo.GetBriefing(ctx, h.db, rec.BriefingID, owner); err2 == nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, http.StatusOK, &services.PipelineOutcome{
					Status:   domain.RunStatusCompleted,
					Briefing: prev,
				})
				return
			}
		}
	}

	out, err := h.trigger.Trigger(ctx, owner)
	if err != nil {
		switch err {
		case services.ErrPipelineBusy:
			fail(c, http.StatusConflict, ErrCodeConflict, "a run is already in flight")
		case services.ErrRecentBriefing:
			fail(c, http.StatusConflict, ErrCodeConflict, "a recent briefing already exists")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeTriggerFailed, err.Error())
		}
		return
	}

	// Idempotency (store path): best effort; only completed runs with a
	// briefing are recorded.
	if idemKey != "" && h.db != nil && out.Completed() && out.Briefing != nil {
		_, _ = repo.CreateIdempotency(ctx, h.db, owner, idemKey, out.Briefing.ID, http.StatusOK, h.idemTTL)
	}

	ok(c, http.StatusOK, out)
}
