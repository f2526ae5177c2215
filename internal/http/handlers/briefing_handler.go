// Briefing HTTP handlers.
//
// This file exposes REST endpoints for generated digest briefings:
//   - GET    /briefings          (list, paginated, ETag support)
//   - GET    /briefings/latest   (most recent briefing)
//   - GET    /briefings/{id}     (single briefing)
//   - DELETE /briefings/{id}     (discard a briefing)
//
// Briefings are produced by the pipeline; the HTTP layer only reads and
// discards them, so these handlers query the repository directly.
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-feed-digest/internal/domain"
	"github.com/tbourn/go-feed-digest/internal/repo"
)

// ListBriefingsResponse wraps a page of briefings and pagination information.
type ListBriefingsResponse struct {
	Briefings  []domain.Briefing `json:"briefings"`
	Pagination Pagination        `json:"pagination"`
}

// ListBriefings godoc
// @ID          listBriefings
// @Summary     List briefings (paginated)
// @Description Returns a page of the user's briefings, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Briefings
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListBriefingsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /briefings [get]
func (h *Handlers) ListBriefings(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if h.db != nil {
		count, maxTS, err := repo.BriefingsStats(ctx, h.db, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"briefings:%s:%d:%d"`, uid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	total, err := repo.CountBriefings(ctx, h.db, uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	items, err := repo.ListBriefingsPage(ctx, h.db, uid, (page-1)*pageSize, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	ok(c, http.StatusOK, ListBriefingsResponse{
		Briefings:  items,
		Pagination: paginationMeta(page, pageSize, total),
	})
}

// LatestBriefing godoc
// @ID          latestBriefing
// @Summary     Get the most recent briefing
// @Description Returns the user's newest briefing, or 404 when none has been generated yet.
// @Tags        Briefings
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     200  {object} domain.Briefing
// @Failure     404  {object} handlers.ErrorResponse "No briefing yet"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /briefings/latest [get]
func (h *Handlers) LatestBriefing(c *gin.Context) {
	b, err := repo.LatestBriefing(c.Request.Context(), h.db, userID(c))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "no briefing yet")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, b)
}

// GetBriefing godoc
// @ID          getBriefing
// @Summary     Get a briefing
// @Description Returns a single briefing owned by the current user.
// @Tags        Briefings
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Briefing ID (UUID)"     format(uuid)
//
// @Success     200  {object} domain.Briefing
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Briefing not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /briefings/{id} [get]
func (h *Handlers) GetBriefing(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "briefing id must be a UUID")
		return
	}

	b, err := repo.GetBriefing(c.Request.Context(), h.db, id, userID(c))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "briefing not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, b)
}

// DeleteBriefing godoc
// @ID          deleteBriefing
// @Summary     Discard a briefing
// @Description Soft-deletes a briefing owned by the current user.
// @Tags        Briefings
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Briefing ID (UUID)"     format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Briefing not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /briefings/{id} [delete]
func (h *Handlers) DeleteBriefing(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "briefing id must be a UUID")
		return
	}

	if err := repo.DeleteBriefing(c.Request.Context(), h.db, id, userID(c)); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "briefing not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeDeleteFailed, err.Error())
		return
	}
	noContent(c)
}
