// Acquisition run HTTP handlers.
//
// This file exposes REST endpoints over pipeline run history plus a live
// event stream:
//   - GET /runs          (list, paginated)
//   - GET /runs/stream   (websocket; per-stage events for the user's runs)
//
// The stream fans out the stage events published by the pipeline. It is lossy
// under backpressure (slow consumers miss events rather than stall the
// pipeline), so clients needing a complete record must consult the run list.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tbourn/go-feed-digest/internal/domain"
	"github.com/tbourn/go-feed-digest/internal/repo"
)

// Stream timing. The ping interval must stay comfortably below the pong
// wait so healthy clients are never timed out.
const (
	runStreamWriteWait    = 10 * time.Second
	runStreamPongWait     = 60 * time.Second
	runStreamPingInterval = 30 * time.Second
)

// runStreamUpgrader accepts any origin; authentication is header-based and
// cookie-free.
var runStreamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// ListRunsResponse wraps a page of acquisition runs and pagination
// information.
type ListRunsResponse struct {
	Runs       []domain.ScrapeRun `json:"runs"`
	Pagination Pagination         `json:"pagination"`
}

// ListRuns godoc
// @ID          listRuns
// @Summary     List acquisition runs (paginated)
// @Description Returns a page of the user's pipeline runs, newest first, including
// @Description in-flight ones still in the running state.
// @Tags        Runs
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       page       query   int     false "Page number"            minimum(1) default(1)
// @Param       page_size  query   int     false "Items per page"         minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListRunsResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /runs [get]
func (h *Handlers) ListRuns(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	page, pageSize := clampPagination(c)

	total, err := repo.CountRuns(ctx, h.db, uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	items, err := repo.ListRunsPage(ctx, h.db, uid, (page-1)*pageSize, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	ok(c, http.StatusOK, ListRunsResponse{
		Runs:       items,
		Pagination: paginationMeta(page, pageSize, total),
	})
}

// StreamRuns godoc
// @ID          streamRuns
// @Summary     Stream run events (websocket)
// @Description Upgrades to a websocket and pushes pipeline stage events for the current
// @Description user's runs as JSON messages until the client disconnects.
// @Tags        Runs
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     101  {string} string "Switching Protocols"
// @Failure     503  {object} handlers.ErrorResponse "Stream not enabled"
// @Router      /runs/stream [get]
func (h *Handlers) StreamRuns(c *gin.Context) {
	if h.events == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeInternal, "run stream not enabled")
		return
	}
	owner := userID(c)

	conn, err := runStreamUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		return
	}
	defer conn.Close()

	events, cancel := h.events.Subscribe()
	defer cancel()

	// Reader loop: consumes pongs and surfaces client close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = conn.SetReadDeadline(time.Now().Add(runStreamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(runStreamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(runStreamPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			if ev.OwnerID != owner {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(runStreamWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(runStreamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
