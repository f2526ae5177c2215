// Stored post HTTP handlers.
//
// This file exposes REST endpoints over the tenant's stored timeline posts:
//   - GET /posts          (list, paginated, optional hours window, ETag support)
//   - GET /posts/stats    (engagement aggregate over a look-back window)
//   - GET /posts/search   (keyword similarity search)
//
// Posts are written only by the ingestion pipeline; the HTTP layer is
// read-only and queries the repository directly.
package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-feed-digest/internal/domain"
	"github.com/tbourn/go-feed-digest/internal/repo"
	"github.com/tbourn/go-feed-digest/internal/search"
	"github.com/tbourn/go-feed-digest/internal/utils"
)

// Query parameter bounds for the post endpoints. maxWindowHours matches the
// widest summary window a tenant can configure.
const (
	defaultStatsHours = 24
	maxWindowHours    = 168
	defaultSearchK    = 10
	maxSearchK        = 50
	searchScanCap     = 500
)

//
// DTOs
//

// PostView is a stored post with its media URLs decoded for transport; the
// persistence model keeps them as an opaque JSON column.
type PostView struct {
	domain.StoredPost
	MediaURLs []string `json:"media_urls,omitempty"`
}

// ListPostsResponse wraps a page of posts and pagination information.
type ListPostsResponse struct {
	Posts      []PostView `json:"posts"`
	Pagination Pagination `json:"pagination"`
}

// PostStatsResponse reports the engagement aggregate for a look-back window.
// Averages are per stored post and zero when the window is empty.
type PostStatsResponse struct {
	WindowHours int       `json:"window_hours"`
	Since       time.Time `json:"since"`
	repo.Engagement
	AvgLikes   float64 `json:"avg_likes"`
	AvgReposts float64 `json:"avg_reposts"`
}

// SearchHit is one ranked search result.
type SearchHit struct {
	Post  PostView `json:"post"`
	Score float64  `json:"score"`
}

// SearchPostsResponse wraps ranked keyword search results.
type SearchPostsResponse struct {
	Query   string      `json:"query"`
	Results []SearchHit `json:"results"`
}

func postViews(rows []domain.StoredPost) []PostView {
	out := make([]PostView, len(rows))
	for i, p := range rows {
		out[i] = PostView{StoredPost: p, MediaURLs: p.MediaURLList()}
	}
	return out
}

// clampHours bounds an hours query parameter to [floor, maxWindowHours].
func clampHours(c *gin.Context, key string, def, floor int) int {
	return utils.ClampInt(utils.AtoiDefault(c.Query(key), def), floor, maxWindowHours)
}

//
// Handlers
//

// ListPosts godoc
// @ID          listPosts
// @Summary     List stored posts (paginated)
// @Description Returns a page of the user's stored posts, newest first. An optional hours
// @Description parameter restricts the listing to posts stored within that window.
// @Tags        Posts
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
// @Param       hours          query   int     false "Restrict to posts stored in the last N hours"  minimum(1) maximum(168)
//
// @Success     200  {object} handlers.ListPostsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /posts [get]
func (h *Handlers) ListPosts(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	page, pageSize := clampPagination(c)
	hours := clampHours(c, "hours", 0, 0)

	// ETag pre-check (best effort). Only the unwindowed listing carries one;
	// a windowed result changes as time passes even without new rows.
	if h.db != nil && hours == 0 {
		count, maxTS, err := repo.PostsStats(ctx, h.db, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"posts:%s:%d:%d"`, uid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	var (
		total int64
		items []domain.StoredPost
		err   error
	)
	if hours > 0 {
		since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
		if total, err = repo.CountPostsSince(ctx, h.db, uid, since); err == nil {
			items, err = repo.ListPostsPageSince(ctx, h.db, uid, since, (page-1)*pageSize, pageSize)
		}
	} else {
		if total, err = repo.CountPosts(ctx, h.db, uid); err == nil {
			items, err = repo.ListPostsPage(ctx, h.db, uid, (page-1)*pageSize, pageSize)
		}
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	ok(c, http.StatusOK, ListPostsResponse{
		Posts:      postViews(items),
		Pagination: paginationMeta(page, pageSize, total),
	})
}

// PostStats godoc
// @ID          postStats
// @Summary     Engagement stats for stored posts
// @Description Aggregates the user's posts stored within the look-back window: totals,
// @Description unique authors, repost/reply/media counts, like and repost sums and averages,
// @Description and the most prolific author.
// @Tags        Posts
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       hours      query   int     false "Look-back window in hours"  minimum(1) maximum(168) default(24)
//
// @Success     200  {object} handlers.PostStatsResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /posts/stats [get]
func (h *Handlers) PostStats(c *gin.Context) {
	hours := clampHours(c, "hours", defaultStatsHours, 1)
	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	stats, err := repo.EngagementStats(c.Request.Context(), h.db, userID(c), since)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	resp := PostStatsResponse{WindowHours: hours, Since: since, Engagement: stats}
	if stats.Posts > 0 {
		resp.AvgLikes = float64(stats.LikesSum) / float64(stats.Posts)
		resp.AvgReposts = float64(stats.RepostsSum) / float64(stats.Posts)
	}
	ok(c, http.StatusOK, resp)
}

// SearchPosts godoc
// @ID          searchPosts
// @Summary     Search stored posts
// @Description Ranks the user's most recent stored posts against the query by token
// @Description similarity and returns the top k hits with their scores.
// @Tags        Posts
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       q          query   string  true  "Search query"           example(open source llm)
// @Param       k          query   int     false "Maximum hits"           minimum(1) maximum(50) default(10)
//
// @Success     200  {object} handlers.SearchPostsResponse
// @Failure     400  {object} handlers.ErrorResponse "Missing query"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /posts/search [get]
func (h *Handlers) SearchPosts(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "query parameter q required")
		return
	}
	k := utils.ClampInt(utils.AtoiDefault(c.Query("k"), defaultSearchK), 1, maxSearchK)

	// Newest first, so the scan cap keeps the recent timeline.
	rows, err := repo.ListPostsPage(c.Request.Context(), h.db, userID(c), 0, searchScanCap)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	results := search.NewPostIndex(rows).TopK(q, k)
	hits := make([]SearchHit, len(results))
	for i, r := range results {
		hits[i] = SearchHit{
			Post:  PostView{StoredPost: r.Post, MediaURLs: r.Post.MediaURLList()},
			Score: r.Score,
		}
	}
	ok(c, http.StatusOK, SearchPostsResponse{Query: q, Results: hits})
}
