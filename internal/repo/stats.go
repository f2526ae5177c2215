// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// for conditional responses (e.g., ETag generation) in the HTTP layer and
// for the engagement summary shown in digests and the stats endpoint.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-feed-digest/internal/domain"
)

// PostsStats returns aggregate metadata for a tenant's stored posts: the
// total number of rows and the maximum StoredAt timestamp among those rows.
//
// It executes two lightweight queries against the posts table scoped to the
// provided ownerID. When the tenant has no posts, the returned count is 0
// and maxStoredAt is nil.
//
// Return values:
//   - count:       total posts for ownerID
//   - maxStoredAt: pointer to the greatest StoredAt, or nil if no rows
//   - err:         database error, if any
func PostsStats(ctx context.Context, db *gorm.DB, ownerID string) (count int64, maxStoredAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.StoredPost{}).Where("owner_id = ?", ownerID)

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest stored_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		StoredAt time.Time
	}
	if err = q.Select("stored_at").Order("stored_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.StoredAt, nil
}

// BriefingsStats returns aggregate metadata for a tenant's briefings: the
// total number of rows and the maximum UpdatedAt timestamp among those rows.
// When the tenant has no briefings, the returned count is 0 and
// maxUpdatedAt is nil.
func BriefingsStats(ctx context.Context, db *gorm.DB, ownerID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Briefing{}).Where("owner_id = ?", ownerID)

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// Engagement aggregates a tenant's stored-post window. Sums treat unknown
// (NULL) counts as absent, not zero, so a window of count-less posts sums
// to 0 without inventing data.
type Engagement struct {
	Posts       int64  `json:"posts"`
	Authors     int64  `json:"authors"`
	RepostCount int64  `json:"repost_count"`
	ReplyCount  int64  `json:"reply_count"`
	WithMedia   int64  `json:"with_media"`
	LikesSum    int64  `json:"likes_sum"`
	RepostsSum  int64  `json:"reposts_sum"`
	RepliesSum  int64  `json:"replies_sum"`
	TopAuthor   string `json:"top_author,omitempty"`
	TopPosts    int64  `json:"top_author_posts,omitempty"`
}

// EngagementStats computes the engagement aggregate for ownerID's posts
// stored at or after since. Two queries: one scan for the sums, one for the
// most prolific author (ties broken alphabetically so results are stable).
func EngagementStats(ctx context.Context, db *gorm.DB, ownerID string, since time.Time) (Engagement, error) {
	var out Engagement

	err := db.WithContext(ctx).
		Model(&domain.StoredPost{}).
		Select(`COUNT(*) AS posts,
			COUNT(DISTINCT author_handle) AS authors,
			SUM(CASE WHEN is_repost THEN 1 ELSE 0 END) AS repost_count,
			SUM(CASE WHEN is_reply THEN 1 ELSE 0 END) AS reply_count,
			SUM(CASE WHEN media_urls <> '' THEN 1 ELSE 0 END) AS with_media,
			COALESCE(SUM(likes), 0) AS likes_sum,
			COALESCE(SUM(reposts), 0) AS reposts_sum,
			COALESCE(SUM(replies), 0) AS replies_sum`).
		Where("owner_id = ? AND stored_at >= ?", ownerID, since).
		Scan(&out).Error
	if err != nil {
		return Engagement{}, err
	}
	if out.Posts == 0 {
		return out, nil
	}

	var top struct {
		AuthorHandle string
		N            int64
	}
	err = db.WithContext(ctx).
		Model(&domain.StoredPost{}).
		Select("author_handle, COUNT(*) AS n").
		Where("owner_id = ? AND stored_at >= ? AND author_handle <> ''", ownerID, since).
		Group("author_handle").
		Order("n DESC, author_handle ASC").
		Limit(1).
		Take(&top).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return Engagement{}, err
	}
	out.TopAuthor = top.AuthorHandle
	out.TopPosts = top.N
	return out, nil
}
