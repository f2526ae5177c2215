// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the StoredPost
// model, the durable form of acquired feed posts.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a post is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Functions:
//
//   - InsertPosts(ctx, db, ownerID, batch) -> (inserted int, error)
//     Stores the not-yet-known members of an acquisition batch in one
//     transaction, preserving batch order. Already-stored posts and posts
//     without an external id are skipped, never treated as failures.
//
//   - PostExists(ctx, db, ownerID, externalID) -> (bool, error)
//     The known-content oracle used by the acquisition loop's early stop.
//
//   - ListPostsSince(ctx, db, ownerID, since, limit) -> []domain.StoredPost, error
//     Returns posts stored at or after since, newest first; the briefing
//     content window.
//
//   - CountPosts / ListPostsPage
//     Pagination pair for the HTTP browsing surface.
//
//   - TrimToNewest(ctx, db, ownerID, keep) -> (deleted int64, error)
//     Retention: deletes everything older than the keep-th newest row.
//
// This repository is designed to be wrapped by higher-level services
// (see services.PipelineService) which enforce business rules and
// cross-aggregate behavior.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-feed-digest/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// isUniqueViolation reports whether err is a unique-constraint failure.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations,
// so the check is partly textual.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}

// storedFromFeed maps an acquired post onto its durable row for ownerID.
func storedFromFeed(ownerID string, p domain.FeedPost, storedAt time.Time) domain.StoredPost {
	return domain.StoredPost{
		ID:             uuid.NewString(),
		ExternalID:     p.ExternalID,
		OwnerID:        ownerID,
		AuthorHandle:   p.AuthorHandle,
		AuthorName:     p.AuthorName,
		Content:        p.Content,
		PostedAt:       p.PostedAt,
		Likes:          p.Likes,
		Reposts:        p.Reposts,
		Replies:        p.Replies,
		MediaURLs:      domain.EncodeMediaURLs(p.MediaURLs),
		IsRepost:       p.IsRepost,
		RepostOfAuthor: p.RepostOfAuthor,
		IsReply:        p.IsReply,
		ReplyToHandle:  p.ReplyToHandle,
		StoredAt:       storedAt,
	}
}

// InsertPosts stores the new members of batch for ownerID inside a single
// transaction and returns how many rows were actually inserted. Posts whose
// external id is already stored for this owner are skipped; so are in-batch
// duplicates and posts without an external id. A concurrent writer landing
// the same external id between our existence check and insert is tolerated
// via the unique index, not reported as an error.
func InsertPosts(ctx context.Context, db *gorm.DB, ownerID string, batch []domain.FeedPost) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	inserted := 0
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make([]string, 0, len(batch))
		for _, p := range batch {
			if p.ExternalID != "" {
				ids = append(ids, p.ExternalID)
			}
		}
		if len(ids) == 0 {
			return nil
		}

		var existing []string
		if err := tx.Model(&domain.StoredPost{}).
			Where("owner_id = ? AND external_id IN ?", ownerID, ids).
			Pluck("external_id", &existing).Error; err != nil {
			return err
		}
		known := make(map[string]struct{}, len(existing))
		for _, id := range existing {
			known[id] = struct{}{}
		}

		now := time.Now().UTC()
		for _, p := range batch {
			if p.ExternalID == "" {
				continue
			}
			if _, dup := known[p.ExternalID]; dup {
				continue
			}
			known[p.ExternalID] = struct{}{}

			row := storedFromFeed(ownerID, p, now)
			if err := tx.Create(&row).Error; err != nil {
				if isUniqueViolation(err) {
					continue
				}
				return err
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// PostExists reports whether externalID is already stored for ownerID. This
// is the oracle behind the acquisition loop's caught-up detection, so it must
// stay a single indexed lookup.
func PostExists(ctx context.Context, db *gorm.DB, ownerID, externalID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.StoredPost{}).
		Where("owner_id = ? AND external_id = ?", ownerID, externalID).
		Count(&n).Error
	return n > 0, err
}

// ListPostsSince returns ownerID's posts stored at or after since, newest
// first. A positive limit caps the result; limit <= 0 returns the whole
// window. On DB error, it returns the error.
func ListPostsSince(ctx context.Context, db *gorm.DB, ownerID string, since time.Time, limit int) ([]domain.StoredPost, error) {
	q := db.WithContext(ctx).
		Where("owner_id = ? AND stored_at >= ?", ownerID, since).
		Order("stored_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.StoredPost
	err := q.Find(&out).Error
	return out, err
}

// CountPosts returns the total number of stored posts owned by ownerID.
// On DB error, it returns the error.
func CountPosts(ctx context.Context, db *gorm.DB, ownerID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.StoredPost{}).
		Where("owner_id = ?", ownerID).
		Count(&total).Error
	return total, err
}

// CountPostsSince returns how many of ownerID's posts were stored at or
// after since. Companion to ListPostsPageSince for pagination metadata.
func CountPostsSince(ctx context.Context, db *gorm.DB, ownerID string, since time.Time) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.StoredPost{}).
		Where("owner_id = ? AND stored_at >= ?", ownerID, since).
		Count(&total).Error
	return total, err
}

// ListPostsPage returns a paginated slice of stored posts for ownerID,
// newest first. Use CountPosts to obtain the total for pagination metadata.
// On DB error, it returns the error.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListPostsPage(ctx context.Context, db *gorm.DB, ownerID string, offset, limit int) ([]domain.StoredPost, error) {
	var out []domain.StoredPost
	err := db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("stored_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListPostsPageSince is ListPostsPage restricted to posts stored at or after
// since. Use CountPostsSince to obtain the matching total.
func ListPostsPageSince(ctx context.Context, db *gorm.DB, ownerID string, since time.Time, offset, limit int) ([]domain.StoredPost, error) {
	var out []domain.StoredPost
	err := db.WithContext(ctx).
		Where("owner_id = ? AND stored_at >= ?", ownerID, since).
		Order("stored_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// TrimToNewest deletes ownerID's rows older than the keep-th newest one and
// returns how many were removed. With keep <= 0 or fewer than keep rows it
// is a no-op. Rows sharing the cutoff timestamp all survive, so a large
// batch stored in one instant can leave slightly more than keep rows.
func TrimToNewest(ctx context.Context, db *gorm.DB, ownerID string, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}

	var cutoff struct {
		StoredAt time.Time
	}
	err := db.WithContext(ctx).
		Model(&domain.StoredPost{}).
		Select("stored_at").
		Where("owner_id = ?", ownerID).
		Order("stored_at desc").
		Offset(keep - 1).
		Limit(1).
		Take(&cutoff).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	res := db.WithContext(ctx).
		Where("owner_id = ? AND stored_at < ?", ownerID, cutoff.StoredAt).
		Delete(&domain.StoredPost{})
	return res.RowsAffected, res.Error
}
