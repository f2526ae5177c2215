// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Briefing
// model, the generated newsletter artifacts.
//
// Functions:
//
//   - CreateBriefing(ctx, db, ownerID, title, content, recordCount, periodStart, periodEnd)
//     Inserts a new briefing with UUID primary key; delivery flags start false.
//
//   - GetBriefing / LatestBriefing / CountBriefings / ListBriefingsPage
//     Read side, always scoped to the owning tenant.
//
//   - MarkBriefingDelivery(ctx, db, id, email, telegram, deliveryErr)
//     Records per-channel delivery outcomes on the artifact.
//
//   - DeleteBriefing(ctx, db, id, ownerID)
//     Soft-deletes a briefing (users may discard digests they have read).
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-feed-digest/internal/domain"
)

// CreateBriefing inserts a new briefing owned by ownerID. Delivery flags
// start false; they are set later by MarkBriefingDelivery once the channels
// have been attempted. On failure, it returns a DB error.
func CreateBriefing(ctx context.Context, db *gorm.DB, ownerID, title, content string, recordCount int, periodStart, periodEnd time.Time) (*domain.Briefing, error) {
	b := &domain.Briefing{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Title:       title,
		Content:     content,
		RecordCount: recordCount,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	}
	if err := db.WithContext(ctx).Create(b).Error; err != nil {
		return nil, err
	}
	return b, nil
}

// GetBriefing fetches a single briefing by its ID and owner. If the record
// does not exist (or was soft-deleted), it returns ErrNotFound. On other DB
// errors, the raw error is returned.
func GetBriefing(ctx context.Context, db *gorm.DB, id, ownerID string) (*domain.Briefing, error) {
	var b domain.Briefing
	err := db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// LatestBriefing returns ownerID's most recently created briefing, or
// ErrNotFound when the tenant has none. The scheduler consults this to
// decide whether a digest is already fresh enough.
func LatestBriefing(ctx context.Context, db *gorm.DB, ownerID string) (*domain.Briefing, error) {
	var b domain.Briefing
	err := db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at desc").
		First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CountBriefings returns the total number of briefings owned by ownerID.
// On DB error, it returns the error.
func CountBriefings(ctx context.Context, db *gorm.DB, ownerID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Briefing{}).
		Where("owner_id = ?", ownerID).
		Count(&total).Error
	return total, err
}

// ListBriefingsPage returns a paginated slice of briefings for ownerID,
// newest first. Use CountBriefings to obtain the total for pagination
// metadata. On DB error, it returns the error.
func ListBriefingsPage(ctx context.Context, db *gorm.DB, ownerID string, offset, limit int) ([]domain.Briefing, error) {
	var out []domain.Briefing
	err := db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// MarkBriefingDelivery records the per-channel delivery outcome for a
// briefing. deliveryErr carries the joined channel failures, or nil when
// every enabled channel succeeded. Returns ErrNotFound if the briefing does
// not exist.
func MarkBriefingDelivery(ctx context.Context, db *gorm.DB, id string, email, telegram bool, deliveryErr *string) error {
	res := db.WithContext(ctx).
		Model(&domain.Briefing{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"delivered_email":    email,
			"delivered_telegram": telegram,
			"delivery_error":     deliveryErr,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteBriefing soft-deletes a briefing identified by id and owned by
// ownerID. If no rows are affected (briefing missing or not owned by
// ownerID), it returns ErrNotFound. On DB error, the raw error is returned.
func DeleteBriefing(ctx context.Context, db *gorm.DB, id, ownerID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Delete(&domain.Briefing{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
