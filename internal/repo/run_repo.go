// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the ScrapeRun
// model, the audit trail of acquisition executions.
//
// Lifecycle: StartRun inserts a row in the running state before the loop
// begins; FinishRun transitions it to its terminal status exactly once.
// A second finalize attempt finds no running row and returns ErrNotFound,
// which keeps crash-recovery paths from rewriting history.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-feed-digest/internal/domain"
)

// StartRun inserts a ScrapeRun row in the running state for ownerID and
// returns it. StartedAt is set to UTC now.
func StartRun(ctx context.Context, db *gorm.DB, ownerID string) (*domain.ScrapeRun, error) {
	r := &domain.ScrapeRun{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		StartedAt: time.Now().UTC(),
		Status:    domain.RunStatusRunning,
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// FinishRun finalizes a run with its counters and terminal status. Only a
// row still in the running state is updated; if the run is missing or was
// already finalized, ErrNotFound is returned and nothing changes.
func FinishRun(ctx context.Context, db *gorm.DB, id string, found, inserted int, status string) error {
	now := time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.ScrapeRun{}).
		Where("id = ? AND status = ?", id, domain.RunStatusRunning).
		Updates(map[string]any{
			"finished_at":   &now,
			"records_found": found,
			"records_new":   inserted,
			"status":        status,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetRun fetches a single run by its ID and owner. If the record does not
// exist, it returns ErrNotFound. On other DB errors, the raw error is
// returned.
func GetRun(ctx context.Context, db *gorm.DB, id, ownerID string) (*domain.ScrapeRun, error) {
	var r domain.ScrapeRun
	err := db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// LatestRun returns ownerID's most recently started run, or ErrNotFound when
// there is none.
func LatestRun(ctx context.Context, db *gorm.DB, ownerID string) (*domain.ScrapeRun, error) {
	var r domain.ScrapeRun
	err := db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("started_at desc").
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CountRuns returns the total number of runs recorded for ownerID.
// On DB error, it returns the error.
func CountRuns(ctx context.Context, db *gorm.DB, ownerID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.ScrapeRun{}).
		Where("owner_id = ?", ownerID).
		Count(&total).Error
	return total, err
}

// ListRunsPage returns a paginated slice of runs for ownerID, most recently
// started first. Use CountRuns to obtain the total for pagination metadata.
// On DB error, it returns the error.
func ListRunsPage(ctx context.Context, db *gorm.DB, ownerID string, offset, limit int) ([]domain.ScrapeRun, error) {
	var out []domain.ScrapeRun
	err := db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("started_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
