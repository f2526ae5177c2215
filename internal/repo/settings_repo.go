// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// UserSettings model: one configuration row per tenant, created lazily with
// defaults on first access.
//
// Value validation (enum membership, ranges) belongs to the service layer;
// this file only persists. The DB check constraints are a second line of
// defense, not the primary one.
package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-feed-digest/internal/domain"
)

// defaultSettings mirrors the column defaults so a freshly created row is
// complete without a round trip.
func defaultSettings(ownerID string) domain.UserSettings {
	return domain.UserSettings{
		ID:            uuid.NewString(),
		OwnerID:       ownerID,
		FeedSource:    domain.FeedSourceScrape,
		MaxRecords:    100,
		SummaryHours:  24,
		PromptPreset:  "newsletter",
		LLMProvider:   domain.ProviderOpenAI,
		ScheduleHour:  8,
		Timezone:      "UTC",
		DigestEnabled: true,
	}
}

// GetSettings returns ownerID's settings row, or ErrNotFound when the tenant
// has never been configured.
func GetSettings(ctx context.Context, db *gorm.DB, ownerID string) (*domain.UserSettings, error) {
	var s domain.UserSettings
	err := db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetOrCreateSettings returns ownerID's settings, creating the row with
// defaults on first access. A concurrent first access losing the insert race
// falls back to reading the winner's row.
func GetOrCreateSettings(ctx context.Context, db *gorm.DB, ownerID string) (*domain.UserSettings, error) {
	s, err := GetSettings(ctx, db, ownerID)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	row := defaultSettings(ownerID)
	if err := db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return GetSettings(ctx, db, ownerID)
		}
		return nil, err
	}
	return &row, nil
}

// UpdateSettings applies the given column updates to ownerID's row and
// returns the refreshed settings. The caller supplies already-validated
// column/value pairs. Returns ErrNotFound when the tenant has no settings
// row yet.
func UpdateSettings(ctx context.Context, db *gorm.DB, ownerID string, updates map[string]any) (*domain.UserSettings, error) {
	if len(updates) == 0 {
		return GetSettings(ctx, db, ownerID)
	}
	res := db.WithContext(ctx).
		Model(&domain.UserSettings{}).
		Where("owner_id = ?", ownerID).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return GetSettings(ctx, db, ownerID)
}

// ListDigestEnabledSettings returns every tenant row with the scheduled
// digest switched on. The scheduler sweeps this list once per tick.
func ListDigestEnabledSettings(ctx context.Context, db *gorm.DB) ([]domain.UserSettings, error) {
	var out []domain.UserSettings
	err := db.WithContext(ctx).
		Where("digest_enabled = ?", true).
		Order("owner_id asc").
		Find(&out).Error
	return out, err
}
