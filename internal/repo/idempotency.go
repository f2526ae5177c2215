// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the Idempotency
// model, which backs the Idempotency-Key contract on the manual trigger
// endpoint.
//
// Lifecycle: once a trigger produces a briefing, CreateIdempotency writes
// one row per (owner, key). A replay within the TTL finds that row twice,
// first in middleware (to skip rate limiting) and again in the handler
// (to re-serve the recorded briefing instead of scraping a second time).
// Rows are never deleted; expiry is enforced at read time.
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

// ErrDuplicate reports that a row already exists for the (owner_id, key)
// pair. Callers treat it as "a concurrent request won the race" and fall
// back to reading the stored record.
var ErrDuplicate = errors.New("duplicate")

// GetIdempotency loads the record for (ownerID, key) if one exists and has
// not yet expired as of now. Blank keys never match; blank, absent, and
// expired all come back as ErrNotFound so callers have a single miss path.
func GetIdempotency(ctx context.Context, db *gorm.DB, ownerID, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where("owner_id = ? AND key = ? AND expires_at > ?", ownerID, key, now).
		First(&rec).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrNotFound
	case err != nil:
		return nil, err
	}
	return &rec, nil
}

// CreateIdempotency records the outcome of a completed trigger: the briefing
// it produced, the HTTP status that was served, and an expiry ttl from now.
// A unique violation on (owner_id, key) maps to ErrDuplicate.
func CreateIdempotency(ctx context.Context, db *gorm.DB, ownerID, key, briefingID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	now := time.Now().UTC()
	rec := &domain.Idempotency{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Key:        key,
		BriefingID: briefingID,
		Status:     status,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}
