package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-feed-digest/internal/domain"
)

func newIdemRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("idem_repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

// Every flavor of miss collapses to ErrNotFound: the caller cannot tell a
// never-seen key from an expired one, and does not need to.
func TestGetIdempotency_MissesCollapseToNotFound(t *testing.T) {
	db := newIdemRepoDB(t, &domain.Idempotency{})
	now := time.Now().UTC()

	expired := &domain.Idempotency{
		ID:         "rec-expired",
		OwnerID:    "demo-user",
		Key:        "retry-feb-01",
		BriefingID: "brf-old",
		Status:     200,
		CreatedAt:  now.Add(-48 * time.Hour),
		ExpiresAt:  now.Add(-24 * time.Hour),
	}
	if err := db.Create(expired).Error; err != nil {
		t.Fatalf("seed expired: %v", err)
	}

	cases := []struct {
		name string
		key  string
	}{
		{"empty key", ""},
		{"whitespace key", "   "},
		{"unknown key", "never-sent"},
		{"expired key", "retry-feb-01"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := GetIdempotency(context.Background(), db, "demo-user", tc.key, now)
			if rec != nil {
				t.Fatalf("record = %+v, want nil", rec)
			}
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestGetIdempotency_ReturnsLiveRecord(t *testing.T) {
	db := newIdemRepoDB(t, &domain.Idempotency{})
	now := time.Now().UTC()

	live := &domain.Idempotency{
		ID:         "rec-live",
		OwnerID:    "demo-user",
		Key:        "7a8d9f4c",
		BriefingID: "brf-42",
		Status:     200,
		CreatedAt:  now.Add(-time.Minute),
		ExpiresAt:  now.Add(time.Hour),
	}
	if err := db.Create(live).Error; err != nil {
		t.Fatalf("seed live: %v", err)
	}

	rec, err := GetIdempotency(context.Background(), db, "demo-user", "7a8d9f4c", now)
	if err != nil {
		t.Fatalf("GetIdempotency: %v", err)
	}
	if rec.BriefingID != "brf-42" || rec.Status != 200 {
		t.Fatalf("record = %+v, want briefing brf-42 status 200", rec)
	}

	// The key is owner-scoped: another tenant sending the same key misses.
	if _, err := GetIdempotency(context.Background(), db, "other-user", "7a8d9f4c", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-owner err = %v, want ErrNotFound", err)
	}
}

func TestCreateIdempotency_RecordsTriggerOutcome(t *testing.T) {
	db := newIdemRepoDB(t, &domain.Idempotency{})

	ttl := 90 * time.Minute
	before := time.Now().UTC()

	rec, err := CreateIdempotency(context.Background(), db, "demo-user", "7a8d9f4c", "brf-42", 200, ttl)
	if err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("expected a generated record id")
	}
	if rec.OwnerID != "demo-user" || rec.Key != "7a8d9f4c" || rec.BriefingID != "brf-42" || rec.Status != 200 {
		t.Fatalf("record = %+v", rec)
	}
	// Loose expiry bound to avoid timing flakes.
	if !rec.ExpiresAt.After(before.Add(ttl/2)) || !rec.ExpiresAt.Before(before.Add(2*ttl)) {
		t.Fatalf("ExpiresAt = %v, want roughly %v after %v", rec.ExpiresAt, ttl, before)
	}

	// A freshly created record is immediately visible to the replay lookup.
	got, err := GetIdempotency(context.Background(), db, "demo-user", "7a8d9f4c", time.Now().UTC())
	if err != nil {
		t.Fatalf("readback: %v", err)
	}
	if got.ID != rec.ID || got.BriefingID != "brf-42" {
		t.Fatalf("readback = %+v, want id %s", got, rec.ID)
	}
}

func TestCreateIdempotency_DuplicateKeyPerOwner(t *testing.T) {
	db := newIdemRepoDB(t, &domain.Idempotency{})
	ttl := time.Hour

	if _, err := CreateIdempotency(context.Background(), db, "demo-user", "retry-001", "brf-1", 200, ttl); err != nil {
		t.Fatalf("first create: %v", err)
	}

	// Same owner and key: the unique index rejects the insert.
	if _, err := CreateIdempotency(context.Background(), db, "demo-user", "retry-001", "brf-2", 200, ttl); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}

	// Same key under a different owner is an independent record.
	if _, err := CreateIdempotency(context.Background(), db, "other-user", "retry-001", "brf-3", 200, ttl); err != nil {
		t.Fatalf("cross-owner create: %v", err)
	}
}

func TestCreateIdempotency_SurfacesDriverErrors(t *testing.T) {
	db := newIdemRepoDB(t) // table never migrated

	_, err := CreateIdempotency(context.Background(), db, "demo-user", "k", "b", 200, time.Minute)
	if err == nil {
		t.Fatal("expected an error with the table missing")
	}
	if errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want anything but ErrDuplicate", err)
	}
}
