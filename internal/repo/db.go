// Package repo is the persistence layer. Posts, runs, briefings,
// settings, and idempotency records are stored through GORM on SQLite,
// using the pure Go driver so deployments stay cgo-free. This file holds
// the bootstrap: opening the database, tuning it for this workload, and
// migrating the schema.
package repo

import (
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/tbourn/go-feed-digest/internal/domain"
)

// Connection pool sizing. SQLite serializes writes anyway; the pool
// mainly serves concurrent readers.
const (
	maxOpenConns    = 10
	maxIdleConns    = 10
	connMaxIdleTime = 5 * time.Minute
	connMaxLifetime = 30 * time.Minute
)

// OpenSQLite opens or creates the database at path and prepares it for
// the digest workload: the scraper appends posts in bulk while API
// reads are in flight, so WAL keeps readers unblocked during ingest,
// and a busy timeout rides out the moments both sides want the write
// lock.
func OpenSQLite(path string) (*gorm.DB, error) {
	// A missing parent directory surfaces from the driver as the
	// cryptic sqlite error "out of memory (14)". Check up front and
	// return the plain *PathError instead.
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	} {
		db.Exec(pragma)
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(maxOpenConns)
		sqlDB.SetMaxIdleConns(maxIdleConns)
		sqlDB.SetConnMaxIdleTime(connMaxIdleTime)
		sqlDB.SetConnMaxLifetime(connMaxLifetime)
	}

	return db, nil
}

// AutoMigrate creates or updates the schema for every persistent model.
// Called once at startup, before the scheduler or the HTTP server gets
// to touch the database.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.StoredPost{},
		&domain.ScrapeRun{},
		&domain.Briefing{},
		&domain.UserSettings{},
		&domain.Idempotency{},
	)
}
