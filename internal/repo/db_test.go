package repo

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/go-feed-digest/internal/domain"
)

func TestOpenSQLite_MissingParentDir(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "nope", "digest.db")

	db, err := OpenSQLite(bad)
	if err == nil || db != nil {
		t.Fatalf("OpenSQLite(%q) = %v, %v; want error", bad, db, err)
	}
	// The up-front stat should yield a not-exist error rather than the
	// driver's "out of memory (14)", but stay tolerant of either.
	lower := strings.ToLower(err.Error())
	if !(os.IsNotExist(err) ||
		strings.Contains(lower, "no such file or directory") ||
		strings.Contains(lower, "unable to open database file") ||
		strings.Contains(lower, "out of memory")) {
		t.Fatalf("unexpected error shape: %v", err)
	}
}

func TestOpenSQLite_TunesDatabase(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "digest.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	var journalMode string
	if err := db.Raw("PRAGMA journal_mode;").Row().Scan(&journalMode); err != nil {
		t.Fatalf("read journal_mode: %v", err)
	}
	if strings.ToLower(journalMode) != "wal" {
		t.Fatalf("journal_mode = %q, want wal", journalMode)
	}

	intPragmas := []struct {
		name string
		want int
	}{
		{"synchronous", 1}, // NORMAL
		{"foreign_keys", 1},
		{"busy_timeout", 5000},
	}
	for _, p := range intPragmas {
		var got int
		if err := db.Raw("PRAGMA " + p.name + ";").Row().Scan(&got); err != nil {
			t.Fatalf("read %s: %v", p.name, err)
		}
		if got != p.want {
			t.Fatalf("%s = %d, want %d", p.name, got, p.want)
		}
	}

	if stats := sqlDB.Stats(); stats.MaxOpenConnections != maxOpenConns {
		t.Fatalf("MaxOpenConnections = %d, want %d", stats.MaxOpenConnections, maxOpenConns)
	}
}

func TestAutoMigrate_SchemaRoundTrip(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "digest.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	m := db.Migrator()
	for _, model := range []any{
		&domain.StoredPost{}, &domain.ScrapeRun{}, &domain.Briefing{},
		&domain.UserSettings{}, &domain.Idempotency{},
	} {
		if !m.HasTable(model) {
			t.Fatalf("table missing for %T", model)
		}
	}

	now := time.Now().UTC()
	likes := 42

	post := &domain.StoredPost{
		ID:           "p1",
		ExternalID:   "1881234567890",
		OwnerID:      "demo-user",
		AuthorHandle: "gopherci",
		Content:      "shipping the digest pipeline today",
		Likes:        &likes,
		StoredAt:     now,
	}
	if err := db.Create(post).Error; err != nil {
		t.Fatalf("insert post: %v", err)
	}
	// The (external_id, owner_id) pair is unique; a second copy of the
	// same post for the same owner must be rejected.
	dup := *post
	dup.ID = "p2"
	if err := db.Create(&dup).Error; err == nil {
		t.Fatal("duplicate external id for owner was accepted")
	}

	run := &domain.ScrapeRun{ID: "r1", OwnerID: "demo-user", StartedAt: now, Status: domain.RunStatusRunning}
	if err := db.Create(run).Error; err != nil {
		t.Fatalf("insert run: %v", err)
	}

	brief := &domain.Briefing{
		ID:      "b1",
		OwnerID: "demo-user",
		Title:   "Your Feed Digest - Mar 2",
		Content: "## Highlights\n\n- pipeline shipped",
	}
	if err := db.Create(brief).Error; err != nil {
		t.Fatalf("insert briefing: %v", err)
	}

	settings := &domain.UserSettings{ID: "s1", OwnerID: "demo-user"}
	if err := db.Create(settings).Error; err != nil {
		t.Fatalf("insert settings: %v", err)
	}

	idem := &domain.Idempotency{
		ID: "i1", OwnerID: "demo-user", Key: "7a8d9f4c",
		CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}
	if err := db.Create(idem).Error; err != nil {
		t.Fatalf("insert idempotency: %v", err)
	}

	var got domain.StoredPost
	if err := db.First(&got, "id = ?", "p1").Error; err != nil {
		t.Fatalf("readback post: %v", err)
	}
	if got.AuthorHandle != "gopherci" || got.Likes == nil || *got.Likes != 42 {
		t.Fatalf("readback post = %+v", got)
	}

	// Column defaults declared on the model must survive migration.
	var gotSettings domain.UserSettings
	if err := db.First(&gotSettings, "owner_id = ?", "demo-user").Error; err != nil {
		t.Fatalf("readback settings: %v", err)
	}
	if gotSettings.FeedSource != "scrape" || gotSettings.MaxRecords != 100 || gotSettings.ScheduleHour != 8 {
		t.Fatalf("settings defaults not applied: %+v", gotSettings)
	}
}
