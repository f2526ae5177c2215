package domain

import (
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestTableNames(t *testing.T) {
	for _, tc := range []struct {
		model interface{ TableName() string }
		want  string
	}{
		{StoredPost{}, "posts"},
		{ScrapeRun{}, "scrape_runs"},
		{Briefing{}, "briefings"},
		{UserSettings{}, "user_settings"},
	} {
		if got := tc.model.TableName(); got != tc.want {
			t.Fatalf("%T maps to table %q, want %q", tc.model, got, tc.want)
		}
	}
}

func TestMigrations_UniquePostPerOwner(t *testing.T) {
	db := openDomainDB(t)

	if err := db.AutoMigrate(&StoredPost{}, &ScrapeRun{}, &Briefing{}, &UserSettings{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	mig := db.Migrator()
	for _, tbl := range []any{&StoredPost{}, &ScrapeRun{}, &Briefing{}, &UserSettings{}} {
		if !mig.HasTable(tbl) {
			t.Fatalf("no table migrated for %T", tbl)
		}
	}
	if !mig.HasIndex(&StoredPost{}, "ux_posts_external_owner") {
		t.Fatalf("expected unique index ux_posts_external_owner on posts")
	}
	if !mig.HasIndex(&ScrapeRun{}, "idx_runs_owner_started") {
		t.Fatalf("expected index idx_runs_owner_started on scrape_runs")
	}
	if !mig.HasIndex(&UserSettings{}, "ux_settings_owner") {
		t.Fatalf("expected unique index ux_settings_owner on user_settings")
	}

	now := time.Now().UTC()
	p1 := &StoredPost{ID: "p1", ExternalID: "111", OwnerID: "u1", Content: "a", StoredAt: now}
	if err := db.Create(p1).Error; err != nil {
		t.Fatalf("insert p1: %v", err)
	}

	// Same external id for the same owner must be rejected.
	dup := &StoredPost{ID: "p2", ExternalID: "111", OwnerID: "u1", Content: "b", StoredAt: now}
	if err := db.Create(dup).Error; err == nil {
		t.Fatalf("expected unique violation for duplicate (external_id, owner_id)")
	}

	// Same external id for a different owner is fine.
	other := &StoredPost{ID: "p3", ExternalID: "111", OwnerID: "u2", Content: "c", StoredAt: now}
	if err := db.Create(other).Error; err != nil {
		t.Fatalf("insert same external id for other owner: %v", err)
	}

	var cnt int64
	if err := db.Model(&StoredPost{}).Where("external_id = ?", "111").Count(&cnt).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if cnt != 2 {
		t.Fatalf("expected 2 rows for external_id=111 across owners, got %d", cnt)
	}
}

func TestMediaURLs_RoundTripAndCorruption(t *testing.T) {
	urls := []string{"https://pbs.example.com/a.jpg", "https://pbs.example.com/b.jpg"}
	p := StoredPost{MediaURLs: EncodeMediaURLs(urls)}

	got := p.MediaURLList()
	if len(got) != 2 || got[0] != urls[0] || got[1] != urls[1] {
		t.Fatalf("MediaURLList() = %v; want %v", got, urls)
	}

	if EncodeMediaURLs(nil) != "" {
		t.Fatalf("EncodeMediaURLs(nil) should be empty, got %q", EncodeMediaURLs(nil))
	}
	if (StoredPost{}).MediaURLList() != nil {
		t.Fatalf("empty column should decode to nil")
	}
	if (StoredPost{MediaURLs: "{not json"}).MediaURLList() != nil {
		t.Fatalf("corrupt column should decode to nil, not panic")
	}
}

func TestFailedRunStatus_TruncatesReason(t *testing.T) {
	if got := FailedRunStatus("no_tweets"); got != "failed: no_tweets" {
		t.Fatalf("FailedRunStatus = %q", got)
	}

	long := strings.Repeat("x", 300)
	got := FailedRunStatus(long)
	if len(got) != len("failed: ")+100 {
		t.Fatalf("expected reason capped at 100 chars, got len=%d", len(got))
	}
	if !strings.HasPrefix(got, "failed: xxx") {
		t.Fatalf("unexpected prefix: %q", got[:20])
	}

	if got := FailedRunStatus("  spaced  "); got != "failed: spaced" {
		t.Fatalf("expected trimmed reason, got %q", got)
	}
}
