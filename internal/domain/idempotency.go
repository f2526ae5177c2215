package domain

import "time"

// Idempotency records the outcome of a previously triggered pipeline run,
// keyed by (owner_id, key). It lets a client retry a manual digest trigger
// without launching a second browser run: the original briefing id and HTTP
// status are served again instead of re-executing the pipeline. Rows expire
// by timestamp rather than deletion, so ExpiresAt is indexed for the replay
// lookup.
type Idempotency struct {
	ID         string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	OwnerID    string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_owner_key,priority:1"`
	Key        string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_owner_key,priority:2"`
	BriefingID string    `gorm:"type:TEXT"`
	Status     int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt  time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt  time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName returns the database table name for Idempotency.
func (Idempotency) TableName() string { return "idempotency" }
