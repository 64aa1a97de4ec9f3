package domain

import "time"

// ReseedRun records the outcome of an administrative reseed. Runs triggered
// with an Idempotency-Key are unique per key, so a retried request can be
// answered with the recorded counts until ExpiresAt.
type ReseedRun struct {
	ID        string    `json:"id"         gorm:"type:varchar(64);primaryKey"`
	Key       *string   `json:"key"        gorm:"type:varchar(255);uniqueIndex:ux_reseed_key"`
	Inserted  int       `json:"inserted"   gorm:"not null"`
	Skipped   int       `json:"skipped"    gorm:"not null"`
	Removed   int       `json:"removed"    gorm:"not null"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;autoCreateTime"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (ReseedRun) TableName() string { return "reseed_runs" }
