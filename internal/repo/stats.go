// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// for conditional responses (weak ETags) and the statistics pages.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-prayer-queue/internal/domain"
)

// CandidatesStats returns the number of candidates with status in country
// ("" for all) and the greatest status_timestamp among them.
//
// Return values:
//   - count:    matching rows
//   - latestAt: pointer to the greatest StatusTimestamp, or nil if no rows
//   - err:      database error, if any
func CandidatesStats(ctx context.Context, db *gorm.DB, status domain.Status, country string) (count int64, latestAt *time.Time, err error) {
	q := db.WithContext(ctx).
		Model(&domain.Candidate{}).
		Scopes(scopeCountry(country)).
		Where("status = ?", status)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest status_timestamp (avoid MAX() -> TEXT in SQLite)
	var row struct {
		StatusTimestamp time.Time
	}
	if err = q.Select("status_timestamp").Order("status_timestamp DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.StatusTimestamp, nil
}

// PartyCount is one row of PartyCounts.
type PartyCount struct {
	Party string
	Count int64
}

// PartyCounts returns prayed candidates of country grouped by party, largest
// group first.
func PartyCounts(ctx context.Context, db *gorm.DB, country string) ([]PartyCount, error) {
	var out []PartyCount
	err := db.WithContext(ctx).
		Model(&domain.Candidate{}).
		Select("party, COUNT(*) AS count").
		Scopes(scopeCountry(country)).
		Where("status = ?", domain.StatusPrayed).
		Group("party").
		Order("count DESC, party ASC").
		Scan(&out).Error
	return out, err
}
