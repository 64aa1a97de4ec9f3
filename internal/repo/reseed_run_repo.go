package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-prayer-queue/internal/domain"
)

// ErrDuplicate indicates that a reseed run already exists for the given key.
var ErrDuplicate = errors.New("duplicate")

// GetReseedRun returns the unexpired run recorded under key or ErrNotFound.
func GetReseedRun(ctx context.Context, db *gorm.DB, key string, now time.Time) (*domain.ReseedRun, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.ReseedRun
	err := db.WithContext(ctx).
		Where("key = ? AND expires_at > ?", key, now).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateReseedRun records a finished reseed. key may be empty for runs that
// were not triggered with an Idempotency-Key; ErrDuplicate is returned when
// the key is already taken.
func CreateReseedRun(ctx context.Context, db *gorm.DB, key string, inserted, skipped, removed int, ttl time.Duration) (*domain.ReseedRun, error) {
	now := time.Now().UTC()
	rec := &domain.ReseedRun{
		ID:        uuid.NewString(),
		Inserted:  inserted,
		Skipped:   skipped,
		Removed:   removed,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if k := strings.TrimSpace(key); k != "" {
		rec.Key = &k
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// DeleteExpiredReseedRuns drops keyed runs whose replay window has passed,
// so the key can be used again.
func DeleteExpiredReseedRuns(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&domain.ReseedRun{})
	return res.RowsAffected, res.Error
}
