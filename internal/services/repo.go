package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-prayer-queue/internal/domain"
	"github.com/tbourn/go-prayer-queue/internal/repo"
)

// CandidateRepo defines the repository contract used by the queue and
// prayer services. Every method takes the handle to run on, so services can
// pass a transaction.
type CandidateRepo interface {
	ListByStatus(ctx context.Context, db *gorm.DB, status domain.Status, country string) ([]domain.Candidate, error)
	CountByStatus(ctx context.Context, db *gorm.DB, status domain.Status, country string) (int64, error)
	FirstQueued(ctx context.Context, db *gorm.DB) (*domain.Candidate, error)
	GetForTransition(ctx context.Context, db *gorm.DB, id uint, required domain.Status) (*domain.Candidate, error)
	FindPrayedByKey(ctx context.Context, db *gorm.DB, key domain.NaturalKey) (*domain.Candidate, error)

	// UpsertQueued inserts a queued candidate; a natural-key conflict yields
	// inserted=false and no error, a held hex_id yields repo.ErrHexTaken.
	UpsertQueued(ctx context.Context, db *gorm.DB, c *domain.Candidate) (bool, error)

	// Transition is the compare-and-swap on status; 0 rows means no-op. A
	// held hex_id yields repo.ErrHexTaken.
	Transition(ctx context.Context, db *gorm.DB, id uint, from, to domain.Status, at time.Time, hex repo.HexUpdate) (int64, error)

	DeleteWhereStatus(ctx context.Context, db *gorm.DB, status domain.Status) (int64, error)
	PurgeAll(ctx context.Context, db *gorm.DB) (int64, error)
	ListIdentities(ctx context.Context, db *gorm.DB, status domain.Status) ([]domain.NaturalKey, error)
}

// GormCandidateRepo adapts the repo package's free functions to
// CandidateRepo.
type GormCandidateRepo struct{}

var _ CandidateRepo = GormCandidateRepo{}

// ListByStatus proxies repo.ListByStatus.
func (GormCandidateRepo) ListByStatus(ctx context.Context, db *gorm.DB, status domain.Status, country string) ([]domain.Candidate, error) {
	return repo.ListByStatus(ctx, db, status, country)
}

// CountByStatus proxies repo.CountByStatus.
func (GormCandidateRepo) CountByStatus(ctx context.Context, db *gorm.DB, status domain.Status, country string) (int64, error) {
	return repo.CountByStatus(ctx, db, status, country)
}

// FirstQueued proxies repo.FirstQueued.
func (GormCandidateRepo) FirstQueued(ctx context.Context, db *gorm.DB) (*domain.Candidate, error) {
	return repo.FirstQueued(ctx, db)
}

// GetForTransition proxies repo.GetForTransition.
func (GormCandidateRepo) GetForTransition(ctx context.Context, db *gorm.DB, id uint, required domain.Status) (*domain.Candidate, error) {
	return repo.GetForTransition(ctx, db, id, required)
}

// FindPrayedByKey proxies repo.FindPrayedByKey.
func (GormCandidateRepo) FindPrayedByKey(ctx context.Context, db *gorm.DB, key domain.NaturalKey) (*domain.Candidate, error) {
	return repo.FindPrayedByKey(ctx, db, key)
}

// UpsertQueued proxies repo.UpsertQueued.
func (GormCandidateRepo) UpsertQueued(ctx context.Context, db *gorm.DB, c *domain.Candidate) (bool, error) {
	return repo.UpsertQueued(ctx, db, c)
}

// Transition proxies repo.Transition.
func (GormCandidateRepo) Transition(ctx context.Context, db *gorm.DB, id uint, from, to domain.Status, at time.Time, hex repo.HexUpdate) (int64, error) {
	return repo.Transition(ctx, db, id, from, to, at, hex)
}

// DeleteWhereStatus proxies repo.DeleteWhereStatus.
func (GormCandidateRepo) DeleteWhereStatus(ctx context.Context, db *gorm.DB, status domain.Status) (int64, error) {
	return repo.DeleteWhereStatus(ctx, db, status)
}

// PurgeAll proxies repo.PurgeAll.
func (GormCandidateRepo) PurgeAll(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.PurgeAll(ctx, db)
}

// ListIdentities proxies repo.ListIdentities.
func (GormCandidateRepo) ListIdentities(ctx context.Context, db *gorm.DB, status domain.Status) ([]domain.NaturalKey, error) {
	return repo.ListIdentities(ctx, db, status)
}

// RosterSource yields a country's roster rows. Implementations treat a
// missing source as an empty roster.
type RosterSource interface {
	FetchRoster(ctx context.Context, countryCode string) ([]domain.RosterRow, error)
}

// HexAllocator is the slice of hexpool.Pool the services depend on.
type HexAllocator interface {
	AllCellIDs(countryCode string) map[string]struct{}
	Available(ctx context.Context, db *gorm.DB, countryCode string, exclude uint) ([]string, error)
}
