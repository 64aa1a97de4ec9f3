// Package services – PrayerService
//
// This file implements PrayerService, which serves the queued/prayed lists
// and performs the two status transitions. Each transition is a read of the
// row in its expected state followed by a conditional update in the same
// transaction; when the update matches no row another writer won and the
// call reports changed=false instead of an error.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-prayer-queue/internal/domain"
	"github.com/tbourn/go-prayer-queue/internal/repo"
)

// PrayerService reads queue state and moves candidates between statuses.
type PrayerService struct {
	DB        *gorm.DB
	Repo      CandidateRepo
	Countries domain.Countries
	Hex       HexAllocator

	// Now is the clock; nil selects time.Now in UTC.
	Now func() time.Time
}

// NewPrayerService wires a PrayerService over the gorm-backed repository.
func NewPrayerService(db *gorm.DB, countries domain.Countries, hex HexAllocator) *PrayerService {
	return &PrayerService{DB: db, Repo: GormCandidateRepo{}, Countries: countries, Hex: hex}
}

func (s *PrayerService) checkCountry(country string) error {
	if country == "" {
		return nil
	}
	if _, ok := s.Countries.Get(country); !ok {
		return unknownCountry(country)
	}
	return nil
}

// ListQueued returns queued candidates in queue order, optionally for one
// country.
func (s *PrayerService) ListQueued(ctx context.Context, country string) ([]domain.Candidate, error) {
	if err := s.checkCountry(country); err != nil {
		return nil, err
	}
	return s.Repo.ListByStatus(ctx, s.DB, domain.StatusQueued, country)
}

// ListPrayed returns prayed candidates, most recent first.
func (s *PrayerService) ListPrayed(ctx context.Context, country string) ([]domain.Candidate, error) {
	if err := s.checkCountry(country); err != nil {
		return nil, err
	}
	return s.Repo.ListByStatus(ctx, s.DB, domain.StatusPrayed, country)
}

// CountPrayed returns the number of prayed candidates.
func (s *PrayerService) CountPrayed(ctx context.Context, country string) (int64, error) {
	if err := s.checkCountry(country); err != nil {
		return 0, err
	}
	return s.Repo.CountByStatus(ctx, s.DB, domain.StatusPrayed, country)
}

// CountQueued returns the number of queued candidates.
func (s *PrayerService) CountQueued(ctx context.Context, country string) (int64, error) {
	if err := s.checkCountry(country); err != nil {
		return 0, err
	}
	return s.Repo.CountByStatus(ctx, s.DB, domain.StatusQueued, country)
}

// PrayedStats returns the prayed count and latest status change for country,
// used to build weak ETags.
func (s *PrayerService) PrayedStats(ctx context.Context, country string) (int64, *time.Time, error) {
	if err := s.checkCountry(country); err != nil {
		return 0, nil, err
	}
	return repo.CandidatesStats(ctx, s.DB, domain.StatusPrayed, country)
}

// NextQueued returns the candidate at the head of the queue or ErrQueueEmpty.
func (s *PrayerService) NextQueued(ctx context.Context) (*domain.Candidate, error) {
	c, err := s.Repo.FirstQueued(ctx, s.DB)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrQueueEmpty
	}
	return c, err
}

// MarkPrayed moves candidate id from queued to prayed.
//
// It returns the candidate as it was before the transition and changed=true
// on success. A candidate that is missing, already prayed, or moved by a
// concurrent request yields (nil, false, nil).
func (s *PrayerService) MarkPrayed(ctx context.Context, id uint) (*domain.Candidate, bool, error) {
	tr := otel.Tracer("services/PrayerService")
	ctx, span := tr.Start(ctx, "MarkPrayed",
		trace.WithAttributes(attribute.Int64("candidate.id", int64(id))),
	)
	defer span.End()

	if id == 0 {
		return nil, false, ErrInvalidCandidateID
	}

	var snapshot *domain.Candidate
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := s.Repo.GetForTransition(ctx, tx, id, domain.StatusQueued)
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		n, err := s.Repo.Transition(ctx, tx, id, domain.StatusQueued, domain.StatusPrayed, s.stamp(c), repo.KeepHex)
		if err != nil {
			return err
		}
		if n == 1 {
			snapshot = c
		}
		return nil
	})
	changed := err == nil && snapshot != nil
	observeTransition("mark_prayed", changed, err)
	if err != nil {
		span.RecordError(err)
		return nil, false, err
	}
	if !changed {
		log.Debug().Uint("candidate_id", id).Msg("mark prayed was a no-op")
		return nil, false, nil
	}
	log.Info().Uint("candidate_id", id).Str("country", snapshot.CountryCode).Msg("candidate marked prayed")
	return snapshot, true, nil
}

// PutBack moves candidate id from prayed back to queued.
//
// For random-allocation countries the candidate keeps its cell unless
// reassignHex is set, it holds none, or the cell is no longer free for it
// (held by someone else or absent from the map); in those cases a fresh cell
// is drawn, or none when the pool is exhausted. Other countries never hold a
// cell. On success the candidate is returned in its new state.
func (s *PrayerService) PutBack(ctx context.Context, id uint, reassignHex bool) (*domain.Candidate, bool, error) {
	tr := otel.Tracer("services/PrayerService")
	ctx, span := tr.Start(ctx, "PutBack",
		trace.WithAttributes(
			attribute.Int64("candidate.id", int64(id)),
			attribute.Bool("reassign_hex", reassignHex),
		),
	)
	defer span.End()

	if id == 0 {
		return nil, false, ErrInvalidCandidateID
	}

	var after *domain.Candidate
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := s.Repo.GetForTransition(ctx, tx, id, domain.StatusPrayed)
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		at := s.stamp(c)
		rejected := map[string]struct{}{}
		var (
			hex repo.HexUpdate
			n   int64
		)
		for attempt := 1; ; attempt++ {
			if attempt > maxHexAttempts {
				hex = repo.SetHex(nil)
			} else if hex, err = s.hexForPutBack(ctx, tx, c, reassignHex, rejected); err != nil {
				return err
			}
			n, err = s.Repo.Transition(ctx, tx, id, domain.StatusPrayed, domain.StatusQueued, at, hex)
			if !errors.Is(err, repo.ErrHexTaken) || hex.Value == nil {
				break
			}
			// Another writer committed this cell after availability was read.
			log.Warn().Uint("candidate_id", id).Str("hex_id", *hex.Value).Int("attempt", attempt).
				Msg("hex cell claimed concurrently; drawing another")
			rejected[*hex.Value] = struct{}{}
		}
		if err != nil {
			return err
		}
		if n == 1 {
			c.Status = domain.StatusQueued
			c.StatusTimestamp = at
			if hex.Set {
				c.HexID = hex.Value
			}
			after = c
		}
		return nil
	})
	changed := err == nil && after != nil
	observeTransition("put_back", changed, err)
	if err != nil {
		span.RecordError(err)
		return nil, false, err
	}
	if !changed {
		log.Debug().Uint("candidate_id", id).Msg("put back was a no-op")
		return nil, false, nil
	}
	ev := log.Info().Uint("candidate_id", id).Str("country", after.CountryCode)
	if after.HexID != nil {
		ev = ev.Str("hex_id", *after.HexID)
	}
	ev.Msg("candidate put back")
	return after, true, nil
}

// PutBackByKey puts back the prayed candidate identified by its natural key.
func (s *PrayerService) PutBackByKey(ctx context.Context, key domain.NaturalKey, reassignHex bool) (*domain.Candidate, bool, error) {
	key.PersonName = strings.TrimSpace(key.PersonName)
	key.CountryCode = strings.TrimSpace(key.CountryCode)
	key.PostLabel = strings.TrimSpace(key.PostLabel)
	if key.PersonName == "" || key.CountryCode == "" {
		return nil, false, ErrEmptyIdentity
	}
	if err := s.checkCountry(key.CountryCode); err != nil {
		return nil, false, err
	}
	c, err := s.Repo.FindPrayedByKey(ctx, s.DB, key)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return s.PutBack(ctx, c.ID, reassignHex)
}

// maxHexAttempts bounds how many cells PutBack tries before queueing the
// candidate without one.
const maxHexAttempts = 3

// hexForPutBack decides what happens to c's hex_id when it is re-queued.
// Cells in rejected lost a race earlier in the same put back.
func (s *PrayerService) hexForPutBack(ctx context.Context, tx *gorm.DB, c *domain.Candidate, reassign bool, rejected map[string]struct{}) (repo.HexUpdate, error) {
	country, ok := s.Countries.Get(c.CountryCode)
	if !ok || !country.UsesRandomAllocation {
		if c.HexID != nil {
			return repo.SetHex(nil), nil
		}
		return repo.KeepHex, nil
	}
	if s.Hex == nil || len(s.Hex.AllCellIDs(c.CountryCode)) == 0 {
		// No geometry: allocation is skipped and whatever is held stays.
		return repo.KeepHex, nil
	}

	available, err := s.Hex.Available(ctx, tx, c.CountryCode, c.ID)
	if err != nil {
		return repo.KeepHex, err
	}
	free := make([]string, 0, len(available))
	for _, id := range available {
		if _, skip := rejected[id]; !skip {
			free = append(free, id)
		}
	}

	current := ""
	if c.HexID != nil {
		current = *c.HexID
	}
	if current != "" && !reassign {
		for _, id := range free {
			if id == current {
				return repo.KeepHex, nil
			}
		}
	}

	for _, id := range free {
		if reassign && id == current && len(free) > 1 {
			continue
		}
		pick := id
		return repo.SetHex(&pick), nil
	}
	hexExhausted.WithLabelValues(c.CountryCode).Inc()
	log.Warn().Uint("candidate_id", c.ID).Str("country", c.CountryCode).Msg("no available hex cell on put back")
	return repo.SetHex(nil), nil
}

// stamp returns the transition time for c, never earlier than its current
// status timestamp or initial add time.
func (s *PrayerService) stamp(c *domain.Candidate) time.Time {
	at := time.Now().UTC()
	if s.Now != nil {
		at = s.Now().UTC()
	}
	if at.Before(c.StatusTimestamp) {
		at = c.StatusTimestamp
	}
	if at.Before(c.InitialAddTimestamp) {
		at = c.InitialAddTimestamp
	}
	return at
}
