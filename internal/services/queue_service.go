// Package services – QueueService
//
// This file implements QueueService, which rebuilds the queued set from the
// country rosters. A reseed snapshots who has already been prayed for,
// deletes every queued row, samples each roster up to its representative
// cap, drops already-prayed identities, shuffles the survivors across
// countries, hands out map cells to random-allocation countries and inserts
// the result. Everything after the roster reads runs in one transaction, so
// readers see either the old queue or the new one.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-prayer-queue/internal/domain"
	"github.com/tbourn/go-prayer-queue/internal/hexpool"
	"github.com/tbourn/go-prayer-queue/internal/repo"
)

// ReseedResult reports what a reseed pass did.
type ReseedResult struct {
	Inserted      int            `json:"inserted"`
	Skipped       int            `json:"skipped"`
	AlreadyPrayed int            `json:"already_prayed"`
	MissingName   int            `json:"missing_name"`
	Removed       int            `json:"removed"`
	HexUnassigned int            `json:"hex_unassigned"`
	PerCountry    map[string]int `json:"per_country"`
}

// ReseedOutcome is a ReseedResult plus bookkeeping from the reseed run log.
type ReseedOutcome struct {
	ReseedResult
	RunID    string `json:"run_id"`
	Replayed bool   `json:"replayed"`
}

// QueueService owns the Reseed operation and the administrative purge.
type QueueService struct {
	DB        *gorm.DB
	Repo      CandidateRepo
	Countries domain.Countries
	Rosters   RosterSource
	Hex       HexAllocator

	// Rand drives sampling and shuffling. Nil selects hexpool.DefaultShuffler.
	Rand hexpool.Shuffler
	// Now is the clock; nil selects time.Now in UTC.
	Now func() time.Time

	// FallbackThumbnail is stored for rows without an image URL.
	FallbackThumbnail *string
	// RunTTL is how long a keyed reseed run can be replayed.
	RunTTL time.Duration
}

// cellStack is a country's free cells for one reseed pass.
type cellStack []string

func (s *cellStack) pop() *string {
	n := len(*s)
	if n == 0 {
		return nil
	}
	id := (*s)[n-1]
	*s = (*s)[:n-1]
	return &id
}

func (s *cellStack) push(id string) { *s = append(*s, id) }

type sampledCountry struct {
	country domain.Country
	rows    []domain.RosterRow
}

// Reseed rebuilds the queued set. Roster sources that are missing or broken
// contribute nothing and are logged; any repository failure rolls the whole
// pass back and is returned wrapped in ErrReseedFailed.
func (s *QueueService) Reseed(ctx context.Context) (ReseedResult, error) {
	tr := otel.Tracer("services/QueueService")
	ctx, span := tr.Start(ctx, "Reseed",
		trace.WithAttributes(attribute.Int("countries", len(s.Countries))),
	)
	defer span.End()

	// Roster I/O stays outside the transaction.
	sampled := s.sampleRosters(ctx)

	res := ReseedResult{PerCountry: make(map[string]int, len(s.Countries))}
	now := s.now()

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prayedKeys, err := s.Repo.ListIdentities(ctx, tx, domain.StatusPrayed)
		if err != nil {
			return fmt.Errorf("snapshot prayed: %w", err)
		}
		alreadyPrayed := make(map[domain.NaturalKey]struct{}, len(prayedKeys))
		for _, k := range prayedKeys {
			alreadyPrayed[k] = struct{}{}
		}

		removed, err := s.Repo.DeleteWhereStatus(ctx, tx, domain.StatusQueued)
		if err != nil {
			return fmt.Errorf("clear queue: %w", err)
		}
		res.Removed = int(removed)

		var pending []domain.Candidate
		for _, sc := range sampled {
			for _, row := range sc.rows {
				if row.PersonName == "" {
					res.MissingName++
					log.Warn().Str("country", sc.country.Code).Msg("roster row without person_name skipped")
					continue
				}
				c := row.Candidate(sc.country.Code, s.FallbackThumbnail)
				if _, dup := alreadyPrayed[c.Key()]; dup {
					res.AlreadyPrayed++
					continue
				}
				c.StatusTimestamp = now
				c.InitialAddTimestamp = now
				pending = append(pending, c)
			}
		}

		s.shuffler().Shuffle(len(pending), func(i, j int) { pending[i], pending[j] = pending[j], pending[i] })

		// One availability snapshot per random-allocation country, computed
		// after the delete so only prayed holds count as used. Countries
		// without geometry are left out and keep hex_id null.
		freeCells := make(map[string]cellStack)
		for _, sc := range sampled {
			if !sc.country.UsesRandomAllocation || s.Hex == nil {
				continue
			}
			if len(s.Hex.AllCellIDs(sc.country.Code)) == 0 {
				log.Warn().Str("country", sc.country.Code).Msg("no map geometry; candidates queued without hex cells")
				continue
			}
			ids, err := s.Hex.Available(ctx, tx, sc.country.Code, 0)
			if err != nil {
				return fmt.Errorf("available cells for %s: %w", sc.country.Code, err)
			}
			freeCells[sc.country.Code] = ids
		}

		for i := range pending {
			c := &pending[i]
			cells, allocates := freeCells[c.CountryCode]
			if allocates {
				c.HexID = cells.pop()
			}

			inserted, err := s.Repo.UpsertQueued(ctx, tx, c)
			// The snapshot can be stale against a concurrent put back; the
			// hex index rejects the cell and the next one is tried.
			for errors.Is(err, repo.ErrHexTaken) && c.HexID != nil {
				log.Warn().Str("country", c.CountryCode).Str("hex_id", *c.HexID).
					Msg("hex cell claimed concurrently; drawing another")
				c.HexID = cells.pop()
				inserted, err = s.Repo.UpsertQueued(ctx, tx, c)
			}
			if err != nil {
				return fmt.Errorf("insert %q (%s): %w", c.PersonName, c.CountryCode, err)
			}
			switch {
			case !inserted:
				res.Skipped++
				if c.HexID != nil {
					cells.push(*c.HexID)
				}
			case allocates && c.HexID == nil:
				res.HexUnassigned++
				hexExhausted.WithLabelValues(c.CountryCode).Inc()
				log.Warn().Str("country", c.CountryCode).Str("person_name", c.PersonName).
					Msg("no available hex cell; candidate queued without one")
			}
			if allocates {
				freeCells[c.CountryCode] = cells
			}
			if inserted {
				res.Inserted++
				res.PerCountry[c.CountryCode]++
			}
		}
		return nil
	})
	if err != nil {
		reseedRuns.WithLabelValues("failed").Inc()
		span.RecordError(err)
		log.Error().Err(err).Msg("reseed rolled back")
		return ReseedResult{}, fmt.Errorf("%w: %v", ErrReseedFailed, err)
	}

	reseedRuns.WithLabelValues("ok").Inc()
	reseedCandidates.WithLabelValues("inserted").Add(float64(res.Inserted))
	reseedCandidates.WithLabelValues("skipped").Add(float64(res.Skipped))
	reseedCandidates.WithLabelValues("already_prayed").Add(float64(res.AlreadyPrayed))
	reseedCandidates.WithLabelValues("missing_name").Add(float64(res.MissingName))
	span.SetAttributes(
		attribute.Int("reseed.inserted", res.Inserted),
		attribute.Int("reseed.skipped", res.Skipped),
	)
	log.Info().
		Int("inserted", res.Inserted).
		Int("skipped", res.Skipped).
		Int("already_prayed", res.AlreadyPrayed).
		Int("removed", res.Removed).
		Int("hex_unassigned", res.HexUnassigned).
		Msg("queue reseeded")
	return res, nil
}

// ReseedOnce runs Reseed and records it in the run log. When key is set and
// a run with that key is still inside its replay window, the recorded counts
// are returned instead and nothing is reseeded.
func (s *QueueService) ReseedOnce(ctx context.Context, key string) (ReseedOutcome, error) {
	tr := otel.Tracer("services/QueueService")
	ctx, span := tr.Start(ctx, "ReseedOnce",
		trace.WithAttributes(attribute.Bool("idempotency.key", key != "")),
	)
	defer span.End()

	if key != "" {
		if out, ok := s.replay(ctx, key); ok {
			return out, nil
		}
	}

	res, err := s.Reseed(ctx)
	if err != nil {
		return ReseedOutcome{}, err
	}

	ttl := s.RunTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	run, err := repo.CreateReseedRun(ctx, s.DB, key, res.Inserted, res.Skipped, res.Removed, ttl)
	switch {
	case errors.Is(err, repo.ErrDuplicate):
		// A concurrent request with the same key finished first.
		if out, ok := s.replay(ctx, key); ok {
			return out, nil
		}
		return ReseedOutcome{ReseedResult: res}, nil
	case err != nil:
		// The reseed itself committed; losing the audit row is not fatal.
		log.Warn().Err(err).Msg("could not record reseed run")
		return ReseedOutcome{ReseedResult: res}, nil
	}
	return ReseedOutcome{ReseedResult: res, RunID: run.ID}, nil
}

func (s *QueueService) replay(ctx context.Context, key string) (ReseedOutcome, bool) {
	if n, err := repo.DeleteExpiredReseedRuns(ctx, s.DB, s.now()); err != nil {
		log.Warn().Err(err).Msg("expired reseed run cleanup failed")
	} else if n > 0 {
		log.Debug().Int64("deleted", n).Msg("expired reseed runs removed")
	}
	run, err := repo.GetReseedRun(ctx, s.DB, key, s.now())
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			log.Warn().Err(err).Msg("reseed run lookup failed")
		}
		return ReseedOutcome{}, false
	}
	reseedRuns.WithLabelValues("replayed").Inc()
	return ReseedOutcome{
		ReseedResult: ReseedResult{Inserted: run.Inserted, Skipped: run.Skipped, Removed: run.Removed},
		RunID:        run.ID,
		Replayed:     true,
	}, true
}

// SeedIfEmpty reseeds only when no candidate is queued. It reports whether a
// reseed ran.
func (s *QueueService) SeedIfEmpty(ctx context.Context) (bool, ReseedResult, error) {
	n, err := s.Repo.CountByStatus(ctx, s.DB, domain.StatusQueued, "")
	if err != nil {
		return false, ReseedResult{}, err
	}
	if n > 0 {
		log.Info().Int64("queued", n).Msg("queue already populated; startup seeding skipped")
		return false, ReseedResult{}, nil
	}
	res, err := s.Reseed(ctx)
	return err == nil, res, err
}

// PurgeAll deletes every candidate, prayed ones included.
func (s *QueueService) PurgeAll(ctx context.Context) (int64, error) {
	tr := otel.Tracer("services/QueueService")
	ctx, span := tr.Start(ctx, "PurgeAll")
	defer span.End()

	var n int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		n, err = s.Repo.PurgeAll(ctx, tx)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("%w: %v", ErrPurgeFailed, err)
	}
	log.Warn().Int64("deleted", n).Msg("all candidates purged")
	return n, nil
}

// PurgeAndReseed purges the table and immediately rebuilds the queue.
func (s *QueueService) PurgeAndReseed(ctx context.Context) (int64, ReseedResult, error) {
	n, err := s.PurgeAll(ctx)
	if err != nil {
		return 0, ReseedResult{}, err
	}
	res, err := s.Reseed(ctx)
	return n, res, err
}

// RosterTargets returns, per country, how many candidates a reseed can draw:
// min(roster length, cap) or the roster length when uncapped.
func (s *QueueService) RosterTargets(ctx context.Context) map[string]int {
	out := make(map[string]int, len(s.Countries))
	for _, c := range s.Countries {
		rows := s.fetch(ctx, c.Code)
		n := len(rows)
		if c.RepresentativeCap != nil && *c.RepresentativeCap < n {
			n = *c.RepresentativeCap
		}
		out[c.Code] = n
	}
	return out
}

// sampleRosters loads every roster and draws at most RepresentativeCap rows
// from each, uniformly without replacement.
func (s *QueueService) sampleRosters(ctx context.Context) []sampledCountry {
	out := make([]sampledCountry, 0, len(s.Countries))
	for _, c := range s.Countries {
		rows := s.fetch(ctx, c.Code)
		out = append(out, sampledCountry{country: c, rows: sample(rows, c.RepresentativeCap, s.shuffler())})
	}
	return out
}

func (s *QueueService) fetch(ctx context.Context, code string) []domain.RosterRow {
	if s.Rosters == nil {
		return nil
	}
	rows, err := s.Rosters.FetchRoster(ctx, code)
	if err != nil {
		log.Warn().Err(err).Str("country", code).Msg("roster unavailable; treated as empty")
		return nil
	}
	return rows
}

// sample returns a shuffled copy of rows truncated to limit when limit is set.
// Shuffling the whole copy and taking a prefix is a uniform sample without
// replacement.
func sample(rows []domain.RosterRow, limit *int, r hexpool.Shuffler) []domain.RosterRow {
	out := append([]domain.RosterRow(nil), rows...)
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	if limit != nil && *limit >= 0 && len(out) > *limit {
		out = out[:*limit]
	}
	return out
}

func (s *QueueService) shuffler() hexpool.Shuffler {
	if s.Rand == nil {
		return hexpool.DefaultShuffler
	}
	return s.Rand
}

func (s *QueueService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}
