// Package hexpool computes which map cells of a random-allocation country are
// free to hand out. The universe of cells comes from static geometry; the
// cells in use are the hex ids held by queued or prayed candidates. Nothing
// is cached between calls: every Available call reflects the store at that
// moment.
package hexpool

import (
	"context"
	"math/rand/v2"
	"sort"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-prayer-queue/internal/repo"
)

// Shuffler randomises slice order. *rand.Rand satisfies it, so tests can pass
// a seeded source.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

type globalShuffler struct{}

func (globalShuffler) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

// DefaultShuffler uses the package-level math/rand/v2 source.
var DefaultShuffler Shuffler = globalShuffler{}

// Pool derives available cells from a GeometrySource and the candidate store.
type Pool struct {
	Geometry GeometrySource
	Rand     Shuffler
}

// New returns a Pool; a nil shuffler selects DefaultShuffler.
func New(geometry GeometrySource, shuffler Shuffler) *Pool {
	if shuffler == nil {
		shuffler = DefaultShuffler
	}
	return &Pool{Geometry: geometry, Rand: shuffler}
}

// AllCellIDs returns every cell id of countryCode. Missing geometry yields an
// empty set and a warning.
func (p *Pool) AllCellIDs(countryCode string) map[string]struct{} {
	out := make(map[string]struct{})
	if p.Geometry == nil {
		return out
	}
	g, ok := p.Geometry.LoadCellGeometry(countryCode)
	if !ok || g == nil {
		log.Warn().Str("country", countryCode).Msg("no map geometry; hex allocation skipped")
		return out
	}
	for _, id := range g.IDs {
		out[id] = struct{}{}
	}
	return out
}

// UsedCellIDs returns the hex ids held by queued or prayed candidates of
// countryCode, ignoring candidate exclude (0 excludes nobody).
func (p *Pool) UsedCellIDs(ctx context.Context, db *gorm.DB, countryCode string, exclude uint) (map[string]struct{}, error) {
	ids, err := repo.UsedHexIDs(ctx, db, countryCode, exclude)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// Available returns AllCellIDs minus UsedCellIDs in random order.
func (p *Pool) Available(ctx context.Context, db *gorm.DB, countryCode string, exclude uint) ([]string, error) {
	all := p.AllCellIDs(countryCode)
	if len(all) == 0 {
		return nil, nil
	}
	used, err := p.UsedCellIDs(ctx, db, countryCode, exclude)
	if err != nil {
		return nil, err
	}
	free := make([]string, 0, len(all))
	for id := range all {
		if _, taken := used[id]; !taken {
			free = append(free, id)
		}
	}
	// Sort first so a seeded shuffler gives a reproducible order.
	sort.Strings(free)
	p.shuffler().Shuffle(len(free), func(i, j int) { free[i], free[j] = free[j], free[i] })
	return free, nil
}

func (p *Pool) shuffler() Shuffler {
	if p.Rand == nil {
		return DefaultShuffler
	}
	return p.Rand
}
