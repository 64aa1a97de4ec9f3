package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-prayer-queue/internal/domain"
	"github.com/tbourn/go-prayer-queue/internal/hexpool"
	"github.com/tbourn/go-prayer-queue/internal/repo"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("svc_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	// One connection keeps concurrent transactions serialised on SQLite.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// fakeRosters serves fixed rows per country; errs simulates broken sources.
type fakeRosters struct {
	rows map[string][]domain.RosterRow
	errs map[string]error
}

func (f *fakeRosters) FetchRoster(_ context.Context, code string) ([]domain.RosterRow, error) {
	if err := f.errs[code]; err != nil {
		return nil, err
	}
	return f.rows[code], nil
}

// cells is an in-memory GeometrySource.
type cells map[string][]string

func (c cells) LoadCellGeometry(code string) (*hexpool.Geometry, bool) {
	ids, ok := c[code]
	if !ok {
		return nil, false
	}
	return &hexpool.Geometry{IDs: ids}, true
}

// staleCells answers Available with a fixed list, standing in for a
// snapshot taken before another writer committed.
type staleCells struct {
	HexAllocator
	free []string
}

func (s staleCells) Available(context.Context, *gorm.DB, string, uint) ([]string, error) {
	return append([]string(nil), s.free...), nil
}

// captureLog routes the global logger into a buffer for the test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	prev := log.Logger
	log.Logger = zerolog.New(buf)
	t.Cleanup(func() { log.Logger = prev })
	return buf
}

func names(ns ...string) []domain.RosterRow {
	out := make([]domain.RosterRow, 0, len(ns))
	for _, n := range ns {
		out = append(out, domain.RosterRow{PersonName: n, Party: domain.DefaultParty})
	}
	return out
}

func capOf(n int) *int { return &n }

func seeded() *rand.Rand { return rand.New(rand.NewPCG(42, 1337)) }

type fixture struct {
	db      *gorm.DB
	queue   *QueueService
	prayer  *PrayerService
	stats   *StatsService
	rosters *fakeRosters
	clock   *fakeClock
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newFixture(t *testing.T, countries domain.Countries, geometry cells) *fixture {
	t.Helper()
	db := newSvcDB(t)
	rosters := &fakeRosters{rows: map[string][]domain.RosterRow{}, errs: map[string]error{}}
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	pool := hexpool.New(geometry, seeded())

	q := &QueueService{
		DB: db, Repo: GormCandidateRepo{}, Countries: countries, Rosters: rosters,
		Hex: pool, Rand: seeded(), Now: clock.Now, RunTTL: time.Hour,
	}
	p := &PrayerService{DB: db, Repo: GormCandidateRepo{}, Countries: countries, Hex: pool, Now: clock.Now}
	st := &StatsService{DB: db, Repo: GormCandidateRepo{}, Countries: countries, Targets: q, Now: clock.Now}
	return &fixture{db: db, queue: q, prayer: p, stats: st, rosters: rosters, clock: clock}
}

func (f *fixture) all(t *testing.T) []domain.Candidate {
	t.Helper()
	var out []domain.Candidate
	if err := f.db.Order("id").Find(&out).Error; err != nil {
		t.Fatalf("load candidates: %v", err)
	}
	return out
}

func (f *fixture) byName(t *testing.T, name, country string) *domain.Candidate {
	t.Helper()
	var c domain.Candidate
	if err := f.db.Where("person_name = ? AND country_code = ?", name, country).First(&c).Error; err != nil {
		t.Fatalf("find %s/%s: %v", name, country, err)
	}
	return &c
}

// assertInvariants checks natural-key uniqueness and hex exclusivity.
func assertInvariants(t *testing.T, f *fixture) {
	t.Helper()
	keys := map[domain.NaturalKey]bool{}
	hexes := map[string]string{}
	for _, c := range f.all(t) {
		if keys[c.Key()] {
			t.Fatalf("duplicate natural key %+v", c.Key())
		}
		keys[c.Key()] = true
		if c.HexID != nil {
			k := c.CountryCode + "/" + *c.HexID
			if other, dup := hexes[k]; dup {
				t.Fatalf("hex %s held by %s and %s", k, other, c.PersonName)
			}
			hexes[k] = c.PersonName
		}
		if c.StatusTimestamp.Before(c.InitialAddTimestamp) {
			t.Fatalf("%s: status timestamp before initial add", c.PersonName)
		}
	}
}

// failingRepo wraps a CandidateRepo and fails UpsertQueued after n inserts.
type failingRepo struct {
	CandidateRepo
	after int
	calls int
}

var errBoom = errors.New("boom")

func (r *failingRepo) UpsertQueued(ctx context.Context, db *gorm.DB, c *domain.Candidate) (bool, error) {
	r.calls++
	if r.calls > r.after {
		return false, errBoom
	}
	return r.CandidateRepo.UpsertQueued(ctx, db, c)
}
