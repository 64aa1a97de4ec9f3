package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-prayer-queue/internal/cache"
	"github.com/tbourn/go-prayer-queue/internal/domain"
	"github.com/tbourn/go-prayer-queue/internal/hexpool"
	"github.com/tbourn/go-prayer-queue/internal/http/middleware"
	"github.com/tbourn/go-prayer-queue/internal/repo"
	"github.com/tbourn/go-prayer-queue/internal/services"
)

// ---------- test DB + collaborators ----------

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("handlers_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type staticRosters map[string][]domain.RosterRow

func (s staticRosters) FetchRoster(_ context.Context, code string) ([]domain.RosterRow, error) {
	return s[code], nil
}

type staticCells map[string][]string

func (s staticCells) LoadCellGeometry(code string) (*hexpool.Geometry, bool) {
	ids, ok := s[code]
	if !ok {
		return nil, false
	}
	return &hexpool.Geometry{IDs: ids}, true
}

// recordingRenderer counts renders per country.
type recordingRenderer struct {
	mu    sync.Mutex
	calls map[string]int
}

func (r *recordingRenderer) Render(_ context.Context, country string, _, _ []domain.Candidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = map[string]int{}
	}
	r.calls[country]++
	return nil
}

func (r *recordingRenderer) count(country string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[country]
}

func testCountries() domain.Countries {
	return domain.Countries{
		{Code: "israel", Name: "Israel", UsesRandomAllocation: true},
		{Code: "iran", Name: "Iran"},
	}
}

func rows(names ...string) []domain.RosterRow {
	out := make([]domain.RosterRow, 0, len(names))
	for _, n := range names {
		out = append(out, domain.RosterRow{PersonName: n, Party: domain.DefaultParty})
	}
	return out
}

// ---------- router harness ----------

type env struct {
	r        *gin.Engine
	db       *gorm.DB
	queue    *services.QueueService
	prayer   *services.PrayerService
	renderer *recordingRenderer
}

// mount registers the routes the way the router does, without the global
// middleware chain.
func mount(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID())

	r.GET("/countries", h.ListCountries)
	r.GET("/candidates/queued", h.ListQueued)
	r.GET("/candidates/queued/count", h.CountQueued)
	r.GET("/candidates/next", h.NextQueued)
	r.GET("/candidates/prayed", h.ListPrayed)
	r.GET("/candidates/prayed/count", h.CountPrayed)
	r.GET("/candidates/prayed/search", h.SearchPrayed)
	r.POST("/candidates/:id/pray", h.MarkPrayed)
	r.POST("/candidates/:id/put-back", h.PutBack)
	r.POST("/candidates/put-back", h.PutBackByKey)
	r.GET("/stats/summary", h.Summary)
	r.GET("/stats/:country/parties", h.PartyStatistics)
	r.GET("/stats/:country/timeline", h.Timeline)

	admin := r.Group("/admin", middleware.AdminAuth(""))
	admin.POST("/reseed", middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil), h.Reseed)
	admin.POST("/purge", h.Purge)
	return r
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := newHandlerDB(t)
	countries := testCountries()
	pool := hexpool.New(staticCells{"israel": {"1", "2", "3"}}, rand.New(rand.NewPCG(1, 2)))

	queue := &services.QueueService{
		DB: db, Repo: services.GormCandidateRepo{}, Countries: countries,
		Rosters: staticRosters{"israel": rows("Alice", "Bob"), "iran": rows("Cyrus")},
		Hex:     pool, Rand: rand.New(rand.NewPCG(3, 4)), RunTTL: time.Hour,
	}
	prayer := services.NewPrayerService(db, countries, pool)
	stats := &services.StatsService{DB: db, Repo: services.GormCandidateRepo{}, Countries: countries, Targets: queue}
	rr := &recordingRenderer{}
	h := New(prayer, queue, stats, cache.NewPrayedCache(prayer.ListPrayed), rr, countries)
	return &env{r: mount(h), db: db, queue: queue, prayer: prayer, renderer: rr}
}

func (e *env) seed(t *testing.T) []domain.Candidate {
	t.Helper()
	if _, err := e.queue.Reseed(context.Background()); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	q, err := e.prayer.ListQueued(context.Background(), "")
	if err != nil {
		t.Fatalf("list queued: %v", err)
	}
	return q
}

func (e *env) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v (body=%s)", v, err, w.Body.String())
	}
	return v
}

func wantCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d; want %d (body=%s)", w.Code, status, w.Body.String())
	}
	if code == "" {
		return
	}
	er := decode[ErrorResponse](t, w)
	if er.Code != code {
		t.Fatalf("code = %q; want %q", er.Code, code)
	}
	if er.RequestID == "" {
		t.Fatalf("error envelope must carry the request id")
	}
}
