// Package handlers provides HTTP handler implementations for the public API.
//
// This file declares the service contracts the handlers consume and the
// Handlers type that binds them. Handlers are transport-thin: they validate
// input, call application services, refresh the web-owned prayed cache and
// map after mutations, and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-prayer-queue/internal/domain"
	"github.com/tbourn/go-prayer-queue/internal/http/middleware"
	"github.com/tbourn/go-prayer-queue/internal/render"
	"github.com/tbourn/go-prayer-queue/internal/services"
)

//
// Service contracts (context-aware)
//

// PrayerService reads queue state and performs the status transitions.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type PrayerService interface {
	ListQueued(ctx context.Context, country string) ([]domain.Candidate, error)
	ListPrayed(ctx context.Context, country string) ([]domain.Candidate, error)
	CountQueued(ctx context.Context, country string) (int64, error)
	CountPrayed(ctx context.Context, country string) (int64, error)
	PrayedStats(ctx context.Context, country string) (int64, *time.Time, error)
	NextQueued(ctx context.Context) (*domain.Candidate, error)
	MarkPrayed(ctx context.Context, id uint) (*domain.Candidate, bool, error)
	PutBack(ctx context.Context, id uint, reassignHex bool) (*domain.Candidate, bool, error)
	PutBackByKey(ctx context.Context, key domain.NaturalKey, reassignHex bool) (*domain.Candidate, bool, error)
}

// QueueService runs the administrative reseed and purge.
type QueueService interface {
	ReseedOnce(ctx context.Context, key string) (services.ReseedOutcome, error)
	PurgeAndReseed(ctx context.Context) (int64, services.ReseedResult, error)
}

// StatsService builds the statistics read models.
type StatsService interface {
	PartyStatistics(ctx context.Context, country string) ([]services.PartyStat, error)
	Timeline(ctx context.Context, scope string) ([]services.TimelineEntry, error)
	Summary(ctx context.Context) (services.Summary, error)
}

// PrayedCache is the web-owned copy of the prayed lists.
type PrayedCache interface {
	Get(ctx context.Context, country string) ([]domain.Candidate, error)
	Refresh(ctx context.Context, country string) ([]domain.Candidate, error)
	InvalidateAll()
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for candidates, transitions, statistics and
// administration.
type Handlers struct {
	prayer    PrayerService
	queue     QueueService
	stats     StatsService
	cache     PrayedCache
	renderer  render.Renderer
	countries domain.Countries
}

// New constructs a Handlers instance. A nil renderer selects
// render.NopRenderer.
func New(prayer PrayerService, queue QueueService, stats StatsService, cache PrayedCache, renderer render.Renderer, countries domain.Countries) *Handlers {
	if renderer == nil {
		renderer = render.NopRenderer{}
	}
	return &Handlers{
		prayer:    prayer,
		queue:     queue,
		stats:     stats,
		cache:     cache,
		renderer:  renderer,
		countries: countries,
	}
}

// afterMutation refreshes the prayed cache for country and redraws its map.
// Failures are logged; the mutation has already committed.
func (h *Handlers) afterMutation(c *gin.Context, country string) {
	ctx := c.Request.Context()
	lg := middleware.LoggerFrom(c)

	prayed, err := h.cache.Refresh(ctx, country)
	if err != nil {
		lg.Warn().Err(err).Str("country", country).Msg("prayed cache refresh failed")
		return
	}
	queued, err := h.prayer.ListQueued(ctx, country)
	if err != nil {
		lg.Warn().Err(err).Str("country", country).Msg("queued list for render failed")
		return
	}
	if err := h.renderer.Render(ctx, country, prayed, queued); err != nil {
		if errors.Is(err, render.ErrNoGeometry) {
			lg.Debug().Str("country", country).Msg("no map to render")
			return
		}
		lg.Warn().Err(err).Str("country", country).Msg("map render failed")
	}
}

// afterRebuild drops every cached list and redraws every map.
func (h *Handlers) afterRebuild(c *gin.Context) {
	h.cache.InvalidateAll()
	for _, code := range h.countries.Codes() {
		h.afterMutation(c, code)
	}
}

// countryParam reads the optional ?country= filter.
func countryParam(c *gin.Context) string {
	return strings.ToLower(strings.TrimSpace(c.Query("country")))
}
