// Package app assembles the application graph shared by cmd/server and
// cmd/prayctl: the store, the country set, the roster and geometry sources,
// the services and the web-owned collaborators (prayed cache, map renderer).
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-prayer-queue/internal/cache"
	"github.com/tbourn/go-prayer-queue/internal/config"
	"github.com/tbourn/go-prayer-queue/internal/domain"
	"github.com/tbourn/go-prayer-queue/internal/hexpool"
	"github.com/tbourn/go-prayer-queue/internal/render"
	"github.com/tbourn/go-prayer-queue/internal/repo"
	"github.com/tbourn/go-prayer-queue/internal/roster"
	"github.com/tbourn/go-prayer-queue/internal/services"
)

// App is the wired application.
type App struct {
	DB        *gorm.DB
	Countries domain.Countries
	Geometry  hexpool.GeometrySource
	Rosters   services.RosterSource

	Prayer *services.PrayerService
	Queue  *services.QueueService
	Stats  *services.StatsService

	Cache    *cache.PrayedCache
	Renderer render.Renderer
}

// Open connects to the configured store, migrates it and wires the services
// over the file-backed roster and geometry sources.
func Open(cfg config.Config) (*App, error) {
	countries, err := config.LoadCountries(cfg)
	if err != nil {
		return nil, err
	}
	db, err := repo.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.DBDriver, err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return New(cfg, db, countries, roster.NewCSVSource(countries), hexpool.NewFileStore(countries))
}

// New wires the services over db and the given sources. A blank
// MapOutputDir disables map rendering.
func New(cfg config.Config, db *gorm.DB, countries domain.Countries, rosters services.RosterSource, geometry hexpool.GeometrySource) (*App, error) {
	pool := hexpool.New(geometry, nil)

	queue := &services.QueueService{
		DB:                db,
		Repo:              services.GormCandidateRepo{},
		Countries:         countries,
		Rosters:           rosters,
		Hex:               pool,
		FallbackThumbnail: domain.StringPtr(cfg.FallbackThumbnail),
		RunTTL:            cfg.ReseedKeyTTL,
	}
	prayer := services.NewPrayerService(db, countries, pool)
	stats := &services.StatsService{
		DB:        db,
		Repo:      services.GormCandidateRepo{},
		Countries: countries,
		Targets:   queue,
	}

	var renderer render.Renderer = render.NopRenderer{}
	if cfg.MapOutputDir != "" {
		if err := os.MkdirAll(cfg.MapOutputDir, 0o755); err != nil {
			return nil, fmt.Errorf("map output dir: %w", err)
		}
		renderer = &render.GeoJSONRenderer{Countries: countries, Geometry: geometry, OutDir: cfg.MapOutputDir}
	}

	return &App{
		DB:        db,
		Countries: countries,
		Geometry:  geometry,
		Rosters:   rosters,
		Prayer:    prayer,
		Queue:     queue,
		Stats:     stats,
		Cache:     cache.NewPrayedCache(prayer.ListPrayed),
		Renderer:  renderer,
	}, nil
}

// RenderAll refreshes the prayed cache and redraws every country's map.
// Countries without geometry are skipped; the first other failure is
// returned after all countries were attempted.
func (a *App) RenderAll(ctx context.Context) error {
	a.Cache.InvalidateAll()
	var first error
	for _, code := range a.Countries.Codes() {
		prayed, err := a.Cache.Refresh(ctx, code)
		if err == nil {
			var queued []domain.Candidate
			queued, err = a.Prayer.ListQueued(ctx, code)
			if err == nil {
				err = a.Renderer.Render(ctx, code, prayed, queued)
			}
		}
		switch {
		case err == nil:
		case errors.Is(err, render.ErrNoGeometry):
			log.Debug().Str("country", code).Msg("no map to render")
		default:
			log.Warn().Err(err).Str("country", code).Msg("map render failed")
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Close releases the store connection.
func (a *App) Close() error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
