// Command server runs the prayer queue HTTP API.
//
//	@title			Prayer Queue API
//	@version		1.0
//	@description	Queue of candidates to pray for, with map cell allocation and statistics.
//	@BasePath		/api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-prayer-queue/internal/app"
	"github.com/tbourn/go-prayer-queue/internal/config"
	httpapi "github.com/tbourn/go-prayer-queue/internal/http"
	"github.com/tbourn/go-prayer-queue/internal/observability"
	"github.com/tbourn/go-prayer-queue/internal/sysutil"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	sysutil.ConfigureLogging(cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("startup")
	}
	defer func() { _ = a.Close() }()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version,
		observability.DeploymentAttrs(cfg.DBDriver, a.Countries.Codes())...)
	if err != nil {
		log.Fatal().Err(err).Msg("otel")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOTel(sctx)
	}()

	if cfg.SeedOnStartup {
		if ran, res, err := a.Queue.SeedIfEmpty(ctx); err != nil {
			log.Error().Err(err).Msg("startup seeding failed")
		} else if ran {
			log.Info().Int("inserted", res.Inserted).Int("skipped", res.Skipped).Msg("queue seeded")
		}
	}
	if err := a.RenderAll(ctx); err != nil {
		log.Warn().Err(err).Msg("initial map render incomplete")
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB:        a.DB,
		Countries: a.Countries,
		Prayer:    a.Prayer,
		Queue:     a.Queue,
		Stats:     a.Stats,
		Cache:     a.Cache,
		Renderer:  a.Renderer,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Strs("countries", a.Countries.Codes()).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
