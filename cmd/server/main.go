package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dfryer1193/storefront/catalog/application"
	"github.com/dfryer1193/storefront/internal/bootstrap"
	"github.com/dfryer1193/storefront/internal/middleware"
	"github.com/dfryer1193/storefront/internal/rest"
	"github.com/dfryer1193/storefront/shared/config"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	} else {
		log.Warn().Str("level", cfg.LogLevel).Msg("Unknown log level, keeping default")
	}

	for _, dir := range []string{cfg.Assets.Dir, cfg.Import.TmpDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("Failed to create directory")
		}
	}

	ctx := context.Background()
	stores, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open stores")
	}
	defer func() {
		if err := stores.Close(context.Background()); err != nil {
			log.Error().Err(err).Msg("Failed to close stores")
		}
	}()

	importService := application.NewImportService(stores.Documents, stores.Jobs, cfg.Import.BatchSize)
	defer func() {
		if err := importService.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to gracefully close import service")
		}
	}()

	handler := rest.NewHandler(
		application.NewRenditionGenerator(cfg.Assets),
		application.NewExporter(stores.Documents, cfg.Assets.Dir),
		importService,
		rest.Options{
			AssetDir:        cfg.Assets.Dir,
			URLPrefix:       cfg.Assets.URLPrefix,
			TmpDir:          cfg.Import.TmpDir,
			MaxUploadBytes:  cfg.MaxUploadBytes(),
			MaxImportBytes:  cfg.MaxImportBytes(),
			MaxExtractBytes: cfg.MaxExtractBytes(),
		},
	)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.HandlePanics(), middleware.RequestLogger())
	rest.NewApi(r, handler)

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", cfg.Listen).Str("driver", cfg.Database.Driver).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown server")
	}

	log.Info().Msg("Server stopped")
}
