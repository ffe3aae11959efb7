package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"complaint-analytics-service/internal/auth"
	"complaint-analytics-service/internal/config"
	"complaint-analytics-service/internal/db"
	httphandler "complaint-analytics-service/internal/http"
	"complaint-analytics-service/internal/http/middleware"
	"complaint-analytics-service/internal/logger"
	"complaint-analytics-service/internal/repository"
	"complaint-analytics-service/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.Environment)

	database, err := db.New(cfg, appLogger)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to connect database")
	}

	datasetRepo := repository.NewDatasetRepository(database)
	reportService := service.NewReportService(datasetRepo, service.Options{
		Segment:        cfg.Ingest.Segment,
		RefundKeywords: cfg.Ingest.RefundKeywords,
		DefaultBuckets: cfg.Report.DefaultBuckets,
		MaxDailyDays:   cfg.Report.MaxDailyDays,
		TTL:            cfg.Dataset.TTL,
	}, appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if n, err := reportService.PurgeAll(ctx); err != nil {
		appLogger.Fatal().Err(err).Msg("failed to clear datasets")
	} else if n > 0 {
		appLogger.Info().Int64("datasets", n).Msg("cleared datasets from previous run")
	}
	go runPurger(ctx, reportService, cfg.Dataset.PurgeInterval, appLogger)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)

	handler := httphandler.NewHandler(reportService, appLogger, cfg.HTTP.MaxUploadMB)
	authMiddleware := middleware.Auth(tokenParser, appLogger)
	router := httphandler.NewRouter(handler, authMiddleware, appLogger, cfg.Environment, cfg.HTTP.AllowedOrigins)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	appLogger.Info().Str("addr", addr).Msg("starting complaint analytics service")

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error().Err(err).Msg("failed to start server")
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	appLogger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func runPurger(ctx context.Context, reports *service.ReportService, interval time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := reports.PurgeExpired(ctx); err != nil {
				log.Error().Err(err).Msg("dataset purge failed")
			}
		}
	}
}
