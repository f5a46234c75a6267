package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/bustrack/internal/config"
	"github.com/mamadbah2/bustrack/internal/repository/mongodb"
	"github.com/mamadbah2/bustrack/internal/repository/sheets"
	"github.com/mamadbah2/bustrack/internal/scheduler"
	"github.com/mamadbah2/bustrack/internal/server/handlers"
	"github.com/mamadbah2/bustrack/internal/server/router"
	analyticssvc "github.com/mamadbah2/bustrack/internal/service/analytics"
	arrivalsvc "github.com/mamadbah2/bustrack/internal/service/arrivals"
	imagesvc "github.com/mamadbah2/bustrack/internal/service/images"
	reportingsvc "github.com/mamadbah2/bustrack/internal/service/reporting"
	trackersvc "github.com/mamadbah2/bustrack/internal/service/trackers"
	"github.com/mamadbah2/bustrack/internal/socket"
	"github.com/mamadbah2/bustrack/internal/storage"
	"github.com/mamadbah2/bustrack/pkg/clients/webhook"
	"github.com/mamadbah2/bustrack/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Log.Level))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	loc, err := cfg.Location()
	if err != nil {
		baseLogger.Fatal("invalid timezone", zap.Error(err))
	}

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	mongoRepo, err := mongodb.NewMongoDBRepository(startupCtx, cfg.MongoDB.URI, cfg.MongoDB.DBName)
	if err != nil {
		baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
	}
	defer func() {
		if err := mongoRepo.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close mongodb connection", zap.Error(err))
		}
	}()

	if err := mongoRepo.EnsureIndexes(startupCtx); err != nil {
		baseLogger.Fatal("failed to ensure mongodb indexes", zap.Error(err))
	}

	var objectStore storage.ObjectStore
	if cfg.S3.Enabled() {
		s3Store, err := storage.NewS3Store(startupCtx, cfg.S3)
		if err != nil {
			baseLogger.Fatal("failed to init s3 object store", zap.Error(err))
		}
		objectStore = s3Store
		baseLogger.Info("s3 object store enabled", zap.String("bucket", cfg.S3.Bucket))
	} else {
		objectStore = storage.NewMemoryStore()
		baseLogger.Warn("S3_BUCKET not set, uploaded images are kept in memory")
	}

	channels := reportingsvc.Channels{}
	if cfg.Digest.WebhookURL != "" {
		channels.Webhook = webhook.NewClient(cfg.Digest.WebhookURL)
		baseLogger.Info("digest webhook enabled")
	}
	if cfg.Sheets.Enabled() {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(startupCtx, cfg.Sheets, logger.Named(baseLogger, "repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		channels.Sheet = sheetsRepo
		baseLogger.Info("digest sheet enabled", zap.String("range", cfg.Sheets.DigestRange))
	}

	hub := socket.NewHub(logger.Named(baseLogger, "socket.hub"))

	arrivalService := arrivalsvc.NewService(mongoRepo, loc, logger.Named(baseLogger, "svc.arrivals"))
	analyticsService := analyticssvc.NewService(mongoRepo, mongoRepo, mongoRepo, loc, logger.Named(baseLogger, "svc.analytics"))
	trackerService := trackersvc.NewService(mongoRepo, hub, logger.Named(baseLogger, "svc.trackers"))
	imageService := imagesvc.NewService(mongoRepo, objectStore, logger.Named(baseLogger, "svc.images"))
	reportingService := reportingsvc.NewService(analyticsService, mongoRepo, channels, loc, logger.Named(baseLogger, "svc.reporting"))

	engine := router.New(router.Handlers{
		Arrivals:  handlers.NewArrivalHandler(arrivalService, analyticsService, logger.Named(baseLogger, "handlers.arrivals")),
		Analytics: handlers.NewAnalyticsHandler(analyticsService, logger.Named(baseLogger, "handlers.analytics")),
		Trackers:  handlers.NewTrackerHandler(trackerService, logger.Named(baseLogger, "handlers.trackers")),
		Images:    handlers.NewImageHandler(imageService, logger.Named(baseLogger, "handlers.images")),
		Feed:      handlers.NewWebSocketHandler(hub, logger.Named(baseLogger, "handlers.feed")),
		Ping:      mongoRepo.Ping,
	}, cfg.Server.CORSAllowedOrigins, logger.Named(baseLogger, "router"))

	sched := scheduler.NewScheduler(*cfg, reportingService, trackerService, loc, logger.Named(baseLogger, "scheduler"))
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("timezone", loc.String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
