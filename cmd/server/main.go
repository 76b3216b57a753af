package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jengzang/vehicle-forensics-go/internal/api"
	"github.com/jengzang/vehicle-forensics-go/internal/config"
	"github.com/jengzang/vehicle-forensics-go/internal/database"
	"github.com/jengzang/vehicle-forensics-go/internal/interpolation"
	"github.com/jengzang/vehicle-forensics-go/internal/projection"
	"github.com/jengzang/vehicle-forensics-go/internal/repository"
	"github.com/jengzang/vehicle-forensics-go/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := config.LoadDotEnv(); err != nil {
		logrus.Fatalf("Failed to load .env: %v", err)
	}
	cfg := config.Load()
	if err := config.SetupLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		logrus.Fatalf("Failed to configure logging: %v", err)
	}

	settings, err := config.LoadSettings(cfg.SettingsPath)
	if err != nil {
		logrus.Fatalf("Failed to load tracking settings: %v", err)
	}

	db, err := database.OpenAndMigrate(database.Config{Path: cfg.DBPath})
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	projections := projection.NewCache(settings.ProjectionCacheSize, settings.ProjectionCacheToleranceKm)
	vehicles := repository.NewVehicleRepository(db)
	tracking := service.NewTrackingService(settings, projections, interpolation.NewCache(0), vehicles)
	analyses := service.NewAnalysisService(tracking, repository.NewAnalysisRunRepository(db))

	limiter := api.NewLimiter(cfg)
	if limiter != nil {
		defer limiter.Stop()
	}

	router := api.SetupRouter(cfg, api.Services{
		Tracking: tracking,
		Analysis: analyses,
		Limiter:  limiter,
	})

	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.WithFields(logrus.Fields{
			"addr": cfg.Port,
			"auth": cfg.JWTSecret != "",
		}).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shut down: %v", err)
	}
}
