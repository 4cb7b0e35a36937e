package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"lms/backend/config"
	"lms/backend/identity"
	"lms/backend/repository"
	"lms/backend/routes"
	"lms/backend/services"
	"lms/backend/utils"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(cfg)
	if err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	// Initialize database
	db, err := utils.InitDB(cfg, logger)
	if err != nil {
		logger.Fatal("Error initializing database", zap.Error(err))
	}

	idp := newIdentityProvider(cfg, logger)
	store := repository.NewGormStore(db)

	app := routes.NewApp(cfg, logger)
	routes.SetupRoutes(app, routes.Dependencies{
		Store:    store,
		Identity: idp,
		Overview: services.NewOverviewService(store, logger.Named("overview"), cfg.StatsLocation),
		Logger:   logger,
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		sig := <-quit

		logger.Info("shutting down", zap.String("signal", sig.String()))
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	}()

	// Start server
	logger.Info("server starting",
		zap.String("port", cfg.ServerPort),
		zap.String("identity_driver", cfg.IdentityDriver),
		zap.String("stats_timezone", cfg.StatsLocation.String()),
	)
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.Info("server stopped")
}

func newIdentityProvider(cfg *config.Config, logger *zap.Logger) identity.Provider {
	if cfg.IdentityDriver == config.IdentityDriverMemory {
		logger.Warn("using in-memory identity provider; accounts are lost on restart")
		return identity.NewMemoryProvider()
	}
	return identity.NewSupabaseClient(cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.SupabaseServiceRoleKey, cfg.IdentityTimeout)
}
