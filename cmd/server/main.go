package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/campusflow/procurement/internal/auth"
	"github.com/campusflow/procurement/internal/config"
	"github.com/campusflow/procurement/internal/engine"
	httpserver "github.com/campusflow/procurement/internal/interfaces/http"
	"github.com/campusflow/procurement/internal/metrics"
	"github.com/campusflow/procurement/internal/repository"
	"github.com/campusflow/procurement/pkg/database"
	"github.com/campusflow/procurement/pkg/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting procurement workflow service",
		zap.Int("port", cfg.Server.Port))

	// Initialize database
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(context.Background(), cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize repositories
	requestRepo := repository.NewRequestRepository(db.DB, logger)
	signatureRepo := repository.NewSignatureRepository(db.DB, logger)
	auditRepo := repository.NewAuditLogRepository(db.DB, logger)

	// Initialize metrics
	registry := prometheus.NewRegistry()
	engineMetrics := metrics.New(registry)

	// Initialize workflow engine
	workflowEngine := engine.New(
		requestRepo,
		signatureRepo,
		auditRepo,
		db,
		engineMetrics,
		logger,
	)

	// Initialize token verification
	tokenService := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	// Initialize HTTP server
	server := httpserver.NewServer(
		httpserver.ServerConfig{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		workflowEngine,
		auditRepo,
		tokenService,
		registry,
		logger.Sugar(),
	)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal("Server error", zap.Error(err))
		}
	case sig := <-quit:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Forced shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
