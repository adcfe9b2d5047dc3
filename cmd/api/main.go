package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"outfit-studio/internal/config"
	"outfit-studio/internal/database"
	"outfit-studio/internal/logger"
	"outfit-studio/internal/metrics"
	"outfit-studio/internal/server"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *server.Server, shutdownMetrics func(context.Context) error, logger *zap.Logger, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	logger.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	// The context is used to inform the server it has 30 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Close server resources
	if err := apiServer.Close(); err != nil {
		logger.Error("Error closing server resources", zap.Error(err))
	}

	if err := shutdownMetrics(ctx); err != nil {
		logger.Error("Failed to flush metrics", zap.Error(err))
	}

	logger.Info("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting outfit studio API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
	)

	ctx := context.Background()
	var deps server.Dependencies

	// The database is optional; without it orders are not kept in a ledger.
	if cfg.Database.Enabled() {
		dbService, err := database.New(ctx, cfg.Database)
		if err != nil {
			log.Fatal("Failed to connect to database", zap.Error(err))
		}
		log.Info("Database health check", zap.Any("health", dbService.Health()))

		if err := database.RunMigrations(dbService.DB(), log); err != nil {
			log.Fatal("Failed to run migrations", zap.Error(err))
		}
		log.Info("Database migrations completed successfully")
		deps.DB = dbService.DB()
	}

	if cfg.Redis.Enabled() {
		deps.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := deps.Redis.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatal("Failed to connect to redis", zap.String("addr", cfg.Redis.Addr()), zap.Error(err))
		}
	}

	m, shutdownMetrics, err := metrics.InitMetrics(ctx, cfg.Metrics)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	deps.Metrics = m

	// Create server
	srv, err := server.NewServer(ctx, cfg, log, deps)
	if err != nil {
		log.Fatal("Failed to configure server", zap.Error(err))
	}

	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(srv, shutdownMetrics, log, done)

	log.Info("Server listening", zap.String("addr", srv.Addr))

	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal("HTTP server error", zap.Error(err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Info("Graceful shutdown complete")
}
