package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/eeya7ya/magictech-management-sub002/internal/api"
	"github.com/eeya7ya/magictech-management-sub002/internal/broker"
	"github.com/eeya7ya/magictech-management-sub002/internal/config"
	"github.com/eeya7ya/magictech-management-sub002/internal/notify"
	"github.com/eeya7ya/magictech-management-sub002/internal/presence"
	"github.com/eeya7ya/magictech-management-sub002/internal/repository"
)

func main() {
	// Load .env file if exists
	_ = godotenv.Load()

	// Initialize logger
	logger, err := initLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Starting notification service",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("broker", cfg.Broker.Kind),
	)

	// Initialize database
	ctx := context.Background()
	db, err := initDatabase(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := repository.EnsureSchema(ctx, db); err != nil {
		logger.Fatal("Failed to apply schema", zap.Error(err))
	}

	logger.Info("Connected to database")

	// Initialize broker transport
	b, err := initBroker(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to broker", zap.Error(err))
	}
	defer b.Close()

	// Initialize dependencies. The service itself runs under a system
	// session: its device id becomes the source of manually triggered
	// notifications.
	repo := repository.NewPostgresRepository(db)
	session := notify.NewClientSession("system", "notifyd", "")
	publisher := notify.NewPublisher(repo, b, session, logger)
	registry := presence.NewRegistry(repo, session, logger)

	// Start the periodic presence sweep
	sweepCtx, sweepCancel := context.WithCancel(ctx)
	registry.RunSweeper(sweepCtx, cfg.Presence.SweepInterval, cfg.Presence.StaleTimeout)

	// Initialize handlers
	notificationHandler := api.NewNotificationHandler(repo, publisher, logger)
	presenceHandler := api.NewPresenceHandler(registry, logger)
	healthHandler := api.NewHealthHandler().WithPing(db.Ping)

	// Initialize router
	router := api.NewRouter(notificationHandler, presenceHandler, healthHandler, logger)
	r := router.Setup()

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	sweepCancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	logger.Info("Server stopped")
}

func initLogger() (*zap.Logger, error) {
	env := os.Getenv("ENV")
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func initDatabase(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pool settings
	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 1 * time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

func initBroker(ctx context.Context, cfg *config.Config, logger *zap.Logger) (broker.Broker, error) {
	switch cfg.Broker.Kind {
	case "memory":
		return broker.NewMemory(), nil
	case "websocket":
		return broker.DialWebsocket(ctx, cfg.Broker.GatewayURL, logger)
	default:
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		return broker.NewRedis(client, logger), nil
	}
}
