package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/eeya7ya/magictech-management-sub002/internal/broker"
	"github.com/eeya7ya/magictech-management-sub002/internal/config"
	"github.com/eeya7ya/magictech-management-sub002/internal/domain"
	"github.com/eeya7ya/magictech-management-sub002/internal/notify"
	"github.com/eeya7ya/magictech-management-sub002/internal/presence"
	"github.com/eeya7ya/magictech-management-sub002/internal/repository"
)

// agent is a headless department client: it registers presence, backfills
// missed notifications, subscribes to its module's topics and logs whatever
// arrives. The same wiring is what a desktop client embeds.
func main() {
	userID := flag.String("user", "", "user id to log in as")
	username := flag.String("name", "", "display name")
	module := flag.String("module", string(domain.ModuleSales), "department module")
	all := flag.Bool("all", false, "subscribe to every topic (administrative client)")
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: agent -user <id> [-name <name>] [-module <MODULE>] [-all]")
		os.Exit(1)
	}
	if *username == "" {
		*username = *userID
	}

	_ = godotenv.Load()

	logger, err := initLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	ctx := context.Background()
	mod := domain.ModuleType(*module)
	session := notify.NewClientSession(*userID, *username, mod)

	logger.Info("Starting agent",
		zap.String("user_id", *userID),
		zap.String("module", *module),
		zap.String("device_id", session.DeviceID),
	)

	store, cleanup, err := initStore(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize store", zap.Error(err))
	}
	defer cleanup()

	b, err := initBroker(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to broker", zap.Error(err))
	}
	defer b.Close()

	subscriber := notify.NewSubscriber(b, session, logger)
	registry := presence.NewRegistry(store, session, logger)

	subscriber.AddListener(func(msg *domain.NotificationMessage) {
		logger.Info("notification received",
			zap.String("type", string(msg.Type)),
			zap.String("module", string(msg.Module)),
			zap.String("action", msg.Action),
			zap.String("title", msg.Title),
			zap.String("priority", string(msg.Priority)),
		)
	})

	if err := subscriber.Start(ctx); err != nil {
		logger.Fatal("Failed to start subscriber", zap.Error(err))
	}

	// Register presence and backfill whatever was published while this user
	// was offline. A nil checkpoint means first login: nothing to catch up.
	_, previousLastSeen := registry.Register(ctx, *userID, *username, mod)
	if previousLastSeen != nil {
		missed, err := store.MissedSinceByModule(ctx, mod, *previousLastSeen)
		if err != nil {
			logger.Error("catch-up query failed", zap.Error(err))
		} else {
			logger.Info("catch-up complete",
				zap.Time("since", *previousLastSeen),
				zap.Int("missed", len(missed)),
			)
			for _, rec := range missed {
				logger.Info("missed notification",
					zap.Int64("id", rec.ID),
					zap.String("title", rec.Title),
					zap.Time("at", rec.Timestamp),
				)
			}
		}
	} else {
		logger.Info("first login, no catch-up")
	}

	if *all {
		err = subscriber.SubscribeToAll(ctx)
	} else {
		err = subscriber.SubscribeToModule(ctx, mod)
	}
	if err != nil {
		logger.Fatal("Failed to subscribe", zap.Error(err))
	}

	// Heartbeat until interrupted
	hbCtx, hbCancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(cfg.Presence.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				registry.Heartbeat(hbCtx)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down agent...")

	hbCancel()
	registry.SetOffline(ctx)
	subscriber.Close(ctx)

	logger.Info("Agent stopped")
}

func initLogger() (*zap.Logger, error) {
	env := os.Getenv("ENV")
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// initStore connects to PostgreSQL when a database URL is configured and
// falls back to the in-memory store otherwise (offline/dev mode: presence
// and catch-up are process-local only).
func initStore(ctx context.Context, cfg *config.Config) (store interface {
	domain.NotificationStore
	domain.DeviceStore
}, cleanup func(), err error) {
	if cfg.Database.URL == "" {
		return repository.NewMemoryRepository(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := repository.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return repository.NewPostgresRepository(pool), pool.Close, nil
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
