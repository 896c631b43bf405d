package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eaglebank/ledger-service/internal/command"
	"github.com/eaglebank/ledger-service/internal/config"
	"github.com/eaglebank/ledger-service/internal/handler"
	"github.com/eaglebank/ledger-service/internal/query"
	"github.com/eaglebank/ledger-service/internal/repository"
	"github.com/eaglebank/ledger-service/shared/events"
	"github.com/eaglebank/ledger-service/shared/logger"
	"github.com/eaglebank/ledger-service/shared/middleware"
	"github.com/eaglebank/ledger-service/shared/models"
	redisClient "github.com/eaglebank/ledger-service/shared/redis"
	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	appLogger, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = appLogger.Sync() }()

	if err := run(cfg, appLogger); err != nil {
		appLogger.Fatal("Ledger service stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, appLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Write store
	store, closeStore, err := openStore(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer closeStore()

	// Redis connection (read model cache + event streaming), optional
	var redis *redisClient.Client
	if cfg.CacheEnabled() {
		redis, err = redisClient.NewClient(ctx, redisClient.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer redis.Close()
		appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	publisher, err := newPublisher(cfg, redis, appLogger)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			appLogger.Error("Error closing event publisher", zap.Error(err))
		}
	}()

	// --- CQRS wiring ---
	readRepo := repository.NewAccountReadRepository(store)
	if redis != nil {
		cache := redisClient.NewViewCache[models.BalanceView](
			redis.Client, repository.BalanceViewKeyPrefix, cfg.Redis.CacheTTL,
			appLogger.With(zap.String("component", "BalanceCache")),
		)
		readRepo = repository.NewCachedAccountReadRepository(store, cache)
	}

	commandSvc := command.NewAccountCommandService(store, readRepo, publisher, cfg.EventsStream,
		appLogger.With(zap.String("component", "AccountCommandService")))
	querySvc := query.NewAccountQueryService(readRepo)

	accountHandler := handler.NewAccountHandler(commandSvc, querySvc,
		appLogger.With(zap.String("component", "AccountHandler")))

	// Setup router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(appLogger))
	router.Use(middleware.LoggingMiddleware(appLogger.With(zap.String("component", "HTTP"))))

	router.GET("/health", handler.Health(store, appLogger))
	handler.RegisterRoutes(router, accountHandler)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		appLogger.Info("Ledger service starting",
			zap.String("port", cfg.Port),
			zap.String("store", cfg.StoreDriver),
			zap.String("events", cfg.EventsDriver),
			zap.Bool("cache", redis != nil),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
		appLogger.Info("Shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server graceful shutdown failed: %w", err)
	}
	appLogger.Info("HTTP server gracefully shut down")
	return nil
}

// openStore returns the configured account store and a func that releases it.
func openStore(ctx context.Context, cfg *config.Config, appLogger *zap.Logger) (repository.AccountStore, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		appLogger.Warn("Using in-memory account store; balances are lost on restart")
		return repository.NewMemoryAccountStore(), func() {}, nil
	}

	appLogger.Info("Connecting to PostgreSQL", zap.String("url", cfg.MaskedDatabaseURL()))
	db, err := connectPostgres(ctx, cfg.DB, appLogger)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			appLogger.Error("Error closing database connection", zap.Error(err))
		} else {
			appLogger.Info("Database connection closed")
		}
	}

	if cfg.DB.Migrate {
		appLogger.Info("Running database migrations...")
		if err := repository.Migrate(cfg.DB.URL, appLogger); err != nil {
			closeDB()
			return nil, nil, err
		}
	}
	return repository.NewAccountWriteRepository(db), closeDB, nil
}

func connectPostgres(ctx context.Context, dbCfg config.DBConfig, appLogger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", dbCfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(dbCfg.MaxOpenConns)
	db.SetMaxIdleConns(dbCfg.MaxIdleConns)
	db.SetConnMaxLifetime(dbCfg.ConnMaxLifetime)

	attempts := dbCfg.ConnectRetries
	if attempts < 1 {
		attempts = 1
	}
	for i := 1; i <= attempts; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err == nil {
			appLogger.Info("Successfully connected to PostgreSQL")
			return db, nil
		}
		if i == attempts {
			break
		}
		appLogger.Warn("Failed to connect to database, retrying",
			zap.Int("attempt", i),
			zap.Int("max_attempts", attempts),
			zap.Duration("retry_in", dbCfg.RetryDelay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(dbCfg.RetryDelay):
		}
	}
	db.Close()
	return nil, fmt.Errorf("failed to ping database after %d attempts: %w", attempts, err)
}

func newPublisher(cfg *config.Config, redis *redisClient.Client, appLogger *zap.Logger) (events.Publisher, error) {
	switch cfg.EventsDriver {
	case config.EventsDriverRedis:
		if redis == nil {
			return nil, errors.New("redis event publisher requires a redis connection")
		}
		return events.NewRedisPublisher(redis.Client, cfg.Redis.StreamMaxLen), nil
	case config.EventsDriverKafka:
		kafkaLogger := appLogger.With(zap.String("component", "KafkaPublisher"))
		writer := events.NewKafkaWriter(cfg.Kafka.Brokers, kafkaLogger)
		return events.NewKafkaPublisher(writer, kafkaLogger), nil
	default:
		return events.NopPublisher{}, nil
	}
}
