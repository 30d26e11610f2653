package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/text-stream/internal/api/handler"
	"github.com/cuongbtq/text-stream/internal/api/router"
	"github.com/cuongbtq/text-stream/internal/archive"
	"github.com/cuongbtq/text-stream/internal/config"
	"github.com/cuongbtq/text-stream/internal/jobs"
	"github.com/cuongbtq/text-stream/internal/notify"
	"github.com/cuongbtq/text-stream/internal/retention"
	"github.com/cuongbtq/text-stream/internal/storage"
	"github.com/cuongbtq/text-stream/internal/transform"
	"github.com/cuongbtq/text-stream/internal/worker"
	"github.com/cuongbtq/text-stream/shared/logger"
	"github.com/cuongbtq/text-stream/shared/postgresql"
	"github.com/cuongbtq/text-stream/shared/rabbitmq"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Optional external clients
	var (
		rabbitClient *rabbitmq.Client
		redisClient  *redis.Client
		dbClient     *postgresql.Client
	)

	cleanup := func() {
		if dbClient != nil {
			dbClient.Close()
		}
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				appLogger.Error("Failed to close Redis client", slog.Any("error", err))
			}
		}
		if rabbitClient != nil {
			rabbitClient.Close()
		}
	}
	defer cleanup()

	publishers := []notify.Publisher{}

	hub := notify.NewHub(cfg.Notifications.BufferSize, appLogger.Component("hub"))
	publishers = append(publishers, hub)

	if cfg.Notifications.RabbitMQ.Enabled {
		rabbitClient, err = initRabbitMQ(&cfg.Notifications.RabbitMQ, appLogger.Component("rabbitmq"))
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		appLogger.Info("RabbitMQ connection established")

		publishers = append(publishers, notify.NewAMQPPublisher(
			rabbitClient,
			cfg.Notifications.RabbitMQ.RoutingKeyPrefix,
			cfg.Notifications.RabbitMQ.PublishTimeout,
			appLogger.Component("notify"),
		))
	}

	if cfg.Notifications.Redis.Enabled {
		redisClient, err = initRedis(&cfg.Notifications.Redis)
		if err != nil {
			return fmt.Errorf("failed to initialize Redis: %w", err)
		}
		appLogger.Info("Redis connection established")

		publishers = append(publishers, notify.NewRedisPublisher(
			redisClient,
			cfg.Notifications.Redis.ChannelPrefix,
			cfg.Notifications.Redis.PublishTimeout,
			appLogger.Component("notify"),
		))
	}

	if cfg.Database.Enabled {
		dbClient, err = initPostgreSQL(&cfg.Database, appLogger.Component("postgresql"))
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		appLogger.Info("Database connection established")
	}

	// Core components
	jobStore := storage.NewStorage(appLogger.Component("storage"))
	sink := notify.NewNotifier(publishers...)

	scheduler := worker.NewWorker(&worker.Config{
		Logger: appLogger.Component("worker"),
		Store:  jobStore,
		Sink:   sink,
		Streamer: transform.NewStreamer(transform.StreamConfig{
			MinDelay: cfg.Worker.UnitDelayMin,
			MaxDelay: cfg.Worker.UnitDelayMax,
		}),
		Concurrency:  cfg.Worker.Concurrency,
		PollInterval: cfg.Worker.PollInterval,
		RetryBackoff: cfg.Worker.RetryBackoff,
	})

	manager := jobs.NewManager(&jobs.Config{
		Logger:    appLogger.Component("jobs"),
		Store:     jobStore,
		Scheduler: scheduler,
		Sink:      sink,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := scheduler.Start(ctx); err != nil {
			appLogger.Error("Worker failed to start", slog.Any("error", err))
		}
	}()

	if cfg.Retention.Enabled {
		sweeper, err := initRetention(ctx, cfg, jobStore, dbClient, appLogger.Component("retention"))
		if err != nil {
			return fmt.Errorf("failed to initialize retention: %w", err)
		}
		go sweeper.Run(ctx)
	}

	// Initialize router
	r := initRouter(cfg, appLogger.Component("http"), manager, hub, scheduler)

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	// Shutdown does not cancel request contexts, so end event streams explicitly
	srv.RegisterOnShutdown(hub.Close)

	appLogger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
		slog.Int("worker_concurrency", scheduler.Concurrency()),
	)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Server failed", slog.Any("error", err))
		return err
	}

	// Stop accepting requests first so no job is created after the worker stops
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
	}

	cancel()

	done := make(chan struct{})
	go func() {
		scheduler.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-time.After(cfg.Worker.ShutdownTimeout):
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit",
			slog.Int("in_flight", scheduler.InFlight()),
		)
	}

	appLogger.Info("API service shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		ConnectTimeout:  5 * time.Second,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// initRedis connects to Redis and verifies the connection
func initRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// initRetention builds the sweeper, archiving to PostgreSQL when configured
func initRetention(ctx context.Context, cfg *config.Config, jobStore *storage.Storage, dbClient *postgresql.Client, logger *slog.Logger) (*retention.Sweeper, error) {
	sweeperCfg := &retention.Config{
		Logger:   logger,
		Store:    jobStore,
		Interval: cfg.Retention.Interval,
		MaxAge:   cfg.Retention.MaxAge,
	}

	if cfg.Retention.Archive && dbClient != nil {
		archiveStorage := archive.NewStorage(dbClient, logger)
		if err := archiveStorage.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		sweeperCfg.Archiver = archiveStorage
	}

	return retention.NewSweeper(sweeperCfg), nil
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(cfg *config.Config, logger *slog.Logger, manager *jobs.Manager, hub *notify.Hub, scheduler *worker.Worker) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize handler dependencies
	handlerDeps := &handler.Dependencies{
		Logger:      logger,
		ServiceName: cfg.App.Name,
		Jobs:        manager,
		Hub:         hub,
		Scheduler:   scheduler,
	}

	// Setup router
	return router.SetupRouter(handlerDeps)
}
