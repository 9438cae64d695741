package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/krshsl/destiny/backend/repository"
	svc "github.com/krshsl/destiny/backend/services"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	// Setup structured logging with JSON format
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	config := svc.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var infra svc.Infrastructure

	if config.Database.URL != "" {
		pool, err := openPool(ctx, config.Database)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: stdlib.OpenDBFromPool(pool)}), &gorm.Config{
			Logger: logger.Default.LogMode(gormLogLevel(config.Database.LogLevel)),
		})
		if err != nil {
			slog.Error("Failed to open gorm", "error", err)
			os.Exit(1)
		}
		repo := repository.NewGORMRepository(gormDB)
		if err := repo.AutoMigrate(); err != nil {
			slog.Error("Failed to migrate database", "error", err)
			os.Exit(1)
		}
		infra.Repo = repo
		slog.Info("Connected to database")
	} else {
		slog.Warn("Database URL not configured, running without database")
	}

	if config.Redis.URL != "" {
		cache, err := svc.NewCache(ctx, config.Redis.URL, config.Redis.CacheTTL)
		if err != nil {
			slog.Warn("Redis unavailable, caching disabled", "error", err)
		} else {
			defer cache.Close()
			infra.Cache = cache

			client := asynq.NewClient(svc.RedisConnOpt(config.Redis.URL))
			defer client.Close()
			infra.Queue = client
		}
	}

	if config.RabbitMQ.URL != "" {
		publisher, err := svc.NewAMQPPublisher(config.RabbitMQ.URL, config.RabbitMQ.Exchange)
		if err != nil {
			slog.Warn("RabbitMQ unavailable, events disabled", "error", err)
		} else {
			defer publisher.Close()
			infra.Events = publisher
		}
	}

	if config.Storage.Bucket != "" {
		storage, err := svc.NewS3Storage(ctx, config.Storage)
		if err != nil {
			slog.Warn("Object storage unavailable, uploads disabled", "error", err)
		} else {
			infra.Storage = storage
		}
	}

	if config.AI.GeminiAPIKey != "" {
		gemini, err := svc.NewGeminiService(ctx, config.AI)
		if err != nil {
			slog.Warn("Gemini unavailable, AI features use fallbacks", "error", err)
		} else {
			infra.LLM = gemini
			slog.Info("Gemini service initialized", "model", config.AI.Model)
		}
	}

	server := svc.NewServer(config, infra)
	if err := server.InitializeServices(ctx); err != nil {
		slog.Error("Failed to initialize services", "error", err)
		os.Exit(1)
	}

	if infra.Queue != nil && server.TaskMux() != nil {
		worker := svc.NewWorker(svc.RedisConnOpt(config.Redis.URL), server.TaskMux())
		if err := worker.Start(); err != nil {
			slog.Error("Failed to start worker", "error", err)
		} else {
			defer worker.Shutdown()
		}
	}

	if err := server.Start(ctx); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}

func openPool(ctx context.Context, cfg svc.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 && cfg.MaxIdleConns <= cfg.MaxOpenConns {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "info":
		return logger.Info
	case "warn":
		return logger.Warn
	case "error":
		return logger.Error
	default:
		return logger.Silent
	}
}
