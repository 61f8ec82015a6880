package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/app"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/identifier"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/repository/memory"
	"github.com/spec-kit/helpdesk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var repos app.Repositories
	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		repos = app.PostgresRepositories(pool)
	} else {
		logger.Warn("using in-memory storage; data is lost on restart")
		repos = app.MemoryRepositories(memory.NewStore())
		pg = nil
	}

	var redis *persistence.Redis
	var locker identifier.Locker
	switch cfg.Identifier.LockBackend {
	case "redis":
		redis = persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
		locker = identifier.NewRedisLocker(redis.Client, cfg.Identifier.LockTTL(), logger.Named("ident-lock"))
	case "none":
		locker = identifier.NoopLocker{}
	default:
		locker = identifier.NewLocalLocker()
	}

	services, err := app.NewServices(app.Options{
		Config: cfg,
		Repos:  repos,
		Locker: locker,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("failed to build services", zap.Error(err))
	}
	var forwarder *worker.EventForwarder
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaForwarder, err := events.NewKafkaForwarder(cfg.Kafka, logger.Named("kafka"))
		if err != nil {
			logger.Fatal("failed to init kafka forwarder", zap.Error(err))
		}
		defer kafkaForwarder.Close() //nolint:errcheck
		forwarder = worker.NewEventForwarder(kafkaForwarder.Handle, worker.DefaultQueueSize, logger.Named("forwarder"))
		logger.Info("forwarding ticket events to kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	background := worker.StartBackground(services.Dispatcher, services.Notifications, forwarder, logger.Named("background"))

	fiberApp := app.NewHTTPApp(app.HTTPOptions{
		Config:   cfg,
		Services: services,
		Agents:   repos.Agents,
		Metrics:  observability.NewMetrics(),
		Postgres: pg,
		Redis:    redis,
		Logger:   logger,
	})

	go func() {
		if err := fiberApp.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := fiberApp.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := background.Shutdown(stopCtx); err != nil {
		logger.Warn("event forwarder did not drain", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
