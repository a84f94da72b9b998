// Package main runs the settlement layer daemon: the REST API, the worker
// pool that drives pending settlements, and the lock janitor.
package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	app "github.com/NovaBridge-Network/settlement_layer/internal/app"
	"github.com/NovaBridge-Network/settlement_layer/internal/app/dlock"
	"github.com/NovaBridge-Network/settlement_layer/internal/app/httpapi"
	"github.com/NovaBridge-Network/settlement_layer/internal/app/idempotency"
	"github.com/NovaBridge-Network/settlement_layer/internal/app/storage/postgres"
	"github.com/NovaBridge-Network/settlement_layer/internal/config"
	"github.com/NovaBridge-Network/settlement_layer/internal/middleware"
	"github.com/NovaBridge-Network/settlement_layer/internal/platform/migrations"
	"github.com/NovaBridge-Network/settlement_layer/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	// A local .env is a development convenience; absence is normal.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.NewDefault("settlementd").WithError(err).Error("load configuration")
		os.Exit(1)
	}

	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}).WithField("component", "settlementd")

	stores, cleanup, err := buildStores(cfg, log)
	if err != nil {
		log.WithError(err).Error("initialise storage")
		os.Exit(1)
	}
	defer cleanup()

	locks, err := buildLocks(cfg, log)
	if err != nil {
		log.WithError(err).Error("initialise lock manager")
		os.Exit(1)
	}

	application, err := app.New(stores, app.Options{
		Locks:           locks,
		LockTTL:         cfg.Lock.TTL,
		WorkerCount:     cfg.Workers.Count,
		SweepInterval:   cfg.Workers.SweepInterval,
		CleanupSchedule: cfg.Lock.CleanupSchedule,
	}, log)
	if err != nil {
		log.WithError(err).Error("initialise application")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Error("start application")
		os.Exit(1)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log)
	stopCleanup := make(chan struct{})
	limiter.StartCleanup(time.Minute, stopCleanup)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           limiter.Handler(httpapi.NewHandler(application.Settlements)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Infof("received %s, shutting down", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http server failed")
		}
	}

	close(stopCleanup)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("application shutdown")
	}
	log.Info("shutdown complete")
}

// buildStores selects the storage backend. The postgres driver serves both
// the settlement records and the idempotency keys from one database; the
// memory driver pairs the in-memory store with a file-backed key store so
// idempotency survives restarts either way.
func buildStores(cfg *config.Config, log *logger.Logger) (app.Stores, func(), error) {
	switch cfg.Database.Driver {
	case "postgres":
		db, err := sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return app.Stores{}, nil, err
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return app.Stores{}, nil, err
		}
		if err := migrations.Apply(context.Background(), db); err != nil {
			db.Close()
			return app.Stores{}, nil, err
		}
		store := postgres.New(db)
		log.Info("using postgres storage")
		return app.Stores{Settlements: store, Idempotency: store}, func() { db.Close() }, nil

	default:
		idemp, err := idempotency.NewFileStore(cfg.Idempotency.Path, log)
		if err != nil {
			return app.Stores{}, nil, err
		}
		log.Info("using in-memory storage")
		return app.Stores{Idempotency: idemp}, func() {}, nil
	}
}

func buildLocks(cfg *config.Config, log *logger.Logger) (dlock.Manager, error) {
	if cfg.Lock.Backend != "redis" {
		return dlock.NewMemoryManager(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, err
	}
	log.Info("using redis lock manager")
	return dlock.NewRedisManager(client, "settlement_layer", log), nil
}
