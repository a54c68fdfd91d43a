package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/salon-slot-booking/internal/booking"
	"github.com/hackgods/salon-slot-booking/internal/config"
	"github.com/hackgods/salon-slot-booking/internal/db"
	"github.com/hackgods/salon-slot-booking/internal/logging"
	redisclient "github.com/hackgods/salon-slot-booking/internal/redis"
)

const lockName = "orphan-sweeper"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load error", slog.Any("error", err))
		os.Exit(1)
	}

	logger := logging.New(cfg, "sweeper")
	slog.SetDefault(logger)

	if cfg.Storage != config.StoragePostgres {
		logger.Error("sweeper requires APP_STORAGE=postgres")
		os.Exit(1)
	}

	logger.Info("sweeper starting up",
		slog.Duration("interval", cfg.SweepInterval),
		slog.Duration("grace", cfg.OrphanGrace),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Error("postgres connection error", slog.Any("error", err))
		os.Exit(1)
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(rootCtx, cfg)
	if err != nil {
		logger.Error("redis connection error", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", slog.Any("error", err))
		}
	}()
	logger.Info("connected to Redis")

	repo := booking.NewPgRepository(pgPool)
	svc := booking.NewService(repo, repo, repo, cfg, booking.WithLogger(logger))
	locker := redisclient.NewRedisLocker(rdb, cfg.LockTTL)

	// Run once at startup
	runOnce(rootCtx, logger, locker, svc, cfg.OrphanGrace)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping sweeper")
			return
		case <-ticker.C:
			runOnce(rootCtx, logger, locker, svc, cfg.OrphanGrace)
		}
	}
}

// runOnce sweeps under the leader lock so replicas never work the same
// orphans concurrently.
func runOnce(ctx context.Context, logger *slog.Logger, locker redisclient.Locker, svc *booking.Service, grace time.Duration) {
	start := time.Now()

	var report booking.ReclaimReport
	err := locker.WithLock(ctx, lockName, func(ctx context.Context) error {
		var err error
		report, err = svc.ReclaimOrphans(ctx, grace)
		return err
	})
	switch {
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		logger.Debug("another sweeper holds the lock, skipping run")
	case err != nil:
		logger.Error("sweep run error", slog.Any("error", err))
	default:
		logger.Info("sweep run complete",
			slog.Int("scanned", report.Scanned),
			slog.Int("relinked", report.Relinked),
			slog.Int("released", report.Released),
			slog.Int("failed", report.Failed),
			slog.Duration("elapsed", time.Since(start)),
		)
	}
}
