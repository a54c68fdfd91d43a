package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/salon-slot-booking/internal/api"
	"github.com/hackgods/salon-slot-booking/internal/booking"
	"github.com/hackgods/salon-slot-booking/internal/config"
	"github.com/hackgods/salon-slot-booking/internal/db"
	"github.com/hackgods/salon-slot-booking/internal/logging"
	"github.com/hackgods/salon-slot-booking/internal/memstore"
	"github.com/hackgods/salon-slot-booking/internal/metrics"
	redisclient "github.com/hackgods/salon-slot-booking/internal/redis"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load error", slog.Any("error", err))
		os.Exit(1)
	}

	logger := logging.New(cfg, "api-server")
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("api-server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	logger.Info("api-server starting up",
		slog.String("http_port", cfg.HTTPPort),
		slog.String("storage", cfg.Storage),
		slog.String("timezone", cfg.Location.String()),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	opts := []booking.Option{booking.WithLogger(logger), booking.WithMetrics(m)}

	var (
		err    error
		pgPool *pgxpool.Pool
		rdb    *redis.Client
		svc    *booking.Service
	)

	switch cfg.Storage {
	case config.StoragePostgres:
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err = db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		if err == nil {
			err = db.Migrate(pgCtx, pgPool)
		}
		cancelPg()
		if err != nil {
			if pgPool != nil {
				pgPool.Close()
			}
			return err
		}
		defer pgPool.Close()
		logger.Info("connected to Postgres")
	default:
		logger.Warn("using in-memory store; data is lost on restart")
	}

	// Redis only carries confirmations here, so the API keeps serving without it.
	redisCtx, cancelRedis := context.WithTimeout(rootCtx, 5*time.Second)
	rdb, err = redisclient.NewRedisClient(redisCtx, cfg)
	cancelRedis()
	if err != nil {
		logger.Warn("redis unavailable, booking confirmations disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("error closing redis", slog.Any("error", err))
			}
		}()
		opts = append(opts, booking.WithNotifier(redisclient.NewQueueNotifier(rdb, cfg.NotifyQueue)))
		logger.Info("connected to Redis", slog.String("queue", cfg.NotifyQueue))
	}

	if pgPool != nil {
		repo := booking.NewPgRepository(pgPool)
		svc = booking.NewService(repo, repo, repo, cfg, opts...)
	} else {
		store := memstore.New()
		seedDemo(store, logger)
		svc = booking.NewService(store, store, store, cfg, opts...)
	}

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: api.NewRouter(api.RouterConfig{
			Service: svc,
			PgPool:  pgPool,
			Redis:   rdb,
			Metrics: m,
			Logger:  logger,
			Env:     cfg.Env,
			Version: version,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-rootCtx.Done():
	}

	logger.Info("shutting down api-server", slog.Duration("timeout", cfg.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", slog.Any("error", err))
	}

	done := make(chan struct{})
	go func() {
		svc.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("confirmations still in flight at shutdown")
	}

	logger.Info("api-server stopped")
	return nil
}
