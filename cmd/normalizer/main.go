package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	badgerstore "github.com/couchcryptid/parking-norm-etl/internal/adapter/badger"
	"github.com/couchcryptid/parking-norm-etl/internal/adapter/cache"
	httpadapter "github.com/couchcryptid/parking-norm-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/parking-norm-etl/internal/adapter/kafka"
	"github.com/couchcryptid/parking-norm-etl/internal/adapter/sqlstore"
	"github.com/couchcryptid/parking-norm-etl/internal/config"
	"github.com/couchcryptid/parking-norm-etl/internal/domain"
	"github.com/couchcryptid/parking-norm-etl/internal/observability"
	"github.com/couchcryptid/parking-norm-etl/internal/pipeline"
	"github.com/couchcryptid/parking-norm-etl/internal/scheduler"
	"github.com/jonboulle/clockwork"
)

// normalizedStore is what the reconciler and the record lookup need.
type normalizedStore interface {
	pipeline.NormalizedStore
	pipeline.RecordGetter
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	domain.SetLocation(cfg.Location)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sqlStore, err := sqlstore.Open(ctx, cfg.DBDriver, cfg.DSN())
	if err != nil {
		logger.Error("failed to open sql store", "driver", cfg.DBDriver, "error", err)
		return 1
	}
	defer closeLogged(logger, "sql store", sqlStore.Close)

	var store normalizedStore = sqlStore
	if cfg.NormStore == config.NormStoreBadger {
		kv, err := badgerstore.New(badgerstore.Config{Path: cfg.BadgerPath}, logger)
		if err != nil {
			logger.Error("failed to open badger store", "path", cfg.BadgerPath, "error", err)
			return 1
		}
		defer closeLogged(logger, "badger store", kv.Close)
		store = kv
	}
	if cfg.NormCacheSize > 0 {
		cached, err := cache.New(store, cfg.NormCacheSize, metrics)
		if err != nil {
			logger.Error("failed to create existence cache", "error", err)
			return 1
		}
		defer cached.Close()
		store = cached
	}
	logger.Info("stores ready", "driver", cfg.DBDriver, "norm_store", cfg.NormStore, "cache_size", cfg.NormCacheSize)

	var publisher pipeline.Publisher
	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer closeLogged(logger, "kafka writer", writer.Close)
		publisher = writer
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}

	clock := clockwork.NewRealClock()
	rec := pipeline.New(sqlStore, store, pipeline.Settings{
		MinSamples:   cfg.MinSamples,
		RecentWindow: cfg.RecentWindow(),
		Publisher:    publisher,
		Clock:        clock,
	}, logger, metrics)

	sched := scheduler.New(rec, scheduler.Settings{
		RecentInterval:  cfg.RecentInterval,
		FullInterval:    cfg.FullInterval,
		BackfillOnStart: cfg.BackfillOnStart,
	}, clock, logger, metrics)

	switch cfg.RunMode {
	case config.RunModeOnceFull:
		return runOnce(ctx, sched, pipeline.ModeFull, logger)
	case config.RunModeOnceRecent:
		return runOnce(ctx, sched, pipeline.ModeRecent, logger)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, rec, sched, store, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("scheduler error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-schedDone:
	case <-shutdownCtx.Done():
		logger.Warn("scheduler did not stop before shutdown timeout")
	}

	logger.Info("shutdown complete")
	return 0
}

func runOnce(ctx context.Context, sched *scheduler.Scheduler, mode pipeline.Mode, logger *slog.Logger) int {
	stats, err := sched.Trigger(ctx, mode)
	if err != nil {
		logger.Error("run failed", "mode", mode, "error", err)
		return 1
	}
	logger.Info("run finished", "mode", mode, "inserted", stats.Inserted, "insufficient", stats.Insufficient)
	return 0
}

func closeLogged(logger *slog.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logger.Error("close error", "component", name, "error", err)
	}
}
