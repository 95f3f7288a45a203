// Package main implements the revmine beat scheduler: it dispatches the
// scheduled crawl, classification, and health tasks on fixed intervals.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/vrtlab/revmine/engine/config"
	"github.com/vrtlab/revmine/engine/store"
	"github.com/vrtlab/revmine/engine/tasks"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.New()
	if err != nil {
		logger.Error("loading configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("beat exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.InitDB(store.DBConfig(cfg.Database), logger)
	if err != nil {
		return err
	}
	st := store.New(db)
	defer st.Close()

	nc, err := nats.Connect(cfg.NATS.URL, nats.Name("revmine-beat"))
	if err != nil {
		return fmt.Errorf("connecting to nats: %w", err)
	}
	defer nc.Close()

	dispatcher := tasks.NewDispatcher(nc, st.Task(), logger)

	crawlTick := time.NewTicker(cfg.Pipeline.CrawlInterval)
	defer crawlTick.Stop()
	classifyTick := time.NewTicker(cfg.Pipeline.ClassifyInterval)
	defer classifyTick.Stop()
	healthTick := time.NewTicker(cfg.Pipeline.HealthInterval)
	defer healthTick.Stop()

	logger.Info("beat running",
		"crawl_interval", cfg.Pipeline.CrawlInterval,
		"classify_interval", cfg.Pipeline.ClassifyInterval,
		"health_interval", cfg.Pipeline.HealthInterval)

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutdown signal received")
			return nil
		case <-crawlTick.C:
			dispatch(ctx, logger, "crawl batch", dispatcher.CrawlBatch)
		case <-classifyTick.C:
			dispatch(ctx, logger, "classify batch", dispatcher.Classify)
		case <-healthTick.C:
			dispatch(ctx, logger, "health check", dispatcher.Health)
		}
	}
}

// dispatch fires one task and logs the outcome. A failed dispatch waits for
// the next tick rather than stopping the beat.
func dispatch(ctx context.Context, logger *slog.Logger, name string, f func(context.Context) (string, error)) {
	taskID, err := f(ctx)
	if err != nil {
		logger.Error("beat: dispatch failed", "task", name, "error", err)
		return
	}
	logger.Info("beat: dispatched", "task", name, "task_id", taskID)
}
