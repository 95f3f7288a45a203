// Package main implements the revmine task worker: it consumes crawl,
// classification, and health tasks from NATS and executes them against the
// store, the review sites, and the vector index.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"

	"github.com/vrtlab/revmine/engine/classify"
	"github.com/vrtlab/revmine/engine/config"
	"github.com/vrtlab/revmine/engine/crawl"
	"github.com/vrtlab/revmine/engine/ledger"
	"github.com/vrtlab/revmine/engine/schedule"
	"github.com/vrtlab/revmine/engine/source"
	"github.com/vrtlab/revmine/engine/store"
	"github.com/vrtlab/revmine/engine/tasks"
	"github.com/vrtlab/revmine/pkg/embed"
	"github.com/vrtlab/revmine/pkg/metrics"
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
		logger.Error("worker exited with error", "error", err)
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
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	st := store.New(db)
	defer st.Close()

	nc, err := nats.Connect(cfg.NATS.URL, nats.Name("revmine-worker"))
	if err != nil {
		return fmt.Errorf("connecting to nats: %w", err)
	}
	defer nc.Close()

	index, err := classify.NewFeatureIndex(cfg.Qdrant.URL, cfg.Qdrant.Collection)
	if err != nil {
		return err
	}
	defer index.Close()

	led := ledger.New(st.Job(), logger)

	client := source.NewClient(source.ClientOpts{
		JitterMin: cfg.Pipeline.JitterMin,
		JitterMax: cfg.Pipeline.JitterMax,
	}, logger)
	crawler := crawl.NewService(st, schedule.New(st.Vehicle()), led, client, cfg.Pipeline, logger)

	embedder := embed.New(embed.Opts{BaseURL: cfg.Embed.URL, Model: cfg.Embed.Model})
	classifier := classify.NewClassifier(embedder, index, cfg.Pipeline.SimilarityThreshold, cfg.Pipeline.SearchTopK)
	orch := classify.NewOrchestrator(st, led, classifier, cfg.Pipeline.BatchSize, logger)

	reg := metrics.New()
	if cfg.HTTP.MetricsPort > 0 {
		reg.ServeAsync(cfg.HTTP.MetricsPort)
	}

	worker := tasks.NewWorker(nc, st, led, crawler, orch, reg, logger)
	if err := worker.Start(); err != nil {
		return err
	}
	defer worker.Stop()

	logger.Info("worker running")
	<-ctx.Done()
	logger.Info("shutdown signal received")
	return nil
}
