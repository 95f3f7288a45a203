// Package main implements the revmine API server: crawl and processing
// triggers, job and task status, and pipeline statistics.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/vrtlab/revmine/engine/config"
	"github.com/vrtlab/revmine/engine/crawl"
	"github.com/vrtlab/revmine/engine/ledger"
	"github.com/vrtlab/revmine/engine/schedule"
	"github.com/vrtlab/revmine/engine/source"
	"github.com/vrtlab/revmine/engine/store"
	"github.com/vrtlab/revmine/engine/tasks"
	"github.com/vrtlab/revmine/pkg/metrics"
	"github.com/vrtlab/revmine/pkg/mid"
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
		logger.Error("server exited with error", "error", err)
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

	nc, err := nats.Connect(cfg.NATS.URL, nats.Name("revmine-api"))
	if err != nil {
		return fmt.Errorf("connecting to nats: %w", err)
	}
	defer nc.Close()

	led := ledger.New(st.Job(), logger)
	client := source.NewClient(source.ClientOpts{
		JitterMin: cfg.Pipeline.JitterMin,
		JitterMax: cfg.Pipeline.JitterMax,
	}, logger)
	crawler := crawl.NewService(st, schedule.New(st.Vehicle()), led, client, cfg.Pipeline, logger)

	api := &server{
		store:      st,
		ledger:     led,
		crawler:    crawler,
		dispatcher: tasks.NewDispatcher(nc, st.Task(), logger),
		reg:        metrics.New(),
		log:        logger,
	}

	handler := mid.Chain(api.routes(),
		mid.Recover(logger),
		mid.Logger(logger, "/metrics", "/api/health"),
		mid.CORS(cfg.HTTP.CORSOrigin),
		mid.OTel("revmine-api"),
	)

	srv := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "address", cfg.HTTP.Address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
