package crawl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vrtlab/revmine/engine/config"
	"github.com/vrtlab/revmine/engine/domain"
	"github.com/vrtlab/revmine/engine/ledger"
	"github.com/vrtlab/revmine/engine/schedule"
	"github.com/vrtlab/revmine/engine/source"
	"github.com/vrtlab/revmine/engine/store"
)

// interVehicleDelay is how long a batch crawl pauses between vehicles so one
// run never hammers a site back-to-back.
const interVehicleDelay = 2 * time.Second

// sampleSize caps how many identifiers a crawl result echoes back.
const sampleSize = 10

// Service runs comment crawls: single-vehicle on demand and scheduled
// batches over the freshness queue.
type Service struct {
	store     store.Store
	scheduler *schedule.Scheduler
	ledger    *ledger.Ledger
	client    *source.Client
	cfg       config.PipelineConfig
	log       *slog.Logger
	sleep     func(context.Context, time.Duration) error
}

// NewService wires a crawl service.
func NewService(st store.Store, sched *schedule.Scheduler, led *ledger.Ledger, client *source.Client, cfg config.PipelineConfig, log *slog.Logger) *Service {
	return &Service{
		store:     st,
		scheduler: sched,
		ledger:    led,
		client:    client,
		cfg:       cfg,
		log:       log,
		sleep:     sleepCtx,
	}
}

// Result reports one vehicle's crawl.
type Result struct {
	VehicleChannelID int64         `json:"vehicle_channel_id"`
	VehicleName      string        `json:"vehicle_name"`
	PagesFetched     int           `json:"pages_fetched"`
	Found            int           `json:"found"`
	Saved            int           `json:"saved"`
	Duration         time.Duration `json:"duration"`
	SampleIDs        []string      `json:"sample_ids,omitempty"`
}

// BatchResult reports one scheduled batch crawl.
type BatchResult struct {
	JobID      int64         `json:"job_id"`
	Targets    int           `json:"targets"`
	Succeeded  int           `json:"succeeded"`
	Failed     int           `json:"failed"`
	TotalSaved int           `json:"total_saved"`
	Duration   time.Duration `json:"duration"`
}

// CrawlChannel fetches and stores new comments for one vehicle. The batch is
// saved atomically and last_comment_crawled_at advances only on success.
// maxPages overrides the configured per-vehicle page cap when positive.
func (s *Service) CrawlChannel(ctx context.Context, vehicleChannelID int64, maxPages int) (*Result, error) {
	start := time.Now()

	vehicle, err := s.store.Vehicle().Get(ctx, vehicleChannelID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, fmt.Errorf("vehicle channel %d: %w", vehicleChannelID, domain.ErrVehicleNotFound)
		}
		return nil, err
	}
	channel, err := s.store.Channel().Get(ctx, vehicle.ChannelID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, fmt.Errorf("channel %d: %w", vehicle.ChannelID, domain.ErrChannelNotFound)
		}
		return nil, err
	}
	endpoints, err := source.ParseEndpointConfig(channel.ID, channel.EndpointConfig)
	if err != nil {
		return nil, err
	}

	pages := s.cfg.MaxPagesPerVehicle
	if maxPages > 0 {
		pages = maxPages
	}
	fetcher := NewFetcher(s.client, s.store.Comment(), pages, s.log)
	fetched, err := fetcher.FetchNewComments(ctx, endpoints, vehicle.ID, vehicle.Identifier)
	if err != nil {
		return nil, err
	}

	saved, err := s.store.Comment().SaveBatch(ctx, vehicle.ID, fetched.Drafts)
	if err != nil {
		return nil, err
	}
	if err := s.store.Vehicle().TouchCrawled(ctx, vehicle.ID, time.Now().UTC()); err != nil {
		return nil, err
	}

	res := &Result{
		VehicleChannelID: vehicle.ID,
		VehicleName:      vehicle.Name,
		PagesFetched:     fetched.PagesFetched,
		Found:            fetched.Found,
		Saved:            saved,
		Duration:         time.Since(start),
	}
	for i, d := range fetched.Drafts {
		if i == sampleSize {
			break
		}
		res.SampleIDs = append(res.SampleIDs, d.Identifier)
	}

	s.log.Info("crawl: vehicle done",
		"vehicle_channel_id", vehicle.ID,
		"pages", res.PagesFetched,
		"found", res.Found,
		"saved", res.Saved,
		"duration", res.Duration)
	return res, nil
}

// ManualCrawl is CrawlChannel wrapped in a ledger job, for operator-triggered
// runs that need an auditable record.
func (s *Service) ManualCrawl(ctx context.Context, vehicleChannelID int64, correlationID string, maxPages int) (*Result, int64, error) {
	jobID, err := s.ledger.Begin(ctx, ledger.TypeManualCrawl,
		map[string]any{"vehicle_channel_id": vehicleChannelID, "max_pages": maxPages}, correlationID)
	if err != nil {
		return nil, 0, err
	}

	res, err := s.CrawlChannel(ctx, vehicleChannelID, maxPages)
	if err != nil {
		s.failJob(ctx, jobID, err)
		return nil, jobID, err
	}
	s.completeJob(ctx, jobID, res)
	return res, jobID, nil
}

// CrawlBatch runs one scheduled crawl pass: pick targets by freshness, crawl
// each in turn, and keep going when individual vehicles fail.
func (s *Service) CrawlBatch(ctx context.Context, correlationID string) (*BatchResult, error) {
	start := time.Now()

	jobID, err := s.ledger.Begin(ctx, ledger.TypeScheduledCrawl,
		map[string]any{"max_vehicles": s.cfg.MaxVehiclesPerCrawl}, correlationID)
	if err != nil {
		return nil, err
	}

	targets, err := s.scheduler.SelectCrawlTargets(ctx, s.cfg.MaxVehiclesPerCrawl)
	if err != nil {
		s.failJob(ctx, jobID, err)
		return nil, err
	}

	batch := &BatchResult{JobID: jobID, Targets: len(targets)}
	for i, target := range targets {
		if i > 0 {
			if err := s.sleep(ctx, interVehicleDelay); err != nil {
				s.failJob(ctx, jobID, err)
				return nil, err
			}
		}

		res, err := s.CrawlChannel(ctx, target.ID, 0)
		if err != nil {
			batch.Failed++
			s.log.Error("crawl: vehicle failed, continuing batch",
				"vehicle_channel_id", target.ID, "error", err)
			continue
		}
		batch.Succeeded++
		batch.TotalSaved += res.Saved
	}
	batch.Duration = time.Since(start)

	s.completeJob(ctx, jobID, batch)
	s.log.Info("crawl: batch done",
		"job_id", jobID,
		"targets", batch.Targets,
		"succeeded", batch.Succeeded,
		"failed", batch.Failed,
		"saved", batch.TotalSaved,
		"duration", batch.Duration)
	return batch, nil
}

func (s *Service) completeJob(ctx context.Context, jobID int64, summary any) {
	blob, _ := json.Marshal(summary)
	if err := s.ledger.Complete(ctx, jobID, string(blob)); err != nil {
		s.log.Error("crawl: closing ledger job", "job_id", jobID, "error", err)
	}
}

func (s *Service) failJob(ctx context.Context, jobID int64, cause error) {
	if err := s.ledger.Fail(ctx, jobID, cause.Error()); err != nil {
		s.log.Error("crawl: failing ledger job", "job_id", jobID, "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
