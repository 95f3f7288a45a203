package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/vrtlab/revmine/engine/store"
	"github.com/vrtlab/revmine/pkg/natsutil"
)

// Dispatcher publishes tasks and records them as pending so their status can
// be read before any worker picks them up.
type Dispatcher struct {
	nc    *nats.Conn
	tasks store.TaskStore
	log   *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(nc *nats.Conn, tasks store.TaskStore, log *slog.Logger) *Dispatcher {
	return &Dispatcher{nc: nc, tasks: tasks, log: log}
}

// CrawlChannel enqueues a single-vehicle crawl and returns the task id.
// maxPages caps the listing walk when positive; zero keeps the worker's
// configured cap.
func (d *Dispatcher) CrawlChannel(ctx context.Context, vehicleChannelID int64, maxPages int) (string, error) {
	task := CrawlChannelTask{TaskID: uuid.NewString(), VehicleChannelID: vehicleChannelID, MaxPages: maxPages}
	return task.TaskID, d.dispatch(ctx, SubjectCrawlChannel, TypeCrawlChannel, task.TaskID, task)
}

// CrawlBatch enqueues a scheduled crawl pass.
func (d *Dispatcher) CrawlBatch(ctx context.Context) (string, error) {
	task := CrawlBatchTask{TaskID: uuid.NewString()}
	return task.TaskID, d.dispatch(ctx, SubjectCrawlBatch, TypeCrawlBatch, task.TaskID, task)
}

// Classify enqueues a semantic processing pass.
func (d *Dispatcher) Classify(ctx context.Context) (string, error) {
	task := ClassifyBatchTask{TaskID: uuid.NewString()}
	return task.TaskID, d.dispatch(ctx, SubjectClassify, TypeClassify, task.TaskID, task)
}

// Health enqueues a dependency probe.
func (d *Dispatcher) Health(ctx context.Context) (string, error) {
	task := HealthTask{TaskID: uuid.NewString()}
	return task.TaskID, d.dispatch(ctx, SubjectHealth, TypeHealth, task.TaskID, task)
}

func (d *Dispatcher) dispatch(ctx context.Context, subject, taskType, taskID string, payload any) error {
	blob, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := d.tasks.CreatePending(ctx, taskID, taskType, string(blob)); err != nil {
		return err
	}
	if err := natsutil.Publish(ctx, d.nc, subject, payload); err != nil {
		// The pending row stays; a requeue of the same task id would
		// collide, so surface the failure to the caller.
		return fmt.Errorf("publishing %s: %w", subject, err)
	}
	d.log.Info("tasks: dispatched", "task_id", taskID, "subject", subject)
	return nil
}
