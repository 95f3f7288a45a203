package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/vrtlab/revmine/engine/classify"
	"github.com/vrtlab/revmine/engine/crawl"
	"github.com/vrtlab/revmine/engine/ledger"
	"github.com/vrtlab/revmine/engine/store"
	"github.com/vrtlab/revmine/pkg/metrics"
	"github.com/vrtlab/revmine/pkg/natsutil"
)

// Worker consumes task subjects and executes the pipeline operations. Tasks
// within one worker run sequentially; scale-out happens by adding workers to
// the queue group.
type Worker struct {
	nc      *nats.Conn
	store   store.Store
	ledger  *ledger.Ledger
	crawler *crawl.Service
	orch    *classify.Orchestrator
	reg     *metrics.Registry
	log     *slog.Logger
	subs    []*nats.Subscription
}

// NewWorker wires a task worker. reg may be nil when no metrics endpoint is
// exposed.
func NewWorker(nc *nats.Conn, st store.Store, led *ledger.Ledger, crawler *crawl.Service, orch *classify.Orchestrator, reg *metrics.Registry, log *slog.Logger) *Worker {
	if reg == nil {
		reg = metrics.New()
	}
	return &Worker{nc: nc, store: st, ledger: led, crawler: crawler, orch: orch, reg: reg, log: log}
}

// Start subscribes to every task subject. Call Stop to drain.
func (w *Worker) Start() error {
	handlers := []struct {
		subject string
		handler func(context.Context, *nats.Msg)
	}{
		{SubjectCrawlChannel, w.onCrawlChannel},
		{SubjectCrawlBatch, w.onCrawlBatch},
		{SubjectClassify, w.onClassify},
		{SubjectHealth, w.onHealth},
	}
	for _, h := range handlers {
		sub, err := natsutil.QueueSubscribeMsg(w.nc, h.subject, queueGroup, h.handler)
		if err != nil {
			w.Stop()
			return fmt.Errorf("subscribing %s: %w", h.subject, err)
		}
		w.subs = append(w.subs, sub)
	}
	w.log.Info("tasks: worker started", "subjects", len(w.subs))
	return nil
}

// Stop unsubscribes from all task subjects.
func (w *Worker) Stop() {
	for _, sub := range w.subs {
		_ = sub.Drain()
	}
	w.subs = nil
}

func (w *Worker) onCrawlChannel(ctx context.Context, msg *nats.Msg) {
	var task CrawlChannelTask
	if err := json.Unmarshal(msg.Data, &task); err != nil {
		w.log.Error("tasks: malformed crawl task", "error", err)
		return
	}
	w.run(ctx, msg, task.TaskID, func(ctx context.Context) (any, error) {
		res, _, err := w.crawler.ManualCrawl(ctx, task.VehicleChannelID, task.TaskID, task.MaxPages)
		return res, err
	})
}

func (w *Worker) onCrawlBatch(ctx context.Context, msg *nats.Msg) {
	var task CrawlBatchTask
	if err := json.Unmarshal(msg.Data, &task); err != nil {
		w.log.Error("tasks: malformed batch task", "error", err)
		return
	}
	w.run(ctx, msg, task.TaskID, func(ctx context.Context) (any, error) {
		return w.crawler.CrawlBatch(ctx, task.TaskID)
	})
}

func (w *Worker) onClassify(ctx context.Context, msg *nats.Msg) {
	var task ClassifyBatchTask
	if err := json.Unmarshal(msg.Data, &task); err != nil {
		w.log.Error("tasks: malformed classify task", "error", err)
		return
	}
	w.run(ctx, msg, task.TaskID, func(ctx context.Context) (any, error) {
		return w.orch.ProcessBatch(ctx, task.TaskID)
	})
}

func (w *Worker) onHealth(ctx context.Context, msg *nats.Msg) {
	var task HealthTask
	if err := json.Unmarshal(msg.Data, &task); err != nil {
		w.log.Error("tasks: malformed health task", "error", err)
		return
	}
	w.run(ctx, msg, task.TaskID, func(ctx context.Context) (any, error) {
		return w.probe(ctx, task.TaskID)
	})
}

// HealthReport is the health task's result payload.
type HealthReport struct {
	Database string        `json:"database"`
	NATS     string        `json:"nats"`
	RTT      time.Duration `json:"nats_rtt"`
	Healthy  bool          `json:"healthy"`
}

func (w *Worker) probe(ctx context.Context, correlationID string) (*HealthReport, error) {
	jobID, err := w.ledger.Begin(ctx, ledger.TypeHealthCheck, nil, correlationID)
	if err != nil {
		return nil, err
	}

	report := &HealthReport{Database: "ok", NATS: "ok", Healthy: true}
	if err := w.store.Ping(ctx); err != nil {
		report.Database = err.Error()
		report.Healthy = false
	}
	if rtt, err := w.nc.RTT(); err != nil {
		report.NATS = err.Error()
		report.Healthy = false
	} else {
		report.RTT = rtt
	}

	blob, _ := json.Marshal(report)
	if report.Healthy {
		err = w.ledger.Complete(ctx, jobID, string(blob))
	} else {
		err = w.ledger.Fail(ctx, jobID, string(blob))
	}
	if err != nil {
		w.log.Error("tasks: recording health job", "job_id", jobID, "error", err)
	}
	return report, nil
}

// run executes one task attempt with durable status tracking. Exhausted
// tasks land on the DLQ; anything earlier is republished with an incremented
// retry header.
func (w *Worker) run(ctx context.Context, msg *nats.Msg, taskID string, op func(context.Context) (any, error)) {
	attempt := parseAttempt(msg.Header) + 1

	if err := w.store.Task().MarkRunning(ctx, taskID, attempt); err != nil {
		w.log.Warn("tasks: marking running", "task_id", taskID, "error", err)
	}

	start := time.Now()
	result, err := op(ctx)
	w.reg.Histogram(metrics.WithLabels("revmine_task_duration_seconds", "subject", msg.Subject),
		"task execution time", metrics.DefaultBuckets).Since(start)
	w.reg.Counter(metrics.WithLabels("revmine_tasks_total", "subject", msg.Subject, "outcome", outcome(err)),
		"tasks handled by outcome").Inc()

	if err == nil {
		blob, _ := json.Marshal(result)
		if err := w.store.Task().MarkSucceeded(ctx, taskID, string(blob)); err != nil {
			w.log.Warn("tasks: marking succeeded", "task_id", taskID, "error", err)
		}
		w.log.Info("tasks: done", "task_id", taskID, "subject", msg.Subject, "attempt", attempt)
		return
	}

	w.log.Error("tasks: attempt failed",
		"task_id", taskID, "subject", msg.Subject, "attempt", attempt, "error", err)

	if attempt >= MaxAttempts {
		if markErr := w.store.Task().MarkFailed(ctx, taskID, err.Error()); markErr != nil {
			w.log.Warn("tasks: marking failed", "task_id", taskID, "error", markErr)
		}
		envelope := dlqEnvelope{
			Subject:  msg.Subject,
			TaskID:   taskID,
			Payload:  string(msg.Data),
			Error:    err.Error(),
			Attempts: attempt,
		}
		if pubErr := natsutil.Publish(ctx, w.nc, SubjectDLQ, envelope); pubErr != nil {
			w.log.Error("tasks: DLQ publish failed", "task_id", taskID, "error", pubErr)
		}
		return
	}

	retry := nats.NewMsg(msg.Subject)
	retry.Data = msg.Data
	retry.Header.Set(retryHeader, fmt.Sprintf("%d", attempt))
	if pubErr := natsutil.PublishMsg(ctx, w.nc, retry); pubErr != nil {
		w.log.Error("tasks: retry publish failed", "task_id", taskID, "error", pubErr)
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func parseAttempt(h nats.Header) int {
	if h == nil {
		return 0
	}
	var n int
	if v := h.Get(retryHeader); v != "" {
		fmt.Sscanf(v, "%d", &n)
	}
	return n
}
