// Package ledger tracks every long-running unit of work as a durable
// processing job row with idempotent resume semantics.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vrtlab/revmine/engine/store"
)

// Job types recorded in the ledger.
const (
	TypeScheduledCrawl = "scheduled_comment_crawl"
	TypeManualCrawl    = "manual_comment_crawl"
	TypeSemantic       = "comment_semantic_processing"
	TypeHealthCheck    = "health_check"
)

// Ledger mediates all writes to the processing_jobs table.
type Ledger struct {
	jobs store.JobStore
	log  *slog.Logger
	now  func() time.Time
}

// New creates a Ledger over the given job store.
func New(jobs store.JobStore, log *slog.Logger) *Ledger {
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{jobs: jobs, log: log, now: time.Now}
}

// Begin records the start of a job. When a row of the same type carrying the
// same correlation id already exists, that row is reused instead of creating
// a duplicate, so an interrupted retry resumes against its original ledger
// entry. The correlation id is always embedded into the parameter blob.
func (l *Ledger) Begin(ctx context.Context, jobType string, params map[string]any, correlationID string) (int64, error) {
	if correlationID != "" {
		existing, err := l.jobs.FindByCorrelation(ctx, jobType, correlationID)
		if err == nil {
			l.log.Info("ledger: resuming existing job",
				"job_id", existing.ID, "job_type", jobType, "correlation_id", correlationID)
			return existing.ID, nil
		}
		if !errors.Is(err, store.ErrRecordNotFound) {
			return 0, fmt.Errorf("ledger begin: %w", err)
		}
	}

	if params == nil {
		params = map[string]any{}
	}
	params["correlation_id"] = correlationID
	blob, err := json.Marshal(params)
	if err != nil {
		return 0, fmt.Errorf("ledger begin: encode params: %w", err)
	}

	// The row is born pending and moved to running as a separate mutation,
	// so a crash between the two leaves a visible pending entry instead of
	// a phantom running one.
	job := &store.ProcessingJob{
		JobType:    jobType,
		Status:     store.JobPending,
		Parameters: string(blob),
	}
	if err := l.jobs.Create(ctx, job); err != nil {
		return 0, fmt.Errorf("ledger begin: %w", err)
	}

	started := l.now().UTC()
	job.Status = store.JobRunning
	job.StartedAt = &started
	if err := l.jobs.Update(ctx, job); err != nil {
		return 0, fmt.Errorf("ledger begin: %w", err)
	}
	l.log.Info("ledger: job started", "job_id", job.ID, "job_type", jobType)
	return job.ID, nil
}

// Complete marks a job as finished with a result summary.
func (l *Ledger) Complete(ctx context.Context, jobID int64, summary string) error {
	return l.finish(ctx, jobID, store.JobCompleted, summary)
}

// Fail marks a job as failed with the failure text as summary.
func (l *Ledger) Fail(ctx context.Context, jobID int64, summary string) error {
	return l.finish(ctx, jobID, store.JobFailed, summary)
}

func (l *Ledger) finish(ctx context.Context, jobID int64, status, summary string) error {
	job, err := l.jobs.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("ledger %s: %w", status, err)
	}
	done := l.now().UTC()
	job.Status = status
	job.CompletedAt = &done
	job.ResultSummary = summary
	if err := l.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("ledger %s: %w", status, err)
	}
	l.log.Info("ledger: job finished", "job_id", jobID, "status", status)
	return nil
}

// Get returns the ledger row for one job.
func (l *Ledger) Get(ctx context.Context, jobID int64) (*store.ProcessingJob, error) {
	return l.jobs.Get(ctx, jobID)
}
