package classify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/vrtlab/revmine/engine/chunk"
	"github.com/vrtlab/revmine/engine/domain"
	"github.com/vrtlab/revmine/engine/ledger"
	"github.com/vrtlab/revmine/engine/store"
)

// chunkClassifier lets tests drive the orchestrator without a live embedder
// or index.
type chunkClassifier interface {
	ClassifyChunk(ctx context.Context, ch domain.Chunk) (*domain.ClassificationResult, error)
}

// Orchestrator drains pending comments through chunking and classification.
type Orchestrator struct {
	store      store.Store
	ledger     *ledger.Ledger
	classifier chunkClassifier
	batchSize  int
	log        *slog.Logger
}

// NewOrchestrator wires a processing orchestrator.
func NewOrchestrator(st store.Store, led *ledger.Ledger, classifier chunkClassifier, batchSize int, log *slog.Logger) *Orchestrator {
	if batchSize <= 0 {
		batchSize = 20
	}
	return &Orchestrator{store: st, ledger: led, classifier: classifier, batchSize: batchSize, log: log}
}

// BatchSummary reports one processing pass.
type BatchSummary struct {
	JobID         int64         `json:"job_id"`
	TotalComments int           `json:"total_comments"`
	Processed     int           `json:"processed"`
	Failed        int           `json:"failed"`
	Skipped       int           `json:"skipped"`
	TotalResults  int           `json:"total_results"`
	Duration      time.Duration `json:"duration"`
}

// ProcessBatch claims up to batchSize pending comments and classifies each
// one. A comment ends in exactly one terminal state: completed when at least
// one chunk matched, skipped when nothing matched or there was nothing to
// chunk, failed when classification errored. One bad comment never stops the
// batch.
func (o *Orchestrator) ProcessBatch(ctx context.Context, correlationID string) (*BatchSummary, error) {
	start := time.Now()

	jobID, err := o.ledger.Begin(ctx, ledger.TypeSemantic,
		map[string]any{"batch_size": o.batchSize}, correlationID)
	if err != nil {
		return nil, err
	}

	pending, err := o.store.Comment().ListPending(ctx, o.batchSize)
	if err != nil {
		o.failJob(ctx, jobID, err)
		return nil, err
	}

	summary := &BatchSummary{JobID: jobID, TotalComments: len(pending)}
	for _, comment := range pending {
		claimed, err := o.store.Comment().ClaimProcessing(ctx, comment.ID)
		if err != nil {
			o.failJob(ctx, jobID, err)
			return nil, err
		}
		if !claimed {
			// Another worker owns this comment now.
			summary.TotalComments--
			continue
		}
		o.processOne(ctx, jobID, &comment, summary)
	}
	summary.Duration = time.Since(start)

	o.completeJob(ctx, jobID, summary)
	o.log.Info("classify: batch done",
		"job_id", jobID,
		"total", summary.TotalComments,
		"processed", summary.Processed,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"results", summary.TotalResults)
	return summary, nil
}

func (o *Orchestrator) processOne(ctx context.Context, jobID int64, comment *store.RawComment, summary *BatchSummary) {
	chunks := chunk.Split(comment.Content)
	if len(chunks) == 0 {
		o.finishComment(ctx, comment.ID, domain.StateSkipped)
		summary.Skipped++
		return
	}

	var rows []store.ProcessedComment
	for _, ch := range chunks {
		result, err := o.classifier.ClassifyChunk(ctx, ch)
		if err != nil {
			o.log.Error("classify: comment failed",
				"raw_comment_id", comment.ID, "section", ch.Section, "error", err)
			o.finishComment(ctx, comment.ID, domain.StateFailed)
			summary.Failed++
			return
		}
		if result == nil {
			continue
		}
		rows = append(rows, o.toRow(jobID, comment.ID, result))
	}

	if len(rows) == 0 {
		o.finishComment(ctx, comment.ID, domain.StateSkipped)
		summary.Skipped++
		return
	}

	if _, err := o.store.Processed().SaveBatch(ctx, rows); err != nil {
		o.log.Error("classify: persisting results", "raw_comment_id", comment.ID, "error", err)
		o.finishComment(ctx, comment.ID, domain.StateFailed)
		summary.Failed++
		return
	}
	o.finishComment(ctx, comment.ID, domain.StateCompleted)
	summary.Processed++
	summary.TotalResults += len(rows)
}

func (o *Orchestrator) toRow(jobID, commentID int64, result *domain.ClassificationResult) store.ProcessedComment {
	vector, _ := json.Marshal(result.ChunkVector)
	details, _ := json.Marshal(result.Details)
	return store.ProcessedComment{
		RawCommentID:  commentID,
		FeatureID:     result.FeatureID,
		Score:         result.Score,
		JobID:         &jobID,
		ChunkText:     result.ChunkText,
		ChunkVector:   string(vector),
		SearchDetails: string(details),
	}
}

func (o *Orchestrator) finishComment(ctx context.Context, id int64, state domain.ProcessingState) {
	if err := o.store.Comment().UpdateState(ctx, id, state); err != nil {
		o.log.Error("classify: updating comment state",
			"raw_comment_id", id, "state", state, "error", err)
	}
}

func (o *Orchestrator) completeJob(ctx context.Context, jobID int64, summary any) {
	blob, _ := json.Marshal(summary)
	if err := o.ledger.Complete(ctx, jobID, string(blob)); err != nil {
		o.log.Error("classify: closing ledger job", "job_id", jobID, "error", err)
	}
}

func (o *Orchestrator) failJob(ctx context.Context, jobID int64, cause error) {
	if err := o.ledger.Fail(ctx, jobID, cause.Error()); err != nil {
		o.log.Error("classify: failing ledger job", "job_id", jobID, "error", err)
	}
}
