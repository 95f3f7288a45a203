package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// JobStore persists processing job rows for the ledger.
type JobStore interface {
	Create(ctx context.Context, job *ProcessingJob) error
	Get(ctx context.Context, id int64) (*ProcessingJob, error)
	Update(ctx context.Context, job *ProcessingJob) error
	// FindByCorrelation looks up a job of the given type whose parameters
	// embed the given correlation id. Best-effort match on the serialized
	// field, not a uniqueness constraint.
	FindByCorrelation(ctx context.Context, jobType, correlationID string) (*ProcessingJob, error)
	ListRecent(ctx context.Context, jobType string, limit int) ([]ProcessingJob, error)
}

type jobStore struct {
	db *gorm.DB
}

var _ JobStore = (*jobStore)(nil)

// NewJobStore creates a JobStore backed by db.
func NewJobStore(db *gorm.DB) JobStore {
	return &jobStore{db: db}
}

func (s *jobStore) Create(ctx context.Context, job *ProcessingJob) error {
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("creating job: %w", err)
	}
	return nil
}

func (s *jobStore) Get(ctx context.Context, id int64) (*ProcessingJob, error) {
	var job ProcessingJob
	result := s.db.WithContext(ctx).First(&job, "job_id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying job: %w", result.Error)
	}
	return &job, nil
}

func (s *jobStore) Update(ctx context.Context, job *ProcessingJob) error {
	result := s.db.WithContext(ctx).
		Model(&ProcessingJob{}).
		Where("job_id = ?", job.ID).
		Updates(map[string]any{
			"status":         job.Status,
			"started_at":     job.StartedAt,
			"completed_at":   job.CompletedAt,
			"result_summary": job.ResultSummary,
		})
	if result.Error != nil {
		return fmt.Errorf("updating job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *jobStore) FindByCorrelation(ctx context.Context, jobType, correlationID string) (*ProcessingJob, error) {
	var job ProcessingJob
	pattern := fmt.Sprintf(`%%"correlation_id":%q%%`, correlationID)
	result := s.db.WithContext(ctx).
		Where("job_type = ? AND parameters LIKE ?", jobType, pattern).
		Order("job_id").
		First(&job)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying job by correlation: %w", result.Error)
	}
	return &job, nil
}

func (s *jobStore) ListRecent(ctx context.Context, jobType string, limit int) ([]ProcessingJob, error) {
	var jobs []ProcessingJob
	q := s.db.WithContext(ctx).Order("job_id DESC").Limit(limit)
	if jobType != "" {
		q = q.Where("job_type = ?", jobType)
	}
	if err := q.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	return jobs, nil
}
