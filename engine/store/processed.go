package store

import (
	"context"
	"fmt"

	"github.com/vrtlab/revmine/engine/domain"
	"gorm.io/gorm"
)

// ProcessedStore appends accepted chunk-to-feature matches. Rows are never
// updated or deleted by the pipeline.
type ProcessedStore interface {
	SaveBatch(ctx context.Context, rows []ProcessedComment) (int, error)
	ListByComment(ctx context.Context, rawCommentID int64) ([]ProcessedComment, error)
	CountAll(ctx context.Context) (int64, error)
}

type processedStore struct {
	db *gorm.DB
}

var _ ProcessedStore = (*processedStore)(nil)

// NewProcessedStore creates a ProcessedStore backed by db.
func NewProcessedStore(db *gorm.DB) ProcessedStore {
	return &processedStore{db: db}
}

func (s *processedStore) SaveBatch(ctx context.Context, rows []ProcessedComment) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
	if err != nil {
		return 0, &domain.PersistError{Op: "save processed comments", Err: err}
	}
	return len(rows), nil
}

func (s *processedStore) ListByComment(ctx context.Context, rawCommentID int64) ([]ProcessedComment, error) {
	var out []ProcessedComment
	err := s.db.WithContext(ctx).
		Where("raw_comment_id = ?", rawCommentID).
		Order("processed_comment_id").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("listing processed comments: %w", err)
	}
	return out, nil
}

func (s *processedStore) CountAll(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&ProcessedComment{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting processed comments: %w", err)
	}
	return n, nil
}
