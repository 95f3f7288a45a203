package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// TaskStore is the durable result backend for dispatched tasks, keyed by
// task id. Status queries read this table even when the owning worker died.
type TaskStore interface {
	CreatePending(ctx context.Context, taskID, taskType, payload string) error
	MarkRunning(ctx context.Context, taskID string, attempt int) error
	MarkSucceeded(ctx context.Context, taskID, result string) error
	MarkFailed(ctx context.Context, taskID, errMsg string) error
	Get(ctx context.Context, taskID string) (*TaskResult, error)
}

type taskStore struct {
	db *gorm.DB
}

var _ TaskStore = (*taskStore)(nil)

// NewTaskStore creates a TaskStore backed by db.
func NewTaskStore(db *gorm.DB) TaskStore {
	return &taskStore{db: db}
}

func (s *taskStore) CreatePending(ctx context.Context, taskID, taskType, payload string) error {
	row := TaskResult{
		TaskID:   taskID,
		TaskType: taskType,
		Status:   TaskPending,
		Payload:  payload,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("creating task result: %w", err)
	}
	return nil
}

func (s *taskStore) MarkRunning(ctx context.Context, taskID string, attempt int) error {
	return s.update(ctx, taskID, map[string]any{
		"status":     TaskRunning,
		"attempts":   attempt,
		"updated_at": time.Now().UTC(),
	})
}

func (s *taskStore) MarkSucceeded(ctx context.Context, taskID, result string) error {
	return s.update(ctx, taskID, map[string]any{
		"status":     TaskSucceeded,
		"result":     result,
		"updated_at": time.Now().UTC(),
	})
}

func (s *taskStore) MarkFailed(ctx context.Context, taskID, errMsg string) error {
	return s.update(ctx, taskID, map[string]any{
		"status":     TaskFailed,
		"error":      errMsg,
		"updated_at": time.Now().UTC(),
	})
}

func (s *taskStore) update(ctx context.Context, taskID string, fields map[string]any) error {
	result := s.db.WithContext(ctx).
		Model(&TaskResult{}).
		Where("task_id = ?", taskID).
		Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("updating task result: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *taskStore) Get(ctx context.Context, taskID string) (*TaskResult, error) {
	var t TaskResult
	result := s.db.WithContext(ctx).First(&t, "task_id = ?", taskID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying task result: %w", result.Error)
	}
	return &t, nil
}
