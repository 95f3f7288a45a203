package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/vrtlab/revmine/engine/domain"
	"gorm.io/gorm"
)

// CommentStore persists raw comments and their processing state.
type CommentStore interface {
	// ExistingIdentifiers returns the dedup index for one vehicle channel.
	ExistingIdentifiers(ctx context.Context, vehicleChannelID int64) (map[string]struct{}, error)
	// SaveBatch inserts drafts with state "new" in a single transaction.
	// Any failure rolls back the whole batch.
	SaveBatch(ctx context.Context, vehicleChannelID int64, drafts []domain.CommentDraft) (int, error)
	// UpdateState sets the processing state of one comment. A missing row is
	// reported as ErrRecordNotFound; callers treat it as already gone.
	UpdateState(ctx context.Context, id int64, state domain.ProcessingState) error
	// ClaimProcessing transitions a comment from "new" to "processing" with a
	// conditional update. It returns false when another worker already
	// claimed the row.
	ClaimProcessing(ctx context.Context, id int64) (bool, error)
	ListPending(ctx context.Context, limit int) ([]RawComment, error)
	Get(ctx context.Context, id int64) (*RawComment, error)
	CountByState(ctx context.Context) (map[domain.ProcessingState]int64, error)
	CountByVehicle(ctx context.Context, vehicleChannelID int64) (int64, error)
}

type commentStore struct {
	db *gorm.DB
}

var _ CommentStore = (*commentStore)(nil)

// NewCommentStore creates a CommentStore backed by db.
func NewCommentStore(db *gorm.DB) CommentStore {
	return &commentStore{db: db}
}

func (s *commentStore) ExistingIdentifiers(ctx context.Context, vehicleChannelID int64) (map[string]struct{}, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&RawComment{}).
		Where("vehicle_channel_id = ?", vehicleChannelID).
		Pluck("identifier_on_channel", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("loading existing identifiers: %w", err)
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func (s *commentStore) SaveBatch(ctx context.Context, vehicleChannelID int64, drafts []domain.CommentDraft) (int, error) {
	if len(drafts) == 0 {
		return 0, nil
	}
	rows := make([]RawComment, len(drafts))
	for i, d := range drafts {
		rows[i] = RawComment{
			VehicleChannelID: vehicleChannelID,
			Identifier:       d.Identifier,
			Content:          d.Content,
			SourceURL:        d.SourceURL,
			PostedAt:         d.PostedAt,
			State:            domain.StateNew,
		}
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
	if err != nil {
		return 0, &domain.PersistError{Op: "save comment batch", Err: err}
	}
	return len(rows), nil
}

func (s *commentStore) UpdateState(ctx context.Context, id int64, state domain.ProcessingState) error {
	result := s.db.WithContext(ctx).
		Model(&RawComment{}).
		Where("raw_comment_id = ?", id).
		Update("processing_state", state)
	if result.Error != nil {
		return &domain.PersistError{Op: "update comment state", Err: result.Error}
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *commentStore) ClaimProcessing(ctx context.Context, id int64) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&RawComment{}).
		Where("raw_comment_id = ? AND processing_state = ?", id, domain.StateNew).
		Update("processing_state", domain.StateProcessing)
	if result.Error != nil {
		return false, &domain.PersistError{Op: "claim comment", Err: result.Error}
	}
	return result.RowsAffected == 1, nil
}

func (s *commentStore) ListPending(ctx context.Context, limit int) ([]RawComment, error) {
	var out []RawComment
	err := s.db.WithContext(ctx).
		Where("processing_state = ?", domain.StateNew).
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("listing pending comments: %w", err)
	}
	return out, nil
}

func (s *commentStore) Get(ctx context.Context, id int64) (*RawComment, error) {
	var c RawComment
	result := s.db.WithContext(ctx).First(&c, "raw_comment_id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying comment: %w", result.Error)
	}
	return &c, nil
}

func (s *commentStore) CountByState(ctx context.Context) (map[domain.ProcessingState]int64, error) {
	type row struct {
		State domain.ProcessingState
		N     int64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&RawComment{}).
		Select("processing_state AS state, COUNT(*) AS n").
		Group("processing_state").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("counting comments by state: %w", err)
	}
	counts := make(map[domain.ProcessingState]int64, len(domain.AllStates))
	for _, s := range domain.AllStates {
		counts[s] = 0
	}
	for _, r := range rows {
		counts[r.State] = r.N
	}
	return counts, nil
}

func (s *commentStore) CountByVehicle(ctx context.Context, vehicleChannelID int64) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&RawComment{}).
		Where("vehicle_channel_id = ?", vehicleChannelID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("counting comments: %w", err)
	}
	return n, nil
}
