package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ChannelStore reads the catalog of external content sources.
type ChannelStore interface {
	Get(ctx context.Context, id int64) (*Channel, error)
	List(ctx context.Context) ([]Channel, error)
}

type channelStore struct {
	db *gorm.DB
}

var _ ChannelStore = (*channelStore)(nil)

// NewChannelStore creates a ChannelStore backed by db.
func NewChannelStore(db *gorm.DB) ChannelStore {
	return &channelStore{db: db}
}

func (s *channelStore) Get(ctx context.Context, id int64) (*Channel, error) {
	var ch Channel
	result := s.db.WithContext(ctx).First(&ch, "channel_id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying channel: %w", result.Error)
	}
	return &ch, nil
}

func (s *channelStore) List(ctx context.Context) ([]Channel, error) {
	var channels []Channel
	if err := s.db.WithContext(ctx).Order("channel_id").Find(&channels).Error; err != nil {
		return nil, fmt.Errorf("listing channels: %w", err)
	}
	return channels, nil
}
