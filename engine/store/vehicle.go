package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// CrawlStats summarizes per-vehicle crawl coverage.
type CrawlStats struct {
	TotalVehicles   int64      `json:"total_vehicles"`
	NeverCrawled    int64      `json:"never_crawled"`
	CrawledLast24h  int64      `json:"crawled_last_24h"`
	OldestCrawledAt *time.Time `json:"oldest_crawled_at,omitempty"`
	NewestCrawledAt *time.Time `json:"newest_crawled_at,omitempty"`
}

// VehicleStore reads tracked vehicles and their per-channel crawl metadata.
type VehicleStore interface {
	Get(ctx context.Context, id int64) (*VehicleChannel, error)
	GetByChannelAndIdentifier(ctx context.Context, channelID int64, identifier string) (*VehicleChannel, error)
	ListNeverCrawled(ctx context.Context, limit int) ([]VehicleChannel, error)
	ListOldestCrawled(ctx context.Context, limit int) ([]VehicleChannel, error)
	TouchCrawled(ctx context.Context, id int64, at time.Time) error
	Stats(ctx context.Context) (CrawlStats, error)
}

type vehicleStore struct {
	db *gorm.DB
}

var _ VehicleStore = (*vehicleStore)(nil)

// NewVehicleStore creates a VehicleStore backed by db.
func NewVehicleStore(db *gorm.DB) VehicleStore {
	return &vehicleStore{db: db}
}

func (s *vehicleStore) Get(ctx context.Context, id int64) (*VehicleChannel, error) {
	var vc VehicleChannel
	result := s.db.WithContext(ctx).First(&vc, "vehicle_channel_id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying vehicle channel: %w", result.Error)
	}
	return &vc, nil
}

func (s *vehicleStore) GetByChannelAndIdentifier(ctx context.Context, channelID int64, identifier string) (*VehicleChannel, error) {
	var vc VehicleChannel
	result := s.db.WithContext(ctx).
		First(&vc, "channel_id = ? AND identifier_on_channel = ?", channelID, identifier)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying vehicle channel: %w", result.Error)
	}
	return &vc, nil
}

func (s *vehicleStore) ListNeverCrawled(ctx context.Context, limit int) ([]VehicleChannel, error) {
	var out []VehicleChannel
	err := s.db.WithContext(ctx).
		Where("last_comment_crawled_at IS NULL").
		Order("vehicle_channel_id").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("listing never-crawled vehicles: %w", err)
	}
	return out, nil
}

func (s *vehicleStore) ListOldestCrawled(ctx context.Context, limit int) ([]VehicleChannel, error) {
	var out []VehicleChannel
	err := s.db.WithContext(ctx).
		Where("last_comment_crawled_at IS NOT NULL").
		Order("last_comment_crawled_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("listing oldest-crawled vehicles: %w", err)
	}
	return out, nil
}

// TouchCrawled records a successful crawl completion. It is the only writer
// of last_comment_crawled_at.
func (s *vehicleStore) TouchCrawled(ctx context.Context, id int64, at time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&VehicleChannel{}).
		Where("vehicle_channel_id = ?", id).
		Update("last_comment_crawled_at", at)
	if result.Error != nil {
		return fmt.Errorf("updating last crawled: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *vehicleStore) Stats(ctx context.Context) (CrawlStats, error) {
	var stats CrawlStats
	db := s.db.WithContext(ctx).Model(&VehicleChannel{})

	if err := db.Count(&stats.TotalVehicles).Error; err != nil {
		return stats, fmt.Errorf("counting vehicles: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&VehicleChannel{}).
		Where("last_comment_crawled_at IS NULL").
		Count(&stats.NeverCrawled).Error; err != nil {
		return stats, fmt.Errorf("counting never-crawled: %w", err)
	}
	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	if err := s.db.WithContext(ctx).Model(&VehicleChannel{}).
		Where("last_comment_crawled_at >= ?", cutoff).
		Count(&stats.CrawledLast24h).Error; err != nil {
		return stats, fmt.Errorf("counting recent crawls: %w", err)
	}

	var bounds struct {
		Oldest *time.Time
		Newest *time.Time
	}
	err := s.db.WithContext(ctx).Model(&VehicleChannel{}).
		Select("MIN(last_comment_crawled_at) AS oldest, MAX(last_comment_crawled_at) AS newest").
		Where("last_comment_crawled_at IS NOT NULL").
		Scan(&bounds).Error
	if err != nil {
		return stats, fmt.Errorf("reading crawl bounds: %w", err)
	}
	stats.OldestCrawledAt = bounds.Oldest
	stats.NewestCrawledAt = bounds.Newest
	return stats, nil
}
