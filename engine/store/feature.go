package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// FeatureStore reads the product feature taxonomy.
type FeatureStore interface {
	Get(ctx context.Context, id int64) (*ProductFeature, error)
	GetByCode(ctx context.Context, code string) (*ProductFeature, error)
	List(ctx context.Context) ([]ProductFeature, error)
	// SaveEmbedding stores the serialized vector for one feature. Used only
	// by the index build tool, never by the pipeline.
	SaveEmbedding(ctx context.Context, id int64, embedding string) error
}

type featureStore struct {
	db *gorm.DB
}

var _ FeatureStore = (*featureStore)(nil)

// NewFeatureStore creates a FeatureStore backed by db.
func NewFeatureStore(db *gorm.DB) FeatureStore {
	return &featureStore{db: db}
}

func (s *featureStore) Get(ctx context.Context, id int64) (*ProductFeature, error) {
	var f ProductFeature
	result := s.db.WithContext(ctx).First(&f, "product_feature_id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying feature: %w", result.Error)
	}
	return &f, nil
}

func (s *featureStore) GetByCode(ctx context.Context, code string) (*ProductFeature, error) {
	var f ProductFeature
	result := s.db.WithContext(ctx).First(&f, "feature_code = ?", code)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying feature by code: %w", result.Error)
	}
	return &f, nil
}

func (s *featureStore) List(ctx context.Context) ([]ProductFeature, error) {
	var features []ProductFeature
	if err := s.db.WithContext(ctx).Order("product_feature_id").Find(&features).Error; err != nil {
		return nil, fmt.Errorf("listing features: %w", err)
	}
	return features, nil
}

func (s *featureStore) SaveEmbedding(ctx context.Context, id int64, embedding string) error {
	result := s.db.WithContext(ctx).
		Model(&ProductFeature{}).
		Where("product_feature_id = ?", id).
		Update("feature_embedding", embedding)
	if result.Error != nil {
		return fmt.Errorf("saving feature embedding: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}
