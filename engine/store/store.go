package store

import (
	"context"

	"github.com/vrtlab/revmine/engine/domain"
	"gorm.io/gorm"
)

// Store aggregates the repositories over one database handle.
type Store interface {
	Channel() ChannelStore
	Vehicle() VehicleStore
	Comment() CommentStore
	Feature() FeatureStore
	Processed() ProcessedStore
	Job() JobStore
	Task() TaskStore
	Ping(ctx context.Context) error
	Statistics(ctx context.Context) (ProcessingStatistics, error)
	Close() error
}

// ProcessingStatistics is the counts-per-state snapshot exposed to callers.
type ProcessingStatistics struct {
	CommentsByState map[domain.ProcessingState]int64 `json:"comments_by_state"`
	ProcessedTotal  int64                            `json:"processed_results_total"`
}

type dataStore struct {
	db        *gorm.DB
	channel   ChannelStore
	vehicle   VehicleStore
	comment   CommentStore
	feature   FeatureStore
	processed ProcessedStore
	job       JobStore
	task      TaskStore
}

// New creates a Store over db.
func New(db *gorm.DB) Store {
	return &dataStore{
		db:        db,
		channel:   NewChannelStore(db),
		vehicle:   NewVehicleStore(db),
		comment:   NewCommentStore(db),
		feature:   NewFeatureStore(db),
		processed: NewProcessedStore(db),
		job:       NewJobStore(db),
		task:      NewTaskStore(db),
	}
}

func (s *dataStore) Channel() ChannelStore     { return s.channel }
func (s *dataStore) Vehicle() VehicleStore     { return s.vehicle }
func (s *dataStore) Comment() CommentStore     { return s.comment }
func (s *dataStore) Feature() FeatureStore     { return s.feature }
func (s *dataStore) Processed() ProcessedStore { return s.processed }
func (s *dataStore) Job() JobStore             { return s.job }
func (s *dataStore) Task() TaskStore           { return s.task }

func (s *dataStore) Ping(ctx context.Context) error {
	return Ping(ctx, s.db)
}

func (s *dataStore) Statistics(ctx context.Context) (ProcessingStatistics, error) {
	byState, err := s.comment.CountByState(ctx)
	if err != nil {
		return ProcessingStatistics{}, err
	}
	total, err := s.processed.CountAll(ctx)
	if err != nil {
		return ProcessingStatistics{}, err
	}
	return ProcessingStatistics{CommentsByState: byState, ProcessedTotal: total}, nil
}

func (s *dataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
