package store

import (
	"time"

	"github.com/vrtlab/revmine/engine/domain"
)

// Channel is an external content source. EndpointConfig holds the JSON blob
// of named URL templates read by the crawler.
type Channel struct {
	ID             int64  `gorm:"column:channel_id;primaryKey;autoIncrement"`
	Name           string `gorm:"column:channel_name;size:255;not null;uniqueIndex"`
	EndpointConfig string `gorm:"column:endpoint_config;type:text"`
	Description    string `gorm:"column:description;type:text"`
	CreatedAt      time.Time
}

func (Channel) TableName() string { return "channels" }

// VehicleChannel is one vehicle as tracked on one channel. The
// (channel, identifier) pair is unique; LastCommentCrawledAt is nil until the
// first successful crawl.
type VehicleChannel struct {
	ID                   int64  `gorm:"column:vehicle_channel_id;primaryKey;autoIncrement"`
	ChannelID            int64  `gorm:"column:channel_id;not null;uniqueIndex:uq_channel_identifier"`
	Identifier           string `gorm:"column:identifier_on_channel;size:255;not null;uniqueIndex:uq_channel_identifier"`
	Name                 string `gorm:"column:name_on_channel;size:255;not null"`
	URL                  string `gorm:"column:url_on_channel;size:2048"`
	BrandName            string `gorm:"column:brand_name;size:255"`
	SeriesName           string `gorm:"column:series_name;size:255"`
	ModelYear            string `gorm:"column:model_year;size:50"`
	LastCommentCrawledAt *time.Time `gorm:"column:last_comment_crawled_at"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (VehicleChannel) TableName() string { return "vehicle_channels" }

// RawComment is one ingested review. The (vehicle channel, identifier) pair
// is the dedup key; State is the only field mutated after creation.
type RawComment struct {
	ID               int64                  `gorm:"column:raw_comment_id;primaryKey;autoIncrement"`
	VehicleChannelID int64                  `gorm:"column:vehicle_channel_id;not null;uniqueIndex:uq_vehicle_identifier"`
	Identifier       string                 `gorm:"column:identifier_on_channel;size:255;not null;uniqueIndex:uq_vehicle_identifier"`
	Content          string                 `gorm:"column:content;type:text"`
	SourceURL        string                 `gorm:"column:source_url;size:2048"`
	PostedAt         *time.Time             `gorm:"column:posted_at"`
	CrawledAt        time.Time              `gorm:"column:crawled_at;autoCreateTime"`
	State            domain.ProcessingState `gorm:"column:processing_state;size:50;not null;index"`
}

func (RawComment) TableName() string { return "raw_comments" }

// ProductFeature is a taxonomy node. Static reference data; the pipeline
// never mutates it. Embedding holds the precomputed vector as a JSON array.
type ProductFeature struct {
	ID          int64  `gorm:"column:product_feature_id;primaryKey;autoIncrement"`
	Code        string `gorm:"column:feature_code;size:255;not null;uniqueIndex"`
	Name        string `gorm:"column:feature_name;size:255;not null"`
	Description string `gorm:"column:feature_description;type:text"`
	Embedding   string `gorm:"column:feature_embedding;type:text"`
	ParentID    *int64 `gorm:"column:parent_id"`
	Level       int    `gorm:"column:hierarchy_level;not null;default:1"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (ProductFeature) TableName() string { return "product_features" }

// ProcessedComment is one accepted chunk-to-feature match. Append-only.
type ProcessedComment struct {
	ID            int64     `gorm:"column:processed_comment_id;primaryKey;autoIncrement"`
	RawCommentID  int64     `gorm:"column:raw_comment_id;not null;index"`
	FeatureID     int64     `gorm:"column:product_feature_id;not null"`
	Score         float64   `gorm:"column:similarity_score"`
	JobID         *int64    `gorm:"column:job_id"`
	ChunkText     string    `gorm:"column:chunk_text;type:text"`
	ChunkVector   string    `gorm:"column:chunk_vector;type:text"`
	SearchDetails string    `gorm:"column:search_details;type:text"`
	ProcessedAt   time.Time `gorm:"column:processed_at;autoCreateTime"`
}

func (ProcessedComment) TableName() string { return "processed_comments" }

// Job statuses for ProcessingJob rows.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// ProcessingJob is the ledger row for one invocation of a long-running
// operation. Never deleted; mutated only through the ledger transitions.
type ProcessingJob struct {
	ID            int64      `gorm:"column:job_id;primaryKey;autoIncrement"`
	JobType       string     `gorm:"column:job_type;size:100;not null;index"`
	Status        string     `gorm:"column:status;size:50;not null;default:pending"`
	Parameters    string     `gorm:"column:parameters;type:text"`
	CreatedAt     time.Time
	StartedAt     *time.Time `gorm:"column:started_at"`
	CompletedAt   *time.Time `gorm:"column:completed_at"`
	ResultSummary string     `gorm:"column:result_summary;type:text"`
}

func (ProcessingJob) TableName() string { return "processing_jobs" }

// Task statuses for TaskResult rows.
const (
	TaskPending   = "pending"
	TaskRunning   = "running"
	TaskSucceeded = "succeeded"
	TaskFailed    = "failed"
)

// TaskResult is the durable status record for one dispatched task, keyed by
// task id and independent of the job ledger.
type TaskResult struct {
	TaskID    string `gorm:"column:task_id;primaryKey;size:64"`
	TaskType  string `gorm:"column:task_type;size:100;not null"`
	Status    string `gorm:"column:status;size:50;not null"`
	Payload   string `gorm:"column:payload;type:text"`
	Result    string `gorm:"column:result;type:text"`
	Error     string `gorm:"column:error;type:text"`
	Attempts  int    `gorm:"column:attempts;not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (TaskResult) TableName() string { return "task_results" }
