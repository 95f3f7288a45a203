// Package config loads environment-driven settings for the revmine binaries.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the settings shared by the api, worker, and beat binaries.
type Config struct {
	Database DBConfig
	HTTP     HTTPConfig
	NATS     NATSConfig
	Qdrant   QdrantConfig
	Embed    EmbedConfig
	Pipeline PipelineConfig
}

type DBConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"sqlite"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"revmine.db"`
	User     string `envconfig:"DB_USER" default:"revmine"`
	Password string `envconfig:"DB_PASS" default:""`
}

type HTTPConfig struct {
	Address     string `envconfig:"REVMINE_ADDRESS" default:":8080"`
	CORSOrigin  string `envconfig:"REVMINE_CORS_ORIGIN" default:"*"`
	MetricsPort int    `envconfig:"REVMINE_METRICS_PORT" default:"9090"`
}

type NATSConfig struct {
	URL string `envconfig:"REVMINE_NATS_URL" default:"nats://localhost:4222"`
}

type QdrantConfig struct {
	URL        string `envconfig:"REVMINE_QDRANT_URL" default:"localhost:6334"`
	Collection string `envconfig:"REVMINE_QDRANT_COLLECTION" default:"product_features"`
}

type EmbedConfig struct {
	URL   string `envconfig:"REVMINE_EMBED_URL" default:"http://localhost:11434"`
	Model string `envconfig:"REVMINE_EMBED_MODEL" default:"nomic-embed-text"`
}

// PipelineConfig carries the tunables of the crawl and classification loops.
type PipelineConfig struct {
	SimilarityThreshold float64       `envconfig:"REVMINE_SIMILARITY_THRESHOLD" default:"0.5"`
	SearchTopK          int           `envconfig:"REVMINE_SEARCH_TOP_K" default:"3"`
	BatchSize           int           `envconfig:"REVMINE_BATCH_SIZE" default:"20"`
	MaxPagesPerVehicle  int           `envconfig:"REVMINE_MAX_PAGES_PER_VEHICLE" default:"10"`
	MaxVehiclesPerCrawl int           `envconfig:"REVMINE_MAX_VEHICLES_PER_CRAWL" default:"20"`
	JitterMin           time.Duration `envconfig:"REVMINE_JITTER_MIN" default:"500ms"`
	JitterMax           time.Duration `envconfig:"REVMINE_JITTER_MAX" default:"1500ms"`
	CrawlInterval       time.Duration `envconfig:"REVMINE_CRAWL_INTERVAL" default:"24h"`
	ClassifyInterval    time.Duration `envconfig:"REVMINE_CLASSIFY_INTERVAL" default:"10m"`
	HealthInterval      time.Duration `envconfig:"REVMINE_HEALTH_INTERVAL" default:"1h"`
}

// New reads configuration from the environment.
func New() (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
