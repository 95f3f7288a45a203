// Package tasks moves work between the api, beat, and worker binaries over
// NATS, with a durable per-task status record independent of the consumer.
package tasks

// NATS subjects and delivery settings.
const (
	SubjectCrawlChannel = "tasks.crawl.channel"
	SubjectCrawlBatch   = "tasks.crawl.batch"
	SubjectClassify     = "tasks.classify.batch"
	SubjectHealth       = "tasks.health"
	// SubjectDLQ receives tasks that exhausted their attempts.
	SubjectDLQ = "tasks.dlq"

	// MaxAttempts before a task lands on the DLQ.
	MaxAttempts = 3

	retryHeader = "X-Retry-Count"
	queueGroup  = "revmine-workers"
)

// Task type names recorded in task_results.
const (
	TypeCrawlChannel = "crawl_channel"
	TypeCrawlBatch   = "crawl_batch"
	TypeClassify     = "classify_batch"
	TypeHealth       = "health_check"
)

// CrawlChannelTask asks a worker to crawl one vehicle. MaxPages overrides
// the configured page cap when positive.
type CrawlChannelTask struct {
	TaskID           string `json:"task_id"`
	VehicleChannelID int64  `json:"vehicle_channel_id"`
	MaxPages         int    `json:"max_pages,omitempty"`
}

// CrawlBatchTask asks a worker to run one scheduled crawl pass.
type CrawlBatchTask struct {
	TaskID string `json:"task_id"`
}

// ClassifyBatchTask asks a worker to drain one batch of pending comments.
type ClassifyBatchTask struct {
	TaskID string `json:"task_id"`
}

// HealthTask asks a worker to probe its dependencies.
type HealthTask struct {
	TaskID string `json:"task_id"`
}

// dlqEnvelope wraps an exhausted task on the DLQ subject.
type dlqEnvelope struct {
	Subject  string `json:"subject"`
	TaskID   string `json:"task_id"`
	Payload  string `json:"payload"`
	Error    string `json:"error"`
	Attempts int    `json:"attempts"`
}
