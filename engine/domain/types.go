// Package domain defines the core value types and error taxonomy shared by
// the revmine ingestion and classification pipeline.
package domain

import "time"

// ProcessingState is the lifecycle tag on a raw comment.
type ProcessingState string

const (
	StateNew        ProcessingState = "new"
	StateProcessing ProcessingState = "processing"
	StateCompleted  ProcessingState = "completed"
	StateFailed     ProcessingState = "failed"
	StateSkipped    ProcessingState = "skipped"
)

// AllStates lists every processing state, in lifecycle order.
var AllStates = []ProcessingState{
	StateNew, StateProcessing, StateCompleted, StateFailed, StateSkipped,
}

// Terminal reports whether the state ends a processing attempt.
func (s ProcessingState) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateSkipped:
		return true
	}
	return false
}

// Retryable reports whether a comment in this state may be picked up again.
// A comment in "processing" belongs to some worker and must not be re-claimed.
func (s ProcessingState) Retryable() bool {
	return s == StateNew || s == StateFailed
}

// CommentDraft is a review item collected from an upstream listing that is
// not yet persisted. Content stays empty when the detail fetch failed; the
// identifier is still recorded so the item is never re-fetched.
type CommentDraft struct {
	Identifier string     `json:"identifier"`
	Content    string     `json:"content"`
	SourceURL  string     `json:"source_url,omitempty"`
	PostedAt   *time.Time `json:"posted_at,omitempty"`
}

// Chunk is a section-bounded fragment of a review's text, the unit of
// classification.
type Chunk struct {
	Section string `json:"section"`
	Text    string `json:"text"`
}

// Candidate is one ranked hit from the feature index.
type Candidate struct {
	FeatureCode string  `json:"feature_code"`
	FeatureName string  `json:"feature_name"`
	Distance    float64 `json:"distance"`
}

// MatchDetails is the audit blob stored alongside an accepted match.
type MatchDetails struct {
	SourceSection      string      `json:"source_section"`
	MatchedFeatureCode string      `json:"matched_feature_code"`
	MatchedFeatureName string      `json:"matched_feature_name"`
	SimilarityScore    float64     `json:"similarity_score"`
	SearchQueryPreview string      `json:"search_query_preview"`
	Candidates         []Candidate `json:"candidates,omitempty"`
}

// ClassificationResult is one accepted chunk-to-feature match.
type ClassificationResult struct {
	FeatureID   int64
	Score       float64
	ChunkText   string
	ChunkVector []float32
	Details     MatchDetails
}
