package classify

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/vrtlab/revmine/engine/domain"
	"github.com/vrtlab/revmine/pkg/fn"
)

// previewRunes caps the query text echoed into match details.
const previewRunes = 100

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher ranks feature matches for a vector.
type Searcher interface {
	Nearest(ctx context.Context, vector []float32, topK int) ([]FeatureMatch, error)
}

// Classifier decides which product feature, if any, a chunk talks about.
type Classifier struct {
	embed     Embedder
	index     Searcher
	threshold float64
	topK      int
	pipeline  fn.Stage[domain.Chunk, ranked]
}

// embedded pairs a chunk with its vector between pipeline stages.
type embedded struct {
	chunk  domain.Chunk
	vector []float32
}

// ranked carries the vector and its ordered feature matches.
type ranked struct {
	chunk   domain.Chunk
	vector  []float32
	matches []FeatureMatch
}

// NewClassifier creates a Classifier. threshold is the exclusive cosine
// distance bound: a chunk is accepted only when its best match is strictly
// closer than threshold.
func NewClassifier(embed Embedder, index Searcher, threshold float64, topK int) *Classifier {
	if topK <= 0 {
		topK = 3
	}
	c := &Classifier{embed: embed, index: index, threshold: threshold, topK: topK}

	embedStage := fn.TracedStage("classify.embed", func(ctx context.Context, chunk domain.Chunk) fn.Result[embedded] {
		vector, err := c.embed.Embed(ctx, chunk.Text)
		if err != nil {
			return fn.Err[embedded](fmt.Errorf("embedding chunk: %w", err))
		}
		return fn.Ok(embedded{chunk: chunk, vector: vector})
	})
	searchStage := fn.TracedStage("classify.search", func(ctx context.Context, e embedded) fn.Result[ranked] {
		matches, err := c.index.Nearest(ctx, e.vector, c.topK)
		if err != nil {
			return fn.Err[ranked](err)
		}
		return fn.Ok(ranked{chunk: e.chunk, vector: e.vector, matches: matches})
	})
	c.pipeline = fn.Then(embedStage, searchStage)
	return c
}

// ClassifyChunk embeds the chunk once and ranks it against the taxonomy. A
// nil result with nil error means no feature was close enough.
func (c *Classifier) ClassifyChunk(ctx context.Context, chunk domain.Chunk) (*domain.ClassificationResult, error) {
	r, err := c.pipeline(ctx, chunk).Unwrap()
	if err != nil {
		return nil, err
	}
	if len(r.matches) == 0 {
		return nil, nil
	}

	best := r.matches[0]
	if best.Distance >= c.threshold {
		return nil, nil
	}

	details := domain.MatchDetails{
		SourceSection:      chunk.Section,
		MatchedFeatureCode: best.Code,
		MatchedFeatureName: best.Name,
		SimilarityScore:    best.Distance,
		SearchQueryPreview: preview(chunk.Text),
	}
	for _, m := range r.matches {
		details.Candidates = append(details.Candidates, domain.Candidate{
			FeatureCode: m.Code,
			FeatureName: m.Name,
			Distance:    m.Distance,
		})
	}

	return &domain.ClassificationResult{
		FeatureID:   best.FeatureID,
		Score:       best.Distance,
		ChunkText:   chunk.Text,
		ChunkVector: r.vector,
		Details:     details,
	}, nil
}

func preview(text string) string {
	if utf8.RuneCountInString(text) <= previewRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:previewRunes]) + "…"
}
