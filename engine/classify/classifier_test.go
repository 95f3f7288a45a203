package classify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/vrtlab/revmine/engine/domain"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	return f.vec, f.err
}

type fakeSearcher struct {
	matches []FeatureMatch
	err     error
}

func (f *fakeSearcher) Nearest(context.Context, []float32, int) ([]FeatureMatch, error) {
	return f.matches, f.err
}

func TestClassifyChunkAccepts(t *testing.T) {
	matches := []FeatureMatch{
		{FeatureID: 4, Code: "EXT-01", Name: "外观设计", Distance: 0.31},
		{FeatureID: 9, Code: "INT-02", Name: "内饰用料", Distance: 0.55},
	}
	c := NewClassifier(&fakeEmbedder{vec: []float32{1, 0}}, &fakeSearcher{matches: matches}, 0.5, 3)

	res, err := c.ClassifyChunk(context.Background(), domain.Chunk{Section: "【外观】", Text: "车头造型很有辨识度"})
	if err != nil {
		t.Fatal(err)
	}
	if res == nil {
		t.Fatal("expected an accepted match")
	}
	if res.FeatureID != 4 || res.Score != 0.31 {
		t.Errorf("result = %+v", res)
	}
	if res.Details.MatchedFeatureCode != "EXT-01" || res.Details.SourceSection != "【外观】" {
		t.Errorf("details = %+v", res.Details)
	}
	if len(res.Details.Candidates) != 2 {
		t.Errorf("candidates = %+v", res.Details.Candidates)
	}
}

func TestClassifyChunkThresholdIsExclusive(t *testing.T) {
	// A best match at exactly the threshold is not close enough.
	c := NewClassifier(&fakeEmbedder{vec: []float32{1}},
		&fakeSearcher{matches: []FeatureMatch{{FeatureID: 1, Distance: 0.5}}}, 0.5, 3)

	res, err := c.ClassifyChunk(context.Background(), domain.Chunk{Text: "空间还算宽敞"})
	if err != nil {
		t.Fatal(err)
	}
	if res != nil {
		t.Fatalf("distance == threshold should be rejected, got %+v", res)
	}

	c = NewClassifier(&fakeEmbedder{vec: []float32{1}},
		&fakeSearcher{matches: []FeatureMatch{{FeatureID: 1, Distance: 0.4999}}}, 0.5, 3)
	res, err = c.ClassifyChunk(context.Background(), domain.Chunk{Text: "空间还算宽敞"})
	if err != nil || res == nil {
		t.Fatalf("distance just under threshold should be accepted (res=%v err=%v)", res, err)
	}
}

func TestClassifyChunkNoMatches(t *testing.T) {
	c := NewClassifier(&fakeEmbedder{vec: []float32{1}}, &fakeSearcher{}, 0.5, 3)
	res, err := c.ClassifyChunk(context.Background(), domain.Chunk{Text: "完全无关的文本"})
	if err != nil || res != nil {
		t.Fatalf("empty index should yield (nil, nil), got (%v, %v)", res, err)
	}
}

func TestClassifyChunkEmbedError(t *testing.T) {
	c := NewClassifier(&fakeEmbedder{err: errors.New("embedder down")}, &fakeSearcher{}, 0.5, 3)
	if _, err := c.ClassifyChunk(context.Background(), domain.Chunk{Text: "x"}); err == nil {
		t.Fatal("expected embed error to propagate")
	}
}

func TestPreviewTruncation(t *testing.T) {
	long := strings.Repeat("动", 150)
	got := preview(long)
	if utf8.RuneCountInString(got) != previewRunes+1 {
		t.Errorf("preview length = %d runes", utf8.RuneCountInString(got))
	}
	if !strings.HasSuffix(got, "…") {
		t.Error("long preview should end with ellipsis")
	}
	if preview("短文本") != "短文本" {
		t.Error("short text should pass through unchanged")
	}
}
