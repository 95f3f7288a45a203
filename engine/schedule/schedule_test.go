package schedule

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/vrtlab/revmine/engine/store"
)

// fakeVehicles implements store.VehicleStore over an in-memory slice.
type fakeVehicles struct {
	store.VehicleStore
	rows []store.VehicleChannel
}

func (f *fakeVehicles) ListNeverCrawled(_ context.Context, limit int) ([]store.VehicleChannel, error) {
	var out []store.VehicleChannel
	for _, v := range f.rows {
		if v.LastCommentCrawledAt == nil {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeVehicles) ListOldestCrawled(_ context.Context, limit int) ([]store.VehicleChannel, error) {
	var out []store.VehicleChannel
	for _, v := range f.rows {
		if v.LastCommentCrawledAt != nil {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastCommentCrawledAt.Before(*out[j].LastCommentCrawledAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func registry(neverCount, crawledCount int) *fakeVehicles {
	f := &fakeVehicles{}
	id := int64(1)
	for i := 0; i < neverCount; i++ {
		f.rows = append(f.rows, store.VehicleChannel{
			ID:         id,
			Identifier: fmt.Sprintf("never-%d", i),
		})
		id++
	}
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < crawledCount; i++ {
		// Newest first in insertion order so sorting is actually exercised.
		at := base.Add(time.Duration(crawledCount-i) * time.Hour)
		f.rows = append(f.rows, store.VehicleChannel{
			ID:                   id,
			Identifier:           fmt.Sprintf("crawled-%d", i),
			LastCommentCrawledAt: &at,
		})
		id++
	}
	return f
}

func TestSelectPrefersNeverCrawled(t *testing.T) {
	s := New(registry(3, 5))
	got, err := s.SelectCrawlTargets(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d targets, want 2", len(got))
	}
	for _, v := range got {
		if v.LastCommentCrawledAt != nil {
			t.Errorf("%s: expected never-crawled vehicle", v.Identifier)
		}
	}
}

func TestSelectFillsWithOldestCrawled(t *testing.T) {
	s := New(registry(2, 4))
	got, err := s.SelectCrawlTargets(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d targets, want 5", len(got))
	}
	if got[0].LastCommentCrawledAt != nil || got[1].LastCommentCrawledAt != nil {
		t.Fatal("never-crawled vehicles must come first")
	}
	// The crawled remainder must be in ascending crawl-time order.
	for i := 3; i < len(got); i++ {
		prev, cur := got[i-1].LastCommentCrawledAt, got[i].LastCommentCrawledAt
		if prev == nil || cur == nil {
			t.Fatalf("index %d: expected crawled vehicles in the tail", i)
		}
		if cur.Before(*prev) {
			t.Errorf("index %d: crawl times out of order: %v before %v", i, cur, prev)
		}
	}
}

func TestSelectDeterministic(t *testing.T) {
	s := New(registry(3, 3))
	a, err := s.SelectCrawlTargets(context.Background(), 4)
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.SelectCrawlTargets(context.Background(), 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Errorf("index %d: %d != %d", i, a[i].ID, b[i].ID)
		}
	}
}

func TestSelectZeroCount(t *testing.T) {
	s := New(registry(3, 3))
	got, err := s.SelectCrawlTargets(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d targets, want 0", len(got))
	}
}
