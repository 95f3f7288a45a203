package crawl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/vrtlab/revmine/engine/source"
	"github.com/vrtlab/revmine/engine/store"
	"github.com/vrtlab/revmine/pkg/fn"
)

type fakeClient struct {
	pages      map[int]source.Listing
	details    map[string]string
	failPages  map[int]bool
	failDetail map[string]bool
	calls      []string
}

func (c *fakeClient) FetchListing(_ context.Context, url string) (source.Listing, error) {
	c.calls = append(c.calls, url)
	var page int
	fmt.Sscanf(url[strings.LastIndex(url, "/")+1:], "%d", &page)
	if c.failPages[page] {
		return source.Listing{}, fmt.Errorf("page %d unavailable", page)
	}
	return c.pages[page], nil
}

func (c *fakeClient) FetchDetail(_ context.Context, url string) (string, error) {
	id := url[strings.LastIndex(url, "/")+1:]
	if c.failDetail[id] {
		return "", fmt.Errorf("detail %s unavailable", id)
	}
	return c.details[id], nil
}

type fakeComments struct {
	store.CommentStore
	existing map[string]struct{}
}

func (f *fakeComments) ExistingIdentifiers(context.Context, int64) (map[string]struct{}, error) {
	return f.existing, nil
}

func testEndpoints(t *testing.T) source.EndpointConfig {
	t.Helper()
	cfg, err := source.ParseEndpointConfig(1,
		`{"review_series":{"url":"http://s/series/{identifier}/{page}"},"review_detail":{"url":"http://s/detail/{identifier}"}}`)
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func items(ids ...string) []source.ListingItem {
	out := make([]source.ListingItem, len(ids))
	for i, id := range ids {
		out[i] = source.ListingItem{Identifier: id}
	}
	return out
}

func newTestFetcher(client *fakeClient, existing map[string]struct{}, maxPages int) *Fetcher {
	if existing == nil {
		existing = map[string]struct{}{}
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := NewFetcher(client, &fakeComments{existing: existing}, maxPages, log)
	f.retry = fn.RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond}
	return f
}

func TestFetchNewCommentsDedup(t *testing.T) {
	client := &fakeClient{
		pages: map[int]source.Listing{
			1: {PageCount: 1, Items: append(items("a", "b", "a"), items("c")...)},
		},
		details: map[string]string{"b": "body-b", "c": "body-c"},
	}
	f := newTestFetcher(client, map[string]struct{}{"a": {}}, 10)

	res, err := f.FetchNewComments(context.Background(), testEndpoints(t), 1, "veh")
	if err != nil {
		t.Fatal(err)
	}
	if res.Found != 2 {
		t.Errorf("Found = %d, want 2 (stored and repeated ids skipped)", res.Found)
	}
	if len(res.Drafts) != 2 || res.Drafts[0].Identifier != "b" || res.Drafts[1].Identifier != "c" {
		t.Errorf("drafts = %+v", res.Drafts)
	}
	if res.Drafts[0].Content != "body-b" {
		t.Errorf("detail content not resolved: %+v", res.Drafts[0])
	}
	if res.Drafts[0].SourceURL != "http://s/detail/b" {
		t.Errorf("source url = %q", res.Drafts[0].SourceURL)
	}
}

func TestFetchNewCommentsPageCap(t *testing.T) {
	client := &fakeClient{
		pages: map[int]source.Listing{
			1: {PageCount: 99, Items: items("p1")},
			2: {PageCount: 99, Items: items("p2")},
			3: {PageCount: 99, Items: items("p3")},
		},
		details: map[string]string{},
	}
	f := newTestFetcher(client, nil, 2)

	res, err := f.FetchNewComments(context.Background(), testEndpoints(t), 1, "veh")
	if err != nil {
		t.Fatal(err)
	}
	if res.PagesFetched != 2 {
		t.Errorf("PagesFetched = %d, want 2", res.PagesFetched)
	}
	if len(res.Drafts) != 2 {
		t.Errorf("drafts = %d, want 2", len(res.Drafts))
	}
}

func TestFetchNewCommentsEarlyStop(t *testing.T) {
	client := &fakeClient{
		pages: map[int]source.Listing{
			1: {PageCount: 4, Items: items("p1")},
			2: {PageCount: 4},
			3: {PageCount: 4, Items: items("p3")},
		},
		details: map[string]string{},
	}
	f := newTestFetcher(client, nil, 10)

	res, err := f.FetchNewComments(context.Background(), testEndpoints(t), 1, "veh")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Drafts) != 1 {
		t.Errorf("empty page should end the walk, drafts = %+v", res.Drafts)
	}
}

func TestFetchNewCommentsEmptyFirstPageEndsWalk(t *testing.T) {
	client := &fakeClient{
		pages: map[int]source.Listing{
			1: {PageCount: 3},
			2: {PageCount: 3, Items: items("late")},
		},
		details: map[string]string{},
	}
	f := newTestFetcher(client, nil, 10)

	res, err := f.FetchNewComments(context.Background(), testEndpoints(t), 1, "veh")
	if err != nil {
		t.Fatal(err)
	}
	if res.PagesFetched != 1 {
		t.Errorf("PagesFetched = %d, want 1", res.PagesFetched)
	}
	if res.Found != 0 || len(res.Drafts) != 0 {
		t.Errorf("empty first page should end the walk, got %+v", res)
	}
	if len(client.calls) != 1 {
		t.Errorf("fetched %d pages after an empty first page: %v", len(client.calls), client.calls)
	}
}

func TestFetchNewCommentsSkipsFailedPage(t *testing.T) {
	client := &fakeClient{
		pages: map[int]source.Listing{
			1: {PageCount: 3, Items: items("p1")},
			3: {PageCount: 3, Items: items("p3")},
		},
		failPages: map[int]bool{2: true},
		details:   map[string]string{},
	}
	f := newTestFetcher(client, nil, 10)

	res, err := f.FetchNewComments(context.Background(), testEndpoints(t), 1, "veh")
	if err != nil {
		t.Fatal(err)
	}
	if res.PagesFailed != 1 {
		t.Errorf("PagesFailed = %d, want 1", res.PagesFailed)
	}
	if len(res.Drafts) != 2 {
		t.Errorf("drafts = %+v, want p1 and p3", res.Drafts)
	}
}

func TestFetchNewCommentsDetailFailureKeepsIdentifier(t *testing.T) {
	client := &fakeClient{
		pages: map[int]source.Listing{
			1: {PageCount: 1, Items: []source.ListingItem{{Identifier: "x", Content: "listing summary"}}},
		},
		failDetail: map[string]bool{"x": true},
	}
	f := newTestFetcher(client, nil, 10)

	res, err := f.FetchNewComments(context.Background(), testEndpoints(t), 1, "veh")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Drafts) != 1 {
		t.Fatalf("drafts = %+v", res.Drafts)
	}
	// The listing summary survives so the row is recorded without refetching.
	if res.Drafts[0].Content != "listing summary" {
		t.Errorf("content = %q", res.Drafts[0].Content)
	}
}

func TestFetchNewCommentsFirstPageFailure(t *testing.T) {
	client := &fakeClient{failPages: map[int]bool{1: true}}
	f := newTestFetcher(client, nil, 10)

	if _, err := f.FetchNewComments(context.Background(), testEndpoints(t), 1, "veh"); err == nil {
		t.Fatal("expected error when the probe page never loads")
	}
}
