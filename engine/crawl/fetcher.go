// Package crawl walks channel listings, resolves comment details, and lands
// deduplicated raw comments in the store.
package crawl

import (
	"context"
	"log/slog"

	"github.com/vrtlab/revmine/engine/domain"
	"github.com/vrtlab/revmine/engine/source"
	"github.com/vrtlab/revmine/engine/store"
	"github.com/vrtlab/revmine/pkg/fn"
)

// listingClient is the slice of source.Client the fetcher needs.
type listingClient interface {
	FetchListing(ctx context.Context, url string) (source.Listing, error)
	FetchDetail(ctx context.Context, url string) (string, error)
}

// Fetcher collects comments a vehicle does not yet have.
type Fetcher struct {
	client   listingClient
	comments store.CommentStore
	maxPages int
	retry    fn.RetryOpts
	log      *slog.Logger
}

// NewFetcher creates a Fetcher. maxPages caps how deep one crawl walks a
// vehicle's listing regardless of what the site reports.
func NewFetcher(client listingClient, comments store.CommentStore, maxPages int, log *slog.Logger) *Fetcher {
	if maxPages <= 0 {
		maxPages = 10
	}
	return &Fetcher{client: client, comments: comments, maxPages: maxPages, retry: fn.DefaultRetry, log: log}
}

// FetchResult reports one vehicle's listing walk.
type FetchResult struct {
	PagesFetched int
	PagesFailed  int
	Found        int
	Drafts       []domain.CommentDraft
}

// FetchNewComments walks the vehicle's listing pages and returns drafts for
// every comment not already stored. The first page is probed with retries to
// learn the page count; later page failures skip that page only. A page with
// no items at all ends the walk early, the first page included, regardless of
// the page count the site reports.
func (f *Fetcher) FetchNewComments(ctx context.Context, cfg source.EndpointConfig, vehicleChannelID int64, identifier string) (FetchResult, error) {
	var res FetchResult

	existing, err := f.comments.ExistingIdentifiers(ctx, vehicleChannelID)
	if err != nil {
		return res, err
	}
	seen := make(map[string]struct{})

	first := fn.Retry(ctx, f.retry, func(ctx context.Context) fn.Result[source.Listing] {
		return fn.FromPair(f.client.FetchListing(ctx, cfg.ListingURL(identifier, 1)))
	})
	listing, err := first.Unwrap()
	if err != nil {
		return res, err
	}
	res.PagesFetched = 1
	if len(listing.Items) == 0 {
		return res, nil
	}

	pages := listing.PageCount
	if pages > f.maxPages {
		pages = f.maxPages
	}

	f.collect(ctx, cfg, listing.Items, existing, seen, &res)

	for page := 2; page <= pages; page++ {
		pageListing, err := f.client.FetchListing(ctx, cfg.ListingURL(identifier, page))
		if err != nil {
			f.log.Warn("crawl: page fetch failed, skipping",
				"vehicle_channel_id", vehicleChannelID, "page", page, "error", err)
			res.PagesFailed++
			continue
		}
		res.PagesFetched++
		if len(pageListing.Items) == 0 {
			break
		}
		f.collect(ctx, cfg, pageListing.Items, existing, seen, &res)
	}
	return res, nil
}

// collect turns unseen listing items into drafts, resolving full text through
// the detail endpoint when the channel has one. A failed detail fetch still
// records the comment with empty content so it is never re-requested.
func (f *Fetcher) collect(ctx context.Context, cfg source.EndpointConfig, items []source.ListingItem, existing, seen map[string]struct{}, res *FetchResult) {
	for _, item := range items {
		if _, ok := existing[item.Identifier]; ok {
			continue
		}
		if _, ok := seen[item.Identifier]; ok {
			continue
		}
		seen[item.Identifier] = struct{}{}
		res.Found++

		draft := domain.CommentDraft{
			Identifier: item.Identifier,
			Content:    item.Content,
			PostedAt:   item.PostedAt,
		}
		if cfg.HasDetail() {
			url := cfg.DetailURL(item.Identifier)
			draft.SourceURL = url
			content, err := f.client.FetchDetail(ctx, url)
			if err != nil {
				f.log.Warn("crawl: detail fetch failed, keeping empty content",
					"identifier", item.Identifier, "error", err)
			} else {
				draft.Content = content
			}
		}
		res.Drafts = append(res.Drafts, draft)
	}
}
