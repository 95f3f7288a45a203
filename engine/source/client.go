package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/vrtlab/revmine/engine/domain"
	"github.com/vrtlab/revmine/pkg/resilience"
)

// ClientOpts configures the review-site HTTP client.
type ClientOpts struct {
	// RequestsPerSecond caps the sustained request rate per client.
	RequestsPerSecond float64
	// JitterMin/JitterMax bound the random pause added before each request,
	// so traffic does not look machine-regular to the upstream site.
	JitterMin time.Duration
	JitterMax time.Duration
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration
	// UserAgent is sent on every request.
	UserAgent string
}

// Client fetches review listings and comment details with pacing and a
// circuit breaker shared across all requests to one channel.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	opts    ClientOpts
	log     *slog.Logger
}

// NewClient creates a paced review-site client.
func NewClient(opts ClientOpts, log *slog.Logger) *Client {
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "revmine/1.0 (vehicle review collection)"
	}
	brk := resilience.DefaultBreakerOpts
	brk.OnStateChange = func(from, to resilience.State) {
		log.Warn("source: circuit breaker state change", "from", from.String(), "to", to.String())
	}
	return &Client{
		http:    &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		breaker: resilience.NewBreaker(brk),
		opts:    opts,
		log:     log,
	}
}

// Listing is one decoded page of a channel's review listing.
type Listing struct {
	PageCount int
	Items     []ListingItem
}

// ListingItem is one review entry as it appears on a listing page.
type ListingItem struct {
	Identifier string
	Content    string
	PostedAt   *time.Time
}

// listingEnvelope mirrors the upstream response shape. Sites disagree on the
// page-count key, so all known variants are decoded.
type listingEnvelope struct {
	Result struct {
		PageCount  int               `json:"pagecount"`
		TotalPage  int               `json:"totalpage"`
		TotalPage2 int               `json:"total_page"`
		List       []json.RawMessage `json:"list"`
	} `json:"result"`
}

type detailEnvelope struct {
	Result struct {
		Content string `json:"content"`
	} `json:"result"`
}

// Keys that sites use for the stable review identifier, in precedence order.
var identifierKeys = []string{"id", "review_id", "reviewId", "comment_id", "commentId", "uuid"}

var contentKeys = []string{"content", "summary", "text"}

var postedAtLayouts = []string{"2006-01-02 15:04:05", "2006-01-02"}

// FetchListing retrieves and decodes one listing page. Items without any
// recognizable identifier are dropped.
func (c *Client) FetchListing(ctx context.Context, url string) (Listing, error) {
	body, err := c.get(ctx, url)
	if err != nil {
		return Listing{}, err
	}

	var env listingEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Listing{}, &domain.FetchError{URL: url, Err: fmt.Errorf("decode listing: %w", err)}
	}

	listing := Listing{PageCount: firstPositive(env.Result.PageCount, env.Result.TotalPage, env.Result.TotalPage2)}
	if listing.PageCount == 0 {
		// No page count reported: treat as a single page.
		listing.PageCount = 1
	}

	for _, raw := range env.Result.List {
		item, ok := decodeItem(raw)
		if !ok {
			c.log.Warn("source: listing item without identifier, skipping", "url", url)
			continue
		}
		listing.Items = append(listing.Items, item)
	}
	return listing, nil
}

// FetchDetail retrieves the full text of one review. Returns
// domain.ErrNoContent when the detail endpoint answers with an empty body.
func (c *Client) FetchDetail(ctx context.Context, url string) (string, error) {
	body, err := c.get(ctx, url)
	if err != nil {
		return "", err
	}

	var env detailEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", &domain.FetchError{URL: url, Err: fmt.Errorf("decode detail: %w", err)}
	}
	if env.Result.Content == "" {
		return "", domain.ErrNoContent
	}
	return env.Result.Content, nil
}

// BreakerState exposes the circuit breaker state for health reporting.
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if err := c.jitter(ctx); err != nil {
		return nil, err
	}

	var body []byte
	err := c.breaker.Call(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return &domain.FetchError{URL: url, Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return &domain.FetchError{URL: url, Status: resp.StatusCode, Err: fmt.Errorf("unexpected status")}
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return &domain.FetchError{URL: url, Err: fmt.Errorf("read body: %w", err)}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) jitter(ctx context.Context) error {
	if c.opts.JitterMax <= 0 {
		return nil
	}
	span := c.opts.JitterMax - c.opts.JitterMin
	d := c.opts.JitterMin
	if span > 0 {
		d += time.Duration(rand.Int63n(int64(span)))
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func decodeItem(raw json.RawMessage) (ListingItem, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ListingItem{}, false
	}

	var item ListingItem
	for _, key := range identifierKeys {
		if v, ok := fields[key]; ok {
			item.Identifier = scalarString(v)
			if item.Identifier != "" {
				break
			}
		}
	}
	if item.Identifier == "" {
		return ListingItem{}, false
	}

	for _, key := range contentKeys {
		if v, ok := fields[key]; ok {
			if s := scalarString(v); s != "" {
				item.Content = s
				break
			}
		}
	}

	for _, key := range []string{"posttime", "post_time", "created_at"} {
		if v, ok := fields[key]; ok {
			if t := parsePostedAt(scalarString(v)); t != nil {
				item.PostedAt = t
				break
			}
		}
	}
	return item, true
}

// scalarString renders a JSON scalar as text. Sites serve ids as both
// numbers and strings.
func scalarString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func parsePostedAt(s string) *time.Time {
	for _, layout := range postedAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func firstPositive(ns ...int) int {
	for _, n := range ns {
		if n > 0 {
			return n
		}
	}
	return 0
}
