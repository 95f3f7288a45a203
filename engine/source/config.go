// Package source talks to external review sites: endpoint configuration,
// paced HTTP fetching, and response decoding.
package source

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vrtlab/revmine/engine/domain"
)

// Placeholders recognized in endpoint URL templates.
const (
	placeholderIdentifier = "{identifier}"
	placeholderPage       = "{page}"
)

// EndpointTemplate is one named endpoint of a channel's review API: a URL
// pattern with positional slots, the HTTP method to use, and a documented
// parameter list.
type EndpointTemplate struct {
	URL    string            `json:"url"`
	Method string            `json:"method"`
	Params map[string]string `json:"params"`
}

// EndpointConfig describes how to reach a channel's review API. Stored as a
// JSON blob per channel so new sites need no code change.
type EndpointConfig struct {
	// Listing is the paginated listing endpoint, with {identifier} and
	// {page} slots in its URL.
	Listing EndpointTemplate `json:"review_series"`
	// Detail is the per-comment detail endpoint, with an {identifier}
	// slot. Optional: channels that inline full text in listings omit it.
	Detail EndpointTemplate `json:"review_detail"`
}

// ParseEndpointConfig decodes and validates a channel's endpoint blob.
func ParseEndpointConfig(channelID int64, raw string) (EndpointConfig, error) {
	var cfg EndpointConfig
	if strings.TrimSpace(raw) == "" {
		return cfg, domain.NewConfigError(channelID, "endpoint_config", "empty")
	}
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return cfg, domain.NewConfigError(channelID, "endpoint_config", fmt.Sprintf("invalid json: %v", err))
	}
	if cfg.Listing.URL == "" {
		return cfg, domain.NewConfigError(channelID, "review_series.url", "missing")
	}
	if !strings.Contains(cfg.Listing.URL, placeholderIdentifier) {
		return cfg, domain.NewConfigError(channelID, "review_series.url", "missing {identifier} placeholder")
	}
	if !strings.Contains(cfg.Listing.URL, placeholderPage) {
		return cfg, domain.NewConfigError(channelID, "review_series.url", "missing {page} placeholder")
	}
	if cfg.Detail.URL != "" && !strings.Contains(cfg.Detail.URL, placeholderIdentifier) {
		return cfg, domain.NewConfigError(channelID, "review_detail.url", "missing {identifier} placeholder")
	}
	if err := normalizeMethod(channelID, "review_series.method", &cfg.Listing.Method); err != nil {
		return cfg, err
	}
	if err := normalizeMethod(channelID, "review_detail.method", &cfg.Detail.Method); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// normalizeMethod upper-cases the template's method, defaulting to GET. The
// review sites crawled so far are read-only APIs.
func normalizeMethod(channelID int64, field string, method *string) error {
	switch strings.ToUpper(strings.TrimSpace(*method)) {
	case "", "GET":
		*method = "GET"
	case "POST":
		*method = "POST"
	default:
		return domain.NewConfigError(channelID, field, fmt.Sprintf("unsupported method %q", *method))
	}
	return nil
}

// ListingURL expands the listing template for a vehicle identifier and page.
func (c EndpointConfig) ListingURL(identifier string, page int) string {
	u := strings.ReplaceAll(c.Listing.URL, placeholderIdentifier, identifier)
	return strings.ReplaceAll(u, placeholderPage, fmt.Sprintf("%d", page))
}

// DetailURL expands the detail template for a comment identifier. Returns ""
// when the channel has no detail endpoint.
func (c EndpointConfig) DetailURL(identifier string) string {
	if c.Detail.URL == "" {
		return ""
	}
	return strings.ReplaceAll(c.Detail.URL, placeholderIdentifier, identifier)
}

// HasDetail reports whether the channel exposes a detail endpoint.
func (c EndpointConfig) HasDetail() bool {
	return c.Detail.URL != ""
}
