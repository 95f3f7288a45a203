// Package embed provides an Ollama-backed text embedding client.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vrtlab/revmine/pkg/resilience"
)

// Opts configures the embedding client.
type Opts struct {
	// BaseURL is the Ollama server address, e.g. http://localhost:11434.
	BaseURL string
	// Model is the embedding model name.
	Model string
	// RequestsPerSecond caps calls to the embedding server; zero disables
	// the limit.
	RequestsPerSecond float64
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration
}

// Client embeds text via Ollama's HTTP API.
type Client struct {
	opts    Opts
	http    *http.Client
	limiter *resilience.Limiter
}

// New creates an embedding client.
func New(opts Opts) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	c := &Client{
		opts: opts,
		http: &http.Client{Timeout: opts.Timeout},
	}
	if opts.RequestsPerSecond > 0 {
		c.limiter = resilience.NewLimiter(resilience.LimiterOpts{
			Rate:  opts.RequestsPerSecond,
			Burst: 1,
		})
	}
	return c
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	body, err := json.Marshal(embedRequest{Model: c.opts.Model, Prompt: text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed: status %d", resp.StatusCode)
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("embed decode: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("embed: empty vector for %d-byte prompt", len(text))
	}

	out := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		out[i] = float32(v)
	}
	return out, nil
}

// EmbedBatch embeds texts sequentially, failing on the first error.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d]: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}
