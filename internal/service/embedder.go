package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/errors"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/pkg/cache"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/pkg/logger"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/pkg/retry"
	"go.uber.org/zap"
)

// EmbeddingClient is the narrow interface to the embedding service.
type EmbeddingClient interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// EmbedderConfig holds cache and batching bounds for the embedder.
type EmbedderConfig struct {
	CacheSize  int
	CacheTTL   time.Duration
	BatchSize  int
	BatchDelay time.Duration
	Policy     retry.Policy
}

// Embedder produces vectors for texts. Single-text calls go through an LRU
// keyed on the normalized text; document batches bypass the cache.
type Embedder struct {
	client      EmbeddingClient
	cache       *cache.LRU
	policy      retry.Policy
	batchPolicy retry.Policy
	batchSize   int
	batchDelay  time.Duration
}

// NewEmbedder creates an Embedder wrapping client.
func NewEmbedder(client EmbeddingClient, cfg EmbedderConfig) *Embedder {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 500
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > 100 {
		cfg.BatchSize = 100
	}
	if cfg.BatchDelay <= 0 {
		cfg.BatchDelay = 200 * time.Millisecond
	}
	if cfg.Policy.MaxRetries == 0 {
		cfg.Policy = retry.DefaultPolicy()
	}

	// Batches start at a longer delay and back off further; one failed
	// batch usually means the upstream is rate limiting.
	batchPolicy := cfg.Policy
	batchPolicy.InitialDelay = 2 * cfg.Policy.InitialDelay
	batchPolicy.MaxDelay = 2 * cfg.Policy.MaxDelay

	return &Embedder{
		client:      client,
		cache:       cache.NewLRU(cfg.CacheSize, cfg.CacheTTL),
		policy:      cfg.Policy,
		batchPolicy: batchPolicy,
		batchSize:   cfg.BatchSize,
		batchDelay:  cfg.BatchDelay,
	}
}

// EmbedOne returns the vector for a single text, served from cache when the
// normalized form was embedded within the TTL.
func (e *Embedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.ErrEmptyInput
	}

	key := normalizeText(text)
	if cached, ok := e.cache.Get(key); ok {
		return cached.([]float32), nil
	}

	var vec []float32
	err := retry.Do(ctx, e.policy, func(ctx context.Context) error {
		vecs, err := e.client.Embed(ctx, []string{text})
		if err != nil {
			return err
		}
		if len(vecs) == 0 {
			return retry.Permanent(fmt.Errorf("embedding service returned no vectors"))
		}
		vec = vecs[0]
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCancelled, "embedding cancelled")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrEmbeddingService, "failed to embed query")
	}

	e.cache.Set(key, vec)
	return vec, nil
}

// EmbedMany embeds documents in batches of at most batchSize, issued
// sequentially with a spacing delay to respect upstream rate limits.
func (e *Embedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, apperrors.ErrEmptyInput
	}
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, apperrors.ErrEmptyInput
		}
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		if start > 0 {
			select {
			case <-ctx.Done():
				return nil, apperrors.Wrap(ctx.Err(), apperrors.ErrCancelled, "embedding cancelled")
			case <-time.After(e.batchDelay):
			}
		}

		var vecs [][]float32
		err := retry.Do(ctx, e.batchPolicy, func(ctx context.Context) error {
			var err error
			vecs, err = e.client.Embed(ctx, batch)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, apperrors.Wrap(err, apperrors.ErrCancelled, "embedding cancelled")
			}
			return nil, apperrors.Wrap(err, apperrors.ErrEmbeddingService,
				fmt.Sprintf("failed to embed batch %d-%d", start, end))
		}
		if len(vecs) != len(batch) {
			return nil, apperrors.New(apperrors.ErrEmbeddingService,
				fmt.Sprintf("embedding count mismatch: sent %d, got %d", len(batch), len(vecs)))
		}
		out = append(out, vecs...)

		logger.Debug("embedded document batch",
			zap.Int("from", start),
			zap.Int("to", end),
			zap.Int("total", len(texts)),
		)
	}
	return out, nil
}

// CacheStats exposes hit/miss counters for the query-embedding cache.
func (e *Embedder) CacheStats() cache.Stats {
	return e.cache.Stats()
}

func normalizeText(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// OpenAIEmbeddingClient calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbeddingClient struct {
	Endpoint   string
	APIKey     string
	Model      string
	Dim        int
	HTTPClient *http.Client
}

func NewOpenAIEmbeddingClient(endpoint, apiKey, model string, dim int, timeout time.Duration) *OpenAIEmbeddingClient {
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &OpenAIEmbeddingClient{
		Endpoint:   endpoint,
		APIKey:     apiKey,
		Model:      model,
		Dim:        dim,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

func (c *OpenAIEmbeddingClient) Dimension() int {
	return c.Dim
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Embed sends one embedding request for texts.
func (c *OpenAIEmbeddingClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := embeddingRequest{
		Model: c.Model,
		Input: texts,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to marshal request: %w", err))
	}

	url := fmt.Sprintf("%s/embeddings", strings.TrimRight(c.Endpoint, "/"))
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("embedding API error: status %d, body: %s", resp.StatusCode, string(body))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, err
		}
		return nil, retry.Permanent(err)
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if embResp.Error != nil {
		return nil, retry.Permanent(fmt.Errorf("embedding API error: %s", embResp.Error.Message))
	}

	// The API may return data out of order; index is authoritative.
	vecs := make([][]float32, len(embResp.Data))
	for _, d := range embResp.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}
