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
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/model"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/pkg/logger"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/pkg/retry"
	"go.uber.org/zap"
)

// upsertBatchSize bounds vectors per upsert call; the remote index rejects
// oversized payloads.
const upsertBatchSize = 100

// IndexRecord is one vector plus its flattened metadata for upsert.
type IndexRecord struct {
	ID       string
	Vector   []float32
	Content  string
	Metadata model.Metadata
}

// IndexStats reports the remote index size.
type IndexStats struct {
	Count int `json:"count"`
}

// VectorIndex is the adapter over the remote vector index. Safe for
// concurrent readers and writers; upsert batches are issued sequentially.
type VectorIndex interface {
	SimilaritySearch(ctx context.Context, queryVec []float32, topK int) ([]model.ScoredDoc, error)
	Upsert(ctx context.Context, records []IndexRecord) error
	DeleteAll(ctx context.Context, namespace string) error
	Stats(ctx context.Context) (IndexStats, error)
}

// RemoteVectorIndex implements VectorIndex against a Pinecone-style REST API.
type RemoteVectorIndex struct {
	endpoint   string
	apiKey     string
	namespace  string
	policy     retry.Policy
	httpClient *http.Client
}

func NewRemoteVectorIndex(endpoint, apiKey, namespace string, timeout time.Duration, policy retry.Policy) *RemoteVectorIndex {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if policy.MaxRetries == 0 {
		policy = retry.DefaultPolicy()
	}
	return &RemoteVectorIndex{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		namespace:  namespace,
		policy:     policy,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type queryRequest struct {
	Namespace       string    `json:"namespace"`
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

type queryResponse struct {
	Matches []struct {
		ID       string                 `json:"id"`
		Score    float64                `json:"score"`
		Metadata map[string]interface{} `json:"metadata"`
	} `json:"matches"`
}

// SimilaritySearch returns the top-k documents by cosine similarity with
// scores in [0,1]. Metadata comes back both raw (content) and parsed.
func (v *RemoteVectorIndex) SimilaritySearch(ctx context.Context, queryVec []float32, topK int) ([]model.ScoredDoc, error) {
	reqBody := queryRequest{
		Namespace:       v.namespace,
		Vector:          queryVec,
		TopK:            topK,
		IncludeMetadata: true,
	}

	var qResp queryResponse
	err := retry.Do(ctx, v.policy, func(ctx context.Context) error {
		return v.post(ctx, "/query", reqBody, &qResp)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCancelled, "similarity search cancelled")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrIndexService, "similarity search failed")
	}

	docs := make([]model.ScoredDoc, 0, len(qResp.Matches))
	for _, m := range qResp.Matches {
		content, _ := m.Metadata["content"].(string)
		meta := m.Metadata
		delete(meta, "content")

		score := m.Score
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}

		docs = append(docs, model.ScoredDoc{
			Document: model.Document{
				ID:       m.ID,
				Content:  content,
				Metadata: model.MetadataFromMap(meta),
			},
			SemanticScore: score,
		})
	}
	return docs, nil
}

type upsertRequest struct {
	Namespace string         `json:"namespace"`
	Vectors   []upsertVector `json:"vectors"`
}

type upsertVector struct {
	ID       string                 `json:"id"`
	Values   []float32              `json:"values"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Upsert writes records in batches of upsertBatchSize, sequentially. Content
// is stored as a metadata property; sequence and object metadata values are
// flattened to scalars.
func (v *RemoteVectorIndex) Upsert(ctx context.Context, records []IndexRecord) error {
	for start := 0; start < len(records); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(records) {
			end = len(records)
		}

		vectors := make([]upsertVector, 0, end-start)
		for _, rec := range records[start:end] {
			meta := rec.Metadata.Flatten()
			meta["content"] = rec.Content
			vectors = append(vectors, upsertVector{
				ID:       rec.ID,
				Values:   rec.Vector,
				Metadata: meta,
			})
		}

		reqBody := upsertRequest{Namespace: v.namespace, Vectors: vectors}
		err := retry.Do(ctx, v.policy, func(ctx context.Context) error {
			return v.post(ctx, "/vectors/upsert", reqBody, nil)
		})
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrIndexService,
				fmt.Sprintf("upsert batch %d-%d failed", start, end))
		}

		logger.Debug("upserted vector batch",
			zap.Int("from", start),
			zap.Int("to", end),
			zap.String("namespace", v.namespace),
		)
	}
	return nil
}

// DeleteAll clears every vector in the namespace.
func (v *RemoteVectorIndex) DeleteAll(ctx context.Context, namespace string) error {
	if namespace == "" {
		namespace = v.namespace
	}
	reqBody := map[string]interface{}{
		"namespace": namespace,
		"deleteAll": true,
	}
	err := retry.Do(ctx, v.policy, func(ctx context.Context) error {
		return v.post(ctx, "/vectors/delete", reqBody, nil)
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrIndexService, "delete all failed")
	}
	return nil
}

type statsResponse struct {
	Namespaces map[string]struct {
		VectorCount int `json:"vectorCount"`
	} `json:"namespaces"`
	TotalVectorCount int `json:"totalVectorCount"`
}

// Stats returns the vector count for the adapter's namespace.
func (v *RemoteVectorIndex) Stats(ctx context.Context) (IndexStats, error) {
	var sResp statsResponse
	err := retry.Do(ctx, v.policy, func(ctx context.Context) error {
		return v.post(ctx, "/describe_index_stats", map[string]interface{}{}, &sResp)
	})
	if err != nil {
		return IndexStats{}, apperrors.Wrap(err, apperrors.ErrIndexService, "stats failed")
	}

	if ns, ok := sResp.Namespaces[v.namespace]; ok {
		return IndexStats{Count: ns.VectorCount}, nil
	}
	return IndexStats{Count: sResp.TotalVectorCount}, nil
}

func (v *RemoteVectorIndex) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, "POST", v.endpoint+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", v.apiKey)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("index API error: status %d, body: %s", resp.StatusCode, string(respBody))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return err
		}
		return retry.Permanent(err)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}
