package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"Story-Loom/server/internal/interfaces"
)

const (
	defaultEmbeddingModel = "text-embedding-3-small"
	defaultDimension      = 1536
	cacheTTL              = 24 * time.Hour
	embedTimeout          = 30 * time.Second
	maxRetries            = 3
	retryDelay            = 1 * time.Second
)

// EmbeddingCache stores cached embeddings keyed by input text.
type EmbeddingCache struct {
	cache map[string]*CachedEmbedding
	mu    sync.RWMutex
}

// CachedEmbedding holds a cached embedding with its creation time.
type CachedEmbedding struct {
	Vector    []float64
	CreatedAt time.Time
}

// Put caches an embedding.
func (c *EmbeddingCache) Put(text string, vector []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[text] = &CachedEmbedding{Vector: vector, CreatedAt: time.Now()}
}

func (c *EmbeddingCache) get(text string) ([]float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cached, ok := c.cache[text]
	if !ok || time.Since(cached.CreatedAt) > cacheTTL {
		return nil, false
	}
	return cached.Vector, true
}

// EmbeddingService generates embeddings through an OpenAI-compatible
// /embeddings endpoint, with an in-memory cache in front. It implements
// interfaces.EmbeddingProvider. Failures surface as *interfaces.ProviderError,
// never as a silent zero vector.
type EmbeddingService struct {
	baseURL   string
	apiKey    string
	model     string
	dimension int
	cache     *EmbeddingCache
	client    *http.Client
}

// NewEmbeddingService creates an embedding service against the given
// OpenAI-compatible base URL.
func NewEmbeddingService(baseURL, apiKey, model string, dimension int) *EmbeddingService {
	if model == "" {
		model = defaultEmbeddingModel
	}
	if dimension <= 0 {
		dimension = defaultDimension
	}
	return &EmbeddingService{
		baseURL:   baseURL,
		apiKey:    apiKey,
		model:     model,
		dimension: dimension,
		cache:     &EmbeddingCache{cache: make(map[string]*CachedEmbedding)},
		client:    &http.Client{Timeout: embedTimeout},
	}
}

// Dimension returns the vector size this deployment produces.
func (s *EmbeddingService) Dimension() int {
	return s.dimension
}

// Embed generates a normalized embedding for a single text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float64, error) {
	if vec, ok := s.cache.get(text); ok {
		return vec, nil
	}

	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, &interfaces.ProviderError{Provider: "embedding", Op: "embed", Err: fmt.Errorf("no embedding returned")}
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts, serving cached ones
// without an API call.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float64, len(texts))
	var uncachedIdx []int
	var uncached []string
	for i, text := range texts {
		if vec, ok := s.cache.get(text); ok {
			vectors[i] = vec
		} else {
			uncachedIdx = append(uncachedIdx, i)
			uncached = append(uncached, text)
		}
	}
	if len(uncached) == 0 {
		return vectors, nil
	}

	fresh, err := s.createEmbeddings(ctx, uncached)
	if err != nil {
		return nil, err
	}
	for i, idx := range uncachedIdx {
		normalized := NormalizeVector(fresh[i])
		vectors[idx] = normalized
		s.cache.Put(uncached[i], normalized)
	}
	return vectors, nil
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

func (s *EmbeddingService) createEmbeddings(ctx context.Context, texts []string) ([][]float64, error) {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay * time.Duration(attempt)):
			}
		}

		vectors, err := s.doEmbedRequest(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
	}

	return nil, &interfaces.ProviderError{Provider: "embedding", Op: "embed", Err: lastErr}
}

func (s *EmbeddingService) doEmbedRequest(ctx context.Context, texts []string) ([][]float64, error) {
	reqBody, err := json.Marshal(embeddingRequest{Input: texts, Model: s.model})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/embeddings", s.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.apiKey))

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result embeddingResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	if resp.StatusCode != http.StatusOK || result.Error != nil {
		if result.Error != nil {
			return nil, fmt.Errorf("API error: %s (code: %s)", result.Error.Message, result.Error.Code)
		}
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Data))
	}

	vectors := make([][]float64, len(texts))
	for _, data := range result.Data {
		if data.Index < 0 || data.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", data.Index)
		}
		if !IsValidVector(data.Embedding) {
			return nil, fmt.Errorf("embedding %d contains NaN or Inf", data.Index)
		}
		vectors[data.Index] = data.Embedding
	}
	return vectors, nil
}

// NormalizeVector normalizes a vector to unit length.
func NormalizeVector(vector []float64) []float64 {
	var norm float64
	for _, v := range vector {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vector
	}

	normalized := make([]float64, len(vector))
	for i, v := range vector {
		normalized[i] = v / norm
	}
	return normalized
}

// CosineSimilarity computes cosine similarity between two vectors.
func CosineSimilarity(v1, v2 []float64) (float64, error) {
	if len(v1) != len(v2) {
		return 0, fmt.Errorf("vector dimensions don't match: %d vs %d", len(v1), len(v2))
	}
	if len(v1) == 0 {
		return 0, nil
	}

	var dot, norm1, norm2 float64
	for i := range v1 {
		dot += v1[i] * v2[i]
		norm1 += v1[i] * v1[i]
		norm2 += v2[i] * v2[i]
	}
	norm1 = math.Sqrt(norm1)
	norm2 = math.Sqrt(norm2)
	if norm1 == 0 || norm2 == 0 {
		return 0, nil
	}
	return dot / (norm1 * norm2), nil
}

// IsValidVector checks that a vector has no NaN or Inf components.
func IsValidVector(vector []float64) bool {
	for _, v := range vector {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
