package rag

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"Story-Loom/server/internal/interfaces"
)

// MemoryVectorStore is an in-memory interfaces.VectorStore doing exact
// cosine search. It backs unit tests and store-less startup; the Qdrant
// client replaces it in production.
type MemoryVectorStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]*interfaces.VectorPoint
}

// NewMemoryVectorStore creates an empty in-memory vector store.
func NewMemoryVectorStore() *MemoryVectorStore {
	return &MemoryVectorStore{
		collections: make(map[string]map[string]*interfaces.VectorPoint),
	}
}

// EnsureCollection creates the collection when missing.
func (s *MemoryVectorStore) EnsureCollection(ctx context.Context, name string, vectorSize int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		s.collections[name] = make(map[string]*interfaces.VectorPoint)
	}
	return nil
}

// Upsert inserts or replaces points.
func (s *MemoryVectorStore) Upsert(ctx context.Context, collection string, points []*interfaces.VectorPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]*interfaces.VectorPoint)
		s.collections[collection] = coll
	}
	for _, point := range points {
		if point.ID == "" {
			return fmt.Errorf("point without an ID")
		}
		coll[point.ID] = point
	}
	return nil
}

// Search ranks points by cosine similarity, honoring payload filters and
// the score threshold.
func (s *MemoryVectorStore) Search(ctx context.Context, collection string, vector []float64, opts *interfaces.SearchOptions) ([]*interfaces.ScoredPoint, error) {
	if opts == nil {
		opts = &interfaces.SearchOptions{Limit: 10}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*interfaces.ScoredPoint
	for _, point := range s.collections[collection] {
		if !matchesFilter(point.Payload, opts.Filter) {
			continue
		}
		score, err := CosineSimilarity(vector, point.Vector)
		if err != nil {
			return nil, err
		}
		if opts.ScoreThreshold > 0 && score < opts.ScoreThreshold {
			continue
		}
		results = append(results, &interfaces.ScoredPoint{
			ID:      point.ID,
			Score:   score,
			Payload: point.Payload,
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// Delete removes points by ID.
func (s *MemoryVectorStore) Delete(ctx context.Context, collection string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collections[collection]
	for _, id := range ids {
		delete(coll, id)
	}
	return nil
}

// Count returns the number of stored points.
func (s *MemoryVectorStore) Count(ctx context.Context, collection string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.collections[collection])), nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryVectorStore) Close() error {
	return nil
}

func matchesFilter(payload map[string]interface{}, filter *interfaces.SearchFilter) bool {
	if filter == nil {
		return true
	}
	for key, want := range filter.Match {
		if payload[key] != want {
			return false
		}
	}
	for key, cond := range filter.Ranges {
		value, ok := payloadNumber(payload[key])
		if !ok {
			return false
		}
		if cond.Gte != nil && value < *cond.Gte {
			return false
		}
		if cond.Lte != nil && value > *cond.Lte {
			return false
		}
	}
	return true
}

func payloadNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	default:
		return 0, false
	}
}
