package interfaces

import "context"

// VectorPoint is one embedded item with its payload metadata.
type VectorPoint struct {
	ID      string
	Vector  []float64
	Payload map[string]interface{}
}

// ScoredPoint is a search hit ranked by similarity.
type ScoredPoint struct {
	ID      string
	Score   float64
	Payload map[string]interface{}
}

// RangeCondition is a numeric range over a payload field. Nil bounds are
// unconstrained.
type RangeCondition struct {
	Gte *float64
	Lte *float64
}

// SearchFilter restricts search to points whose payload matches every
// condition. Match is exact equality; Ranges are numeric intervals.
type SearchFilter struct {
	Match  map[string]interface{}
	Ranges map[string]RangeCondition
}

// SearchOptions tunes a similarity query.
type SearchOptions struct {
	Limit          int
	ScoreThreshold float64
	Filter         *SearchFilter
}

// VectorStore is the similarity-search collaborator. The production
// implementation talks to Qdrant; tests use an in-memory cosine store.
type VectorStore interface {
	EnsureCollection(ctx context.Context, name string, vectorSize int) error
	Upsert(ctx context.Context, collection string, points []*VectorPoint) error
	Search(ctx context.Context, collection string, vector []float64, opts *SearchOptions) ([]*ScoredPoint, error)
	Delete(ctx context.Context, collection string, ids []string) error
	Count(ctx context.Context, collection string) (uint64, error)
	Close() error
}
