package rag

import (
	"context"
	"fmt"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"Story-Loom/server/internal/interfaces"
)

// QdrantStore implements interfaces.VectorStore on a Qdrant deployment over
// gRPC.
type QdrantStore struct {
	client *qdrant.Client
}

// NewQdrantStore connects to Qdrant. port is the gRPC port (6334 by
// default).
func NewQdrantStore(host string, port int, apiKey string, useTLS bool) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, &interfaces.ProviderError{Provider: "qdrant", Op: "connect", Err: err}
	}
	return &QdrantStore{client: client}, nil
}

// EnsureCollection creates the collection with cosine distance when it does
// not exist yet.
func (s *QdrantStore) EnsureCollection(ctx context.Context, name string, vectorSize int) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return &interfaces.ProviderError{Provider: "qdrant", Op: "collection_exists", Err: err}
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(vectorSize),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return &interfaces.ProviderError{Provider: "qdrant", Op: "create_collection", Err: err}
	}
	return nil
}

// Upsert writes points with their payloads.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, points []*interfaces.VectorPoint) error {
	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, point := range points {
		id, err := pointID(point.ID)
		if err != nil {
			return err
		}
		structs = append(structs, &qdrant.PointStruct{
			Id:      id,
			Vectors: qdrant.NewVectors(toFloat32(point.Vector)...),
			Payload: qdrant.NewValueMap(point.Payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         structs,
	})
	if err != nil {
		return &interfaces.ProviderError{Provider: "qdrant", Op: "upsert", Err: err}
	}
	return nil
}

// Search runs a similarity query with optional payload filters.
func (s *QdrantStore) Search(ctx context.Context, collection string, vector []float64, opts *interfaces.SearchOptions) ([]*interfaces.ScoredPoint, error) {
	if opts == nil {
		opts = &interfaces.SearchOptions{Limit: 10}
	}

	query := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(toFloat32(vector)...),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if opts.Limit > 0 {
		query.Limit = qdrant.PtrOf(uint64(opts.Limit))
	}
	if opts.ScoreThreshold > 0 {
		query.ScoreThreshold = qdrant.PtrOf(float32(opts.ScoreThreshold))
	}
	if filter := buildFilter(opts.Filter); filter != nil {
		query.Filter = filter
	}

	hits, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, &interfaces.ProviderError{Provider: "qdrant", Op: "search", Err: err}
	}

	results := make([]*interfaces.ScoredPoint, 0, len(hits))
	for _, hit := range hits {
		results = append(results, &interfaces.ScoredPoint{
			ID:      idString(hit.GetId()),
			Score:   float64(hit.GetScore()),
			Payload: payloadMap(hit.GetPayload()),
		})
	}
	return results, nil
}

// Delete removes points by ID.
func (s *QdrantStore) Delete(ctx context.Context, collection string, ids []string) error {
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pid, err := pointID(id)
		if err != nil {
			return err
		}
		pointIDs = append(pointIDs, pid)
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return &interfaces.ProviderError{Provider: "qdrant", Op: "delete", Err: err}
	}
	return nil
}

// Count returns the exact number of points in a collection.
func (s *QdrantStore) Count(ctx context.Context, collection string) (uint64, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, &interfaces.ProviderError{Provider: "qdrant", Op: "count", Err: err}
	}
	return count, nil
}

// Close shuts down the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func pointID(id string) (*qdrant.PointId, error) {
	if num, err := strconv.ParseUint(id, 10, 64); err == nil {
		return qdrant.NewIDNum(num), nil
	}
	if len(id) == 36 {
		return qdrant.NewID(id), nil
	}
	return nil, fmt.Errorf("point ID %q is neither numeric nor a UUID", id)
}

func idString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

func toFloat32(vector []float64) []float32 {
	out := make([]float32, len(vector))
	for i, v := range vector {
		out[i] = float32(v)
	}
	return out
}

func buildFilter(filter *interfaces.SearchFilter) *qdrant.Filter {
	if filter == nil {
		return nil
	}

	var must []*qdrant.Condition
	for key, value := range filter.Match {
		switch v := value.(type) {
		case string:
			must = append(must, qdrant.NewMatch(key, v))
		case int:
			must = append(must, qdrant.NewMatchInt(key, int64(v)))
		case int64:
			must = append(must, qdrant.NewMatchInt(key, v))
		case bool:
			must = append(must, qdrant.NewMatchBool(key, v))
		}
	}
	for key, cond := range filter.Ranges {
		must = append(must, qdrant.NewRange(key, &qdrant.Range{
			Gte: cond.Gte,
			Lte: cond.Lte,
		}))
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

func payloadMap(payload map[string]*qdrant.Value) map[string]interface{} {
	if payload == nil {
		return nil
	}
	out := make(map[string]interface{}, len(payload))
	for key, value := range payload {
		out[key] = valueToInterface(value)
	}
	return out
}

func valueToInterface(value *qdrant.Value) interface{} {
	switch kind := value.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	default:
		return nil
	}
}
