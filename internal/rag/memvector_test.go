package rag

import (
	"context"
	"testing"

	"Story-Loom/server/internal/interfaces"
)

func seedPoints(t *testing.T, store *MemoryVectorStore) {
	t.Helper()
	err := store.Upsert(context.Background(), "test", []*interfaces.VectorPoint{
		{ID: "a", Vector: []float64{1, 0}, Payload: map[string]interface{}{"game_id": "g1", "turn": 5}},
		{ID: "b", Vector: []float64{0.9, 0.1}, Payload: map[string]interface{}{"game_id": "g1", "turn": 20}},
		{ID: "c", Vector: []float64{0, 1}, Payload: map[string]interface{}{"game_id": "g2", "turn": 5}},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestSearchRanksByCosine(t *testing.T) {
	store := NewMemoryVectorStore()
	seedPoints(t, store)

	hits, err := store.Search(context.Background(), "test", []float64{1, 0}, &interfaces.SearchOptions{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	if hits[0].ID != "a" || hits[1].ID != "b" || hits[2].ID != "c" {
		t.Fatalf("wrong ranking: %s %s %s", hits[0].ID, hits[1].ID, hits[2].ID)
	}
}

func TestSearchHonorsMatchFilter(t *testing.T) {
	store := NewMemoryVectorStore()
	seedPoints(t, store)

	hits, err := store.Search(context.Background(), "test", []float64{1, 0}, &interfaces.SearchOptions{
		Limit:  10,
		Filter: &interfaces.SearchFilter{Match: map[string]interface{}{"game_id": "g2"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != "c" {
		t.Fatalf("filter not applied: %+v", hits)
	}
}

func TestSearchHonorsRangeFilter(t *testing.T) {
	store := NewMemoryVectorStore()
	seedPoints(t, store)

	upper := 10.0
	hits, err := store.Search(context.Background(), "test", []float64{1, 0}, &interfaces.SearchOptions{
		Limit:  10,
		Filter: &interfaces.SearchFilter{Ranges: map[string]interfaces.RangeCondition{"turn": {Lte: &upper}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected a and c within turn<=10, got %d hits", len(hits))
	}
	for _, hit := range hits {
		if hit.ID == "b" {
			t.Fatal("b is outside the range filter")
		}
	}
}

func TestSearchThresholdAndLimit(t *testing.T) {
	store := NewMemoryVectorStore()
	seedPoints(t, store)
	ctx := context.Background()

	hits, err := store.Search(ctx, "test", []float64{1, 0}, &interfaces.SearchOptions{
		Limit:          10,
		ScoreThreshold: 0.5,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("threshold should drop the orthogonal point, got %d hits", len(hits))
	}

	hits, err = store.Search(ctx, "test", []float64{1, 0}, &interfaces.SearchOptions{Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != "a" {
		t.Fatalf("limit should keep only the best hit: %+v", hits)
	}
}

func TestUpsertReplacesAndDelete(t *testing.T) {
	store := NewMemoryVectorStore()
	seedPoints(t, store)
	ctx := context.Background()

	// Replacing a point keeps the count stable.
	err := store.Upsert(ctx, "test", []*interfaces.VectorPoint{
		{ID: "a", Vector: []float64{0, 1}, Payload: map[string]interface{}{"game_id": "g1"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	count, err := store.Count(ctx, "test")
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Fatalf("expected 3 points after replace, got %d", count)
	}

	if err := store.Delete(ctx, "test", []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	count, err = store.Count(ctx, "test")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected 1 point after delete, got %d", count)
	}

	if err := store.Upsert(ctx, "test", []*interfaces.VectorPoint{{Vector: []float64{1}}}); err == nil {
		t.Fatal("points without an ID must be rejected")
	}
}
