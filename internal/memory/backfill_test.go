package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"Story-Loom/server/internal/models"
	"Story-Loom/server/internal/storage"
)

// fakeIndexer records what gets indexed and can fail on demand.
type fakeIndexer struct {
	indexed map[uint]string
	failIDs map[uint]bool
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{indexed: make(map[uint]string), failIDs: make(map[uint]bool)}
}

func (f *fakeIndexer) IndexSummary(ctx context.Context, summary *models.MemorySummary, characterName string) (string, error) {
	if f.failIDs[summary.ID] {
		return "", errors.New("embedding provider unavailable")
	}
	f.indexed[summary.ID] = characterName
	return fmt.Sprintf("emb-%d", summary.ID), nil
}

func seedSummary(t *testing.T, store *storage.MemorySummaryStore, characterID string, startTurn int) *models.MemorySummary {
	t.Helper()
	summary := &models.MemorySummary{
		GameID:             "g1",
		CharacterID:        characterID,
		WindowType:         models.WindowShort,
		StartTurn:          startTurn,
		EndTurn:            startTurn + 9,
		DescriptiveSummary: "something happened",
		CondensedSummary:   "something",
	}
	if err := store.Create(context.Background(), summary); err != nil {
		t.Fatal(err)
	}
	return summary
}

func TestRunOnceIndexesAndMarks(t *testing.T) {
	summaries := storage.NewMemorySummaryStore()
	characters := storage.NewMemoryCharacterStore()
	indexer := newFakeIndexer()
	ctx := context.Background()

	if err := characters.Save(ctx, &models.Character{ID: "alice", GameID: "g1", Name: "Alice"}); err != nil {
		t.Fatal(err)
	}
	first := seedSummary(t, summaries, "alice", 1)
	second := seedSummary(t, summaries, "alice", 11)

	b := NewBackfiller(summaries, characters, indexer, 1)
	count, err := b.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("expected 2 indexed, got %d", count)
	}
	if indexer.indexed[first.ID] != "Alice" || indexer.indexed[second.ID] != "Alice" {
		t.Fatalf("character name not resolved: %+v", indexer.indexed)
	}

	pending, err := summaries.ListUnembedded(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Fatalf("all summaries should be marked embedded, %d pending", len(pending))
	}

	indexed, failed := b.Stats()
	if indexed != 2 || failed != 0 {
		t.Fatalf("wrong stats: indexed=%d failed=%d", indexed, failed)
	}
}

func TestRunOnceLeavesFailedRowsPending(t *testing.T) {
	summaries := storage.NewMemorySummaryStore()
	characters := storage.NewMemoryCharacterStore()
	indexer := newFakeIndexer()
	ctx := context.Background()

	seedSummary(t, summaries, "alice", 1)
	broken := seedSummary(t, summaries, "alice", 11)
	indexer.failIDs[broken.ID] = true

	b := NewBackfiller(summaries, characters, indexer, 1)
	count, err := b.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected 1 indexed, got %d", count)
	}

	pending, err := summaries.ListUnembedded(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != broken.ID {
		t.Fatalf("failed row should stay pending: %+v", pending)
	}
	if _, failed := b.Stats(); failed != 1 {
		t.Fatalf("failure not counted, failed=%d", failed)
	}

	// Next pass picks the failed row up again.
	indexer.failIDs = map[uint]bool{}
	count, err = b.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("retry should index the remaining row, got %d", count)
	}
}

func TestCharacterNameFallsBackToID(t *testing.T) {
	summaries := storage.NewMemorySummaryStore()
	characters := storage.NewMemoryCharacterStore()
	indexer := newFakeIndexer()
	ctx := context.Background()

	// No character row exists for this summary.
	summary := seedSummary(t, summaries, "ghost", 1)

	b := NewBackfiller(summaries, characters, indexer, 1)
	if _, err := b.RunOnce(ctx); err != nil {
		t.Fatal(err)
	}
	if indexer.indexed[summary.ID] != "ghost" {
		t.Fatalf("missing character should fall back to the ID, got %q", indexer.indexed[summary.ID])
	}
}
