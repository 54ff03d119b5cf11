package relationship

import (
	"context"
	"errors"
	"math"
	"testing"

	"Story-Loom/server/internal/interfaces"
	"Story-Loom/server/internal/models"
	"Story-Loom/server/internal/storage"
)

func newTestService() *Service {
	return NewService(storage.NewMemoryRelationshipStore())
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSummaryDefaultsToStranger(t *testing.T) {
	svc := newTestService()

	rel, err := svc.Summary(context.Background(), "g1", "alice", "bob")
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(rel.Trust, models.StrangerTrust) ||
		!almostEqual(rel.Fear, models.StrangerFear) ||
		!almostEqual(rel.Respect, models.StrangerRespect) {
		t.Fatalf("wrong stranger defaults: %+v", rel)
	}
	if rel.RelationshipType != models.RelationStranger {
		t.Fatalf("expected stranger type, got %s", rel.RelationshipType)
	}

	// The implied default is not persisted.
	if _, err := svc.Get(context.Background(), "g1", "alice", "bob"); !errors.Is(err, interfaces.ErrNotFound) {
		t.Fatalf("summary must not create a row, got %v", err)
	}
}

func TestAdjustCreatesFromDefaults(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	rel, err := svc.Adjust(ctx, "g1", "alice", "bob", Delta{Trust: 0.2, Fear: 0.1}, 4)
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(rel.Trust, 0.7) || !almostEqual(rel.Fear, 0.1) || !almostEqual(rel.Respect, 0.5) {
		t.Fatalf("deltas apply on top of stranger defaults: %+v", rel)
	}
	if rel.InteractionCount != 1 || rel.LastInteractionTurn != 4 {
		t.Fatalf("interaction bookkeeping wrong: %+v", rel)
	}
}

func TestAdjustClampsToUnitRange(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	rel, err := svc.Adjust(ctx, "g1", "alice", "bob", Delta{Trust: 5, Fear: -2}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(rel.Trust, 1) || !almostEqual(rel.Fear, 0) {
		t.Fatalf("dimensions must clamp to [0,1]: %+v", rel)
	}
}

func TestAdjustIsDirectional(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Adjust(ctx, "g1", "alice", "bob", Delta{Trust: 0.3}, 1); err != nil {
		t.Fatal(err)
	}

	// Bob's view of Alice is untouched.
	back, err := svc.Summary(ctx, "g1", "bob", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(back.Trust, models.StrangerTrust) {
		t.Fatalf("reverse edge must stay at defaults: %+v", back)
	}
}

func TestAdjustRejectsSelfEdge(t *testing.T) {
	svc := newTestService()

	var validation *models.ValidationError
	_, err := svc.Adjust(context.Background(), "g1", "alice", "alice", Delta{Trust: 0.1}, 1)
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSetOverwrites(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	rel, err := svc.Set(ctx, "g1", "alice", "bob", Values{
		Trust: 0.9, Fear: 0.05, Respect: 0.8, Type: models.RelationFriend,
	}, 7)
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(rel.Trust, 0.9) || rel.RelationshipType != models.RelationFriend {
		t.Fatalf("set did not apply: %+v", rel)
	}

	if _, err := svc.Set(ctx, "g1", "alice", "bob", Values{Trust: 1.5}, 8); err == nil {
		t.Fatal("out-of-range values must be rejected")
	}
}

func TestPerceivedListsOnlyStoredEdges(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Adjust(ctx, "g1", "alice", "bob", Delta{Trust: 0.1}, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Adjust(ctx, "g1", "alice", "carol", Delta{Fear: 0.2}, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Adjust(ctx, "g1", "bob", "alice", Delta{Respect: 0.2}, 1); err != nil {
		t.Fatal(err)
	}

	edges, err := svc.Perceived(ctx, "g1", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 2 {
		t.Fatalf("expected alice's 2 outgoing edges, got %d", len(edges))
	}
	if edges[0].TargetCharacterID != "bob" || edges[1].TargetCharacterID != "carol" {
		t.Fatalf("wrong edge ordering: %+v", edges)
	}
}
