package ledger

import (
	"context"
	"errors"
	"testing"

	"Story-Loom/server/internal/models"
	"Story-Loom/server/internal/storage"
)

func newTestService() *Service {
	return NewService(storage.NewMemoryLedgerStore())
}

func entry(game string, turn int, character string, seq int) *models.TurnEntry {
	return &models.TurnEntry{
		GameID:         game,
		TurnNumber:     turn,
		CharacterID:    character,
		SequenceNumber: seq,
		ActionType:     models.ActionSpeak,
		Description:    "says something",
		TurnDuration:   1,
	}
}

func TestRecordRejectsDuplicateSequence(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if err := svc.Record(ctx, entry("g1", 5, "alice", 0)); err != nil {
		t.Fatalf("first record failed: %v", err)
	}
	err := svc.Record(ctx, entry("g1", 5, "alice", 0))
	if !errors.Is(err, ErrDuplicateSequence) {
		t.Fatalf("expected ErrDuplicateSequence, got %v", err)
	}

	// Same slot for a different character is a separate ledger line.
	if err := svc.Record(ctx, entry("g1", 5, "bob", 0)); err != nil {
		t.Fatalf("different character same slot should succeed: %v", err)
	}
}

func TestRecordValidates(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	bad := entry("g1", 1, "alice", 0)
	bad.ActionType = "dance"
	var validation *models.ValidationError
	if err := svc.Record(ctx, bad); !errors.As(err, &validation) {
		t.Fatalf("expected validation error for unknown action type, got %v", err)
	}

	bad = entry("g1", 1, "alice", 0)
	bad.SignificanceScore = 1.5
	if err := svc.Record(ctx, bad); !errors.As(err, &validation) {
		t.Fatalf("expected validation error for significance score, got %v", err)
	}
}

func TestRecordDefaultsRemainingDuration(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	e := entry("g1", 1, "alice", 0)
	e.TurnDuration = 3
	if err := svc.Record(ctx, e); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if e.RemainingDuration != 2 {
		t.Fatalf("expected remaining duration 2, got %d", e.RemainingDuration)
	}
}

func TestWitnessedVisibility(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	// Alice thinks privately with Bob listed as witness: private wins.
	private := entry("g1", 1, "alice", 0)
	private.ActionType = models.ActionThink
	private.IsPrivate = true
	private.Witnesses = models.StringList{"bob"}
	if err := svc.Record(ctx, private); err != nil {
		t.Fatal(err)
	}

	// Alice speaks publicly with Bob witnessing.
	public := entry("g1", 1, "alice", 1)
	public.Witnesses = models.StringList{"bob"}
	if err := svc.Record(ctx, public); err != nil {
		t.Fatal(err)
	}

	// Carol acts with no witnesses.
	unseen := entry("g1", 1, "carol", 0)
	if err := svc.Record(ctx, unseen); err != nil {
		t.Fatal(err)
	}

	// Atmospheric scene-setting is excluded from everyone's recall.
	atmo := entry("g1", 1, "narrator", 0)
	atmo.ActionType = models.ActionAtmospheric
	atmo.Witnesses = models.StringList{"alice", "bob", "carol"}
	if err := svc.Record(ctx, atmo); err != nil {
		t.Fatal(err)
	}

	bobView, err := svc.Witnessed(ctx, "g1", "bob", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(bobView) != 1 {
		t.Fatalf("bob should see exactly the public entry, got %d entries", len(bobView))
	}
	if bobView[0].SequenceNumber != 1 {
		t.Fatalf("bob saw the wrong entry: %+v", bobView[0])
	}

	aliceView, err := svc.Witnessed(ctx, "g1", "alice", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(aliceView) != 2 {
		t.Fatalf("alice should see both of her own entries, got %d", len(aliceView))
	}
}

func TestWitnessedTurnLimitAndOrder(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	for turn := 1; turn <= 6; turn++ {
		e := entry("g1", turn, "alice", 0)
		if err := svc.Record(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	view, err := svc.Witnessed(ctx, "g1", "alice", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(view) != 3 {
		t.Fatalf("expected 3 turns of history, got %d entries", len(view))
	}
	// Newest first.
	if view[0].TurnNumber != 6 || view[2].TurnNumber != 4 {
		t.Fatalf("wrong order or window: turns %d..%d", view[0].TurnNumber, view[2].TurnNumber)
	}
}

func TestWindowRejectsInvertedRange(t *testing.T) {
	svc := newTestService()
	var validation *models.ValidationError
	if _, err := svc.Window(context.Background(), "g1", 5, 2); !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTickDurations(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	long := entry("g1", 1, "alice", 0)
	long.TurnDuration = 3
	if err := svc.Record(ctx, long); err != nil {
		t.Fatal(err)
	}
	instant := entry("g1", 1, "bob", 0)
	if err := svc.Record(ctx, instant); err != nil {
		t.Fatal(err)
	}

	ticked, err := svc.TickDurations(ctx, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if ticked != 1 {
		t.Fatalf("only the unresolved entry should tick, got %d", ticked)
	}
}
