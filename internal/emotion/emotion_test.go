package emotion

import (
	"context"
	"errors"
	"testing"

	"Story-Loom/server/internal/boundary"
	"Story-Loom/server/internal/models"
	"Story-Loom/server/internal/storage"
)

func newTestMachine(t *testing.T) (*Machine, *boundary.Engine) {
	t.Helper()
	boundaries := boundary.NewEngine(storage.NewMemorySettingsStore(), nil)
	return NewMachine(storage.NewMemoryEmotionStore(), boundaries), boundaries
}

func TestLevelBreakpoints(t *testing.T) {
	m, _ := newTestMachine(t)

	cases := []struct {
		points int
		level  int
	}{
		{0, 0}, {29, 0}, {30, 1}, {59, 1}, {60, 2}, {89, 2}, {90, 3}, {119, 3}, {120, 4},
	}
	for _, c := range cases {
		if got := m.LevelFor(c.points); got != c.level {
			t.Errorf("LevelFor(%d) = %d, want %d", c.points, got, c.level)
		}
	}
}

func TestAdjustAccumulatesAndDerivesLevel(t *testing.T) {
	m, boundaries := newTestMachine(t)
	ctx := context.Background()

	// Lift the horror ceiling out of the way so fear runs ungated.
	if _, err := boundaries.SetCeiling(ctx, "g1", models.CategoryHorror, 4); err != nil {
		t.Fatal(err)
	}

	result, err := m.Adjust(ctx, "alice", "g1", "fear", 45, "bob", "drew a knife")
	if err != nil {
		t.Fatal(err)
	}
	if result.PreviousLevel != 0 || result.NewLevel != 1 || result.NewPoints != 45 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if !result.LevelChanged {
		t.Fatal("crossing a breakpoint must report a level change")
	}
	if result.ContentBoundaryHit {
		t.Fatal("ungated adjustment must not report a boundary hit")
	}

	result, err = m.Adjust(ctx, "alice", "g1", "fear", 20, "bob", "stepped closer")
	if err != nil {
		t.Fatal(err)
	}
	if result.NewPoints != 65 || result.NewLevel != 2 {
		t.Fatalf("expected 65 points at level 2, got %+v", result)
	}
}

func TestAdjustClampsUnderContentCeiling(t *testing.T) {
	m, boundaries := newTestMachine(t)
	ctx := context.Background()

	// Intimacy capped at level 2: desire may build to 59 points but never
	// reach the level-2 breakpoint's gated tier.
	if _, err := boundaries.SetCeiling(ctx, "g1", models.CategoryIntimacy, 2); err != nil {
		t.Fatal(err)
	}

	result, err := m.Adjust(ctx, "alice", "g1", "desire", 80, "bob", "")
	if err != nil {
		t.Fatal(err)
	}
	if !result.ContentBoundaryHit {
		t.Fatal("expected a boundary hit")
	}
	if result.NewPoints != 59 || result.NewLevel != 1 {
		t.Fatalf("expected clamp to 59 points / level 1, got points=%d level=%d",
			result.NewPoints, result.NewLevel)
	}
}

func TestAdjustCeilingZeroPinsToNeutral(t *testing.T) {
	m, boundaries := newTestMachine(t)
	ctx := context.Background()

	if _, err := boundaries.SetCeiling(ctx, "g1", models.CategoryViolence, 0); err != nil {
		t.Fatal(err)
	}

	result, err := m.Adjust(ctx, "alice", "g1", "anger", 50, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if result.NewPoints != 0 || result.NewLevel != 0 || !result.ContentBoundaryHit {
		t.Fatalf("ceiling 0 should pin points at 0, got %+v", result)
	}
}

func TestAdjustTopCeilingReachesBreaking(t *testing.T) {
	m, boundaries := newTestMachine(t)
	ctx := context.Background()

	if _, err := boundaries.ApplyPreset(ctx, "g1", "unrestricted"); err != nil {
		t.Fatal(err)
	}

	result, err := m.Adjust(ctx, "alice", "g1", "anger", 500, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if result.NewPoints != 120 || result.NewLevel != LevelBreaking {
		t.Fatalf("expected breaking at 120 points, got %+v", result)
	}
	if result.ContentBoundaryHit {
		t.Fatal("the 0-120 scale cap is not a content boundary hit")
	}
}

func TestAdjustFloorsAtZero(t *testing.T) {
	m, boundaries := newTestMachine(t)
	ctx := context.Background()
	if _, err := boundaries.ApplyPreset(ctx, "g1", "unrestricted"); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Adjust(ctx, "alice", "g1", "sadness", 20, "", ""); err != nil {
		t.Fatal(err)
	}
	result, err := m.Adjust(ctx, "alice", "g1", "sadness", -50, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if result.NewPoints != 0 {
		t.Fatalf("points must floor at 0, got %d", result.NewPoints)
	}
}

func TestUnknownEmotionIsUngated(t *testing.T) {
	m, _ := newTestMachine(t)

	// Default pg13 settings; "wanderlust" maps to the general category with
	// no ceiling.
	result, err := m.Adjust(context.Background(), "alice", "g1", "wanderlust", 100, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if result.ContentBoundaryHit {
		t.Fatal("unknown emotions must not be gated")
	}
	if result.NewPoints != 100 {
		t.Fatalf("expected 100 points, got %d", result.NewPoints)
	}
}

func TestCurrentDefaultsToCalm(t *testing.T) {
	m, _ := newTestMachine(t)

	state, err := m.Current(context.Background(), "alice", "g1")
	if err != nil {
		t.Fatal(err)
	}
	if state.PrimaryEmotion != DefaultEmotion || state.IntensityPoints != 0 {
		t.Fatalf("expected calm zero state, got %+v", state)
	}
	if state.Trajectory != models.TrajectoryStable {
		t.Fatalf("expected stable trajectory, got %s", state.Trajectory)
	}
}

func TestResetClearsState(t *testing.T) {
	m, boundaries := newTestMachine(t)
	ctx := context.Background()
	if _, err := boundaries.ApplyPreset(ctx, "g1", "unrestricted"); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Adjust(ctx, "alice", "g1", "anger", 70, "", ""); err != nil {
		t.Fatal(err)
	}
	if err := m.Reset(ctx, "alice", "g1"); err != nil {
		t.Fatal(err)
	}

	state, err := m.Current(ctx, "alice", "g1")
	if err != nil {
		t.Fatal(err)
	}
	if state.IntensityPoints != 0 || state.PrimaryEmotion != DefaultEmotion {
		t.Fatalf("reset did not clear the state: %+v", state)
	}
}

func TestTrajectoryVolatileOnReversal(t *testing.T) {
	m, boundaries := newTestMachine(t)
	ctx := context.Background()
	if _, err := boundaries.ApplyPreset(ctx, "g1", "unrestricted"); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Adjust(ctx, "alice", "g1", "joy", 40, "", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Adjust(ctx, "alice", "g1", "joy", -10, "", ""); err != nil {
		t.Fatal(err)
	}

	state, err := m.Current(ctx, "alice", "g1")
	if err != nil {
		t.Fatal(err)
	}
	if state.Trajectory != models.TrajectoryVolatile {
		t.Fatalf("rising then falling should read volatile, got %s", state.Trajectory)
	}
}

func TestAdjustValidatesInput(t *testing.T) {
	m, _ := newTestMachine(t)

	var validation *models.ValidationError
	if _, err := m.Adjust(context.Background(), "", "g1", "fear", 10, "", ""); !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := m.Adjust(context.Background(), "alice", "g1", "", 10, "", ""); !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCategoryFor(t *testing.T) {
	category, ceiling := CategoryFor("rage")
	if category != "conflict" || ceiling != models.CategoryViolence {
		t.Fatalf("rage should be conflict/violence, got %s/%s", category, ceiling)
	}
	category, _ = CategoryFor("no-such-emotion")
	if category != "negative" {
		t.Fatalf("unknown emotions fall back to negative, got %s", category)
	}
}
