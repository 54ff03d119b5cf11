package boundary

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"Story-Loom/server/internal/interfaces"
	"Story-Loom/server/internal/models"
	"Story-Loom/server/internal/storage"
)

func newTestEngine() *Engine {
	return NewEngine(storage.NewMemorySettingsStore(), nil)
}

func TestSettingsDefaultWhenMissing(t *testing.T) {
	e := newTestEngine()

	settings, err := e.Settings(context.Background(), "g1")
	if err != nil {
		t.Fatal(err)
	}
	if settings.ContentRating != DefaultRating {
		t.Fatalf("expected %s default, got %s", DefaultRating, settings.ContentRating)
	}
	if settings.ViolenceMaxLevel != 2 || settings.IntimacyMaxLevel != 1 {
		t.Fatalf("wrong pg13 ceilings: %+v", settings)
	}
}

func TestDefaultIsNotPersisted(t *testing.T) {
	store := storage.NewMemorySettingsStore()
	e := NewEngine(store, nil)

	if _, err := e.Settings(context.Background(), "g1"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(context.Background(), "g1"); !errors.Is(err, interfaces.ErrNotFound) {
		t.Fatalf("reading defaults must not create a row, got %v", err)
	}
}

func TestApplyPreset(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	settings, err := e.ApplyPreset(ctx, "g1", "nc17")
	if err != nil {
		t.Fatal(err)
	}
	if settings.ViolenceMaxLevel != 4 || settings.IntimacyMaxLevel != 3 {
		t.Fatalf("wrong nc17 ceilings: %+v", settings)
	}
	if settings.FadeToBlackSex {
		t.Fatal("nc17 does not fade to black")
	}

	if _, err := e.ApplyPreset(ctx, "g1", "x-rated"); err == nil {
		t.Fatal("unknown preset must be rejected")
	}
}

func TestCanEscalate(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	if _, err := e.ApplyPreset(ctx, "g1", "pg"); err != nil {
		t.Fatal(err)
	}

	decision, err := e.CanEscalate(ctx, "g1", models.CategoryViolence, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !decision.Allowed {
		t.Fatalf("level 1 violence is allowed under pg: %+v", decision)
	}

	decision, err = e.CanEscalate(ctx, "g1", models.CategoryViolence, 3)
	if err != nil {
		t.Fatal(err)
	}
	if decision.Allowed {
		t.Fatal("level 3 violence must be denied under pg")
	}
	if decision.MaxLevel != 1 || decision.Reason == "" {
		t.Fatalf("denial must carry the ceiling and a reason: %+v", decision)
	}
}

func TestUnknownCategoryIsUnrestricted(t *testing.T) {
	e := newTestEngine()

	maxLevel, err := e.MaxLevel(context.Background(), "g1", models.ContentCategory("general"))
	if err != nil {
		t.Fatal(err)
	}
	if maxLevel != models.MaxIntensityLevel {
		t.Fatalf("unknown categories default to %d, got %d", models.MaxIntensityLevel, maxLevel)
	}
}

func TestSetCeilingMarksCustom(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	settings, err := e.SetCeiling(ctx, "g1", models.CategoryHorror, 4)
	if err != nil {
		t.Fatal(err)
	}
	if settings.ContentRating != "custom" {
		t.Fatalf("expected custom rating, got %s", settings.ContentRating)
	}
	if settings.HorrorMaxLevel != 4 {
		t.Fatalf("ceiling not applied: %+v", settings)
	}
	// Untouched categories keep the default preset's values.
	if settings.ViolenceMaxLevel != 2 {
		t.Fatalf("violence ceiling should stay at the pg13 default: %+v", settings)
	}

	if _, err := e.SetCeiling(ctx, "g1", models.CategoryHorror, 7); err == nil {
		t.Fatal("out-of-range level must be rejected")
	}
	if _, err := e.SetCeiling(ctx, "g1", models.ContentCategory("gore"), 2); err == nil {
		t.Fatal("unknown category must be rejected")
	}
}

func TestResetRevertsToDefault(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	if _, err := e.ApplyPreset(ctx, "g1", "unrestricted"); err != nil {
		t.Fatal(err)
	}
	if err := e.Reset(ctx, "g1"); err != nil {
		t.Fatal(err)
	}

	settings, err := e.Settings(ctx, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if settings.ContentRating != DefaultRating {
		t.Fatalf("reset should revert to %s, got %s", DefaultRating, settings.ContentRating)
	}
}

// fakeCache records cache traffic for the read-through tests.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*models.ContentSettings
	hits    int
	puts    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*models.ContentSettings)}
}

func (c *fakeCache) GetSettings(ctx context.Context, gameID string) (*models.ContentSettings, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	settings, ok := c.entries[gameID]
	if ok {
		c.hits++
	}
	return settings, ok
}

func (c *fakeCache) PutSettings(ctx context.Context, settings *models.ContentSettings, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	c.entries[settings.GameID] = settings
}

func (c *fakeCache) InvalidateSettings(ctx context.Context, gameID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, gameID)
}

func TestSettingsReadThroughCache(t *testing.T) {
	cache := newFakeCache()
	e := NewEngine(storage.NewMemorySettingsStore(), cache)
	ctx := context.Background()

	if _, err := e.Settings(ctx, "g1"); err != nil {
		t.Fatal(err)
	}
	if cache.puts != 1 {
		t.Fatalf("first read should fill the cache, puts=%d", cache.puts)
	}

	if _, err := e.Settings(ctx, "g1"); err != nil {
		t.Fatal(err)
	}
	if cache.hits != 1 {
		t.Fatalf("second read should hit the cache, hits=%d", cache.hits)
	}

	// Writes invalidate.
	if _, err := e.ApplyPreset(ctx, "g1", "r"); err != nil {
		t.Fatal(err)
	}
	settings, err := e.Settings(ctx, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if settings.ContentRating != "r" {
		t.Fatalf("stale cache served after invalidation: %+v", settings)
	}
}
