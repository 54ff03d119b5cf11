package interfaces

import (
	"context"

	"Story-Loom/server/internal/models"
)

// The store interfaces re-host what the original backend expressed as stored
// procedures: each aggregate gets a narrow persistence contract, so the
// procedural logic (witness filtering, clamping, stage derivation) lives in
// application code and is testable against in-memory implementations.

// LedgerStore persists the append-only turn ledger.
type LedgerStore interface {
	// AppendEntry writes one entry; ErrConflict if the
	// (game, turn, character, sequence) slot is already taken.
	AppendEntry(ctx context.Context, entry *models.TurnEntry) error

	// RecentEntries returns up to rowLimit entries for the game ordered by
	// (turn_number, sequence_number) descending. Visibility filtering is the
	// caller's job.
	RecentEntries(ctx context.Context, gameID string, rowLimit int) ([]models.TurnEntry, error)

	// EntriesInRange returns entries with startTurn <= turn <= endTurn in
	// ascending (turn, sequence) order.
	EntriesInRange(ctx context.Context, gameID string, startTurn, endTurn int) ([]models.TurnEntry, error)

	// TickDurations decrements remaining_duration on every unresolved entry
	// of the game and reports how many were ticked.
	TickDurations(ctx context.Context, gameID string) (int64, error)
}

// EmotionStore persists per-(character, game) emotional state. Update runs
// the mutation under whatever read-modify-write protection the backend
// offers (row lock, single mutex) so concurrent adjustments never lose an
// update; when no row exists yet it hands the mutation a fresh zero state
// and persists the result (lazy creation).
type EmotionStore interface {
	Get(ctx context.Context, characterID, gameID string) (*models.CharacterEmotionalState, error)
	Update(ctx context.Context, characterID, gameID string, mutate func(*models.CharacterEmotionalState) error) (*models.CharacterEmotionalState, error)
	Delete(ctx context.Context, characterID, gameID string) error
}

// RelationshipStore persists directed relationship edges.
type RelationshipStore interface {
	Get(ctx context.Context, gameID, sourceID, targetID string) (*models.Relationship, error)
	Upsert(ctx context.Context, rel *models.Relationship) error
	ListBySource(ctx context.Context, gameID, sourceID string) ([]models.Relationship, error)
}

// IntentStore persists multi-turn intents.
type IntentStore interface {
	// ActiveIntent returns the single active intent of the given type, or
	// ErrNotFound.
	ActiveIntent(ctx context.Context, gameID, characterID, intentType string) (*models.CharacterIntent, error)
	ActiveIntents(ctx context.Context, gameID, characterID string) ([]models.CharacterIntent, error)
	Save(ctx context.Context, intent *models.CharacterIntent) error

	// DeactivateStale marks abandoned every active intent whose
	// last_action_turn is strictly before the cutoff, returning the count.
	DeactivateStale(ctx context.Context, gameID string, beforeTurn, completionTurn int) (int64, error)
}

// SettingsStore persists per-game content settings.
type SettingsStore interface {
	Get(ctx context.Context, gameID string) (*models.ContentSettings, error)
	Save(ctx context.Context, settings *models.ContentSettings) error
	Delete(ctx context.Context, gameID string) error
}

// SummaryStore persists tiered memory summaries.
type SummaryStore interface {
	Create(ctx context.Context, summary *models.MemorySummary) error

	// LastEndTurn returns the end_turn of the newest summary in the tier, or
	// 0 when the tier has none.
	LastEndTurn(ctx context.Context, gameID, characterID string, window models.WindowType) (int, error)

	InRange(ctx context.Context, gameID, characterID string, window models.WindowType, startTurn, endTurn int) ([]models.MemorySummary, error)

	// ListUnembedded returns summaries awaiting embedding, oldest first.
	ListUnembedded(ctx context.Context, limit int) ([]models.MemorySummary, error)

	MarkEmbedded(ctx context.Context, id uint, embeddingID string, version int) error
}

// GameStore persists games and owns the turn counter.
type GameStore interface {
	Get(ctx context.Context, gameID string) (*models.Game, error)
	Save(ctx context.Context, game *models.Game) error

	// AdvanceTurn atomically increments current_turn and returns the new
	// value.
	AdvanceTurn(ctx context.Context, gameID string) (int, error)
}

// CharacterStore persists characters.
type CharacterStore interface {
	Get(ctx context.Context, characterID string) (*models.Character, error)
	ListByGame(ctx context.Context, gameID string) ([]models.Character, error)
	Save(ctx context.Context, character *models.Character) error
}
