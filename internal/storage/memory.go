package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"Story-Loom/server/internal/interfaces"
	"Story-Loom/server/internal/models"
)

// The in-memory stores mirror the MySQL semantics closely enough to back
// unit tests and a database-less dev server: same ordering, same sentinel
// errors, same uniqueness rules.

// MemoryLedgerStore is an in-memory interfaces.LedgerStore.
type MemoryLedgerStore struct {
	mu      sync.RWMutex
	entries []models.TurnEntry
	nextID  uint
}

func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{nextID: 1}
}

func (s *MemoryLedgerStore) AppendEntry(ctx context.Context, entry *models.TurnEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.GameID == entry.GameID && e.TurnNumber == entry.TurnNumber &&
			e.CharacterID == entry.CharacterID && e.SequenceNumber == entry.SequenceNumber {
			return interfaces.ErrConflict
		}
	}
	entry.ID = s.nextID
	s.nextID++
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *MemoryLedgerStore) RecentEntries(ctx context.Context, gameID string, rowLimit int) ([]models.TurnEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.TurnEntry
	for _, e := range s.entries {
		if e.GameID == gameID {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].TurnNumber != matched[j].TurnNumber {
			return matched[i].TurnNumber > matched[j].TurnNumber
		}
		return matched[i].SequenceNumber > matched[j].SequenceNumber
	})
	if rowLimit > 0 && len(matched) > rowLimit {
		matched = matched[:rowLimit]
	}
	return matched, nil
}

func (s *MemoryLedgerStore) EntriesInRange(ctx context.Context, gameID string, startTurn, endTurn int) ([]models.TurnEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.TurnEntry
	for _, e := range s.entries {
		if e.GameID == gameID && e.TurnNumber >= startTurn && e.TurnNumber <= endTurn {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].TurnNumber != matched[j].TurnNumber {
			return matched[i].TurnNumber < matched[j].TurnNumber
		}
		return matched[i].SequenceNumber < matched[j].SequenceNumber
	})
	return matched, nil
}

func (s *MemoryLedgerStore) TickDurations(ctx context.Context, gameID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ticked int64
	for i := range s.entries {
		if s.entries[i].GameID == gameID && s.entries[i].RemainingDuration > 0 {
			s.entries[i].RemainingDuration--
			ticked++
		}
	}
	return ticked, nil
}

// MemoryEmotionStore is an in-memory interfaces.EmotionStore.
type MemoryEmotionStore struct {
	mu     sync.Mutex
	states map[string]*models.CharacterEmotionalState
}

func NewMemoryEmotionStore() *MemoryEmotionStore {
	return &MemoryEmotionStore{states: make(map[string]*models.CharacterEmotionalState)}
}

func emotionKey(characterID, gameID string) string {
	return characterID + "|" + gameID
}

func (s *MemoryEmotionStore) Get(ctx context.Context, characterID, gameID string) (*models.CharacterEmotionalState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[emotionKey(characterID, gameID)]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	copied := *state
	return &copied, nil
}

func (s *MemoryEmotionStore) Update(ctx context.Context, characterID, gameID string, mutate func(*models.CharacterEmotionalState) error) (*models.CharacterEmotionalState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := emotionKey(characterID, gameID)
	state, ok := s.states[key]
	if !ok {
		state = &models.CharacterEmotionalState{
			CharacterID:   characterID,
			GameID:        gameID,
			EmotionScores: models.ScoreMap{},
		}
	}

	working := *state
	if err := mutate(&working); err != nil {
		return nil, err
	}
	working.UpdatedAt = time.Now()
	s.states[key] = &working

	copied := working
	return &copied, nil
}

func (s *MemoryEmotionStore) Delete(ctx context.Context, characterID, gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, emotionKey(characterID, gameID))
	return nil
}

// MemoryRelationshipStore is an in-memory interfaces.RelationshipStore.
type MemoryRelationshipStore struct {
	mu    sync.RWMutex
	edges map[string]*models.Relationship
}

func NewMemoryRelationshipStore() *MemoryRelationshipStore {
	return &MemoryRelationshipStore{edges: make(map[string]*models.Relationship)}
}

func edgeKey(gameID, sourceID, targetID string) string {
	return gameID + "|" + sourceID + "|" + targetID
}

func (s *MemoryRelationshipStore) Get(ctx context.Context, gameID, sourceID, targetID string) (*models.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rel, ok := s.edges[edgeKey(gameID, sourceID, targetID)]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	copied := *rel
	return &copied, nil
}

func (s *MemoryRelationshipStore) Upsert(ctx context.Context, rel *models.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *rel
	copied.UpdatedAt = time.Now()
	s.edges[edgeKey(rel.GameID, rel.SourceCharacterID, rel.TargetCharacterID)] = &copied
	return nil
}

func (s *MemoryRelationshipStore) ListBySource(ctx context.Context, gameID, sourceID string) ([]models.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rels []models.Relationship
	for _, rel := range s.edges {
		if rel.GameID == gameID && rel.SourceCharacterID == sourceID {
			rels = append(rels, *rel)
		}
	}
	sort.Slice(rels, func(i, j int) bool {
		return rels[i].TargetCharacterID < rels[j].TargetCharacterID
	})
	return rels, nil
}

// MemoryIntentStore is an in-memory interfaces.IntentStore.
type MemoryIntentStore struct {
	mu      sync.Mutex
	intents []*models.CharacterIntent
	nextID  uint
}

func NewMemoryIntentStore() *MemoryIntentStore {
	return &MemoryIntentStore{nextID: 1}
}

func (s *MemoryIntentStore) ActiveIntent(ctx context.Context, gameID, characterID, intentType string) (*models.CharacterIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, intent := range s.intents {
		if intent.GameID == gameID && intent.CharacterID == characterID &&
			intent.IntentType == intentType && intent.IsActive {
			copied := *intent
			return &copied, nil
		}
	}
	return nil, interfaces.ErrNotFound
}

func (s *MemoryIntentStore) ActiveIntents(ctx context.Context, gameID, characterID string) ([]models.CharacterIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var active []models.CharacterIntent
	for _, intent := range s.intents {
		if intent.GameID == gameID && intent.CharacterID == characterID && intent.IsActive {
			active = append(active, *intent)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].IntentType < active[j].IntentType })
	return active, nil
}

func (s *MemoryIntentStore) Save(ctx context.Context, intent *models.CharacterIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if intent.ID == 0 {
		intent.ID = s.nextID
		s.nextID++
		copied := *intent
		s.intents = append(s.intents, &copied)
		return nil
	}
	for i, existing := range s.intents {
		if existing.ID == intent.ID {
			copied := *intent
			s.intents[i] = &copied
			return nil
		}
	}
	copied := *intent
	s.intents = append(s.intents, &copied)
	return nil
}

func (s *MemoryIntentStore) DeactivateStale(ctx context.Context, gameID string, beforeTurn, completionTurn int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deactivated int64
	for _, intent := range s.intents {
		if intent.GameID == gameID && intent.IsActive && intent.LastActionTurn < beforeTurn {
			intent.IsActive = false
			intent.CompletionStatus = models.IntentAbandoned
			intent.CompletionTurn = completionTurn
			deactivated++
		}
	}
	return deactivated, nil
}

// MemorySettingsStore is an in-memory interfaces.SettingsStore.
type MemorySettingsStore struct {
	mu       sync.RWMutex
	settings map[string]*models.ContentSettings
}

func NewMemorySettingsStore() *MemorySettingsStore {
	return &MemorySettingsStore{settings: make(map[string]*models.ContentSettings)}
}

func (s *MemorySettingsStore) Get(ctx context.Context, gameID string) (*models.ContentSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings, ok := s.settings[gameID]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	copied := *settings
	return &copied, nil
}

func (s *MemorySettingsStore) Save(ctx context.Context, settings *models.ContentSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *settings
	copied.UpdatedAt = time.Now()
	s.settings[settings.GameID] = &copied
	return nil
}

func (s *MemorySettingsStore) Delete(ctx context.Context, gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.settings, gameID)
	return nil
}

// MemorySummaryStore is an in-memory interfaces.SummaryStore.
type MemorySummaryStore struct {
	mu        sync.Mutex
	summaries []*models.MemorySummary
	nextID    uint
}

func NewMemorySummaryStore() *MemorySummaryStore {
	return &MemorySummaryStore{nextID: 1}
}

func (s *MemorySummaryStore) Create(ctx context.Context, summary *models.MemorySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary.ID = s.nextID
	s.nextID++
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now()
	}
	copied := *summary
	s.summaries = append(s.summaries, &copied)
	return nil
}

func (s *MemorySummaryStore) LastEndTurn(ctx context.Context, gameID, characterID string, window models.WindowType) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	last := 0
	for _, sum := range s.summaries {
		if sum.GameID == gameID && sum.CharacterID == characterID &&
			sum.WindowType == window && sum.EndTurn > last {
			last = sum.EndTurn
		}
	}
	return last, nil
}

func (s *MemorySummaryStore) InRange(ctx context.Context, gameID, characterID string, window models.WindowType, startTurn, endTurn int) ([]models.MemorySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.MemorySummary
	for _, sum := range s.summaries {
		if sum.GameID == gameID && sum.CharacterID == characterID && sum.WindowType == window &&
			sum.StartTurn >= startTurn && sum.EndTurn <= endTurn {
			matched = append(matched, *sum)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].StartTurn < matched[j].StartTurn })
	return matched, nil
}

func (s *MemorySummaryStore) ListUnembedded(ctx context.Context, limit int) ([]models.MemorySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []models.MemorySummary
	for _, sum := range s.summaries {
		if !sum.IsEmbedded {
			pending = append(pending, *sum)
			if limit > 0 && len(pending) >= limit {
				break
			}
		}
	}
	return pending, nil
}

func (s *MemorySummaryStore) MarkEmbedded(ctx context.Context, id uint, embeddingID string, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sum := range s.summaries {
		if sum.ID == id {
			sum.IsEmbedded = true
			sum.EmbeddingID = embeddingID
			sum.EmbeddingVersion = version
			sum.UpdatedAt = time.Now()
			return nil
		}
	}
	return interfaces.ErrNotFound
}

// MemoryGameStore is an in-memory interfaces.GameStore.
type MemoryGameStore struct {
	mu    sync.Mutex
	games map[string]*models.Game
}

func NewMemoryGameStore() *MemoryGameStore {
	return &MemoryGameStore{games: make(map[string]*models.Game)}
}

func (s *MemoryGameStore) Get(ctx context.Context, gameID string) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	game, ok := s.games[gameID]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	copied := *game
	return &copied, nil
}

func (s *MemoryGameStore) Save(ctx context.Context, game *models.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *game
	copied.UpdatedAt = time.Now()
	s.games[game.ID] = &copied
	return nil
}

func (s *MemoryGameStore) AdvanceTurn(ctx context.Context, gameID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	game, ok := s.games[gameID]
	if !ok {
		return 0, interfaces.ErrNotFound
	}
	game.CurrentTurn++
	game.UpdatedAt = time.Now()
	return game.CurrentTurn, nil
}

// MemoryCharacterStore is an in-memory interfaces.CharacterStore.
type MemoryCharacterStore struct {
	mu         sync.RWMutex
	characters map[string]*models.Character
}

func NewMemoryCharacterStore() *MemoryCharacterStore {
	return &MemoryCharacterStore{characters: make(map[string]*models.Character)}
}

func (s *MemoryCharacterStore) Get(ctx context.Context, characterID string) (*models.Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	character, ok := s.characters[characterID]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	copied := *character
	return &copied, nil
}

func (s *MemoryCharacterStore) ListByGame(ctx context.Context, gameID string) ([]models.Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var characters []models.Character
	for _, c := range s.characters {
		if c.GameID == gameID {
			characters = append(characters, *c)
		}
	}
	sort.Slice(characters, func(i, j int) bool { return characters[i].ID < characters[j].ID })
	return characters, nil
}

func (s *MemoryCharacterStore) Save(ctx context.Context, character *models.Character) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *character
	copied.UpdatedAt = time.Now()
	s.characters[character.ID] = &copied
	return nil
}
