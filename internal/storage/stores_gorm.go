package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"Story-Loom/server/internal/interfaces"
	"Story-Loom/server/internal/models"
)

// mapErr translates gorm sentinel errors into the store-level taxonomy.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return interfaces.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return interfaces.ErrConflict
	default:
		return err
	}
}

// GormLedgerStore implements interfaces.LedgerStore on MySQL.
type GormLedgerStore struct {
	db *gorm.DB
}

func NewGormLedgerStore(db *gorm.DB) *GormLedgerStore {
	return &GormLedgerStore{db: db}
}

func (s *GormLedgerStore) AppendEntry(ctx context.Context, entry *models.TurnEntry) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append entry: %w", mapErr(err))
	}
	return nil
}

func (s *GormLedgerStore) RecentEntries(ctx context.Context, gameID string, rowLimit int) ([]models.TurnEntry, error) {
	var entries []models.TurnEntry
	err := s.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("turn_number DESC, sequence_number DESC").
		Limit(rowLimit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recent entries: %w", err)
	}
	return entries, nil
}

func (s *GormLedgerStore) EntriesInRange(ctx context.Context, gameID string, startTurn, endTurn int) ([]models.TurnEntry, error) {
	var entries []models.TurnEntry
	err := s.db.WithContext(ctx).
		Where("game_id = ? AND turn_number BETWEEN ? AND ?", gameID, startTurn, endTurn).
		Order("turn_number ASC, sequence_number ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load entry range: %w", err)
	}
	return entries, nil
}

func (s *GormLedgerStore) TickDurations(ctx context.Context, gameID string) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.TurnEntry{}).
		Where("game_id = ? AND remaining_duration > 0", gameID).
		UpdateColumn("remaining_duration", gorm.Expr("remaining_duration - 1"))
	if res.Error != nil {
		return 0, fmt.Errorf("failed to tick durations: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// GormEmotionStore implements interfaces.EmotionStore. Update takes a row
// lock for the read-modify-write so concurrent adjustments serialize.
type GormEmotionStore struct {
	db *gorm.DB
}

func NewGormEmotionStore(db *gorm.DB) *GormEmotionStore {
	return &GormEmotionStore{db: db}
}

func (s *GormEmotionStore) Get(ctx context.Context, characterID, gameID string) (*models.CharacterEmotionalState, error) {
	var state models.CharacterEmotionalState
	err := s.db.WithContext(ctx).
		Where("character_id = ? AND game_id = ?", characterID, gameID).
		First(&state).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &state, nil
}

func (s *GormEmotionStore) Update(ctx context.Context, characterID, gameID string, mutate func(*models.CharacterEmotionalState) error) (*models.CharacterEmotionalState, error) {
	var state models.CharacterEmotionalState

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("character_id = ? AND game_id = ?", characterID, gameID).
			First(&state).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			state = models.CharacterEmotionalState{
				CharacterID:   characterID,
				GameID:        gameID,
				EmotionScores: models.ScoreMap{},
			}
		} else if err != nil {
			return err
		}

		if err := mutate(&state); err != nil {
			return err
		}
		return tx.Save(&state).Error
	})
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *GormEmotionStore) Delete(ctx context.Context, characterID, gameID string) error {
	err := s.db.WithContext(ctx).
		Where("character_id = ? AND game_id = ?", characterID, gameID).
		Delete(&models.CharacterEmotionalState{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete emotional state: %w", err)
	}
	return nil
}

// GormRelationshipStore implements interfaces.RelationshipStore.
type GormRelationshipStore struct {
	db *gorm.DB
}

func NewGormRelationshipStore(db *gorm.DB) *GormRelationshipStore {
	return &GormRelationshipStore{db: db}
}

func (s *GormRelationshipStore) Get(ctx context.Context, gameID, sourceID, targetID string) (*models.Relationship, error) {
	var rel models.Relationship
	err := s.db.WithContext(ctx).
		Where("game_id = ? AND source_character_id = ? AND target_character_id = ?", gameID, sourceID, targetID).
		First(&rel).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &rel, nil
}

func (s *GormRelationshipStore) Upsert(ctx context.Context, rel *models.Relationship) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "game_id"}, {Name: "source_character_id"}, {Name: "target_character_id"}},
			UpdateAll: true,
		}).
		Create(rel).Error
	if err != nil {
		return fmt.Errorf("failed to upsert relationship: %w", err)
	}
	return nil
}

func (s *GormRelationshipStore) ListBySource(ctx context.Context, gameID, sourceID string) ([]models.Relationship, error) {
	var rels []models.Relationship
	err := s.db.WithContext(ctx).
		Where("game_id = ? AND source_character_id = ?", gameID, sourceID).
		Order("target_character_id ASC").
		Find(&rels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}
	return rels, nil
}

// GormIntentStore implements interfaces.IntentStore.
type GormIntentStore struct {
	db *gorm.DB
}

func NewGormIntentStore(db *gorm.DB) *GormIntentStore {
	return &GormIntentStore{db: db}
}

func (s *GormIntentStore) ActiveIntent(ctx context.Context, gameID, characterID, intentType string) (*models.CharacterIntent, error) {
	var intent models.CharacterIntent
	err := s.db.WithContext(ctx).
		Where("game_id = ? AND character_id = ? AND intent_type = ? AND is_active = ?", gameID, characterID, intentType, true).
		First(&intent).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &intent, nil
}

func (s *GormIntentStore) ActiveIntents(ctx context.Context, gameID, characterID string) ([]models.CharacterIntent, error) {
	var intents []models.CharacterIntent
	err := s.db.WithContext(ctx).
		Where("game_id = ? AND character_id = ? AND is_active = ?", gameID, characterID, true).
		Order("intent_type ASC").
		Find(&intents).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active intents: %w", err)
	}
	return intents, nil
}

func (s *GormIntentStore) Save(ctx context.Context, intent *models.CharacterIntent) error {
	if err := s.db.WithContext(ctx).Save(intent).Error; err != nil {
		return fmt.Errorf("failed to save intent: %w", mapErr(err))
	}
	return nil
}

func (s *GormIntentStore) DeactivateStale(ctx context.Context, gameID string, beforeTurn, completionTurn int) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.CharacterIntent{}).
		Where("game_id = ? AND is_active = ? AND last_action_turn < ?", gameID, true, beforeTurn).
		Updates(map[string]interface{}{
			"is_active":         false,
			"completion_status": models.IntentAbandoned,
			"completion_turn":   completionTurn,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to deactivate stale intents: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// GormSettingsStore implements interfaces.SettingsStore.
type GormSettingsStore struct {
	db *gorm.DB
}

func NewGormSettingsStore(db *gorm.DB) *GormSettingsStore {
	return &GormSettingsStore{db: db}
}

func (s *GormSettingsStore) Get(ctx context.Context, gameID string) (*models.ContentSettings, error) {
	var settings models.ContentSettings
	err := s.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		First(&settings).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &settings, nil
}

func (s *GormSettingsStore) Save(ctx context.Context, settings *models.ContentSettings) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "game_id"}},
			UpdateAll: true,
		}).
		Create(settings).Error
	if err != nil {
		return fmt.Errorf("failed to save content settings: %w", err)
	}
	return nil
}

func (s *GormSettingsStore) Delete(ctx context.Context, gameID string) error {
	err := s.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Delete(&models.ContentSettings{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete content settings: %w", err)
	}
	return nil
}

// GormSummaryStore implements interfaces.SummaryStore.
type GormSummaryStore struct {
	db *gorm.DB
}

func NewGormSummaryStore(db *gorm.DB) *GormSummaryStore {
	return &GormSummaryStore{db: db}
}

func (s *GormSummaryStore) Create(ctx context.Context, summary *models.MemorySummary) error {
	if err := s.db.WithContext(ctx).Create(summary).Error; err != nil {
		return fmt.Errorf("failed to create summary: %w", mapErr(err))
	}
	return nil
}

func (s *GormSummaryStore) LastEndTurn(ctx context.Context, gameID, characterID string, window models.WindowType) (int, error) {
	var summary models.MemorySummary
	err := s.db.WithContext(ctx).
		Where("game_id = ? AND character_id = ? AND window_type = ?", gameID, characterID, window).
		Order("end_turn DESC").
		First(&summary).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to find last summary: %w", err)
	}
	return summary.EndTurn, nil
}

func (s *GormSummaryStore) InRange(ctx context.Context, gameID, characterID string, window models.WindowType, startTurn, endTurn int) ([]models.MemorySummary, error) {
	var summaries []models.MemorySummary
	err := s.db.WithContext(ctx).
		Where("game_id = ? AND character_id = ? AND window_type = ? AND start_turn >= ? AND end_turn <= ?",
			gameID, characterID, window, startTurn, endTurn).
		Order("start_turn ASC").
		Find(&summaries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load summary range: %w", err)
	}
	return summaries, nil
}

func (s *GormSummaryStore) ListUnembedded(ctx context.Context, limit int) ([]models.MemorySummary, error) {
	var summaries []models.MemorySummary
	err := s.db.WithContext(ctx).
		Where("is_embedded = ?", false).
		Order("id ASC").
		Limit(limit).
		Find(&summaries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list unembedded summaries: %w", err)
	}
	return summaries, nil
}

func (s *GormSummaryStore) MarkEmbedded(ctx context.Context, id uint, embeddingID string, version int) error {
	res := s.db.WithContext(ctx).
		Model(&models.MemorySummary{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_embedded":       true,
			"embedding_id":      embeddingID,
			"embedding_version": version,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark summary embedded: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return interfaces.ErrNotFound
	}
	return nil
}

// GormGameStore implements interfaces.GameStore.
type GormGameStore struct {
	db *gorm.DB
}

func NewGormGameStore(db *gorm.DB) *GormGameStore {
	return &GormGameStore{db: db}
}

func (s *GormGameStore) Get(ctx context.Context, gameID string) (*models.Game, error) {
	var game models.Game
	if err := s.db.WithContext(ctx).First(&game, "id = ?", gameID).Error; err != nil {
		return nil, mapErr(err)
	}
	return &game, nil
}

func (s *GormGameStore) Save(ctx context.Context, game *models.Game) error {
	if err := s.db.WithContext(ctx).Save(game).Error; err != nil {
		return fmt.Errorf("failed to save game: %w", mapErr(err))
	}
	return nil
}

func (s *GormGameStore) AdvanceTurn(ctx context.Context, gameID string) (int, error) {
	var newTurn int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var game models.Game
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&game, "id = ?", gameID).Error
		if err != nil {
			return mapErr(err)
		}
		game.CurrentTurn++
		newTurn = game.CurrentTurn
		return tx.Save(&game).Error
	})
	if err != nil {
		return 0, err
	}
	return newTurn, nil
}

// GormCharacterStore implements interfaces.CharacterStore.
type GormCharacterStore struct {
	db *gorm.DB
}

func NewGormCharacterStore(db *gorm.DB) *GormCharacterStore {
	return &GormCharacterStore{db: db}
}

func (s *GormCharacterStore) Get(ctx context.Context, characterID string) (*models.Character, error) {
	var character models.Character
	if err := s.db.WithContext(ctx).First(&character, "id = ?", characterID).Error; err != nil {
		return nil, mapErr(err)
	}
	return &character, nil
}

func (s *GormCharacterStore) ListByGame(ctx context.Context, gameID string) ([]models.Character, error) {
	var characters []models.Character
	err := s.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("id ASC").
		Find(&characters).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list characters: %w", err)
	}
	return characters, nil
}

func (s *GormCharacterStore) Save(ctx context.Context, character *models.Character) error {
	if err := s.db.WithContext(ctx).Save(character).Error; err != nil {
		return fmt.Errorf("failed to save character: %w", mapErr(err))
	}
	return nil
}
