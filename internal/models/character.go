package models

import "time"

// Character is a player or NPC participating in a game.
type Character struct {
	ID                string     `gorm:"primaryKey;size:64" json:"id"`
	GameID            string     `gorm:"index;size:64" json:"game_id"`
	Name              string     `gorm:"size:128" json:"name"`
	Description       string     `gorm:"type:text" json:"description"`
	PersonalityTraits StringList `gorm:"type:text" json:"personality_traits"`
	CurrentLocationID string     `gorm:"size:64" json:"current_location_id"`
	IsPlayer          bool       `json:"is_player"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// EmotionTrajectory describes the short-term direction of an emotional state.
type EmotionTrajectory string

const (
	TrajectoryRising   EmotionTrajectory = "rising"
	TrajectoryFalling  EmotionTrajectory = "falling"
	TrajectoryStable   EmotionTrajectory = "stable"
	TrajectoryVolatile EmotionTrajectory = "volatile"
)

// CharacterEmotionalState tracks intensity per (character, game).
// IntensityLevel is always derived from IntensityPoints via the engine's
// breakpoints; it is stored denormalized for cheap reads but never set
// independently.
type CharacterEmotionalState struct {
	ID                 uint              `gorm:"primaryKey;autoIncrement" json:"id"`
	CharacterID        string            `gorm:"size:64;uniqueIndex:idx_char_game,priority:1" json:"character_id"`
	GameID             string            `gorm:"size:64;uniqueIndex:idx_char_game,priority:2" json:"game_id"`
	PrimaryEmotion     string            `gorm:"size:64" json:"primary_emotion"`
	IntensityLevel     int               `json:"intensity_level"`
	IntensityPoints    int               `json:"intensity_points"`
	EmotionScores      ScoreMap          `gorm:"type:text" json:"emotion_scores"`
	Trajectory         EmotionTrajectory `gorm:"size:16" json:"trajectory"`
	TriggeredBy        string            `gorm:"size:64" json:"triggered_by"`
	TriggerDescription string            `gorm:"type:text" json:"trigger_description"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// RelationshipType labels a directed character relationship.
type RelationshipType string

const (
	RelationFriend       RelationshipType = "friend"
	RelationEnemy        RelationshipType = "enemy"
	RelationFamily       RelationshipType = "family"
	RelationRomantic     RelationshipType = "romantic"
	RelationProfessional RelationshipType = "professional"
	RelationNeutral      RelationshipType = "neutral"
	RelationStranger     RelationshipType = "stranger"
)

// Relationship is a directed edge source → target. A's view of B is
// independent of B's view of A, and the absence of a row means "stranger"
// with the defaults below, not zero trust.
type Relationship struct {
	ID                  uint             `gorm:"primaryKey;autoIncrement" json:"id"`
	GameID              string           `gorm:"size:64;uniqueIndex:idx_rel_edge,priority:1" json:"game_id"`
	SourceCharacterID   string           `gorm:"size:64;uniqueIndex:idx_rel_edge,priority:2" json:"source_character_id"`
	TargetCharacterID   string           `gorm:"size:64;uniqueIndex:idx_rel_edge,priority:3" json:"target_character_id"`
	Trust               float64          `json:"trust"`
	Fear                float64          `json:"fear"`
	Respect             float64          `json:"respect"`
	RelationshipType    RelationshipType `gorm:"size:32" json:"relationship_type"`
	InteractionCount    int              `json:"interaction_count"`
	LastInteractionTurn int              `json:"last_interaction_turn"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// Stranger defaults, implied whenever no relationship row exists.
const (
	StrangerTrust   = 0.5
	StrangerFear    = 0.0
	StrangerRespect = 0.5
)

// DefaultRelationship returns the implied stranger edge for a missing row.
func DefaultRelationship(gameID, sourceID, targetID string) *Relationship {
	return &Relationship{
		GameID:            gameID,
		SourceCharacterID: sourceID,
		TargetCharacterID: targetID,
		Trust:             StrangerTrust,
		Fear:              StrangerFear,
		Respect:           StrangerRespect,
		RelationshipType:  RelationStranger,
	}
}
