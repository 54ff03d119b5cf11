package models

import "time"

// CompletionStatus is the terminal state of a finished intent.
type CompletionStatus string

const (
	IntentAchieved    CompletionStatus = "achieved"
	IntentAbandoned   CompletionStatus = "abandoned"
	IntentInterrupted CompletionStatus = "interrupted"
	IntentRejected    CompletionStatus = "rejected"
)

// CharacterIntent is a multi-turn goal. At most one active intent of a given
// type exists per (character, game); starting a new pursuit of the same type
// updates the existing row. CurrentStage is always derivable from
// ProgressLevel via the owning chain's stage ranges.
type CharacterIntent struct {
	ID                uint             `gorm:"primaryKey;autoIncrement" json:"id"`
	GameID            string           `gorm:"size:64;index:idx_intent_active,priority:1" json:"game_id"`
	CharacterID       string           `gorm:"size:64;index:idx_intent_active,priority:2" json:"character_id"`
	IntentType        string           `gorm:"size:32;index:idx_intent_active,priority:3" json:"intent_type"`
	TargetCharacterID string           `gorm:"size:64" json:"target_character_id,omitempty"`
	TargetObject      string           `gorm:"size:128" json:"target_object,omitempty"`
	ProgressLevel     int              `json:"progress_level"`
	CurrentStage      string           `gorm:"size:64" json:"current_stage"`
	Intensity         int              `json:"intensity"`
	ApproachStyle     string           `gorm:"size:64" json:"approach_style"`
	StartedTurn       int              `json:"started_turn"`
	LastActionTurn    int              `json:"last_action_turn"`
	IsActive          bool             `gorm:"index:idx_intent_active,priority:4" json:"is_active"`
	CompletionStatus  CompletionStatus `gorm:"size:16" json:"completion_status,omitempty"`
	CompletionTurn    int              `json:"completion_turn,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}
