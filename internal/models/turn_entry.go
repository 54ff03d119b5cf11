package models

import "time"

// ActionType classifies a single ledger action.
type ActionType string

const (
	ActionThink       ActionType = "think"
	ActionSpeak       ActionType = "speak"
	ActionInteract    ActionType = "interact"
	ActionMove        ActionType = "move"
	ActionAttack      ActionType = "attack"
	ActionObserve     ActionType = "observe"
	ActionWait        ActionType = "wait"
	ActionAtmospheric ActionType = "atmospheric"
)

var actionTypes = map[ActionType]bool{
	ActionThink:       true,
	ActionSpeak:       true,
	ActionInteract:    true,
	ActionMove:        true,
	ActionAttack:      true,
	ActionObserve:     true,
	ActionWait:        true,
	ActionAtmospheric: true,
}

// TurnEntry is one atomic action within a turn. Entries are append-only:
// once written, only RemainingDuration changes (ticking down on turn
// advance), and nothing is ever deleted.
type TurnEntry struct {
	ID                uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	GameID            string     `gorm:"size:64;uniqueIndex:idx_turn_seq,priority:1;index:idx_game_turn,priority:1" json:"game_id"`
	TurnNumber        int        `gorm:"uniqueIndex:idx_turn_seq,priority:2;index:idx_game_turn,priority:2" json:"turn_number"`
	CharacterID       string     `gorm:"size:64;uniqueIndex:idx_turn_seq,priority:3" json:"character_id"`
	SequenceNumber    int        `gorm:"uniqueIndex:idx_turn_seq,priority:4" json:"sequence_number"`
	ActionType        ActionType `gorm:"size:32" json:"action_type"`
	Description       string     `gorm:"type:text" json:"description"`
	LocationID        string     `gorm:"size:64" json:"location_id"`
	IsPrivate         bool       `json:"is_private"`
	TargetCharacterID string     `gorm:"size:64" json:"target_character_id,omitempty"`
	Witnesses         StringList `gorm:"type:text" json:"witnesses"`
	SignificanceScore float64    `json:"significance_score"`
	TurnDuration      int        `json:"turn_duration"`
	RemainingDuration int        `json:"remaining_duration"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Validate checks the entry before it touches the store.
func (e *TurnEntry) Validate() error {
	if e.GameID == "" {
		return invalid("game_id", "must not be empty")
	}
	if e.CharacterID == "" {
		return invalid("character_id", "must not be empty")
	}
	if e.TurnNumber < 0 {
		return invalid("turn_number", "must not be negative")
	}
	if e.SequenceNumber < 0 {
		return invalid("sequence_number", "must not be negative")
	}
	if !actionTypes[e.ActionType] {
		return invalid("action_type", "unknown action type "+string(e.ActionType))
	}
	if e.SignificanceScore < 0 || e.SignificanceScore > 1 {
		return invalid("significance_score", "must be within [0.0, 1.0]")
	}
	if e.TurnDuration < 1 {
		return invalid("turn_duration", "must be at least 1")
	}
	if e.RemainingDuration < 0 {
		return invalid("remaining_duration", "must not be negative")
	}
	return nil
}

// VisibleTo reports whether the viewer may recall this entry. Private
// entries belong to their author alone, regardless of the witness list.
func (e *TurnEntry) VisibleTo(viewerID string) bool {
	if e.CharacterID == viewerID {
		return true
	}
	if e.IsPrivate {
		return false
	}
	return e.Witnesses.Contains(viewerID)
}
