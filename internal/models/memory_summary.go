package models

import "time"

// WindowType labels the tier of a memory summary.
type WindowType string

const (
	WindowShort  WindowType = "short"
	WindowMedium WindowType = "medium"
	WindowLong   WindowType = "long"
)

// MemorySummary is a compressed rendering of a closed turn window. Content
// is immutable after creation; only the embedding bookkeeping fields change
// once the backfill worker has pushed the vector.
type MemorySummary struct {
	ID                 uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	GameID             string     `gorm:"size:64;index:idx_summary_window,priority:1" json:"game_id"`
	CharacterID        string     `gorm:"size:64;index:idx_summary_window,priority:2" json:"character_id"`
	WindowType         WindowType `gorm:"size:16;index:idx_summary_window,priority:3" json:"window_type"`
	StartTurn          int        `json:"start_turn"`
	EndTurn            int        `json:"end_turn"`
	DescriptiveSummary string     `gorm:"type:text" json:"descriptive_summary"`
	CondensedSummary   string     `gorm:"type:text" json:"condensed_summary"`
	IsEmbedded         bool       `gorm:"index" json:"is_embedded"`
	EmbeddingID        string     `gorm:"size:128" json:"embedding_id,omitempty"`
	EmbeddingVersion   int        `json:"embedding_version,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TurnSpan is the number of turns the window covers.
func (s *MemorySummary) TurnSpan() int {
	return s.EndTurn - s.StartTurn + 1
}

// Validate checks window bounds before the summary is stored.
func (s *MemorySummary) Validate() error {
	if s.GameID == "" {
		return invalid("game_id", "must not be empty")
	}
	if s.CharacterID == "" {
		return invalid("character_id", "must not be empty")
	}
	switch s.WindowType {
	case WindowShort, WindowMedium, WindowLong:
	default:
		return invalid("window_type", "unknown window type "+string(s.WindowType))
	}
	if s.StartTurn > s.EndTurn {
		return invalid("start_turn", "must not exceed end_turn")
	}
	return nil
}
