package models

import "time"

// Game is one narrative session; its CurrentTurn counter is the source of
// truth for turn advancement.
type Game struct {
	ID            string    `gorm:"primaryKey;size:64" json:"id"`
	Title         string    `gorm:"size:255" json:"title"`
	Status        string    `gorm:"size:32" json:"status"` // "active", "paused", "ended"
	CurrentTurn   int       `json:"current_turn"`
	ContentRating string    `gorm:"size:16" json:"content_rating"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
