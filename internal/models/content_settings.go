package models

import "time"

// ContentCategory names one gated dimension of content intensity.
type ContentCategory string

const (
	CategoryViolence ContentCategory = "violence"
	CategoryRomance  ContentCategory = "romance"
	CategoryIntimacy ContentCategory = "intimacy"
	CategoryLanguage ContentCategory = "language"
	CategoryHorror   ContentCategory = "horror"
)

// ContentSettings holds the per-game intensity ceilings, one row per game.
// Absence of a row implies the pg13 preset.
type ContentSettings struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	GameID           string    `gorm:"size:64;uniqueIndex" json:"game_id"`
	ContentRating    string    `gorm:"size:16" json:"content_rating"`
	ViolenceMaxLevel int       `json:"violence_max_level"`
	RomanceMaxLevel  int       `json:"romance_max_level"`
	IntimacyMaxLevel int       `json:"intimacy_max_level"`
	LanguageMaxLevel int       `json:"language_max_level"`
	HorrorMaxLevel   int       `json:"horror_max_level"`
	AllowViolence    bool      `json:"allow_violence"`
	AllowRomance     bool      `json:"allow_romance"`
	AllowIntimacy    bool      `json:"allow_intimacy"`
	AllowHorror      bool      `json:"allow_horror"`
	FadeToBlackSex   bool      `json:"fade_to_black_sex"`
	FadeToBlackGore  bool      `json:"fade_to_black_gore"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// MaxLevelFor returns the ceiling for one category.
func (s *ContentSettings) MaxLevelFor(category ContentCategory) int {
	switch category {
	case CategoryViolence:
		return s.ViolenceMaxLevel
	case CategoryRomance:
		return s.RomanceMaxLevel
	case CategoryIntimacy:
		return s.IntimacyMaxLevel
	case CategoryLanguage:
		return s.LanguageMaxLevel
	case CategoryHorror:
		return s.HorrorMaxLevel
	default:
		return MaxIntensityLevel
	}
}

// MaxIntensityLevel is the top of the 0-4 intensity scale; a ceiling at
// this value is unrestricted.
const MaxIntensityLevel = 4
