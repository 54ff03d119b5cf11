package boundary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Story-Loom/server/internal/interfaces"
	"Story-Loom/server/internal/models"
)

// DefaultRating is assumed whenever a game has no settings row.
const DefaultRating = "pg13"

// Preset defines one rating's ceilings and flags.
type Preset struct {
	Violence int
	Romance  int
	Intimacy int
	Language int
	Horror   int

	AllowViolence bool
	AllowRomance  bool
	AllowIntimacy bool
	AllowHorror   bool

	FadeToBlackSex  bool
	FadeToBlackGore bool
}

// Rating presets. Each maps a familiar label onto the five 0-4 ceilings.
var presets = map[string]Preset{
	"g": {
		Violence: 0, Romance: 1, Intimacy: 0, Language: 0, Horror: 0,
		FadeToBlackSex: true, FadeToBlackGore: true,
	},
	"pg": {
		Violence: 1, Romance: 1, Intimacy: 1, Language: 1, Horror: 1,
		AllowViolence: true, AllowRomance: true,
		FadeToBlackSex: true, FadeToBlackGore: true,
	},
	"pg13": {
		Violence: 2, Romance: 2, Intimacy: 1, Language: 2, Horror: 2,
		AllowViolence: true, AllowRomance: true,
		FadeToBlackSex: true, FadeToBlackGore: true,
	},
	"r": {
		Violence: 3, Romance: 3, Intimacy: 2, Language: 3, Horror: 3,
		AllowViolence: true, AllowRomance: true, AllowIntimacy: true, AllowHorror: true,
		FadeToBlackSex: true,
	},
	"nc17": {
		Violence: 4, Romance: 4, Intimacy: 3, Language: 4, Horror: 4,
		AllowViolence: true, AllowRomance: true, AllowIntimacy: true, AllowHorror: true,
	},
	"unrestricted": {
		Violence: 4, Romance: 4, Intimacy: 4, Language: 4, Horror: 4,
		AllowViolence: true, AllowRomance: true, AllowIntimacy: true, AllowHorror: true,
	},
}

// Ratings returns the known preset labels.
func Ratings() []string {
	return []string{"g", "pg", "pg13", "r", "nc17", "unrestricted"}
}

// SettingsCache is an optional hot cache in front of the settings store.
type SettingsCache interface {
	GetSettings(ctx context.Context, gameID string) (*models.ContentSettings, bool)
	PutSettings(ctx context.Context, settings *models.ContentSettings, ttl time.Duration)
	InvalidateSettings(ctx context.Context, gameID string)
}

// Decision is the outcome of an escalation check.
type Decision struct {
	Allowed  bool   `json:"allowed"`
	MaxLevel int    `json:"max_level"`
	Reason   string `json:"reason,omitempty"`
}

// Engine is the single gate every escalation consults. Emotional and intent
// state must never be written past a ceiling without going through it.
type Engine struct {
	store    interfaces.SettingsStore
	cache    SettingsCache
	cacheTTL time.Duration
}

// NewEngine creates a boundary engine. cache may be nil.
func NewEngine(store interfaces.SettingsStore, cache SettingsCache) *Engine {
	return &Engine{
		store:    store,
		cache:    cache,
		cacheTTL: 5 * time.Minute,
	}
}

// Settings returns the game's settings, falling back to the default preset
// when no row exists. The fallback is not persisted.
func (e *Engine) Settings(ctx context.Context, gameID string) (*models.ContentSettings, error) {
	if e.cache != nil {
		if cached, ok := e.cache.GetSettings(ctx, gameID); ok {
			return cached, nil
		}
	}

	settings, err := e.store.Get(ctx, gameID)
	if errors.Is(err, interfaces.ErrNotFound) {
		settings = settingsFromPreset(gameID, DefaultRating, presets[DefaultRating])
	} else if err != nil {
		return nil, fmt.Errorf("failed to load content settings: %w", err)
	}

	if e.cache != nil {
		e.cache.PutSettings(ctx, settings, e.cacheTTL)
	}
	return settings, nil
}

// MaxLevel returns the ceiling for one category, 4 (unrestricted) when the
// category is unknown.
func (e *Engine) MaxLevel(ctx context.Context, gameID string, category models.ContentCategory) (int, error) {
	settings, err := e.Settings(ctx, gameID)
	if err != nil {
		return 0, err
	}
	return settings.MaxLevelFor(category), nil
}

// CanEscalate checks whether content in a category may reach targetLevel.
func (e *Engine) CanEscalate(ctx context.Context, gameID string, category models.ContentCategory, targetLevel int) (Decision, error) {
	maxLevel, err := e.MaxLevel(ctx, gameID, category)
	if err != nil {
		return Decision{}, err
	}

	if targetLevel > maxLevel {
		return Decision{
			Allowed:  false,
			MaxLevel: maxLevel,
			Reason:   fmt.Sprintf("%s content is capped at level %d for this game", category, maxLevel),
		}, nil
	}
	return Decision{Allowed: true, MaxLevel: maxLevel}, nil
}

// ApplyPreset overwrites the game's settings with a named rating preset in
// one save.
func (e *Engine) ApplyPreset(ctx context.Context, gameID, rating string) (*models.ContentSettings, error) {
	preset, ok := presets[rating]
	if !ok {
		return nil, &models.ValidationError{Field: "content_rating", Reason: "unknown rating " + rating}
	}

	settings := settingsFromPreset(gameID, rating, preset)
	if err := e.store.Save(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to save content settings: %w", err)
	}

	if e.cache != nil {
		e.cache.InvalidateSettings(ctx, gameID)
	}
	return settings, nil
}

// SetCeiling updates a single category ceiling, creating the row from the
// default preset first when necessary.
func (e *Engine) SetCeiling(ctx context.Context, gameID string, category models.ContentCategory, level int) (*models.ContentSettings, error) {
	if level < 0 || level > models.MaxIntensityLevel {
		return nil, &models.ValidationError{Field: "level", Reason: "must be within [0, 4]"}
	}

	settings, err := e.store.Get(ctx, gameID)
	if errors.Is(err, interfaces.ErrNotFound) {
		settings = settingsFromPreset(gameID, DefaultRating, presets[DefaultRating])
	} else if err != nil {
		return nil, fmt.Errorf("failed to load content settings: %w", err)
	}

	switch category {
	case models.CategoryViolence:
		settings.ViolenceMaxLevel = level
	case models.CategoryRomance:
		settings.RomanceMaxLevel = level
	case models.CategoryIntimacy:
		settings.IntimacyMaxLevel = level
	case models.CategoryLanguage:
		settings.LanguageMaxLevel = level
	case models.CategoryHorror:
		settings.HorrorMaxLevel = level
	default:
		return nil, &models.ValidationError{Field: "category", Reason: "unknown category " + string(category)}
	}
	settings.ContentRating = "custom"

	if err := e.store.Save(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to save content settings: %w", err)
	}
	if e.cache != nil {
		e.cache.InvalidateSettings(ctx, gameID)
	}
	return settings, nil
}

// Reset deletes the game's settings row, reverting to the default preset.
func (e *Engine) Reset(ctx context.Context, gameID string) error {
	if err := e.store.Delete(ctx, gameID); err != nil && !errors.Is(err, interfaces.ErrNotFound) {
		return fmt.Errorf("failed to delete content settings: %w", err)
	}
	if e.cache != nil {
		e.cache.InvalidateSettings(ctx, gameID)
	}
	return nil
}

func settingsFromPreset(gameID, rating string, p Preset) *models.ContentSettings {
	return &models.ContentSettings{
		GameID:           gameID,
		ContentRating:    rating,
		ViolenceMaxLevel: p.Violence,
		RomanceMaxLevel:  p.Romance,
		IntimacyMaxLevel: p.Intimacy,
		LanguageMaxLevel: p.Language,
		HorrorMaxLevel:   p.Horror,
		AllowViolence:    p.AllowViolence,
		AllowRomance:     p.AllowRomance,
		AllowIntimacy:    p.AllowIntimacy,
		AllowHorror:      p.AllowHorror,
		FadeToBlackSex:   p.FadeToBlackSex,
		FadeToBlackGore:  p.FadeToBlackGore,
	}
}
