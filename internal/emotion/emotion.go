package emotion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"Story-Loom/server/internal/boundary"
	"Story-Loom/server/internal/interfaces"
	"Story-Loom/server/internal/models"
)

// Intensity levels. The discrete level is always derived from the points
// accumulator via the machine's breakpoints.
const (
	LevelNeutral    = 0
	LevelEngaged    = 1
	LevelPassionate = 2
	LevelExtreme    = 3
	LevelBreaking   = 4
)

// DefaultPointsPerLevel is the width of one intensity tier. The four
// breakpoints (30/60/90/120 by default) are configurable, but the
// five-level structure is fixed.
const DefaultPointsPerLevel = 30

// DefaultEmotion is the state a character starts in before any adjustment.
const DefaultEmotion = "calm"

var levelNames = [...]string{"neutral", "engaged", "passionate", "extreme", "breaking"}

// LevelName returns a printable name for a level.
func LevelName(level int) string {
	if level < 0 || level >= len(levelNames) {
		return "unknown"
	}
	return levelNames[level]
}

// emotionCategories is the static emotion → category table. Unknown emotions
// fall into the ungated default.
var emotionCategories = map[string]string{
	"anger":       "conflict",
	"rage":        "conflict",
	"fury":        "conflict",
	"hatred":      "conflict",
	"aggression":  "conflict",
	"irritation":  "conflict",
	"desire":      "intimacy",
	"lust":        "intimacy",
	"passion":     "intimacy",
	"arousal":     "intimacy",
	"fear":        "fear",
	"terror":      "fear",
	"dread":       "fear",
	"panic":       "fear",
	"horror":      "fear",
	"shame":       "social",
	"embarrassment": "social",
	"pride":       "social",
	"contempt":    "social",
	"disgust":     "social",
	"joy":         "positive",
	"love":        "positive",
	"affection":   "positive",
	"excitement":  "positive",
	"hope":        "positive",
	"tenderness":  "positive",
	"sadness":     "negative",
	"grief":       "negative",
	"despair":     "negative",
	"loneliness":  "negative",
	"guilt":       "negative",
}

// categoryCeilings maps emotion categories onto the content ceilings that
// gate them. Categories absent here (positive's counterpart "negative", and
// anything unknown) resolve to an unrestricted ceiling in the boundary
// engine.
var categoryCeilings = map[string]models.ContentCategory{
	"conflict": models.CategoryViolence,
	"intimacy": models.CategoryIntimacy,
	"fear":     models.CategoryHorror,
	"social":   models.CategoryLanguage,
	"positive": models.CategoryRomance,
	"negative": models.ContentCategory("general"),
}

// CategoryFor returns the emotion's category and the content ceiling gating
// it.
func CategoryFor(emotion string) (string, models.ContentCategory) {
	category, ok := emotionCategories[strings.ToLower(emotion)]
	if !ok {
		category = "negative"
	}
	return category, categoryCeilings[category]
}

// AdjustResult reports one adjustment's outcome. A boundary hit is not a
// failure; the caller narrates the clamp instead of aborting the turn.
type AdjustResult struct {
	PreviousLevel      int    `json:"previous_level"`
	NewLevel           int    `json:"new_level"`
	NewPoints          int    `json:"new_points"`
	LevelChanged       bool   `json:"level_changed"`
	ContentBoundaryHit bool   `json:"content_boundary_hit"`
	PrimaryEmotion     string `json:"primary_emotion"`
	Category           string `json:"category"`
	CeilingLevel       int    `json:"ceiling_level"`
}

// Machine is the per-character intensity tracker.
type Machine struct {
	store          interfaces.EmotionStore
	boundaries     *boundary.Engine
	pointsPerLevel int
}

// NewMachine creates an emotional state machine over the given store and
// boundary engine.
func NewMachine(store interfaces.EmotionStore, boundaries *boundary.Engine) *Machine {
	return &Machine{
		store:          store,
		boundaries:     boundaries,
		pointsPerLevel: DefaultPointsPerLevel,
	}
}

// MaxPoints is the points ceiling (120 with default breakpoints).
func (m *Machine) MaxPoints() int {
	return m.pointsPerLevel * models.MaxIntensityLevel
}

// LevelFor maps a points value onto its discrete level.
func (m *Machine) LevelFor(points int) int {
	if points < 0 {
		return LevelNeutral
	}
	level := points / m.pointsPerLevel
	if level > models.MaxIntensityLevel {
		return models.MaxIntensityLevel
	}
	return level
}

// maxPointsUnder returns the highest points value permitted under a content
// ceiling. A ceiling at the top level imposes no cap; below that, points may
// build toward the ceiling's breakpoint but never cross it, so intensity
// rises without the narrative tipping into the gated tier.
func (m *Machine) maxPointsUnder(ceiling int) int {
	if ceiling >= models.MaxIntensityLevel {
		return m.MaxPoints()
	}
	limit := ceiling*m.pointsPerLevel - 1
	if limit < 0 {
		limit = 0
	}
	return limit
}

// Adjust applies a signed points delta for an emotion, clamping against the
// game's content ceiling for the emotion's category. It never fails on valid
// input; unknown emotions map to an ungated category.
func (m *Machine) Adjust(ctx context.Context, characterID, gameID, emotion string, delta int, triggeredBy, triggerDescription string) (*AdjustResult, error) {
	if characterID == "" {
		return nil, &models.ValidationError{Field: "character_id", Reason: "must not be empty"}
	}
	if gameID == "" {
		return nil, &models.ValidationError{Field: "game_id", Reason: "must not be empty"}
	}
	if emotion == "" {
		return nil, &models.ValidationError{Field: "emotion", Reason: "must not be empty"}
	}

	category, ceilingCategory := CategoryFor(emotion)
	ceiling, err := m.boundaries.MaxLevel(ctx, gameID, ceilingCategory)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve content ceiling: %w", err)
	}

	result := &AdjustResult{Category: category, CeilingLevel: ceiling}

	_, err = m.store.Update(ctx, characterID, gameID, func(state *models.CharacterEmotionalState) error {
		previousPoints := state.IntensityPoints
		result.PreviousLevel = m.LevelFor(previousPoints)

		target := previousPoints + delta
		if target < 0 {
			target = 0
		}
		if target > m.MaxPoints() {
			target = m.MaxPoints()
		}

		if limit := m.maxPointsUnder(ceiling); target > limit {
			target = limit
			result.ContentBoundaryHit = true
		}

		if state.EmotionScores == nil {
			state.EmotionScores = models.ScoreMap{}
		}
		score := state.EmotionScores[emotion] + delta
		if score < 0 {
			score = 0
		}
		state.EmotionScores[emotion] = score

		state.IntensityPoints = target
		state.IntensityLevel = m.LevelFor(target)
		state.PrimaryEmotion = dominantEmotion(state.EmotionScores)
		state.Trajectory = nextTrajectory(state.Trajectory, previousPoints, target)
		state.TriggeredBy = triggeredBy
		state.TriggerDescription = triggerDescription

		result.NewPoints = target
		result.NewLevel = state.IntensityLevel
		result.LevelChanged = result.NewLevel != result.PreviousLevel
		result.PrimaryEmotion = state.PrimaryEmotion
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to adjust emotional state: %w", err)
	}

	return result, nil
}

// Current returns the stored state, or the implied calm default when the
// character has never been adjusted. The default is not persisted.
func (m *Machine) Current(ctx context.Context, characterID, gameID string) (*models.CharacterEmotionalState, error) {
	state, err := m.store.Get(ctx, characterID, gameID)
	if errors.Is(err, interfaces.ErrNotFound) {
		return &models.CharacterEmotionalState{
			CharacterID:    characterID,
			GameID:         gameID,
			PrimaryEmotion: DefaultEmotion,
			Trajectory:     models.TrajectoryStable,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load emotional state: %w", err)
	}
	return state, nil
}

// Reset returns the character to a calm neutral state.
func (m *Machine) Reset(ctx context.Context, characterID, gameID string) error {
	_, err := m.store.Update(ctx, characterID, gameID, func(state *models.CharacterEmotionalState) error {
		state.PrimaryEmotion = DefaultEmotion
		state.IntensityPoints = 0
		state.IntensityLevel = LevelNeutral
		state.EmotionScores = models.ScoreMap{}
		state.Trajectory = models.TrajectoryStable
		state.TriggeredBy = ""
		state.TriggerDescription = ""
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to reset emotional state: %w", err)
	}
	return nil
}

func dominantEmotion(scores models.ScoreMap) string {
	best := DefaultEmotion
	bestScore := 0
	for emotion, score := range scores {
		// Lexicographic tie-break keeps the result deterministic.
		if score > bestScore || (score == bestScore && score > 0 && emotion < best) {
			best = emotion
			bestScore = score
		}
	}
	return best
}

func nextTrajectory(previous models.EmotionTrajectory, oldPoints, newPoints int) models.EmotionTrajectory {
	switch {
	case newPoints > oldPoints:
		if previous == models.TrajectoryFalling {
			return models.TrajectoryVolatile
		}
		return models.TrajectoryRising
	case newPoints < oldPoints:
		if previous == models.TrajectoryRising {
			return models.TrajectoryVolatile
		}
		return models.TrajectoryFalling
	default:
		return models.TrajectoryStable
	}
}
