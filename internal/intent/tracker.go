package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"Story-Loom/server/internal/interfaces"
	"Story-Loom/server/internal/models"
)

// Progress deltas. Deliberately flat: a keyword match earns the same delta
// whichever stage matched, so chain pacing stays predictable.
const (
	matchDelta       = 10
	noMatchDelta     = 3
	unknownTypeDelta = 5
)

// DefaultStaleTurns is how many turns an intent may sit without progress
// before the per-turn sweep deactivates it.
const DefaultStaleTurns = 3

// ProgressDetector infers incremental progress from a free-text action
// description. The keyword implementation is a cheap deterministic
// heuristic; it can be swapped for a classifier without touching the chain
// state machine.
type ProgressDetector interface {
	DetectProgress(intentType, actionText string) int
}

// KeywordDetector matches stage keywords by lower-cased containment.
type KeywordDetector struct{}

// NewKeywordDetector creates the default detector.
func NewKeywordDetector() *KeywordDetector {
	return &KeywordDetector{}
}

// DetectProgress tests each stage's keywords in chain order and returns the
// flat match delta on the first hit, a small default when nothing matches,
// and a baseline when the intent type itself is unrecognized.
func (d *KeywordDetector) DetectProgress(intentType, actionText string) int {
	chain, ok := chains[intentType]
	if !ok {
		return unknownTypeDelta
	}

	text := strings.ToLower(actionText)
	for _, stage := range chain.Stages {
		for _, keyword := range stage.Keywords {
			if strings.Contains(text, keyword) {
				return matchDelta
			}
		}
	}
	return noMatchDelta
}

// PursueRequest describes one turn's pursuit of a goal.
type PursueRequest struct {
	GameID            string `json:"game_id"`
	CharacterID       string `json:"character_id"`
	IntentType        string `json:"intent_type"`
	TargetCharacterID string `json:"target_character_id,omitempty"`
	TargetObject      string `json:"target_object,omitempty"`
	ActionText        string `json:"action_text"`
	ApproachStyle     string `json:"approach_style,omitempty"`
	Turn              int    `json:"turn"`
}

// PursueResult is the updated intent plus what this action contributed.
type PursueResult struct {
	Intent        *models.CharacterIntent `json:"intent"`
	ProgressDelta int                     `json:"progress_delta"`
	StageChanged  bool                    `json:"stage_changed"`
}

// Tracker advances multi-turn intents along their chains.
type Tracker struct {
	store      interfaces.IntentStore
	detector   ProgressDetector
	staleTurns int
}

// NewTracker creates an intent tracker. detector may be nil, in which case
// the keyword detector is used.
func NewTracker(store interfaces.IntentStore, detector ProgressDetector) *Tracker {
	if detector == nil {
		detector = NewKeywordDetector()
	}
	return &Tracker{
		store:      store,
		detector:   detector,
		staleTurns: DefaultStaleTurns,
	}
}

// SetStaleThreshold overrides how many turns an intent may idle before the
// sweep abandons it.
func (t *Tracker) SetStaleThreshold(turns int) {
	if turns > 0 {
		t.staleTurns = turns
	}
}

// Pursue records one action toward a goal, creating the intent on first
// pursuit and updating the existing active intent otherwise, so at most one
// active intent per (character, type) ever exists.
func (t *Tracker) Pursue(ctx context.Context, req *PursueRequest) (*PursueResult, error) {
	if req.GameID == "" {
		return nil, &models.ValidationError{Field: "game_id", Reason: "must not be empty"}
	}
	if req.CharacterID == "" {
		return nil, &models.ValidationError{Field: "character_id", Reason: "must not be empty"}
	}
	if req.IntentType == "" {
		return nil, &models.ValidationError{Field: "intent_type", Reason: "must not be empty"}
	}

	current, err := t.store.ActiveIntent(ctx, req.GameID, req.CharacterID, req.IntentType)
	if errors.Is(err, interfaces.ErrNotFound) {
		current = &models.CharacterIntent{
			GameID:            req.GameID,
			CharacterID:       req.CharacterID,
			IntentType:        req.IntentType,
			TargetCharacterID: req.TargetCharacterID,
			TargetObject:      req.TargetObject,
			ApproachStyle:     req.ApproachStyle,
			StartedTurn:       req.Turn,
			IsActive:          true,
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to load active intent: %w", err)
	}

	previousStage := current.CurrentStage
	delta := t.detector.DetectProgress(req.IntentType, req.ActionText)

	progress := current.ProgressLevel + delta
	if progress > 100 {
		progress = 100
	}
	current.ProgressLevel = progress
	if stage, ok := StageFromProgress(req.IntentType, progress); ok {
		current.CurrentStage = stage
	}
	current.LastActionTurn = req.Turn
	if req.TargetCharacterID != "" {
		current.TargetCharacterID = req.TargetCharacterID
	}
	if req.ApproachStyle != "" {
		current.ApproachStyle = req.ApproachStyle
	}

	if err := t.store.Save(ctx, current); err != nil {
		return nil, fmt.Errorf("failed to save intent: %w", err)
	}

	return &PursueResult{
		Intent:        current,
		ProgressDelta: delta,
		StageChanged:  current.CurrentStage != previousStage,
	}, nil
}

// Complete closes the active intent of the given type with a terminal
// status.
func (t *Tracker) Complete(ctx context.Context, gameID, characterID, intentType string, status models.CompletionStatus, turn int) (*models.CharacterIntent, error) {
	current, err := t.store.ActiveIntent(ctx, gameID, characterID, intentType)
	if err != nil {
		return nil, fmt.Errorf("failed to load active intent: %w", err)
	}

	current.IsActive = false
	current.CompletionStatus = status
	current.CompletionTurn = turn
	if err := t.store.Save(ctx, current); err != nil {
		return nil, fmt.Errorf("failed to save intent: %w", err)
	}
	return current, nil
}

// Active lists the character's active intents.
func (t *Tracker) Active(ctx context.Context, gameID, characterID string) ([]models.CharacterIntent, error) {
	return t.store.ActiveIntents(ctx, gameID, characterID)
}

// DeactivateStale abandons intents with no progress for more than the stale
// threshold. Called once per turn advance, not per action.
func (t *Tracker) DeactivateStale(ctx context.Context, gameID string, currentTurn int) (int64, error) {
	cutoff := currentTurn - t.staleTurns
	count, err := t.store.DeactivateStale(ctx, gameID, cutoff, currentTurn)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate stale intents: %w", err)
	}
	return count, nil
}
