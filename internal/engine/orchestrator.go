package engine

import (
	"context"
	"fmt"
	"log"

	"Story-Loom/server/internal/boundary"
	"Story-Loom/server/internal/emotion"
	"Story-Loom/server/internal/intent"
	"Story-Loom/server/internal/interfaces"
	"Story-Loom/server/internal/ledger"
	"Story-Loom/server/internal/memory"
	"Story-Loom/server/internal/models"
	"Story-Loom/server/internal/prompts"
	"Story-Loom/server/internal/rag"
	"Story-Loom/server/internal/relationship"
)

// Event is one game occurrence pushed to live listeners.
type Event struct {
	Type    string      `json:"type"`
	GameID  string      `json:"game_id"`
	Payload interface{} `json:"payload,omitempty"`
}

// Broadcaster fans events out to connected clients. Delivery is best
// effort; game state never depends on it.
type Broadcaster interface {
	Broadcast(event Event)
}

// NarrationFeed keeps a bounded recent-text feed per game.
type NarrationFeed interface {
	PushNarration(ctx context.Context, gameID, text string) error
}

const (
	defaultGenerateTokens      = 800
	defaultGenerateTemperature = 0.8
	promptSummaryCount         = 3
)

// Orchestrator drives the narrative loop: recording actions, advancing
// turns and generating character turns from assembled context.
type Orchestrator struct {
	games      interfaces.GameStore
	characters interfaces.CharacterStore
	summaries  interfaces.SummaryStore

	ledger        *ledger.Service
	emotions      *emotion.Machine
	intents       *intent.Tracker
	relationships *relationship.Service
	boundaries    *boundary.Engine
	memories      *memory.Service

	llm      interfaces.LLMProvider
	recall   *rag.SemanticIndex
	backfill *memory.Backfiller

	feed        NarrationFeed
	broadcaster Broadcaster

	witnessedTurnLimit int
	recallLimit        int
	generateTokens     int
	generateTemp       float64
}

// Deps bundles the orchestrator's collaborators. recall, backfill, feed and
// broadcaster may be nil; the loop degrades to running without semantic
// memory or live output.
type Deps struct {
	Games      interfaces.GameStore
	Characters interfaces.CharacterStore
	Summaries  interfaces.SummaryStore

	Ledger        *ledger.Service
	Emotions      *emotion.Machine
	Intents       *intent.Tracker
	Relationships *relationship.Service
	Boundaries    *boundary.Engine
	Memories      *memory.Service

	LLM      interfaces.LLMProvider
	Recall   *rag.SemanticIndex
	Backfill *memory.Backfiller

	Feed        NarrationFeed
	Broadcaster Broadcaster

	WitnessedTurnLimit int
	RecallLimit        int
	GenerateTokens     int
	GenerateTemp       float64
}

// NewOrchestrator wires the narrative loop.
func NewOrchestrator(deps Deps) *Orchestrator {
	if deps.WitnessedTurnLimit <= 0 {
		deps.WitnessedTurnLimit = 10
	}
	if deps.RecallLimit <= 0 {
		deps.RecallLimit = 5
	}
	if deps.GenerateTokens <= 0 {
		deps.GenerateTokens = defaultGenerateTokens
	}
	if deps.GenerateTemp <= 0 {
		deps.GenerateTemp = defaultGenerateTemperature
	}
	return &Orchestrator{
		games:              deps.Games,
		characters:         deps.Characters,
		summaries:          deps.Summaries,
		ledger:             deps.Ledger,
		emotions:           deps.Emotions,
		intents:            deps.Intents,
		relationships:      deps.Relationships,
		boundaries:         deps.Boundaries,
		memories:           deps.Memories,
		llm:                deps.LLM,
		recall:             deps.Recall,
		backfill:           deps.Backfill,
		feed:               deps.Feed,
		broadcaster:        deps.Broadcaster,
		witnessedTurnLimit: deps.WitnessedTurnLimit,
		recallLimit:        deps.RecallLimit,
		generateTokens:     deps.GenerateTokens,
		generateTemp:       deps.GenerateTemp,
	}
}

// RecordAction appends one action to the ledger and pushes it to live
// listeners. The entry's turn defaults to the game's current turn.
func (o *Orchestrator) RecordAction(ctx context.Context, entry *models.TurnEntry) error {
	game, err := o.games.Get(ctx, entry.GameID)
	if err != nil {
		return fmt.Errorf("failed to load game: %w", err)
	}
	if entry.TurnNumber == 0 {
		entry.TurnNumber = game.CurrentTurn
	}
	if entry.TurnDuration == 0 {
		entry.TurnDuration = 1
	}

	if err := o.ledger.Record(ctx, entry); err != nil {
		return err
	}

	o.broadcast(Event{Type: "action_recorded", GameID: entry.GameID, Payload: entry})
	if o.feed != nil && !entry.IsPrivate && entry.ActionType != models.ActionThink {
		line := fmt.Sprintf("[turn %d] %s: %s", entry.TurnNumber, entry.CharacterID, entry.Description)
		if err := o.feed.PushNarration(ctx, entry.GameID, line); err != nil {
			log.Printf("[Engine] narration feed push failed for game %s: %v", entry.GameID, err)
		}
	}
	return nil
}

// TurnReport is the outcome of one turn advance.
type TurnReport struct {
	GameID        string `json:"game_id"`
	NewTurn       int    `json:"new_turn"`
	TickedActions int64  `json:"ticked_actions"`
	StaleIntents  int64  `json:"stale_intents"`
	ClosedWindows int    `json:"closed_windows"`
}

// AdvanceTurn increments the game's turn counter and runs the per-turn
// housekeeping: action durations tick down, stale intents are abandoned, and
// every elapsed summary window closes. Summarizer failures leave their
// windows open for the next advance rather than aborting; committed ledger
// entries are never rolled back.
func (o *Orchestrator) AdvanceTurn(ctx context.Context, gameID string) (*TurnReport, error) {
	newTurn, err := o.games.AdvanceTurn(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to advance turn: %w", err)
	}
	report := &TurnReport{GameID: gameID, NewTurn: newTurn}

	report.TickedActions, err = o.ledger.TickDurations(ctx, gameID)
	if err != nil {
		return report, err
	}

	report.StaleIntents, err = o.intents.DeactivateStale(ctx, gameID, newTurn)
	if err != nil {
		return report, err
	}

	characters, err := o.characters.ListByGame(ctx, gameID)
	if err != nil {
		return report, fmt.Errorf("failed to list characters: %w", err)
	}
	for i := range characters {
		closed, err := o.memories.CloseDueWindows(ctx, &characters[i], newTurn)
		report.ClosedWindows += len(closed)
		if err != nil {
			log.Printf("[Engine] summary window left open for %s: %v", characters[i].ID, err)
		}
	}

	if o.backfill != nil && report.ClosedWindows > 0 {
		go func() {
			if _, err := o.backfill.RunOnce(context.Background()); err != nil {
				log.Printf("[Engine] embed backfill failed: %v", err)
			}
		}()
	}

	o.broadcast(Event{Type: "turn_advanced", GameID: gameID, Payload: report})
	log.Printf("[Engine] game %s advanced to turn %d (ticked=%d stale=%d closed=%d)",
		gameID, newTurn, report.TickedActions, report.StaleIntents, report.ClosedWindows)
	return report, nil
}

// GenerateCharacterTurn assembles everything the character can know into one
// prompt and asks the model for their next action. Provider failures
// propagate; the caller decides whether to retry the whole turn.
func (o *Orchestrator) GenerateCharacterTurn(ctx context.Context, gameID, characterID, instruction string) (string, error) {
	game, err := o.games.Get(ctx, gameID)
	if err != nil {
		return "", fmt.Errorf("failed to load game: %w", err)
	}
	character, err := o.characters.Get(ctx, characterID)
	if err != nil {
		return "", fmt.Errorf("failed to load character: %w", err)
	}

	turnCtx, err := o.assembleContext(ctx, game, character, instruction)
	if err != nil {
		return "", err
	}

	prompt := prompts.Render(turnCtx, o.llm.PreferredFormat())
	text, err := o.llm.Generate(ctx, prompt, o.generateTokens, o.generateTemp)
	if err != nil {
		return "", err
	}

	o.broadcast(Event{Type: "turn_generated", GameID: gameID, Payload: map[string]string{
		"character_id": characterID,
		"text":         text,
	}})
	return text, nil
}

func (o *Orchestrator) assembleContext(ctx context.Context, game *models.Game, character *models.Character, instruction string) (*prompts.TurnContext, error) {
	turnCtx := &prompts.TurnContext{
		GameTitle:     game.Title,
		CurrentTurn:   game.CurrentTurn,
		CharacterName: character.Name,
		Description:   character.Description,
		Traits:        character.PersonalityTraits,
		Instruction:   instruction,
	}

	witnessed, err := o.ledger.Witnessed(ctx, game.ID, character.ID, o.witnessedTurnLimit)
	if err != nil {
		return nil, err
	}
	for _, entry := range witnessed {
		turnCtx.WitnessedEvents = append(turnCtx.WitnessedEvents,
			fmt.Sprintf("[turn %d] %s %s: %s", entry.TurnNumber, entry.CharacterID, entry.ActionType, entry.Description))
	}

	state, err := o.emotions.Current(ctx, character.ID, game.ID)
	if err != nil {
		return nil, err
	}
	turnCtx.Emotion = prompts.EmotionContext{
		Primary:    state.PrimaryEmotion,
		Level:      state.IntensityLevel,
		LevelName:  emotion.LevelName(state.IntensityLevel),
		Trajectory: string(state.Trajectory),
	}

	active, err := o.intents.Active(ctx, game.ID, character.ID)
	if err != nil {
		return nil, err
	}
	for _, in := range active {
		turnCtx.Intents = append(turnCtx.Intents, prompts.IntentContext{
			Type:     in.IntentType,
			Target:   o.characterName(ctx, in.TargetCharacterID),
			Stage:    in.CurrentStage,
			Progress: in.ProgressLevel,
		})
	}

	rels, err := o.relationships.Perceived(ctx, game.ID, character.ID)
	if err != nil {
		return nil, err
	}
	for _, rel := range rels {
		turnCtx.Relationships = append(turnCtx.Relationships, prompts.RelationshipContext{
			TargetName: o.characterName(ctx, rel.TargetCharacterID),
			Type:       string(rel.RelationshipType),
			Trust:      rel.Trust,
			Fear:       rel.Fear,
			Respect:    rel.Respect,
		})
	}

	turnCtx.RecentSummaries = o.recentSummaries(ctx, game, character)
	turnCtx.RecalledMemories = o.recalledMemories(ctx, game, character, witnessed)

	settings, err := o.boundaries.Settings(ctx, game.ID)
	if err != nil {
		return nil, err
	}
	for _, category := range []models.ContentCategory{
		models.CategoryViolence, models.CategoryRomance, models.CategoryIntimacy,
		models.CategoryLanguage, models.CategoryHorror,
	} {
		turnCtx.BoundaryGuidance = append(turnCtx.BoundaryGuidance,
			fmt.Sprintf("%s: up to intensity level %d of 4", category, settings.MaxLevelFor(category)))
	}

	return turnCtx, nil
}

// recentSummaries pulls the newest short-tier condensed summaries. Misses
// are tolerable; the prompt just carries less history.
func (o *Orchestrator) recentSummaries(ctx context.Context, game *models.Game, character *models.Character) []string {
	rows, err := o.summaries.InRange(ctx, game.ID, character.ID, models.WindowShort, 1, game.CurrentTurn)
	if err != nil {
		log.Printf("[Engine] summary lookup failed for %s: %v", character.ID, err)
		return nil
	}
	if len(rows) > promptSummaryCount {
		rows = rows[len(rows)-promptSummaryCount:]
	}

	var lines []string
	for _, row := range rows {
		lines = append(lines, fmt.Sprintf("[turns %d-%d] %s", row.StartTurn, row.EndTurn, row.CondensedSummary))
	}
	return lines
}

// recalledMemories queries the semantic index with the most recent
// witnessed event as the probe. Recall is additive context: failures are
// logged, never fatal to the turn.
func (o *Orchestrator) recalledMemories(ctx context.Context, game *models.Game, character *models.Character, witnessed []models.TurnEntry) []string {
	if o.recall == nil {
		return nil
	}

	query := character.Name
	if len(witnessed) > 0 {
		query = witnessed[0].Description
	}

	hits, err := o.recall.Recall(ctx, query, rag.RecallOptions{
		GameID:      game.ID,
		CharacterID: character.ID,
		Limit:       o.recallLimit,
	})
	if err != nil {
		log.Printf("[Engine] semantic recall failed for %s: %v", character.ID, err)
		return nil
	}

	var lines []string
	for _, hit := range hits {
		lines = append(lines, fmt.Sprintf("[turns %d-%d] %s", hit.StartTurn, hit.EndTurn, hit.Text))
	}
	return lines
}

func (o *Orchestrator) characterName(ctx context.Context, characterID string) string {
	if characterID == "" {
		return ""
	}
	character, err := o.characters.Get(ctx, characterID)
	if err != nil {
		return characterID
	}
	return character.Name
}

func (o *Orchestrator) broadcast(event Event) {
	if o.broadcaster != nil {
		o.broadcaster.Broadcast(event)
	}
}
