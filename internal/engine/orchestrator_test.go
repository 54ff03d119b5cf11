package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"Story-Loom/server/internal/boundary"
	"Story-Loom/server/internal/emotion"
	"Story-Loom/server/internal/intent"
	"Story-Loom/server/internal/interfaces"
	"Story-Loom/server/internal/ledger"
	"Story-Loom/server/internal/memory"
	"Story-Loom/server/internal/models"
	"Story-Loom/server/internal/relationship"
	"Story-Loom/server/internal/storage"
)

// fakeLLM records the last prompt and answers with canned text.
type fakeLLM struct {
	mu         sync.Mutex
	lastPrompt string
	response   string
	err        error
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeLLM) PreferredFormat() interfaces.PromptFormat {
	return interfaces.FormatMarkdown
}

func (f *fakeLLM) prompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastPrompt
}

// recordingBroadcaster captures emitted events.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingBroadcaster) Broadcast(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingBroadcaster) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var types []string
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

type testFixture struct {
	orchestrator *Orchestrator
	llm          *fakeLLM
	broadcaster  *recordingBroadcaster
}

type stubSummarizer struct{}

func (stubSummarizer) Summarize(ctx context.Context, req *memory.SummarizeRequest) (*memory.Rendering, error) {
	return &memory.Rendering{Descriptive: "a detailed recap", Condensed: "a recap"}, nil
}

func newFixture(t *testing.T) *testFixture {
	t.Helper()
	ctx := context.Background()

	games := storage.NewMemoryGameStore()
	characters := storage.NewMemoryCharacterStore()
	summaries := storage.NewMemorySummaryStore()
	ledgerStore := storage.NewMemoryLedgerStore()
	settings := storage.NewMemorySettingsStore()

	boundaries := boundary.NewEngine(settings, nil)
	llm := &fakeLLM{response: "Alice narrows her eyes."}
	broadcaster := &recordingBroadcaster{}

	orchestrator := NewOrchestrator(Deps{
		Games:         games,
		Characters:    characters,
		Summaries:     summaries,
		Ledger:        ledger.NewService(ledgerStore),
		Emotions:      emotion.NewMachine(storage.NewMemoryEmotionStore(), boundaries),
		Intents:       intent.NewTracker(storage.NewMemoryIntentStore(), nil),
		Relationships: relationship.NewService(storage.NewMemoryRelationshipStore()),
		Boundaries:    boundaries,
		Memories:      memory.NewService(summaries, ledgerStore, stubSummarizer{}, memory.TierConfig{ShortWindowTurns: 2, MediumMultiplier: 2, LongMultiplier: 2}),
		LLM:           llm,
		Broadcaster:   broadcaster,
	})

	if err := games.Save(ctx, &models.Game{ID: "g1", Title: "The Broken Crown", Status: "active", CurrentTurn: 1}); err != nil {
		t.Fatal(err)
	}
	if err := characters.Save(ctx, &models.Character{ID: "alice", GameID: "g1", Name: "Alice", Description: "a wary sellsword"}); err != nil {
		t.Fatal(err)
	}

	return &testFixture{
		orchestrator: orchestrator,
		llm:          llm,
		broadcaster:  broadcaster,
	}
}

func TestRecordActionDefaultsTurnAndDuration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry := &models.TurnEntry{
		GameID:      "g1",
		CharacterID: "alice",
		ActionType:  models.ActionSpeak,
		Description: "greets the guards",
	}
	if err := f.orchestrator.RecordAction(ctx, entry); err != nil {
		t.Fatal(err)
	}
	if entry.TurnNumber != 1 {
		t.Fatalf("turn should default to the game's current turn, got %d", entry.TurnNumber)
	}
	if entry.TurnDuration != 1 {
		t.Fatalf("duration should default to 1, got %d", entry.TurnDuration)
	}

	types := f.broadcaster.types()
	if len(types) != 1 || types[0] != "action_recorded" {
		t.Fatalf("expected an action_recorded event, got %v", types)
	}
}

func TestRecordActionRejectsUnknownGame(t *testing.T) {
	f := newFixture(t)

	err := f.orchestrator.RecordAction(context.Background(), &models.TurnEntry{
		GameID:      "nope",
		CharacterID: "alice",
		ActionType:  models.ActionSpeak,
		Description: "speaks into the void",
	})
	if !errors.Is(err, interfaces.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordActionPropagatesDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry := &models.TurnEntry{
		GameID: "g1", CharacterID: "alice", SequenceNumber: 0,
		ActionType: models.ActionSpeak, Description: "says hello",
	}
	if err := f.orchestrator.RecordAction(ctx, entry); err != nil {
		t.Fatal(err)
	}
	dup := &models.TurnEntry{
		GameID: "g1", CharacterID: "alice", SequenceNumber: 0,
		ActionType: models.ActionSpeak, Description: "says hello again",
	}
	if err := f.orchestrator.RecordAction(ctx, dup); !errors.Is(err, ledger.ErrDuplicateSequence) {
		t.Fatalf("expected ErrDuplicateSequence, got %v", err)
	}
}

func TestAdvanceTurnRunsHousekeeping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A multi-turn action that will tick down.
	if err := f.orchestrator.RecordAction(ctx, &models.TurnEntry{
		GameID: "g1", CharacterID: "alice", ActionType: models.ActionMove,
		Description: "rides toward the capital", TurnDuration: 3,
	}); err != nil {
		t.Fatal(err)
	}

	report, err := f.orchestrator.AdvanceTurn(ctx, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if report.NewTurn != 2 {
		t.Fatalf("expected turn 2, got %d", report.NewTurn)
	}
	if report.TickedActions != 1 {
		t.Fatalf("expected 1 ticked action, got %d", report.TickedActions)
	}
	if report.ClosedWindows != 0 {
		t.Fatalf("no window has elapsed at turn 2, got %d", report.ClosedWindows)
	}

	// Next advance reaches turn 3: the 2-turn short window 1-2 closes.
	report, err = f.orchestrator.AdvanceTurn(ctx, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if report.ClosedWindows != 1 {
		t.Fatalf("expected the first short window to close, got %d", report.ClosedWindows)
	}

	types := f.broadcaster.types()
	last := types[len(types)-1]
	if last != "turn_advanced" {
		t.Fatalf("expected a turn_advanced event, got %v", types)
	}
}

func TestAdvanceTurnUnknownGame(t *testing.T) {
	f := newFixture(t)
	if _, err := f.orchestrator.AdvanceTurn(context.Background(), "nope"); !errors.Is(err, interfaces.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGenerateCharacterTurnAssemblesContext(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.orchestrator.RecordAction(ctx, &models.TurnEntry{
		GameID: "g1", CharacterID: "alice", ActionType: models.ActionSpeak,
		Description: "demands entry at the gate",
	}); err != nil {
		t.Fatal(err)
	}

	text, err := f.orchestrator.GenerateCharacterTurn(ctx, "g1", "alice", "")
	if err != nil {
		t.Fatal(err)
	}
	if text != "Alice narrows her eyes." {
		t.Fatalf("unexpected generation: %q", text)
	}

	prompt := f.llm.prompt()
	if !strings.Contains(prompt, "demands entry at the gate") {
		t.Fatalf("witnessed event missing from prompt:\n%s", prompt)
	}
	if !strings.Contains(prompt, "## witnessed events") {
		t.Fatalf("prompt not rendered in the provider's format:\n%s", prompt)
	}
	if !strings.Contains(prompt, "violence: up to intensity level 2 of 4") {
		t.Fatalf("boundary guidance missing from prompt:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Alice") {
		t.Fatalf("character name missing from prompt:\n%s", prompt)
	}
}

func TestGenerateCharacterTurnPropagatesProviderError(t *testing.T) {
	f := newFixture(t)
	f.llm.err = &interfaces.ProviderError{Provider: "llm", Op: "generate", Err: errors.New("rate limited")}

	var provider *interfaces.ProviderError
	_, err := f.orchestrator.GenerateCharacterTurn(context.Background(), "g1", "alice", "")
	if !errors.As(err, &provider) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
}
