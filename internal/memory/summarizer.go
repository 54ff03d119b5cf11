package memory

import (
	"context"
	"fmt"
	"strings"

	"Story-Loom/server/internal/interfaces"
	"Story-Loom/server/internal/models"
)

// TierConfig sizes the summary windows. A medium window covers Multiplier
// short windows and summarizes their condensed renderings rather than raw
// entries again; a long window does the same over medium summaries. That
// keeps recomputation cost bounded as history grows.
type TierConfig struct {
	ShortWindowTurns int
	MediumMultiplier int
	LongMultiplier   int
}

// DefaultTierConfig matches the standard pacing: short every 10 turns,
// medium every 50, long every 250.
func DefaultTierConfig() TierConfig {
	return TierConfig{
		ShortWindowTurns: 10,
		MediumMultiplier: 5,
		LongMultiplier:   5,
	}
}

func (c TierConfig) windowTurns(window models.WindowType) int {
	switch window {
	case models.WindowShort:
		return c.ShortWindowTurns
	case models.WindowMedium:
		return c.ShortWindowTurns * c.MediumMultiplier
	case models.WindowLong:
		return c.ShortWindowTurns * c.MediumMultiplier * c.LongMultiplier
	default:
		return 0
	}
}

// SummarizeRequest is one window worth of material to compress.
type SummarizeRequest struct {
	CharacterName string
	Window        models.WindowType
	StartTurn     int
	EndTurn       int
	Events        []string
}

// Rendering is the two outputs of a summarization pass: a verbose narrative
// summary and a terse one for cheap context-stuffing.
type Rendering struct {
	Descriptive string
	Condensed   string
}

// Summarizer compresses a window of events into the two renderings.
type Summarizer interface {
	Summarize(ctx context.Context, req *SummarizeRequest) (*Rendering, error)
}

const summaryPromptTemplate = `Summarize the following role-playing game events from the perspective of %s (turns %d-%d).
Preserve key decisions, revealed information, emotional shifts, promises, and relationship changes.

Events:
%s

Respond with exactly two sections:
DETAILED:
<a thorough narrative summary, several sentences>
CONDENSED:
<one or two terse sentences covering only the essentials>`

// LLMSummarizer renders summaries through the LLM provider.
type LLMSummarizer struct {
	llm         interfaces.LLMProvider
	maxTokens   int
	temperature float64
}

// NewLLMSummarizer creates an LLM-backed summarizer.
func NewLLMSummarizer(llm interfaces.LLMProvider) *LLMSummarizer {
	return &LLMSummarizer{
		llm:         llm,
		maxTokens:   600,
		temperature: 0.3,
	}
}

// Summarize asks the model for both renderings in one call and splits them
// on the section markers.
func (s *LLMSummarizer) Summarize(ctx context.Context, req *SummarizeRequest) (*Rendering, error) {
	prompt := fmt.Sprintf(summaryPromptTemplate,
		req.CharacterName, req.StartTurn, req.EndTurn, strings.Join(req.Events, "\n"))

	text, err := s.llm.Generate(ctx, prompt, s.maxTokens, s.temperature)
	if err != nil {
		return nil, err
	}
	return parseRendering(text), nil
}

func parseRendering(text string) *Rendering {
	detailed := text
	condensed := ""

	if idx := strings.Index(text, "CONDENSED:"); idx >= 0 {
		detailed = strings.TrimSpace(text[:idx])
		condensed = strings.TrimSpace(text[idx+len("CONDENSED:"):])
	}
	detailed = strings.TrimSpace(strings.TrimPrefix(detailed, "DETAILED:"))

	if condensed == "" {
		// Model ignored the section format; fall back to a truncation.
		condensed = detailed
		if len(condensed) > 280 {
			condensed = condensed[:280]
		}
	}
	return &Rendering{Descriptive: detailed, Condensed: condensed}
}

// quietWindowSummary stands in for windows where the character witnessed
// nothing, keeping window accounting contiguous without an LLM call.
const quietWindowSummary = "Nothing notable happened from this character's perspective."

// Service closes summary windows as turns advance. Summaries are immutable
// once created; new events produce new summaries, never edits.
type Service struct {
	summaries  interfaces.SummaryStore
	entries    interfaces.LedgerStore
	summarizer Summarizer
	cfg        TierConfig
}

// NewService creates the tiered summarizer.
func NewService(summaries interfaces.SummaryStore, entries interfaces.LedgerStore, summarizer Summarizer, cfg TierConfig) *Service {
	if cfg.ShortWindowTurns <= 0 {
		cfg = DefaultTierConfig()
	}
	return &Service{
		summaries:  summaries,
		entries:    entries,
		summarizer: summarizer,
		cfg:        cfg,
	}
}

// CloseDueWindows closes every window that has fully elapsed for the
// character, lowest tier first so higher tiers can consume fresh lower-tier
// summaries. A summarizer failure leaves the window open; the next turn
// advance retries it.
func (s *Service) CloseDueWindows(ctx context.Context, character *models.Character, currentTurn int) ([]models.MemorySummary, error) {
	var closed []models.MemorySummary

	for _, window := range []models.WindowType{models.WindowShort, models.WindowMedium, models.WindowLong} {
		created, err := s.closeTier(ctx, character, window, currentTurn)
		closed = append(closed, created...)
		if err != nil {
			return closed, err
		}
	}
	return closed, nil
}

func (s *Service) closeTier(ctx context.Context, character *models.Character, window models.WindowType, currentTurn int) ([]models.MemorySummary, error) {
	span := s.cfg.windowTurns(window)
	if span <= 0 {
		return nil, nil
	}

	var closed []models.MemorySummary
	for {
		lastEnd, err := s.summaries.LastEndTurn(ctx, character.GameID, character.ID, window)
		if err != nil {
			return closed, fmt.Errorf("failed to find last %s window: %w", window, err)
		}

		startTurn := lastEnd + 1
		endTurn := lastEnd + span
		if endTurn > currentTurn {
			return closed, nil
		}

		summary, err := s.closeWindow(ctx, character, window, startTurn, endTurn)
		if err != nil {
			return closed, err
		}
		closed = append(closed, *summary)
	}
}

func (s *Service) closeWindow(ctx context.Context, character *models.Character, window models.WindowType, startTurn, endTurn int) (*models.MemorySummary, error) {
	events, err := s.windowEvents(ctx, character, window, startTurn, endTurn)
	if err != nil {
		return nil, err
	}

	rendering := &Rendering{Descriptive: quietWindowSummary, Condensed: quietWindowSummary}
	if len(events) > 0 {
		rendering, err = s.summarizer.Summarize(ctx, &SummarizeRequest{
			CharacterName: character.Name,
			Window:        window,
			StartTurn:     startTurn,
			EndTurn:       endTurn,
			Events:        events,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to summarize %s window %d-%d: %w", window, startTurn, endTurn, err)
		}
	}

	summary := &models.MemorySummary{
		GameID:             character.GameID,
		CharacterID:        character.ID,
		WindowType:         window,
		StartTurn:          startTurn,
		EndTurn:            endTurn,
		DescriptiveSummary: rendering.Descriptive,
		CondensedSummary:   rendering.Condensed,
	}
	if err := summary.Validate(); err != nil {
		return nil, err
	}
	if err := s.summaries.Create(ctx, summary); err != nil {
		return nil, fmt.Errorf("failed to store %s summary: %w", window, err)
	}
	return summary, nil
}

// windowEvents gathers the material a window compresses: raw witnessed
// entries for the short tier, lower-tier condensed summaries above that.
func (s *Service) windowEvents(ctx context.Context, character *models.Character, window models.WindowType, startTurn, endTurn int) ([]string, error) {
	switch window {
	case models.WindowShort:
		rows, err := s.entries.EntriesInRange(ctx, character.GameID, startTurn, endTurn)
		if err != nil {
			return nil, fmt.Errorf("failed to read window entries: %w", err)
		}
		var events []string
		for _, entry := range rows {
			if entry.ActionType == models.ActionAtmospheric || !entry.VisibleTo(character.ID) {
				continue
			}
			events = append(events, fmt.Sprintf("[turn %d] %s %s: %s",
				entry.TurnNumber, entry.CharacterID, entry.ActionType, entry.Description))
		}
		return events, nil

	case models.WindowMedium, models.WindowLong:
		lower := models.WindowShort
		if window == models.WindowLong {
			lower = models.WindowMedium
		}
		summaries, err := s.summaries.InRange(ctx, character.GameID, character.ID, lower, startTurn, endTurn)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s summaries: %w", lower, err)
		}
		var events []string
		for _, sum := range summaries {
			if sum.CondensedSummary == quietWindowSummary {
				continue
			}
			events = append(events, fmt.Sprintf("[turns %d-%d] %s", sum.StartTurn, sum.EndTurn, sum.CondensedSummary))
		}
		return events, nil

	default:
		return nil, &models.ValidationError{Field: "window_type", Reason: "unknown window type " + string(window)}
	}
}
