package prompts

import (
	"strings"
	"testing"

	"Story-Loom/server/internal/interfaces"
)

func fullContext() *TurnContext {
	return &TurnContext{
		GameTitle:     "The Broken Crown",
		CurrentTurn:   12,
		CharacterName: "Alice",
		Description:   "a wary sellsword",
		Traits:        []string{"suspicious", "loyal"},
		Emotion: EmotionContext{
			Primary: "fear", Level: 2, LevelName: "moderate", Trajectory: "rising",
		},
		Intents: []IntentContext{
			{Type: "persuasion", Target: "Bob", Stage: "build_rapport", Progress: 40},
		},
		Relationships: []RelationshipContext{
			{TargetName: "Bob", Type: "rival", Trust: 0.3, Fear: 0.6, Respect: 0.7},
		},
		WitnessedEvents:  []string{"Bob drew his sword at the gate"},
		RecentSummaries:  []string{"Alice arrived in the city"},
		RecalledMemories: []string{"Bob once spared her life"},
		BoundaryGuidance: []string{"violence may not exceed level 2"},
	}
}

func TestRenderMarkdown(t *testing.T) {
	out := Render(fullContext(), interfaces.FormatMarkdown)

	if !strings.HasPrefix(out, `You are narrating for Alice in "The Broken Crown", turn 12.`) {
		t.Fatalf("missing header:\n%s", out)
	}
	for _, want := range []string{
		"## character", "## emotional state", "## active goals", "## relationships",
		"## distant memories", "## recent past", "## witnessed events", "## content limits",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown output missing %q", want)
		}
	}
	if !strings.Contains(out, "- persuasion toward Bob (stage: build_rapport, progress 40/100)") {
		t.Errorf("intent line not rendered:\n%s", out)
	}
	if !strings.Contains(out, defaultInstruction) {
		t.Error("default instruction not appended")
	}
}

func TestRenderXML(t *testing.T) {
	out := Render(fullContext(), interfaces.FormatXML)

	for _, want := range []string{
		"<character>", "</character>", "<emotional_state>", "<witnessed_events>",
		"<content_limits>", "</content_limits>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("xml output missing %q", want)
		}
	}
	if !strings.Contains(out, "Bob drew his sword at the gate") {
		t.Errorf("witnessed event not rendered:\n%s", out)
	}
}

func TestRenderPlain(t *testing.T) {
	out := Render(fullContext(), interfaces.FormatPlain)

	for _, want := range []string{"CHARACTER:", "EMOTIONAL STATE:", "CONTENT LIMITS:"} {
		if !strings.Contains(out, want) {
			t.Errorf("plain output missing %q", want)
		}
	}
}

func TestRenderOmitsEmptySections(t *testing.T) {
	ctx := &TurnContext{
		GameTitle:     "The Broken Crown",
		CurrentTurn:   1,
		CharacterName: "Alice",
	}
	out := Render(ctx, interfaces.FormatMarkdown)

	for _, unwanted := range []string{
		"## active goals", "## relationships", "## distant memories",
		"## recent past", "## witnessed events", "## content limits", "## emotional state",
	} {
		if strings.Contains(out, unwanted) {
			t.Errorf("empty section %q should be omitted:\n%s", unwanted, out)
		}
	}
	if !strings.Contains(out, "## character") {
		t.Error("the character section is always present")
	}
}

func TestRenderCustomInstruction(t *testing.T) {
	ctx := fullContext()
	ctx.Instruction = "Describe only what Alice says aloud."
	out := Render(ctx, interfaces.FormatMarkdown)

	if !strings.Contains(out, "Describe only what Alice says aloud.") {
		t.Error("custom instruction not used")
	}
	if strings.Contains(out, defaultInstruction) {
		t.Error("default instruction must be replaced, not appended")
	}
}
