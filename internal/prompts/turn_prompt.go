package prompts

import (
	"fmt"
	"strings"

	"Story-Loom/server/internal/interfaces"
)

// TurnContext is everything the engine assembles for one character turn:
// perspective-filtered history, internal state, memory at every tier, and
// the content ceilings the model must respect.
type TurnContext struct {
	GameTitle     string
	CurrentTurn   int
	CharacterName string
	Description   string
	Traits        []string

	Emotion       EmotionContext
	Intents       []IntentContext
	Relationships []RelationshipContext

	WitnessedEvents  []string
	RecentSummaries  []string
	RecalledMemories []string

	BoundaryGuidance []string
	Instruction      string
}

type EmotionContext struct {
	Primary    string
	Level      int
	LevelName  string
	Trajectory string
}

type IntentContext struct {
	Type     string
	Target   string
	Stage    string
	Progress int
}

type RelationshipContext struct {
	TargetName string
	Type       string
	Trust      float64
	Fear       float64
	Respect    float64
}

const defaultInstruction = "Write this character's next action in third person, staying strictly within what they have witnessed and within the content limits above. Respond with narrative prose only."

// section is one labeled block of the prompt; the renderers only differ in
// how they mark sections up.
type section struct {
	name  string
	lines []string
}

// Render assembles the prompt in the markup the provider prefers.
func Render(ctx *TurnContext, format interfaces.PromptFormat) string {
	sections := buildSections(ctx)

	switch format {
	case interfaces.FormatXML:
		return renderXML(ctx, sections)
	case interfaces.FormatPlain:
		return renderPlain(ctx, sections)
	default:
		return renderMarkdown(ctx, sections)
	}
}

func buildSections(ctx *TurnContext) []section {
	var sections []section

	character := []string{fmt.Sprintf("Name: %s", ctx.CharacterName)}
	if ctx.Description != "" {
		character = append(character, fmt.Sprintf("Description: %s", ctx.Description))
	}
	if len(ctx.Traits) > 0 {
		character = append(character, fmt.Sprintf("Personality: %s", strings.Join(ctx.Traits, ", ")))
	}
	sections = append(sections, section{name: "character", lines: character})

	if ctx.Emotion.Primary != "" {
		sections = append(sections, section{name: "emotional_state", lines: []string{
			fmt.Sprintf("%s at intensity %d (%s), trajectory %s",
				ctx.Emotion.Primary, ctx.Emotion.Level, ctx.Emotion.LevelName, ctx.Emotion.Trajectory),
		}})
	}

	if len(ctx.Intents) > 0 {
		var lines []string
		for _, intent := range ctx.Intents {
			line := fmt.Sprintf("%s (stage: %s, progress %d/100)", intent.Type, intent.Stage, intent.Progress)
			if intent.Target != "" {
				line = fmt.Sprintf("%s toward %s (stage: %s, progress %d/100)",
					intent.Type, intent.Target, intent.Stage, intent.Progress)
			}
			lines = append(lines, line)
		}
		sections = append(sections, section{name: "active_goals", lines: lines})
	}

	if len(ctx.Relationships) > 0 {
		var lines []string
		for _, rel := range ctx.Relationships {
			lines = append(lines, fmt.Sprintf("%s: %s (trust %.2f, fear %.2f, respect %.2f)",
				rel.TargetName, rel.Type, rel.Trust, rel.Fear, rel.Respect))
		}
		sections = append(sections, section{name: "relationships", lines: lines})
	}

	if len(ctx.RecalledMemories) > 0 {
		sections = append(sections, section{name: "distant_memories", lines: ctx.RecalledMemories})
	}
	if len(ctx.RecentSummaries) > 0 {
		sections = append(sections, section{name: "recent_past", lines: ctx.RecentSummaries})
	}
	if len(ctx.WitnessedEvents) > 0 {
		sections = append(sections, section{name: "witnessed_events", lines: ctx.WitnessedEvents})
	}
	if len(ctx.BoundaryGuidance) > 0 {
		sections = append(sections, section{name: "content_limits", lines: ctx.BoundaryGuidance})
	}

	return sections
}

func header(ctx *TurnContext) string {
	return fmt.Sprintf("You are narrating for %s in \"%s\", turn %d.",
		ctx.CharacterName, ctx.GameTitle, ctx.CurrentTurn)
}

func instruction(ctx *TurnContext) string {
	if ctx.Instruction != "" {
		return ctx.Instruction
	}
	return defaultInstruction
}

func renderMarkdown(ctx *TurnContext, sections []section) string {
	var b strings.Builder
	b.WriteString(header(ctx))
	b.WriteString("\n")
	for _, s := range sections {
		b.WriteString("\n## " + strings.ReplaceAll(s.name, "_", " ") + "\n")
		for _, line := range s.lines {
			b.WriteString("- " + line + "\n")
		}
	}
	b.WriteString("\n" + instruction(ctx) + "\n")
	return b.String()
}

func renderXML(ctx *TurnContext, sections []section) string {
	var b strings.Builder
	b.WriteString(header(ctx))
	b.WriteString("\n")
	for _, s := range sections {
		b.WriteString("\n<" + s.name + ">\n")
		for _, line := range s.lines {
			b.WriteString(line + "\n")
		}
		b.WriteString("</" + s.name + ">\n")
	}
	b.WriteString("\n" + instruction(ctx) + "\n")
	return b.String()
}

func renderPlain(ctx *TurnContext, sections []section) string {
	var b strings.Builder
	b.WriteString(header(ctx))
	b.WriteString("\n")
	for _, s := range sections {
		b.WriteString("\n" + strings.ToUpper(strings.ReplaceAll(s.name, "_", " ")) + ":\n")
		for _, line := range s.lines {
			b.WriteString("  " + line + "\n")
		}
	}
	b.WriteString("\n" + instruction(ctx) + "\n")
	return b.String()
}
