package intent

// Stage is one step of an action chain. Progress values in
// [MinProgress, MaxProgress) belong to the stage; the final stage also
// claims progress 100 exactly.
type Stage struct {
	Name        string   `json:"name"`
	MinProgress int      `json:"min_progress"`
	MaxProgress int      `json:"max_progress"`
	Keywords    []string `json:"keywords"`
}

// Chain is a static multi-turn goal template: an ordered list of stages
// covering progress 0-100, each with the keyword set used to infer progress
// from free-text action descriptions.
type Chain struct {
	Type   string  `json:"type"`
	Stages []Stage `json:"stages"`
}

// chains is the static chain registry. Stage ranges partition 0-100 so
// every progress value derives exactly one stage.
var chains = map[string]Chain{
	"seduction": {
		Type: "seduction",
		Stages: []Stage{
			{Name: "show_interest", MinProgress: 0, MaxProgress: 25,
				Keywords: []string{"smile", "eye contact", "glance", "notice", "look at"}},
			{Name: "flirtation", MinProgress: 25, MaxProgress: 50,
				Keywords: []string{"flirt", "compliment", "tease", "laugh", "charm"}},
			{Name: "escalate_tension", MinProgress: 50, MaxProgress: 75,
				Keywords: []string{"touch", "lean close", "whisper", "linger", "brush"}},
			{Name: "intimate_approach", MinProgress: 75, MaxProgress: 100,
				Keywords: []string{"kiss", "embrace", "caress", "hold", "invite"}},
		},
	},
	"intimidation": {
		Type: "intimidation",
		Stages: []Stage{
			{Name: "assert_presence", MinProgress: 0, MaxProgress: 25,
				Keywords: []string{"stare", "loom", "step forward", "cross arms", "block"}},
			{Name: "veiled_threat", MinProgress: 25, MaxProgress: 50,
				Keywords: []string{"warn", "imply", "suggest", "remind", "hint"}},
			{Name: "open_threat", MinProgress: 50, MaxProgress: 75,
				Keywords: []string{"threaten", "demand", "snarl", "grab", "slam"}},
			{Name: "domination", MinProgress: 75, MaxProgress: 100,
				Keywords: []string{"force", "submit", "break", "crush", "corner"}},
		},
	},
	"persuasion": {
		Type: "persuasion",
		Stages: []Stage{
			{Name: "establish_rapport", MinProgress: 0, MaxProgress: 25,
				Keywords: []string{"agree", "listen", "nod", "sympathize", "relate"}},
			{Name: "present_case", MinProgress: 25, MaxProgress: 50,
				Keywords: []string{"explain", "argue", "reason", "propose", "point out"}},
			{Name: "press_advantage", MinProgress: 50, MaxProgress: 75,
				Keywords: []string{"insist", "urge", "appeal", "press", "convince"}},
			{Name: "secure_agreement", MinProgress: 75, MaxProgress: 100,
				Keywords: []string{"promise", "seal", "shake hands", "commit", "accept"}},
		},
	},
	"deception": {
		Type: "deception",
		Stages: []Stage{
			{Name: "build_cover", MinProgress: 0, MaxProgress: 25,
				Keywords: []string{"pretend", "act", "pose", "disguise", "claim"}},
			{Name: "earn_trust", MinProgress: 25, MaxProgress: 50,
				Keywords: []string{"confide", "assure", "reassure", "vouch", "help"}},
			{Name: "plant_falsehood", MinProgress: 50, MaxProgress: 75,
				Keywords: []string{"lie", "mislead", "fabricate", "insinuate", "distort"}},
			{Name: "spring_trap", MinProgress: 75, MaxProgress: 100,
				Keywords: []string{"betray", "reveal", "expose", "spring", "double-cross"}},
		},
	},
}

// ChainFor returns the chain definition for an intent type.
func ChainFor(intentType string) (Chain, bool) {
	chain, ok := chains[intentType]
	return chain, ok
}

// ChainTypes returns the registered intent types.
func ChainTypes() []string {
	types := make([]string, 0, len(chains))
	for t := range chains {
		types = append(types, t)
	}
	return types
}

// StageFromProgress returns the stage owning the progress value. Progress at
// or past 100 resolves to the final stage. ok is false for unknown intent
// types.
func StageFromProgress(intentType string, progress int) (string, bool) {
	chain, ok := chains[intentType]
	if !ok || len(chain.Stages) == 0 {
		return "", false
	}

	if progress < 0 {
		progress = 0
	}
	if progress >= 100 {
		return chain.Stages[len(chain.Stages)-1].Name, true
	}

	for _, stage := range chain.Stages {
		if progress >= stage.MinProgress && progress < stage.MaxProgress {
			return stage.Name, true
		}
	}
	// Ranges partition 0-100, so this is unreachable for well-formed chains.
	return chain.Stages[len(chain.Stages)-1].Name, true
}
