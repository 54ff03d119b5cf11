package interfaces

import "context"

// PromptFormat declares how a provider prefers its context structured.
type PromptFormat string

const (
	FormatXML      PromptFormat = "xml"
	FormatMarkdown PromptFormat = "markdown"
	FormatPlain    PromptFormat = "plain"
)

// EmbeddingProvider turns text into a fixed-dimension vector. Failures are
// returned as *ProviderError, never as a silent zero vector.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Dimension() int
}

// LLMProvider generates text from an assembled prompt. The implementation
// owns its per-call timeout; the core does not retry.
type LLMProvider interface {
	Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)

	// PreferredFormat tells prompt assembly which structure this provider
	// was tuned for.
	PreferredFormat() PromptFormat
}
