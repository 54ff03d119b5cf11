package engine

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"Story-Loom/server/internal/config"
	"Story-Loom/server/internal/interfaces"
)

const (
	defaultLLMModel   = "gpt-4o-mini"
	defaultLLMTimeout = 120 * time.Second
)

// LLMClient adapts any OpenAI-compatible chat endpoint to
// interfaces.LLMProvider. It owns the per-call timeout and does not retry:
// provider failures surface as *interfaces.ProviderError and the caller
// decides whether the narration turn can proceed without the model.
type LLMClient struct {
	client *openai.Client
	model  string
	format interfaces.PromptFormat
}

// NewLLMClient creates a chat client from config.
func NewLLMClient(cfg config.LLMConfig) *LLMClient {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultLLMTimeout
	}
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}

	model := cfg.Model
	if model == "" {
		model = defaultLLMModel
	}

	format := interfaces.PromptFormat(cfg.Format)
	switch format {
	case interfaces.FormatXML, interfaces.FormatMarkdown, interfaces.FormatPlain:
	default:
		format = interfaces.FormatMarkdown
	}

	return &LLMClient{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
		format: format,
	}
}

// Generate runs one chat completion and returns the text of the first
// choice.
func (c *LLMClient) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: float32(temperature),
	})
	if err != nil {
		return "", &interfaces.ProviderError{Provider: "llm", Op: "generate", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &interfaces.ProviderError{Provider: "llm", Op: "generate", Err: fmt.Errorf("no choices returned")}
	}
	return resp.Choices[0].Message.Content, nil
}

// PreferredFormat reports the prompt markup this deployment was configured
// for.
func (c *LLMClient) PreferredFormat() interfaces.PromptFormat {
	return c.format
}
