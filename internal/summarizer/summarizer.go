// Package summarizer turns the collected annotations of a room into a
// single natural-language summary using a hosted LLM.
package summarizer

import (
	"context"
	"fmt"
	"net/http"

	"marginalia-backend/internal/config"
)

// SystemPrompt frames every summarization request.
const SystemPrompt = "You are a helpful assistant. Your task is to understand the input provided by the user and create a detailed summary of the content. Please provide a summary of the following text: \n\n"

type Summarizer interface {
	// Summarize returns the raw model output for text. Callers are expected
	// to run it through StripReasoning before storing it.
	Summarize(ctx context.Context, text string) (string, error)
}

// New builds the summarizer selected by SUMMARIZER_PROVIDER.
func New(cfg *config.Config) (Summarizer, error) {
	switch cfg.Summarizer.Provider {
	case config.ProviderGroq:
		if cfg.Groq.APIKey == "" {
			return nil, fmt.Errorf("GROQ_API_KEY is required for the groq summarizer")
		}
		return NewGroqSummarizer(cfg.Groq.APIKey, cfg.Groq.Model, cfg.Groq.BaseURL, cfg.Summarizer.MaxTokens, &http.Client{}), nil
	case config.ProviderAnthropic:
		if cfg.Anthropic.APIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for the anthropic summarizer")
		}
		client := NewAnthropicClient(cfg.Anthropic.APIKey)
		return NewAnthropicSummarizer(client, cfg.Anthropic.Model, cfg.Summarizer.MaxTokens), nil
	default:
		return nil, fmt.Errorf("unknown summarizer provider %q", cfg.Summarizer.Provider)
	}
}
