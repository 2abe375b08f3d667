// Package ai wraps the text-generation backends used to derive job fields.
package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// LLMProvider sends a prompt to an LLM and returns the raw text response.
type LLMProvider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Provider names accepted in configuration.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// DefaultOpenAIBaseURL is used when an OpenAI provider has no base URL.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// Answers are a number or yes/no, so completions stay short.
const defaultMaxTokens = 64

// ProviderConfig selects and configures one backend.
type ProviderConfig struct {
	Provider  string // openai, anthropic or gemini
	BaseURL   string // OpenAI-compatible endpoint, or an override for anthropic
	Model     string
	APIKey    string
	MaxTokens int
	Timeout   time.Duration
}

// NewProvider builds the backend named by cfg.Provider.
func NewProvider(ctx context.Context, cfg ProviderConfig) (LLMProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ai: api key is required for provider %q", cfg.Provider)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("ai: model is required for provider %q", cfg.Provider)
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}

	switch cfg.Provider {
	case ProviderOpenAI, "":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = DefaultOpenAIBaseURL
		}
		return NewOpenAIProvider(baseURL, cfg.APIKey, cfg.Model, cfg.MaxTokens, httpClient), nil
	case ProviderAnthropic:
		return NewAnthropicProvider(cfg.APIKey, cfg.Model, cfg.MaxTokens, cfg.BaseURL, httpClient), nil
	case ProviderGemini:
		return NewGeminiProvider(ctx, cfg.APIKey, cfg.Model, httpClient)
	default:
		return nil, fmt.Errorf("ai: unknown provider %q", cfg.Provider)
	}
}
