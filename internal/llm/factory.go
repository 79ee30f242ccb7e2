package llm

import (
	"context"
	"fmt"
	"time"
)

// ProviderConfig selects and configures a provider.
type ProviderConfig struct {
	Provider    string
	Model       string
	Temperature float32
	MaxTokens   int
	APIKey      string
	BaseURL     string
	CallTimeout time.Duration
}

// New builds the configured provider, wrapped so each call is bounded by
// CallTimeout when it is positive.
func New(ctx context.Context, cfg ProviderConfig) (LLM, error) {
	defaults := Options{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}

	var client LLM
	switch cfg.Provider {
	case "openai":
		client = NewOpenAIClient(cfg.APIKey, cfg.BaseURL, defaults)
	case "anthropic":
		client = NewAnthropicClient(cfg.APIKey, defaults)
	case "gemini":
		gc, err := NewGeminiClient(ctx, cfg.APIKey, defaults)
		if err != nil {
			return nil, err
		}
		client = gc
	case "ollama":
		opts := []OllamaOption{WithDefaults(defaults)}
		if cfg.BaseURL != "" {
			opts = append(opts, WithBaseURL(cfg.BaseURL))
		}
		client = NewOllamaClient(opts...)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}

	if cfg.CallTimeout > 0 {
		client = NewTimeout(client, cfg.CallTimeout)
	}
	return client, nil
}
