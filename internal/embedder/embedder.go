// Package embedder turns retrieval queries into vectors in the same space
// as the indexed knowledge base.
package embedder

import "context"

// Embedder defines the interface for text embedding services.
type Embedder interface {
	// Embed generates an embedding vector for a single text input.
	Embed(ctx context.Context, text string) ([]float32, error)

	// ModelName returns the name of the embedding model being used.
	ModelName() string
}

// Config selects and configures an embedding provider.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// New builds the configured embedder.
func New(cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIEmbedder(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	case "ollama":
		return NewOllamaEmbedder(OllamaConfig{BaseURL: cfg.BaseURL, Model: cfg.Model}), nil
	default:
		return nil, &UnsupportedProviderError{Provider: cfg.Provider}
	}
}

// UnsupportedProviderError is returned by New for an unknown provider.
type UnsupportedProviderError struct {
	Provider string
}

func (e *UnsupportedProviderError) Error() string {
	return "unsupported embedding provider: " + e.Provider
}
