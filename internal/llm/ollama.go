package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultOllamaBaseURL is the default Ollama API endpoint.
	DefaultOllamaBaseURL = "http://localhost:11434"

	// DefaultOllamaModel is the default Ollama chat model.
	DefaultOllamaModel = "llama3.2"
)

// OllamaClient implements the LLM interface using Ollama's chat API.
type OllamaClient struct {
	baseURL    string
	httpClient *http.Client
	defaults   Options
}

// OllamaOption is a functional option for configuring OllamaClient.
type OllamaOption func(*OllamaClient)

// WithBaseURL sets a custom base URL for the Ollama API.
func WithBaseURL(url string) OllamaOption {
	return func(c *OllamaClient) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) OllamaOption {
	return func(c *OllamaClient) {
		c.httpClient = client
	}
}

// WithDefaults sets the options used when a call does not override them.
func WithDefaults(o Options) OllamaOption {
	return func(c *OllamaClient) {
		c.defaults = o
	}
}

// NewOllamaClient creates a new Ollama LLM client with the given options.
func NewOllamaClient(opts ...OllamaOption) *OllamaClient {
	c := &OllamaClient{
		baseURL: DefaultOllamaBaseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		defaults: Options{Model: DefaultOllamaModel},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model      string        `json:"model"`
	Message    ollamaMessage `json:"message"`
	Done       bool          `json:"done"`
	DoneReason string        `json:"done_reason,omitempty"`
	EvalCount  int           `json:"eval_count,omitempty"`
}

// Complete sends the messages to Ollama and returns the complete response.
func (c *OllamaClient) Complete(ctx context.Context, messages []Message, opts ...Option) (string, error) {
	o := Apply(c.defaults, opts...)

	reqBody := ollamaChatRequest{
		Model:    o.Model,
		Messages: make([]ollamaMessage, 0, len(messages)),
		Stream:   false,
		Options: map[string]any{
			"temperature": o.Temperature,
		},
	}
	if o.MaxTokens > 0 {
		reqBody.Options["num_predict"] = o.MaxTokens
	}
	for _, m := range messages {
		reqBody.Messages = append(reqBody.Messages, ollamaMessage{Role: string(m.Role), Content: m.Content})
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	return result.Message.Content, nil
}

var _ LLM = (*OllamaClient)(nil)
