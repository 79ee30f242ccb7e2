package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/knoguchi/supportagent/internal/model"
)

// GeminiClient implements the LLM interface with the Gemini API.
type GeminiClient struct {
	client   *genai.Client
	defaults Options
}

func NewGeminiClient(ctx context.Context, apiKey string, defaults Options) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &GeminiClient{client: client, defaults: defaults}, nil
}

func (c *GeminiClient) Complete(ctx context.Context, messages []Message, opts ...Option) (string, error) {
	o := Apply(c.defaults, opts...)
	system, conversation := splitSystem(messages)

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(o.Temperature),
	}
	if o.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(o.MaxTokens)
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	contents := make([]*genai.Content, 0, len(conversation))
	for _, m := range conversation {
		role := genai.Role(genai.RoleUser)
		if m.Role == model.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	resp, err := c.client.Models.GenerateContent(ctx, o.Model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	return resp.Text(), nil
}

var _ LLM = (*GeminiClient)(nil)
