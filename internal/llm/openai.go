package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/knoguchi/supportagent/internal/model"
)

// OpenAIClient implements the LLM interface with the OpenAI chat completions API.
type OpenAIClient struct {
	client   openai.Client
	defaults Options
}

// NewOpenAIClient creates a client. baseURL may be empty to use the public API.
func NewOpenAIClient(apiKey, baseURL string, defaults Options) *OpenAIClient {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	return &OpenAIClient{
		client:   openai.NewClient(reqOpts...),
		defaults: defaults,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, messages []Message, opts ...Option) (string, error) {
	o := Apply(c.defaults, opts...)

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.Model),
		Messages:    make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
		Temperature: openai.Float(float64(o.Temperature)),
	}
	if o.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(o.MaxTokens))
	}
	for _, m := range messages {
		switch m.Role {
		case model.RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case model.RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

var _ LLM = (*OpenAIClient)(nil)
