package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/knoguchi/supportagent/internal/model"
)

// anthropicDefaultMaxTokens is used when no limit is configured; the
// Messages API requires one.
const anthropicDefaultMaxTokens = 1024

// AnthropicClient implements the LLM interface with the Anthropic Messages API.
type AnthropicClient struct {
	client   anthropic.Client
	defaults Options
}

func NewAnthropicClient(apiKey string, defaults Options) *AnthropicClient {
	return &AnthropicClient{
		client:   anthropic.NewClient(option.WithAPIKey(apiKey)),
		defaults: defaults,
	}
}

func (c *AnthropicClient) Complete(ctx context.Context, messages []Message, opts ...Option) (string, error) {
	o := Apply(c.defaults, opts...)
	system, conversation := splitSystem(messages)

	maxTokens := o.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(o.Model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(float64(o.Temperature)),
		Messages:    make([]anthropic.MessageParam, 0, len(conversation)),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	for _, m := range conversation {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == model.RoleAssistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

var _ LLM = (*AnthropicClient)(nil)
