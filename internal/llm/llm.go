// Package llm provides the chat-completion capability used by the agent and
// its provider implementations.
package llm

import (
	"context"

	"github.com/knoguchi/supportagent/internal/model"
)

// Message is one chat message sent to the model.
type Message struct {
	Role    model.Role
	Content string
}

// Options configures a completion request.
type Options struct {
	// Model specifies the model to use (e.g., "gpt-4o-mini", "llama3.2").
	Model string

	// Temperature controls randomness in generation (0.0 = deterministic).
	Temperature float32

	// MaxTokens limits the number of tokens in the response. Zero means
	// the provider default.
	MaxTokens int
}

// Option overrides a client's default Options for a single call.
type Option func(*Options)

// WithModel sets the model for a call.
func WithModel(m string) Option {
	return func(o *Options) { o.Model = m }
}

// WithTemperature sets the sampling temperature for a call.
func WithTemperature(t float32) Option {
	return func(o *Options) { o.Temperature = t }
}

// WithMaxTokens sets the output token limit for a call.
func WithMaxTokens(n int) Option {
	return func(o *Options) { o.MaxTokens = n }
}

// Apply returns defaults with opts applied on top.
func Apply(defaults Options, opts ...Option) Options {
	o := defaults
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// LLM defines the interface for chat-completion clients.
type LLM interface {
	// Complete sends the ordered messages to the model and returns the
	// generated text. It blocks until the full response is received or an
	// error occurs.
	Complete(ctx context.Context, messages []Message, opts ...Option) (string, error)
}

// Func adapts a plain function to the LLM interface.
type Func func(ctx context.Context, messages []Message, opts ...Option) (string, error)

func (f Func) Complete(ctx context.Context, messages []Message, opts ...Option) (string, error) {
	return f(ctx, messages, opts...)
}

// splitSystem separates system messages, which several providers take as a
// dedicated field, from the conversation.
func splitSystem(messages []Message) (system string, rest []Message) {
	rest = make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == model.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
