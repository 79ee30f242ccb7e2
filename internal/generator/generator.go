// Package generator writes grounded answers from reranked passages and
// flags queries that need a human operator.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/knoguchi/supportagent/internal/llm"
	"github.com/knoguchi/supportagent/internal/model"
)

// Generator produces the assistant reply for a turn.
type Generator struct {
	llmClient    llm.LLM
	systemPrompt string
	escalation   *EscalationDetector
	logger       *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithSystemPrompt replaces the default persona prompt.
func WithSystemPrompt(p string) Option {
	return func(g *Generator) { g.systemPrompt = p }
}

// WithEscalationKeywords replaces the default escalation keyword list.
func WithEscalationKeywords(keywords []string) Option {
	return func(g *Generator) { g.escalation = NewEscalationDetector(keywords) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

func New(llmClient llm.LLM, opts ...Option) *Generator {
	g := &Generator{
		llmClient:    llmClient,
		systemPrompt: SystemPrompt,
		escalation:   NewEscalationDetector(DefaultEscalationKeywords),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate answers query from passages, with history sent ahead of the
// question. With no passages it returns NoContextAnswer without calling
// the model.
func (g *Generator) Generate(ctx context.Context, query string, passages []model.Passage, history []model.Turn) (model.Generation, error) {
	escalate := g.escalation.Detect(query)
	if escalate {
		g.logger.Info("escalation keyword detected")
	}

	if len(passages) == 0 {
		g.logger.Warn("no passages to ground the answer")
		return model.Generation{Answer: NoContextAnswer, Escalate: escalate}, nil
	}

	answer, err := g.llmClient.Complete(ctx, g.buildMessages(query, passages, history))
	if err != nil {
		return model.Generation{}, fmt.Errorf("generating answer: %w", err)
	}

	return model.Generation{Answer: strings.TrimSpace(answer), Escalate: escalate}, nil
}

func (g *Generator) buildMessages(query string, passages []model.Passage, history []model.Turn) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: model.RoleSystem, Content: g.systemPrompt})
	for _, turn := range history {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{
		Role:    model.RoleUser,
		Content: buildAnswerPrompt(BuildContext(passages), query),
	})
	return messages
}

// BuildContext renders passages as source-annotated blocks.
func BuildContext(passages []model.Passage) string {
	blocks := make([]string, len(passages))
	for i, p := range passages {
		blocks[i] = sourcePrefix + p.Source + "]\n" + p.Text
	}
	return strings.Join(blocks, contextSeparator)
}
