// Package intent classifies support queries into a closed set of categories.
package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/knoguchi/supportagent/internal/llm"
	"github.com/knoguchi/supportagent/internal/model"
)

// categoryHints describes each category for the classification prompt.
var categoryHints = map[model.Category]string{
	model.CategoryPlansPricing:       "plans, prices, upgrades, plan features, promotions",
	model.CategoryBilling:            "invoices, payments, unexpected charges, credits",
	model.CategoryNetwork:            "no signal, slow data, dropped calls, outages, WiFi calling",
	model.CategorySIMActivation:      "SIM or eSIM setup, number porting, device compatibility, unlocking",
	model.CategoryRoaming:            "travel abroad, roaming charges, day passes, international coverage",
	model.CategoryRefundCancellation: "returns, refunds, closing the account, early termination",
	model.CategoryGeneral:            "greetings, thanks, vague questions, anything else",
}

// Classifier maps a query to a category with one model call.
type Classifier struct {
	llmClient llm.LLM
	logger    *slog.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Classifier) { c.logger = l }
}

func NewClassifier(llmClient llm.LLM, opts ...Option) *Classifier {
	c := &Classifier{llmClient: llmClient, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the query's category. The model reply is matched
// exactly after lower-casing and trimming; any other reply is general.
// A failed model call is returned as an error, not retried.
func (c *Classifier) Classify(ctx context.Context, query string) (model.Category, error) {
	resp, err := c.llmClient.Complete(ctx, []llm.Message{
		{Role: model.RoleUser, Content: BuildPrompt(query)},
	}, llm.WithTemperature(0), llm.WithMaxTokens(10))
	if err != nil {
		return "", fmt.Errorf("classifying intent: %w", err)
	}

	category := model.ParseCategory(resp)
	if string(category) != strings.ToLower(strings.TrimSpace(resp)) {
		c.logger.Debug("unrecognized intent label, using general", "label", resp)
	}
	c.logger.Info("intent classified", "intent", category)
	return category, nil
}

// BuildPrompt renders the closed-vocabulary classification prompt.
func BuildPrompt(query string) string {
	var sb strings.Builder
	sb.WriteString("Assign the customer's support query to exactly one category.\n\n")
	sb.WriteString("Categories:\n")
	for _, cat := range model.Categories {
		fmt.Fprintf(&sb, "- %s: %s\n", cat, categoryHints[cat])
	}
	sb.WriteString("\nCustomer query: ")
	sb.WriteString(query)
	sb.WriteString("\n\nReply with the category name only, with no explanation and no punctuation.\n")
	return sb.String()
}
