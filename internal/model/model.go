// Package model holds the data types shared by the agent pipeline: passages,
// intent categories and conversation turns.
package model

import (
	"strings"
	"time"
)

// Category is the topical class of a user query.
type Category string

const (
	CategoryPlansPricing       Category = "plans_pricing"
	CategoryBilling            Category = "billing"
	CategoryNetwork            Category = "network"
	CategorySIMActivation      Category = "sim_activation"
	CategoryRoaming            Category = "roaming"
	CategoryRefundCancellation Category = "refund_cancellation"
	CategoryGeneral            Category = "general"
)

// Categories lists the closed category set in prompt order.
var Categories = []Category{
	CategoryPlansPricing,
	CategoryBilling,
	CategoryNetwork,
	CategorySIMActivation,
	CategoryRoaming,
	CategoryRefundCancellation,
	CategoryGeneral,
}

// ParseCategory lower-cases and trims s and returns the matching category.
// Anything that is not an exact member of the set maps to CategoryGeneral,
// so "Billing Issues!!" is general, not billing.
func ParseCategory(s string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c
		}
	}
	return CategoryGeneral
}

// Metadata defaults applied when the vector store omits a field.
const (
	DefaultSource   = "unknown"
	DefaultCategory = string(CategoryGeneral)
)

// Passage is a retrievable unit of knowledge-base text.
type Passage struct {
	Text     string
	Source   string
	Category string
	// Score is the rerank relevance score (1-10). Zero until reranked.
	Score float64
}

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Generation is the output of the answer generator.
type Generation struct {
	Answer   string
	Escalate bool
}
