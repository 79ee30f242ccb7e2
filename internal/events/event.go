// Package events publishes conversation events for downstream consumers
// such as the human hand-off queue.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeTurnCompleted  = "turn.completed"
	TypeTurnEscalated  = "turn.escalated"
	TypeSessionCleared = "session.cleared"
)

// Event is a fact about a support conversation.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	SessionID  string         `json:"session_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType, sessionID string, data map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		SessionID:  sessionID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Publisher delivers events. Publishing is best-effort for callers: a
// failure is logged, never returned to the end user.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
