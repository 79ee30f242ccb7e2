package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Subscriber is the read side of an in-process bus.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

// HandoffFunc is called for each escalated turn.
type HandoffFunc func(ctx context.Context, event Event) error

// ConsumeEscalations calls handle for every turn.escalated event until ctx
// is done. Malformed messages are acked and dropped; handler failures are
// nacked for redelivery.
func ConsumeEscalations(ctx context.Context, sub Subscriber, handle HandoffFunc, logger *slog.Logger) error {
	messages, err := sub.Subscribe(ctx, TypeTurnEscalated)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			var event Event
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				logger.Error("dropping malformed escalation event", "message_id", msg.UUID, "error", err)
				msg.Ack()
				continue
			}
			if err := handle(msg.Context(), event); err != nil {
				logger.Warn("escalation handoff failed", "session_id", event.SessionID, "error", err)
				msg.Nack()
				continue
			}
			msg.Ack()
		}
	}()
	return nil
}

// LogHandoff records the escalation in the service log so an operator can
// pick the conversation up.
func LogHandoff(logger *slog.Logger) HandoffFunc {
	return func(_ context.Context, event Event) error {
		logger.Info("conversation queued for human agent",
			"session_id", event.SessionID,
			"event_id", event.ID,
			"intent", event.Data["intent"],
			"query", event.Data["query"],
		)
		return nil
	}
}
