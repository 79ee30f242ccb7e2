package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// ChannelBus is an in-process pub/sub used when no broker is configured.
// Each event type is its own topic.
type ChannelBus struct {
	pubSub *gochannel.GoChannel
}

func NewChannelBus(logger *slog.Logger) *ChannelBus {
	return &ChannelBus{
		pubSub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 64},
			watermill.NewSlogLogger(logger),
		),
	}
}

func (b *ChannelBus) Publish(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	msg := message.NewMessage(event.ID, data)
	msg.Metadata.Set("session_id", event.SessionID)
	if err := b.pubSub.Publish(event.Type, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}
	return nil
}

// Subscribe returns messages published to eventType from now on.
func (b *ChannelBus) Subscribe(ctx context.Context, eventType string) (<-chan *message.Message, error) {
	return b.pubSub.Subscribe(ctx, eventType)
}

func (b *ChannelBus) Close() error {
	return b.pubSub.Close()
}

var _ Publisher = (*ChannelBus)(nil)
