package events

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewEvent(t *testing.T) {
	e := New(TypeTurnCompleted, "s1", map[string]any{"intent": "billing"})
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "s1", e.SessionID)
	assert.WithinDuration(t, time.Now(), e.OccurredAt, time.Minute)
	assert.Equal(t, "support.turn.escalated", Subject(TypeTurnEscalated))
}

func TestChannelBusDeliversByType(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewChannelBus(discard())
	defer bus.Close()

	msgs, err := bus.Subscribe(ctx, TypeSessionCleared)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, New(TypeTurnCompleted, "s1", nil)))
	require.NoError(t, bus.Publish(ctx, New(TypeSessionCleared, "s1", nil)))

	select {
	case msg := <-msgs:
		assert.Equal(t, "s1", msg.Metadata.Get("session_id"))
		assert.Contains(t, string(msg.Payload), `"type":"session.cleared"`)
		msg.Ack()
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered")
	}
}

func TestConsumeEscalations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewChannelBus(discard())
	defer bus.Close()

	var (
		mu   sync.Mutex
		seen []string
		done = make(chan struct{}, 1)
	)
	handle := func(_ context.Context, e Event) error {
		mu.Lock()
		seen = append(seen, e.SessionID)
		mu.Unlock()
		done <- struct{}{}
		return nil
	}
	require.NoError(t, ConsumeEscalations(ctx, bus, handle, discard()))

	require.NoError(t, bus.Publish(ctx, New(TypeTurnEscalated, "angry-customer", map[string]any{"intent": "billing"})))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handoff not called")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"angry-customer"}, seen)
}

func TestLogHandoff(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := LogHandoff(logger)(context.Background(), New(TypeTurnEscalated, "s9", map[string]any{"intent": "billing"}))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"session_id":"s9"`)
	assert.Contains(t, buf.String(), "queued for human agent")
}

func TestConsumeEscalationsSubscribeError(t *testing.T) {
	err := ConsumeEscalations(context.Background(), failingSub{}, LogHandoff(discard()), discard())
	assert.Error(t, err)
}

type failingSub struct{}

func (failingSub) Subscribe(context.Context, string) (<-chan *message.Message, error) {
	return nil, errors.New("closed")
}
