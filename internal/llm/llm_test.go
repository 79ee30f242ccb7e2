package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knoguchi/supportagent/internal/model"
)

func TestApplyOverridesDefaults(t *testing.T) {
	o := Apply(Options{Model: "a", Temperature: 0.1, MaxTokens: 10}, WithModel("b"), WithMaxTokens(5))
	assert.Equal(t, Options{Model: "b", Temperature: 0.1, MaxTokens: 5}, o)
}

func TestSplitSystem(t *testing.T) {
	system, rest := splitSystem([]Message{
		{Role: model.RoleSystem, Content: "one"},
		{Role: model.RoleUser, Content: "q"},
		{Role: model.RoleSystem, Content: "two"},
		{Role: model.RoleAssistant, Content: "a"},
	})
	assert.Equal(t, "one\n\ntwo", system)
	require.Len(t, rest, 2)
	assert.Equal(t, model.RoleUser, rest[0].Role)
	assert.Equal(t, model.RoleAssistant, rest[1].Role)
}

func TestTimeoutClientFailsSlowCalls(t *testing.T) {
	slow := Func(func(ctx context.Context, _ []Message, _ ...Option) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	_, err := NewTimeout(slow, 10*time.Millisecond).Complete(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTimeoutClientPassesThrough(t *testing.T) {
	fast := Func(func(context.Context, []Message, ...Option) (string, error) {
		return "ok", nil
	})

	out, err := NewTimeout(fast, time.Second).Complete(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), ProviderConfig{Provider: "watson"})
	assert.Error(t, err)
}

func TestNewWrapsWithTimeout(t *testing.T) {
	client, err := New(context.Background(), ProviderConfig{Provider: "ollama", Model: "llama3.2", CallTimeout: time.Second})
	require.NoError(t, err)
	assert.IsType(t, &TimeoutClient{}, client)
}
