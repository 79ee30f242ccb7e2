package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knoguchi/supportagent/internal/model"
)

func TestOllamaCompleteSendsChatRequest(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(ollamaChatResponse{
			Message: ollamaMessage{Role: "assistant", Content: "billing"},
			Done:    true,
		})
	}))
	defer srv.Close()

	client := NewOllamaClient(
		WithBaseURL(srv.URL+"/"),
		WithDefaults(Options{Model: "llama3.2", Temperature: 0.1, MaxTokens: 64}),
	)

	out, err := client.Complete(context.Background(), []Message{
		{Role: model.RoleSystem, Content: "classify"},
		{Role: model.RoleUser, Content: "my bill is wrong"},
	}, WithModel("mistral"))
	require.NoError(t, err)

	assert.Equal(t, "billing", out)
	assert.Equal(t, "mistral", got.Model)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "my bill is wrong", got.Messages[1].Content)
	assert.EqualValues(t, 64, got.Options["num_predict"])
}

func TestOllamaCompleteReportsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewOllamaClient(WithBaseURL(srv.URL))
	_, err := client.Complete(context.Background(), []Message{{Role: model.RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}
