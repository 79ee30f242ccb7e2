package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestREPL(t *testing.T) {
	color.NoColor = true

	var (
		chats   []chatRequest
		cleared []string
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/chat":
			var req chatRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			chats = append(chats, req)
			if req.Message == "lawsuit" {
				_ = json.NewEncoder(w).Encode(chatResponse{Answer: "Connecting you now.", Intent: "general", NeedsEscalation: true})
				return
			}
			_ = json.NewEncoder(w).Encode(chatResponse{
				Answer:  "Bills are due on the 1st.",
				Intent:  "billing",
				Sources: []source{{SourceFile: "billing.docx", Category: "billing", RelevanceScore: 0.8}},
			})
		case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/session/"):
			cleared = append(cleared, strings.TrimPrefix(r.URL.Path, "/session/"))
			_ = json.NewEncoder(w).Encode(map[string]string{"session_id": "s1", "message": "Session cleared."})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	c := &client{base: ts.URL, http: ts.Client()}
	in := strings.NewReader("when is my bill due?\n\n/reset\nlawsuit\n/quit\nnever sent\n")
	var out bytes.Buffer

	require.NoError(t, repl(context.Background(), c, "s1", in, &out))

	require.Len(t, chats, 2)
	assert.Equal(t, "s1", chats[0].SessionID)
	assert.Equal(t, []string{"s1"}, cleared)

	text := out.String()
	assert.Contains(t, text, "alex> Bills are due on the 1st.")
	assert.Contains(t, text, "source: billing.docx [billing] 0.80")
	assert.Contains(t, text, "Session cleared.")
	assert.Contains(t, text, "flagged for a human agent")
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"retrieval_unavailable","detail":"Knowledge base is not ready."}`))
	}))
	defer ts.Close()

	c := &client{base: ts.URL, http: ts.Client()}
	_, err := c.chat(context.Background(), "s1", "hi")
	require.Error(t, err)

	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Equal(t, "retrieval_unavailable", apiErr.Kind)
	assert.Contains(t, err.Error(), "Knowledge base is not ready.")
}
