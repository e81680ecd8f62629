package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docforge/rag-pipeline/pkg/config"
)

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("[Source: a.pdf]\nsome chunk", "What is configured?")
	assert.Contains(t, p, "Context:")
	assert.Contains(t, p, "[Source: a.pdf]")
	assert.Contains(t, p, "Question: What is configured?")
}

func TestBuildPromptEmptyContext(t *testing.T) {
	p := BuildPrompt("   ", "anything?")
	assert.Contains(t, p, NoDocumentsMarker)
}

func TestNewClientUnconfigured(t *testing.T) {
	assert.Nil(t, NewClient(config.LLMConfig{}))
}

func TestCompleteRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		json.NewEncoder(w).Encode(chatResponse{
			Choices: []struct {
				Message chatMessage `json:"message"`
			}{{Message: chatMessage{Role: "assistant", Content: "grounded answer"}}},
		})
	}))
	defer srv.Close()

	c := NewClient(config.LLMConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "test-model",
		Timeout: 5 * time.Second,
	})
	require.NotNil(t, c)

	answer, err := c.Complete(context.Background(), BuildPrompt("ctx", "q"))
	require.NoError(t, err)
	assert.Equal(t, "grounded answer", answer)
}

func TestCompleteServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(config.LLMConfig{BaseURL: srv.URL, Timeout: 5 * time.Second})
	_, err := c.Complete(context.Background(), "prompt")
	assert.Error(t, err)
}
