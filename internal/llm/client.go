// Package llm calls an OpenAI-compatible chat completions endpoint to ground
// an answer in retrieved context. The package's responsibility ends at
// prompt assembly and the single inference call.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/docforge/rag-pipeline/pkg/config"
	"github.com/docforge/rag-pipeline/pkg/resilience"
)

// NoDocumentsMarker is placed in the prompt when retrieval found nothing, so
// the model is told explicitly rather than being handed an empty block.
const NoDocumentsMarker = "[no documents found]"

const systemInstructions = "You are a helpful assistant. Answer the question using only the provided context. " +
	"If the context does not contain the answer, say so plainly instead of guessing."

// Client calls the inference endpoint.
type Client struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewClient creates a Client; returns nil when no endpoint is configured.
func NewClient(cfg config.LLMConfig) *Client {
	if cfg.BaseURL == "" {
		return nil
	}
	return &Client{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// BuildPrompt assembles the grounded prompt from the retrieved context and
// the user's question.
func BuildPrompt(contextBlock, question string) string {
	if strings.TrimSpace(contextBlock) == "" {
		contextBlock = NoDocumentsMarker
	}
	var sb strings.Builder
	sb.WriteString("Context:\n")
	sb.WriteString(contextBlock)
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(question)
	return sb.String()
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends the assembled prompt and returns the model's answer. The
// call is bounded by the configured timeout.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	var answer string
	err := resilience.WithTimeout(ctx, c.cfg.Timeout, "llm-completion", func(ctx context.Context) error {
		body, err := json.Marshal(chatRequest{
			Model: c.cfg.Model,
			Messages: []chatMessage{
				{Role: "system", Content: systemInstructions},
				{Role: "user", Content: prompt},
			},
			MaxTokens: c.cfg.MaxTokens,
		})
		if err != nil {
			return fmt.Errorf("marshaling chat request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("building chat request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("calling inference endpoint: %w", err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
		if err != nil {
			return fmt.Errorf("reading chat response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("inference endpoint returned %d", resp.StatusCode)
		}

		var parsed chatResponse
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return fmt.Errorf("decoding chat response: %w", err)
		}
		if parsed.Error != nil {
			return fmt.Errorf("inference error: %s", parsed.Error.Message)
		}
		if len(parsed.Choices) == 0 {
			return fmt.Errorf("inference endpoint returned no choices")
		}
		answer = parsed.Choices[0].Message.Content
		return nil
	})
	return answer, err
}
