package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/docforge/rag-pipeline/pkg/config"
	"github.com/docforge/rag-pipeline/pkg/resilience"
)

// Provider produces an embedding vector of provider-native dimensionality.
type Provider interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// HTTPProvider calls an OpenAI-compatible /embeddings endpoint.
type HTTPProvider struct {
	cfg     config.EmbeddingConfig
	client  *http.Client
	breaker *resilience.CircuitBreaker
}

// NewHTTPProvider creates a provider client. Returns nil when no base URL is
// configured so the generator falls straight through to its hash fallback.
func NewHTTPProvider(cfg config.EmbeddingConfig) *HTTPProvider {
	if cfg.BaseURL == "" {
		return nil
	}
	return &HTTPProvider{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: resilience.NewCircuitBreaker("embedding-provider", resilience.CircuitBreakerConfig{}),
	}
}

// ProviderFromConfig returns the configured provider, or a nil interface
// when no base URL is set. Callers must use this rather than assigning a
// possibly-nil *HTTPProvider to the interface directly.
func ProviderFromConfig(cfg config.EmbeddingConfig) Provider {
	p := NewHTTPProvider(cfg)
	if p == nil {
		return nil
	}
	return p
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// EmbedQuery requests an embedding for a single text, retrying transient
// failures behind a circuit breaker.
func (p *HTTPProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := p.breaker.Execute(func() error {
		return resilience.Retry(ctx, "embedding-provider", resilience.RetryConfig{
			MaxAttempts: p.cfg.MaxRetries,
		}, func() error {
			v, err := p.embedOnce(ctx, text)
			if err != nil {
				return err
			}
			vector = v
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return vector, nil
}

func (p *HTTPProvider) embedOnce(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{Input: []string{text}, Model: p.cfg.Model})
	if err != nil {
		return nil, fmt.Errorf("marshaling embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling embedding provider: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("reading embedding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding provider returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decoding embedding response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("embedding provider error: %s", parsed.Error.Message)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embedding provider returned no vector")
	}
	return parsed.Data[0].Embedding, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
