package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/avneeshrai07/Agent-Memory-System/internal/domain/memory"
	"github.com/avneeshrai07/Agent-Memory-System/internal/errors"
	"github.com/avneeshrai07/Agent-Memory-System/internal/logging"
)

// HTTPProvider calls an external embedding endpoint (OpenAI-compatible
// /embeddings shape), grounded on the teacher's retryClient wrapping an
// underlying HTTP-backed LLM client (internal/infra/llm/retry_client.go).
type HTTPProvider struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     logging.Logger
	retry      errors.RetryConfig
}

func NewHTTPProvider(baseURL, apiKey, model string, client *http.Client) *HTTPProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProvider{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: client,
		logger:     logging.NewComponentLogger("embedding"),
		retry:      errors.DefaultRetryConfig(),
	}
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (p *HTTPProvider) Embed(ctx context.Context, texts []string) ([]memory.Embedding, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	return errors.RetryWithResultAndLog(ctx, p.retry, func(ctx context.Context) ([]memory.Embedding, error) {
		body, err := json.Marshal(embeddingRequest{Model: p.model, Input: texts})
		if err != nil {
			return nil, fmt.Errorf("embedding: marshal request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("embedding: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if p.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+p.apiKey)
		}

		resp, err := p.httpClient.Do(req)
		if err != nil {
			return nil, errors.MarkTransient(fmt.Errorf("embedding: request: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return nil, errors.MarkTransient(fmt.Errorf("embedding: upstream status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("embedding: upstream status %d", resp.StatusCode)
		}

		var parsed embeddingResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return nil, fmt.Errorf("embedding: decode response: %w", err)
		}

		out := make([]memory.Embedding, len(parsed.Data))
		for i, d := range parsed.Data {
			out[i] = memory.Embedding(d.Embedding)
		}
		return out, nil
	}, p.logger)
}
