// Package chat implements the orchestrator's ChatFunc dependency: a plain
// (non-structured) completion call to the same class of endpoint the
// extractor talks to, grounded on extractor.HTTPExtractor
// (internal/extractor/http_extractor.go) minus the JSON response-format
// constraint.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/avneeshrai07/Agent-Memory-System/internal/errors"
	"github.com/avneeshrai07/Agent-Memory-System/internal/logging"
)

// Client calls a chat completion endpoint for final user-facing responses.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     logging.Logger
	retry      errors.RetryConfig
}

func NewClient(baseURL, apiKey, model string, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: client,
		logger:     logging.NewComponentLogger("chat"),
		retry:      errors.DefaultRetryConfig(),
	}
}

type completionRequest struct {
	Model    string              `json:"model"`
	Messages []completionMessage `json:"messages"`
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionResponse struct {
	Choices []struct {
		Message completionMessage `json:"message"`
	} `json:"choices"`
}

// Complete is wired as the orchestrator's ChatFunc: it answers the turn with
// the system/user prompt the orchestrator already assembled (epistemic
// rules, retrieved context).
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return errors.RetryWithResultAndLog(ctx, c.retry, func(ctx context.Context) (string, error) {
		body, err := json.Marshal(completionRequest{
			Model: c.model,
			Messages: []completionMessage{
				{Role: "system", Content: systemPrompt},
				{Role: "user", Content: userPrompt},
			},
		})
		if err != nil {
			return "", fmt.Errorf("chat: marshal request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("chat: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return "", errors.MarkTransient(fmt.Errorf("chat: request: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return "", errors.MarkTransient(fmt.Errorf("chat: upstream status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("chat: upstream status %d", resp.StatusCode)
		}

		var parsed completionResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return "", fmt.Errorf("chat: decode response: %w", err)
		}
		if len(parsed.Choices) == 0 {
			return "", fmt.Errorf("chat: empty response")
		}
		return parsed.Choices[0].Message.Content, nil
	}, c.logger)
}
