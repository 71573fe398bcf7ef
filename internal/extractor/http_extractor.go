package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/avneeshrai07/Agent-Memory-System/internal/domain/cognition"
	"github.com/avneeshrai07/Agent-Memory-System/internal/domain/stm"
	"github.com/avneeshrai07/Agent-Memory-System/internal/errors"
	"github.com/avneeshrai07/Agent-Memory-System/internal/logging"
)

// HTTPExtractor calls a JSON-mode chat completion endpoint constrained to a
// fixed schema, mirroring the teacher's retryClient-wrapped completion call
// (internal/infra/llm/retry_client.go) but for structured rather than free
// text output. Null or malformed payloads decode to a zero TurnExtraction
// rather than an error, per spec §7 ("extraction/LLM-format" taxonomy).
type HTTPExtractor struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     logging.Logger
	retry      errors.RetryConfig
}

func NewHTTPExtractor(baseURL, apiKey, model string, client *http.Client) *HTTPExtractor {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPExtractor{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: client,
		logger:     logging.NewComponentLogger("extractor"),
		retry:      errors.DefaultRetryConfig(),
	}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// wirePayload is the schema the structured-output model is constrained to.
// Unknown/absent fields decode to zero values, which downstream (the STM
// gate, the cognition engine) correctly treats as "nothing extracted".
type wirePayload struct {
	Route     string `json:"route"`
	STMIntent struct {
		ShouldWrite bool    `json:"should_write"`
		StateType   string  `json:"state_type"`
		Statement   string  `json:"statement"`
		Rationale   string  `json:"rationale"`
		AppliesTo   string  `json:"applies_to"`
		Confidence  float64 `json:"confidence"`
	} `json:"stm_intent"`
	PersonaSignals []struct {
		Category       string  `json:"category"`
		Field          string  `json:"field"`
		Value          any     `json:"value"`
		BaseConfidence float64 `json:"base_confidence"`
		Source         string  `json:"source"`
		EpistemicRole  string  `json:"epistemic_role"`
	} `json:"persona_signals"`
	Factual []struct {
		Category   string  `json:"category"`
		Topic      string  `json:"topic"`
		Fact       string  `json:"fact"`
		Importance float64 `json:"importance"`
		Confidence float64 `json:"confidence"`
		Source     string  `json:"source"`
	} `json:"factual"`
	Episodic []struct {
		Scope string `json:"scope"`
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"episodic"`
}

func (e *HTTPExtractor) ExtractTurn(ctx context.Context, userID, systemPrompt, userPrompt string) (TurnExtraction, error) {
	result, err := errors.RetryWithResultAndLog(ctx, e.retry, func(ctx context.Context) (TurnExtraction, error) {
		body, err := json.Marshal(chatRequest{
			Model: e.model,
			Messages: []chatMessage{
				{Role: "system", Content: systemPrompt},
				{Role: "user", Content: userPrompt},
			},
			ResponseFormat: &responseFormat{Type: "json_object"},
		})
		if err != nil {
			return TurnExtraction{}, fmt.Errorf("extractor: marshal request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return TurnExtraction{}, fmt.Errorf("extractor: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if e.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+e.apiKey)
		}

		resp, err := e.httpClient.Do(req)
		if err != nil {
			return TurnExtraction{}, errors.MarkTransient(fmt.Errorf("extractor: request: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return TurnExtraction{}, errors.MarkTransient(fmt.Errorf("extractor: upstream status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return TurnExtraction{}, fmt.Errorf("extractor: upstream status %d", resp.StatusCode)
		}

		var chat chatResponse
		if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
			return TurnExtraction{}, fmt.Errorf("extractor: decode response: %w", err)
		}
		if len(chat.Choices) == 0 {
			return TurnExtraction{}, nil
		}

		var payload wirePayload
		if err := json.Unmarshal([]byte(chat.Choices[0].Message.Content), &payload); err != nil {
			e.logger.Warn("extractor: malformed structured output, treating as empty: %v", err)
			return TurnExtraction{}, nil
		}

		return toTurnExtraction(payload), nil
	}, e.logger)

	return result, err
}

func toTurnExtraction(p wirePayload) TurnExtraction {
	out := TurnExtraction{
		Route: Route(p.Route),
		STMIntent: stm.Intent{
			ShouldWrite: p.STMIntent.ShouldWrite,
			StateType:   stm.StateType(p.STMIntent.StateType),
			Statement:   p.STMIntent.Statement,
			Rationale:   p.STMIntent.Rationale,
			AppliesTo:   p.STMIntent.AppliesTo,
			Confidence:  p.STMIntent.Confidence,
		},
	}

	for _, s := range p.PersonaSignals {
		out.PersonaSignal.Signals = append(out.PersonaSignal.Signals, cognition.Signal{
			Category:       s.Category,
			Field:          s.Field,
			Value:          s.Value,
			BaseConfidence: s.BaseConfidence,
			Source:         cognition.Source(s.Source),
			EpistemicRole:  cognition.EpistemicRole(s.EpistemicRole),
			Frequency:      1,
		})
	}

	for _, f := range p.Factual {
		out.Factual = append(out.Factual, FactualFact{
			Category:   f.Category,
			Topic:      f.Topic,
			Fact:       f.Fact,
			Importance: f.Importance,
			Confidence: f.Confidence,
			Source:     f.Source,
		})
	}

	for _, ep := range p.Episodic {
		out.Episodic = append(out.Episodic, EpisodicFact{
			Scope: ep.Scope,
			Key:   ep.Key,
			Value: ep.Value,
		})
	}

	return out
}
