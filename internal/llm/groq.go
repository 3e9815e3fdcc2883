package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"specbuddy/internal/backend"
	"specbuddy/internal/session"
)

const defaultGroqURL = "https://api.groq.com/openai/v1/chat/completions"

// GroqClient calls Groq's OpenAI-compatible chat completions API.
type GroqClient struct {
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	baseURL     string
	httpClient  *http.Client
	tel         Telemetry
}

func NewGroqClient(apiKey, model string, temperature float64, maxTokens int, tel Telemetry) *GroqClient {
	return &GroqClient{
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		baseURL:     defaultGroqURL,
		httpClient:  newHTTPClient(),
		tel:         tel,
	}
}

// WithBaseURL points the client at a different endpoint. Used by tests.
func (c *GroqClient) WithBaseURL(url string) *GroqClient {
	c.baseURL = url
	return c
}

func (c *GroqClient) Complete(ctx context.Context, system string, turns []session.Turn) (string, error) {
	ctx, span := c.tel.Tracer.Start(ctx, "groq_api_call")
	defer span.End()

	start := time.Now()

	reqBody := backend.GroqRequest{
		Model:       c.model,
		Messages:    toWireMessages(system, turns),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	body, err := postJSON(ctx, c.httpClient, c.baseURL, map[string]string{
		"Authorization": "Bearer " + c.apiKey,
	}, reqBody)
	if err != nil {
		return "", err
	}

	var apiResp backend.GroqResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	c.tel.recordDuration(ctx, start)
	c.tel.recordUsage(ctx, apiResp.Usage)

	if len(apiResp.Choices) > 0 {
		return apiResp.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("empty response from Groq")
}
