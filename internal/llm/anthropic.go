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

const defaultAnthropicURL = "https://api.anthropic.com/v1/messages"

// AnthropicClient calls the Anthropic messages API.
type AnthropicClient struct {
	apiKey     string
	model      string
	maxTokens  int
	baseURL    string
	httpClient *http.Client
	tel        Telemetry
}

func NewAnthropicClient(apiKey, model string, maxTokens int, tel Telemetry) *AnthropicClient {
	return &AnthropicClient{
		apiKey:     apiKey,
		model:      model,
		maxTokens:  maxTokens,
		baseURL:    defaultAnthropicURL,
		httpClient: newHTTPClient(),
		tel:        tel,
	}
}

func (c *AnthropicClient) WithBaseURL(url string) *AnthropicClient {
	c.baseURL = url
	return c
}

func (c *AnthropicClient) Complete(ctx context.Context, system string, turns []session.Turn) (string, error) {
	ctx, span := c.tel.Tracer.Start(ctx, "anthropic_api_call")
	defer span.End()

	start := time.Now()

	reqMessages := make([]backend.AnthropicMessage, len(turns))
	for i, t := range turns {
		reqMessages[i] = backend.AnthropicMessage{Role: t.Role, Content: t.Content}
	}

	reqBody := backend.AnthropicRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    system,
		Messages:  reqMessages,
	}

	body, err := postJSON(ctx, c.httpClient, c.baseURL, map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": "2023-06-01",
	}, reqBody)
	if err != nil {
		return "", err
	}

	var apiResp backend.AnthropicResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	c.tel.recordDuration(ctx, start)
	c.tel.recordUsage(ctx, apiResp.Usage)

	for _, content := range apiResp.Content {
		if content.Type == "text" {
			return content.Text, nil
		}
	}
	return "", fmt.Errorf("empty response from Anthropic")
}
