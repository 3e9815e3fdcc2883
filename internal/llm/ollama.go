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

const defaultOllamaURL = "http://localhost:11434/api/chat"

// OllamaClient calls a local Ollama server. It needs no credential.
type OllamaClient struct {
	model      string
	baseURL    string
	httpClient *http.Client
	tel        Telemetry
}

func NewOllamaClient(model string, tel Telemetry) *OllamaClient {
	return &OllamaClient{
		model:      model,
		baseURL:    defaultOllamaURL,
		httpClient: newHTTPClient(),
		tel:        tel,
	}
}

func (c *OllamaClient) WithBaseURL(url string) *OllamaClient {
	c.baseURL = url
	return c
}

func (c *OllamaClient) Complete(ctx context.Context, system string, turns []session.Turn) (string, error) {
	ctx, span := c.tel.Tracer.Start(ctx, "ollama_api_call")
	defer span.End()

	start := time.Now()

	reqBody := backend.OllamaRequest{
		Model:    c.model,
		Messages: toWireMessages(system, turns),
		Stream:   false,
	}

	body, err := postJSON(ctx, c.httpClient, c.baseURL, nil, reqBody)
	if err != nil {
		return "", err
	}

	var apiResp backend.OllamaResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	c.tel.recordDuration(ctx, start)

	return apiResp.Message.Content, nil
}
