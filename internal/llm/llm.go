// Package llm provides completion clients for the supported providers.
// Each client turns a system prompt plus conversation turns into a
// single completed text string.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"specbuddy/internal/session"
)

// Client is the completion interface the engine depends on.
type Client interface {
	Complete(ctx context.Context, system string, turns []session.Turn) (string, error)
}

// Telemetry carries the shared tracer and meter every client records to.
type Telemetry struct {
	Tracer trace.Tracer
	Meter  metric.Meter
	Logger *slog.Logger
}

// recordDuration records the shared request-duration histogram.
func (t Telemetry) recordDuration(ctx context.Context, start time.Time) {
	histogram, err := t.Meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
	)
	if err == nil {
		histogram.Record(ctx, float64(time.Since(start).Milliseconds()))
	}
}

// recordUsage records provider usage counters as llm.usage.* metrics.
func (t Telemetry) recordUsage(ctx context.Context, usage map[string]interface{}) {
	for key, value := range usage {
		if intVal, ok := value.(float64); ok {
			counter, err := t.Meter.Int64Counter(
				fmt.Sprintf("llm.usage.%s", key),
				metric.WithDescription(fmt.Sprintf("LLM usage metric: %s", key)),
			)
			if err != nil {
				t.Logger.Warn("failed to create counter", "key", key, "error", err)
				continue
			}
			counter.Add(ctx, int64(intVal))
		}
	}
}

func toWireMessages(system string, turns []session.Turn) []map[string]string {
	msgs := make([]map[string]string, 0, len(turns)+1)
	if system != "" {
		msgs = append(msgs, map[string]string{"role": "system", "content": system})
	}
	for _, t := range turns {
		msgs = append(msgs, map[string]string{"role": t.Role, "content": t.Content})
	}
	return msgs
}

func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body any) ([]byte, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("content-type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: %s - %s", resp.Status, string(respBody))
	}
	return respBody, nil
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}
