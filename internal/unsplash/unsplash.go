// Package unsplash resolves an illustrative image for a short text
// query. Every failure degrades to "no image": a finalization response
// must never be aborted by the image service.
package unsplash

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/trace"
)

const defaultSearchURL = "https://api.unsplash.com/search/photos"

type searchResponse struct {
	Results []struct {
		URLs struct {
			Regular string `json:"regular"`
			Full    string `json:"full"`
		} `json:"urls"`
	} `json:"results"`
}

// Client searches Unsplash for a single photo per query.
type Client struct {
	accessKey  string
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
	logger     *slog.Logger
}

// NewClient builds a Client. An empty access key yields a disabled
// client that always reports no image; the caller logs the warning at
// startup.
func NewClient(accessKey string, tracer trace.Tracer, logger *slog.Logger) *Client {
	return &Client{
		accessKey:  accessKey,
		baseURL:    defaultSearchURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		tracer:     tracer,
		logger:     logger,
	}
}

// WithBaseURL points the client at a different endpoint. Used by tests.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

// Enabled reports whether the client has a credential.
func (c *Client) Enabled() bool {
	return c.accessKey != ""
}

// Search returns the regular-resolution URL of the first result, or ""
// when the client is disabled, the call fails, or nothing matches.
func (c *Client) Search(ctx context.Context, query string) string {
	if c.accessKey == "" || query == "" {
		return ""
	}

	ctx, span := c.tracer.Start(ctx, "unsplash_search")
	defer span.End()

	reqURL := fmt.Sprintf("%s?query=%s&per_page=1", c.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		c.logger.Warn("image fetch failed", "query", query, "error", err)
		return ""
	}
	req.Header.Set("Authorization", "Client-ID "+c.accessKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("image fetch failed", "query", query, "error", err)
		return ""
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Warn("image fetch failed", "query", query, "error", err)
		return ""
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("image fetch failed", "query", query, "status", resp.Status)
		return ""
	}

	var data searchResponse
	if err := json.Unmarshal(body, &data); err != nil {
		c.logger.Warn("image fetch failed", "query", query, "error", err)
		return ""
	}

	if len(data.Results) == 0 {
		return ""
	}
	return data.Results[0].URLs.Regular
}
