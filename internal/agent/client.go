// Package agent is the HTTP client for the remote planning agent.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrTransport marks a failed exchange with the agent: network errors,
// timeouts, non-2xx replies and undecodable bodies.
var ErrTransport = errors.New("agent transport failure")

// Client talks to the agent's /plan and /chat endpoints.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewClient creates an agent client. Planning is slow, so timeout should
// cover a full multi-agent run.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With("component", "agent"),
	}
}

// Plan requests a new itinerary.
func (c *Client) Plan(ctx context.Context, req PlanRequest) (*PlanResponse, error) {
	var result PlanResponse
	if err := c.doPost(ctx, "/plan", req, &result); err != nil {
		return nil, fmt.Errorf("plan %q: %w", req.Destination, err)
	}
	return &result, nil
}

// Chat sends a traveler message along with the current itinerary.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var result ChatResponse
	if err := c.doPost(ctx, "/chat", req, &result); err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}
	return &result, nil
}

func (c *Client) doPost(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: HTTP %d from %s%s", ErrTransport, resp.StatusCode, path, errorDetail(resp.Body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %w", ErrTransport, path, err)
	}
	c.logger.Debug("agent call", "path", path, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// errorDetail extracts the "detail" field FastAPI puts in error bodies.
func errorDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4<<10))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.Detail == nil {
		return ""
	}
	return fmt.Sprintf(": %v", payload.Detail)
}
