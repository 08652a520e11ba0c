package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// AssistantClient calls the assistant service's message endpoint; it is the
// HTTP-backed Responder used in production.
type AssistantClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAssistantClient creates a client for the assistant at baseURL.
func NewAssistantClient(baseURL string) *AssistantClient {
	return &AssistantClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// Respond implements Responder.
func (c *AssistantClient) Respond(ctx context.Context, userID int64, text string) (string, error) {
	payload, err := json.Marshal(map[string]any{"user_id": userID, "text": text})
	if err != nil {
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/message", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("assistant call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read assistant response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("assistant returned status %d: %s", resp.StatusCode, string(raw))
	}

	var body struct {
		Reply string `json:"reply"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", fmt.Errorf("failed to decode assistant response: %w", err)
	}
	return body.Reply, nil
}
