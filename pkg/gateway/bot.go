// Package gateway bridges the chat platform and the backend: it routes
// inbound user messages, renders outbound notifications, and tracks
// multi-step pending actions per user.
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

// Bot is a minimal chat platform API client (Telegram bot API shape).
type Bot struct {
	apiBase    string
	token      string
	httpClient *http.Client
}

// NewBot creates a bot client. Returns nil when the token is empty so callers
// can treat outbound delivery as disabled.
func NewBot(apiBase, token string) *Bot {
	if token == "" {
		return nil
	}
	return &Bot{
		apiBase:    apiBase,
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// SendMessage delivers one text message to a chat. Nil-safe no-op.
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) error {
	if b == nil {
		return nil
	}
	payload, err := json.Marshal(map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal sendMessage: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", b.apiBase, b.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create sendMessage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sendMessage failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sendMessage returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// SendDigest delivers a daily digest; chat id equals user id for direct chats.
func (b *Bot) SendDigest(ctx context.Context, userID int64, text string) error {
	return b.SendMessage(ctx, userID, text)
}
