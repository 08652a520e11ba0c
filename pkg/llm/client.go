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

	"github.com/jhyoong/bearmemori/pkg/config"
)

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	visionModel string
	httpClient  *http.Client
}

// NewClient creates a client from worker LLM configuration.
func NewClient(cfg *config.LLMConfig) *Client {
	visionModel := cfg.VisionModel
	if visionModel == "" {
		visionModel = cfg.Model
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		visionModel: visionModel,
		httpClient:  &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// Model returns the configured text model name.
func (c *Client) Model() string { return c.model }

// Chat runs one chat-completions call with the text model.
func (c *Client) Chat(ctx context.Context, messages []Message, tools []Tool) (*ChatResponse, error) {
	return c.complete(ctx, ChatRequest{Model: c.model, Messages: messages, Tools: tools})
}

// ChatVision runs one chat-completions call with the vision model.
func (c *Client) ChatVision(ctx context.Context, messages []Message) (*ChatResponse, error) {
	return c.complete(ctx, ChatRequest{Model: c.visionModel, Messages: messages})
}

// Complete is a single-prompt convenience wrapper returning the assistant
// text.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := []Message{}
	if systemPrompt != "" {
		messages = append(messages, TextMessage(RoleSystem, systemPrompt))
	}
	messages = append(messages, TextMessage(RoleUser, userPrompt))
	resp, err := c.Chat(ctx, messages, nil)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) complete(ctx context.Context, reqBody ChatRequest) (*ChatResponse, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read chat response: %w", err)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to decode chat response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := string(body)
		if chatResp.Error != nil {
			msg = chatResp.Error.Message
		}
		return nil, fmt.Errorf("model endpoint returned status %d: %s", resp.StatusCode, msg)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("model returned no choices")
	}

	slog.Debug("Chat completion finished",
		"model", reqBody.Model,
		"duration", time.Since(start),
		"prompt_tokens", chatResp.Usage.PromptTokens,
		"completion_tokens", chatResp.Usage.CompletionTokens)
	return &chatResp, nil
}
