package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhyoong/bearmemori/pkg/config"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(&config.LLMConfig{
		BaseURL:        srv.URL,
		APIKey:         "sk-test",
		Model:          "test-model",
		RequestTimeout: 5 * time.Second,
	})
}

func TestCompleteSendsRequestAndReturnsText(t *testing.T) {
	var got ChatRequest
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "hello back"}},
			},
		})
	})

	text, err := client.Complete(context.Background(), "be brief", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello back", text)

	assert.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, RoleSystem, got.Messages[0].Role)
	assert.Equal(t, RoleUser, got.Messages[1].Role)
}

func TestChatPassesTools(t *testing.T) {
	var raw map[string]any
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "tool_calls": []map[string]any{
					{"id": "call-1", "type": "function", "function": map[string]any{
						"name": "list_tasks", "arguments": `{"owner_user_id":1}`,
					}},
				}}},
			},
		})
	})

	tools := []Tool{{Type: "function", Function: ToolFunction{
		Name: "list_tasks", Parameters: json.RawMessage(`{"type":"object"}`),
	}}}
	resp, err := client.Chat(context.Background(), []Message{TextMessage(RoleUser, "what's open?")}, tools)
	require.NoError(t, err)

	sent, ok := raw["tools"].([]any)
	require.True(t, ok)
	assert.Len(t, sent, 1)

	require.Len(t, resp.Choices, 1)
	require.Len(t, resp.Choices[0].Message.ToolCalls, 1)
	assert.Equal(t, "list_tasks", resp.Choices[0].Message.ToolCalls[0].Function.Name)
}

func TestChatErrorStatusSurfacesMessage(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "rate limited", "type": "rate_limit"},
		})
	})

	_, err := client.Chat(context.Background(), []Message{TextMessage(RoleUser, "hi")}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "rate limited")
}

func TestChatNoChoicesIsError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	_, err := client.Chat(context.Background(), []Message{TextMessage(RoleUser, "hi")}, nil)
	assert.Error(t, err)
}

func TestVisionMessageWireShape(t *testing.T) {
	msg := VisionMessage("describe this", "image/png", "QUJD")
	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	var obj struct {
		Role    string        `json:"role"`
		Content []ContentPart `json:"content"`
	}
	require.NoError(t, json.Unmarshal(raw, &obj))
	assert.Equal(t, RoleUser, obj.Role)
	require.Len(t, obj.Content, 2)
	assert.Equal(t, "text", obj.Content[0].Type)
	require.NotNil(t, obj.Content[1].ImageURL)
	assert.Equal(t, "data:image/png;base64,QUJD", obj.Content[1].ImageURL.URL)
}

func TestVisionModelFallsBackToTextModel(t *testing.T) {
	var got map[string]any
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "a dog"}},
			},
		})
	})

	_, err := client.ChatVision(context.Background(),
		[]Message{VisionMessage("what is it", "image/jpeg", "QUJD")})
	require.NoError(t, err)
	assert.Equal(t, "test-model", got["model"])
}
