// Package agent is the conversational core: token-bounded chat history,
// summarization, and the tool-calling loop.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jhyoong/bearmemori/pkg/config"
	"github.com/jhyoong/bearmemori/pkg/llm"
)

// ModelClient is the subset of the llm client the agent calls.
type ModelClient interface {
	Chat(ctx context.Context, messages []llm.Message, tools []llm.Tool) (*llm.ChatResponse, error)
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

const systemPromptTemplate = `You are a personal memory and task assistant. You help the user save notes,
find what they saved, and stay on top of tasks and reminders. Use the provided
tools whenever they apply; answer directly otherwise. Be concise.

%s`

const summaryPrefix = "Summary of earlier conversation: "

// apologyReply is returned when a turn fails irrecoverably.
const apologyReply = "Sorry, something went wrong on my end. Please try again."

// toolLimitReply is returned when the tool loop hits its iteration bound.
const toolLimitReply = "Sorry, I couldn't finish that request. Please try rephrasing it."

// summarizeThreshold: history strictly above this fraction of the chat budget
// gets its older half summarized.
const summarizeThreshold = 0.7

// Agent drives one conversational turn per Message call.
type Agent struct {
	config   *config.AssistantConfig
	model    ModelClient
	history  *HistoryStore
	briefing *BriefingBuilder
	tools    *ToolRegistry
	counter  *TokenCounter
}

// New creates the agent.
func New(cfg *config.AssistantConfig, model ModelClient, history *HistoryStore, briefing *BriefingBuilder, tools *ToolRegistry, counter *TokenCounter) *Agent {
	return &Agent{
		config:   cfg,
		model:    model,
		history:  history,
		briefing: briefing,
		tools:    tools,
		counter:  counter,
	}
}

// Message runs one turn: load history, maybe summarize, run the tool loop,
// persist the user/assistant pair. Failures collapse to a fixed apology.
func (a *Agent) Message(ctx context.Context, userID int64, text string) string {
	history, err := a.history.LoadHistory(ctx, userID)
	if err != nil {
		slog.Error("Failed to load history", "user_id", userID, "error", err)
		history = nil
	}

	briefing := a.briefing.Build(ctx, userID)
	systemPrompt := fmt.Sprintf(systemPromptTemplate, briefing)
	chatBudget := a.config.ContextWindow - a.config.BriefingBudget -
		a.config.ResponseReserve - a.counter.Count(systemPrompt)

	history, err = a.maybeSummarize(ctx, userID, history, chatBudget)
	if err != nil {
		slog.Warn("Summarization failed, continuing with full history", "user_id", userID, "error", err)
	}

	reply, err := a.runToolLoop(ctx, userID, systemPrompt, history, text)
	if err != nil {
		slog.Error("Turn failed", "user_id", userID, "error", err)
		return apologyReply
	}

	history = append(history,
		llm.TextMessage(llm.RoleUser, text),
		llm.TextMessage(llm.RoleAssistant, reply))
	if err := a.history.SaveHistory(ctx, userID, history); err != nil {
		slog.Error("Failed to save history", "user_id", userID, "error", err)
	}
	return reply
}

// maybeSummarize replaces the older half of the history with a single system
// summary message when the history exceeds 70% of the chat budget. Exactly at
// the threshold nothing happens.
func (a *Agent) maybeSummarize(ctx context.Context, userID int64, history []llm.Message, chatBudget int) ([]llm.Message, error) {
	if len(history) < 2 {
		return history, nil
	}
	total := 0
	for _, m := range history {
		total += a.counter.Count(m.Content)
	}
	if float64(total) <= summarizeThreshold*float64(chatBudget) {
		return history, nil
	}

	half := len(history) / 2
	var sb strings.Builder
	for _, m := range history[:half] {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
	}

	summary, err := a.model.Complete(ctx,
		"Summarize the following conversation in a short paragraph, keeping any facts, names, dates and open questions.",
		sb.String())
	if err != nil {
		return history, err
	}
	summary = strings.TrimSpace(summary)
	if err := a.history.SaveSummary(ctx, userID, summary); err != nil {
		slog.Warn("Failed to store session summary", "user_id", userID, "error", err)
	}

	condensed := make([]llm.Message, 0, len(history)-half+1)
	condensed = append(condensed, llm.TextMessage(llm.RoleSystem, summaryPrefix+summary))
	condensed = append(condensed, history[half:]...)
	slog.Info("Summarized chat history",
		"user_id", userID, "dropped_messages", half, "history_tokens", total, "chat_budget", chatBudget)
	return condensed, nil
}

// runToolLoop drives the model until it answers without tool calls or the
// iteration bound is hit.
func (a *Agent) runToolLoop(ctx context.Context, userID int64, systemPrompt string, history []llm.Message, text string) (string, error) {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.TextMessage(llm.RoleSystem, systemPrompt))
	messages = append(messages, history...)
	messages = append(messages, llm.TextMessage(llm.RoleUser, text))

	for i := 0; i < a.config.MaxToolIterations; i++ {
		resp, err := a.model.Chat(ctx, messages, a.tools.Schemas())
		if err != nil {
			return "", err
		}
		reply := resp.Choices[0].Message
		if len(reply.ToolCalls) == 0 {
			return reply.Content, nil
		}

		messages = append(messages, reply)
		for _, call := range reply.ToolCalls {
			messages = append(messages, a.executeToolCall(ctx, userID, call))
		}
	}
	return toolLimitReply, nil
}

func (a *Agent) executeToolCall(ctx context.Context, userID int64, call llm.ToolCall) llm.Message {
	args := map[string]any{}
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		// Malformed arguments degrade to an empty object; the handler's own
		// validation produces the user-visible error.
		args = map[string]any{}
	}
	args["owner_user_id"] = userID

	var content string
	result, err := a.tools.Invoke(ctx, call.Function.Name, args)
	if err != nil {
		raw, _ := json.Marshal(map[string]any{"error": err.Error()})
		content = string(raw)
	} else {
		raw, merr := json.Marshal(result)
		if merr != nil {
			raw, _ = json.Marshal(map[string]any{"error": merr.Error()})
		}
		content = string(raw)
	}
	return llm.Message{Role: llm.RoleTool, Content: content, ToolCallID: call.ID}
}
