package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jhyoong/bearmemori/pkg/llm"
	"github.com/jhyoong/bearmemori/pkg/models"
)

// ToolHandler executes one tool call. args always carries the session's
// owner_user_id.
type ToolHandler func(ctx context.Context, args map[string]any) (any, error)

// ToolRegistry holds the tools advertised to the model.
type ToolRegistry struct {
	core     CoreAPI
	schemas  []llm.Tool
	handlers map[string]ToolHandler
}

// NewToolRegistry creates the built-in tool set over the core client.
func NewToolRegistry(core CoreAPI) *ToolRegistry {
	r := &ToolRegistry{core: core, handlers: make(map[string]ToolHandler)}
	r.register("search_memories",
		"Search the user's saved memories by keyword.",
		`{"type":"object","properties":{"query":{"type":"string","description":"Search keywords"},"pinned_only":{"type":"boolean"}},"required":["query"]}`,
		r.searchMemories)
	r.register("create_memory",
		"Save a new text memory for the user.",
		`{"type":"object","properties":{"content":{"type":"string"},"pinned":{"type":"boolean"}},"required":["content"]}`,
		r.createMemory)
	r.register("create_task",
		"Create a to-do task, optionally with an ISO-8601 due time.",
		`{"type":"object","properties":{"description":{"type":"string"},"due_at":{"type":"string"}},"required":["description"]}`,
		r.createTask)
	r.register("complete_task",
		"Mark a task as done by its id.",
		`{"type":"object","properties":{"task_id":{"type":"string"}},"required":["task_id"]}`,
		r.completeTask)
	r.register("list_tasks",
		"List the user's open tasks.",
		`{"type":"object","properties":{}}`,
		r.listTasks)
	r.register("create_reminder",
		"Create a reminder that fires at an ISO-8601 time, optionally recurring.",
		`{"type":"object","properties":{"text":{"type":"string"},"fire_at":{"type":"string"},"recurrence_minutes":{"type":"integer"}},"required":["text","fire_at"]}`,
		r.createReminder)
	return r
}

func (r *ToolRegistry) register(name, description, params string, h ToolHandler) {
	r.schemas = append(r.schemas, llm.Tool{
		Type: "function",
		Function: llm.ToolFunction{
			Name:        name,
			Description: description,
			Parameters:  json.RawMessage(params),
		},
	})
	r.handlers[name] = h
}

// Schemas returns the tool declarations sent with every model call.
func (r *ToolRegistry) Schemas() []llm.Tool {
	return r.schemas
}

// Invoke runs a named tool. Unknown names return an error.
func (r *ToolRegistry) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	h, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	return h(ctx, args)
}

func argUserID(args map[string]any) int64 {
	if v, ok := args["owner_user_id"].(int64); ok {
		return v
	}
	if v, ok := args["owner_user_id"].(float64); ok {
		return int64(v)
	}
	return 0
}

func argString(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func argBool(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

func (r *ToolRegistry) searchMemories(ctx context.Context, args map[string]any) (any, error) {
	results, err := r.core.Search(ctx, argUserID(args), argString(args, "query"), argBool(args, "pinned_only"), 10)
	if err != nil {
		return nil, err
	}
	type hit struct {
		ID      string   `json:"id"`
		Content string   `json:"content"`
		Tags    []string `json:"tags,omitempty"`
		Pinned  bool     `json:"pinned,omitempty"`
	}
	hits := make([]hit, 0, len(results))
	for _, res := range results {
		h := hit{ID: res.Memory.ID, Tags: res.Tags, Pinned: res.Memory.IsPinned}
		if res.Memory.Content != nil {
			h.Content = *res.Memory.Content
		}
		hits = append(hits, h)
	}
	return map[string]any{"results": hits}, nil
}

func (r *ToolRegistry) createMemory(ctx context.Context, args map[string]any) (any, error) {
	content := argString(args, "content")
	if content == "" {
		return nil, fmt.Errorf("content is required")
	}
	m, err := r.core.CreateMemory(ctx, models.CreateMemoryRequest{
		OwnerUserID: argUserID(args),
		Content:     &content,
		IsPinned:    argBool(args, "pinned"),
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"memory_id": m.ID}, nil
}

func (r *ToolRegistry) createTask(ctx context.Context, args map[string]any) (any, error) {
	req := models.CreateTaskRequest{
		OwnerUserID: argUserID(args),
		Description: argString(args, "description"),
	}
	if due := argString(args, "due_at"); due != "" {
		req.DueAt = &due
	}
	t, err := r.core.CreateTask(ctx, req)
	if err != nil {
		return nil, err
	}
	return map[string]any{"task_id": t.ID}, nil
}

func (r *ToolRegistry) completeTask(ctx context.Context, args map[string]any) (any, error) {
	state := models.TaskStateDone
	t, err := r.core.UpdateTask(ctx, argString(args, "task_id"), models.UpdateTaskRequest{State: &state})
	if err != nil {
		return nil, err
	}
	return map[string]any{"task_id": t.ID, "state": t.State}, nil
}

func (r *ToolRegistry) listTasks(ctx context.Context, args map[string]any) (any, error) {
	state := models.TaskStateNotDone
	tasks, err := r.core.ListTasks(ctx, argUserID(args), &state, briefingListLimit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"tasks": tasks}, nil
}

func (r *ToolRegistry) createReminder(ctx context.Context, args map[string]any) (any, error) {
	req := models.CreateReminderRequest{
		OwnerUserID: argUserID(args),
		Text:        argString(args, "text"),
		FireAt:      argString(args, "fire_at"),
	}
	if v, ok := args["recurrence_minutes"].(float64); ok && v > 0 {
		rec := int64(v)
		req.RecurrenceMinutes = &rec
	}
	rem, err := r.core.CreateReminder(ctx, req)
	if err != nil {
		return nil, err
	}
	return map[string]any{"reminder_id": rem.ID, "fire_at": models.FormatUTC(rem.FireAt)}, nil
}
