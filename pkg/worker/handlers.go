package worker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jhyoong/bearmemori/pkg/llm"
	"github.com/jhyoong/bearmemori/pkg/models"
)

// ModelClient is the subset of the llm client the handlers call.
type ModelClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	ChatVision(ctx context.Context, messages []llm.Message) (*llm.ChatResponse, error)
}

// CoreAPI is the subset of the core client the handlers write back through.
type CoreAPI interface {
	AddTags(ctx context.Context, memoryID string, req models.AddTagsRequest) ([]models.MemoryTag, error)
	ListTasks(ctx context.Context, owner int64, state *models.TaskState, limit int) ([]models.Task, error)
	CreateEvent(ctx context.Context, req models.CreateEventRequest) (*models.Event, error)
}

// Handlers bundles the per-job-type handlers over one model and core client.
type Handlers struct {
	model    ModelClient
	core     CoreAPI
	mediaDir string
}

// NewHandlers creates the handler set.
func NewHandlers(model ModelClient, core CoreAPI, mediaDir string) *Handlers {
	return &Handlers{model: model, core: core, mediaDir: mediaDir}
}

// RegisterAll binds every handler to its job type on the worker.
func (h *Handlers) RegisterAll(w *Worker) {
	w.Register(models.JobTypeImageTag, HandlerFunc(h.ImageTag))
	w.Register(models.JobTypeIntentClassify, HandlerFunc(h.IntentClassify))
	w.Register(models.JobTypeFollowup, HandlerFunc(h.Followup))
	w.Register(models.JobTypeTaskMatch, HandlerFunc(h.TaskMatch))
	w.Register(models.JobTypeEmailExtract, HandlerFunc(h.EmailExtract))
}

const imageTagPrompt = `Describe this image in one sentence and suggest up to five short lowercase tags.
Respond with a JSON object: {"description": "...", "tags": ["...", "..."]}`

// ImageTag classifies an image memory with the vision model and attaches the
// resulting tags as suggestions.
func (h *Handlers) ImageTag(ctx context.Context, msg models.JobMessage) (*HandlerResult, error) {
	var payload struct {
		MemoryID  string `json:"memory_id"`
		ImagePath string `json:"image_path"`
	}
	if err := unmarshalPayload(msg, &payload); err != nil {
		return nil, err
	}
	if payload.MemoryID == "" || payload.ImagePath == "" {
		return nil, fmt.Errorf("image_tag payload missing memory_id or image_path")
	}

	path := payload.ImagePath
	if !filepath.IsAbs(path) {
		path = filepath.Join(h.mediaDir, path)
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image blob: %w", err)
	}

	resp, err := h.model.ChatVision(ctx, []llm.Message{
		llm.VisionMessage(imageTagPrompt, mimeForPath(path), base64.StdEncoding.EncodeToString(blob)),
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Description string   `json:"description"`
		Tags        []string `json:"tags"`
	}
	if err := llm.ExtractJSON(resp.Choices[0].Message.Content, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Tags) > 0 {
		if _, err := h.core.AddTags(ctx, payload.MemoryID, models.AddTagsRequest{
			Tags:   parsed.Tags,
			Status: models.TagStatusSuggested,
		}); err != nil {
			return nil, fmt.Errorf("failed to store suggested tags: %w", err)
		}
	}

	return &HandlerResult{
		Result: map[string]any{"description": parsed.Description, "tags": parsed.Tags},
		Notification: &models.Notification{
			Type:   models.NotifyTypeImageTagResult,
			UserID: msg.UserID,
			Data: map[string]any{
				"memory_id":   payload.MemoryID,
				"tags":        parsed.Tags,
				"description": parsed.Description,
			},
		},
	}, nil
}

const intentPrompt = `Classify the user's message into one of the intents:
save_memory, search, create_task, create_reminder, chat.
Respond with a JSON object: {"intent": "...", "confidence": 0.0}`

// IntentClassify labels a user message with an intent.
func (h *Handlers) IntentClassify(ctx context.Context, msg models.JobMessage) (*HandlerResult, error) {
	var payload struct {
		Query string `json:"query"`
	}
	if err := unmarshalPayload(msg, &payload); err != nil {
		return nil, err
	}

	reply, err := h.model.Complete(ctx, intentPrompt, payload.Query)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
	}
	if err := llm.ExtractJSON(reply, &parsed); err != nil {
		return nil, err
	}

	return &HandlerResult{
		Result: map[string]any{"intent": parsed.Intent, "confidence": parsed.Confidence},
		Notification: &models.Notification{
			Type:   models.NotifyTypeIntentResult,
			UserID: msg.UserID,
			Data: map[string]any{
				"query":   payload.Query,
				"intent":  parsed.Intent,
				"results": []any{},
			},
		},
	}, nil
}

const followupPrompt = `Given the user's note, write one short friendly follow-up question that would
help capture missing details. Reply with the question only.`

// Followup generates a follow-up question for a captured note.
func (h *Handlers) Followup(ctx context.Context, msg models.JobMessage) (*HandlerResult, error) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := unmarshalPayload(msg, &payload); err != nil {
		return nil, err
	}

	reply, err := h.model.Complete(ctx, followupPrompt, payload.Text)
	if err != nil {
		return nil, err
	}
	question := strings.TrimSpace(reply)

	return &HandlerResult{
		Result: map[string]any{"question": question},
		Notification: &models.Notification{
			Type:   models.NotifyTypeFollowupResult,
			UserID: msg.UserID,
			Data:   map[string]any{"question": question},
		},
	}, nil
}

// taskMatchThreshold is the minimum model confidence for acting on a match.
const taskMatchThreshold = 0.7

const taskMatchPrompt = `The user wrote a note. Decide whether it completes or matches one of their open
tasks. Respond with a JSON object:
{"matched_task_id": "<id or null>", "confidence": 0.0, "reason": "..."}`

// TaskMatch checks whether a new note refers to one of the user's open tasks.
func (h *Handlers) TaskMatch(ctx context.Context, msg models.JobMessage) (*HandlerResult, error) {
	var payload struct {
		MemoryID string `json:"memory_id"`
		Text     string `json:"text"`
	}
	if err := unmarshalPayload(msg, &payload); err != nil {
		return nil, err
	}

	state := models.TaskStateNotDone
	tasks, err := h.core.ListTasks(ctx, msg.UserID, &state, 50)
	if err != nil {
		return nil, fmt.Errorf("failed to list open tasks: %w", err)
	}
	if len(tasks) == 0 {
		return &HandlerResult{Result: map[string]any{"matched_task_id": nil}}, nil
	}

	var sb strings.Builder
	sb.WriteString("Open tasks:\n")
	for _, t := range tasks {
		fmt.Fprintf(&sb, "- id=%s: %s\n", t.ID, t.Description)
	}
	fmt.Fprintf(&sb, "\nNote: %s", payload.Text)

	reply, err := h.model.Complete(ctx, taskMatchPrompt, sb.String())
	if err != nil {
		return nil, err
	}
	var parsed struct {
		MatchedTaskID *string `json:"matched_task_id"`
		Confidence    float64 `json:"confidence"`
		Reason        string  `json:"reason"`
	}
	if err := llm.ExtractJSON(reply, &parsed); err != nil {
		return nil, err
	}

	result := map[string]any{
		"matched_task_id": parsed.MatchedTaskID,
		"confidence":      parsed.Confidence,
		"reason":          parsed.Reason,
	}
	if parsed.MatchedTaskID == nil || parsed.Confidence <= taskMatchThreshold {
		return &HandlerResult{Result: result}, nil
	}

	var description string
	for _, t := range tasks {
		if t.ID == *parsed.MatchedTaskID {
			description = t.Description
			break
		}
	}
	return &HandlerResult{
		Result: result,
		Notification: &models.Notification{
			Type:   models.NotifyTypeTaskMatchResult,
			UserID: msg.UserID,
			Data: map[string]any{
				"task_id":          *parsed.MatchedTaskID,
				"task_description": description,
				"memory_id":        payload.MemoryID,
			},
		},
	}, nil
}

const emailExtractPrompt = `Extract calendar events from the email below. Respond with a JSON object:
{"events": [{"description": "...", "event_time": "<ISO-8601 UTC>", "confidence": 0.0}]}`

// EmailExtract pulls candidate events out of an email body and stores the
// confident ones as pending events.
func (h *Handlers) EmailExtract(ctx context.Context, msg models.JobMessage) (*HandlerResult, error) {
	var payload struct {
		EmailText string  `json:"email_text"`
		SourceRef *string `json:"source_ref"`
	}
	if err := unmarshalPayload(msg, &payload); err != nil {
		return nil, err
	}

	reply, err := h.model.Complete(ctx, emailExtractPrompt, payload.EmailText)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Events []struct {
			Description string  `json:"description"`
			EventTime   string  `json:"event_time"`
			Confidence  float64 `json:"confidence"`
		} `json:"events"`
	}
	if err := llm.ExtractJSON(reply, &parsed); err != nil {
		return nil, err
	}

	var notification *models.Notification
	created := 0
	for _, e := range parsed.Events {
		if e.Confidence <= taskMatchThreshold {
			continue
		}
		if _, err := h.core.CreateEvent(ctx, models.CreateEventRequest{
			OwnerUserID: msg.UserID,
			Description: e.Description,
			EventTime:   e.EventTime,
			SourceType:  "email",
			SourceRef:   payload.SourceRef,
		}); err != nil {
			return nil, fmt.Errorf("failed to create extracted event: %w", err)
		}
		created++
		if notification == nil {
			notification = &models.Notification{
				Type:   models.NotifyTypeEventConfirmation,
				UserID: msg.UserID,
				Data: map[string]any{
					"description": e.Description,
					"event_date":  e.EventTime,
				},
			}
		}
	}

	return &HandlerResult{
		Result:       map[string]any{"events_created": created},
		Notification: notification,
	}, nil
}

func unmarshalPayload(msg models.JobMessage, v any) error {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("invalid %s payload: %w", msg.JobType, err)
	}
	return nil
}

func mimeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
