package gateway

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/jhyoong/bearmemori/pkg/config"
	"github.com/jhyoong/bearmemori/pkg/coreclient"
	"github.com/jhyoong/bearmemori/pkg/models"
)

// Responder answers free-form chat; backed by the assistant service.
type Responder interface {
	Respond(ctx context.Context, userID int64, text string) (string, error)
}

// tryAgainReply is the fixed user-facing message for internal failures.
const tryAgainReply = "Something went wrong, please try again."

// Router handles inbound user messages: it resolves any pending multi-step
// action first, and otherwise hands the text to the assistant.
type Router struct {
	config    *config.GatewayConfig
	core      *coreclient.Client
	state     *StateStore
	responder Responder
}

// NewRouter creates the inbound message router. responder may be nil, in
// which case free-form text gets the fallback reply.
func NewRouter(cfg *config.GatewayConfig, core *coreclient.Client, state *StateStore, responder Responder) *Router {
	return &Router{config: cfg, core: core, state: state, responder: responder}
}

// HandleMessage processes one inbound text and returns the reply to send.
// Unknown users get no reply.
func (r *Router) HandleMessage(ctx context.Context, userID int64, text string) string {
	if len(r.config.AllowedUserIDs) > 0 && !slices.Contains(r.config.AllowedUserIDs, userID) {
		slog.Warn("Ignoring message from unknown user", "user_id", userID)
		return ""
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	pending, err := r.state.Get(ctx, userID)
	if err != nil {
		slog.Error("Failed to load pending action", "user_id", userID, "error", err)
		return tryAgainReply
	}
	if pending != nil {
		return r.resolvePending(ctx, userID, *pending, text)
	}

	if r.responder == nil {
		return tryAgainReply
	}
	reply, err := r.responder.Respond(ctx, userID, text)
	if err != nil {
		slog.Error("Assistant call failed", "user_id", userID, "error", err)
		return tryAgainReply
	}
	return reply
}

func (r *Router) resolvePending(ctx context.Context, userID int64, pending PendingAction, text string) string {
	defer func() {
		if err := r.state.Clear(ctx, userID); err != nil {
			slog.Error("Failed to clear pending action", "user_id", userID, "error", err)
		}
	}()

	if strings.EqualFold(text, "skip") || strings.EqualFold(text, "cancel") {
		return "Okay, skipped."
	}

	switch pending.Kind {
	case PendingAwaitingTags:
		tags := splitTags(text)
		if len(tags) == 0 {
			return "No tags recognized, skipped."
		}
		if _, err := r.core.AddTags(ctx, pending.Ref, models.AddTagsRequest{
			Tags:   tags,
			Status: models.TagStatusConfirmed,
		}); err != nil {
			slog.Error("Failed to confirm tags", "memory_id", pending.Ref, "error", err)
			return tryAgainReply
		}
		return "Tags saved: " + strings.Join(tags, ", ")

	case PendingAwaitingDueDate:
		due := text
		if _, err := r.core.UpdateTask(ctx, pending.Ref, models.UpdateTaskRequest{DueAt: &due}); err != nil {
			slog.Error("Failed to set task due date", "task_id", pending.Ref, "error", err)
			return "I couldn't read that as a date. Use an ISO format like 2026-08-24T09:00:00Z."
		}
		return "Due date set."

	case PendingAwaitingReminderTime:
		if _, err := r.core.CreateReminder(ctx, models.CreateReminderRequest{
			OwnerUserID: userID,
			Text:        pending.Ref,
			FireAt:      text,
		}); err != nil {
			slog.Error("Failed to create reminder", "user_id", userID, "error", err)
			return "I couldn't read that as a time. Use an ISO format like 2026-08-24T09:00:00Z."
		}
		return "Reminder set."

	default:
		return tryAgainReply
	}
}

func splitTags(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n'
	})
	tags := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(strings.ToLower(f))
		if f != "" {
			tags = append(tags, f)
		}
	}
	return tags
}
