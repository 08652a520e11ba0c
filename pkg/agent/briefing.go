package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jhyoong/bearmemori/pkg/models"
)

// CoreAPI is the subset of the core client the agent reads and writes
// through.
type CoreAPI interface {
	ListTasks(ctx context.Context, owner int64, state *models.TaskState, limit int) ([]models.Task, error)
	ListReminders(ctx context.Context, owner int64, upcomingOnly bool, limit int) ([]models.Reminder, error)
	Search(ctx context.Context, owner int64, query string, pinnedOnly bool, limit int) ([]models.SearchResult, error)
	CreateMemory(ctx context.Context, req models.CreateMemoryRequest) (*models.Memory, error)
	CreateTask(ctx context.Context, req models.CreateTaskRequest) (*models.Task, error)
	UpdateTask(ctx context.Context, id string, req models.UpdateTaskRequest) (*models.Task, error)
	CreateReminder(ctx context.Context, req models.CreateReminderRequest) (*models.Reminder, error)
	GetSettings(ctx context.Context, userID int64) (*models.UserSettings, error)
}

const briefingListLimit = 20

// BriefingBuilder renders the per-user context block interpolated into the
// system prompt: open tasks, upcoming reminders, and the session summary.
type BriefingBuilder struct {
	core    CoreAPI
	history *HistoryStore
	counter *TokenCounter
	budget  int
}

// NewBriefingBuilder creates a briefing builder with the given token budget.
func NewBriefingBuilder(core CoreAPI, history *HistoryStore, counter *TokenCounter, budget int) *BriefingBuilder {
	return &BriefingBuilder{core: core, history: history, counter: counter, budget: budget}
}

// Build renders the briefing. Core errors degrade the affected section to its
// placeholder instead of failing the whole briefing.
func (b *BriefingBuilder) Build(ctx context.Context, userID int64) string {
	var sections []string

	state := models.TaskStateNotDone
	tasks, err := b.core.ListTasks(ctx, userID, &state, briefingListLimit)
	if err != nil {
		slog.Warn("Briefing: task lookup failed", "user_id", userID, "error", err)
		tasks = nil
	}
	var sb strings.Builder
	sb.WriteString("Open tasks:\n")
	if len(tasks) == 0 {
		sb.WriteString("(no open tasks)")
	} else {
		for i, t := range tasks {
			if i > 0 {
				sb.WriteString("\n")
			}
			if t.DueAt != nil {
				fmt.Fprintf(&sb, "- %s (due %s)", t.Description, models.FormatUTC(*t.DueAt))
			} else {
				fmt.Fprintf(&sb, "- %s", t.Description)
			}
		}
	}
	sections = append(sections, sb.String())

	reminders, err := b.core.ListReminders(ctx, userID, true, briefingListLimit)
	if err != nil {
		slog.Warn("Briefing: reminder lookup failed", "user_id", userID, "error", err)
		reminders = nil
	}
	sb.Reset()
	sb.WriteString("Upcoming reminders:\n")
	if len(reminders) == 0 {
		sb.WriteString("(no upcoming reminders)")
	} else {
		for i, r := range reminders {
			if i > 0 {
				sb.WriteString("\n")
			}
			fmt.Fprintf(&sb, "- %s at %s", r.Text, models.FormatUTC(r.FireAt))
		}
	}
	sections = append(sections, sb.String())

	summary, err := b.history.LoadSummary(ctx, userID)
	if err != nil {
		slog.Warn("Briefing: summary lookup failed", "user_id", userID, "error", err)
		summary = ""
	}
	if summary != "" {
		sections = append(sections, "Previous conversation:\n"+summary)
	}

	return b.trimToBudget(strings.Join(sections, "\n\n"))
}

// trimToBudget drops trailing lines until the text fits the token budget.
func (b *BriefingBuilder) trimToBudget(text string) string {
	if b.counter.Count(text) <= b.budget {
		return text
	}
	lines := strings.Split(text, "\n")
	for len(lines) > 1 {
		lines = lines[:len(lines)-1]
		candidate := strings.Join(lines, "\n")
		if b.counter.Count(candidate) <= b.budget {
			return candidate
		}
	}
	return lines[0]
}
