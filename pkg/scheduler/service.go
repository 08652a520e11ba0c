// Package scheduler runs the periodic housekeeping loop: firing due
// reminders, expiring pending memories and suggested tags, and re-prompting
// stale events.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/jhyoong/bearmemori/pkg/config"
	"github.com/jhyoong/bearmemori/pkg/metrics"
	"github.com/jhyoong/bearmemori/pkg/services"
)

// Service drives the housekeeping tick. Each action runs in isolation: a
// failure in one is logged and the rest of the tick proceeds. Work is
// idempotent at-least-once; a crash mid-tick replays unfinished work on the
// next tick.
type Service struct {
	config          *config.SchedulerConfig
	memoryService   *services.MemoryService
	tagService      *services.TagService
	reminderService *services.ReminderService
	eventService    *services.EventService

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new scheduler service.
func NewService(
	cfg *config.SchedulerConfig,
	memoryService *services.MemoryService,
	tagService *services.TagService,
	reminderService *services.ReminderService,
	eventService *services.EventService,
) *Service {
	return &Service{
		config:          cfg,
		memoryService:   memoryService,
		tagService:      tagService,
		reminderService: reminderService,
		eventService:    eventService,
	}
}

// Start launches the background housekeeping loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Scheduler started",
		"tick_interval", s.config.TickInterval,
		"pending_memory_ttl", s.config.PendingMemoryTTL,
		"suggested_tag_ttl", s.config.SuggestedTagTTL,
		"event_reprompt_after", s.config.EventRepromptAfter)
}

// Stop signals the loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Scheduler stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.RunTick(ctx)

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunTick(ctx)
		}
	}
}

// RunTick executes one housekeeping pass. Exported so tests and operational
// tooling can trigger a pass directly.
func (s *Service) RunTick(ctx context.Context) {
	now := time.Now().UTC()
	timed("fire_reminders", func() { s.fireDueReminders(ctx, now) })
	timed("expire_pending_memories", func() { s.expirePendingMemories(ctx, now) })
	timed("expire_suggested_tags", func() { s.expireSuggestedTags(ctx, now) })
	timed("reprompt_stale_events", func() { s.repromptStaleEvents(ctx, now) })
}

func timed(action string, fn func()) {
	start := time.Now()
	fn()
	metrics.SchedulerActionDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())
}

func (s *Service) fireDueReminders(ctx context.Context, now time.Time) {
	count, err := s.reminderService.FireDue(ctx, now)
	if err != nil {
		slog.Error("Scheduler: firing reminders failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Scheduler: fired reminders", "count", count)
	}
}

func (s *Service) expirePendingMemories(ctx context.Context, now time.Time) {
	ids, err := s.memoryService.ExpirePending(ctx, now)
	if err != nil {
		slog.Error("Scheduler: pending memory expiry failed", "error", err)
		return
	}
	if len(ids) > 0 {
		slog.Info("Scheduler: expired pending memories", "count", len(ids))
	}
}

func (s *Service) expireSuggestedTags(ctx context.Context, now time.Time) {
	count, err := s.tagService.ExpireSuggested(ctx, now.Add(-s.config.SuggestedTagTTL))
	if err != nil {
		slog.Error("Scheduler: suggested tag expiry failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Scheduler: expired suggested tags", "count", count)
	}
}

func (s *Service) repromptStaleEvents(ctx context.Context, now time.Time) {
	count, err := s.eventService.RepromptStale(ctx, now.Add(-s.config.EventRepromptAfter))
	if err != nil {
		slog.Error("Scheduler: event reprompt failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Scheduler: re-prompted stale events", "count", count)
	}
}
