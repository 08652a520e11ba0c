package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jhyoong/bearmemori/pkg/config"
	"github.com/jhyoong/bearmemori/pkg/models"
	"github.com/jhyoong/bearmemori/pkg/streams"
)

// Notifier consumes the outbound notify stream and delivers rendered
// messages to users through the bot.
type Notifier struct {
	config *config.GatewayConfig
	broker *streams.Client
	bot    *Bot

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewNotifier creates the notify-stream consumer.
func NewNotifier(cfg *config.GatewayConfig, broker *streams.Client, bot *Bot) *Notifier {
	return &Notifier{
		config: cfg,
		broker: broker,
		bot:    bot,
		stopCh: make(chan struct{}),
	}
}

// Start creates the consumer group and launches the consume loop.
func (n *Notifier) Start(ctx context.Context) error {
	if err := n.broker.EnsureGroup(ctx, streams.NotifyStream, n.config.ConsumerGroup); err != nil {
		return err
	}
	n.wg.Add(1)
	go n.run(ctx)
	slog.Info("Notifier started", "group", n.config.ConsumerGroup, "consumer", n.config.ConsumerName)
	return nil
}

// Stop signals the loop to exit and waits for it to finish.
func (n *Notifier) Stop() {
	n.stopOnce.Do(func() { close(n.stopCh) })
	n.wg.Wait()
	slog.Info("Notifier stopped")
}

func (n *Notifier) run(ctx context.Context) {
	defer n.wg.Done()

	for {
		select {
		case <-n.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := n.broker.ReadGroup(ctx, streams.NotifyStream,
			n.config.ConsumerGroup, n.config.ConsumerName, 10, streamBlockTimeout)
		if err != nil {
			slog.Error("Notify stream read failed", "error", err)
			continue
		}
		for _, m := range msgs {
			n.deliver(ctx, m)
		}
	}
}

// streamBlockTimeout is the per-read blocking window on the notify stream.
const streamBlockTimeout = time.Second

func (n *Notifier) deliver(ctx context.Context, m streams.Message) {
	var notification models.Notification
	if err := json.Unmarshal(m.Raw, &notification); err != nil || notification.Type == "" {
		slog.Warn("Dropping malformed notification", "id", m.ID)
		n.ack(ctx, m)
		return
	}

	text := RenderNotification(notification)
	if text == "" {
		n.ack(ctx, m)
		return
	}
	if err := n.bot.SendMessage(ctx, notification.UserID, text); err != nil {
		// Leave unacked: the group redelivers after the idle timeout.
		slog.Error("Notification delivery failed",
			"type", notification.Type, "user_id", notification.UserID, "error", err)
		return
	}
	n.ack(ctx, m)
}

func (n *Notifier) ack(ctx context.Context, m streams.Message) {
	if err := n.broker.Ack(ctx, m.Stream, n.config.ConsumerGroup, m.ID); err != nil {
		slog.Error("Failed to ack notification", "id", m.ID, "error", err)
	}
}

// RenderNotification formats one notification as user-facing text. Unknown
// types render empty (dropped).
func RenderNotification(n models.Notification) string {
	str := func(key string) string {
		v, _ := n.Data[key].(string)
		return v
	}
	switch n.Type {
	case models.NotifyTypeReminder:
		text := "Reminder: " + str("text")
		if content := str("memory_content"); content != "" {
			text += "\n" + content
		}
		return text
	case models.NotifyTypeEventReprompt:
		return fmt.Sprintf("You still have a pending event: %s (%s).\nConfirm or reject it when you get a chance.",
			str("description"), str("event_time"))
	case models.NotifyTypeImageTagResult:
		tags := joinAny(n.Data["tags"])
		text := "Your image looks like: " + str("description")
		if tags != "" {
			text += "\nSuggested tags: " + tags + "\nReply with the tags to keep, or 'skip'."
		}
		return text
	case models.NotifyTypeIntentResult:
		return fmt.Sprintf("Got it — that sounds like %s.", str("intent"))
	case models.NotifyTypeFollowupResult:
		return str("question")
	case models.NotifyTypeTaskMatchResult:
		return fmt.Sprintf("That note looks related to your task: %s\nMark it as done?", str("task_description"))
	case models.NotifyTypeEventConfirmation:
		return fmt.Sprintf("Noted an event: %s on %s. Should I keep it?", str("description"), str("event_date"))
	case models.NotifyTypeJobFailed:
		return "Sorry, I couldn't finish processing one of your items. Please try again."
	default:
		return ""
	}
}

func joinAny(v any) string {
	items, ok := v.([]any)
	if !ok {
		return ""
	}
	parts := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}
