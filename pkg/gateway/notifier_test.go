package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhyoong/bearmemori/pkg/config"
	"github.com/jhyoong/bearmemori/pkg/gateway"
	"github.com/jhyoong/bearmemori/pkg/models"
	"github.com/jhyoong/bearmemori/pkg/streams"
)

func TestRenderNotification(t *testing.T) {
	tests := []struct {
		name     string
		n        models.Notification
		want     []string
		rendered bool
	}{
		{
			name: "reminder",
			n: models.Notification{Type: models.NotifyTypeReminder, Data: map[string]any{
				"text": "water the plants",
			}},
			want:     []string{"Reminder: water the plants"},
			rendered: true,
		},
		{
			name: "reminder with memory content",
			n: models.Notification{Type: models.NotifyTypeReminder, Data: map[string]any{
				"text": "check this", "memory_content": "the wifi password is hunter2",
			}},
			want:     []string{"Reminder: check this", "the wifi password is hunter2"},
			rendered: true,
		},
		{
			name: "event reprompt",
			n: models.Notification{Type: models.NotifyTypeEventReprompt, Data: map[string]any{
				"description": "dentist", "event_time": "2026-08-26T09:00:00Z",
			}},
			want:     []string{"pending event", "dentist", "Confirm or reject"},
			rendered: true,
		},
		{
			name: "image tags",
			n: models.Notification{Type: models.NotifyTypeImageTagResult, Data: map[string]any{
				"description": "a cat on a sofa", "tags": []any{"cat", "sofa"},
			}},
			want: []string{
				"Your image looks like: a cat on a sofa",
				"Suggested tags: cat, sofa",
				"Reply with the tags to keep, or 'skip'.",
			},
			rendered: true,
		},
		{
			name: "image without tags omits the prompt",
			n: models.Notification{Type: models.NotifyTypeImageTagResult, Data: map[string]any{
				"description": "a blurry photo",
			}},
			want:     []string{"Your image looks like: a blurry photo"},
			rendered: true,
		},
		{
			name: "intent",
			n: models.Notification{Type: models.NotifyTypeIntentResult, Data: map[string]any{
				"intent": "a shopping list",
			}},
			want:     []string{"that sounds like a shopping list"},
			rendered: true,
		},
		{
			name: "followup question",
			n: models.Notification{Type: models.NotifyTypeFollowupResult, Data: map[string]any{
				"question": "When is the appointment?",
			}},
			want:     []string{"When is the appointment?"},
			rendered: true,
		},
		{
			name: "task match",
			n: models.Notification{Type: models.NotifyTypeTaskMatchResult, Data: map[string]any{
				"task_description": "buy groceries",
			}},
			want:     []string{"buy groceries", "Mark it as done?"},
			rendered: true,
		},
		{
			name: "event confirmation",
			n: models.Notification{Type: models.NotifyTypeEventConfirmation, Data: map[string]any{
				"description": "team lunch", "event_date": "2026-08-28",
			}},
			want:     []string{"Noted an event: team lunch on 2026-08-28", "Should I keep it?"},
			rendered: true,
		},
		{
			name:     "job failed",
			n:        models.Notification{Type: models.NotifyTypeJobFailed},
			want:     []string{"couldn't finish processing"},
			rendered: true,
		},
		{
			name: "unknown type drops",
			n:    models.Notification{Type: "mystery"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := gateway.RenderNotification(tt.n)
			if !tt.rendered {
				assert.Empty(t, text)
				return
			}
			require.NotEmpty(t, text)
			for _, want := range tt.want {
				assert.Contains(t, text, want)
			}
		})
	}
}

// fakeBotServer captures sendMessage calls made by the Bot client.
type fakeBotServer struct {
	mu    sync.Mutex
	texts []string
	chats []int64
	fail  bool
}

func (s *fakeBotServer) handler(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ChatID int64  `json:"chat_id"`
		Text   string `json:"text"`
	}
	_ = json.NewDecoder(r.Body).Decode(&payload)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	s.texts = append(s.texts, payload.Text)
	s.chats = append(s.chats, payload.ChatID)
	_, _ = w.Write([]byte(`{"ok":true}`))
}

func (s *fakeBotServer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.texts)
}

type notifierFixture struct {
	notifier *gateway.Notifier
	broker   *streams.Client
	rdb      *redis.Client
	bot      *fakeBotServer
	cfg      *config.GatewayConfig
}

func newNotifierFixture(t *testing.T) *notifierFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	bot := &fakeBotServer{}
	srv := httptest.NewServer(http.HandlerFunc(bot.handler))
	t.Cleanup(srv.Close)

	cfg := &config.GatewayConfig{ConsumerGroup: "gateway", ConsumerName: "gateway-test"}
	broker := streams.NewClientFromRedis(rdb)

	return &notifierFixture{
		notifier: gateway.NewNotifier(cfg, broker, gateway.NewBot(srv.URL, "test-token")),
		broker:   broker,
		rdb:      rdb,
		bot:      bot,
		cfg:      cfg,
	}
}

func (f *notifierFixture) pendingCount(t *testing.T) int64 {
	t.Helper()
	info, err := f.rdb.XPending(context.Background(), streams.NotifyStream, f.cfg.ConsumerGroup).Result()
	require.NoError(t, err)
	return info.Count
}

func TestNotifierDeliversAndAcks(t *testing.T) {
	f := newNotifierFixture(t)
	ctx := context.Background()

	require.NoError(t, f.broker.PublishNotification(ctx, models.Notification{
		Type: models.NotifyTypeReminder, UserID: 7,
		Data: map[string]any{"text": "standup"},
	}))

	require.NoError(t, f.notifier.Start(ctx))
	defer f.notifier.Stop()

	require.Eventually(t, func() bool { return f.bot.count() == 1 }, 3*time.Second, 20*time.Millisecond)
	f.bot.mu.Lock()
	assert.Equal(t, int64(7), f.bot.chats[0])
	assert.Contains(t, f.bot.texts[0], "Reminder: standup")
	f.bot.mu.Unlock()

	require.Eventually(t, func() bool { return f.pendingCount(t) == 0 }, 3*time.Second, 20*time.Millisecond)
}

func TestNotifierDropsMalformedAndUnknown(t *testing.T) {
	f := newNotifierFixture(t)
	ctx := context.Background()

	// Malformed JSON and an unknown type both get acked without a send.
	require.NoError(t, f.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streams.NotifyStream,
		ID:     "*",
		Values: map[string]any{"message": "not json"},
	}).Err())
	require.NoError(t, f.broker.PublishNotification(ctx, models.Notification{
		Type: "mystery", UserID: 7,
	}))
	require.NoError(t, f.broker.PublishNotification(ctx, models.Notification{
		Type: models.NotifyTypeReminder, UserID: 7,
		Data: map[string]any{"text": "only this one"},
	}))

	require.NoError(t, f.notifier.Start(ctx))
	defer f.notifier.Stop()

	require.Eventually(t, func() bool { return f.bot.count() == 1 }, 3*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool { return f.pendingCount(t) == 0 }, 3*time.Second, 20*time.Millisecond)
}

func TestNotifierLeavesFailedDeliveryUnacked(t *testing.T) {
	f := newNotifierFixture(t)
	f.bot.fail = true
	ctx := context.Background()

	require.NoError(t, f.broker.PublishNotification(ctx, models.Notification{
		Type: models.NotifyTypeReminder, UserID: 7,
		Data: map[string]any{"text": "standup"},
	}))

	require.NoError(t, f.notifier.Start(ctx))
	require.Eventually(t, func() bool { return f.pendingCount(t) == 1 }, 3*time.Second, 20*time.Millisecond)
	f.notifier.Stop()

	assert.Zero(t, f.bot.count())
	assert.Equal(t, int64(1), f.pendingCount(t))
}
