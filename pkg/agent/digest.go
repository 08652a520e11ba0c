package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jhyoong/bearmemori/pkg/config"
)

// DigestSender delivers a rendered digest to one user.
type DigestSender interface {
	SendDigest(ctx context.Context, userID int64, text string) error
}

// digestMarkerTTL spans DST transitions so a day is never digested twice.
const digestMarkerTTL = 48 * time.Hour

// DigestScheduler sends each allowed user one briefing per day at the
// configured local hour.
type DigestScheduler struct {
	config   *config.AssistantConfig
	core     CoreAPI
	briefing *BriefingBuilder
	sender   DigestSender
	rdb      *redis.Client

	cancel context.CancelFunc
	done   chan struct{}
}

// NewDigestScheduler creates the digest loop.
func NewDigestScheduler(cfg *config.AssistantConfig, core CoreAPI, briefing *BriefingBuilder, sender DigestSender, rdb *redis.Client) *DigestScheduler {
	return &DigestScheduler{
		config:   cfg,
		core:     core,
		briefing: briefing,
		sender:   sender,
		rdb:      rdb,
	}
}

// Start launches the digest tick loop.
func (d *DigestScheduler) Start(ctx context.Context) {
	if d.cancel != nil {
		return
	}
	ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})

	go d.run(ctx)

	slog.Info("Digest scheduler started",
		"digest_hour", d.config.DigestHour,
		"tick", d.config.DigestTick,
		"users", len(d.config.AllowedUserIDs))
}

// Stop signals the loop to exit and waits for it to finish.
func (d *DigestScheduler) Stop() {
	if d.cancel == nil {
		return
	}
	d.cancel()
	<-d.done
	slog.Info("Digest scheduler stopped")
}

func (d *DigestScheduler) run(ctx context.Context) {
	defer close(d.done)

	ticker := time.NewTicker(d.config.DigestTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.RunTick(ctx, time.Now())
		}
	}
}

// RunTick checks every allowed user's local clock and sends at most one
// digest per user per day. Exported for tests.
func (d *DigestScheduler) RunTick(ctx context.Context, now time.Time) {
	for _, userID := range d.config.AllowedUserIDs {
		if err := d.maybeSend(ctx, userID, now); err != nil {
			slog.Error("Digest delivery failed", "user_id", userID, "error", err)
		}
	}
}

func (d *DigestScheduler) maybeSend(ctx context.Context, userID int64, now time.Time) error {
	loc := time.UTC
	if settings, err := d.core.GetSettings(ctx, userID); err == nil {
		if l, err := time.LoadLocation(settings.Timezone); err == nil {
			loc = l
		}
	}
	local := now.In(loc)
	if local.Hour() != d.config.DigestHour {
		return nil
	}

	marker := fmt.Sprintf("digest:sent:%d:%s", userID, local.Format("2006-01-02"))
	set, err := d.rdb.SetNX(ctx, marker, "1", digestMarkerTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to set digest marker: %w", err)
	}
	if !set {
		return nil
	}

	text := "Good morning! Here's your daily overview.\n\n" + d.briefing.Build(ctx, userID)
	if err := d.sender.SendDigest(ctx, userID, text); err != nil {
		// Drop the marker so the next tick within the hour retries.
		_ = d.rdb.Del(ctx, marker).Err()
		return err
	}
	slog.Info("Daily digest sent", "user_id", userID)
	return nil
}
