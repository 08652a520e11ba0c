package services

import (
	"context"

	"github.com/jhyoong/bearmemori/pkg/models"
)

// NotificationPublisher delivers notifications onto the outbound stream.
// Satisfied by streams.Client.
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, n models.Notification) error
}

// JobPublisher enqueues job messages onto their input streams.
// Satisfied by streams.Client.
type JobPublisher interface {
	PublishJob(ctx context.Context, msg models.JobMessage) error
}
