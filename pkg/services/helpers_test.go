package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jhyoong/bearmemori/pkg/models"
	"github.com/jhyoong/bearmemori/pkg/services"
)

// capturePublisher records published notifications and job messages in memory.
// Setting fail makes every publish return an error.
type capturePublisher struct {
	mu            sync.Mutex
	notifications []models.Notification
	jobs          []models.JobMessage
	fail          bool
}

func (p *capturePublisher) PublishNotification(_ context.Context, n models.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.notifications = append(p.notifications, n)
	return nil
}

func (p *capturePublisher) PublishJob(_ context.Context, msg models.JobMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.jobs = append(p.jobs, msg)
	return nil
}

func (p *capturePublisher) published() []models.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Notification(nil), p.notifications...)
}

func (p *capturePublisher) publishedJobs() []models.JobMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.JobMessage(nil), p.jobs...)
}

func ptr[T any](v T) *T { return &v }

// createTextMemory inserts a confirmed text memory and returns it.
func createTextMemory(t *testing.T, svc *services.MemoryService, owner int64, content string) *models.Memory {
	t.Helper()
	m, err := svc.Create(context.Background(), models.CreateMemoryRequest{
		OwnerUserID: owner,
		Content:     ptr(content),
	})
	require.NoError(t, err)
	return m
}

// lastAudit returns the newest audit record for an entity.
func lastAudit(t *testing.T, audits *services.AuditService, entityType, entityID string) models.AuditRecord {
	t.Helper()
	records, err := audits.Query(context.Background(), models.AuditQueryParams{
		EntityType: entityType,
		EntityID:   entityID,
		Limit:      1,
	})
	require.NoError(t, err)
	require.NotEmpty(t, records)
	return records[0]
}
