// Package worker consumes LLM job messages from their input streams, invokes
// the model, writes outcomes back to core, and publishes downstream
// notifications with bounded retry.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jhyoong/bearmemori/pkg/config"
	"github.com/jhyoong/bearmemori/pkg/metrics"
	"github.com/jhyoong/bearmemori/pkg/models"
	"github.com/jhyoong/bearmemori/pkg/streams"
)

// HandlerResult is the outcome of one successful handler invocation. Result
// is stored on the job; Notification, when non-nil, is published downstream.
type HandlerResult struct {
	Result       map[string]any
	Notification *models.Notification
}

// Handler processes one job message.
type Handler interface {
	Handle(ctx context.Context, msg models.JobMessage) (*HandlerResult, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg models.JobMessage) (*HandlerResult, error)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, msg models.JobMessage) (*HandlerResult, error) {
	return f(ctx, msg)
}

// JobStore is the subset of the core client the worker needs for job
// lifecycle.
type JobStore interface {
	GetJob(ctx context.Context, id string) (*models.LLMJob, error)
	UpdateJob(ctx context.Context, id string, req models.UpdateJobRequest) (*models.LLMJob, error)
}

// Broker is the subset of the stream client the worker consumes through.
type Broker interface {
	EnsureGroup(ctx context.Context, stream, group string) error
	ReadGroup(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]streams.Message, error)
	Ack(ctx context.Context, stream, group, id string) error
	PublishNotification(ctx context.Context, n models.Notification) error
}

// Worker is one replica of the job pipeline: it round-robins over the job
// input streams and drives each delivered message through its handler.
type Worker struct {
	config   *config.WorkerConfig
	broker   Broker
	jobs     JobStore
	handlers map[string]Handler
	tracker  *retryTracker

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a worker with no handlers registered.
func New(cfg *config.WorkerConfig, broker Broker, jobs JobStore) *Worker {
	return &Worker{
		config:   cfg,
		broker:   broker,
		jobs:     jobs,
		handlers: make(map[string]Handler),
		tracker:  newRetryTracker(),
		stopCh:   make(chan struct{}),
	}
}

// Register binds a handler to a job type.
func (w *Worker) Register(jobType string, h Handler) {
	w.handlers[jobType] = h
}

// Start creates the consumer groups and launches the consume loop.
func (w *Worker) Start(ctx context.Context) error {
	for _, jobType := range models.JobTypes {
		if err := w.broker.EnsureGroup(ctx, streams.JobStream(jobType), w.config.ConsumerGroup); err != nil {
			return fmt.Errorf("failed to ensure group for %s: %w", jobType, err)
		}
	}

	w.wg.Add(1)
	go w.run(ctx)

	slog.Info("Worker started",
		"consumer_group", w.config.ConsumerGroup,
		"consumer_name", w.config.ConsumerName,
		"max_retries", w.config.MaxRetries)
	return nil
}

// Stop signals the loop to exit and waits for in-flight work to finish.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(w.config.GracefulShutdownTimeout):
		slog.Warn("Worker shutdown timed out with work in flight")
	}
	slog.Info("Worker stopped")
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		w.RunRound(ctx)

		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(w.config.RoundPause):
		}
	}
}

// RunRound performs one round-robin pass over every job input stream.
// Exported for tests.
func (w *Worker) RunRound(ctx context.Context) {
	for _, jobType := range models.JobTypes {
		stream := streams.JobStream(jobType)
		msgs, err := w.broker.ReadGroup(ctx, stream, w.config.ConsumerGroup,
			w.config.ConsumerName, 10, w.config.BlockTimeout)
		if err != nil {
			slog.Error("Stream read failed", "stream", stream, "error", err)
			continue
		}
		for _, m := range msgs {
			w.processMessage(ctx, m)
		}
	}
}

func (w *Worker) processMessage(ctx context.Context, m streams.Message) {
	var msg models.JobMessage
	if err := json.Unmarshal(m.Raw, &msg); err != nil || msg.JobID == "" || msg.JobType == "" {
		slog.Warn("Dropping malformed job message", "stream", m.Stream, "id", m.ID)
		w.ack(ctx, m)
		return
	}

	handler, ok := w.handlers[msg.JobType]
	if !ok {
		slog.Warn("Dropping job with no handler", "job_type", msg.JobType, "job_id", msg.JobID)
		w.ack(ctx, m)
		return
	}

	// Redelivery after a terminal status must not re-invoke the model.
	if job, err := w.jobs.GetJob(ctx, msg.JobID); err == nil && job.Status.IsTerminal() {
		slog.Info("Skipping redelivered terminal job", "job_id", msg.JobID, "status", job.Status)
		w.tracker.Clear(msg.JobID)
		w.ack(ctx, m)
		return
	}

	attempts := w.tracker.Inc(msg.JobID)
	res, err := handler.Handle(ctx, msg)
	if err != nil {
		w.handleFailure(ctx, m, msg, attempts, err)
		return
	}

	update := models.UpdateJobRequest{Status: statusPtr(models.JobStatusCompleted)}
	if res != nil && res.Result != nil {
		raw, merr := json.Marshal(res.Result)
		if merr == nil {
			s := string(raw)
			update.Result = &s
		}
	}
	if _, err := w.jobs.UpdateJob(ctx, msg.JobID, update); err != nil {
		slog.Error("Failed to complete job", "job_id", msg.JobID, "error", err)
		// Leave unacked; redelivery hits the terminal check or retries the PATCH.
		return
	}
	w.tracker.Clear(msg.JobID)
	metrics.JobsProcessed.WithLabelValues(msg.JobType, string(models.JobStatusCompleted)).Inc()

	if res != nil && res.Notification != nil {
		if err := w.broker.PublishNotification(ctx, *res.Notification); err != nil {
			slog.Error("Failed to publish job notification", "job_id", msg.JobID, "error", err)
		}
	}
	w.ack(ctx, m)
	slog.Info("Job completed", "job_id", msg.JobID, "job_type", msg.JobType, "attempts", attempts)
}

func (w *Worker) handleFailure(ctx context.Context, m streams.Message, msg models.JobMessage, attempts int, handlerErr error) {
	if attempts < w.config.MaxRetries {
		metrics.JobRetries.WithLabelValues(msg.JobType).Inc()
		if _, err := w.jobs.UpdateJob(ctx, msg.JobID,
			models.UpdateJobRequest{Status: statusPtr(models.JobStatusProcessing)}); err != nil {
			slog.Error("Failed to mark job processing", "job_id", msg.JobID, "error", err)
		}
		backoff := w.backoff(attempts)
		slog.Warn("Job attempt failed, leaving for redelivery",
			"job_id", msg.JobID, "attempt", attempts, "backoff", backoff, "error", handlerErr)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
		}
		// No ack: the broker redelivers for the next attempt.
		return
	}

	errMsg := handlerErr.Error()
	if _, err := w.jobs.UpdateJob(ctx, msg.JobID, models.UpdateJobRequest{
		Status: statusPtr(models.JobStatusFailed),
		Error:  &errMsg,
	}); err != nil {
		slog.Error("Failed to mark job failed", "job_id", msg.JobID, "error", err)
	}
	w.tracker.Clear(msg.JobID)
	metrics.JobsProcessed.WithLabelValues(msg.JobType, string(models.JobStatusFailed)).Inc()

	n := models.Notification{
		Type:   models.NotifyTypeJobFailed,
		UserID: msg.UserID,
		Data: map[string]any{
			"job_id":   msg.JobID,
			"job_type": msg.JobType,
			"error":    errMsg,
		},
	}
	if err := w.broker.PublishNotification(ctx, n); err != nil {
		slog.Error("Failed to publish failure notification", "job_id", msg.JobID, "error", err)
	}
	w.ack(ctx, m)
	slog.Error("Job failed permanently", "job_id", msg.JobID, "attempts", attempts, "error", handlerErr)
}

// backoff returns min(2^(attempts-1), cap) seconds.
func (w *Worker) backoff(attempts int) time.Duration {
	d := time.Second << uint(attempts-1)
	if d > w.config.BackoffCap || d <= 0 {
		return w.config.BackoffCap
	}
	return d
}

func (w *Worker) ack(ctx context.Context, m streams.Message) {
	if err := w.broker.Ack(ctx, m.Stream, w.config.ConsumerGroup, m.ID); err != nil {
		slog.Error("Failed to ack message", "stream", m.Stream, "id", m.ID, "error", err)
	}
}

func statusPtr(s models.JobStatus) *models.JobStatus { return &s }

// retryTracker counts per-job handler attempts. Process-local: a restart
// resets counts and broker redelivery restores at-least-max_retries behavior.
type retryTracker struct {
	mu       sync.Mutex
	attempts map[string]int
}

func newRetryTracker() *retryTracker {
	return &retryTracker{attempts: make(map[string]int)}
}

// Inc records one attempt and returns the new count.
func (t *retryTracker) Inc(jobID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts[jobID]++
	return t.attempts[jobID]
}

// Clear drops a job's attempt count.
func (t *retryTracker) Clear(jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.attempts, jobID)
}

// Attempts returns a job's current attempt count.
func (t *retryTracker) Attempts(jobID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts[jobID]
}
