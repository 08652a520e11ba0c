// Package coreclient is the HTTP client for the core REST service, used by
// the worker, assistant and gateway processes.
package coreclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jhyoong/bearmemori/pkg/models"
)

// ErrNotFound is returned for 404 responses.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response from core.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("core returned status %d: %s", e.StatusCode, e.Message)
}

// Client calls the core REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the core service at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		msg := string(raw)
		if json.Unmarshal(raw, &errBody) == nil && errBody.Error != "" {
			msg = errBody.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// CreateMemory creates a memory.
func (c *Client) CreateMemory(ctx context.Context, req models.CreateMemoryRequest) (*models.Memory, error) {
	var m models.Memory
	if err := c.do(ctx, http.MethodPost, "/memories", req, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMemory returns a memory by id.
func (c *Client) GetMemory(ctx context.Context, id string) (*models.Memory, error) {
	var m models.Memory
	if err := c.do(ctx, http.MethodGet, "/memories/"+url.PathEscape(id), nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMemory patches a memory.
func (c *Client) UpdateMemory(ctx context.Context, id string, req models.UpdateMemoryRequest) (*models.Memory, error) {
	var m models.Memory
	if err := c.do(ctx, http.MethodPatch, "/memories/"+url.PathEscape(id), req, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// DeleteMemory removes a memory.
func (c *Client) DeleteMemory(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/memories/"+url.PathEscape(id), nil, nil)
}

// AddTags attaches tags to a memory.
func (c *Client) AddTags(ctx context.Context, memoryID string, req models.AddTagsRequest) ([]models.MemoryTag, error) {
	var tags []models.MemoryTag
	if err := c.do(ctx, http.MethodPost, "/memories/"+url.PathEscape(memoryID)+"/tags", req, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// Search runs a full-text query.
func (c *Client) Search(ctx context.Context, owner int64, query string, pinnedOnly bool, limit int) ([]models.SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("owner", strconv.FormatInt(owner, 10))
	if pinnedOnly {
		params.Set("pinned", "true")
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var results []models.SearchResult
	if err := c.do(ctx, http.MethodGet, "/search?"+params.Encode(), nil, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, req models.CreateTaskRequest) (*models.Task, error) {
	var t models.Task
	if err := c.do(ctx, http.MethodPost, "/tasks", req, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTasks lists a user's tasks, optionally filtered by state.
func (c *Client) ListTasks(ctx context.Context, owner int64, state *models.TaskState, limit int) ([]models.Task, error) {
	params := url.Values{}
	params.Set("owner", strconv.FormatInt(owner, 10))
	if state != nil {
		params.Set("state", string(*state))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var tasks []models.Task
	if err := c.do(ctx, http.MethodGet, "/tasks?"+params.Encode(), nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// UpdateTask patches a task.
func (c *Client) UpdateTask(ctx context.Context, id string, req models.UpdateTaskRequest) (*models.Task, error) {
	var t models.Task
	if err := c.do(ctx, http.MethodPatch, "/tasks/"+url.PathEscape(id), req, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateReminder creates a reminder.
func (c *Client) CreateReminder(ctx context.Context, req models.CreateReminderRequest) (*models.Reminder, error) {
	var r models.Reminder
	if err := c.do(ctx, http.MethodPost, "/reminders", req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListReminders lists a user's reminders.
func (c *Client) ListReminders(ctx context.Context, owner int64, upcomingOnly bool, limit int) ([]models.Reminder, error) {
	params := url.Values{}
	params.Set("owner", strconv.FormatInt(owner, 10))
	if upcomingOnly {
		params.Set("upcoming", "true")
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var reminders []models.Reminder
	if err := c.do(ctx, http.MethodGet, "/reminders?"+params.Encode(), nil, &reminders); err != nil {
		return nil, err
	}
	return reminders, nil
}

// CreateEvent creates a pending event.
func (c *Client) CreateEvent(ctx context.Context, req models.CreateEventRequest) (*models.Event, error) {
	var e models.Event
	if err := c.do(ctx, http.MethodPost, "/events", req, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// UpdateEvent patches an event.
func (c *Client) UpdateEvent(ctx context.Context, id string, req models.UpdateEventRequest) (*models.Event, error) {
	var e models.Event
	if err := c.do(ctx, http.MethodPatch, "/events/"+url.PathEscape(id), req, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// ListEvents lists a user's events, optionally filtered by status.
func (c *Client) ListEvents(ctx context.Context, owner int64, status *models.EventStatus, limit int) ([]models.Event, error) {
	params := url.Values{}
	params.Set("owner", strconv.FormatInt(owner, 10))
	if status != nil {
		params.Set("status", string(*status))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var events []models.Event
	if err := c.do(ctx, http.MethodGet, "/events?"+params.Encode(), nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// GetSettings returns a user's settings.
func (c *Client) GetSettings(ctx context.Context, userID int64) (*models.UserSettings, error) {
	var s models.UserSettings
	if err := c.do(ctx, http.MethodGet, "/settings/"+strconv.FormatInt(userID, 10), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpsertSettings stores a user's settings.
func (c *Client) UpsertSettings(ctx context.Context, userID int64, req models.UpsertSettingsRequest) (*models.UserSettings, error) {
	var s models.UserSettings
	if err := c.do(ctx, http.MethodPut, "/settings/"+strconv.FormatInt(userID, 10), req, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateJob creates a durable LLM job and enqueues its stream message.
func (c *Client) CreateJob(ctx context.Context, req models.CreateJobRequest) (*models.LLMJob, error) {
	var job models.LLMJob
	if err := c.do(ctx, http.MethodPost, "/llm_jobs", req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJob returns a job by id.
func (c *Client) GetJob(ctx context.Context, id string) (*models.LLMJob, error) {
	var job models.LLMJob
	if err := c.do(ctx, http.MethodGet, "/llm_jobs/"+url.PathEscape(id), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateJob transitions a job's status.
func (c *Client) UpdateJob(ctx context.Context, id string, req models.UpdateJobRequest) (*models.LLMJob, error) {
	var job models.LLMJob
	if err := c.do(ctx, http.MethodPatch, "/llm_jobs/"+url.PathEscape(id), req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}
