package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/marmos91/tasklease/pkg/models"
)

// ProcessorRequest is the body for claim, heartbeat and abandon calls.
type ProcessorRequest struct {
	Processor string `json:"processor"`
}

// CompleteRequest is the body for complete calls.
type CompleteRequest struct {
	Processor string          `json:"processor"`
	Output    json.RawMessage `json:"output,omitempty"`
}

// CreateTaskRequest is the body for task creation.
type CreateTaskRequest struct {
	TaskData json.RawMessage `json:"task_data"`
}

// HeartbeatResponse carries the pushed-out deadline after a heartbeat.
type HeartbeatResponse struct {
	MustHeartbeatBefore time.Time `json:"must_heartbeat_before"`
}

// ClaimNext claims the oldest runnable task for processor.
// Returns (nil, nil) when no task is runnable. A 409 means another
// processor won the claim race; the caller should just poll again.
func (c *Client) ClaimNext(ctx context.Context, processor string) (*models.Task, error) {
	var task models.Task
	status, err := c.do(ctx, http.MethodPost, "/tasks/next", ProcessorRequest{Processor: processor}, &task)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, nil
	}
	return &task, nil
}

// Heartbeat reports the task is still being worked on, pushing out its
// deadline and renewing the lease guarding it. A 409 means ownership was
// lost and the processor must stop working on the task.
func (c *Client) Heartbeat(ctx context.Context, id uint, processor string) (*HeartbeatResponse, error) {
	var resp HeartbeatResponse
	if err := c.put(ctx, fmt.Sprintf("/tasks/%d/heartbeat", id), ProcessorRequest{Processor: processor}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Complete marks the task done and records its output.
func (c *Client) Complete(ctx context.Context, id uint, processor string, output json.RawMessage) (*models.Task, error) {
	var task models.Task
	if err := c.put(ctx, fmt.Sprintf("/tasks/%d/complete", id), CompleteRequest{Processor: processor, Output: output}, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Abandon gives the task up so another processor can claim it immediately.
func (c *Client) Abandon(ctx context.Context, id uint, processor string) error {
	return c.put(ctx, fmt.Sprintf("/tasks/%d/abandon", id), ProcessorRequest{Processor: processor}, nil)
}

// CreateTask enqueues a new task with an opaque payload.
func (c *Client) CreateTask(ctx context.Context, taskData json.RawMessage) (*models.Task, error) {
	var task models.Task
	if err := c.post(ctx, "/tasks", CreateTaskRequest{TaskData: taskData}, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// GetTask returns a task by id.
func (c *Client) GetTask(ctx context.Context, id uint) (*models.Task, error) {
	var task models.Task
	if err := c.get(ctx, fmt.Sprintf("/tasks/%d", id), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// ListTasks returns every task.
func (c *Client) ListTasks(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	if err := c.get(ctx, "/tasks", &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListStartedTasks returns tasks that are claimed but not yet completed.
func (c *Client) ListStartedTasks(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	if err := c.get(ctx, "/tasks/started", &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListProcessedTasks returns completed tasks.
func (c *Client) ListProcessedTasks(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	if err := c.get(ctx, "/tasks/processed", &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}
