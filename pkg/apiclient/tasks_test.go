package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/tasklease/pkg/models"
)

func TestClaimNext(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	processor := "worker-1"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tasks/next", r.URL.Path)

		var req ProcessorRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, processor, req.Processor)

		deadline := now.Add(30 * time.Second)
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(models.Task{
			ID:                  12,
			TaskData:            json.RawMessage(`{"op":"compact"}`),
			StartedAt:           &now,
			LastHeartbeatAt:     &now,
			MustHeartbeatBefore: &deadline,
			Processor:           &processor,
		})
	}))
	defer server.Close()

	client := New(server.URL)
	task, err := client.ClaimNext(context.Background(), processor)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, uint(12), task.ID)
	assert.JSONEq(t, `{"op":"compact"}`, string(task.TaskData))
	require.NotNil(t, task.Processor)
	assert.Equal(t, processor, *task.Processor)
}

func TestClaimNext_NoTask(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := New(server.URL)
	task, err := client.ClaimNext(context.Background(), "worker-1")
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestClaimNext_Conflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"resource is held by an active lease"}`))
	}))
	defer server.Close()

	client := New(server.URL)
	task, err := client.ClaimNext(context.Background(), "worker-1")
	require.Error(t, err)
	assert.Nil(t, task)
	assert.True(t, IsConflict(err))
}

func TestHeartbeat(t *testing.T) {
	deadline := time.Now().UTC().Add(30 * time.Second).Truncate(time.Millisecond)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/tasks/12/heartbeat", r.URL.Path)

		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(HeartbeatResponse{MustHeartbeatBefore: deadline})
	}))
	defer server.Close()

	client := New(server.URL)
	resp, err := client.Heartbeat(context.Background(), 12, "worker-1")
	require.NoError(t, err)
	assert.True(t, resp.MustHeartbeatBefore.Equal(deadline))
}

func TestComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tasks/12/complete", r.URL.Path)

		var req CompleteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "worker-1", req.Processor)
		assert.JSONEq(t, `{"rows":42}`, string(req.Output))

		now := time.Now().UTC()
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(models.Task{
			ID:          12,
			TaskOutput:  req.Output,
			ProcessedAt: &now,
		})
	}))
	defer server.Close()

	client := New(server.URL)
	task, err := client.Complete(context.Background(), 12, "worker-1", json.RawMessage(`{"rows":42}`))
	require.NoError(t, err)
	require.NotNil(t, task.ProcessedAt)
	assert.JSONEq(t, `{"rows":42}`, string(task.TaskOutput))
}

func TestAbandon(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tasks/12/abandon", r.URL.Path)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := New(server.URL)
	err := client.Abandon(context.Background(), 12, "worker-1")
	require.NoError(t, err)
}

func TestCreateTask(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tasks", r.URL.Path)

		var req CreateTaskRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(models.Task{ID: 1, TaskData: req.TaskData, ScheduledAt: time.Now().UTC()})
	}))
	defer server.Close()

	client := New(server.URL)
	task, err := client.CreateTask(context.Background(), json.RawMessage(`{"op":"reindex"}`))
	require.NoError(t, err)
	assert.Equal(t, uint(1), task.ID)
	assert.JSONEq(t, `{"op":"reindex"}`, string(task.TaskData))
}

func TestTaskLists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		switch r.URL.Path {
		case "/tasks":
			_ = json.NewEncoder(w).Encode([]models.Task{{ID: 1}, {ID: 2}, {ID: 3}})
		case "/tasks/started":
			_ = json.NewEncoder(w).Encode([]models.Task{{ID: 2}})
		case "/tasks/processed":
			_ = json.NewEncoder(w).Encode([]models.Task{{ID: 1}})
		default:
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := New(server.URL)
	ctx := context.Background()

	all, err := client.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	started, err := client.ListStartedTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, started, 1)

	processed, err := client.ListProcessedTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, processed, 1)
}

func TestGetTask(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tasks/12", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(models.Task{ID: 12})
	}))
	defer server.Close()

	client := New(server.URL)
	task, err := client.GetTask(context.Background(), 12)
	require.NoError(t, err)
	assert.Equal(t, uint(12), task.ID)
}

func TestGetTask_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"task not found"}`))
	}))
	defer server.Close()

	client := New(server.URL)
	task, err := client.GetTask(context.Background(), 99)
	require.Error(t, err)
	assert.Nil(t, task)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "task not found", err.Error())
}
