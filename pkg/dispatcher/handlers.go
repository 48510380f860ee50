package dispatcher

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/tasklease/internal/logger"
	"github.com/marmos91/tasklease/pkg/api"
	"github.com/marmos91/tasklease/pkg/metrics"
	"github.com/marmos91/tasklease/pkg/models"
)

// ProcessorRequest is the request body for claim, heartbeat and abandon.
type ProcessorRequest struct {
	Processor string `json:"processor"`
}

// CompleteRequest is the request body for PUT /tasks/{id}/complete.
type CompleteRequest struct {
	Processor string          `json:"processor"`
	Output    json.RawMessage `json:"output,omitempty"`
}

// CreateTaskRequest is the request body for POST /tasks.
type CreateTaskRequest struct {
	TaskData json.RawMessage `json:"task_data"`
}

// HeartbeatResponse carries the pushed-out deadline after a heartbeat.
type HeartbeatResponse struct {
	MustHeartbeatBefore time.Time `json:"must_heartbeat_before"`
}

// decodeProcessor decodes and validates the processor body.
// Returns empty string if an error response has already been written.
func decodeProcessor(w http.ResponseWriter, r *http.Request) string {
	var req ProcessorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return ""
	}
	if req.Processor == "" {
		api.Error(w, http.StatusBadRequest, "processor is required")
		return ""
	}
	return req.Processor
}

// taskID parses the {id} route parameter.
func taskID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid task id")
		return 0, false
	}
	return uint(id), true
}

// handleClaimNext handles POST /tasks/next.
//
// 202 carries the claimed task, 204 means nothing is runnable, and 409
// means another processor won the claim race; in both non-202 cases the
// caller simply polls again later.
func (s *Service) handleClaimNext(w http.ResponseWriter, r *http.Request) {
	processor := decodeProcessor(w, r)
	if processor == "" {
		return
	}

	task, err := s.ClaimNext(r.Context(), processor)
	if err != nil {
		if errors.Is(err, ErrTaskClaimConflict) {
			s.metrics.ObserveTaskOp(metrics.OpClaim, metrics.OutcomeConflict)
			api.Error(w, http.StatusConflict, err.Error())
			return
		}
		s.metrics.ObserveTaskOp(metrics.OpClaim, metrics.OutcomeError)
		logger.Error("task claim failed", "processor", processor, "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to claim task")
		return
	}

	if task == nil {
		s.metrics.ObserveTaskOp(metrics.OpClaim, metrics.OutcomeNone)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.metrics.ObserveTaskOp(metrics.OpClaim, metrics.OutcomeOK)
	logger.Debug("task claimed", "task_id", task.ID, "processor", processor, "must_heartbeat_before", task.MustHeartbeatBefore)
	api.JSON(w, http.StatusAccepted, task)
}

// handleHeartbeat handles PUT /tasks/{id}/heartbeat.
//
// Every 409 means the processor no longer owns the task and must stop
// working on it.
func (s *Service) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	processor := decodeProcessor(w, r)
	if processor == "" {
		return
	}

	task, err := s.Heartbeat(r.Context(), id, processor)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrTaskNotFound):
			s.metrics.ObserveTaskOp(metrics.OpHeartbeat, metrics.OutcomeNotFound)
			api.Error(w, http.StatusNotFound, err.Error())
		case errors.Is(err, models.ErrHeartbeatExpired):
			s.metrics.ObserveTaskOp(metrics.OpHeartbeat, metrics.OutcomeExpired)
			api.Error(w, http.StatusConflict, err.Error())
		case errors.Is(err, models.ErrTaskNotOwned), errors.Is(err, models.ErrTaskAlreadyProcessed):
			s.metrics.ObserveTaskOp(metrics.OpHeartbeat, metrics.OutcomeConflict)
			api.Error(w, http.StatusConflict, err.Error())
		default:
			s.metrics.ObserveTaskOp(metrics.OpHeartbeat, metrics.OutcomeError)
			logger.Error("task heartbeat failed", "task_id", id, "processor", processor, "error", err)
			api.Error(w, http.StatusInternalServerError, "failed to heartbeat task")
		}
		return
	}

	s.metrics.ObserveTaskOp(metrics.OpHeartbeat, metrics.OutcomeOK)
	api.JSON(w, http.StatusAccepted, HeartbeatResponse{MustHeartbeatBefore: *task.MustHeartbeatBefore})
}

// handleComplete handles PUT /tasks/{id}/complete.
func (s *Service) handleComplete(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	var req CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Processor == "" {
		api.Error(w, http.StatusBadRequest, "processor is required")
		return
	}

	task, err := s.Complete(r.Context(), id, req.Processor, req.Output)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrTaskNotFound):
			s.metrics.ObserveTaskOp(metrics.OpComplete, metrics.OutcomeNotFound)
			api.Error(w, http.StatusNotFound, err.Error())
		case errors.Is(err, models.ErrHeartbeatExpired):
			s.metrics.ObserveTaskOp(metrics.OpComplete, metrics.OutcomeExpired)
			api.Error(w, http.StatusConflict, err.Error())
		case errors.Is(err, models.ErrTaskNotOwned), errors.Is(err, models.ErrTaskAlreadyProcessed):
			s.metrics.ObserveTaskOp(metrics.OpComplete, metrics.OutcomeConflict)
			api.Error(w, http.StatusConflict, err.Error())
		default:
			s.metrics.ObserveTaskOp(metrics.OpComplete, metrics.OutcomeError)
			logger.Error("task complete failed", "task_id", id, "processor", req.Processor, "error", err)
			api.Error(w, http.StatusInternalServerError, "failed to complete task")
		}
		return
	}

	s.metrics.ObserveTaskOp(metrics.OpComplete, metrics.OutcomeOK)
	logger.Debug("task completed", "task_id", id, "processor", req.Processor)
	api.JSON(w, http.StatusAccepted, task)
}

// handleAbandon handles PUT /tasks/{id}/abandon.
func (s *Service) handleAbandon(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	processor := decodeProcessor(w, r)
	if processor == "" {
		return
	}

	if _, err := s.Abandon(r.Context(), id, processor); err != nil {
		switch {
		case errors.Is(err, models.ErrTaskNotFound):
			s.metrics.ObserveTaskOp(metrics.OpAbandon, metrics.OutcomeNotFound)
			api.Error(w, http.StatusNotFound, err.Error())
		case errors.Is(err, models.ErrTaskNotOwned), errors.Is(err, models.ErrTaskAlreadyProcessed):
			s.metrics.ObserveTaskOp(metrics.OpAbandon, metrics.OutcomeConflict)
			api.Error(w, http.StatusConflict, err.Error())
		default:
			s.metrics.ObserveTaskOp(metrics.OpAbandon, metrics.OutcomeError)
			logger.Error("task abandon failed", "task_id", id, "processor", processor, "error", err)
			api.Error(w, http.StatusInternalServerError, "failed to abandon task")
		}
		return
	}

	s.metrics.ObserveTaskOp(metrics.OpAbandon, metrics.OutcomeOK)
	logger.Debug("task abandoned", "task_id", id, "processor", processor)
	w.WriteHeader(http.StatusAccepted)
}

// handleCreate handles POST /tasks.
func (s *Service) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.TaskData) == 0 {
		api.Error(w, http.StatusBadRequest, "task_data is required")
		return
	}

	task, err := s.Create(r.Context(), req.TaskData)
	if err != nil {
		s.metrics.ObserveTaskOp(metrics.OpCreate, metrics.OutcomeError)
		logger.Error("task create failed", "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to create task")
		return
	}

	s.metrics.ObserveTaskOp(metrics.OpCreate, metrics.OutcomeOK)
	logger.Debug("task created", "task_id", task.ID)
	api.JSON(w, http.StatusCreated, task)
}

// handleGet handles GET /tasks/{id}.
func (s *Service) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	task, err := s.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrTaskNotFound) {
			api.Error(w, http.StatusNotFound, err.Error())
			return
		}
		logger.Error("task get failed", "task_id", id, "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to get task")
		return
	}

	api.JSON(w, http.StatusOK, task)
}

// handleList handles GET /tasks.
func (s *Service) handleList(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.List(r.Context())
	if err != nil {
		logger.Error("task list failed", "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	api.JSON(w, http.StatusOK, tasks)
}

// handleListStarted handles GET /tasks/started.
func (s *Service) handleListStarted(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.ListStarted(r.Context())
	if err != nil {
		logger.Error("started task list failed", "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to list started tasks")
		return
	}
	api.JSON(w, http.StatusOK, tasks)
}

// handleListProcessed handles GET /tasks/processed.
func (s *Service) handleListProcessed(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.ListProcessed(r.Context())
	if err != nil {
		logger.Error("processed task list failed", "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to list processed tasks")
		return
	}
	api.JSON(w, http.StatusOK, tasks)
}
