package leasemanager

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/tasklease/internal/logger"
	"github.com/marmos91/tasklease/pkg/api"
	"github.com/marmos91/tasklease/pkg/metrics"
	"github.com/marmos91/tasklease/pkg/models"
)

// LeaseRequest is the request body for POST /leases, PUT /leases/renew and
// PUT /leases/release.
type LeaseRequest struct {
	Resource string `json:"resource"`
	Holder   string `json:"holder"`
}

// decodeLeaseRequest decodes and validates the resource/holder body.
// Returns false if an error response has already been written.
func decodeLeaseRequest(w http.ResponseWriter, r *http.Request) (LeaseRequest, bool) {
	var req LeaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if req.Resource == "" {
		api.Error(w, http.StatusBadRequest, "resource is required")
		return req, false
	}
	if req.Holder == "" {
		api.Error(w, http.StatusBadRequest, "holder is required")
		return req, false
	}
	return req, true
}

// handleAcquire handles POST /leases.
//
// Grants a new lease on the resource unless an active lease already covers
// it, in which case the caller gets 409 and must retry later.
func (s *Service) handleAcquire(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeLeaseRequest(w, r)
	if !ok {
		return
	}

	lease, err := s.store.AcquireLease(r.Context(), req.Resource, req.Holder, s.ttl)
	if err != nil {
		if errors.Is(err, models.ErrLeaseHeld) {
			s.metrics.ObserveLeaseOp(metrics.OpAcquire, metrics.OutcomeConflict)
			api.Error(w, http.StatusConflict, err.Error())
			return
		}
		s.metrics.ObserveLeaseOp(metrics.OpAcquire, metrics.OutcomeError)
		logger.Error("lease acquire failed", "resource", req.Resource, "holder", req.Holder, "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to acquire lease")
		return
	}

	s.metrics.ObserveLeaseOp(metrics.OpAcquire, metrics.OutcomeOK)
	logger.Debug("lease acquired", "id", lease.ID, "resource", lease.Resource, "holder", lease.Holder, "expires_at", lease.ExpiresAt)
	api.JSON(w, http.StatusCreated, lease)
}

// handleRenew handles PUT /leases/renew.
//
// Extends the caller's active lease. A lease that lapsed without being
// released answers 409: the holder has lost exclusivity and must re-acquire
// rather than silently resume.
func (s *Service) handleRenew(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeLeaseRequest(w, r)
	if !ok {
		return
	}

	lease, err := s.store.RenewLease(r.Context(), req.Resource, req.Holder, s.ttl)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrLeaseHeld):
			s.metrics.ObserveLeaseOp(metrics.OpRenew, metrics.OutcomeConflict)
			api.Error(w, http.StatusConflict, err.Error())
		case errors.Is(err, models.ErrLeaseExpired):
			s.metrics.ObserveLeaseOp(metrics.OpRenew, metrics.OutcomeExpired)
			api.Error(w, http.StatusConflict, err.Error())
		case errors.Is(err, models.ErrLeaseNotFound):
			s.metrics.ObserveLeaseOp(metrics.OpRenew, metrics.OutcomeNotFound)
			api.Error(w, http.StatusNotFound, err.Error())
		default:
			s.metrics.ObserveLeaseOp(metrics.OpRenew, metrics.OutcomeError)
			logger.Error("lease renew failed", "resource", req.Resource, "holder", req.Holder, "error", err)
			api.Error(w, http.StatusInternalServerError, "failed to renew lease")
		}
		return
	}

	s.metrics.ObserveLeaseOp(metrics.OpRenew, metrics.OutcomeOK)
	api.JSON(w, http.StatusCreated, lease)
}

// handleRelease handles PUT /leases/release.
//
// Releases the caller's active lease on the resource by name. Used by
// clients that track resource and holder rather than lease ids.
func (s *Service) handleRelease(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeLeaseRequest(w, r)
	if !ok {
		return
	}

	lease, err := s.store.ReleaseHolderLease(r.Context(), req.Resource, req.Holder)
	if err != nil {
		if errors.Is(err, models.ErrLeaseNotFound) {
			s.metrics.ObserveLeaseOp(metrics.OpRelease, metrics.OutcomeNotFound)
			api.Error(w, http.StatusNotFound, err.Error())
			return
		}
		s.metrics.ObserveLeaseOp(metrics.OpRelease, metrics.OutcomeError)
		logger.Error("lease release failed", "resource", req.Resource, "holder", req.Holder, "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to release lease")
		return
	}

	s.metrics.ObserveLeaseOp(metrics.OpRelease, metrics.OutcomeOK)
	logger.Debug("lease released", "id", lease.ID, "resource", lease.Resource, "holder", lease.Holder)
	api.JSON(w, http.StatusOK, lease)
}

// handleReleaseByID handles DELETE /leases/{id}.
//
// Releasing an already released lease is a no-op success, so retries after
// a lost response are safe.
func (s *Service) handleReleaseByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid lease id")
		return
	}

	lease, err := s.store.ReleaseLease(r.Context(), uint(id))
	if err != nil {
		if errors.Is(err, models.ErrLeaseNotFound) {
			s.metrics.ObserveLeaseOp(metrics.OpRelease, metrics.OutcomeNotFound)
			api.Error(w, http.StatusNotFound, err.Error())
			return
		}
		s.metrics.ObserveLeaseOp(metrics.OpRelease, metrics.OutcomeError)
		logger.Error("lease release failed", "id", id, "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to release lease")
		return
	}

	s.metrics.ObserveLeaseOp(metrics.OpRelease, metrics.OutcomeOK)
	api.JSON(w, http.StatusOK, lease)
}

// handleList handles GET /leases?state=all|active|expired|released|renewed.
//
// The state of every row is computed against a single database clock
// reading, so one listing is a consistent snapshot.
func (s *Service) handleList(w http.ResponseWriter, r *http.Request) {
	state := models.LeaseStateAll
	if raw := r.URL.Query().Get("state"); raw != "" {
		parsed, err := models.ParseLeaseState(raw)
		if err != nil {
			api.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		state = parsed
	}

	leases, err := s.store.ListLeases(r.Context(), state)
	if err != nil {
		logger.Error("lease list failed", "state", state, "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to list leases")
		return
	}

	api.JSON(w, http.StatusOK, leases)
}
