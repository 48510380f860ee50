package leasemanager

import (
	"context"
	"time"

	"github.com/marmos91/tasklease/internal/logger"
	"github.com/marmos91/tasklease/pkg/metrics"
	"github.com/marmos91/tasklease/pkg/models"
	"github.com/marmos91/tasklease/pkg/store"
)

// StateMonitor periodically samples lease counts per derived state into the
// by-state gauge. It only reads: expiry stays passive, no rows are mutated.
type StateMonitor struct {
	store    store.Store
	metrics  *metrics.Metrics
	interval time.Duration
}

// NewStateMonitor creates a monitor sampling every interval.
func NewStateMonitor(st store.Store, m *metrics.Metrics, interval time.Duration) *StateMonitor {
	return &StateMonitor{
		store:    st,
		metrics:  m,
		interval: interval,
	}
}

// Run samples on every tick until the context is cancelled.
func (sm *StateMonitor) Run(ctx context.Context) {
	if sm.metrics == nil {
		return
	}

	logger.Debug("lease state monitor started", "interval", sm.interval.String())

	ticker := time.NewTicker(sm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("lease state monitor stopped")
			return
		case <-ticker.C:
			sm.sample(ctx)
		}
	}
}

func (sm *StateMonitor) sample(ctx context.Context) {
	states := []models.LeaseState{
		models.LeaseStateActive,
		models.LeaseStateExpired,
		models.LeaseStateReleased,
		models.LeaseStateRenewed,
	}

	for _, state := range states {
		leases, err := sm.store.ListLeases(ctx, state)
		if err != nil {
			logger.Warn("lease state sample failed", "state", state, "error", err)
			return
		}
		sm.metrics.SetLeasesByState(string(state), float64(len(leases)))
	}
}
