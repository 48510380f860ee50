package dispatcher

import (
	"context"
	"time"

	"github.com/marmos91/tasklease/internal/logger"
	"github.com/marmos91/tasklease/pkg/metrics"
	"github.com/marmos91/tasklease/pkg/store"
)

// BacklogMonitor periodically samples the number of unfinished tasks into
// the backlog gauge.
type BacklogMonitor struct {
	store    store.Store
	metrics  *metrics.Metrics
	interval time.Duration
}

// NewBacklogMonitor creates a monitor sampling every interval.
func NewBacklogMonitor(st store.Store, m *metrics.Metrics, interval time.Duration) *BacklogMonitor {
	return &BacklogMonitor{
		store:    st,
		metrics:  m,
		interval: interval,
	}
}

// Run samples on every tick until the context is cancelled.
func (bm *BacklogMonitor) Run(ctx context.Context) {
	if bm.metrics == nil {
		return
	}

	logger.Debug("task backlog monitor started", "interval", bm.interval.String())

	ticker := time.NewTicker(bm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("task backlog monitor stopped")
			return
		case <-ticker.C:
			bm.sample(ctx)
		}
	}
}

func (bm *BacklogMonitor) sample(ctx context.Context) {
	tasks, err := bm.store.ListTasks(ctx)
	if err != nil {
		logger.Warn("task backlog sample failed", "error", err)
		return
	}

	backlog := 0
	for _, t := range tasks {
		if t.ProcessedAt == nil {
			backlog++
		}
	}
	bm.metrics.SetTasksBacklog(float64(backlog))
}
