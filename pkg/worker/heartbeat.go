package worker

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/tasklease/internal/logger"
	"github.com/marmos91/tasklease/pkg/apiclient"
)

// heartbeater keeps one claimed task alive while its handler runs. A
// refused heartbeat means another processor may own the task now; the
// heartbeater records the loss, fires onLost to cancel the handler, and
// stops. Transient failures are retried on the next tick.
type heartbeater struct {
	tasks     TaskAPI
	taskID    uint
	processor string
	interval  time.Duration
	onLost    func()

	mu       sync.Mutex
	lostFlag bool

	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newHeartbeater(tasks TaskAPI, taskID uint, processor string, interval time.Duration, onLost func()) *heartbeater {
	return &heartbeater{
		tasks:     tasks,
		taskID:    taskID,
		processor: processor,
		interval:  interval,
		onLost:    onLost,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (h *heartbeater) start() {
	go h.run()
}

// stop halts the ticker and waits for the loop to exit.
func (h *heartbeater) stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
	})
	<-h.done
}

// lost reports whether task ownership was lost.
func (h *heartbeater) lost() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lostFlag
}

// markLost records the loss and cancels the handler context.
func (h *heartbeater) markLost() {
	h.mu.Lock()
	h.lostFlag = true
	h.mu.Unlock()
	h.onLost()
}

func (h *heartbeater) run() {
	defer close(h.done)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), h.interval)
			_, err := h.tasks.Heartbeat(ctx, h.taskID, h.processor)
			cancel()

			if err == nil {
				continue
			}
			if apiclient.IsConflict(err) || apiclient.IsNotFound(err) {
				logger.Warn("task ownership lost", "task_id", h.taskID, "processor", h.processor, "error", err)
				h.markLost()
				return
			}
			logger.Warn("task heartbeat failed, retrying next tick", "task_id", h.taskID, "processor", h.processor, "error", err)
		}
	}
}
