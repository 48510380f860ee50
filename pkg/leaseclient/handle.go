// Package leaseclient provides the worker-side handle on a single lease:
// acquire, renew, release, and a background auto-renewal loop.
package leaseclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/tasklease/internal/logger"
	"github.com/marmos91/tasklease/pkg/apiclient"
	"github.com/marmos91/tasklease/pkg/models"
)

// ErrLeaseLost means the lease manager refused a renewal: the lease lapsed
// or the resource is now held by someone else. Loss is terminal for the
// handle; continuing requires a fresh handle and a fresh acquire.
var ErrLeaseLost = errors.New("lease lost")

// ErrNotAcquired means the handle holds no lease yet.
var ErrNotAcquired = errors.New("lease not acquired")

// LeaseAPI is the slice of the lease manager client the handle uses.
// *apiclient.Client satisfies it.
type LeaseAPI interface {
	AcquireLease(ctx context.Context, resource, holder string) (*models.Lease, error)
	RenewLease(ctx context.Context, resource, holder string) (*models.Lease, error)
	ReleaseLease(ctx context.Context, id uint) (*models.Lease, error)
}

// Handle is a stateful handle on one lease for one resource and holder.
//
// All public methods serialize on one mutex, and the auto-renew loop renews
// through the same mutex, so a late renewal can never overlap a release
// issued by the owner.
//
// The renewal interval must stay strictly under half the lease TTL so one
// missed renewal still leaves time for the next tick to save the lease.
type Handle struct {
	client   LeaseAPI
	resource string
	holder   string

	mu       sync.Mutex
	id       uint
	acquired bool
	released bool
	lost     bool

	renewStop chan struct{}
	renewDone chan struct{}
	stopOnce  sync.Once
}

// NewHandle creates a handle for one resource and holder. Nothing is
// acquired until Acquire is called.
func NewHandle(client LeaseAPI, resource, holder string) *Handle {
	return &Handle{
		client:   client,
		resource: resource,
		holder:   holder,
	}
}

// Resource returns the resource name this handle leases.
func (h *Handle) Resource() string {
	return h.resource
}

// Holder returns the holder identity this handle leases as.
func (h *Handle) Holder() string {
	return h.holder
}

// ID returns the lease id recorded by Acquire, or zero before it.
func (h *Handle) ID() uint {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.id
}

// Lost reports whether the lease was lost. Loss is terminal.
func (h *Handle) Lost() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lost
}

// Acquire requests the lease and records its id. A 409 from the lease
// manager means the resource is held; the error is returned as-is so the
// caller can back off and retry.
func (h *Handle) Acquire(ctx context.Context) (*models.Lease, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.acquired && !h.lost && !h.released {
		return nil, fmt.Errorf("lease already acquired (id %d)", h.id)
	}

	lease, err := h.client.AcquireLease(ctx, h.resource, h.holder)
	if err != nil {
		return nil, err
	}

	h.id = lease.ID
	h.acquired = true
	h.released = false
	h.lost = false
	return lease, nil
}

// Renew extends the lease. A refusal (409 or 404) marks the handle lost and
// returns ErrLeaseLost; transient failures are returned verbatim and do not
// end the lease.
func (h *Handle) Renew(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.renewLocked(ctx)
}

func (h *Handle) renewLocked(ctx context.Context) error {
	if h.lost {
		return ErrLeaseLost
	}
	if !h.acquired || h.released {
		return ErrNotAcquired
	}

	_, err := h.client.RenewLease(ctx, h.resource, h.holder)
	if err != nil {
		if apiclient.IsConflict(err) || apiclient.IsNotFound(err) {
			h.lost = true
			return fmt.Errorf("%w: %s", ErrLeaseLost, err.Error())
		}
		return err
	}
	return nil
}

// Release releases the lease by its recorded id. Releasing an unacquired or
// already released handle is a no-op; a 404 counts as released too.
// Release works after loss as well, closing out the lapsed row.
func (h *Handle) Release(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.acquired || h.released {
		return nil
	}

	if _, err := h.client.ReleaseLease(ctx, h.id); err != nil {
		if !apiclient.IsNotFound(err) {
			return err
		}
	}

	h.released = true
	return nil
}

// StartAutoRenew spawns the renewal loop, renewing every interval until
// StopAutoRenew is called or the lease is lost. The loop can be started
// once per handle.
func (h *Handle) StartAutoRenew(interval time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if interval <= 0 {
		return fmt.Errorf("invalid renewal interval %v", interval)
	}
	if !h.acquired || h.released {
		return ErrNotAcquired
	}
	if h.lost {
		return ErrLeaseLost
	}
	if h.renewStop != nil {
		return fmt.Errorf("auto-renew already started")
	}

	h.renewStop = make(chan struct{})
	h.renewDone = make(chan struct{})
	go h.renewLoop(interval, h.renewStop, h.renewDone)

	logger.Debug("lease auto-renew started",
		"resource", h.resource,
		"holder", h.holder,
		"interval", interval.String(),
	)
	return nil
}

// StopAutoRenew signals the renewal loop and waits for it to exit. It does
// not release the lease. Safe to call multiple times, concurrently, and on
// handles that never started renewing.
func (h *Handle) StopAutoRenew() {
	h.mu.Lock()
	stop, done := h.renewStop, h.renewDone
	h.mu.Unlock()

	if stop == nil {
		return
	}
	h.stopOnce.Do(func() { close(stop) })
	<-done
}

func (h *Handle) renewLoop(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// Bound each renewal by the tick interval: a renewal still in
			// flight when the next tick is due has already failed its
			// purpose.
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			err := h.Renew(ctx)
			cancel()

			if errors.Is(err, ErrLeaseLost) {
				logger.Warn("lease lost, auto-renew stopping",
					"resource", h.resource,
					"holder", h.holder,
				)
				return
			}
			if err != nil {
				logger.Warn("lease renewal failed, retrying next tick",
					"resource", h.resource,
					"holder", h.holder,
					"error", err,
				)
			}
		}
	}
}
