// Package store provides the persistence layer for leases and tasks.
//
// Two backends are supported:
//   - SQLite (single-node, default)
//   - PostgreSQL (HA-capable)
//
// Every mutating operation runs inside a transaction that first reads the
// database server's clock and then evaluates all state predicates in Go
// against that instant. The application clock is never consulted, so
// replicas with skewed local clocks still agree on lease expiry and
// heartbeat deadlines.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/marmos91/tasklease/pkg/models"
)

// AcquireFunc acquires the lease guarding a task claim. It runs inside the
// claiming transaction; any error rolls the tentative claim back and is
// returned to the caller unchanged.
type AcquireFunc func(ctx context.Context, taskID uint, processor string) error

// RenewFunc renews the lease guarding a running task. It runs inside the
// heartbeat transaction; any error aborts the heartbeat.
type RenewFunc func(ctx context.Context, taskID uint, processor string) error

// Store provides the lease and task persistence interface.
//
// Thread Safety: Implementations must be safe for concurrent use from
// multiple goroutines.
type Store interface {
	// ============================================
	// LEASE OPERATIONS
	// ============================================

	// AcquireLease grants a new lease on resource to holder, valid for ttl
	// from the database clock. A new row is always inserted; prior expired
	// or released rows for the resource are kept as history.
	// Returns models.ErrLeaseHeld if any active lease exists on the resource,
	// regardless of its holder.
	AcquireLease(ctx context.Context, resource, holder string, ttl time.Duration) (*models.Lease, error)

	// RenewLease extends the active lease on resource held by holder for
	// another ttl from the database clock.
	// Returns models.ErrLeaseHeld if the active lease belongs to another
	// holder, models.ErrLeaseExpired if the holder's lease lapsed without
	// being released, and models.ErrLeaseNotFound if the resource has no
	// lease rows for this holder at all.
	RenewLease(ctx context.Context, resource, holder string, ttl time.Duration) (*models.Lease, error)

	// ReleaseLease marks the lease released. Releasing an already released
	// lease is a no-op returning the row unchanged.
	// Returns models.ErrLeaseNotFound if no lease has this id.
	ReleaseLease(ctx context.Context, id uint) (*models.Lease, error)

	// ReleaseHolderLease releases the active lease on resource if it is held
	// by holder. Returns models.ErrLeaseNotFound if holder holds no active
	// lease on the resource; another holder's lease is never touched.
	ReleaseHolderLease(ctx context.Context, resource, holder string) (*models.Lease, error)

	// GetLease returns a lease by id.
	// Returns models.ErrLeaseNotFound if no lease has this id.
	GetLease(ctx context.Context, id uint) (*models.Lease, error)

	// ListLeases returns all leases matching the state filter, ordered by id.
	ListLeases(ctx context.Context, state models.LeaseState) ([]*models.Lease, error)

	// ============================================
	// TASK OPERATIONS
	// ============================================

	// CreateTask enqueues a new task. If scheduledAt is nil the task is due
	// immediately (scheduled at the database clock's current instant).
	CreateTask(ctx context.Context, taskData json.RawMessage, scheduledAt *time.Time) (*models.Task, error)

	// GetTask returns a task by id.
	// Returns models.ErrTaskNotFound if no task has this id.
	GetTask(ctx context.Context, id uint) (*models.Task, error)

	// ListTasks returns all tasks ordered by id.
	ListTasks(ctx context.Context) ([]*models.Task, error)

	// ListStartedTasks returns tasks that are claimed but not yet completed.
	ListStartedTasks(ctx context.Context) ([]*models.Task, error)

	// ListProcessedTasks returns completed tasks.
	ListProcessedTasks(ctx context.Context) ([]*models.Task, error)

	// ClaimNextTask assigns the lowest-id claimable task to processor and
	// stamps its heartbeat deadline ttl from the database clock. The acquire
	// callback runs after the tentative claim and before commit; if it
	// fails, the claim is rolled back and the callback's error returned.
	// Returns (nil, nil) when no task is claimable.
	ClaimNextTask(ctx context.Context, processor string, ttl time.Duration, acquire AcquireFunc) (*models.Task, error)

	// HeartbeatTask extends the heartbeat deadline of a running task by ttl
	// from the database clock. The renew callback runs after the liveness
	// check and before the deadline update; if it fails, the heartbeat is
	// rolled back and the callback's error returned.
	// Returns models.ErrTaskNotFound, models.ErrTaskNotOwned, or
	// models.ErrHeartbeatExpired when the processor no longer holds the task.
	HeartbeatTask(ctx context.Context, id uint, processor string, ttl time.Duration, renew RenewFunc) (*models.Task, error)

	// CompleteTask marks the task processed and records its output. The
	// processor must still hold the task under the same liveness check as
	// HeartbeatTask.
	// Returns models.ErrTaskAlreadyProcessed on a second completion.
	CompleteTask(ctx context.Context, id uint, processor string, output json.RawMessage) (*models.Task, error)

	// AbandonTask returns a claimed task to the pool: the processor is
	// cleared and the heartbeat deadline forced into the past so the row
	// is immediately claimable. started_at and last_heartbeat_at are kept
	// for diagnostics.
	// Returns models.ErrTaskNotOwned if the task belongs to someone else.
	AbandonTask(ctx context.Context, id uint, processor string) (*models.Task, error)

	// ============================================
	// HEALTH & LIFECYCLE
	// ============================================

	// Healthcheck verifies database connectivity.
	Healthcheck(ctx context.Context) error

	// Close releases the underlying database connections.
	Close() error
}
