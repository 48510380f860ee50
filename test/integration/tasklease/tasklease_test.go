//go:build integration

package tasklease_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/tasklease/pkg/apiclient"
	"github.com/marmos91/tasklease/pkg/dispatcher"
	"github.com/marmos91/tasklease/pkg/leasemanager"
	"github.com/marmos91/tasklease/pkg/models"
	"github.com/marmos91/tasklease/pkg/store"
	"github.com/marmos91/tasklease/pkg/worker"
)

// testTTL keeps expiry scenarios fast; expiryWait comfortably outlasts it.
const (
	testTTL    = 2 * time.Second
	expiryWait = testTTL + time.Second
)

// testEnv runs both services in-process against the shared Postgres.
type testEnv struct {
	store  *store.GORMStore
	leases *apiclient.Client
	tasks  *apiclient.Client
}

// setupEnv wipes the shared database and brings up a lease manager and a
// dispatcher wired together the way the deployed binaries are: the
// dispatcher reaches the lease manager through its HTTP API.
func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	require.NotNil(t, sharedStoreConfig, "shared postgres not initialized, TestMain did not run?")

	cfg := *sharedStoreConfig
	st, err := store.New(&cfg)
	require.NoError(t, err, "store must open against the shared postgres")
	t.Cleanup(func() { _ = st.Close() })

	// Each test starts from an empty queue and an empty grant history.
	err = st.DB().Exec("TRUNCATE TABLE tasks, leases RESTART IDENTITY").Error
	require.NoError(t, err, "failed to reset tables")

	leaseSvc := leasemanager.New(st, leasemanager.Config{TTL: testTTL}, nil)
	leaseSrv := httptest.NewServer(leaseSvc.Router())
	t.Cleanup(leaseSrv.Close)

	leaseClient := apiclient.New(leaseSrv.URL)

	taskSvc := dispatcher.New(st, leaseClient, dispatcher.Config{TTL: testTTL}, nil)
	taskSrv := httptest.NewServer(taskSvc.Router())
	t.Cleanup(taskSrv.Close)

	return &testEnv{
		store:  st,
		leases: leaseClient,
		tasks:  apiclient.New(taskSrv.URL),
	}
}

// resourceLeases returns the full grant history of one resource, oldest first.
func resourceLeases(t *testing.T, env *testEnv, resource string) []models.Lease {
	t.Helper()
	all, err := env.leases.ListLeases(context.Background(), models.LeaseStateAll)
	require.NoError(t, err)
	var out []models.Lease
	for _, l := range all {
		if l.Resource == resource {
			out = append(out, l)
		}
	}
	return out
}

func taskResource(id uint) string {
	return fmt.Sprintf("task:%d", id)
}

// TestHappyPath walks the full claim, heartbeat, complete cycle and checks
// the guarding lease at every step.
func TestHappyPath(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	created, err := env.tasks.CreateTask(ctx, json.RawMessage(`{"n":42}`))
	require.NoError(t, err)

	task, err := env.tasks.ClaimNext(ctx, "w-A")
	require.NoError(t, err)
	require.NotNil(t, task, "the queued task must be claimable")
	assert.Equal(t, created.ID, task.ID)
	require.NotNil(t, task.Processor)
	assert.Equal(t, "w-A", *task.Processor)
	require.NotNil(t, task.StartedAt)
	require.NotNil(t, task.MustHeartbeatBefore)

	// The claim is guarded by a fresh lease on task:<id>.
	grants := resourceLeases(t, env, taskResource(task.ID))
	require.Len(t, grants, 1)
	assert.Equal(t, "w-A", grants[0].Holder)
	assert.Nil(t, grants[0].ReleasedAt)

	// A heartbeat pushes the deadline out and renews the lease in step.
	time.Sleep(100 * time.Millisecond)
	hb, err := env.tasks.Heartbeat(ctx, task.ID, "w-A")
	require.NoError(t, err)
	assert.True(t, hb.MustHeartbeatBefore.After(*task.MustHeartbeatBefore),
		"heartbeat must push the deadline out")

	grants = resourceLeases(t, env, taskResource(task.ID))
	require.Len(t, grants, 1, "renewal must extend the same lease row")
	require.NotNil(t, grants[0].RenewedAt)

	done, err := env.tasks.Complete(ctx, task.ID, "w-A", json.RawMessage(`{"squared":1764}`))
	require.NoError(t, err)
	require.NotNil(t, done.ProcessedAt)
	assert.JSONEq(t, `{"squared":1764}`, string(done.TaskOutput))

	// Completion releases the guarding lease.
	grants = resourceLeases(t, env, taskResource(task.ID))
	require.Len(t, grants, 1)
	assert.NotNil(t, grants[0].ReleasedAt)

	processed, err := env.tasks.ListProcessedTasks(ctx)
	require.NoError(t, err)
	require.Len(t, processed, 1)
	assert.Equal(t, task.ID, processed[0].ID)
}

// TestCrashRecovery hands a task whose processor went silent to the next
// claimer once the heartbeat deadline lapses, under a brand new lease row.
func TestCrashRecovery(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	created, err := env.tasks.CreateTask(ctx, json.RawMessage(`{"job":"recover"}`))
	require.NoError(t, err)

	first, err := env.tasks.ClaimNext(ctx, "w-A")
	require.NoError(t, err)
	require.NotNil(t, first)
	require.NotNil(t, first.StartedAt)

	// w-A crashes: no heartbeats. Until the deadline lapses the task is
	// invisible to other claimers.
	blocked, err := env.tasks.ClaimNext(ctx, "w-B")
	require.NoError(t, err)
	assert.Nil(t, blocked, "a live claim must shield the task")

	time.Sleep(expiryWait)

	second, err := env.tasks.ClaimNext(ctx, "w-B")
	require.NoError(t, err)
	require.NotNil(t, second, "lapsed task must be reclaimable")
	assert.Equal(t, created.ID, second.ID)
	require.NotNil(t, second.Processor)
	assert.Equal(t, "w-B", *second.Processor)
	require.NotNil(t, second.StartedAt)
	assert.True(t, second.StartedAt.After(*first.StartedAt), "reclaim must restamp started_at")

	// The original grant stays as expired history next to the new one.
	grants := resourceLeases(t, env, taskResource(created.ID))
	require.Len(t, grants, 2)
	assert.Equal(t, "w-A", grants[0].Holder)
	assert.Nil(t, grants[0].ReleasedAt)
	assert.Equal(t, "w-B", grants[1].Holder)
	assert.Greater(t, grants[1].ID, grants[0].ID)
}

// TestClaimContention races two processors for a single task; exactly one
// wins and holds the guarding lease.
func TestClaimContention(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	created, err := env.tasks.CreateTask(ctx, json.RawMessage(`{"job":"contended"}`))
	require.NoError(t, err)

	type outcome struct {
		processor string
		task      *models.Task
		err       error
	}
	results := make(chan outcome, 2)
	for _, processor := range []string{"w-A", "w-B"} {
		go func(p string) {
			task, err := env.tasks.ClaimNext(ctx, p)
			results <- outcome{p, task, err}
		}(processor)
	}

	var winner string
	for i := 0; i < 2; i++ {
		r := <-results
		switch {
		case r.err == nil && r.task != nil:
			require.Empty(t, winner, "two processors claimed the same task")
			winner = r.processor
			assert.Equal(t, created.ID, r.task.ID)
		case r.err == nil:
			// Loser saw the committed claim and got nothing.
		case apiclient.IsConflict(r.err):
			// Loser lost the lease race inside the claim.
		default:
			t.Fatalf("unexpected claim error: %v", r.err)
		}
	}
	require.NotEmpty(t, winner, "one processor must win the claim")

	current, err := env.tasks.GetTask(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, current.Processor)
	assert.Equal(t, winner, *current.Processor)

	// Only the winner holds a lease on the task.
	active, err := env.leases.ListLeases(ctx, models.LeaseStateActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, taskResource(created.ID), active[0].Resource)
	assert.Equal(t, winner, active[0].Holder)
}

// TestLostLeaseHeartbeat pauses a processor past its deadline; its next
// heartbeat answers 409 and the task flows to another processor.
func TestLostLeaseHeartbeat(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	created, err := env.tasks.CreateTask(ctx, json.RawMessage(`{"job":"gc-pause"}`))
	require.NoError(t, err)

	task, err := env.tasks.ClaimNext(ctx, "w-A")
	require.NoError(t, err)
	require.NotNil(t, task)

	// Simulated GC pause outlasting the lease.
	time.Sleep(expiryWait)

	_, err = env.tasks.Heartbeat(ctx, task.ID, "w-A")
	require.Error(t, err, "late heartbeat must be refused")
	assert.True(t, apiclient.IsConflict(err), "late heartbeat must answer 409, got %v", err)

	// The task is free for the next processor.
	reclaimed, err := env.tasks.ClaimNext(ctx, "w-B")
	require.NoError(t, err)
	require.NotNil(t, reclaimed)
	assert.Equal(t, created.ID, reclaimed.ID)

	// And a completion attempt by w-A after the handover is refused too.
	_, err = env.tasks.Complete(ctx, task.ID, "w-A", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.True(t, apiclient.IsConflict(err))
}

// TestCompleteAfterExpiryRejected discards output from a processor that
// outlived its deadline.
func TestCompleteAfterExpiryRejected(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	created, err := env.tasks.CreateTask(ctx, json.RawMessage(`{"job":"slow"}`))
	require.NoError(t, err)

	task, err := env.tasks.ClaimNext(ctx, "w-A")
	require.NoError(t, err)
	require.NotNil(t, task)

	time.Sleep(expiryWait)

	_, err = env.tasks.Complete(ctx, task.ID, "w-A", json.RawMessage(`{"late":true}`))
	require.Error(t, err, "completion after expiry must be refused")
	assert.True(t, apiclient.IsConflict(err), "expected 409, got %v", err)

	current, err := env.tasks.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, current.ProcessedAt, "rejected completion must not mark the task processed")
	assert.Empty(t, current.TaskOutput)
}

// TestIdempotentRelease releases a lease twice; both calls succeed and the
// first release time stands.
func TestIdempotentRelease(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	lease, err := env.leases.AcquireLease(ctx, "maintenance", "ops-1")
	require.NoError(t, err)

	first, err := env.leases.ReleaseLease(ctx, lease.ID)
	require.NoError(t, err)
	require.NotNil(t, first.ReleasedAt)

	second, err := env.leases.ReleaseLease(ctx, lease.ID)
	require.NoError(t, err, "second release must succeed")
	require.NotNil(t, second.ReleasedAt)
	assert.True(t, second.ReleasedAt.Equal(*first.ReleasedAt),
		"second release must keep the original release time")

	// The resource is immediately free for the next holder.
	next, err := env.leases.AcquireLease(ctx, "maintenance", "ops-2")
	require.NoError(t, err)
	assert.Greater(t, next.ID, lease.ID)
}

// TestLeaseMutualExclusion races ten acquirers on one resource: exactly one
// wins, the rest get 409, and only one active lease exists afterwards.
func TestLeaseMutualExclusion(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	const holders = 10
	var wg sync.WaitGroup
	errs := make([]error, holders)
	for i := 0; i < holders; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = env.leases.AcquireLease(ctx, "contended", fmt.Sprintf("holder-%d", n))
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case apiclient.IsConflict(err):
			conflicts++
		default:
			t.Fatalf("unexpected acquire error: %v", err)
		}
	}
	assert.Equal(t, 1, wins, "exactly one acquirer may win")
	assert.Equal(t, holders-1, conflicts)

	active, err := env.leases.ListLeases(ctx, models.LeaseStateActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "contended", active[0].Resource)
}

// TestClaimMutualExclusion races ten claimers on a single task: the lease
// guard admits exactly one.
func TestClaimMutualExclusion(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	created, err := env.tasks.CreateTask(ctx, json.RawMessage(`{"job":"single"}`))
	require.NoError(t, err)

	const claimers = 10
	var wg sync.WaitGroup
	tasks := make([]*models.Task, claimers)
	errs := make([]error, claimers)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tasks[n], errs[n] = env.tasks.ClaimNext(ctx, fmt.Sprintf("w-%d", n))
		}(i)
	}
	wg.Wait()

	var winners []string
	for i := 0; i < claimers; i++ {
		switch {
		case errs[i] == nil && tasks[i] != nil:
			winners = append(winners, fmt.Sprintf("w-%d", i))
			assert.Equal(t, created.ID, tasks[i].ID)
		case errs[i] == nil:
			// Saw the winner's commit, got nothing.
		case apiclient.IsConflict(errs[i]):
			// Lost the lease race.
		default:
			t.Fatalf("claimer %d failed: %v", i, errs[i])
		}
	}
	require.Len(t, winners, 1, "exactly one claimer may win, got %v", winners)

	current, err := env.tasks.GetTask(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, current.Processor)
	assert.Equal(t, winners[0], *current.Processor)
}

// TestWorkerDrainsQueue runs a real worker loop against the stack: claim
// over HTTP, handler, heartbeats, completion, lease release.
func TestWorkerDrainsQueue(t *testing.T) {
	env := setupEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := func(ctx context.Context, task *models.Task) (json.RawMessage, error) {
		var in struct {
			N int `json:"n"`
		}
		if err := json.Unmarshal(task.TaskData, &in); err != nil {
			return nil, err
		}
		return json.RawMessage(fmt.Sprintf(`{"squared":%d}`, in.N*in.N)), nil
	}

	w := worker.New(env.tasks, handler, worker.Config{
		Processor:         "w-loop",
		PollInterval:      50 * time.Millisecond,
		HeartbeatInterval: testTTL / 4,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	inputs := []int{2, 3, 4}
	ids := make([]uint, 0, len(inputs))
	for _, n := range inputs {
		task, err := env.tasks.CreateTask(ctx, json.RawMessage(fmt.Sprintf(`{"n":%d}`, n)))
		require.NoError(t, err)
		ids = append(ids, task.ID)
	}

	require.Eventually(t, func() bool {
		processed, err := env.tasks.ListProcessedTasks(context.Background())
		return err == nil && len(processed) == len(ids)
	}, 15*time.Second, 100*time.Millisecond, "worker should process every queued task")

	for i, id := range ids {
		task, err := env.tasks.GetTask(context.Background(), id)
		require.NoError(t, err)
		require.NotNil(t, task.Processor)
		assert.Equal(t, "w-loop", *task.Processor)
		assert.JSONEq(t, fmt.Sprintf(`{"squared":%d}`, inputs[i]*inputs[i]), string(task.TaskOutput))
	}

	// Every guarding lease was released on completion.
	active, err := env.leases.ListLeases(context.Background(), models.LeaseStateActive)
	require.NoError(t, err)
	assert.Empty(t, active, "no lease should outlive its completed task")

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}
