package lease

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marmos91/tasklease/cmd/tlctl/cmdutil"
	"github.com/marmos91/tasklease/pkg/leaseclient"
	"github.com/spf13/cobra"
)

var (
	holdHolder   string
	holdInterval time.Duration
)

var holdCmd = &cobra.Command{
	Use:   "hold <resource>",
	Short: "Hold a lease until interrupted",
	Long: `Acquire a lease on a resource and keep renewing it until Ctrl+C.

While the command runs, no other holder can acquire the resource. On
interrupt the renewer is stopped and the lease released, freeing the
resource immediately. If the lease is lost mid-hold (for example because
the lease manager was unreachable for longer than the TTL), the command
exits non-zero without releasing anything.

Useful for quiescing a resource during maintenance: hold "task:42" and no
worker can claim task 42 until you let go.

Examples:
  # Hold a resource until Ctrl+C
  tlctl lease hold maintenance:db

  # Hold as a specific holder, renewing every 5s
  tlctl lease hold maintenance:db --holder ops-window --renew-interval 5s`,
	Args: cobra.ExactArgs(1),
	RunE: runHold,
}

func init() {
	holdCmd.Flags().StringVar(&holdHolder, "holder", "", "Holder identity (default: generated)")
	holdCmd.Flags().DurationVar(&holdInterval, "renew-interval", 0, "Renewal interval (default: a third of the granted TTL)")
}

func runHold(cmd *cobra.Command, args []string) error {
	resource := args[0]

	holder := holdHolder
	if holder == "" {
		holder = defaultHolder()
	}

	client := cmdutil.GetLeaseClient()
	handle := leaseclient.NewHandle(client, resource, holder)

	lease, err := handle.Acquire(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to acquire lease: %w", err)
	}

	// The grant itself tells us the server's TTL; renew well inside it so
	// one failed renewal still leaves time for another attempt.
	ttl := lease.ExpiresAt.Sub(lease.CreatedAt)
	interval := holdInterval
	if interval <= 0 {
		interval = ttl / 3
	}
	if 2*interval >= ttl {
		return fmt.Errorf("renew interval %s must be under half the lease TTL %s", interval, ttl)
	}

	if err := handle.StartAutoRenew(interval); err != nil {
		return err
	}

	fmt.Printf("Holding '%s' as '%s' (lease %d, renewing every %s). Press Ctrl+C to release.\n",
		resource, holder, lease.ID, interval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-sigChan:
			handle.StopAutoRenew()

			releaseCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := handle.Release(releaseCtx); err != nil {
				return fmt.Errorf("failed to release lease: %w", err)
			}

			fmt.Printf("\nLease %d on '%s' released.\n", lease.ID, resource)
			return nil

		case <-ticker.C:
			if handle.Lost() {
				handle.StopAutoRenew()
				return fmt.Errorf("lease on '%s' lost; the resource may be held by someone else now", resource)
			}
		}
	}
}
