package apiclient

import (
	"context"
	"fmt"

	"github.com/marmos91/tasklease/pkg/models"
)

// LeaseRequest is the body for acquire, renew and release-by-name calls.
type LeaseRequest struct {
	Resource string `json:"resource"`
	Holder   string `json:"holder"`
}

// AcquireLease grants holder a new lease on resource.
// An active lease on the resource answers 409.
func (c *Client) AcquireLease(ctx context.Context, resource, holder string) (*models.Lease, error) {
	var lease models.Lease
	if err := c.post(ctx, "/leases", LeaseRequest{Resource: resource, Holder: holder}, &lease); err != nil {
		return nil, err
	}
	return &lease, nil
}

// RenewLease extends holder's active lease on resource.
// 409 means the lease was lost (held by another, or lapsed); 404 means the
// service has no lease for this holder on the resource.
func (c *Client) RenewLease(ctx context.Context, resource, holder string) (*models.Lease, error) {
	var lease models.Lease
	if err := c.put(ctx, "/leases/renew", LeaseRequest{Resource: resource, Holder: holder}, &lease); err != nil {
		return nil, err
	}
	return &lease, nil
}

// ReleaseLease releases a lease by id. Releasing a released lease succeeds.
func (c *Client) ReleaseLease(ctx context.Context, id uint) (*models.Lease, error) {
	var lease models.Lease
	if err := c.delete(ctx, fmt.Sprintf("/leases/%d", id), &lease); err != nil {
		return nil, err
	}
	return &lease, nil
}

// ReleaseHolderLease releases holder's active lease on resource by name.
func (c *Client) ReleaseHolderLease(ctx context.Context, resource, holder string) (*models.Lease, error) {
	var lease models.Lease
	if err := c.put(ctx, "/leases/release", LeaseRequest{Resource: resource, Holder: holder}, &lease); err != nil {
		return nil, err
	}
	return &lease, nil
}

// ListLeases returns leases filtered by derived state.
func (c *Client) ListLeases(ctx context.Context, state models.LeaseState) ([]models.Lease, error) {
	var leases []models.Lease
	if err := c.get(ctx, "/leases?state="+string(state), &leases); err != nil {
		return nil, err
	}
	return leases, nil
}
