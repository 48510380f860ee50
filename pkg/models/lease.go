package models

import (
	"fmt"
	"time"
)

// LeaseState is a derived view of a lease row. States are never stored;
// they are computed from the row's timestamps against the store clock.
type LeaseState string

const (
	// LeaseStateAll matches every lease regardless of state.
	LeaseStateAll LeaseState = "all"
	// LeaseStateActive matches unreleased leases whose expiry is in the future.
	LeaseStateActive LeaseState = "active"
	// LeaseStateExpired matches unreleased leases whose expiry has passed.
	LeaseStateExpired LeaseState = "expired"
	// LeaseStateReleased matches leases that were explicitly released.
	LeaseStateReleased LeaseState = "released"
	// LeaseStateRenewed matches leases that have been renewed at least once.
	LeaseStateRenewed LeaseState = "renewed"
)

// ParseLeaseState validates a state filter coming from an API query.
func ParseLeaseState(s string) (LeaseState, error) {
	switch LeaseState(s) {
	case LeaseStateAll, LeaseStateActive, LeaseStateExpired, LeaseStateReleased, LeaseStateRenewed:
		return LeaseState(s), nil
	default:
		return "", fmt.Errorf("invalid lease state %q", s)
	}
}

// Lease grants a single holder exclusive use of a named resource until it
// expires or is released. Re-acquiring a resource inserts a new row, so the
// table keeps the full grant history of every resource.
//
// All timestamps are assigned from the database clock, never from the
// application, so that competing clients with skewed clocks agree on expiry.
type Lease struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Resource   string     `gorm:"not null;size:255;index" json:"resource"`
	Holder     string     `gorm:"not null;size:255" json:"holder"`
	CreatedAt  time.Time  `gorm:"not null;autoCreateTime:false" json:"created_at"`
	ExpiresAt  time.Time  `gorm:"not null" json:"expires_at"`
	RenewedAt  *time.Time `json:"renewed_at,omitempty"`
	ReleasedAt *time.Time `json:"released_at,omitempty"`
}

// TableName returns the table name for Lease.
func (Lease) TableName() string {
	return "leases"
}

// StateAt derives the primary state of the lease at the given instant.
// Release takes precedence over expiry.
func (l *Lease) StateAt(now time.Time) LeaseState {
	if l.ReleasedAt != nil {
		return LeaseStateReleased
	}
	if l.ExpiresAt.After(now) {
		return LeaseStateActive
	}
	return LeaseStateExpired
}

// ActiveAt reports whether the lease blocks other holders at the given instant.
func (l *Lease) ActiveAt(now time.Time) bool {
	return l.ReleasedAt == nil && l.ExpiresAt.After(now)
}

// MatchesState reports whether the lease satisfies a state filter at the
// given instant. The renewed filter selects the subset of active leases
// that have been renewed at least once.
func (l *Lease) MatchesState(state LeaseState, now time.Time) bool {
	switch state {
	case LeaseStateAll:
		return true
	case LeaseStateRenewed:
		return l.ActiveAt(now) && l.RenewedAt != nil
	default:
		return l.StateAt(now) == state
	}
}
