package models

import "errors"

// Common errors for lease and task operations.
var (
	// Lease errors
	ErrLeaseNotFound = errors.New("lease not found")
	ErrLeaseHeld     = errors.New("resource is held by an active lease")
	ErrLeaseExpired  = errors.New("lease has expired")

	// Task errors
	ErrTaskNotFound         = errors.New("task not found")
	ErrTaskNotOwned         = errors.New("task is not owned by this processor")
	ErrHeartbeatExpired     = errors.New("heartbeat deadline has passed")
	ErrTaskAlreadyProcessed = errors.New("task has already been processed")
)
