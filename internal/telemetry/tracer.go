package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for lease and task spans.
// Keys use "lease." and "task." prefixes; database attributes follow
// OpenTelemetry semantic conventions where one exists.
const (
	// ========================================================================
	// Lease attributes
	// ========================================================================
	AttrLeaseID       = "lease.id"
	AttrLeaseResource = "lease.resource"
	AttrLeaseHolder   = "lease.holder"
	AttrLeaseTTL      = "lease.ttl_seconds"
	AttrLeaseState    = "lease.state"

	// ========================================================================
	// Task attributes
	// ========================================================================
	AttrTaskID          = "task.id"
	AttrTaskProcessor   = "task.processor"
	AttrTaskScheduledAt = "task.scheduled_at"

	// ========================================================================
	// Storage attributes
	// ========================================================================
	AttrDBSystem = "db.system"
)

// LeaseID returns an attribute for the lease row id
func LeaseID(id uint) attribute.KeyValue {
	return attribute.Int64(AttrLeaseID, int64(id))
}

// Resource returns an attribute for the leased resource name
func Resource(resource string) attribute.KeyValue {
	return attribute.String(AttrLeaseResource, resource)
}

// Holder returns an attribute for the lease holder identifier
func Holder(holder string) attribute.KeyValue {
	return attribute.String(AttrLeaseHolder, holder)
}

// LeaseTTL returns an attribute for the requested lease duration
func LeaseTTL(ttl time.Duration) attribute.KeyValue {
	return attribute.Float64(AttrLeaseTTL, ttl.Seconds())
}

// LeaseState returns an attribute for a lease state filter or result
func LeaseState(state string) attribute.KeyValue {
	return attribute.String(AttrLeaseState, state)
}

// TaskID returns an attribute for the task row id
func TaskID(id uint) attribute.KeyValue {
	return attribute.Int64(AttrTaskID, int64(id))
}

// Processor returns an attribute for the processor working a task
func Processor(processor string) attribute.KeyValue {
	return attribute.String(AttrTaskProcessor, processor)
}

// ScheduledAt returns an attribute for a task's due time
func ScheduledAt(t time.Time) attribute.KeyValue {
	return attribute.String(AttrTaskScheduledAt, t.UTC().Format(time.RFC3339))
}

// DBSystem returns an attribute for the database backend in use
func DBSystem(system string) attribute.KeyValue {
	return attribute.String(AttrDBSystem, system)
}

// StartLeaseSpan starts a span for a lease operation.
// The span is named "lease.<operation>" and tagged with the resource
// when one is known.
func StartLeaseSpan(ctx context.Context, operation, resource string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	var allAttrs []attribute.KeyValue
	if resource != "" {
		allAttrs = append(allAttrs, Resource(resource))
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "lease."+operation, trace.WithAttributes(allAttrs...))
}

// StartTaskSpan starts a span for a task operation.
// The span is named "task.<operation>". Pass id 0 when the task is not
// known yet (claim); set it later with SetAttributes once resolved.
func StartTaskSpan(ctx context.Context, operation string, id uint, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	var allAttrs []attribute.KeyValue
	if id != 0 {
		allAttrs = append(allAttrs, TaskID(id))
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "task."+operation, trace.WithAttributes(allAttrs...))
}
