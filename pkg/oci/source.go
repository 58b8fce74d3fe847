package oci

import (
	"context"
	"time"
)

// EventSummary is the list-call view of an event; fault descriptors are
// only present on the full detail.
type EventSummary struct {
	ID             string
	LifecycleState LifecycleState
}

// EventUpdate carries the mutable fields of a maintenance event.
type EventUpdate struct {
	// TimeWindowStart moves the maintenance window; nil leaves it unchanged.
	TimeWindowStart *time.Time

	// FreeformTags replaces the event's entire tag set when non-nil;
	// nil leaves tags unchanged. Callers adding a tag must send the
	// merged set.
	FreeformTags map[string]string
}

// EventSource is the narrow surface of the provider's maintenance-event
// API consumed by discovery and the phase machine.
type EventSource interface {
	// ListCompartments enumerates the tenancy root and its child
	// compartments.
	ListCompartments(ctx context.Context) ([]string, error)

	// ListEvents lists maintenance event summaries in a compartment.
	ListEvents(ctx context.Context, compartmentID string) ([]EventSummary, error)

	// GetEvent fetches full event detail. A (nil, nil) return means the
	// event could not be retrieved; callers log and skip it.
	GetEvent(ctx context.Context, id string) (*MaintenanceEvent, error)

	// UpdateEvent applies upd to the event and returns the provider's
	// work-request handle. An empty handle with nil error means the
	// provider rejected the update.
	UpdateEvent(ctx context.Context, id string, upd EventUpdate) (string, error)

	// EventState returns the current lifecycle state of the event.
	EventState(ctx context.Context, id string) (LifecycleState, error)
}
