// Package oci models OCI instance maintenance events and wraps the
// provider API behind the EventSource interface. The lifecycle state of
// an event is the only durable cross-run marker of progress: it is owned
// by the provider and treated as authoritative here.
package oci

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// LifecycleState is the provider-owned status of a maintenance event.
type LifecycleState string

const (
	StateScheduled  LifecycleState = "SCHEDULED"
	StateStarted    LifecycleState = "STARTED"
	StateProcessing LifecycleState = "PROCESSING"
	StateInProgress LifecycleState = "IN_PROGRESS"
	StateSucceeded  LifecycleState = "SUCCEEDED"
	StateFailed     LifecycleState = "FAILED"
	StateCanceled   LifecycleState = "CANCELED"
	StateCompleted  LifecycleState = "COMPLETED"
)

// Terminal reports whether the state is final.
func (s LifecycleState) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCanceled, StateCompleted:
		return true
	}
	return false
}

// InProgress reports whether maintenance is actively underway.
func (s LifecycleState) InProgress() bool {
	switch s {
	case StateStarted, StateProcessing, StateInProgress:
		return true
	}
	return false
}

// Event types and instance actions relevant to drain eligibility.
const (
	TypeDowntimeHostMaintenance = "DOWNTIME_HOST_MAINTENANCE"
	ActionTerminate             = "TERMINATE"
)

// Fault describes a single hardware fault attached to an event.
type Fault struct {
	ID          string
	Component   string
	Description string
}

// MaintenanceEvent is the decoded detail of a provider maintenance event.
// Optional provider fields are decoded once at the adapter boundary into
// defined defaults; nothing downstream probes for missing attributes.
type MaintenanceEvent struct {
	ID             string
	InstanceID     string
	LifecycleState LifecycleState
	DisplayName    string
	InstanceAction string
	TimeCreated    time.Time
	TimeStarted    time.Time
	TimeFinished   time.Time
	FreeformTags   map[string]string
	Faults         []Fault
}

// FaultIDs returns the raw fault identifiers in event order.
func (e *MaintenanceEvent) FaultIDs() []string {
	ids := make([]string, 0, len(e.Faults))
	for _, f := range e.Faults {
		if f.ID != "" {
			ids = append(ids, f.ID)
		}
	}
	return ids
}

// FaultString returns the concatenated fault descriptor used as the
// drain reason fallback when no approved code exists.
func (e *MaintenanceEvent) FaultString() string {
	parts := make([]string, 0, len(e.Faults))
	for _, f := range e.Faults {
		parts = append(parts, f.ID+"_"+f.Component)
	}
	return strings.Join(parts, "_")
}

// Tagged reports whether the given freeform tag is set on the event.
func (e *MaintenanceEvent) Tagged(tag string) bool {
	return e.FreeformTags[tag] != ""
}

// faultJSON accepts both the snake_case and camelCase key variants the
// provider has been observed to emit.
type faultJSON struct {
	FaultID        string `json:"faultId"`
	FaultIDSnake   string `json:"fault_id"`
	Component      string `json:"faultComponent"`
	ComponentSnake string `json:"component"`
	Customer       string `json:"customerDescription"`
	Description    string `json:"description"`
}

func (f faultJSON) toFault() Fault {
	out := Fault{ID: f.FaultID, Component: f.Component, Description: f.Customer}
	if out.ID == "" {
		out.ID = f.FaultIDSnake
	}
	if out.Component == "" {
		out.Component = f.ComponentSnake
	}
	if out.Description == "" {
		out.Description = f.Description
	}
	return out
}

// DecodeFaultDetails parses the faultDetails member of an event's
// additional details. The provider returns it either as a JSON array or
// as a JSON-encoded string containing an array; both are accepted.
func DecodeFaultDetails(raw json.RawMessage) ([]Fault, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	data := []byte(raw)
	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, fmt.Errorf("unquote fault details: %w", err)
		}
		data = []byte(inner)
	}

	var items []faultJSON
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse fault details: %w", err)
	}

	faults := make([]Fault, 0, len(items))
	for _, it := range items {
		faults = append(faults, it.toFault())
	}
	return faults, nil
}
