// Package workflow drives a maintenance job through its phases: drain,
// maintenance trigger, health check, finalize. Progress across runs is
// carried solely by the event's provider-owned lifecycle state; a Job
// lives for a single run and is owned by exactly one worker.
package workflow

import "github.com/felixproject/felix/pkg/oci"

// HealthOutcome is the tri-state result of the health phase.
type HealthOutcome int

const (
	HealthUnknown HealthOutcome = iota
	HealthPass
	HealthFail
)

func (h HealthOutcome) String() string {
	switch h {
	case HealthPass:
		return "pass"
	case HealthFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Job is one discovered maintenance event bound to a cluster host.
type Job struct {
	Hostname string
	Event    *oci.MaintenanceEvent

	// FaultStr is the concatenated fault descriptor, used as drain
	// reason when no approved code exists.
	FaultStr string

	// FaultIDs are the raw fault identifiers, in event order.
	FaultIDs []string

	// ApprovedFault is set by the orchestrator when a fault id passed
	// the whitelist gate. At most one; first match wins. Empty means
	// the job did not pass the gate.
	ApprovedFault string

	// WorkRequest is the provider handle returned by a triggered update.
	WorkRequest string

	// Done marks that the maintenance trigger ran to a terminal state.
	Done bool

	// Health holds the health phase outcome.
	Health HealthOutcome
}

// DrainReason returns the approved fault code when present, falling
// back to the raw fault string. An unapproved job is never silently
// treated as approved.
func (j *Job) DrainReason() string {
	if j.ApprovedFault != "" {
		return j.ApprovedFault
	}
	return j.FaultStr
}
