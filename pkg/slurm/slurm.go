// Package slurm issues node-state commands to the cluster scheduler and
// polls node state. The scontrol state token concatenates a base state
// with overlay flags (e.g. "idle+drain"), so callers test membership by
// substring rather than equality.
package slurm

import (
	"context"
	"strings"
	"time"
)

// Scheduler is the narrow surface of the cluster scheduler consumed by
// the phase machine.
type Scheduler interface {
	// Drain removes a node from scheduling eligibility, letting running
	// work finish. Reason is recorded on the node.
	Drain(ctx context.Context, host, reason string) error

	// Resume returns a node to service.
	Resume(ctx context.Context, host string) error

	// SetReason updates the node's reason field without changing state.
	SetReason(ctx context.Context, host, reason string) error

	// MarkNotReady drains the node and applies the NTR feature for
	// technician review after a failed health check.
	MarkNotReady(ctx context.Context, host string) error

	// State returns the node's lowercased state token, flags included.
	State(ctx context.Context, host string) (string, error)

	// NodeStates returns the state token for every node in the cluster.
	NodeStates(ctx context.Context) (map[string]string, error)

	// WaitUntil polls the node state at the given interval until pred
	// holds. Expiry of timeout is an error, never success.
	WaitUntil(ctx context.Context, host string, pred func(string) bool, poll, timeout time.Duration) error
}

// DrainedIdle reports whether a state token shows the node both drained
// and empty of work.
func DrainedIdle(state string) bool {
	return strings.Contains(state, "drain") && strings.Contains(state, "idle")
}
