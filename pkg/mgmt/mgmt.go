// Package mgmt wraps the external node-inventory management CLI. The
// inventory is comparatively cheap to query and must reflect current
// topology, so callers refresh it on every pass instead of caching.
package mgmt

import "context"

// Node maps a provider instance identifier to its cluster hostname.
type Node struct {
	InstanceID string `json:"ocid"`
	Hostname   string `json:"hostname"`
}

// Inventory is the narrow surface of the management system consumed by
// discovery and the phase machine. All operations are fallible and
// degrade to no-ops; they never crash the workflow.
type Inventory interface {
	// ListNodes returns the current instance-to-hostname inventory.
	// Absent or malformed output yields an empty list with a logged
	// warning.
	ListNodes(ctx context.Context) ([]Node, error)

	// UpdateNodeStatus records a node status transition (e.g. "NTR
	// scheduled", "running") in the management system.
	UpdateNodeStatus(ctx context.Context, nameOrID, status string, details map[string]string) error

	// ReconfigureCompute triggers a compute-side reconfiguration
	// (cloud-init rerun) for the given nodes.
	ReconfigureCompute(ctx context.Context, nodes []string) (bool, error)
}
