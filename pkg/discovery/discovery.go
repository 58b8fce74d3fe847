// Package discovery scans the tenancy for instance maintenance events
// and binds them to cluster hosts. Every scan rebuilds its view from
// scratch: the provider and the inventory are the sources of truth and
// nothing is cached between runs.
package discovery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixproject/felix/pkg/mgmt"
	"github.com/felixproject/felix/pkg/oci"
	"github.com/felixproject/felix/pkg/workflow"
)

// Filter narrows a scan.
type Filter struct {
	// States limits the scan to the given lifecycle states. Empty means
	// every state.
	States []oci.LifecycleState

	// IncludeProcessed keeps events already carrying the processed tag.
	// Reporting wants them; workflow dispatch does not.
	IncludeProcessed bool
}

// Discoverer builds maintenance jobs from the provider's event listing
// and the management inventory.
type Discoverer struct {
	events       oci.EventSource
	inventory    mgmt.Inventory
	logger       *slog.Logger
	processedTag string
}

// New wires a Discoverer. processedTag is the freeform tag marking
// events this system already handled.
func New(events oci.EventSource, inventory mgmt.Inventory, logger *slog.Logger, processedTag string) *Discoverer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discoverer{
		events:       events,
		inventory:    inventory,
		logger:       logger,
		processedTag: processedTag,
	}
}

// Discover returns the jobs eligible for a workflow run: events still
// SCHEDULED and not yet marked processed, bound to known hosts.
func (d *Discoverer) Discover(ctx context.Context) ([]*workflow.Job, error) {
	return d.DiscoverWith(ctx, Filter{States: []oci.LifecycleState{oci.StateScheduled}})
}

// DiscoverWith scans all compartments and returns the jobs matching
// the filter, in listing order. A compartment or event that cannot be
// read is logged and skipped; only a failed compartment enumeration or
// inventory listing aborts the scan.
func (d *Discoverer) DiscoverWith(ctx context.Context, f Filter) ([]*workflow.Job, error) {
	hosts, err := d.hostMap(ctx)
	if err != nil {
		return nil, err
	}

	compartments, err := d.events.ListCompartments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list compartments: %w", err)
	}

	wanted := make(map[oci.LifecycleState]struct{}, len(f.States))
	for _, s := range f.States {
		wanted[s] = struct{}{}
	}

	var jobs []*workflow.Job
	seen := make(map[string]struct{})
	for _, compartment := range compartments {
		summaries, err := d.events.ListEvents(ctx, compartment)
		if err != nil {
			d.logger.Warn("compartment scan failed, skipping", "compartment", compartment, "error", err)
			continue
		}
		for _, sum := range summaries {
			if _, dup := seen[sum.ID]; dup {
				continue
			}
			seen[sum.ID] = struct{}{}
			if len(wanted) > 0 {
				if _, ok := wanted[sum.LifecycleState]; !ok {
					continue
				}
			}
			job := d.build(ctx, sum.ID, hosts, f.IncludeProcessed)
			if job != nil {
				jobs = append(jobs, job)
			}
		}
	}

	d.logger.Info("discovery complete", "compartments", len(compartments), "jobs", len(jobs))
	return jobs, nil
}

// build fetches event detail and binds it to a host. Returns nil when
// the event is not actionable; the reasons are logged, never fatal.
func (d *Discoverer) build(ctx context.Context, eventID string, hosts map[string]string, includeProcessed bool) *workflow.Job {
	ev, err := d.events.GetEvent(ctx, eventID)
	if err != nil || ev == nil {
		d.logger.Warn("event detail unavailable, skipping", "event", eventID, "error", err)
		return nil
	}
	if !includeProcessed && ev.Tagged(d.processedTag) {
		d.logger.Debug("event already processed", "event", eventID)
		return nil
	}
	host, ok := hosts[ev.InstanceID]
	if !ok {
		d.logger.Warn("event instance not in inventory, skipping",
			"event", eventID, "instance", ev.InstanceID)
		return nil
	}
	return &workflow.Job{
		Hostname: host,
		Event:    ev,
		FaultStr: ev.FaultString(),
		FaultIDs: ev.FaultIDs(),
	}
}

func (d *Discoverer) hostMap(ctx context.Context) (map[string]string, error) {
	nodes, err := d.inventory.ListNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list inventory nodes: %w", err)
	}
	hosts := make(map[string]string, len(nodes))
	for _, n := range nodes {
		if n.InstanceID != "" && n.Hostname != "" {
			hosts[n.InstanceID] = n.Hostname
		}
	}
	return hosts, nil
}
