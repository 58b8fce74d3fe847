package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/felixproject/felix/pkg/mgmt"
	"github.com/felixproject/felix/pkg/oci"
)

type fakeSource struct {
	compartments []string
	listErr      map[string]error
	summaries    map[string][]oci.EventSummary
	events       map[string]*oci.MaintenanceEvent
	getCalls     int
}

func (f *fakeSource) ListCompartments(ctx context.Context) ([]string, error) {
	return f.compartments, nil
}

func (f *fakeSource) ListEvents(ctx context.Context, compartmentID string) ([]oci.EventSummary, error) {
	if err := f.listErr[compartmentID]; err != nil {
		return nil, err
	}
	return f.summaries[compartmentID], nil
}

func (f *fakeSource) GetEvent(ctx context.Context, id string) (*oci.MaintenanceEvent, error) {
	f.getCalls++
	return f.events[id], nil
}

func (f *fakeSource) UpdateEvent(ctx context.Context, id string, upd oci.EventUpdate) (string, error) {
	return "", nil
}

func (f *fakeSource) EventState(ctx context.Context, id string) (oci.LifecycleState, error) {
	ev, ok := f.events[id]
	if !ok {
		return "", errors.New("no such event")
	}
	return ev.LifecycleState, nil
}

type fakeInventory struct {
	nodes []mgmt.Node
	err   error
}

func (f *fakeInventory) ListNodes(ctx context.Context) ([]mgmt.Node, error) {
	return f.nodes, f.err
}

func (f *fakeInventory) UpdateNodeStatus(ctx context.Context, nameOrID, status string, details map[string]string) error {
	return nil
}

func (f *fakeInventory) ReconfigureCompute(ctx context.Context, nodes []string) (bool, error) {
	return true, nil
}

func event(id, instance string, state oci.LifecycleState, tags map[string]string) *oci.MaintenanceEvent {
	return &oci.MaintenanceEvent{
		ID:             id,
		InstanceID:     instance,
		LifecycleState: state,
		DisplayName:    oci.TypeDowntimeHostMaintenance,
		FreeformTags:   tags,
		Faults:         []oci.Fault{{ID: "HPCGPU-0001-01", Component: "GPU"}},
	}
}

func testSource() *fakeSource {
	return &fakeSource{
		compartments: []string{"comp-a", "comp-b"},
		summaries: map[string][]oci.EventSummary{
			"comp-a": {
				{ID: "ev-1", LifecycleState: oci.StateScheduled},
				{ID: "ev-2", LifecycleState: oci.StateInProgress},
			},
			"comp-b": {
				{ID: "ev-3", LifecycleState: oci.StateScheduled},
				{ID: "ev-4", LifecycleState: oci.StateScheduled},
				{ID: "ev-5", LifecycleState: oci.StateScheduled},
			},
		},
		events: map[string]*oci.MaintenanceEvent{
			"ev-1": event("ev-1", "inst-1", oci.StateScheduled, nil),
			"ev-2": event("ev-2", "inst-2", oci.StateInProgress, nil),
			"ev-3": event("ev-3", "inst-3", oci.StateScheduled, map[string]string{"maintenance_processed": "true"}),
			"ev-4": event("ev-4", "inst-unknown", oci.StateScheduled, nil),
			// ev-5 detail missing: GetEvent returns nil, nil.
		},
	}
}

func testInventory() *fakeInventory {
	return &fakeInventory{nodes: []mgmt.Node{
		{InstanceID: "inst-1", Hostname: "gpu-01"},
		{InstanceID: "inst-2", Hostname: "gpu-02"},
		{InstanceID: "inst-3", Hostname: "gpu-03"},
	}}
}

func TestDiscoverScheduledUntaggedBoundEvents(t *testing.T) {
	d := New(testSource(), testInventory(), nil, "maintenance_processed")

	jobs, err := d.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	// ev-2 wrong state, ev-3 tagged, ev-4 unresolved host, ev-5 no detail.
	if len(jobs) != 1 {
		t.Fatalf("len(jobs) = %d, want 1", len(jobs))
	}
	job := jobs[0]
	if job.Hostname != "gpu-01" || job.Event.ID != "ev-1" {
		t.Errorf("job = %s/%s", job.Hostname, job.Event.ID)
	}
	if job.FaultStr != "HPCGPU-0001-01_GPU" {
		t.Errorf("FaultStr = %q", job.FaultStr)
	}
	if len(job.FaultIDs) != 1 || job.FaultIDs[0] != "HPCGPU-0001-01" {
		t.Errorf("FaultIDs = %v", job.FaultIDs)
	}
}

func TestDiscoverIsIdempotent(t *testing.T) {
	src := testSource()
	d := New(src, testInventory(), nil, "maintenance_processed")

	first, err := d.Discover(context.Background())
	if err != nil {
		t.Fatalf("first Discover() error = %v", err)
	}
	second, err := d.Discover(context.Background())
	if err != nil {
		t.Fatalf("second Discover() error = %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("scan sizes differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Event.ID != second[i].Event.ID || first[i].Hostname != second[i].Hostname {
			t.Errorf("job %d differs: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestDiscoverWithAllStatesIncludesProcessed(t *testing.T) {
	d := New(testSource(), testInventory(), nil, "maintenance_processed")

	jobs, err := d.DiscoverWith(context.Background(), Filter{IncludeProcessed: true})
	if err != nil {
		t.Fatalf("DiscoverWith() error = %v", err)
	}
	// ev-1, ev-2 (state filter off), ev-3 (tag filter off); ev-4 and
	// ev-5 still drop for unresolved host and missing detail.
	if len(jobs) != 3 {
		t.Fatalf("len(jobs) = %d, want 3", len(jobs))
	}
	ids := []string{jobs[0].Event.ID, jobs[1].Event.ID, jobs[2].Event.ID}
	if ids[0] != "ev-1" || ids[1] != "ev-2" || ids[2] != "ev-3" {
		t.Errorf("ids = %v, want listing order", ids)
	}
}

func TestDiscoverSkipsFailedCompartment(t *testing.T) {
	src := testSource()
	src.listErr = map[string]error{"comp-a": errors.New("throttled")}
	d := New(src, testInventory(), nil, "maintenance_processed")

	jobs, err := d.DiscoverWith(context.Background(), Filter{IncludeProcessed: true})
	if err != nil {
		t.Fatalf("DiscoverWith() error = %v", err)
	}
	for _, j := range jobs {
		if j.Event.ID == "ev-1" || j.Event.ID == "ev-2" {
			t.Errorf("job from failed compartment present: %s", j.Event.ID)
		}
	}
}

func TestDiscoverStateFilterSkipsDetailFetch(t *testing.T) {
	src := testSource()
	d := New(src, testInventory(), nil, "maintenance_processed")

	if _, err := d.Discover(context.Background()); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	// ev-2 is filtered on the summary state and must not be fetched.
	if src.getCalls != 4 {
		t.Errorf("getCalls = %d, want 4", src.getCalls)
	}
}

func TestDiscoverInventoryFailureAborts(t *testing.T) {
	d := New(testSource(), &fakeInventory{err: errors.New("manage.py absent")}, nil, "maintenance_processed")

	if _, err := d.Discover(context.Background()); err == nil {
		t.Fatal("Discover() error = nil, want inventory failure")
	}
}

func TestDiscoverDeduplicatesAcrossCompartments(t *testing.T) {
	src := testSource()
	src.summaries["comp-b"] = append([]oci.EventSummary{
		{ID: "ev-1", LifecycleState: oci.StateScheduled},
	}, src.summaries["comp-b"]...)
	d := New(src, testInventory(), nil, "maintenance_processed")

	jobs, err := d.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	count := 0
	for _, j := range jobs {
		if j.Event.ID == "ev-1" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("ev-1 appears %d times, want 1", count)
	}
}
