package oci

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestLifecycleStateTerminal(t *testing.T) {
	tests := []struct {
		state    LifecycleState
		terminal bool
		inflight bool
	}{
		{StateScheduled, false, false},
		{StateStarted, false, true},
		{StateProcessing, false, true},
		{StateInProgress, false, true},
		{StateSucceeded, true, false},
		{StateFailed, true, false},
		{StateCanceled, true, false},
		{StateCompleted, true, false},
	}
	for _, tt := range tests {
		if got := tt.state.Terminal(); got != tt.terminal {
			t.Errorf("%s.Terminal() = %v, want %v", tt.state, got, tt.terminal)
		}
		if got := tt.state.InProgress(); got != tt.inflight {
			t.Errorf("%s.InProgress() = %v, want %v", tt.state, got, tt.inflight)
		}
	}
}

func TestDecodeFaultDetailsArray(t *testing.T) {
	raw := json.RawMessage(`[{"faultId":"HPCGPU-0001-01","faultComponent":"GPU","customerDescription":"GPU fault"}]`)
	faults, err := DecodeFaultDetails(raw)
	if err != nil {
		t.Fatalf("DecodeFaultDetails() error = %v", err)
	}
	if len(faults) != 1 {
		t.Fatalf("len(faults) = %d, want 1", len(faults))
	}
	if faults[0].ID != "HPCGPU-0001-01" || faults[0].Component != "GPU" {
		t.Errorf("fault = %+v", faults[0])
	}
}

func TestDecodeFaultDetailsJSONString(t *testing.T) {
	// Some provider responses carry the array as a JSON-encoded string.
	raw := json.RawMessage(`"[{\"fault_id\":\"HPCGPU-0002-02\",\"component\":\"NVLINK\"}]"`)
	faults, err := DecodeFaultDetails(raw)
	if err != nil {
		t.Fatalf("DecodeFaultDetails() error = %v", err)
	}
	if len(faults) != 1 || faults[0].ID != "HPCGPU-0002-02" || faults[0].Component != "NVLINK" {
		t.Errorf("faults = %+v", faults)
	}
}

func TestDecodeFaultDetailsMalformed(t *testing.T) {
	if _, err := DecodeFaultDetails(json.RawMessage(`"not json at all"`)); err == nil {
		t.Error("DecodeFaultDetails() on garbage string = nil error")
	}
	if faults, err := DecodeFaultDetails(nil); err != nil || faults != nil {
		t.Errorf("DecodeFaultDetails(nil) = %v, %v", faults, err)
	}
}

func TestFaultStringAndIDs(t *testing.T) {
	ev := &MaintenanceEvent{Faults: []Fault{
		{ID: "HPCGPU-0001-01", Component: "GPU"},
		{ID: "HPCGPU-0002-02", Component: "NVLINK"},
	}}
	if got, want := ev.FaultString(), "HPCGPU-0001-01_GPU_HPCGPU-0002-02_NVLINK"; got != want {
		t.Errorf("FaultString() = %q, want %q", got, want)
	}
	ids := ev.FaultIDs()
	if len(ids) != 2 || ids[0] != "HPCGPU-0001-01" || ids[1] != "HPCGPU-0002-02" {
		t.Errorf("FaultIDs() = %v", ids)
	}
}

func TestCLISourceGetEventDecodes(t *testing.T) {
	payload := `{
	  "data": {
	    "id": "ocid1.ime.oc1..event1",
	    "instance-id": "ocid1.instance.oc1..inst1",
	    "lifecycle-state": "SCHEDULED",
	    "display-name": "DOWNTIME_HOST_MAINTENANCE",
	    "instance-action": "REBOOT",
	    "time-created": "2026-08-30T10:00:00Z",
	    "freeform-tags": {"team": "hpc"},
	    "additional-details": {
	      "faultDetails": [{"faultId": "HPCGPU-0001-01", "faultComponent": "GPU"}]
	    }
	  }
	}`
	src := NewCLISource("us-ashburn-1", "ocid1.tenancy.oc1..t", nil)
	src.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte(payload), nil
	}

	ev, err := src.GetEvent(context.Background(), "ocid1.ime.oc1..event1")
	if err != nil {
		t.Fatalf("GetEvent() error = %v", err)
	}
	if ev == nil {
		t.Fatal("GetEvent() = nil")
	}
	if ev.LifecycleState != StateScheduled {
		t.Errorf("LifecycleState = %s", ev.LifecycleState)
	}
	if ev.InstanceID != "ocid1.instance.oc1..inst1" {
		t.Errorf("InstanceID = %s", ev.InstanceID)
	}
	if len(ev.Faults) != 1 || ev.Faults[0].ID != "HPCGPU-0001-01" {
		t.Errorf("Faults = %+v", ev.Faults)
	}
	if !ev.TimeCreated.Equal(time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("TimeCreated = %v", ev.TimeCreated)
	}
	if ev.Tagged("team") != true {
		t.Error("Tagged(team) = false")
	}
	if ev.Tagged("maintenance_processed") {
		t.Error("Tagged(maintenance_processed) = true on untagged event")
	}
}

func TestCLISourceUpdateEventReturnsWorkRequest(t *testing.T) {
	src := NewCLISource("us-ashburn-1", "ocid1.tenancy.oc1..t", nil)
	var gotArgs []string
	src.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = args
		return []byte(`{"data": {}, "opc-work-request-id": "ocid1.wr.oc1..abc"}`), nil
	}

	window := time.Date(2026, 8, 31, 12, 5, 0, 0, time.UTC)
	wr, err := src.UpdateEvent(context.Background(), "ocid1.ime.oc1..event1", EventUpdate{TimeWindowStart: &window})
	if err != nil {
		t.Fatalf("UpdateEvent() error = %v", err)
	}
	if wr != "ocid1.wr.oc1..abc" {
		t.Errorf("work request = %q", wr)
	}

	found := false
	for i, a := range gotArgs {
		if a == "--time-window-start" && i+1 < len(gotArgs) {
			found = true
			if gotArgs[i+1] != "2026-08-31T12:05:00Z" {
				t.Errorf("--time-window-start = %q", gotArgs[i+1])
			}
		}
	}
	if !found {
		t.Errorf("--time-window-start not passed; args = %v", gotArgs)
	}
}
