package slurm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/felixproject/felix/pkg/clock"
)

const showNodeOutput = `NodeName=gpu-07 Arch=x86_64 CoresPerSocket=56
   CPUAlloc=0 CPUTot=224 CPULoad=0.05
   State=IDLE+DRAIN, ThreadsPerCore=2 TmpDisk=0 Weight=1
   Reason=HPCGPU-0001-01 [root@2026-08-30T09:12:00]`

func TestParseStateToken(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want string
	}{
		{"idle with drain flag", showNodeOutput, "idle+drain"},
		{"plain allocated", "NodeName=gpu-08 State=ALLOCATED Foo=bar", "allocated"},
		{"trailing comma", "State=MIXED+DRAIN,", "mixed+drain"},
		{"missing token", "NodeName=gpu-09 Partitions=all", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseStateToken(tt.out); got != tt.want {
				t.Errorf("parseStateToken() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDrainedIdle(t *testing.T) {
	tests := []struct {
		state string
		want  bool
	}{
		{"idle+drain", true},
		{"idle", false},
		{"mixed+drain", false},
		{"draining", false},
		{"drained", false},
	}
	for _, tt := range tests {
		if got := DrainedIdle(tt.state); got != tt.want {
			t.Errorf("DrainedIdle(%q) = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestDrainCommandShape(t *testing.T) {
	s := NewScontrol(nil, clock.NewFake(time.Now()))
	var gotName string
	var gotArgs []string
	s.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotName = name
		gotArgs = args
		return nil, nil
	}

	if err := s.Drain(context.Background(), "gpu-07", "HPCGPU-0001-01"); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if gotName != "sudo" {
		t.Errorf("command = %q, want sudo", gotName)
	}
	joined := strings.Join(gotArgs, " ")
	for _, want := range []string{"scontrol", "update", "NodeName=gpu-07", "State=DRAIN", "Reason=HPCGPU-0001-01"} {
		if !strings.Contains(joined, want) {
			t.Errorf("args %q missing %q", joined, want)
		}
	}
}

func TestNodeStates(t *testing.T) {
	s := NewScontrol(nil, clock.NewFake(time.Now()))
	s.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte(`NodeName=gpu-07 State=IDLE+DRAIN Foo=1
NodeName=gpu-08 State=ALLOCATED Foo=2`), nil
	}

	states, err := s.NodeStates(context.Background())
	if err != nil {
		t.Fatalf("NodeStates() error = %v", err)
	}
	if states["gpu-07"] != "idle+drain" || states["gpu-08"] != "allocated" {
		t.Errorf("states = %v", states)
	}
}

func TestWaitUntilReachesState(t *testing.T) {
	s := NewScontrol(nil, clock.NewFake(time.Now()))
	polls := 0
	s.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		polls++
		if polls < 3 {
			return []byte("State=MIXED+DRAIN"), nil
		}
		return []byte("State=IDLE+DRAIN"), nil
	}

	err := s.WaitUntil(context.Background(), "gpu-07", DrainedIdle, 30*time.Second, time.Hour)
	if err != nil {
		t.Fatalf("WaitUntil() error = %v", err)
	}
	if polls != 3 {
		t.Errorf("polls = %d, want 3", polls)
	}
}

func TestWaitUntilTimesOut(t *testing.T) {
	fake := clock.NewFake(time.Now())
	s := NewScontrol(nil, fake)
	s.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("State=MIXED"), nil
	}

	err := s.WaitUntil(context.Background(), "gpu-07", DrainedIdle, 30*time.Second, 5*time.Minute)
	if err == nil {
		t.Fatal("WaitUntil() = nil, want timeout error")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("error = %v", err)
	}
}

func TestWaitUntilHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Real clock here: the cancelled context must win the select before
	// any real waiting happens.
	s := NewScontrol(nil, clock.Real())
	s.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("State=MIXED"), nil
	}

	err := s.WaitUntil(ctx, "gpu-07", DrainedIdle, time.Millisecond, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("WaitUntil() error = %v, want context.Canceled", err)
	}
}
