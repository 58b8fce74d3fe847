package slurm

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"al.essio.dev/pkg/shellescape"

	"github.com/felixproject/felix/pkg/clock"
)

type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			return nil, fmt.Errorf("%s: %s", name, string(ee.Stderr))
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Scontrol implements Scheduler over the scontrol CLI.
type Scontrol struct {
	logger *slog.Logger
	clock  clock.Clock
	run    runner
}

// NewScontrol creates a Scheduler backed by scontrol.
func NewScontrol(logger *slog.Logger, clk clock.Clock) *Scontrol {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Scontrol{logger: logger, clock: clk, run: execRunner}
}

func (s *Scontrol) update(ctx context.Context, host string, fields ...string) error {
	args := append([]string{"scontrol", "update", "NodeName=" + host}, fields...)
	if _, err := s.run(ctx, "sudo", args...); err != nil {
		return fmt.Errorf("scontrol update %s: %w", host, err)
	}
	return nil
}

func (s *Scontrol) Drain(ctx context.Context, host, reason string) error {
	if err := s.update(ctx, host, "Reason="+shellescape.Quote(reason), "State=DRAIN"); err != nil {
		return err
	}
	s.logger.Info("requested drain", "host", host, "reason", reason)
	return nil
}

func (s *Scontrol) Resume(ctx context.Context, host string) error {
	return s.update(ctx, host, "State=RESUME", "Reason="+shellescape.Quote("Maintenance_OK"))
}

func (s *Scontrol) SetReason(ctx context.Context, host, reason string) error {
	if err := s.update(ctx, host, "Reason="+shellescape.Quote(reason)); err != nil {
		return err
	}
	s.logger.Info("updated reason", "host", host, "reason", reason)
	return nil
}

func (s *Scontrol) MarkNotReady(ctx context.Context, host string) error {
	return s.update(ctx, host,
		"State=DRAIN",
		"Reason="+shellescape.Quote("PostMaint_Failure"),
		"Features+=NTR")
}

func (s *Scontrol) State(ctx context.Context, host string) (string, error) {
	out, err := s.run(ctx, "scontrol", "show", "node", host)
	if err != nil {
		return "", fmt.Errorf("scontrol show node %s: %w", host, err)
	}
	state := parseStateToken(string(out))
	if state == "" {
		return "", fmt.Errorf("no State= token for node %s", host)
	}
	return state, nil
}

func (s *Scontrol) NodeStates(ctx context.Context) (map[string]string, error) {
	out, err := s.run(ctx, "scontrol", "show", "nodes")
	if err != nil {
		return nil, fmt.Errorf("scontrol show nodes: %w", err)
	}

	states := make(map[string]string)
	var current string
	for _, token := range strings.Fields(strings.ReplaceAll(string(out), "\n", " ")) {
		if name, ok := strings.CutPrefix(token, "NodeName="); ok {
			current = name
			continue
		}
		if raw, ok := strings.CutPrefix(token, "State="); ok && current != "" {
			states[current] = normalizeState(raw)
		}
	}
	return states, nil
}

func (s *Scontrol) WaitUntil(ctx context.Context, host string, pred func(string) bool, poll, timeout time.Duration) error {
	deadline := s.clock.Now().Add(timeout)
	for {
		state, err := s.State(ctx, host)
		if err != nil {
			s.logger.Warn("node state poll failed", "host", host, "error", err)
		} else if pred(state) {
			s.logger.Info("node reached awaited state", "host", host, "state", state)
			return nil
		}

		if !s.clock.Now().Before(deadline) {
			return fmt.Errorf("timed out after %s waiting on node %s", timeout, host)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(poll):
		}
	}
}

// parseStateToken extracts the State= value from scontrol show output,
// preserving overlay flags like "+DRAIN" and lowercasing.
func parseStateToken(out string) string {
	for _, token := range strings.Fields(strings.ReplaceAll(out, "\n", " ")) {
		if raw, ok := strings.CutPrefix(token, "State="); ok {
			return normalizeState(raw)
		}
	}
	return ""
}

func normalizeState(raw string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(raw), ","))
}
