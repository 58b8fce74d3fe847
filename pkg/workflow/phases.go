package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixproject/felix/pkg/audit"
	"github.com/felixproject/felix/pkg/clock"
	"github.com/felixproject/felix/pkg/mgmt"
	"github.com/felixproject/felix/pkg/oci"
	"github.com/felixproject/felix/pkg/slurm"
)

// Outcome classifies a phase result so callers can distinguish work
// done from work legitimately declined.
type Outcome int

const (
	// OutcomeHandled means the phase performed (or dry-run planned) its
	// actions.
	OutcomeHandled Outcome = iota

	// OutcomeSkipped means the phase's preconditions did not hold and it
	// deliberately did nothing.
	OutcomeSkipped

	// OutcomeRejected means the provider declined a requested mutation.
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHandled:
		return "handled"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Config carries the tunables the phase machine needs.
type Config struct {
	DrainPoll    time.Duration
	DrainTimeout time.Duration
	MaintPoll    time.Duration
	MaintTimeout time.Duration

	// SkipDrainCheck skips waiting for the node to settle after the
	// drain request. Operator override for stuck nodes.
	SkipDrainCheck bool

	// DryRun logs and audits every planned action without mutating any
	// external system.
	DryRun bool
}

// Phases executes the per-host maintenance workflow. One Phases value is
// shared by all workers of a run; it holds no per-job state.
type Phases struct {
	scheduler slurm.Scheduler
	events    oci.EventSource
	inventory mgmt.Inventory
	journal   *audit.Log
	clock     clock.Clock
	logger    *slog.Logger
	cfg       Config
}

// New wires the phase machine.
func New(scheduler slurm.Scheduler, events oci.EventSource, inventory mgmt.Inventory, journal *audit.Log, clk clock.Clock, logger *slog.Logger, cfg Config) *Phases {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Phases{
		scheduler: scheduler,
		events:    events,
		inventory: inventory,
		journal:   journal,
		clock:     clk,
		logger:    logger,
		cfg:       cfg,
	}
}

// Drain removes the job's host from scheduling and waits for it to
// settle drained and idle. Events slated for instance termination, and
// events that are not host downtime maintenance, are not drained: the
// provider reclaims terminated instances regardless, and other event
// types do not take the host down.
func (p *Phases) Drain(ctx context.Context, job *Job) (Outcome, error) {
	ev := job.Event
	log := p.logger.With("host", job.Hostname, "event", ev.ID)

	if ev.InstanceAction == oci.ActionTerminate || ev.DisplayName != oci.TypeDowntimeHostMaintenance {
		log.Info("drain not applicable",
			"instance_action", ev.InstanceAction, "display_name", ev.DisplayName)
		p.journal.Append(audit.Event{Phase: "drain", Action: "not_eligible_for_drain", Host: job.Hostname,
			Fields: map[string]any{"event_id": ev.ID, "instance_action": ev.InstanceAction, "display_name": ev.DisplayName}})
		return OutcomeSkipped, nil
	}

	reason := job.DrainReason()
	if p.cfg.DryRun {
		log.Info("dry-run: would drain node", "reason", reason)
		p.journal.Append(audit.Event{Phase: "drain", Action: "dry_run", Host: job.Hostname,
			Fields: map[string]any{"event_id": ev.ID, "reason": reason}})
		return OutcomeHandled, nil
	}

	log.Info("draining node", "reason", reason)
	p.journal.Append(audit.Event{Phase: "drain", Action: "requested", Host: job.Hostname,
		Fields: map[string]any{"event_id": ev.ID, "reason": reason}})
	if err := p.scheduler.Drain(ctx, job.Hostname, reason); err != nil {
		return OutcomeHandled, fmt.Errorf("drain %s: %w", job.Hostname, err)
	}

	if p.cfg.SkipDrainCheck {
		log.Warn("drain settle check skipped by operator override")
		p.journal.Append(audit.Event{Phase: "drain", Action: "wait_skipped", Host: job.Hostname,
			Fields: map[string]any{"event_id": ev.ID}})
		return OutcomeHandled, nil
	}

	if err := p.scheduler.WaitUntil(ctx, job.Hostname, slurm.DrainedIdle, p.cfg.DrainPoll, p.cfg.DrainTimeout); err != nil {
		return OutcomeHandled, fmt.Errorf("wait for %s to drain: %w", job.Hostname, err)
	}
	log.Info("node drained and idle")
	p.journal.Append(audit.Event{Phase: "drain", Action: "drained_empty", Host: job.Hostname,
		Fields: map[string]any{"event_id": ev.ID}})
	return OutcomeHandled, nil
}

// Schedule triggers the maintenance by moving the event's window to the
// near future, then records the transition in the management system and
// waits for the provider to run the event to a terminal state. Only a
// SCHEDULED event can be triggered; any other state is a no-op.
func (p *Phases) Schedule(ctx context.Context, job *Job) (Outcome, error) {
	ev := job.Event
	log := p.logger.With("host", job.Hostname, "event", ev.ID)

	if ev.LifecycleState != oci.StateScheduled {
		log.Info("event not in a schedulable state", "state", string(ev.LifecycleState))
		p.journal.Append(audit.Event{Phase: "maintenance", Action: "not_schedulable", Host: job.Hostname,
			Fields: map[string]any{"event_id": ev.ID, "state": string(ev.LifecycleState)}})
		return OutcomeSkipped, nil
	}

	window := p.clock.Now().UTC().Add(5 * time.Minute).Truncate(time.Second)
	reason := job.DrainReason()

	if p.cfg.DryRun {
		log.Info("dry-run: would trigger maintenance", "window_start", window, "reason", reason)
		p.journal.Append(audit.Event{Phase: "maintenance", Action: "dry_run", Host: job.Hostname,
			Fields: map[string]any{"event_id": ev.ID, "window_start": window.Format(time.RFC3339)}})
		return OutcomeHandled, nil
	}

	handle, err := p.events.UpdateEvent(ctx, ev.ID, oci.EventUpdate{TimeWindowStart: &window})
	if err != nil {
		p.journal.Append(audit.Event{Phase: "maintenance", Action: "update_failed", Host: job.Hostname,
			Fields: map[string]any{"event_id": ev.ID, "error": err.Error()}})
		return OutcomeHandled, fmt.Errorf("update event %s: %w", ev.ID, err)
	}
	if handle == "" {
		log.Warn("provider rejected window update")
		p.journal.Append(audit.Event{Phase: "maintenance", Action: "rejected", Host: job.Hostname,
			Fields: map[string]any{"event_id": ev.ID}})
		return OutcomeRejected, nil
	}
	job.WorkRequest = handle
	log.Info("maintenance triggered", "work_request", handle, "window_start", window)
	p.journal.Append(audit.Event{Phase: "maintenance", Action: "triggered", Host: job.Hostname,
		Fields: map[string]any{"event_id": ev.ID, "work_request": handle, "window_start": window.Format(time.RFC3339)}})

	// Side effects after a successful trigger are individually
	// failure-isolated: a missed annotation must not abandon an already
	// running maintenance.
	if reason != "" {
		if err := p.scheduler.SetReason(ctx, job.Hostname, "NTR scheduled: "+reason); err != nil {
			log.Warn("node reason not updated", "error", err)
		}
	}
	if err := p.inventory.UpdateNodeStatus(ctx, job.Hostname, "NTR scheduled", map[string]string{
		"fault_code": reason,
		"event_id":   ev.ID,
	}); err != nil {
		log.Warn("inventory status not updated", "error", err)
	}
	if _, err := p.inventory.ReconfigureCompute(ctx, []string{job.Hostname}); err != nil {
		log.Warn("compute reconfigure not triggered", "error", err)
	}

	final, err := p.waitEventTerminal(ctx, ev.ID)
	if err != nil {
		return OutcomeHandled, fmt.Errorf("wait for event %s: %w", ev.ID, err)
	}
	job.Done = true
	log.Info("maintenance reached terminal state", "state", string(final))
	p.journal.Append(audit.Event{Phase: "maintenance", Action: "completed", Host: job.Hostname,
		Fields: map[string]any{"event_id": ev.ID, "state": string(final)}})
	return OutcomeHandled, nil
}

// waitEventTerminal polls the event until its lifecycle state is
// terminal. Poll errors are transient by assumption and retried until
// the deadline.
func (p *Phases) waitEventTerminal(ctx context.Context, eventID string) (oci.LifecycleState, error) {
	deadline := p.clock.Now().Add(p.cfg.MaintTimeout)
	for {
		state, err := p.events.EventState(ctx, eventID)
		if err != nil {
			p.logger.Warn("event state poll failed", "event", eventID, "error", err)
		} else if state.Terminal() {
			return state, nil
		}
		if !p.clock.Now().Add(p.cfg.MaintPoll).Before(deadline) {
			return "", fmt.Errorf("event %s not terminal after %s", eventID, p.cfg.MaintTimeout)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-p.clock.After(p.cfg.MaintPoll):
		}
	}
}

// Health records the post-maintenance health verdict. Diagnostics are
// run out-of-band today, so every node that completed maintenance
// passes; the tri-state outcome keeps the finalize contract ready for a
// real checker.
func (p *Phases) Health(ctx context.Context, job *Job) (Outcome, error) {
	job.Health = HealthPass
	p.logger.Info("health check passed", "host", job.Hostname, "event", job.Event.ID)
	p.journal.Append(audit.Event{Phase: "health", Action: "pass", Host: job.Hostname,
		Fields: map[string]any{"event_id": job.Event.ID}})
	return OutcomeHandled, nil
}

// Finalize decides the node's fate from the health outcome and records
// the decision. The return-to-service actions themselves stay with the
// operator for now, so this phase audits the decision without acting
// on it.
func (p *Phases) Finalize(ctx context.Context, job *Job) (Outcome, error) {
	decision := "resume"
	if job.Health == HealthFail {
		decision = "mark_not_ready"
	}
	p.logger.Info("finalize decision recorded",
		"host", job.Hostname, "event", job.Event.ID, "health", job.Health.String(), "decision", decision)
	p.journal.Append(audit.Event{Phase: "finalize", Action: "decision", Host: job.Hostname,
		Fields: map[string]any{"event_id": job.Event.ID, "health": job.Health.String(), "decision": decision}})
	return OutcomeHandled, nil
}
