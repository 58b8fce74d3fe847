// Package orchestrator runs the full maintenance workflow across the
// fleet: discover events, gate them through policy, and dispatch the
// survivors to a bounded pool of workers. A run never lets one bad job
// take down its siblings.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/felixproject/felix/pkg/audit"
	"github.com/felixproject/felix/pkg/clock"
	"github.com/felixproject/felix/pkg/config"
	"github.com/felixproject/felix/pkg/discovery"
	"github.com/felixproject/felix/pkg/mgmt"
	"github.com/felixproject/felix/pkg/oci"
	"github.com/felixproject/felix/pkg/policy"
	"github.com/felixproject/felix/pkg/workflow"
)

// ErrNoJob reports that no discovered event matched the requested host.
var ErrNoJob = errors.New("no maintenance job for host")

// catchupStates are the lifecycle states a catch-up pass reconciles:
// maintenance that finished or is still running from an earlier run.
var catchupStates = []oci.LifecycleState{
	oci.StateStarted,
	oci.StateProcessing,
	oci.StateInProgress,
	oci.StateSucceeded,
	oci.StateCompleted,
}

// Summary reports what one run did.
type Summary struct {
	RunID      string
	Discovered int
	Skipped    int
	Capped     int
	Dispatched int
	Handled    int
	Failed     int
}

// Params wires an Orchestrator.
type Params struct {
	Config     *config.Config
	Discoverer *discovery.Discoverer
	Phases     *workflow.Phases
	Policy     *policy.Policy
	Events     oci.EventSource
	Inventory  mgmt.Inventory
	Journal    *audit.Log
	Clock      clock.Clock
	Logger     *slog.Logger
	Metrics    *Metrics
	DryRun     bool
}

// Orchestrator coordinates one or more workflow runs.
type Orchestrator struct {
	cfg        *config.Config
	discoverer *discovery.Discoverer
	phases     *workflow.Phases
	policy     *policy.Policy
	events     oci.EventSource
	inventory  mgmt.Inventory
	journal    *audit.Log
	clock      clock.Clock
	logger     *slog.Logger
	metrics    *Metrics
	dryRun     bool
}

// New creates an Orchestrator.
func New(p Params) *Orchestrator {
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	if p.Clock == nil {
		p.Clock = clock.Real()
	}
	return &Orchestrator{
		cfg:        p.Config,
		discoverer: p.Discoverer,
		phases:     p.Phases,
		policy:     p.Policy,
		events:     p.Events,
		inventory:  p.Inventory,
		journal:    p.Journal,
		clock:      p.Clock,
		logger:     p.Logger,
		metrics:    p.Metrics,
		dryRun:     p.DryRun,
	}
}

// RunOnce executes a full pass: discover, gate, dispatch the complete
// workflow, and tag fully handled events as processed.
func (o *Orchestrator) RunOnce(ctx context.Context) (Summary, error) {
	return o.run(ctx, "run", o.runFull)
}

// RunStage executes drain and maintenance trigger only, leaving health
// and finalize to a later pass. Events are not tagged processed.
func (o *Orchestrator) RunStage(ctx context.Context) (Summary, error) {
	return o.run(ctx, "stage", o.runStage)
}

func (o *Orchestrator) run(ctx context.Context, mode string, runJob func(context.Context, *workflow.Job) error) (Summary, error) {
	sum := Summary{RunID: uuid.NewString()}
	o.journal.SetRunID(sum.RunID)
	log := o.logger.With("run_id", sum.RunID, "mode", mode)
	o.metrics.recordRun(mode)

	jobs, err := o.discoverer.Discover(ctx)
	if err != nil {
		return sum, fmt.Errorf("discover events: %w", err)
	}
	sum.Discovered = len(jobs)

	admitted := o.admit(jobs, log)
	sum.Skipped = sum.Discovered - len(admitted)

	admitted, capped := o.capJobs(admitted, log)
	sum.Capped = capped
	sum.Dispatched = len(admitted)

	sum.Handled, sum.Failed = o.dispatch(ctx, admitted, runJob)
	log.Info("run complete",
		"discovered", sum.Discovered, "skipped", sum.Skipped, "capped", sum.Capped,
		"handled", sum.Handled, "failed", sum.Failed)
	return sum, nil
}

// admit applies the policy gates, annotating each surviving job with
// its approved fault code.
func (o *Orchestrator) admit(jobs []*workflow.Job, log *slog.Logger) []*workflow.Job {
	admitted := make([]*workflow.Job, 0, len(jobs))
	for _, job := range jobs {
		if o.policy.HostExcluded(job.Hostname) {
			log.Info("host excluded from automation", "host", job.Hostname, "event", job.Event.ID)
			o.journal.Append(audit.Event{Phase: "dispatch", Action: "skipped", Host: job.Hostname,
				Fields: map[string]any{"event_id": job.Event.ID, "reason": "excluded_host"}})
			o.metrics.recordSkipped("excluded_host")
			continue
		}
		code, ok := o.policy.ApprovedFault(job.FaultIDs)
		if !ok {
			log.Info("no approved fault, leaving event to operators",
				"host", job.Hostname, "event", job.Event.ID, "faults", job.FaultStr)
			o.journal.Append(audit.Event{Phase: "dispatch", Action: "skipped", Host: job.Hostname,
				Fields: map[string]any{"event_id": job.Event.ID, "reason": "unapproved_fault", "faults": job.FaultStr}})
			o.metrics.recordSkipped("unapproved_fault")
			continue
		}
		job.ApprovedFault = code
		admitted = append(admitted, job)
	}
	return admitted
}

// capJobs keeps the first DailyScheduleCap jobs in discovery order. The
// remainder is picked up by a later run.
func (o *Orchestrator) capJobs(jobs []*workflow.Job, log *slog.Logger) ([]*workflow.Job, int) {
	max := o.cfg.DailyScheduleCap
	if max <= 0 || len(jobs) <= max {
		return jobs, 0
	}
	dropped := len(jobs) - max
	log.Warn("daily schedule cap reached, deferring jobs", "cap", max, "deferred", dropped)
	for _, job := range jobs[max:] {
		o.journal.Append(audit.Event{Phase: "dispatch", Action: "deferred", Host: job.Hostname,
			Fields: map[string]any{"event_id": job.Event.ID, "reason": "daily_cap"}})
	}
	o.metrics.recordCapped(dropped)
	return jobs[:max], dropped
}

// dispatch fans jobs out to at most MaxWorkers goroutines and waits for
// them all. Panics and errors are contained per job.
func (o *Orchestrator) dispatch(ctx context.Context, jobs []*workflow.Job, runJob func(context.Context, *workflow.Job) error) (handled, failed int) {
	if len(jobs) == 0 {
		return 0, 0
	}
	workers := o.cfg.MaxWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, workers)
	)
	for _, job := range jobs {
		wg.Add(1)
		sem <- struct{}{}
		go func(job *workflow.Job) {
			defer wg.Done()
			defer func() { <-sem }()
			err := o.runGuarded(ctx, job, runJob)
			mu.Lock()
			if err != nil {
				failed++
			} else {
				handled++
			}
			mu.Unlock()
		}(job)
	}
	wg.Wait()
	return handled, failed
}

// runGuarded shields the pool from a single job's panic or error.
func (o *Orchestrator) runGuarded(ctx context.Context, job *workflow.Job, runJob func(context.Context, *workflow.Job) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job for %s panicked: %v", job.Hostname, r)
			o.logger.Error("workflow panicked", "host", job.Hostname, "event", job.Event.ID, "panic", r)
			o.journal.Append(audit.Event{Phase: "dispatch", Action: "panic", Host: job.Hostname,
				Fields: map[string]any{"event_id": job.Event.ID, "panic": fmt.Sprint(r)}})
			o.metrics.recordFailure()
		}
	}()

	if err := runJob(ctx, job); err != nil {
		o.logger.Error("workflow failed", "host", job.Hostname, "event", job.Event.ID, "error", err)
		o.journal.Append(audit.Event{Phase: "dispatch", Action: "failed", Host: job.Hostname,
			Fields: map[string]any{"event_id": job.Event.ID, "error": err.Error()}})
		o.metrics.recordFailure()
		return err
	}
	o.metrics.recordProcessed()
	return nil
}

// runFull picks the workflow arm from the event's lifecycle state: a
// terminal event only needs health and finalize, a running one only the
// drain, and a scheduled one the whole chain.
func (o *Orchestrator) runFull(ctx context.Context, job *workflow.Job) error {
	switch st := job.Event.LifecycleState; {
	case st == oci.StateSucceeded || st == oci.StateCompleted:
		return o.runTail(ctx, job)
	case st.InProgress():
		_, err := o.phases.Drain(ctx, job)
		return err
	default:
		if _, err := o.phases.Drain(ctx, job); err != nil {
			return err
		}
		out, err := o.phases.Schedule(ctx, job)
		if err != nil {
			return err
		}
		if out == workflow.OutcomeRejected {
			return nil
		}
		if err := o.runTail(ctx, job); err != nil {
			return err
		}
		if job.Done && !o.dryRun {
			o.markProcessed(ctx, job)
		}
		return nil
	}
}

// runStage is the front half of the workflow only.
func (o *Orchestrator) runStage(ctx context.Context, job *workflow.Job) error {
	if _, err := o.phases.Drain(ctx, job); err != nil {
		return err
	}
	_, err := o.phases.Schedule(ctx, job)
	return err
}

// runTail is the post-maintenance half.
func (o *Orchestrator) runTail(ctx context.Context, job *workflow.Job) error {
	if _, err := o.phases.Health(ctx, job); err != nil {
		return err
	}
	_, err := o.phases.Finalize(ctx, job)
	return err
}

// markProcessed tags the event so later discovery passes skip it. The
// provider replaces the whole tag set on update, so the write carries
// the event's existing tags plus the marker. Best effort: a failed tag
// write means the event is seen again, which the lifecycle-state
// dispatch already tolerates.
func (o *Orchestrator) markProcessed(ctx context.Context, job *workflow.Job) {
	tags := make(map[string]string, len(job.Event.FreeformTags)+1)
	for k, v := range job.Event.FreeformTags {
		tags[k] = v
	}
	tags[o.cfg.ProcessedTag] = "true"

	handle, err := o.events.UpdateEvent(ctx, job.Event.ID, oci.EventUpdate{FreeformTags: tags})
	if err != nil || handle == "" {
		o.logger.Warn("processed tag not written", "event", job.Event.ID, "error", err)
		return
	}
	o.journal.Append(audit.Event{Phase: "finalize", Action: "tagged_processed", Host: job.Hostname,
		Fields: map[string]any{"event_id": job.Event.ID}})
}

// RunLoop repeats RunOnce (or RunStage) until the context is canceled.
// Iteration errors are logged and never end the loop.
func (o *Orchestrator) RunLoop(ctx context.Context, stage bool) error {
	for {
		var err error
		if stage {
			_, err = o.RunStage(ctx)
		} else {
			_, err = o.RunOnce(ctx)
		}
		if err != nil {
			o.logger.Error("run iteration failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.clock.After(o.cfg.LoopInterval.Std()):
		}
	}
}

// RunCatchup reconciles events from earlier runs: finished maintenance
// gets its health check, finalize decision and a "running" inventory
// status; still-running maintenance gets the inventory transition a
// crashed run may have missed. host narrows the pass to one node.
func (o *Orchestrator) RunCatchup(ctx context.Context, host string) (Summary, error) {
	sum := Summary{RunID: uuid.NewString()}
	o.journal.SetRunID(sum.RunID)
	log := o.logger.With("run_id", sum.RunID, "mode", "catchup")
	o.metrics.recordRun("catchup")

	jobs, err := o.discoverer.DiscoverWith(ctx, discovery.Filter{States: catchupStates})
	if err != nil {
		return sum, fmt.Errorf("discover events: %w", err)
	}
	sum.Discovered = len(jobs)

	// The exclusion list gates every automated pass, catchup included.
	kept := make([]*workflow.Job, 0, len(jobs))
	for _, job := range jobs {
		if o.policy.HostExcluded(job.Hostname) {
			log.Info("host excluded from automation", "host", job.Hostname, "event", job.Event.ID)
			o.journal.Append(audit.Event{Phase: "dispatch", Action: "skipped", Host: job.Hostname,
				Fields: map[string]any{"event_id": job.Event.ID, "reason": "excluded_host"}})
			o.metrics.recordSkipped("excluded_host")
			sum.Skipped++
			continue
		}
		kept = append(kept, job)
	}
	jobs = kept

	if host != "" {
		var narrowed []*workflow.Job
		for _, job := range jobs {
			if job.Hostname == host {
				narrowed = append(narrowed, job)
			}
		}
		if len(narrowed) == 0 {
			return sum, fmt.Errorf("%w %s", ErrNoJob, host)
		}
		jobs = narrowed
	}

	sum.Dispatched = len(jobs)
	sum.Handled, sum.Failed = o.dispatch(ctx, jobs, o.runCatchupJob)
	log.Info("catchup complete", "discovered", sum.Discovered, "handled", sum.Handled, "failed", sum.Failed)
	return sum, nil
}

func (o *Orchestrator) runCatchupJob(ctx context.Context, job *workflow.Job) error {
	log := o.logger.With("host", job.Hostname, "event", job.Event.ID)
	switch st := job.Event.LifecycleState; {
	case st == oci.StateSucceeded || st == oci.StateCompleted:
		if err := o.runTail(ctx, job); err != nil {
			return err
		}
		if o.dryRun {
			log.Info("dry-run: would mark node running")
			return nil
		}
		if err := o.inventory.UpdateNodeStatus(ctx, job.Hostname, "running", map[string]string{
			"event_id": job.Event.ID,
		}); err != nil {
			log.Warn("inventory status not updated", "error", err)
		}
		return nil
	case st.InProgress():
		if o.dryRun {
			log.Info("dry-run: would reapply maintenance transition")
			return nil
		}
		if err := o.inventory.UpdateNodeStatus(ctx, job.Hostname, "NTR scheduled", map[string]string{
			"fault_code": job.DrainReason(),
			"event_id":   job.Event.ID,
		}); err != nil {
			log.Warn("inventory status not updated", "error", err)
		}
		if _, err := o.inventory.ReconfigureCompute(ctx, []string{job.Hostname}); err != nil {
			log.Warn("compute reconfigure not triggered", "error", err)
		}
		return nil
	default:
		log.Info("catchup has nothing to do", "state", string(job.Event.LifecycleState))
		return nil
	}
}

// RunPhase executes a single named phase against the job discovered for
// host. Used by the per-phase CLI commands.
func (o *Orchestrator) RunPhase(ctx context.Context, host, phase string) error {
	jobs, err := o.discoverer.DiscoverWith(ctx, discovery.Filter{})
	if err != nil {
		return fmt.Errorf("discover events: %w", err)
	}

	var job *workflow.Job
	for _, j := range jobs {
		if j.Hostname == host {
			job = j
			break
		}
	}
	if job == nil {
		return fmt.Errorf("%w %s", ErrNoJob, host)
	}
	if code, ok := o.policy.ApprovedFault(job.FaultIDs); ok {
		job.ApprovedFault = code
	}

	o.journal.SetRunID(uuid.NewString())
	switch phase {
	case "drain":
		_, err = o.phases.Drain(ctx, job)
	case "maintenance":
		_, err = o.phases.Schedule(ctx, job)
	case "health":
		_, err = o.phases.Health(ctx, job)
	case "finalize":
		_, err = o.phases.Finalize(ctx, job)
	default:
		return fmt.Errorf("unknown phase %q", phase)
	}
	return err
}
