package oci

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/felixproject/felix/pkg/retry"
)

// runner executes an external command and returns its stdout. Replaced
// in tests.
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

// CLISource implements EventSource by shelling out to the oci CLI with
// instance-principal auth. All calls go through bounded retries.
type CLISource struct {
	region   string
	tenancy  string
	logger   *slog.Logger
	run      runner
	retryCfg retry.Config
}

// NewCLISource creates an EventSource backed by the oci CLI.
func NewCLISource(region, tenancyOCID string, logger *slog.Logger) *CLISource {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLISource{
		region:   region,
		tenancy:  tenancyOCID,
		logger:   logger,
		run:      execRunner,
		retryCfg: retry.CLIConfig(),
	}
}

func (s *CLISource) invoke(ctx context.Context, args ...string) ([]byte, error) {
	full := append([]string{"--auth", "instance_principal", "--region", s.region, "--output", "json"}, args...)
	return retry.DoWithValue(ctx, s.retryCfg, func(ctx context.Context) ([]byte, error) {
		return s.run(ctx, "oci", full...)
	})
}

// cliEnvelope is the oci CLI response wrapper.
type cliEnvelope struct {
	Data          json.RawMessage `json:"data"`
	WorkRequestID string          `json:"opc-work-request-id"`
}

// cliEvent mirrors the CLI's kebab-case event rendering.
type cliEvent struct {
	ID                string                     `json:"id"`
	InstanceID        string                     `json:"instance-id"`
	LifecycleState    LifecycleState             `json:"lifecycle-state"`
	DisplayName       string                     `json:"display-name"`
	InstanceAction    string                     `json:"instance-action"`
	TimeCreated       time.Time                  `json:"time-created"`
	TimeStarted       *time.Time                 `json:"time-started"`
	TimeFinished      *time.Time                 `json:"time-finished"`
	FreeformTags      map[string]string          `json:"freeform-tags"`
	AdditionalDetails map[string]json.RawMessage `json:"additional-details"`
}

func (s *CLISource) ListCompartments(ctx context.Context) ([]string, error) {
	out, err := s.invoke(ctx, "iam", "compartment", "list",
		"--compartment-id", s.tenancy, "--all")
	if err != nil {
		return nil, fmt.Errorf("list compartments: %w", err)
	}

	var env cliEnvelope
	if err := json.Unmarshal(out, &env); err != nil {
		return nil, fmt.Errorf("decode compartment list: %w", err)
	}
	var items []struct {
		ID string `json:"id"`
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &items); err != nil {
			return nil, fmt.Errorf("decode compartment list: %w", err)
		}
	}

	ids := []string{s.tenancy}
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	return ids, nil
}

func (s *CLISource) ListEvents(ctx context.Context, compartmentID string) ([]EventSummary, error) {
	out, err := s.invoke(ctx, "compute", "instance-maintenance-event", "list",
		"--compartment-id", compartmentID, "--all")
	if err != nil {
		return nil, fmt.Errorf("list maintenance events: %w", err)
	}

	var env cliEnvelope
	if err := json.Unmarshal(out, &env); err != nil {
		return nil, fmt.Errorf("decode event list: %w", err)
	}
	var items []struct {
		ID             string         `json:"id"`
		LifecycleState LifecycleState `json:"lifecycle-state"`
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &items); err != nil {
			return nil, fmt.Errorf("decode event list: %w", err)
		}
	}

	summaries := make([]EventSummary, 0, len(items))
	for _, it := range items {
		summaries = append(summaries, EventSummary{ID: it.ID, LifecycleState: it.LifecycleState})
	}
	return summaries, nil
}

func (s *CLISource) GetEvent(ctx context.Context, id string) (*MaintenanceEvent, error) {
	out, err := s.invoke(ctx, "compute", "instance-maintenance-event", "get",
		"--instance-maintenance-event-id", id)
	if err != nil {
		return nil, fmt.Errorf("get maintenance event %s: %w", id, err)
	}

	var env cliEnvelope
	if err := json.Unmarshal(out, &env); err != nil {
		return nil, fmt.Errorf("decode event %s: %w", id, err)
	}
	if len(env.Data) == 0 {
		return nil, nil
	}
	return s.decodeEvent(env.Data)
}

func (s *CLISource) decodeEvent(data json.RawMessage) (*MaintenanceEvent, error) {
	var raw cliEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode event detail: %w", err)
	}

	ev := &MaintenanceEvent{
		ID:             raw.ID,
		InstanceID:     raw.InstanceID,
		LifecycleState: raw.LifecycleState,
		DisplayName:    raw.DisplayName,
		InstanceAction: raw.InstanceAction,
		TimeCreated:    raw.TimeCreated,
		FreeformTags:   raw.FreeformTags,
	}
	if ev.FreeformTags == nil {
		ev.FreeformTags = map[string]string{}
	}
	if raw.TimeStarted != nil {
		ev.TimeStarted = *raw.TimeStarted
	}
	if raw.TimeFinished != nil {
		ev.TimeFinished = *raw.TimeFinished
	}

	details := raw.AdditionalDetails["faultDetails"]
	if len(details) == 0 {
		details = raw.AdditionalDetails["fault_details"]
	}
	faults, err := DecodeFaultDetails(details)
	if err != nil {
		// Malformed fault payloads degrade to an empty fault list.
		s.logger.Warn("fault details not decodable", "event_id", ev.ID, "error", err)
		faults = nil
	}
	ev.Faults = faults

	return ev, nil
}

func (s *CLISource) UpdateEvent(ctx context.Context, id string, upd EventUpdate) (string, error) {
	args := []string{"compute", "instance-maintenance-event", "update",
		"--instance-maintenance-event-id", id, "--force"}
	if upd.TimeWindowStart != nil {
		args = append(args, "--time-window-start", upd.TimeWindowStart.UTC().Format(time.RFC3339))
	}
	if upd.FreeformTags != nil {
		tags, err := json.Marshal(upd.FreeformTags)
		if err != nil {
			return "", fmt.Errorf("encode freeform tags: %w", err)
		}
		args = append(args, "--freeform-tags", string(tags))
	}

	out, err := s.invoke(ctx, args...)
	if err != nil {
		return "", fmt.Errorf("update maintenance event %s: %w", id, err)
	}

	var env cliEnvelope
	if err := json.Unmarshal(out, &env); err != nil {
		return "", fmt.Errorf("decode update response for %s: %w", id, err)
	}
	return env.WorkRequestID, nil
}

func (s *CLISource) EventState(ctx context.Context, id string) (LifecycleState, error) {
	ev, err := s.GetEvent(ctx, id)
	if err != nil {
		return "", err
	}
	if ev == nil {
		return "", fmt.Errorf("maintenance event %s not found", id)
	}
	return ev.LifecycleState, nil
}
