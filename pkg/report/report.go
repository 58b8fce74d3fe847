// Package report renders the fleet's maintenance-event status for
// operators, as a terminal table or as JSON for scripting.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/felixproject/felix/pkg/clock"
	"github.com/felixproject/felix/pkg/oci"
	"github.com/felixproject/felix/pkg/workflow"
)

// Row is one event in the report.
type Row struct {
	Host       string `json:"host"`
	EventID    string `json:"event_id"`
	State      string `json:"state"`
	SlurmState string `json:"slurm_state,omitempty"`
	Faults     string `json:"faults,omitempty"`
	Created    string `json:"created,omitempty"`
	Started    string `json:"started,omitempty"`
	Finished   string `json:"finished,omitempty"`
	Duration   string `json:"duration,omitempty"`
	Processed  bool   `json:"processed"`
}

// Options controls row selection and annotation.
type Options struct {
	// ExcludeStates drops events in the named lifecycle states. The CLI
	// defaults this to CANCELED, which is operator noise.
	ExcludeStates []string

	// ProcessedTag is the freeform tag marking handled events.
	ProcessedTag string

	// NodeStates annotates each row with the scheduler's view of the
	// host, keyed by hostname. Optional.
	NodeStates map[string]string
}

// stateRank orders rows so actionable events sort ahead of finished
// ones.
var stateRank = map[oci.LifecycleState]int{
	oci.StateScheduled:  0,
	oci.StateStarted:    1,
	oci.StateProcessing: 2,
	oci.StateInProgress: 3,
	oci.StateSucceeded:  4,
	oci.StateFailed:     5,
	oci.StateCompleted:  6,
	oci.StateCanceled:   7,
}

// Rows converts discovered jobs into report rows, sorted by state then
// host. clk supplies "now" for the running duration of in-progress
// events.
func Rows(jobs []*workflow.Job, clk clock.Clock, opts Options) []Row {
	if clk == nil {
		clk = clock.Real()
	}

	excluded := make(map[oci.LifecycleState]struct{}, len(opts.ExcludeStates))
	for _, s := range opts.ExcludeStates {
		excluded[oci.LifecycleState(s)] = struct{}{}
	}

	rows := make([]Row, 0, len(jobs))
	for _, job := range jobs {
		ev := job.Event
		if _, skip := excluded[ev.LifecycleState]; skip {
			continue
		}
		rows = append(rows, Row{
			Host:       job.Hostname,
			EventID:    ev.ID,
			State:      string(ev.LifecycleState),
			SlurmState: opts.NodeStates[job.Hostname],
			Faults:     ev.FaultString(),
			Created:    formatWhen(ev.TimeCreated),
			Started:    formatWhen(ev.TimeStarted),
			Finished:   formatWhen(ev.TimeFinished),
			Duration:   formatSpan(ev, clk.Now()),
			Processed:  ev.Tagged(opts.ProcessedTag),
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		ri, rj := rankOf(rows[i].State), rankOf(rows[j].State)
		if ri != rj {
			return ri < rj
		}
		return rows[i].Host < rows[j].Host
	})
	return rows
}

func rankOf(state string) int {
	if r, ok := stateRank[oci.LifecycleState(state)]; ok {
		return r
	}
	return len(stateRank)
}

// WriteTable renders rows as a terminal table.
func WriteTable(w io.Writer, rows []Row) {
	table := tablewriter.NewWriter(w)
	table.Append([]string{"Host", "Event", "State", "Slurm", "Faults", "Created", "Started", "Finished", "Duration", "Processed"})
	for _, r := range rows {
		processed := ""
		if r.Processed {
			processed = "yes"
		}
		table.Append([]string{
			r.Host, r.EventID, r.State, r.SlurmState, r.Faults,
			r.Created, r.Started, r.Finished, r.Duration, processed,
		})
	}
	table.Render()
}

// WriteJSON renders rows as indented JSON.
func WriteJSON(w io.Writer, rows []Row) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

// formatSpan reports how long an event's maintenance ran: start to
// finish when both are known, start to now while it is still running.
func formatSpan(ev *oci.MaintenanceEvent, now time.Time) string {
	if ev.TimeStarted.IsZero() {
		return "—"
	}
	end := ev.TimeFinished
	if end.IsZero() {
		if !ev.LifecycleState.InProgress() {
			return "—"
		}
		end = now
	}
	return formatDuration(end.Sub(ev.TimeStarted))
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "—"
	}
	switch {
	case d >= 24*time.Hour:
		return fmt.Sprintf("%d d %d h", d/(24*time.Hour), d%(24*time.Hour)/time.Hour)
	case d >= time.Hour:
		return fmt.Sprintf("%d h %02d m", d/time.Hour, d%time.Hour/time.Minute)
	default:
		return fmt.Sprintf("%d m %02d s", d/time.Minute, d%time.Minute/time.Second)
	}
}

// formatWhen renders a timestamp the way operators read it on a status
// page: "Aug 31st 2026 10:00 pm UTC".
func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	t = t.UTC()
	return fmt.Sprintf("%s %s %d %s",
		t.Format("Jan"), ordinal(t.Day()), t.Year(), t.Format("3:04 pm MST"))
}

func ordinal(day int) string {
	suffix := "th"
	if day < 11 || day > 13 {
		switch day % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", day, suffix)
}
