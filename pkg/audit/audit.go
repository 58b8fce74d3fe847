// Package audit appends structured workflow events to a local journal,
// one JSON object per line. The journal is append-only: nothing in this
// system updates or deletes entries, and consumers read the file
// externally. Append failures are swallowed so auditing can never break
// the workflow itself.
package audit

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/felixproject/felix/pkg/clock"
)

// Event is a single journal entry. Fields carries free-form context
// (reason, event id, decision) merged into the emitted object.
type Event struct {
	Phase  string
	Action string
	Host   string
	Fields map[string]any
}

// Log writes audit events to a file, serializing concurrent appends.
type Log struct {
	path   string
	runID  string
	logger *slog.Logger
	clock  clock.Clock

	mu sync.Mutex
}

// New creates a Log writing to path. The parent directory is created on
// first append if needed.
func New(path string, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{path: path, logger: logger, clock: clock.Real()}
}

// WithClock returns the log using clk for timestamps. For tests.
func (l *Log) WithClock(clk clock.Clock) *Log {
	l.clock = clk
	return l
}

// SetRunID stamps subsequent events with a run identifier.
func (l *Log) SetRunID(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.runID = id
}

// Append writes one event line. Fire-and-forget: all failures are
// logged at debug and otherwise ignored.
func (l *Log) Append(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := make(map[string]any, len(e.Fields)+5)
	for k, v := range e.Fields {
		entry[k] = v
	}
	entry["ts"] = l.clock.Now().UTC().Truncate(time.Second).Format(time.RFC3339)
	if l.runID != "" {
		entry["run_id"] = l.runID
	}
	entry["phase"] = e.Phase
	entry["action"] = e.Action
	if e.Host != "" {
		entry["host"] = e.Host
	}

	line, err := json.Marshal(entry)
	if err != nil {
		l.logger.Debug("audit event not encodable", "error", err)
		return
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		l.logger.Debug("audit directory not creatable", "error", err)
		return
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		l.logger.Debug("audit log not writable", "error", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		l.logger.Debug("audit append failed", "error", err)
	}
}
