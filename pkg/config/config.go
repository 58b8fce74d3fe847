// Package config holds the orchestrator configuration, loaded from an
// optional YAML file with environment-variable overrides. Components
// receive an explicit *Config at construction; there is no package-level
// mutable state.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
type Duration time.Duration

// UnmarshalYAML implements custom YAML unmarshaling for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements custom YAML marshaling for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	if d == 0 {
		return "", nil
	}
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds all orchestrator settings.
type Config struct {
	// Region is the OCI region queried for maintenance events.
	Region string `yaml:"region"`

	// TenancyOCID is the root compartment; child compartments are
	// enumerated under it.
	TenancyOCID string `yaml:"tenancyOCID"`

	// ProcessedTag is the freeform tag written to fully handled events
	// and skipped during discovery.
	ProcessedTag string `yaml:"processedTag"`

	// MaxWorkers bounds the per-run worker pool.
	MaxWorkers int `yaml:"maxWorkers"`

	// DailyScheduleCap limits how many approved jobs a single run processes.
	DailyScheduleCap int `yaml:"dailyScheduleCap"`

	DrainPollInterval Duration `yaml:"drainPollInterval"`
	DrainWaitTimeout  Duration `yaml:"drainWaitTimeout"`
	MaintPollInterval Duration `yaml:"maintPollInterval"`
	MaintWaitTimeout  Duration `yaml:"maintWaitTimeout"`
	LoopInterval      Duration `yaml:"loopInterval"`

	// SkipDrainCheck schedules maintenance without waiting for the node
	// to reach IDLE+DRAIN. Operator override, logged when active.
	SkipDrainCheck bool `yaml:"skipDrainCheck"`

	// ApprovedFaultCodesFile is a JSON array of fault codes eligible for
	// automated handling. ApprovedFaultCodes is the env-sourced fallback
	// used when the file is absent or empty.
	ApprovedFaultCodesFile string   `yaml:"approvedFaultCodesFile"`
	ApprovedFaultCodes     []string `yaml:"approvedFaultCodes"`

	// ExcludedHostsFile is a JSON array of hostnames excluded from
	// automation.
	ExcludedHostsFile string `yaml:"excludedHostsFile"`

	// EventsLogFile is the append-only audit journal path.
	EventsLogFile string `yaml:"eventsLogFile"`

	// MetricsAddr is the listen address for the Prometheus endpoint in
	// loop mode. Empty disables the listener.
	MetricsAddr string `yaml:"metricsAddr"`

	// MgmtManagePath overrides the location of the MGMT manage.py CLI.
	MgmtManagePath string `yaml:"mgmtManagePath"`
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		Region:                 "us-ashburn-1",
		ProcessedTag:           "maintenance_processed",
		MaxWorkers:             8,
		DailyScheduleCap:       10,
		DrainPollInterval:      Duration(30 * time.Second),
		DrainWaitTimeout:       Duration(2 * time.Hour),
		MaintPollInterval:      Duration(60 * time.Second),
		MaintWaitTimeout:       Duration(48 * time.Hour),
		LoopInterval:           Duration(15 * time.Minute),
		ApprovedFaultCodesFile: "config/approved_fault_codes.json",
		ExcludedHostsFile:      "config/excluded_hosts.json",
		EventsLogFile:          "logs/events.jsonl",
		MetricsAddr:            ":9137",
	}
}

// Load builds a Config from defaults, the YAML file at path (if any),
// and environment variables, in that order of precedence. An empty path
// is allowed; a named file that does not exist is an error.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.MaxWorkers <= 0 {
		return fmt.Errorf("maxWorkers must be > 0")
	}
	if c.DailyScheduleCap <= 0 {
		return fmt.Errorf("dailyScheduleCap must be > 0")
	}
	if c.DrainPollInterval <= 0 || c.MaintPollInterval <= 0 {
		return fmt.Errorf("poll intervals must be > 0")
	}
	if c.DrainWaitTimeout <= 0 || c.MaintWaitTimeout <= 0 {
		return fmt.Errorf("wait timeouts must be > 0")
	}
	if c.LoopInterval <= 0 {
		return fmt.Errorf("loopInterval must be > 0")
	}
	return nil
}
