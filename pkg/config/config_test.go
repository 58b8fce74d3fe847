package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "felix.yaml")
	doc := `
region: us-phoenix-1
maxWorkers: 4
dailyScheduleCap: 3
drainPollInterval: 10s
loopInterval: 5m
skipDrainCheck: true
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Region != "us-phoenix-1" {
		t.Errorf("Region = %q", cfg.Region)
	}
	if cfg.MaxWorkers != 4 {
		t.Errorf("MaxWorkers = %d", cfg.MaxWorkers)
	}
	if cfg.DrainPollInterval.Std() != 10*time.Second {
		t.Errorf("DrainPollInterval = %v", cfg.DrainPollInterval.Std())
	}
	if cfg.LoopInterval.Std() != 5*time.Minute {
		t.Errorf("LoopInterval = %v", cfg.LoopInterval.Std())
	}
	if !cfg.SkipDrainCheck {
		t.Error("SkipDrainCheck = false, want true")
	}
	// Unset fields keep defaults.
	if cfg.ProcessedTag != "maintenance_processed" {
		t.Errorf("ProcessedTag = %q", cfg.ProcessedTag)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() with missing named file should error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("REGION", "eu-frankfurt-1")
	t.Setenv("MAX_WORKERS", "2")
	t.Setenv("DRAIN_POLL_SEC", "5")
	t.Setenv("SKIP_DRAIN_CHECK", "yes")
	t.Setenv("APPROVED_FAULT_CODES", "HPCGPU-0001-01, HPCGPU-0002-02")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Region != "eu-frankfurt-1" {
		t.Errorf("Region = %q", cfg.Region)
	}
	if cfg.MaxWorkers != 2 {
		t.Errorf("MaxWorkers = %d", cfg.MaxWorkers)
	}
	if cfg.DrainPollInterval.Std() != 5*time.Second {
		t.Errorf("DrainPollInterval = %v", cfg.DrainPollInterval.Std())
	}
	if !cfg.SkipDrainCheck {
		t.Error("SkipDrainCheck = false, want true")
	}
	want := []string{"HPCGPU-0001-01", "HPCGPU-0002-02"}
	if len(cfg.ApprovedFaultCodes) != 2 || cfg.ApprovedFaultCodes[0] != want[0] || cfg.ApprovedFaultCodes[1] != want[1] {
		t.Errorf("ApprovedFaultCodes = %v, want %v", cfg.ApprovedFaultCodes, want)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero workers", func(c *Config) { c.MaxWorkers = 0 }},
		{"zero cap", func(c *Config) { c.DailyScheduleCap = 0 }},
		{"zero drain poll", func(c *Config) { c.DrainPollInterval = 0 }},
		{"zero maint timeout", func(c *Config) { c.MaintWaitTimeout = 0 }},
		{"zero loop interval", func(c *Config) { c.LoopInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestReadJSONList(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "codes.json")
	os.WriteFile(good, []byte(`["HPCGPU-0001-01","HPCGPU-0002-02"]`), 0o644)
	items, err := ReadJSONList(good)
	if err != nil {
		t.Fatalf("ReadJSONList() error = %v", err)
	}
	if len(items) != 2 {
		t.Errorf("len(items) = %d, want 2", len(items))
	}

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte(`{"not":"a list"}`), 0o644)
	if _, err := ReadJSONList(bad); err == nil {
		t.Error("ReadJSONList() on object = nil error")
	}

	if _, err := ReadJSONList(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("ReadJSONList() on missing file = nil error")
	}
}
