package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// loadEnvFiles reads .env and .env.local into the process environment.
// Existing environment values are never overridden; malformed lines are
// skipped.
func loadEnvFiles() {
	for _, fname := range []string{".env", ".env.local"} {
		data, err := os.ReadFile(fname)
		if err != nil {
			continue
		}
		for _, raw := range strings.Split(string(data), "\n") {
			line := strings.TrimSpace(raw)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			line = strings.TrimPrefix(line, "export ")
			key, val, ok := strings.Cut(line, "=")
			if !ok {
				continue
			}
			key = strings.TrimSpace(key)
			val = strings.Trim(strings.TrimSpace(val), `"'`)
			if key == "" {
				continue
			}
			if _, exists := os.LookupEnv(key); !exists {
				os.Setenv(key, val)
			}
		}
	}
}

// applyEnv overrides config fields from environment variables. Interval
// variables are plain seconds, matching the operator runbooks.
func (c *Config) applyEnv() {
	setString(&c.Region, "REGION")
	setString(&c.TenancyOCID, "OCI_TENANCY_OCID", "TENANCY_OCID")
	setString(&c.ProcessedTag, "PROCESSED_TAG")
	setInt(&c.MaxWorkers, "MAX_WORKERS")
	setInt(&c.DailyScheduleCap, "DAILY_SCHEDULE_CAP")
	setSeconds(&c.DrainPollInterval, "DRAIN_POLL_SEC")
	setSeconds(&c.DrainWaitTimeout, "DRAIN_WAIT_TIMEOUT_SEC")
	setSeconds(&c.MaintPollInterval, "MAINT_POLL_SEC")
	setSeconds(&c.MaintWaitTimeout, "MAINT_WAIT_TIMEOUT_SEC")
	setSeconds(&c.LoopInterval, "LOOP_INTERVAL_SEC")
	setBool(&c.SkipDrainCheck, "SKIP_DRAIN_CHECK")
	setString(&c.ApprovedFaultCodesFile, "APPROVED_FAULT_CODES_FILE")
	setString(&c.ExcludedHostsFile, "EXCLUDED_HOSTS_FILE")
	setString(&c.EventsLogFile, "EVENTS_LOG_FILE")
	setString(&c.MetricsAddr, "METRICS_ADDR")
	setString(&c.MgmtManagePath, "MGMT_MANAGE_PATH")

	if v := os.Getenv("APPROVED_FAULT_CODES"); v != "" {
		var codes []string
		for _, code := range strings.Split(v, ",") {
			if code = strings.TrimSpace(code); code != "" {
				codes = append(codes, code)
			}
		}
		c.ApprovedFaultCodes = codes
	}
}

func setString(dst *string, keys ...string) {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			*dst = v
			return
		}
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setSeconds(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = Duration(time.Duration(n) * time.Second)
		}
	}
}

func setBool(dst *bool, key string) {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes":
		*dst = true
	case "false", "0", "no":
		*dst = false
	}
}

// ReadJSONList reads a JSON array of strings from path. A missing file,
// a non-array document, or a parse error yields an empty list and an
// error describing the problem; callers log and continue.
func ReadJSONList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return items, nil
}
