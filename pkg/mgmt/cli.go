package mgmt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/felixproject/felix/pkg/retry"
)

// wellKnownPaths are probed, in order, when no explicit manage.py path
// is configured.
var wellKnownPaths = []string{
	"/config/mgmt/manage.py",
	"config/mgmt/manage.py",
	"../config/mgmt/manage.py",
}

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

// CLIInventory implements Inventory over the MGMT manage.py CLI. A
// missing CLI degrades every operation to a logged no-op.
type CLIInventory struct {
	managePath string
	logger     *slog.Logger
	run        runner
	retryCfg   retry.Config
}

// NewCLIInventory creates an Inventory backed by manage.py. managePath
// may be empty, in which case well-known locations are probed at call
// time.
func NewCLIInventory(managePath string, logger *slog.Logger) *CLIInventory {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIInventory{
		managePath: managePath,
		logger:     logger,
		run:        execRunner,
		retryCfg:   retry.CLIConfig(),
	}
}

// findManage locates the manage.py CLI: explicit path first, then
// well-known locations. Empty return means the CLI is unavailable.
func (c *CLIInventory) findManage() string {
	if c.managePath != "" {
		if _, err := os.Stat(c.managePath); err == nil {
			return c.managePath
		}
		return ""
	}
	for _, p := range wellKnownPaths {
		if _, err := os.Stat(p); err == nil {
			abs, err := filepath.Abs(p)
			if err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

func (c *CLIInventory) invoke(ctx context.Context, manage string, args ...string) ([]byte, error) {
	full := append([]string{manage}, args...)
	return retry.DoWithValue(ctx, c.retryCfg, func(ctx context.Context) ([]byte, error) {
		return c.run(ctx, pythonBin(), full...)
	})
}

// pythonBin prefers the project-local virtualenv interpreter.
func pythonBin() string {
	if _, err := os.Stat(".venv/bin/python3"); err == nil {
		return ".venv/bin/python3"
	}
	return "python3"
}

func (c *CLIInventory) ListNodes(ctx context.Context) ([]Node, error) {
	manage := c.findManage()
	if manage == "" {
		c.logger.Warn("mgmt CLI not found; inventory is empty")
		return nil, nil
	}

	out, err := c.invoke(ctx, manage, "nodes", "list", "--format", "json")
	if err != nil {
		c.logger.Warn("mgmt nodes list failed", "error", err)
		return nil, nil
	}

	var nodes []Node
	if err := json.Unmarshal(out, &nodes); err != nil {
		c.logger.Warn("mgmt nodes list output not decodable", "error", err)
		return nil, nil
	}
	return nodes, nil
}

func (c *CLIInventory) UpdateNodeStatus(ctx context.Context, nameOrID, status string, details map[string]string) error {
	manage := c.findManage()
	if manage == "" {
		c.logger.Info("mgmt update skipped (CLI not found)",
			"target", nameOrID, "status", status)
		return nil
	}
	if nameOrID == "" {
		return fmt.Errorf("mgmt update: no hostname or instance id")
	}

	// compute_status is a lowercased hint for MGMT UIs.
	computeStatus := strings.ToLower(status)
	if strings.HasPrefix(computeStatus, "ntr") {
		computeStatus = "ntr"
	}
	fields := fmt.Sprintf("status=%q,compute_status=%q", status, computeStatus)
	for _, k := range sortedKeys(details) {
		if details[k] != "" {
			fields += fmt.Sprintf(",%s=%q", k, details[k])
		}
	}

	if _, err := c.invoke(ctx, manage, "configurations", "update",
		"--name", nameOrID, "--fields", fields); err != nil {
		return fmt.Errorf("mgmt update %s: %w", nameOrID, err)
	}
	c.logger.Info("mgmt updated", "target", nameOrID, "status", status)
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *CLIInventory) ReconfigureCompute(ctx context.Context, nodes []string) (bool, error) {
	manage := c.findManage()
	if manage == "" {
		c.logger.Info("mgmt reconfigure skipped (CLI not found)", "nodes", nodes)
		return false, nil
	}
	if len(nodes) == 0 {
		return false, nil
	}

	if _, err := c.invoke(ctx, manage, "nodes", "reconfigure", "compute",
		"--nodes", strings.Join(nodes, ",")); err != nil {
		return false, fmt.Errorf("mgmt reconfigure compute: %w", err)
	}
	return true, nil
}
