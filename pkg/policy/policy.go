// Package policy gates which discovered faults qualify for automated
// handling. Both sets are immutable for the lifetime of a run, so the
// checks are pure and safe to call from concurrent workers.
package policy

import (
	"log/slog"
	"sort"

	"github.com/felixproject/felix/pkg/config"
)

// Policy holds the run-scoped approved-fault and excluded-host sets.
type Policy struct {
	approved map[string]struct{}
	excluded map[string]struct{}
}

// New builds a Policy from explicit lists.
func New(approvedFaults, excludedHosts []string) *Policy {
	p := &Policy{
		approved: make(map[string]struct{}, len(approvedFaults)),
		excluded: make(map[string]struct{}, len(excludedHosts)),
	}
	for _, code := range approvedFaults {
		if code != "" {
			p.approved[code] = struct{}{}
		}
	}
	for _, host := range excludedHosts {
		if host != "" {
			p.excluded[host] = struct{}{}
		}
	}
	return p
}

// Load reads the approved-fault and excluded-host lists from the files
// named in cfg. A missing or empty approved-fault file falls back to the
// env-sourced codes; a missing exclusion file means no exclusions.
func Load(cfg *config.Config, logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.Default()
	}

	approved, err := config.ReadJSONList(cfg.ApprovedFaultCodesFile)
	if err != nil || len(approved) == 0 {
		if err != nil {
			logger.Warn("approved fault codes file unavailable, using env fallback",
				"file", cfg.ApprovedFaultCodesFile, "error", err)
		}
		approved = cfg.ApprovedFaultCodes
	}

	excluded, err := config.ReadJSONList(cfg.ExcludedHostsFile)
	if err != nil {
		logger.Warn("excluded hosts file unavailable, no hosts excluded",
			"file", cfg.ExcludedHostsFile, "error", err)
		excluded = nil
	}

	return New(approved, excluded)
}

// ApprovedFault returns the first of the given raw fault identifiers
// that exactly matches the approved set. Normalization is intentionally
// not applied; the match is raw-string equality per operator decision.
func (p *Policy) ApprovedFault(faultIDs []string) (string, bool) {
	for _, id := range faultIDs {
		if _, ok := p.approved[id]; ok {
			return id, true
		}
	}
	return "", false
}

// HostExcluded reports whether the hostname is excluded from automation.
func (p *Policy) HostExcluded(host string) bool {
	_, ok := p.excluded[host]
	return ok
}

// ApprovedCodes returns the approved fault codes in sorted order.
func (p *Policy) ApprovedCodes() []string {
	codes := make([]string, 0, len(p.approved))
	for code := range p.approved {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
