package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/felixproject/felix/pkg/audit"
	"github.com/felixproject/felix/pkg/clock"
	"github.com/felixproject/felix/pkg/config"
	"github.com/felixproject/felix/pkg/discovery"
	"github.com/felixproject/felix/pkg/mgmt"
	"github.com/felixproject/felix/pkg/oci"
	"github.com/felixproject/felix/pkg/orchestrator"
	"github.com/felixproject/felix/pkg/policy"
	"github.com/felixproject/felix/pkg/slurm"
	"github.com/felixproject/felix/pkg/workflow"
)

// app holds one fully wired instance of the orchestrator and its
// adapters, shared by all subcommands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	journal *audit.Log
	sched   slurm.Scheduler
	events  oci.EventSource
	inv     mgmt.Inventory
	disc    *discovery.Discoverer
	metrics *orchestrator.Metrics
	orch    *orchestrator.Orchestrator
}

func newApp(dryRun bool) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	logger := setupLogger()
	slog.SetDefault(logger)

	clk := clock.Real()
	journal := audit.New(cfg.EventsLogFile, logger)
	sched := slurm.NewScontrol(logger, clk)
	events := oci.NewCLISource(cfg.Region, cfg.TenancyOCID, logger)
	inv := mgmt.NewCLIInventory(cfg.MgmtManagePath, logger)
	disc := discovery.New(events, inv, logger, cfg.ProcessedTag)
	pol := policy.Load(cfg, logger)
	metrics := orchestrator.NewMetrics()

	phases := workflow.New(sched, events, inv, journal, clk, logger, workflow.Config{
		DrainPoll:      cfg.DrainPollInterval.Std(),
		DrainTimeout:   cfg.DrainWaitTimeout.Std(),
		MaintPoll:      cfg.MaintPollInterval.Std(),
		MaintTimeout:   cfg.MaintWaitTimeout.Std(),
		SkipDrainCheck: cfg.SkipDrainCheck,
		DryRun:         dryRun,
	})

	orch := orchestrator.New(orchestrator.Params{
		Config:     cfg,
		Discoverer: disc,
		Phases:     phases,
		Policy:     pol,
		Events:     events,
		Inventory:  inv,
		Journal:    journal,
		Clock:      clk,
		Logger:     logger,
		Metrics:    metrics,
		DryRun:     dryRun,
	})

	return &app{
		cfg:     cfg,
		logger:  logger,
		journal: journal,
		sched:   sched,
		events:  events,
		inv:     inv,
		disc:    disc,
		metrics: metrics,
		orch:    orch,
	}, nil
}

func setupLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("FELIX_LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}
