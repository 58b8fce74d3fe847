package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/felixproject/felix/pkg/orchestrator"
)

var phaseDryRun bool

// phaseCmd runs a single workflow phase against one host's discovered
// event. A hostname with no matching event prints an error and exits
// cleanly; operators use these for retries, not scripting.
func phaseCmd(phase, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   phase + " <hostname>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			host := args[0]
			app, err := newApp(phaseDryRun)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err = app.orch.RunPhase(ctx, host, phase)
			if errors.Is(err, orchestrator.ErrNoJob) {
				pterm.Error.Printfln("%v", err)
				return nil
			}
			if err != nil {
				return err
			}
			pterm.Success.Printfln("%s complete for %s", phase, host)
			return nil
		},
	}

	cmd.Flags().BoolVar(&phaseDryRun, "dry-run", false, "Log intended actions without touching any system")
	return cmd
}

func drainCmd() *cobra.Command {
	return phaseCmd("drain", "Drain one host for its pending maintenance")
}

func maintenanceCmd() *cobra.Command {
	return phaseCmd("maintenance", "Trigger the pending maintenance window for one host")
}

func healthCmd() *cobra.Command {
	return phaseCmd("health", "Run the post-maintenance health check for one host")
}

func finalizeCmd() *cobra.Command {
	return phaseCmd("finalize", "Record the finalize decision for one host")
}
