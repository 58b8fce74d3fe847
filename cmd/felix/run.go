package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/felixproject/felix/pkg/orchestrator"
)

var runDryRun bool

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one full maintenance pass",
		Long: `Discover maintenance events, drain the affected nodes, trigger the
maintenance windows, and record health and finalize decisions. Events
handled end to end are tagged so later passes skip them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(runDryRun)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pterm.Info.Printfln("Scanning %s for maintenance events", app.cfg.Region)
			sum, err := app.orch.RunOnce(ctx)
			if err != nil {
				return err
			}
			printSummary(sum)
			return nil
		},
	}

	cmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Log intended actions without touching any system")
	return cmd
}

func printSummary(sum orchestrator.Summary) {
	pterm.Info.Printfln("Run %s: %d discovered, %d skipped, %d deferred", sum.RunID, sum.Discovered, sum.Skipped, sum.Capped)
	if sum.Failed > 0 {
		pterm.Warning.Printfln("%d handled, %d failed", sum.Handled, sum.Failed)
		return
	}
	pterm.Success.Printfln("%d handled", sum.Handled)
}
