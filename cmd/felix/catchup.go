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

var (
	catchupDryRun bool
	catchupHost   string
)

func catchupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catchup",
		Short: "Reconcile maintenance left over from earlier runs",
		Long: `Scan for events a previous run started but never finished: completed
maintenance gets its health check and a "running" inventory status,
still-running maintenance gets its node transition reapplied.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(catchupDryRun)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sum, err := app.orch.RunCatchup(ctx, catchupHost)
			if errors.Is(err, orchestrator.ErrNoJob) {
				pterm.Error.Printfln("%v", err)
				return nil
			}
			if err != nil {
				return err
			}
			printSummary(sum)
			return nil
		},
	}

	cmd.Flags().BoolVar(&catchupDryRun, "dry-run", false, "Log intended actions without touching any system")
	cmd.Flags().StringVar(&catchupHost, "host", "", "Limit the pass to one hostname")
	return cmd
}
