package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var stageDryRun bool

func stageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Drain and trigger maintenance without the follow-up phases",
		Long: `Run only the front half of the workflow: drain eligible nodes and
move their maintenance windows forward. Health checks, finalize
decisions and processed tagging are left to a later run or catchup.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(stageDryRun)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pterm.Info.Printfln("Staging maintenance in %s", app.cfg.Region)
			sum, err := app.orch.RunStage(ctx)
			if err != nil {
				return err
			}
			printSummary(sum)
			return nil
		},
	}

	cmd.Flags().BoolVar(&stageDryRun, "dry-run", false, "Log intended actions without touching any system")
	return cmd
}
