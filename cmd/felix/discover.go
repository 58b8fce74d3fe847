package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/felixproject/felix/pkg/clock"
	"github.com/felixproject/felix/pkg/report"
)

var discoverJSON bool

func discoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List the maintenance events eligible for the next run",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(true)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			jobs, err := app.disc.Discover(ctx)
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				pterm.Info.Println("No actionable maintenance events")
				return nil
			}

			rows := report.Rows(jobs, clock.Real(), report.Options{ProcessedTag: app.cfg.ProcessedTag})
			if discoverJSON {
				return report.WriteJSON(os.Stdout, rows)
			}
			report.WriteTable(os.Stdout, rows)
			return nil
		},
	}

	cmd.Flags().BoolVar(&discoverJSON, "json", false, "Output JSON instead of a table")
	return cmd
}
