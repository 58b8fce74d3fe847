package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/felixproject/felix/pkg/clock"
	"github.com/felixproject/felix/pkg/discovery"
	"github.com/felixproject/felix/pkg/report"
)

var (
	reportJSON    bool
	reportExclude []string
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Report every maintenance event across the fleet",
		Long: `List all maintenance events in every lifecycle state, with the
scheduler's view of each affected node. Processed events are included.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(true)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			jobs, err := app.disc.DiscoverWith(ctx, discovery.Filter{IncludeProcessed: true})
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				pterm.Info.Println("No maintenance events found")
				return nil
			}

			nodeStates, err := app.sched.NodeStates(ctx)
			if err != nil {
				app.logger.Warn("scheduler node states unavailable", "error", err)
			}

			rows := report.Rows(jobs, clock.Real(), report.Options{
				ExcludeStates: reportExclude,
				ProcessedTag:  app.cfg.ProcessedTag,
				NodeStates:    nodeStates,
			})
			if reportJSON {
				return report.WriteJSON(os.Stdout, rows)
			}
			report.WriteTable(os.Stdout, rows)
			return nil
		},
	}

	cmd.Flags().BoolVar(&reportJSON, "json", false, "Output JSON instead of a table")
	cmd.Flags().StringSliceVar(&reportExclude, "exclude", []string{"CANCELED"}, "Lifecycle states to drop from the report")
	return cmd
}
