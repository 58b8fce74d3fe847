package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var (
	loopDryRun bool
	loopStage  bool
)

func loopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loop",
		Short: "Run maintenance passes continuously",
		Long: `Repeat the full maintenance pass at the configured interval until
interrupted. Iteration failures are logged and the loop keeps going.
A Prometheus endpoint is served on the configured metrics address.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(loopDryRun)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if app.cfg.MetricsAddr != "" {
				go serveMetrics(app)
			}

			app.logger.Info("entering maintenance loop",
				"interval", app.cfg.LoopInterval.Std(), "stage", loopStage)
			if err := app.orch.RunLoop(ctx, loopStage); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&loopDryRun, "dry-run", false, "Log intended actions without touching any system")
	cmd.Flags().BoolVar(&loopStage, "stage", false, "Run only drain and trigger on each pass")
	return cmd
}

func serveMetrics(app *app) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(app.metrics)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	app.logger.Info("metrics listening", "addr", app.cfg.MetricsAddr)
	if err := http.ListenAndServe(app.cfg.MetricsAddr, mux); err != nil {
		app.logger.Error("metrics listener stopped", "error", err)
	}
}
