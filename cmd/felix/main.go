package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "felix",
		Short: "OCI maintenance orchestrator for Slurm clusters",
		Long: `Felix reconciles OCI instance maintenance events with a Slurm cluster:
it drains affected nodes, triggers the maintenance window, and records
health and finalize decisions for every host.`,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "f", "", "Config file (YAML)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(loopCmd())
	rootCmd.AddCommand(stageCmd())
	rootCmd.AddCommand(catchupCmd())
	rootCmd.AddCommand(discoverCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(drainCmd())
	rootCmd.AddCommand(maintenanceCmd())
	rootCmd.AddCommand(healthCmd())
	rootCmd.AddCommand(finalizeCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
