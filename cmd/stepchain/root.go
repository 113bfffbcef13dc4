package main

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile   string
	noBanner  bool
	withWatch bool
)

var rootCmd = &cobra.Command{
	Use:   "stepchain",
	Short: "Master→worker plan execution over a supervised CLI subprocess",
	Long: `stepchain runs an ordered plan of work steps, delegating each step to
a worker CLI as a supervised subprocess: prompt over stdin, output
captured, timeout enforced, outcome classified.

Critical steps halt the plan on failure; non-critical failures are
recorded and execution continues. Observers can watch a run live over
the monitor's WebSocket channel without affecting it.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "stepchain.yaml", "config file")
	rootCmd.PersistentFlags().BoolVar(&noBanner, "no-banner", false, "skip the startup banner and status line")
	rootCmd.PersistentFlags().BoolVar(&withWatch, "monitor", false, "serve the live monitor during the run")
}
