package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kerem/stepchain/internal/procs"
)

var (
	psMatch string
	psKill  int
	psForce bool
)

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List running worker processes, or terminate one",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		inv := procs.NewInventory()

		if psKill > 0 {
			if err := inv.Terminate(psKill, psForce); err != nil {
				return fmt.Errorf("terminate %d: %w", psKill, err)
			}
			fmt.Printf("terminated %d\n", psKill)
			return nil
		}

		found, err := inv.Find(psMatch)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			fmt.Printf("no processes matching %q\n", psMatch)
			return nil
		}

		fmt.Printf("%-8s %-6s %-6s %-8s %-8s %s\n", "PID", "STATE", "CPU%", "MEM(MB)", "UPTIME", "CMDLINE")
		for _, p := range found {
			cmdline := p.Cmdline
			if len(cmdline) > 60 {
				cmdline = cmdline[:57] + "..."
			}
			uptime := time.Since(p.StartedAt).Round(time.Second)
			fmt.Printf("%-8d %-6s %-6.1f %-8.1f %-8s %s\n",
				p.PID, p.State, p.CPUPercent, p.MemoryMB, uptime, cmdline)
		}
		return nil
	},
}

func init() {
	psCmd.Flags().StringVar(&psMatch, "match", "codex", "substring to match against process command lines")
	psCmd.Flags().IntVar(&psKill, "kill", 0, "terminate the given PID instead of listing")
	psCmd.Flags().BoolVar(&psForce, "force", false, "skip the graceful TERM and kill immediately")
	rootCmd.AddCommand(psCmd)
}
