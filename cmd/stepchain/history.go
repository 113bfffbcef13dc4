package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kerem/stepchain/internal/store"
	"github.com/kerem/stepchain/pkg/config"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recent runs, or the step results of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		h, err := store.NewHistoryStore(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer h.Close()

		if len(args) == 1 {
			return printRunSteps(h, args[0])
		}

		runs, err := h.RecentRuns(historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("no runs recorded yet")
			return nil
		}
		for _, r := range runs {
			task := r.Task
			if len(task) > 48 {
				task = task[:45] + "..."
			}
			fmt.Printf("%s  %s  %d/%d steps  %s  %s\n",
				r.ExecutedAt.Format("2006-01-02 15:04"), r.ID,
				r.CompletedSteps, r.TotalSteps, r.SuccessRate, task)
		}
		return nil
	},
}

func printRunSteps(h *store.HistoryStore, runID string) error {
	steps, err := h.RunSteps(runID)
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		fmt.Printf("no steps recorded for run %s\n", runID)
		return nil
	}
	for _, s := range steps {
		fmt.Printf("%3d  %-12s exit=%-3d %s  %s\n",
			s.Step, s.Outcome, s.ExitStatus,
			s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond), s.Description)
	}
	return nil
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of recent runs to show")
	rootCmd.AddCommand(historyCmd)
}
