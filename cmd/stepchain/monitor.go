package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kerem/stepchain/internal/bus"
	"github.com/kerem/stepchain/internal/monitor"
	"github.com/kerem/stepchain/internal/procs"
	"github.com/kerem/stepchain/pkg/config"
)

var monitorMatch string

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Serve the live dashboard standalone, watching worker processes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		b := bus.New()
		go watchWorkers(ctx, b)

		log.Printf("monitor listening on :%d", cfg.Monitor.Port)
		return monitor.NewServer(b, cfg.Monitor.Port).Start(ctx)
	},
}

// watchWorkers publishes a log line whenever the set of matching
// worker processes changes, so a dashboard attached to an idle
// monitor still sees something useful.
func watchWorkers(ctx context.Context, b *bus.Bus) {
	inv := procs.NewInventory()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	seen := make(map[int]bool)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			found, err := inv.Find(monitorMatch)
			if err != nil {
				continue
			}
			current := make(map[int]bool, len(found))
			for _, p := range found {
				current[p.PID] = true
				if !seen[p.PID] {
					publishWorkerLog(b, "info", fmt.Sprintf(
						"worker %d started (%.1f MB): %s", p.PID, p.MemoryMB, p.Name))
				}
			}
			for pid := range seen {
				if !current[pid] {
					publishWorkerLog(b, "warning", fmt.Sprintf("worker %d exited", pid))
				}
			}
			seen = current
		}
	}
}

func publishWorkerLog(b *bus.Bus, level, message string) {
	b.Publish(bus.Event{
		Type: bus.EventLog,
		Data: map[string]any{"level": level, "message": message},
	})
}

func init() {
	monitorCmd.Flags().StringVar(&monitorMatch, "match", "codex", "substring to match against worker command lines")
	rootCmd.AddCommand(monitorCmd)
}
