package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kerem/stepchain/internal/bus"
	"github.com/kerem/stepchain/internal/executor"
	"github.com/kerem/stepchain/internal/monitor"
	"github.com/kerem/stepchain/internal/notify"
	"github.com/kerem/stepchain/internal/observability"
	"github.com/kerem/stepchain/internal/plan"
	"github.com/kerem/stepchain/internal/runner"
	"github.com/kerem/stepchain/internal/session"
	"github.com/kerem/stepchain/internal/store"
	"github.com/kerem/stepchain/pkg/config"
)

var resumeSession bool

var runCmd = &cobra.Command{
	Use:   "run <plan.json>",
	Short: "Execute a plan file step by step",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := plan.Load(args[0])
		if err != nil {
			return err
		}
		return executePlan(cmd.Context(), p)
	},
}

var quickCmd = &cobra.Command{
	Use:   "quick <instruction>",
	Short: "Run a single instruction as a one-step plan",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		instruction := strings.Join(args, " ")
		p := plan.New(instruction, []plan.Step{{
			Description: "Quick task",
			Instruction: instruction,
			Critical:    true,
		}})
		return executePlan(cmd.Context(), p)
	},
}

var templateCmd = &cobra.Command{
	Use:   "template <type> <description>",
	Short: "Execute a canned plan (create_project, add_feature, debug_fix, refactor)",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, ok := plan.FromTemplate(args[0], strings.Join(args[1:], " "))
		if !ok {
			return fmt.Errorf("unknown task type %q (available: %s)",
				args[0], strings.Join(plan.TemplateNames(), ", "))
		}
		return executePlan(cmd.Context(), p)
	},
}

func init() {
	for _, c := range []*cobra.Command{runCmd, quickCmd, templateCmd} {
		c.Flags().BoolVar(&resumeSession, "resume", false, "feed the latest project session summary into the first step")
		rootCmd.AddCommand(c)
	}
}

func executePlan(parent context.Context, p *plan.Plan) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	if !noBanner {
		observability.PrintBanner()
		observability.InitializeTerminal()
		defer observability.CleanupTerminal()
		// Route all log output through the terminal mutex so it never
		// interrupts the status line's cursor save/restore sequence.
		log.SetOutput(observability.NewTermWriter())
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := runner.New(runner.Config{
		Binary:  cfg.Runner.Binary,
		WorkDir: cfg.Runner.WorkDir,
		Timeout: cfg.Runner.Timeout(),
	})

	version, err := r.Verify(ctx)
	if err != nil {
		return fmt.Errorf("worker CLI not ready: %w", err)
	}
	log.Printf("worker CLI ready: %s", version)

	lintPlan(cfg, p)

	if resumeSession {
		attachSessionContext(cfg, p)
	}

	b := bus.New()
	core := executor.New(r)
	core.SetPause(cfg.Runner.StepPause())
	observed := executor.NewObserved(core, b)

	go statusLoop(ctx, b)

	if withWatch || cfg.Monitor.Enabled {
		srv := monitor.NewServer(b, cfg.Monitor.Port)
		go func() {
			if err := srv.Start(ctx); err != nil {
				log.Printf("monitor server failed: %v", err)
			}
		}()
	}

	if tg := cfg.Notify.Telegram; tg.Enabled {
		notifier, err := notify.NewTelegramNotifier(tg.Token, tg.ChatID)
		if err != nil {
			log.Printf("telegram notifier unavailable: %v", err)
		} else {
			go notify.Watch(ctx, b, notifier)
		}
	}

	if !noBanner {
		go func() {
			ticker := time.NewTicker(1 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					observability.PrintLiveStatus()
				}
			}
		}()
	}

	observed.SetPlan(p)
	report, runErr := observed.Run(ctx)
	observability.SetStatus(observability.PhaseDone, "")

	persistReport(cfg, p, report)

	if runErr != nil {
		return fmt.Errorf("run %s aborted: %w", report.RunID, runErr)
	}

	log.Printf("completed: %d/%d steps, success rate %s",
		report.Summary.CompletedSteps, report.Summary.TotalSteps, report.Summary.SuccessRate)
	return nil
}

func lintPlan(cfg *config.Config, p *plan.Plan) {
	linter := plan.NewLinter()
	for _, pattern := range cfg.Lint.RestrictedPatterns {
		if err := linter.Restrict(pattern); err != nil {
			log.Printf("bad restricted pattern %q: %v", pattern, err)
		}
	}
	for _, finding := range linter.Check(p) {
		log.Printf("plan warning (step %d): %s", finding.Step, finding.Reason)
	}
}

func attachSessionContext(cfg *config.Config, p *plan.Plan) {
	mgr := session.NewManager(cfg.Runner.WorkDir)
	latest, ok := mgr.Latest()
	if !ok {
		log.Printf("no previous session found for %s", cfg.Runner.WorkDir)
		return
	}
	summary, err := mgr.ContextSummary(latest, 0)
	if err != nil || summary == "" {
		return
	}
	if len(p.Steps) > 0 {
		if p.Steps[0].Context != "" {
			p.Steps[0].Context += "\n\n"
		}
		p.Steps[0].Context += summary
		log.Printf("resuming with context from %s", latest)
	}
}

// statusLoop mirrors run progress into the status line and the
// structured log. It is just another bus observer.
func statusLoop(ctx context.Context, b *bus.Bus) {
	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	logger := observability.NewLogger()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			observability.Heartbeat()
			data, _ := evt.Data.(map[string]any)
			switch evt.Type {
			case bus.EventPlanSet:
				observability.SetStatus(observability.PhasePlanning, "")
				task, _ := data["task"].(string)
				total, _ := data["total_steps"].(int)
				logger.LogPlan(evt.RunID, task, total)
			case bus.EventRunStarted:
				observability.SetStatus(observability.PhaseRunning, "")
			case bus.EventStepStarted:
				desc, _ := data["description"].(string)
				observability.SetStatus(observability.PhaseRunning, desc)
			case bus.EventStepCompleted:
				step, _ := data["step"].(int)
				outcome := fmt.Sprintf("%v", data["outcome"])
				logger.LogStep(evt.RunID, step, "", outcome)
			case bus.EventRunCompleted:
				observability.SetStatus(observability.PhaseDone, "")
			}
		}
	}
}

// persistReport is best effort on both sinks: a failed write is logged,
// never fatal, and the report the caller holds stays authoritative.
func persistReport(cfg *config.Config, p *plan.Plan, report executor.RunReport) {
	sink := store.NewJSONReportSink(cfg.Store.ReportsDir)
	if path, err := sink.Write(report); err != nil {
		log.Printf("report not written: %v", err)
	} else {
		log.Printf("report saved: %s", path)
	}

	history, err := store.NewHistoryStore(cfg.Store.Path)
	if err != nil {
		log.Printf("history store unavailable: %v", err)
		return
	}
	defer history.Close()
	if err := history.SaveReport(p.Task, report); err != nil {
		log.Printf("run not recorded in history: %v", err)
	}
}
