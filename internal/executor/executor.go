// Package executor drives an ordered plan through the process runner,
// one step at a time, applying the critical/non-critical continuation
// policy and reducing the results into a run report.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/kerem/stepchain/internal/plan"
	"github.com/kerem/stepchain/internal/runner"
)

// State is the executor's position in one run's lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StatePlanning  State = "planning"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	// StateStopped means a critical step failed and the remainder of
	// the plan was not attempted.
	StateStopped State = "stopped_on_critical_failure"
	// StateFailed means the run died to OS-level resource exhaustion.
	StateFailed State = "failed"
)

// ErrNoPlan is returned by Run when no plan has been set.
var ErrNoPlan = errors.New("executor: no plan set")

// DefaultStepPause is the courtesy pause between attempted steps, kept
// from the original so observers can catch up between subprocesses.
const DefaultStepPause = 2 * time.Second

// StepRunner executes a single instruction. Satisfied by
// *runner.Runner.
type StepRunner interface {
	Execute(ctx context.Context, instruction, stepContext string) (runner.Result, error)
}

// Events receives callbacks around each lifecycle transition. All
// methods are invoked from the Run goroutine, in execution order.
type Events interface {
	PlanAccepted(runID string, p *plan.Plan)
	RunStarted(runID string, totalSteps int)
	StepStarted(runID string, step, total int, description string)
	StepCompleted(runID string, step int, result runner.Result)
	StepSkipped(runID string, step int, reason string)
	RunCompleted(runID string, report RunReport)
}

// Executor runs one plan at a time. Independent plans run against
// independent Executor instances.
type Executor struct {
	runner StepRunner
	pause  time.Duration
	events Events

	state State
	plan  *plan.Plan
	runID string
}

func New(r StepRunner) *Executor {
	return &Executor{
		runner: r,
		pause:  DefaultStepPause,
		state:  StateIdle,
	}
}

// SetPause overrides the inter-step pause. Zero disables it; tests do
// this so runs finish immediately.
func (e *Executor) SetPause(d time.Duration) {
	e.pause = d
}

func (e *Executor) setEvents(ev Events) {
	e.events = ev
}

// State reports the current lifecycle state.
func (e *Executor) State() State {
	return e.state
}

// RunID identifies the run accepted by the last SetPlan.
func (e *Executor) RunID() string {
	return e.runID
}

// SetPlan accepts a plan and assigns it a run identifier. Kept
// separate from Run so observers can react to plan acceptance before
// the first subprocess spawns.
func (e *Executor) SetPlan(p *plan.Plan) {
	e.plan = p
	e.runID = uuid.NewString()
	e.state = StatePlanning

	log.Printf("plan accepted: %d steps (run %s)", p.Len(), e.runID)
	if e.events != nil {
		e.events.PlanAccepted(e.runID, p)
	}
}

// Run executes the accepted plan step by step and always returns a
// report covering exactly the steps that were attempted. The returned
// error is non-nil only for ErrNoPlan and for fatal resource
// exhaustion; step failures are report data.
func (e *Executor) Run(ctx context.Context) (RunReport, error) {
	if e.plan == nil {
		return RunReport{}, ErrNoPlan
	}

	total := e.plan.Len()
	e.state = StateRunning
	if e.events != nil {
		e.events.RunStarted(e.runID, total)
	}

	var (
		results  []StepResult
		warnings []string
	)

	for i, step := range e.plan.Steps {
		num := i + 1

		if step.Instruction == "" {
			warning := fmt.Sprintf("step %d has no instruction, skipping", num)
			warnings = append(warnings, warning)
			log.Printf("warning: %s", warning)
			if e.events != nil {
				e.events.StepSkipped(e.runID, num, warning)
			}
			continue
		}

		if e.events != nil {
			e.events.StepStarted(e.runID, num, total, step.Description)
		}

		res, err := e.runner.Execute(ctx, step.Instruction, step.Context)
		if err != nil {
			e.state = StateFailed
			report := e.finish(total, results, warnings)
			return report, fmt.Errorf("step %d: %w", num, err)
		}

		results = append(results, StepResult{
			Step:        num,
			Description: step.Description,
			Result:      res,
		})
		if e.events != nil {
			e.events.StepCompleted(e.runID, num, res)
		}

		if res.Outcome == runner.OutcomeCancelled {
			log.Printf("run cancelled at step %d", num)
			e.state = StateStopped
			break
		}
		if !res.Success() && step.Critical {
			log.Printf("critical step %d failed (%s), stopping plan", num, res.Outcome)
			e.state = StateStopped
			break
		}

		if num < total {
			e.stepPause(ctx)
		}
	}

	if e.state == StateRunning {
		e.state = StateCompleted
	}
	report := e.finish(total, results, warnings)
	if e.events != nil {
		e.events.RunCompleted(e.runID, report)
	}
	return report, nil
}

func (e *Executor) finish(total int, results []StepResult, warnings []string) RunReport {
	report := BuildReport(e.runID, total, results, time.Now())
	report.Warnings = warnings
	return report
}

// stepPause yields between steps so observers can drain queued events
// before the next subprocess spawns. A cancelled context cuts it short.
func (e *Executor) stepPause(ctx context.Context) {
	if e.pause <= 0 {
		return
	}
	timer := time.NewTimer(e.pause)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
