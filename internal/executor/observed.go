package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/kerem/stepchain/internal/bus"
	"github.com/kerem/stepchain/internal/plan"
	"github.com/kerem/stepchain/internal/runner"
)

// Observed wraps an Executor and publishes one bus event per lifecycle
// transition. The wrapping is transparent: callers get the exact
// RunReport they would get from the bare executor.
type Observed struct {
	inner *Executor
	bus   *bus.Bus
}

func NewObserved(inner *Executor, b *bus.Bus) *Observed {
	o := &Observed{inner: inner, bus: b}
	inner.setEvents(o)
	return o
}

func (o *Observed) SetPlan(p *plan.Plan) {
	o.inner.SetPlan(p)
}

func (o *Observed) Run(ctx context.Context) (RunReport, error) {
	return o.inner.Run(ctx)
}

func (o *Observed) State() State {
	return o.inner.State()
}

func (o *Observed) RunID() string {
	return o.inner.RunID()
}

// Events implementation. Each callback runs on the executor goroutine;
// bus publication never blocks, so execution pace is unaffected.

func (o *Observed) PlanAccepted(runID string, p *plan.Plan) {
	descriptions := make([]string, p.Len())
	for i, s := range p.Steps {
		descriptions[i] = s.Description
	}
	o.publish(bus.EventPlanSet, runID, map[string]any{
		"task":        p.Task,
		"total_steps": p.Len(),
		"steps":       descriptions,
	})
	o.logf(runID, "info", "plan received: %d steps", p.Len())
}

func (o *Observed) RunStarted(runID string, totalSteps int) {
	o.publish(bus.EventRunStarted, runID, map[string]any{
		"total_steps": totalSteps,
	})
	o.logf(runID, "info", "starting plan execution")
}

func (o *Observed) StepStarted(runID string, step, total int, description string) {
	o.publish(bus.EventStepStarted, runID, map[string]any{
		"step":        step,
		"total":       total,
		"description": description,
	})
	o.logf(runID, "info", "step %d/%d: %s", step, total, description)
}

func (o *Observed) StepCompleted(runID string, step int, result runner.Result) {
	o.publish(bus.EventStepCompleted, runID, map[string]any{
		"step":     step,
		"outcome":  result.Outcome,
		"duration": result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond).String(),
	})
	if result.Success() {
		o.logf(runID, "success", "step %d completed", step)
	} else {
		o.logf(runID, "error", "step %d ended with %s", step, result.Outcome)
	}
}

func (o *Observed) StepSkipped(runID string, step int, reason string) {
	o.logf(runID, "warning", "%s", reason)
}

func (o *Observed) RunCompleted(runID string, report RunReport) {
	o.publish(bus.EventRunCompleted, runID, map[string]any{
		"total_steps":     report.Summary.TotalSteps,
		"completed_steps": report.Summary.CompletedSteps,
		"success_rate":    report.Summary.SuccessRate,
	})
	o.logf(runID, "success", "execution completed: %s", report.Summary.SuccessRate)
}

func (o *Observed) publish(t bus.EventType, runID string, data map[string]any) {
	o.bus.Publish(bus.Event{Type: t, RunID: runID, Data: data})
}

func (o *Observed) logf(runID, level, format string, args ...any) {
	o.bus.Publish(bus.Event{
		Type:  bus.EventLog,
		RunID: runID,
		Data: map[string]any{
			"level":   level,
			"message": fmt.Sprintf(format, args...),
		},
	})
}
