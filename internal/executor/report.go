package executor

import (
	"fmt"
	"time"

	"github.com/kerem/stepchain/internal/runner"
)

// StepResult pairs a plan step with the result of its one attempt.
// Step numbers are 1-based to match the report format.
type StepResult struct {
	Step        int           `json:"step"`
	Description string        `json:"description"`
	Result      runner.Result `json:"result"`
}

// Summary is the aggregate section of a run report.
type Summary struct {
	TotalSteps     int       `json:"total_steps"`
	CompletedSteps int       `json:"completed_steps"`
	SuccessRate    string    `json:"success_rate"`
	ExecutionTime  time.Time `json:"execution_time"`
}

// RunReport is the final product of one plan run. It reflects exactly
// what was attempted; the core never mutates it after Run returns.
type RunReport struct {
	RunID    string       `json:"run_id"`
	Summary  Summary      `json:"summary"`
	Steps    []StepResult `json:"steps"`
	Warnings []string     `json:"warnings,omitempty"`
}

// BuildReport reduces accumulated step results into a report. Pure and
// deterministic: identical inputs produce identical reports.
//
// totalSteps is the plan length fixed at run start, independent of
// early termination. Completed counts only success outcomes, so a
// recorded non-critical failure stays visible without shrinking the
// denominator.
func BuildReport(runID string, totalSteps int, results []StepResult, generatedAt time.Time) RunReport {
	completed := 0
	for _, r := range results {
		if r.Result.Success() {
			completed++
		}
	}

	rate := "0%"
	if totalSteps > 0 {
		rate = fmt.Sprintf("%.1f%%", float64(completed)/float64(totalSteps)*100)
	}

	steps := make([]StepResult, len(results))
	copy(steps, results)

	return RunReport{
		RunID: runID,
		Summary: Summary{
			TotalSteps:     totalSteps,
			CompletedSteps: completed,
			SuccessRate:    rate,
			ExecutionTime:  generatedAt,
		},
		Steps: steps,
	}
}
