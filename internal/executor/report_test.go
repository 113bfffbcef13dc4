package executor

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/kerem/stepchain/internal/runner"
)

func result(outcome runner.Outcome) runner.Result {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return runner.Result{StartedAt: at, FinishedAt: at, Outcome: outcome}
}

func TestBuildReport_Counts(t *testing.T) {
	results := []StepResult{
		{Step: 1, Description: "a", Result: result(runner.OutcomeSuccess)},
		{Step: 2, Description: "b", Result: result(runner.OutcomeFailure)},
		{Step: 3, Description: "c", Result: result(runner.OutcomeSuccess)},
	}

	report := BuildReport("run-1", 4, results, time.Unix(0, 0))
	if report.Summary.TotalSteps != 4 {
		t.Errorf("total = %d", report.Summary.TotalSteps)
	}
	if report.Summary.CompletedSteps != 2 {
		t.Errorf("completed = %d", report.Summary.CompletedSteps)
	}
	if report.Summary.SuccessRate != "50.0%" {
		t.Errorf("rate = %s", report.Summary.SuccessRate)
	}
}

func TestBuildReport_EmptyPlanGuard(t *testing.T) {
	report := BuildReport("run-1", 0, nil, time.Unix(0, 0))
	if report.Summary.SuccessRate != "0%" {
		t.Errorf("rate = %s, want the 0%% division guard", report.Summary.SuccessRate)
	}
}

func TestBuildReport_Idempotent(t *testing.T) {
	results := []StepResult{
		{Step: 1, Description: "a", Result: result(runner.OutcomeSuccess)},
	}
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	first, err := json.Marshal(BuildReport("run-1", 1, results, at))
	if err != nil {
		t.Fatal(err)
	}
	second, err := json.Marshal(BuildReport("run-1", 1, results, at))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("identical inputs produced different reports")
	}
}

func TestBuildReport_CopiesResults(t *testing.T) {
	results := []StepResult{{Step: 1, Description: "a", Result: result(runner.OutcomeSuccess)}}
	report := BuildReport("run-1", 1, results, time.Unix(0, 0))

	results[0].Description = "mutated"
	if report.Steps[0].Description != "a" {
		t.Error("report aliases the caller's slice")
	}
}

func TestReportFieldNames(t *testing.T) {
	report := BuildReport("run-1", 1, []StepResult{
		{Step: 1, Description: "a", Result: result(runner.OutcomeSuccess)},
	}, time.Unix(0, 0))

	data, err := json.Marshal(report)
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}

	summary, ok := decoded["summary"].(map[string]any)
	if !ok {
		t.Fatal("missing summary object")
	}
	for _, field := range []string{"total_steps", "completed_steps", "success_rate"} {
		if _, ok := summary[field]; !ok {
			t.Errorf("summary missing stable field %q", field)
		}
	}

	steps, ok := decoded["steps"].([]any)
	if !ok || len(steps) != 1 {
		t.Fatal("missing steps array")
	}
	step := steps[0].(map[string]any)
	for _, field := range []string{"step", "description", "result"} {
		if _, ok := step[field]; !ok {
			t.Errorf("steps[] missing stable field %q", field)
		}
	}
}
