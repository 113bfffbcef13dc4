package store

import "time"

// RunRecord is one stored run's summary row.
type RunRecord struct {
	ID             string    `json:"id"`
	Task           string    `json:"task"`
	TotalSteps     int       `json:"total_steps"`
	CompletedSteps int       `json:"completed_steps"`
	SuccessRate    string    `json:"success_rate"`
	ExecutedAt     time.Time `json:"executed_at"`
}

// StepRecord is one stored step result row.
type StepRecord struct {
	Step        int       `json:"step"`
	Description string    `json:"description"`
	Outcome     string    `json:"outcome"`
	ExitStatus  int       `json:"exit_status"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}
