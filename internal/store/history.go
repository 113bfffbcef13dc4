package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/glebarez/go-sqlite"

	"github.com/kerem/stepchain/internal/executor"
)

// HistoryStore persists completed run reports so earlier sessions can
// be listed and inspected. Persistence here is a collaborator concern:
// the executing core never reads it back for control decisions.
type HistoryStore struct {
	DB *sql.DB
}

func NewHistoryStore(dbPath string) (*HistoryStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Create tables if not exist
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			task TEXT,
			total_steps INTEGER,
			completed_steps INTEGER,
			success_rate TEXT,
			executed_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS step_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT,
			step INTEGER,
			description TEXT,
			outcome TEXT,
			exit_status INTEGER,
			stdout TEXT,
			stderr TEXT,
			started_at DATETIME,
			finished_at DATETIME
		);`,
	}
	for _, q := range queries {
		_, err = db.Exec(q)
		if err != nil {
			return nil, err
		}
	}

	return &HistoryStore{DB: db}, nil
}

func (h *HistoryStore) Close() error {
	return h.DB.Close()
}

// SaveReport records a finished run and its per-step results.
func (h *HistoryStore) SaveReport(task string, report executor.RunReport) error {
	tx, err := h.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, task, total_steps, completed_steps, success_rate, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		report.RunID, task,
		report.Summary.TotalSteps, report.Summary.CompletedSteps,
		report.Summary.SuccessRate, report.Summary.ExecutionTime,
	)
	if err != nil {
		return err
	}

	for _, s := range report.Steps {
		_, err = tx.Exec(
			`INSERT INTO step_results (run_id, step, description, outcome, exit_status, stdout, stderr, started_at, finished_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			report.RunID, s.Step, s.Description,
			string(s.Result.Outcome), s.Result.ExitStatus,
			s.Result.Stdout, s.Result.Stderr,
			s.Result.StartedAt, s.Result.FinishedAt,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentRuns lists stored runs, newest first.
func (h *HistoryStore) RecentRuns(limit int) ([]RunRecord, error) {
	rows, err := h.DB.Query(
		`SELECT id, task, total_steps, completed_steps, success_rate, executed_at
		 FROM runs ORDER BY executed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.Task, &r.TotalSteps, &r.CompletedSteps, &r.SuccessRate, &r.ExecutedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunSteps returns the stored step results for one run, in step order.
func (h *HistoryStore) RunSteps(runID string) ([]StepRecord, error) {
	rows, err := h.DB.Query(
		`SELECT step, description, outcome, exit_status, started_at, finished_at
		 FROM step_results WHERE run_id = ? ORDER BY step`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []StepRecord
	for rows.Next() {
		var s StepRecord
		if err := rows.Scan(&s.Step, &s.Description, &s.Outcome, &s.ExitStatus, &s.StartedAt, &s.FinishedAt); err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}
