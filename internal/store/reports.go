package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kerem/stepchain/internal/executor"
)

// JSONReportSink writes each completed run report to its own file, the
// same naming the original reports used. Writing is best effort: the
// caller logs a failure and moves on.
type JSONReportSink struct {
	Dir string
}

func NewJSONReportSink(dir string) *JSONReportSink {
	if dir == "" {
		dir = "."
	}
	return &JSONReportSink{Dir: dir}
}

// Write persists the report and returns the file path it landed in.
func (s *JSONReportSink) Write(report executor.RunReport) (string, error) {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return "", fmt.Errorf("create reports directory: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}

	name := fmt.Sprintf("codex_report_%s.json", report.Summary.ExecutionTime.Format("20060102_150405"))
	path := filepath.Join(s.Dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
