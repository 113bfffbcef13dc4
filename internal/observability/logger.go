package observability

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypePlan       EventType = "plan"
	EventTypeStep       EventType = "step"
	EventTypeRun        EventType = "run"
	EventTypeWarning    EventType = "warning"
	EventTypeTranscript EventType = "transcript"
	EventTypeHeartbeat  EventType = "heartbeat"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger handles structured logging. Ordinary events go to stdout as
// JSON lines; subprocess transcripts additionally go to a size-capped
// file so step output survives the scrollback.
type Logger struct {
	transcriptPath string
	maxSize        int64
}

func NewLogger() *Logger {
	return &Logger{
		transcriptPath: filepath.Join("logs", "transcripts.jsonl"),
		maxSize:        10 * 1024 * 1024, // 10MB
	}
}

// Log emits a structured JSON event to stdout.
func (l *Logger) Log(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		fmt.Printf("{\"error\": \"failed to marshal event: %v\"}\n", err)
		return
	}
	fmt.Println(string(data))

	if evt.Type == EventTypeTranscript {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.transcriptPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	// Check size before writing
	info, err := os.Stat(l.transcriptPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.transcriptPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// Simple rotation: keep one .old file
	oldPath := l.transcriptPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.transcriptPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogPlan(runID, task string, totalSteps int) {
	l.Log(Event{
		Type:  EventTypePlan,
		RunID: runID,
		Data: map[string]any{
			"task":        task,
			"total_steps": totalSteps,
		},
	})
}

func (l *Logger) LogStep(runID string, step int, description, outcome string) {
	l.Log(Event{
		Type:  EventTypeStep,
		RunID: runID,
		Data: map[string]any{
			"step":        step,
			"description": description,
			"outcome":     outcome,
		},
	})
}

func (l *Logger) LogWarning(runID, message string) {
	l.Log(Event{
		Type:  EventTypeWarning,
		RunID: runID,
		Data:  map[string]string{"message": message},
	})
}

func (l *Logger) LogRunSummary(runID string, totalSteps, completedSteps int, successRate string) {
	l.Log(Event{
		Type:  EventTypeRun,
		RunID: runID,
		Data: map[string]any{
			"total_steps":     totalSteps,
			"completed_steps": completedSteps,
			"success_rate":    successRate,
		},
	})
}

func (l *Logger) LogHeartbeat() {
	l.Log(Event{
		Type: EventTypeHeartbeat,
		Data: map[string]string{"status": "alive"},
	})
}

// LogTranscript records a step's captured subprocess output. This is
// the only event family that also lands in the transcript file.
func (l *Logger) LogTranscript(runID string, step int, stdout, stderr string) {
	l.Log(Event{
		Type:  EventTypeTranscript,
		RunID: runID,
		Data: map[string]any{
			"step":   step,
			"stdout": stdout,
			"stderr": stderr,
		},
	})
}
