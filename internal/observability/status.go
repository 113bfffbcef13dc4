package observability

import (
	"sync"
	"time"
)

type Phase string

const (
	PhaseIdle     Phase = "IDLE"
	PhasePlanning Phase = "PLANNING"
	PhaseRunning  Phase = "RUNNING"
	PhaseDone     Phase = "DONE"
)

type SystemStatus struct {
	mu            sync.RWMutex
	CurrentPhase  Phase
	CurrentStep   string
	LastHeartbeat time.Time
}

var globalStatus = &SystemStatus{
	CurrentPhase:  PhaseIdle,
	LastHeartbeat: time.Now(),
}

// SetStatus updates the global system status.
func SetStatus(phase Phase, step string) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.CurrentPhase = phase
	globalStatus.CurrentStep = step
}

// GetStatus retrieves a copy of the global system status.
func GetStatus() (Phase, string, time.Time) {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	return globalStatus.CurrentPhase, globalStatus.CurrentStep, globalStatus.LastHeartbeat
}

// Heartbeat updates the last heartbeat time.
func Heartbeat() {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.LastHeartbeat = time.Now()
}
