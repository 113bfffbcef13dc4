//go:build !linux

package procs

import (
	"errors"
	"time"
)

var errUnsupported = errors.New("process inventory requires /proc")

// ProcessInfo describes one matched OS process.
type ProcessInfo struct {
	PID        int       `json:"pid"`
	Name       string    `json:"name"`
	Cmdline    string    `json:"cmdline"`
	StartedAt  time.Time `json:"started_at"`
	CPUPercent float64   `json:"cpu_percent"`
	MemoryMB   float64   `json:"memory_mb"`
	State      string    `json:"state"`
}

type Inventory struct{}

func NewInventory() *Inventory { return &Inventory{} }

func (inv *Inventory) Find(substr string) ([]ProcessInfo, error) {
	return nil, errUnsupported
}

func (inv *Inventory) Alive(pid int) bool { return false }

func (inv *Inventory) Terminate(pid int, force bool) error {
	return errUnsupported
}
