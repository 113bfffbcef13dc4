//go:build linux

// Package procs is the OS-level process inventory collaborator: it
// finds worker subprocesses by command-line substring and can take them
// down, gracefully first. The executing core never depends on it.
package procs

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// linux exposes clock ticks via sysconf; 100 holds on every platform
// this tool targets.
const clockTicks = 100

const termGrace = 2 * time.Second

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

// Inventory scans the proc filesystem. The root is configurable so
// tests can point it at a fixture tree.
type Inventory struct {
	procRoot string
}

func NewInventory() *Inventory {
	return &Inventory{procRoot: "/proc"}
}

// Find returns every process whose command line contains substr,
// case-insensitively. Processes that disappear mid-scan are skipped.
func (inv *Inventory) Find(substr string) ([]ProcessInfo, error) {
	entries, err := os.ReadDir(inv.procRoot)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", inv.procRoot, err)
	}

	needle := strings.ToLower(substr)
	var matches []ProcessInfo
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}

		cmdline, err := inv.cmdline(pid)
		if err != nil || cmdline == "" {
			continue
		}
		if !strings.Contains(strings.ToLower(cmdline), needle) {
			continue
		}

		info, err := inv.inspect(pid)
		if err != nil {
			continue
		}
		info.Cmdline = cmdline
		matches = append(matches, info)
	}
	return matches, nil
}

func (inv *Inventory) cmdline(pid int) (string, error) {
	raw, err := os.ReadFile(filepath.Join(inv.procRoot, strconv.Itoa(pid), "cmdline"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(bytes.ReplaceAll(raw, []byte{0}, []byte{' '}))), nil
}

func (inv *Inventory) inspect(pid int) (ProcessInfo, error) {
	info := ProcessInfo{PID: pid}

	name, state, startTicks, cpu1, err := inv.readStat(pid)
	if err != nil {
		return info, err
	}
	info.Name = name
	info.State = state
	info.StartedAt = inv.bootTime().Add(time.Duration(startTicks) * time.Second / clockTicks)

	// Two samples, psutil-style, so the figure reflects current load
	// rather than a lifetime average.
	time.Sleep(100 * time.Millisecond)
	_, _, _, cpu2, err := inv.readStat(pid)
	if err == nil && cpu2 >= cpu1 {
		info.CPUPercent = float64(cpu2-cpu1) / clockTicks / 0.1 * 100
	}

	info.MemoryMB = inv.residentMB(pid)
	return info, nil
}

// readStat parses /proc/[pid]/stat. The comm field may contain spaces,
// so fields are counted from the closing paren.
func (inv *Inventory) readStat(pid int) (name, state string, startTicks, cpuTicks uint64, err error) {
	raw, err := os.ReadFile(filepath.Join(inv.procRoot, strconv.Itoa(pid), "stat"))
	if err != nil {
		return "", "", 0, 0, err
	}

	s := string(raw)
	open := strings.IndexByte(s, '(')
	end := strings.LastIndexByte(s, ')')
	if open < 0 || end < open {
		return "", "", 0, 0, fmt.Errorf("malformed stat for pid %d", pid)
	}
	name = s[open+1 : end]

	fields := strings.Fields(s[end+2:])
	// fields[0] is state (stat field 3); utime/stime are fields 14/15,
	// starttime is field 22.
	if len(fields) < 20 {
		return "", "", 0, 0, fmt.Errorf("short stat for pid %d", pid)
	}
	state = fields[0]
	utime, _ := strconv.ParseUint(fields[11], 10, 64)
	stime, _ := strconv.ParseUint(fields[12], 10, 64)
	startTicks, _ = strconv.ParseUint(fields[19], 10, 64)
	return name, state, startTicks, utime + stime, nil
}

func (inv *Inventory) residentMB(pid int) float64 {
	raw, err := os.ReadFile(filepath.Join(inv.procRoot, strconv.Itoa(pid), "status"))
	if err != nil {
		return 0
	}
	for _, line := range strings.Split(string(raw), "\n") {
		if !strings.HasPrefix(line, "VmRSS:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0
		}
		kb, _ := strconv.ParseFloat(fields[1], 64)
		return kb / 1024
	}
	return 0
}

func (inv *Inventory) bootTime() time.Time {
	raw, err := os.ReadFile(filepath.Join(inv.procRoot, "stat"))
	if err != nil {
		return time.Time{}
	}
	for _, line := range strings.Split(string(raw), "\n") {
		if !strings.HasPrefix(line, "btime ") {
			continue
		}
		sec, _ := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(line, "btime ")), 10, 64)
		return time.Unix(sec, 0)
	}
	return time.Time{}
}

// Alive reports whether the pid still exists.
func (inv *Inventory) Alive(pid int) bool {
	_, err := os.Stat(filepath.Join(inv.procRoot, strconv.Itoa(pid)))
	return err == nil
}

// Terminate asks the process to exit and escalates to SIGKILL if it is
// still alive after the grace period. force skips the graceful phase.
func (inv *Inventory) Terminate(pid int, force bool) error {
	if !inv.Alive(pid) {
		return fmt.Errorf("pid %d not found", pid)
	}

	if !force {
		if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
			return fmt.Errorf("terminate pid %d: %w", pid, err)
		}
		deadline := time.Now().Add(termGrace)
		for time.Now().Before(deadline) {
			if !inv.Alive(pid) {
				return nil
			}
			time.Sleep(50 * time.Millisecond)
		}
	}

	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && inv.Alive(pid) {
		return fmt.Errorf("kill pid %d: %w", pid, err)
	}
	return nil
}
