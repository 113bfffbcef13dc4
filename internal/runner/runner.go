// Package runner supervises one worker CLI subprocess per instruction:
// spawn, feed the prompt over stdin, capture output, enforce the
// timeout and classify how the attempt ended.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// Outcome classifies how a step's subprocess attempt ended.
type Outcome string

const (
	OutcomeSuccess    Outcome = "success"
	OutcomeFailure    Outcome = "failure"
	OutcomeTimeout    Outcome = "timeout"
	OutcomeSpawnError Outcome = "spawn_error"
	OutcomeCancelled  Outcome = "cancelled"
)

// ErrResourceExhausted is returned when the OS cannot give us a process
// or a pipe at all. Unlike the expected failure modes it is fatal to
// the run.
var ErrResourceExhausted = errors.New("runner: resource exhausted")

const (
	// DefaultTimeout matches the original 5 minute budget per step.
	DefaultTimeout = 300 * time.Second

	// killGrace is how long a terminated subprocess gets to exit
	// before it is killed outright.
	killGrace = 5 * time.Second

	verifyTimeout = 5 * time.Second
)

// workerArgs is the fixed non-interactive invocation of the worker CLI.
var workerArgs = []string{
	"exec",
	"--dangerously-bypass-approvals-and-sandbox",
	"--skip-git-repo-check",
	"--json",
}

// Result records one subprocess attempt. Expected failures (non-zero
// exit, timeout, missing binary) live in Outcome, never in an error.
type Result struct {
	Instruction string    `json:"instruction"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Stdout      string    `json:"stdout,omitempty"`
	Stderr      string    `json:"stderr,omitempty"`
	ExitStatus  int       `json:"exit_status"`
	Outcome     Outcome   `json:"outcome"`
}

// Success reports whether the attempt completed with a zero exit.
func (r Result) Success() bool {
	return r.Outcome == OutcomeSuccess
}

// Config is the explicit construction-time configuration. There are no
// package-level defaults for the binary path or working directory.
type Config struct {
	Binary  string
	WorkDir string
	Timeout time.Duration
}

// Runner executes instructions against a fixed worker CLI binary from a
// fixed working directory. Safe for use from a single run at a time;
// the audit log is safe to read concurrently.
type Runner struct {
	binary  string
	workDir string
	timeout time.Duration

	mu  sync.Mutex
	log []Result
}

func New(cfg Config) *Runner {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	workDir := cfg.WorkDir
	if workDir == "" {
		workDir, _ = os.Getwd()
	}
	return &Runner{
		binary:  cfg.Binary,
		workDir: workDir,
		timeout: timeout,
	}
}

// Verify checks that the worker binary exists and answers --version.
// Returns the reported version string.
func (r *Runner) Verify(ctx context.Context) (string, error) {
	if _, err := os.Stat(r.binary); err != nil {
		return "", fmt.Errorf("worker binary not found at %s: %w", r.binary, err)
	}

	vctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	out, err := exec.CommandContext(vctx, r.binary, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("worker binary not responding: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Execute runs one instruction to completion. The prompt sent to the
// subprocess is context + blank line + instruction when context is
// non-empty, the bare instruction otherwise.
//
// The returned error is non-nil only for OS-level resource exhaustion;
// every expected failure mode is reported through Result.Outcome.
func (r *Runner) Execute(ctx context.Context, instruction, stepContext string) (Result, error) {
	result := Result{
		Instruction: instruction,
		StartedAt:   time.Now(),
	}

	payload := instruction
	if stepContext != "" {
		payload = stepContext + "\n\n" + instruction
	}

	cmd := exec.Command(r.binary, workerArgs...)
	cmd.Dir = r.workDir
	cmd.Env = append(os.Environ(),
		"NO_COLOR=1",
		"FORCE_COLOR=0",
		"TERM=dumb",
	)

	// Bound the post-exit wait so a grandchild holding our pipes open
	// cannot stall result classification.
	cmd.WaitDelay = killGrace

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return result, fmt.Errorf("%w: stdin pipe: %v", ErrResourceExhausted, err)
	}

	if err := cmd.Start(); err != nil {
		if isResourceExhaustion(err) {
			return result, fmt.Errorf("%w: %v", ErrResourceExhausted, err)
		}
		result.FinishedAt = time.Now()
		result.ExitStatus = -1
		result.Outcome = OutcomeSpawnError
		result.Stderr = err.Error()
		r.record(result)
		return result, nil
	}

	// Deliver the prompt and signal end-of-input. A write failure here
	// means the subprocess already died; Wait will classify that.
	_, _ = stdin.Write([]byte(payload))
	_ = stdin.Close()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		result.Outcome, result.ExitStatus = classifyExit(err)
	case <-timer.C:
		r.terminate(cmd, done)
		result.Outcome = OutcomeTimeout
		result.ExitStatus = -1
	case <-ctx.Done():
		r.terminate(cmd, done)
		result.Outcome = OutcomeCancelled
		result.ExitStatus = -1
	}

	result.FinishedAt = time.Now()
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
	r.record(result)
	return result, nil
}

// terminate asks the subprocess to exit and kills it if it does not
// comply within the grace period.
func (r *Runner) terminate(cmd *exec.Cmd, done <-chan error) {
	_ = cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-done:
		return
	case <-time.After(killGrace):
	}
	_ = cmd.Process.Kill()
	<-done
}

func classifyExit(err error) (Outcome, int) {
	if err == nil {
		return OutcomeSuccess, 0
	}
	// The process itself exited cleanly; only the pipe drain hit the
	// wait delay.
	if errors.Is(err, exec.ErrWaitDelay) {
		return OutcomeSuccess, 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return OutcomeFailure, exitErr.ExitCode()
	}
	return OutcomeFailure, -1
}

func isResourceExhaustion(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.ENOMEM)
}

func (r *Runner) record(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, res)
}

// Log returns a snapshot of every result this runner has produced, in
// execution order. The snapshot is a copy; callers may keep it.
func (r *Runner) Log() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Result, len(r.log))
	copy(out, r.log)
	return out
}
