package runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeWorker writes an executable shell script that stands in for the
// worker CLI. The fixed CLI flags are ignored by the script.
func fakeWorker(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-worker")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExecute_Success(t *testing.T) {
	bin := fakeWorker(t, "cat")
	r := New(Config{Binary: bin, Timeout: 10 * time.Second})

	res, err := r.Execute(context.Background(), "list files", "")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %s, want success (stderr: %s)", res.Outcome, res.Stderr)
	}
	if res.ExitStatus != 0 {
		t.Errorf("exit status = %d", res.ExitStatus)
	}
	if res.Stdout != "list files" {
		t.Errorf("payload not delivered over stdin, stdout = %q", res.Stdout)
	}
	if !res.Success() {
		t.Error("Success() = false for success outcome")
	}
}

func TestExecute_ContextPrependedToPayload(t *testing.T) {
	bin := fakeWorker(t, "cat")
	r := New(Config{Binary: bin, Timeout: 10 * time.Second})

	res, err := r.Execute(context.Background(), "add feature", "repo uses Go")
	if err != nil {
		t.Fatal(err)
	}
	if res.Stdout != "repo uses Go\n\nadd feature" {
		t.Errorf("payload = %q", res.Stdout)
	}
}

func TestExecute_NonZeroExit(t *testing.T) {
	bin := fakeWorker(t, "echo boom >&2; exit 3")
	r := New(Config{Binary: bin, Timeout: 10 * time.Second})

	res, err := r.Execute(context.Background(), "x", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeFailure {
		t.Fatalf("outcome = %s, want failure", res.Outcome)
	}
	if res.ExitStatus != 3 {
		t.Errorf("exit status = %d, want 3", res.ExitStatus)
	}
	if !strings.Contains(res.Stderr, "boom") {
		t.Errorf("stderr = %q", res.Stderr)
	}
}

func TestExecute_Timeout(t *testing.T) {
	bin := fakeWorker(t, "exec sleep 5")
	r := New(Config{Binary: bin, Timeout: 1 * time.Second})

	start := time.Now()
	res, err := r.Execute(context.Background(), "x", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeTimeout {
		t.Fatalf("outcome = %s, want timeout", res.Outcome)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("timeout took %v, expected roughly the 1s budget", elapsed)
	}
}

func TestExecute_Cancelled(t *testing.T) {
	bin := fakeWorker(t, "exec sleep 5")
	r := New(Config{Binary: bin, Timeout: 30 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	res, err := r.Execute(ctx, "x", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeCancelled {
		t.Fatalf("outcome = %s, want cancelled", res.Outcome)
	}
}

func TestExecute_SpawnError(t *testing.T) {
	r := New(Config{Binary: filepath.Join(t.TempDir(), "no-such-binary")})

	res, err := r.Execute(context.Background(), "x", "")
	if err != nil {
		t.Fatalf("spawn failure must be data, not an error: %v", err)
	}
	if res.Outcome != OutcomeSpawnError {
		t.Fatalf("outcome = %s, want spawn_error", res.Outcome)
	}
	if res.ExitStatus != -1 {
		t.Errorf("exit status = %d", res.ExitStatus)
	}
}

func TestExecute_AuditLog(t *testing.T) {
	bin := fakeWorker(t, "cat")
	r := New(Config{Binary: bin, Timeout: 10 * time.Second})

	if _, err := r.Execute(context.Background(), "first", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Execute(context.Background(), "second", ""); err != nil {
		t.Fatal(err)
	}

	log := r.Log()
	if len(log) != 2 {
		t.Fatalf("audit log has %d entries, want 2", len(log))
	}
	if log[0].Instruction != "first" || log[1].Instruction != "second" {
		t.Errorf("audit log out of order: %+v", log)
	}

	// The snapshot must be independent of the internal log.
	log[0].Instruction = "mutated"
	if r.Log()[0].Instruction != "first" {
		t.Error("Log() handed out internal state")
	}
}

func TestVerify(t *testing.T) {
	bin := fakeWorker(t, `echo "fake-worker 1.2.3"`)
	r := New(Config{Binary: bin})

	version, err := r.Verify(context.Background())
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if version != "fake-worker 1.2.3" {
		t.Errorf("version = %q", version)
	}

	missing := New(Config{Binary: filepath.Join(t.TempDir(), "gone")})
	if _, err := missing.Verify(context.Background()); err == nil {
		t.Error("expected error for missing binary")
	}
}
