package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeSession(t *testing.T, dir, name, cwd string, lines []string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString(fmt.Sprintf(`{"type":"meta","content":"<cwd>%s</cwd>"}`+"\n", cwd))
	for _, l := range lines {
		b.WriteString(l + "\n")
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFindProjectSessions_FiltersByCwd(t *testing.T) {
	dir := t.TempDir()
	m := &Manager{SessionDir: dir, ProjectDir: "/work/alpha"}

	older := writeSession(t, dir, "older.jsonl", "/work/alpha", nil)
	writeSession(t, dir, "other.jsonl", "/work/beta", nil)
	newer := writeSession(t, dir, "newer.jsonl", "/work/alpha", nil)

	// Ensure distinct modification times.
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(older, old, old); err != nil {
		t.Fatal(err)
	}

	sessions, err := m.FindProjectSessions()
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 {
		t.Fatalf("found %d sessions, want 2", len(sessions))
	}
	if sessions[0] != newer {
		t.Errorf("newest session must come first, got %s", sessions[0])
	}

	latest, ok := m.Latest()
	if !ok || latest != newer {
		t.Errorf("Latest = %s, %v", latest, ok)
	}
}

func TestLatest_NoSessions(t *testing.T) {
	m := &Manager{SessionDir: t.TempDir(), ProjectDir: "/work/alpha"}
	if _, ok := m.Latest(); ok {
		t.Error("expected no session")
	}
}

func TestContextSummary(t *testing.T) {
	dir := t.TempDir()
	long := strings.Repeat("x", 300)
	path := writeSession(t, dir, "s.jsonl", "/work/alpha", []string{
		`{"type":"message","role":"user","content":"build the parser"}`,
		`{"type":"message","role":"assistant","content":"` + long + `"}`,
		`{"type":"tool","role":"assistant","content":"ignored"}`,
		`not json at all`,
		`{"type":"message","role":"system","content":"ignored role"}`,
	})

	m := &Manager{SessionDir: dir, ProjectDir: "/work/alpha"}
	summary, err := m.ContextSummary(path, 10)
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(summary, "user: build the parser") {
		t.Errorf("summary missing user message:\n%s", summary)
	}
	if !strings.Contains(summary, "...") {
		t.Error("long message not truncated")
	}
	if strings.Contains(summary, "ignored") {
		t.Error("non-message entries leaked into summary")
	}
}

func TestContextSummary_BoundsMessages(t *testing.T) {
	dir := t.TempDir()
	var lines []string
	for i := 0; i < 20; i++ {
		lines = append(lines, fmt.Sprintf(`{"type":"message","role":"user","content":"msg %d"}`, i))
	}
	path := writeSession(t, dir, "s.jsonl", "/w", lines)

	m := &Manager{SessionDir: dir, ProjectDir: "/w"}
	summary, err := m.ContextSummary(path, 5)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(summary, "msg 14") || !strings.Contains(summary, "msg 15") {
		t.Errorf("summary kept the wrong tail:\n%s", summary)
	}
}
