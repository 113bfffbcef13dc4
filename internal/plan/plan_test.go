package plan

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParse_BareArray(t *testing.T) {
	data := []byte(`[
		{"description": "list files", "instruction": "List all files", "critical": false},
		{"description": "make readme", "instruction": "Create a README.md"}
	]`)

	p, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if p.Len() != 2 {
		t.Fatalf("expected 2 steps, got %d", p.Len())
	}
	if p.Steps[0].Critical {
		t.Error("step 1 explicitly set critical=false, got true")
	}
	if !p.Steps[1].Critical {
		t.Error("step 2 omitted critical, expected default true")
	}
}

func TestParse_WrappedForm(t *testing.T) {
	data := []byte(`{
		"task": "build a scraper",
		"steps": [{"description": "scaffold", "instruction": "Create project layout"}]
	}`)

	p, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if p.Task != "build a scraper" {
		t.Errorf("task = %q", p.Task)
	}
	if p.Len() != 1 {
		t.Fatalf("expected 1 step, got %d", p.Len())
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte(`{"steps": []}`)); err == nil {
		t.Error("expected error for wrapped plan without steps")
	}
	if _, err := Parse([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed input")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.json")
	content := `[{"description": "a", "instruction": "echo hi"}]`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.Len() != 1 || p.Steps[0].Instruction != "echo hi" {
		t.Errorf("unexpected plan: %+v", p)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLinter_Check(t *testing.T) {
	l := NewLinter()
	if err := l.Restrict(`rm\s+-rf`); err != nil {
		t.Fatal(err)
	}

	p := New("", []Step{
		{Description: "fine", Instruction: "List files", Critical: true},
		{Description: "empty", Instruction: "", Critical: true},
		{Description: "risky", Instruction: "Run rm -rf ./build", Critical: false},
	})

	findings := l.Check(p)
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d: %+v", len(findings), findings)
	}
	if findings[0].Step != 2 || findings[1].Step != 3 {
		t.Errorf("findings point at wrong steps: %+v", findings)
	}
}

func TestLinter_RestrictInvalidPattern(t *testing.T) {
	if err := NewLinter().Restrict(`(`); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestFromTemplate(t *testing.T) {
	p, ok := FromTemplate("debug_fix", "login crashes on empty password")
	if !ok {
		t.Fatal("debug_fix template missing")
	}
	if p.Len() != 3 {
		t.Fatalf("expected 3 steps, got %d", p.Len())
	}
	if p.Steps[0].Context == "" {
		t.Error("task description was not threaded into first step context")
	}

	if _, ok := FromTemplate("nope", "x"); ok {
		t.Error("unknown template should not resolve")
	}

	// Instantiating must not mutate the shared template.
	q, _ := FromTemplate("debug_fix", "")
	if q.Steps[0].Context != "" {
		t.Error("template contaminated by earlier instantiation")
	}
}
