package plan

import (
	"fmt"
	"regexp"
)

// Linter flags plan steps whose instructions match restricted patterns.
// Findings are advisory: execution policy (skip, halt) is decided by the
// executor, never here.
type Linter struct {
	restricted []*regexp.Regexp
}

// Finding is one advisory warning about a step.
type Finding struct {
	Step   int // 1-based, matching report numbering
	Reason string
}

func NewLinter() *Linter {
	return &Linter{restricted: make([]*regexp.Regexp, 0)}
}

// Restrict adds a pattern that instructions are checked against.
func (l *Linter) Restrict(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	l.restricted = append(l.restricted, re)
	return nil
}

// Check returns a finding per step that is empty or matches a
// restricted pattern.
func (l *Linter) Check(p *Plan) []Finding {
	var findings []Finding
	for i, step := range p.Steps {
		if step.Instruction == "" {
			findings = append(findings, Finding{
				Step:   i + 1,
				Reason: "step has no instruction and will be skipped",
			})
			continue
		}
		for _, re := range l.restricted {
			if re.MatchString(step.Instruction) {
				findings = append(findings, Finding{
					Step:   i + 1,
					Reason: fmt.Sprintf("instruction matches restricted pattern: %s", re.String()),
				})
			}
		}
	}
	return findings
}
