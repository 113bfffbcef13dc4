package plan

import (
	"encoding/json"
	"fmt"
	"os"
)

// Step is a single unit of work delegated to the worker CLI.
type Step struct {
	Description string `json:"description"`
	Instruction string `json:"instruction"`
	Context     string `json:"context,omitempty"`
	Critical    bool   `json:"critical"`
}

// UnmarshalJSON keeps the original plan format's default: a step is
// critical unless the plan explicitly says otherwise.
func (s *Step) UnmarshalJSON(data []byte) error {
	type alias Step
	tmp := alias{Critical: true}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	*s = Step(tmp)
	return nil
}

// Plan is an ordered sequence of steps. It is built once by the caller
// and only read during execution.
type Plan struct {
	Task  string `json:"task,omitempty"`
	Steps []Step `json:"steps"`
}

// New builds a plan from steps already in execution order.
func New(task string, steps []Step) *Plan {
	return &Plan{Task: task, Steps: steps}
}

// Len returns the number of steps, including ones that may later be
// skipped for having no instruction.
func (p *Plan) Len() int {
	return len(p.Steps)
}

// Load reads a plan file. Both the bare step-array form and the
// wrapped {"task": ..., "steps": [...]} form are accepted.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan file: %w", err)
	}
	return Parse(data)
}

// Parse decodes plan JSON.
func Parse(data []byte) (*Plan, error) {
	var steps []Step
	if err := json.Unmarshal(data, &steps); err == nil {
		return &Plan{Steps: steps}, nil
	}

	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	if len(p.Steps) == 0 {
		return nil, fmt.Errorf("plan has no steps")
	}
	return &p, nil
}
