package plan

// Canned plans the master side can hand to the executor without writing
// a plan file. Mirrors the task types exposed by the CLI.
var templates = map[string][]Step{
	"create_project": {
		{
			Description: "Create project directory structure",
			Instruction: "Create a well-organized project structure with src, tests, docs folders",
			Critical:    true,
		},
		{
			Description: "Initialize git repository",
			Instruction: "Initialize a git repository and create .gitignore file",
			Critical:    false,
		},
		{
			Description: "Create README",
			Instruction: "Create a comprehensive README.md with project description",
			Critical:    true,
		},
	},
	"add_feature": {
		{
			Description: "Analyze existing code",
			Instruction: "Analyze the current codebase structure and identify integration points",
			Critical:    true,
		},
		{
			Description: "Implement feature",
			Instruction: "Implement the requested feature following existing patterns",
			Critical:    true,
		},
		{
			Description: "Add tests",
			Instruction: "Create unit tests for the new feature",
			Critical:    false,
		},
	},
	"debug_fix": {
		{
			Description: "Identify the issue",
			Instruction: "Analyze the error and identify root cause",
			Critical:    true,
		},
		{
			Description: "Fix the bug",
			Instruction: "Implement the fix for the identified issue",
			Critical:    true,
		},
		{
			Description: "Verify fix",
			Instruction: "Test that the fix resolves the issue",
			Critical:    true,
		},
	},
	"refactor": {
		{
			Description: "Analyze code quality",
			Instruction: "Identify areas that need refactoring",
			Critical:    true,
		},
		{
			Description: "Refactor code",
			Instruction: "Refactor the code following best practices",
			Critical:    true,
		},
		{
			Description: "Ensure tests pass",
			Instruction: "Run tests to ensure refactoring didn't break functionality",
			Critical:    true,
		},
	},
}

// FromTemplate instantiates a canned plan for the given task type. The
// task description is carried on the plan and prepended as context to
// the first step so the worker knows what it is building.
func FromTemplate(taskType, description string) (*Plan, bool) {
	steps, ok := templates[taskType]
	if !ok {
		return nil, false
	}

	copied := make([]Step, len(steps))
	copy(copied, steps)
	if description != "" && len(copied) > 0 {
		copied[0].Context = "Task: " + description
	}
	return &Plan{Task: description, Steps: copied}, true
}

// TemplateNames lists the available task types in no particular order.
func TemplateNames() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	return names
}
