package definition

import "time"

// Format tags the serialization format of a raw definition.
type Format string

const (
	// FormatYAML marks a YAML-encoded definition.
	FormatYAML Format = "yaml"
	// FormatJSON marks a JSON-encoded definition.
	FormatJSON Format = "json"
)

// Valid reports whether f is a supported format.
func (f Format) Valid() bool {
	return f == FormatYAML || f == FormatJSON
}

// Workflow is an immutable, fully-typed workflow definition.
type Workflow struct {
	ID      string `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version,omitempty"`
	Steps   []Step `yaml:"steps" json:"steps"`
}

// Step returns the step with the given id, or nil if no such step exists.
func (w *Workflow) Step(stepID string) *Step {
	for i := range w.Steps {
		if w.Steps[i].ID == stepID {
			return &w.Steps[i]
		}
	}
	return nil
}

// Step is the smallest unit of work in a workflow, delegated to an
// external agent identified by AgentID.
type Step struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`

	// AgentID names the executor this step's task is delegated to.
	AgentID string `yaml:"agentId" json:"agentId"`

	// Task is the opaque instruction passed to the agent. The engine
	// never interprets it.
	Task string `yaml:"task" json:"task"`

	// Dependencies lists step ids that must complete before this step
	// may run. Every id must reference another step in the same
	// definition.
	Dependencies []string `yaml:"dependencies" json:"dependencies,omitempty"`

	// Parallel is an authoring hint only — actual parallelism is derived
	// from the dependency graph.
	Parallel bool `yaml:"parallel" json:"parallel,omitempty"`

	// TimeoutMS bounds a single invocation attempt, in milliseconds.
	// Zero means the engine default applies.
	TimeoutMS int64 `yaml:"timeout" json:"timeout,omitempty"`

	// Retries is how many times a failed invocation is retried before
	// the step is marked failed.
	Retries int `yaml:"retries" json:"retries,omitempty"`

	// Priority is an optional ordering hint within a batch. Batch
	// members are logically concurrent, so this only biases dispatch
	// order, never correctness.
	Priority int `yaml:"priority" json:"priority,omitempty"`
}

// Timeout returns the step's per-attempt timeout as a duration.
// Zero means no step-level timeout is declared.
func (s *Step) Timeout() time.Duration {
	return time.Duration(s.TimeoutMS) * time.Millisecond
}
