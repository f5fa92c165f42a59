package machine

import (
	"encoding/json"
	"time"

	"github.com/xraph/maestro/agent"
	"github.com/xraph/maestro/definition"
	"github.com/xraph/maestro/graph"
	"github.com/xraph/maestro/id"
)

// StepStatus is the runtime status of one step.
type StepStatus string

const (
	// StatusPending means the step has not been dispatched yet.
	StatusPending StepStatus = "pending"
	// StatusRunning means the step's agent invocation is in flight.
	StatusRunning StepStatus = "running"
	// StatusCompleted means the step settled successfully.
	StatusCompleted StepStatus = "completed"
	// StatusFailed means the step exhausted its retries.
	StatusFailed StepStatus = "failed"
)

// StepState is the mutable runtime record of one definition step.
type StepState struct {
	ID      string
	Name    string
	AgentID string

	Status      StepStatus
	Result      *agent.Result
	Error       string
	Attempts    int
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// Metrics aggregates timing and step counts for one execution.
type Metrics struct {
	StartedAt   *time.Time
	CompletedAt *time.Time

	TotalSteps     int
	CompletedSteps int
	FailedSteps    int
}

// Context is the execution context owned exclusively by one Machine.
// It is created when an execution is initiated, mutated only by machine
// transitions, and frozen once the execution is cancelled.
type Context struct {
	ExecutionID id.ExecutionID

	// Raw definition as received, kept for failure diagnostics.
	Raw    []byte
	Format definition.Format

	Workflow *definition.Workflow
	Graph    *graph.Graph

	// Steps holds one runtime record per definition step, in definition
	// order.
	Steps []*StepState

	// BatchIndex is the index of the batch currently executing (or next
	// to execute at the barrier).
	BatchIndex int

	// Checkpoints lists the ids of checkpoints created for this
	// execution, oldest first.
	Checkpoints []id.CheckpointID

	// Results maps completed step ids to their agent output.
	Results map[string]json.RawMessage

	// Aggregate is the folded workflow result, set on completion.
	Aggregate json.RawMessage

	// ValidationErrors holds the accumulated validator violations when
	// the definition was rejected.
	ValidationErrors []string

	// Err is the terminal error for failed executions.
	Err error

	Metrics Metrics

	frozen bool
}

// NewContext creates an empty context for a new execution instance.
func NewContext(execID id.ExecutionID) *Context {
	return &Context{
		ExecutionID: execID,
		Results:     make(map[string]json.RawMessage),
	}
}

// Step returns the runtime state for the given step id, or nil.
func (c *Context) Step(stepID string) *StepState {
	for _, s := range c.Steps {
		if s.ID == stepID {
			return s
		}
	}
	return nil
}

// CompletedStepIDs returns the ids of completed steps in definition order.
func (c *Context) CompletedStepIDs() []string {
	var ids []string
	for _, s := range c.Steps {
		if s.Status == StatusCompleted {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// PendingStepIDs returns the ids of all steps that have not completed,
// in definition order. Running and failed steps count as pending because
// a restore resets them to pending.
func (c *Context) PendingStepIDs() []string {
	var ids []string
	for _, s := range c.Steps {
		if s.Status != StatusCompleted {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// AllSettled reports whether every step is in a terminal status.
func (c *Context) AllSettled() bool {
	for _, s := range c.Steps {
		if s.Status != StatusCompleted && s.Status != StatusFailed {
			return false
		}
	}
	return true
}

// Frozen reports whether the context has been made read-only.
func (c *Context) Frozen() bool { return c.frozen }

// Restore populates the context from a definition plus a checkpoint
// snapshot: steps named in completed are marked completed and keep
// their recorded results, every other step is reset to pending. Unknown
// step ids in completed are ignored; the caller detects them by looking
// the ids up afterwards.
func (c *Context) Restore(wf *definition.Workflow, completed []string, results map[string]json.RawMessage) {
	c.initSteps(wf)
	done := make(map[string]bool, len(completed))
	for _, stepID := range completed {
		done[stepID] = true
	}
	for _, s := range c.Steps {
		if !done[s.ID] {
			continue
		}
		s.Status = StatusCompleted
		if out, ok := results[s.ID]; ok {
			c.Results[s.ID] = out
		}
		c.Metrics.CompletedSteps++
	}
}

// initSteps populates the per-step runtime records from a definition.
func (c *Context) initSteps(wf *definition.Workflow) {
	c.Workflow = wf
	c.Steps = make([]*StepState, 0, len(wf.Steps))
	for i := range wf.Steps {
		s := &wf.Steps[i]
		c.Steps = append(c.Steps, &StepState{
			ID:      s.ID,
			Name:    s.Name,
			AgentID: s.AgentID,
			Status:  StatusPending,
		})
	}
	c.Metrics.TotalSteps = len(wf.Steps)
}
