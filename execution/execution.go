// Package execution defines the persisted execution record, the
// checkpoint snapshot, and the store interface backends implement.
package execution

import (
	"encoding/json"
	"time"

	"github.com/xraph/maestro"
	"github.com/xraph/maestro/id"
)

// ErrorCode classifies why an execution failed. Cancelled executions
// carry no code; cancellation is not an error.
type ErrorCode string

const (
	CodeParseError      ErrorCode = "parse_error"
	CodeSchemaError     ErrorCode = "schema_error"
	CodeValidationError ErrorCode = "validation_error"
	CodeCycleError      ErrorCode = "cycle_error"
	CodeStepTimeout     ErrorCode = "step_timeout"
	CodeStepExecution   ErrorCode = "step_execution"
	CodeCheckpointError ErrorCode = "checkpoint_corrupt"
	CodeInternal        ErrorCode = "internal"
)

// StepRecord is the persisted snapshot of one step's outcome.
type StepRecord struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	AgentID string `json:"agentId"`

	Status      string          `json:"status"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	Attempts    int             `json:"attempts"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// Metrics carries the aggregate counters persisted with a record.
type Metrics struct {
	TotalSteps     int `json:"totalSteps"`
	CompletedSteps int `json:"completedSteps"`
	FailedSteps    int `json:"failedSteps"`
}

// Record is the persisted state of one workflow execution instance. It
// is written when the execution is created and overwritten on every
// lifecycle phase change, so a crashed process leaves behind the last
// phase it reached.
type Record struct {
	maestro.Entity

	ID           id.ExecutionID `json:"id"`
	WorkflowID   string         `json:"workflowId"`
	WorkflowName string         `json:"workflowName,omitempty"`

	State string       `json:"state"`
	Steps []StepRecord `json:"steps,omitempty"`

	// Result is the aggregated workflow output, set on completion.
	Result json.RawMessage `json:"result,omitempty"`

	Error     string    `json:"error,omitempty"`
	ErrorCode ErrorCode `json:"errorCode,omitempty"`

	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	Metrics Metrics `json:"metrics"`
}

// Step returns the record for the given step id, or nil.
func (r *Record) Step(stepID string) *StepRecord {
	for i := range r.Steps {
		if r.Steps[i].ID == stepID {
			return &r.Steps[i]
		}
	}
	return nil
}

// Checkpoint is an immutable snapshot of a running execution, enough to
// resume it without re-running completed steps. The definition itself is
// carried verbatim so a restore does not depend on any other record
// surviving.
type Checkpoint struct {
	ID          id.CheckpointID `json:"id"`
	ExecutionID id.ExecutionID  `json:"executionId"`
	WorkflowID  string          `json:"workflowId"`

	CreatedAt time.Time `json:"createdAt"`

	// Raw holds the original definition document and Format its encoding,
	// so the graph can be rebuilt deterministically on restore.
	Raw    []byte `json:"raw"`
	Format string `json:"format"`

	CompletedSteps []string `json:"completedSteps"`
	PendingSteps   []string `json:"pendingSteps"`

	// StepResults maps completed step ids to their agent output.
	StepResults map[string]json.RawMessage `json:"stepResults,omitempty"`
}
